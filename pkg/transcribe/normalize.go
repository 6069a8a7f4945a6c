package transcribe

import "strings"

// NormalizeBrand fixes Whisper's frequent mis-hearing of the product name.
func NormalizeBrand(text string) string {
	return strings.ReplaceAll(text, "Flow STT", "FlowSTT")
}
