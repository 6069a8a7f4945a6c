package transcribe

import "strings"

// Whisper occasionally hallucinates by repeating the same phrase many
// times over. Grounded on
// original_source/src-engine/src/transcription/transcriber.rs's
// remove_repetition_loops.
const (
	minRepetitionsForLoop = 3
	minPhraseLength       = 10
)

// RemoveRepetitionLoops detects a word sequence that repeats at least
// minRepetitionsForLoop times back to back and collapses it to a single
// occurrence, preserving everything before and after the run.
func RemoveRepetitionLoops(text string) string {
	if len(text) < minPhraseLength*minRepetitionsForLoop {
		return text
	}

	words := strings.Fields(text)
	if len(words) < minRepetitionsForLoop*3 {
		return text
	}

	for seqLen := len(words) / minRepetitionsForLoop; seqLen >= 3; seqLen-- {
		if result, ok := findAndRemoveWordSequenceRepetition(words, seqLen); ok {
			return result
		}
	}
	return text
}

func findAndRemoveWordSequenceRepetition(words []string, seqLen int) (string, bool) {
	if len(words) < seqLen*minRepetitionsForLoop {
		return "", false
	}

	for start := 0; start <= len(words)-seqLen*minRepetitionsForLoop; start++ {
		pattern := words[start : start+seqLen]

		count := 1
		pos := start + seqLen
		for pos+seqLen <= len(words) {
			if !wordsEqualFold(words[pos:pos+seqLen], pattern) {
				break
			}
			count++
			pos += seqLen
		}

		if count >= minRepetitionsForLoop {
			out := make([]string, 0, len(words))
			out = append(out, words[:start]...)
			out = append(out, pattern...)
			afterRepetitions := start + seqLen*count
			if afterRepetitions < len(words) {
				out = append(out, words[afterRepetitions:]...)
			}
			return strings.Join(out, " "), true
		}
	}
	return "", false
}

func wordsEqualFold(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
