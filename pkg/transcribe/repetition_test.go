package transcribe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRemoveRepetitionLoops_Basic(t *testing.T) {
	input := "And I think that's a very important point. And I think that's a very important point. And I think that's a very important point. And I think that's a very important point."
	result := RemoveRepetitionLoops(input)

	count := strings.Count(result, "And I think that's a very important point")
	if count != 1 {
		t.Errorf("expected single occurrence, got %d in %q", count, result)
	}
}

func TestRemoveRepetitionLoops_WithTrailing(t *testing.T) {
	input := "This is important. This is important. This is important. And then something else."
	result := RemoveRepetitionLoops(input)

	if !strings.Contains(result, "This is important") {
		t.Errorf("expected result to still contain the phrase once, got %q", result)
	}
	if !strings.Contains(result, "something else") {
		t.Errorf("expected trailing text preserved, got %q", result)
	}
	if count := strings.Count(result, "This is important"); count != 1 {
		t.Errorf("expected single occurrence, got %d in %q", count, result)
	}
}

func TestRemoveRepetitionLoops_NoRepetition(t *testing.T) {
	input := "This is a normal sentence. And this is another one. Nothing repeating here."
	if result := RemoveRepetitionLoops(input); result != input {
		t.Errorf("expected unchanged text, got %q", result)
	}
}

func TestRemoveRepetitionLoops_ShortText(t *testing.T) {
	input := "Short text."
	if result := RemoveRepetitionLoops(input); result != input {
		t.Errorf("expected unchanged text, got %q", result)
	}
}

func TestRemoveRepetitionLoops_TwoOccurrencesOK(t *testing.T) {
	input := "I agree with that. I agree with that."
	if result := RemoveRepetitionLoops(input); result != input {
		t.Errorf("expected unchanged text (below repetition threshold), got %q", result)
	}
}

func TestRemoveRepetitionLoops_CaseInsensitive(t *testing.T) {
	input := "Hello big World. hello big world. HELLO BIG WORLD. And more text."
	result := RemoveRepetitionLoops(input)

	count := strings.Count(strings.ToLower(result), "hello")
	if count > 2 {
		t.Errorf("expected reduced repetitions, got %d hello occurrences in %q", count, result)
	}
}

// P8: repetition removal is idempotent.
func TestProperty_RepetitionRemovalIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-zA-Z]{2,8}`)
		words := rapid.SliceOfN(word, 0, 40).Draw(t, "words")
		text := strings.Join(words, " ")

		once := RemoveRepetitionLoops(text)
		twice := RemoveRepetitionLoops(once)

		assert.Equal(t, once, twice)
	})
}
