package transcript

import (
	"regexp"
	"strings"
)

var (
	// Full-width punctuation separated only by whitespace collapses to the first mark
	repeatedPunctRegex = regexp.MustCompile(`([，。！？；：])\s*[，。！？；：]`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
)

// Cleaner removes stutter artifacts the speech-to-text engine leaves in text:
// immediate repetitions of configured characters, doubled punctuation, and
// whitespace runs.
type Cleaner struct {
	collapse map[rune]bool
}

// NewCleaner creates a Cleaner collapsing repeats of each rune in runes
func NewCleaner(runes string) *Cleaner {
	collapse := make(map[rune]bool)
	for _, r := range runes {
		collapse[r] = true
	}
	return &Cleaner{collapse: collapse}
}

// Clean returns text with repeated characters de-duplicated and trimmed
func (c *Cleaner) Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for i, r := range text {
		if i > 0 && r == prev && c.collapse[r] {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	out := b.String()

	for {
		next := repeatedPunctRegex.ReplaceAllString(out, "$1")
		if next == out {
			break
		}
		out = next
	}

	out = whitespaceRegex.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// CleanAll returns a copy of segments with every text cleaned
func (c *Cleaner) CleanAll(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, s := range segments {
		s.Text = c.Clean(s.Text)
		out[i] = s
	}
	return out
}
