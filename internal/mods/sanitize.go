package mods

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()

	punctuationReplacer = strings.NewReplacer(
		"“", `"`,
		"”", `"`,
		"‘", "'",
		"’", "'",
		"–", "-",
	)
)

// sanitizeText strips markup and normalises typographic punctuation. The
// result is plain text; an input that is empty after trimming is rejected.
func sanitizeText(field, value string, maxLen int) (string, error) {
	text := html.UnescapeString(textPolicy.Sanitize(value))
	text = strings.TrimSpace(punctuationReplacer.Replace(text))

	if text == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if maxLen > 0 && len([]rune(text)) > maxLen {
		return "", fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, maxLen)
	}
	return text, nil
}

// parseGameVersion accepts "major.minor", e.g. "1.8".
func parseGameVersion(value string) (int, int, error) {
	majorText, minorText, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok {
		return 0, 0, fmt.Errorf("%w: gameVersion must look like 1.0", ErrInvalidInput)
	}

	major, err := strconv.ParseUint(majorText, 10, 31)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid gameVersion major", ErrInvalidInput)
	}
	minor, err := strconv.ParseUint(minorText, 10, 31)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid gameVersion minor", ErrInvalidInput)
	}
	return int(major), int(minor), nil
}

// searchTerms splits a free-text query into alphanumeric words.
func searchTerms(query string, maxTerms int) []string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !isWordRune(r)
	})
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 0x7f
}
