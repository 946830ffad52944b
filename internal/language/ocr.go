package language

import (
	"unicode"
	"unicode/utf8"
)

const (
	minOCRLength   = 5
	maxOCRLength   = 5000
	minValidRatio  = 0.8
	extraValidPunc = ".,!?'\"-–—()"
)

// CleanOCR removes every character outside the allow-list of the language.
// Newlines are always kept. Unknown codes use the multi-script list.
func CleanOCR(text, code string) string {
	e := lookup(code)
	if e == nil {
		e = fallback
	}
	return e.allowed.ReplaceAllString(text, "")
}

// ValidateOCR returns text when it looks like usable OCR output and "" when
// it does not. Length must fall strictly between 5 and 5000 characters and
// more than 80% of the characters must be letters, digits, whitespace or
// common punctuation.
func ValidateOCR(text string) string {
	n := utf8.RuneCountInString(text)
	if n <= minOCRLength || n >= maxOCRLength {
		return ""
	}
	valid := 0
	for _, r := range text {
		if validOCRRune(r) {
			valid++
		}
	}
	if float64(valid)/float64(n) <= minValidRatio {
		return ""
	}
	return text
}

func validOCRRune(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), unicode.IsSpace(r), r == '_':
		return true
	}
	for _, p := range extraValidPunc {
		if r == p {
			return true
		}
	}
	return false
}
