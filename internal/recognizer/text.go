package recognizer

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls text post-processing.
type CleanOptions struct {
	NormalizeForm      string            // "NFC" (default), "NFKC", "NFD", "NFKD", "none"
	CollapseWhitespace bool              // collapse runs of whitespace to a single space
	RemoveControlChars bool              // drop non-printable control characters
	RemoveZeroWidth    bool              // drop zero-width spaces and joiners
	ReplaceMap         map[string]string // replacements applied after normalization
	Language           string            // picks a default ReplaceMap when ReplaceMap is empty
}

// DefaultCleanOptions returns the defaults used for chat text.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
	}
}

// CleanText normalises OCR output. The result is always trimmed.
func CleanText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}

	switch strings.ToUpper(opts.NormalizeForm) {
	case "", "NFC":
		s = norm.NFC.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}

	if opts.RemoveZeroWidth || opts.RemoveControlChars {
		s = strings.Map(func(r rune) rune {
			if opts.RemoveZeroWidth && isZeroWidth(r) {
				return -1
			}
			if opts.RemoveControlChars && unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}

	replace := opts.ReplaceMap
	if len(replace) == 0 && opts.Language != "" {
		replace = ReplaceMapForLanguage(opts.Language)
	}
	if len(replace) > 0 {
		s = replacerFor(replace).Replace(s)
	}

	if opts.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	}
	return strings.TrimSpace(s)
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
		return true
	}
	return false
}

// replacerFor builds a replacer that tries longer keys first.
func replacerFor(m map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return strings.NewReplacer(pairs...)
}

// ReplaceMapForLanguage returns typographic replacements for a language.
// Both ISO 639-1 ("de") and Tesseract ("deu") codes are understood.
func ReplaceMapForLanguage(lang string) map[string]string {
	m := map[string]string{
		"\u2018": "'",
		"\u2019": "'",
		"\u201C": "\"",
		"\u201D": "\"",
		"\u2013": "-",
		"\u2014": "-",
		"\u00A0": " ",
		"\u2009": " ",
		"\u2026": "...",
	}
	switch strings.ToLower(lang) {
	case "de", "deu":
		m["\u201E"] = "\""
	case "fr", "fra":
		m["\u00AB"] = "\""
		m["\u00BB"] = "\""
	}
	return m
}
