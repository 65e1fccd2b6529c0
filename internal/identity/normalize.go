package identity

import (
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

var (
	// phrases containing "version" go before the pattern sweep, which would otherwise split them
	versionPhrases = []string{
		"(deluxe remastered version)",
		"deluxe remastered version",
		"remastered version",
	}
	// "(remastered)remastered" is one literal, not two
	residualPhrases = []string{
		"- remastered",
		"(remastered)remastered",
		"remaster",
	}
	remasteredPattern = regexp.MustCompile(`\s*[-–]?\s*[\(\[]?(?:remastered)(?:\s+\d{4})?[\)\]]?\s*`)
	emptyBrackets     = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	bracketPadding    = regexp.MustCompile(`([\(\[])\s+|\s+([\)\]])`)
)

// Normalize returns the canonical comparison form of a title, artist or album name.
//
// Text is NFC-composed and lower-cased, remaster annotations are removed and whitespace is collapsed.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	out := norm.NFC.String(strings.ToLower(s))
	for {
		next := normalizeOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func normalizeOnce(s string) string {
	for _, p := range versionPhrases {
		s = strings.ReplaceAll(s, p, " ")
	}
	s = remasteredPattern.ReplaceAllString(s, " ")
	for _, p := range residualPhrases {
		s = strings.ReplaceAll(s, p, " ")
	}
	s = emptyBrackets.ReplaceAllString(s, " ")
	s = bracketPadding.ReplaceAllString(s, "$1$2")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " -–")
}

// Similarity returns the Ratcliff/Obershelp ratio (2*M/T) of a and b compared rune by rune.
//
// The result is in [0, 1]; two empty strings score 1. Callers pass the recent value first.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
