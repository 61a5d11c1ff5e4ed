package resolve

import (
	"strings"

	"github.com/TobiSchelling/threadscout/internal/reddit"
)

// luceneSpecial are the characters the keyword syntax treats as operators.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

func buildQuery(title string, mode reddit.SearchMode) string {
	if mode == reddit.Phrase {
		return PhraseQuery(title)
	}
	return KeywordQuery(title)
}

// PhraseQuery quotes title as a single exact phrase. Embedded quotes are
// dropped since the phrase syntax has no escape for them.
func PhraseQuery(title string) string {
	t := strings.Join(strings.Fields(strings.ReplaceAll(title, `"`, " ")), " ")
	if t == "" {
		return ""
	}
	return `"` + t + `"`
}

// KeywordQuery turns title into loose keyword terms: operator characters
// become spaces and boolean keywords are lowercased so they match as words.
func KeywordQuery(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(luceneSpecial, r) {
			return ' '
		}
		return r
	}, title)

	terms := strings.Fields(cleaned)
	for i, t := range terms {
		switch t {
		case "AND", "OR", "NOT":
			terms[i] = strings.ToLower(t)
		}
	}
	return strings.Join(terms, " ")
}
