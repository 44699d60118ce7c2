package filter

import (
	"strings"

	"crypto-collector/internal/domain"
)

// genericMarketTerms flag articles about the market at large rather than one
// asset.
var genericMarketTerms = []string{
	"cryptocurrency",
	"crypto market",
	"digital assets",
	"blockchain market",
	"altcoin",
}

// RelevantArticle decides whether an article is primarily about the target
// asset. All checks are conjunctive:
//
//   - the target's name or symbol must appear in the title
//   - other known assets must not out-mention the target in the title
//   - when other assets appear in the full text, target mentions must be at
//     least twice theirs
//   - generic market terminology must not dominate while target mentions
//     are low (< 3)
//
// otherSymbols lists the names and symbols of every other universe member.
func RelevantArticle(a domain.RawArticle, target domain.Asset, otherSymbols []string) bool {
	title := strings.ToLower(a.Title)
	fullText := title + " " + strings.ToLower(a.Description) + " " + strings.ToLower(a.Content)

	targetTerms := dedupeTerms([]string{target.Name, target.Symbol})
	otherTerms := excludeTerms(otherSymbols, targetTerms)

	if countMentions(title, targetTerms) == 0 {
		return false
	}

	targetTitle := countMentions(title, targetTerms)
	targetFull := countMentions(fullText, targetTerms)
	otherTitle := countMentions(title, otherTerms)
	otherFull := countMentions(fullText, otherTerms)

	if otherTitle > targetTitle {
		return false
	}
	if otherFull > 0 && targetFull < otherFull*2 {
		return false
	}

	generic := countMentions(fullText, genericMarketTerms)
	if generic > targetFull && targetFull < 3 {
		return false
	}
	return true
}

func dedupeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func excludeTerms(terms, excluded []string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, t := range excluded {
		skip[t] = struct{}{}
	}
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, drop := skip[t]; drop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func countMentions(text string, terms []string) int {
	total := 0
	for _, t := range terms {
		total += strings.Count(text, t)
	}
	return total
}
