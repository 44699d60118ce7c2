// Package universe computes the active asset universe from a ranked market
// snapshot. The universe is re-derived wholly on every scheduler tick; it is
// a deterministic function of (snapshot, ignore list, stablecoin keywords,
// rank cutoff) and is never patched incrementally.
package universe

import (
	"strings"

	"crypto-collector/internal/domain"
)

// Config holds the universe selection parameters.
type Config struct {
	// TopCount is the rank cutoff: at most this many assets survive.
	TopCount int
	// StableKeywords mark stablecoins by name/symbol substring match.
	StableKeywords []string
	// Ignored lists symbols excluded from collection (lower case).
	Ignored []string
}

// IsStableCoin reports whether a quote looks like a stablecoin: a keyword
// appears in its lower-cased name or symbol, or its price sits within
// [0.99, 1.01] of the quote currency.
func IsStableCoin(q domain.MarketQuote, keywords []string) bool {
	name := strings.ToLower(q.Name)
	symbol := strings.ToLower(q.Symbol)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) || strings.Contains(symbol, kw) {
			return true
		}
	}
	return q.Price >= 0.99 && q.Price <= 1.01
}

// Compute filters a ranked market snapshot down to the active universe:
// stablecoins and ignored symbols are dropped, then the top TopCount of the
// remainder are kept in snapshot (market cap) order.
func Compute(quotes []domain.MarketQuote, cfg Config) domain.Universe {
	ignored := make(map[string]struct{}, len(cfg.Ignored))
	for _, s := range cfg.Ignored {
		ignored[strings.ToLower(s)] = struct{}{}
	}

	var u domain.Universe
	for _, q := range quotes {
		if len(u.Assets) >= cfg.TopCount {
			break
		}
		if IsStableCoin(q, cfg.StableKeywords) {
			continue
		}
		if _, skip := ignored[strings.ToLower(q.Symbol)]; skip {
			continue
		}
		u.Assets = append(u.Assets, domain.Asset{
			Symbol:     strings.ToUpper(q.Symbol),
			Name:       q.Name,
			ProviderID: q.ProviderID,
		})
	}
	return u
}

// Diff returns the members of current whose symbol is absent from prev, in
// current's order.
func Diff(prev map[string]domain.Asset, current domain.Universe) []domain.Asset {
	var added []domain.Asset
	for _, a := range current.Assets {
		if _, known := prev[a.Symbol]; !known {
			added = append(added, a)
		}
	}
	return added
}
