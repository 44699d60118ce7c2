package domain

// Asset identifies one tracked cryptocurrency. Symbol is the stable key used
// across all datasets; Name and ProviderID only matter for provider-specific
// queries (news search terms, history lookups by provider id).
type Asset struct {
	Symbol     string // upper-case ticker symbol, e.g. "BTC"
	Name       string // canonical name, e.g. "Bitcoin"
	ProviderID string // market provider identifier, e.g. "bitcoin"
}

// Universe is the set of assets currently eligible for collection.
// It is recomputed wholly each scheduler tick, never patched incrementally.
type Universe struct {
	Assets []Asset
}

// Symbols returns the symbols of all member assets in universe order.
func (u Universe) Symbols() []string {
	out := make([]string, len(u.Assets))
	for i, a := range u.Assets {
		out[i] = a.Symbol
	}
	return out
}

// Contains reports whether the universe holds an asset with the given symbol.
func (u Universe) Contains(symbol string) bool {
	for _, a := range u.Assets {
		if a.Symbol == symbol {
			return true
		}
	}
	return false
}
