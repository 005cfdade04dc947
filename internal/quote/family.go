package quote

import "strings"

// ProductFamily maps a contract family prefix (e.g. "TMF", "MXF") to
// its near-month/next-month pseudo-symbol pair.
type ProductFamily struct {
	Prefix    string
	NearMonth string
	NextMonth string
}

// Catalog resolves static facts about a symbol the Quote Manager needs
// but does not own: whether it is a role-based pseudo-symbol, and its
// product family prefix for dynamic alias binding.
type Catalog interface {
	IsPseudoAlias(symbol string) bool
	FamilyPrefix(symbol string) string
}

// StaticCatalog is a Catalog backed by a fixed product family table.
type StaticCatalog struct {
	families []ProductFamily
	pseudo   map[string]bool
}

// NewStaticCatalog builds a Catalog from the configured product
// families; NearMonth and NextMonth of every family are registered as
// pseudo-aliases.
func NewStaticCatalog(families []ProductFamily) *StaticCatalog {
	c := &StaticCatalog{families: families, pseudo: make(map[string]bool)}
	for _, f := range families {
		if f.NearMonth != "" {
			c.pseudo[f.NearMonth] = true
		}
		if f.NextMonth != "" {
			c.pseudo[f.NextMonth] = true
		}
	}
	return c
}

func (c *StaticCatalog) IsPseudoAlias(symbol string) bool {
	return c.pseudo[symbol]
}

// FamilyPrefix returns the product family prefix matching symbol
// (alias or exchange code) by longest registered prefix, or "" if none
// matches.
func (c *StaticCatalog) FamilyPrefix(symbol string) string {
	best := ""
	for _, f := range c.families {
		if strings.HasPrefix(symbol, f.Prefix) && len(f.Prefix) > len(best) {
			best = f.Prefix
		}
	}
	return best
}
