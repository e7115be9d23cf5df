// Package brokers holds the catalog of supported trading platforms and the
// alias tables that map their export columns onto canonical trade fields.
package brokers

import (
	"strings"

	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
)

// Strategy selects how raw rows are grouped into logical trades.
type Strategy string

const (
	StrategySingleRow     Strategy = "single-row"
	StrategyTicketGrouped Strategy = "ticket-grouped"
)

// ParserKind names the parser that handles a profile's rows.
type ParserKind string

const (
	ParserMT4     ParserKind = "mt4"
	ParserMT5     ParserKind = "mt5"
	ParserGeneric ParserKind = "generic"
)

// DeriveFunc computes a field from the whole row. Its result bypasses string
// typing and is used as-is.
type DeriveFunc func(row models.RawRow) (any, error)

// AliasEntry describes where a canonical field comes from. Exactly one of
// Derive, Candidates or Column is expected to be set, and they are consulted
// in that order.
type AliasEntry struct {
	Derive     DeriveFunc
	Candidates []string // first present, non-empty value wins
	Column     string
}

// Columns returns every column name the entry may read.
func (e AliasEntry) Columns() []string {
	if e.Column != "" {
		return append(append([]string{}, e.Candidates...), e.Column)
	}
	return e.Candidates
}

// AliasTable maps canonical fields to their alias entries.
type AliasTable map[models.Field]AliasEntry

// Clone returns a copy that can be modified without touching the original.
func (t AliasTable) Clone() AliasTable {
	out := make(AliasTable, len(t))
	for k, v := range t {
		v.Candidates = append([]string(nil), v.Candidates...)
		out[k] = v
	}
	return out
}

// BrokerProfile identifies a supported platform and how to read its exports.
type BrokerProfile struct {
	Key            string
	Name           string
	FileTypes      []tabular.FileType
	Aliases        AliasTable
	Strategy       Strategy
	Parser         ParserKind
	ActionKeywords []string // Type text must contain one of these for the row to be a trade
	BuyKeywords    []string // Type text containing one of these is a buy; defaults to "buy"
	RequireTicket  bool
	Instructions   []string // Human-readable export steps
}

// Supports reports whether the profile accepts the given file type.
func (p BrokerProfile) Supports(ft tabular.FileType) bool {
	if len(p.FileTypes) == 0 {
		return true
	}
	for _, t := range p.FileTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// DirectionOf classifies type text as buy or sell. Anything that is not
// recognisably a buy is a sell.
func (p BrokerProfile) DirectionOf(typeText string) models.Direction {
	keywords := p.BuyKeywords
	if len(keywords) == 0 {
		keywords = []string{"buy"}
	}
	lower := strings.ToLower(typeText)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return models.DirectionBuy
		}
	}
	return models.DirectionSell
}

// IsHeaderRow reports whether a row of cells looks like this profile's
// column header: at least two cells must be known alias columns.
func (p BrokerProfile) IsHeaderRow(cells []string) bool {
	known := make(map[string]bool)
	for _, entry := range p.Aliases {
		for _, col := range entry.Columns() {
			known[models.NormalizeHeader(col)] = true
		}
	}
	matches := 0
	for _, c := range cells {
		if known[models.NormalizeHeader(c)] {
			matches++
		}
	}
	return matches >= 2
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
