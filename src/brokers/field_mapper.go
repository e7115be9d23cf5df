package brokers

import (
	"fmt"
	"strings"

	"github.com/username/tradejournal/backend/src/models"
)

// MapRow applies an alias table to a raw row. Fields that cannot be resolved
// are left out of the result; only a failing derivation returns an error.
func MapRow(row models.RawRow, aliases AliasTable) (models.MappedRow, error) {
	mapped := make(models.MappedRow, len(aliases))
	for _, field := range models.CanonicalFields {
		entry, ok := aliases[field]
		if !ok {
			continue
		}
		value, found, err := resolve(row, entry)
		if err != nil {
			return nil, fmt.Errorf("deriving %s: %w", field, err)
		}
		if found {
			mapped[field] = value
		}
	}
	return mapped, nil
}

func resolve(row models.RawRow, entry AliasEntry) (any, bool, error) {
	if entry.Derive != nil {
		v, err := entry.Derive(row)
		if err != nil {
			return nil, false, err
		}
		if v == nil {
			return nil, false, nil
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, false, nil
		}
		return v, true, nil
	}

	for _, col := range entry.Candidates {
		if v, ok := row.Get(col); ok && strings.TrimSpace(v) != "" {
			return v, true, nil
		}
	}

	if entry.Column != "" {
		if v, ok := row.Get(entry.Column); ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Columns builds a candidate-list alias entry.
func Columns(names ...string) AliasEntry {
	return AliasEntry{Candidates: names}
}

// Column builds a single-column alias entry.
func Column(name string) AliasEntry {
	return AliasEntry{Column: name}
}

// Derived builds a derivation alias entry.
func Derived(fn DeriveFunc) AliasEntry {
	return AliasEntry{Derive: fn}
}

// JoinColumns derives a field by joining the non-empty values of several
// columns with a space, e.g. MetaTrader 5 "Type" + "Direction" -> "buy in".
func JoinColumns(names ...string) DeriveFunc {
	return func(row models.RawRow) (any, error) {
		var parts []string
		for _, n := range names {
			if v, ok := row.Get(n); ok && strings.TrimSpace(v) != "" {
				parts = append(parts, strings.TrimSpace(v))
			}
		}
		return strings.Join(parts, " "), nil
	}
}
