// backend/src/models/canonical.go
package models

import (
	"fmt"
	"strings"
	"unicode"
)

// Field names a canonical trade attribute that broker columns are mapped onto.
type Field string

const (
	FieldTicket     Field = "ticket"
	FieldSymbol     Field = "symbol"
	FieldType       Field = "type" // buy/sell/in/out text, possibly derived from several columns
	FieldOpenTime   Field = "open_time"
	FieldCloseTime  Field = "close_time"
	FieldVolume     Field = "volume"
	FieldOpenPrice  Field = "open_price"
	FieldClosePrice Field = "close_price"
	FieldProfit     Field = "profit"
	FieldCommission Field = "commission"
	FieldSwap       Field = "swap"
	FieldComment    Field = "comment"
)

// CanonicalFields lists every field in the order alias tables are resolved.
var CanonicalFields = []Field{
	FieldTicket, FieldSymbol, FieldType,
	FieldOpenTime, FieldCloseTime,
	FieldVolume, FieldOpenPrice, FieldClosePrice,
	FieldProfit, FieldCommission, FieldSwap,
	FieldComment,
}

// RawRow holds the direct string values of one data row, keyed by the header
// text exactly as it appeared in the source file.
type RawRow map[string]string

// Get returns the value stored under name. Header spellings vary between
// exports ("Open Price", "open  price", "OPEN_PRICE"), so when there is no
// exact key the lookup falls back to a normalized comparison.
func (r RawRow) Get(name string) (string, bool) {
	if v, ok := r[name]; ok {
		return v, true
	}
	want := NormalizeHeader(name)
	for k, v := range r {
		if NormalizeHeader(k) == want {
			return v, true
		}
	}
	return "", false
}

// NormalizeHeader lower-cases a column name and collapses spaces, underscores
// and other separators into single spaces.
func NormalizeHeader(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '/' || r == '%':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			space = true
		}
	}
	return b.String()
}

// MappedRow is the partially-typed result of applying an alias table to a
// RawRow. Values are usually strings; derivation functions may store any type.
// Unresolved fields are absent.
type MappedRow map[Field]any

// Text returns the field as trimmed text, or "" when absent.
func (m MappedRow) Text(f Field) string {
	v, ok := m[f]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Has reports whether the field resolved to a non-empty value.
func (m MappedRow) Has(f Field) bool {
	v, ok := m[f]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Leg is one raw row together with its 1-based position among the data rows
// of the uploaded file.
type Leg struct {
	Row    int
	Raw    RawRow
	Mapped MappedRow
}
