package reconcile

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
)

// Keywords that only count as whole words, so "interest" or "commission"
// never look like an entry or exit.
var tokenKeywords = map[string]bool{"in": true, "out": true}

var defaultActionKeywords = []string{"buy", "sell"}

// IsTradeLike reports whether a mapped row is a position action for the
// profile. When it is not, reason explains why.
func IsTradeLike(m models.MappedRow, profile brokers.BrokerProfile) (ok bool, reason string) {
	if profile.RequireTicket && !m.Has(models.FieldTicket) {
		return false, "missing ticket"
	}
	if !m.Has(models.FieldType) {
		return false, "missing type"
	}
	if !m.Has(models.FieldSymbol) {
		return false, "missing symbol"
	}
	typeText := m.Text(models.FieldType)
	if !hasActionKeyword(typeText, profile.ActionKeywords) {
		return false, fmt.Sprintf("type %q is not a position action", typeText)
	}
	return true, ""
}

// Filter keeps the trade-like legs and records a row_skipped warning for
// every other one.
func Filter(legs []models.Leg, profile brokers.BrokerProfile, env *Env) []models.Leg {
	kept := make([]models.Leg, 0, len(legs))
	for _, leg := range legs {
		if ok, reason := IsTradeLike(leg.Mapped, profile); !ok {
			env.Warn(models.ImportWarning{Row: leg.Row, Kind: models.WarningRowSkipped, Message: reason})
			continue
		}
		kept = append(kept, leg)
	}
	return kept
}

func hasActionKeyword(typeText string, keywords []string) bool {
	if len(keywords) == 0 {
		keywords = defaultActionKeywords
	}
	lower := strings.ToLower(typeText)
	words := tokens(lower)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if tokenKeywords[k] {
			if words[k] {
				return true
			}
			continue
		}
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) }) {
		out[w] = true
	}
	return out
}
