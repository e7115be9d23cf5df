// backend/src/parsers/mt4/parser.go
package mt4

import (
	"context"
	"fmt"
	"strings"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
)

// Parser implements the parsers.Parser interface for MetaTrader 4 account
// history statements, where every closed order is one row.
type Parser struct{}

// NewParser creates a new instance of the MetaTrader 4 parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse maps each row, drops ledger and cancelled pending-order rows and
// converts the rest one-to-one into trades.
func (p *Parser) Parse(ctx context.Context, legs []models.Leg, profile brokers.BrokerProfile, env *reconcile.Env) ([]models.NormalizedTrade, error) {
	if err := reconcile.MapLegs(legs, profile); err != nil {
		return nil, err
	}

	filled := make([]models.Leg, 0, len(legs))
	for _, leg := range legs {
		if typeText := leg.Mapped.Text(models.FieldType); isPendingOrder(typeText) {
			env.Warn(models.ImportWarning{
				Row:     leg.Row,
				Kind:    models.WarningRowSkipped,
				Field:   models.FieldType,
				Message: fmt.Sprintf("pending order %q was never filled", typeText),
			})
			continue
		}
		filled = append(filled, leg)
	}

	trades := reconcile.Filter(filled, profile, env)
	return reconcile.NewReconciler(profile, env).Reconcile(ctx, trades, brokers.StrategySingleRow)
}

// Pending orders keep their "buy limit"/"sell stop" type in the history only
// when they were cancelled or expired; filled ones are reported as buy/sell.
func isPendingOrder(typeText string) bool {
	lower := strings.ToLower(typeText)
	return strings.Contains(lower, "limit") || strings.Contains(lower, "stop")
}
