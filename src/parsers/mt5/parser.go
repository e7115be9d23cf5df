// backend/src/parsers/mt5/parser.go
package mt5

import (
	"context"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
)

// Parser implements the parsers.Parser interface for MetaTrader 5 reports.
// The deals report has one "in" and one or more "out" rows per position,
// the positions report has one row per position; both group on Position.
type Parser struct{}

// NewParser creates a new instance of the MetaTrader 5 parser.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, legs []models.Leg, profile brokers.BrokerProfile, env *reconcile.Env) ([]models.NormalizedTrade, error) {
	if err := reconcile.MapLegs(legs, profile); err != nil {
		return nil, err
	}
	deals := reconcile.Filter(legs, profile, env)
	return reconcile.NewReconciler(profile, env).Reconcile(ctx, deals, brokers.StrategyTicketGrouped)
}
