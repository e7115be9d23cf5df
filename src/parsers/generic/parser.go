// backend/src/parsers/generic/parser.go
package generic

import (
	"context"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
)

// Parser handles every broker without a dedicated parser. It relies on the
// profile's alias table alone and emits one trade per row.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, legs []models.Leg, profile brokers.BrokerProfile, env *reconcile.Env) ([]models.NormalizedTrade, error) {
	if err := reconcile.MapLegs(legs, profile); err != nil {
		return nil, err
	}
	rows := reconcile.Filter(legs, profile, env)
	return reconcile.NewReconciler(profile, env).Reconcile(ctx, rows, brokers.StrategySingleRow)
}
