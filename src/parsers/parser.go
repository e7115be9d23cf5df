// backend/src/parsers/parser.go
package parsers

import (
	"context"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
)

// Parser turns the extracted rows of one broker export into trades. Legs
// arrive with Raw set; parsers fill Mapped themselves.
type Parser interface {
	Parse(ctx context.Context, legs []models.Leg, profile brokers.BrokerProfile, env *reconcile.Env) ([]models.NormalizedTrade, error)
}
