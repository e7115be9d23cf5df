// backend/src/processors/trade_processor.go
package processors

import (
	"github.com/google/uuid"

	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/security/validation"
)

// TradeProcessor finishes trades coming out of a broker parser with data that
// is not broker-specific.
type TradeProcessor struct {
	newID func() string
}

func NewTradeProcessor() *TradeProcessor {
	return &TradeProcessor{newID: uuid.NewString}
}

// Process stamps every trade with a fresh id, clears the caller-owned fields
// and sanitizes free text. Numeric fields are kept exactly as parsed. It
// returns the index of the first invalid trade along with the error.
func (p *TradeProcessor) Process(trades []models.NormalizedTrade) ([]models.NormalizedTrade, int, error) {
	out := make([]models.NormalizedTrade, 0, len(trades))
	for i, t := range trades {
		t.ID = p.newID()
		t.AccountID = ""
		t.Tags = []string{}
		t.Ticket = validation.SanitizeField(t.Ticket)
		t.Symbol = validation.SanitizeField(t.Symbol)
		t.Comment = validation.SanitizeField(t.Comment)

		if err := validation.ValidateTrade(t); err != nil {
			return nil, i, err
		}
		out = append(out, t)
	}
	return out, -1, nil
}
