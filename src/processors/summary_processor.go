// backend/src/processors/summary_processor.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

// SummaryProcessor aggregates trades into journal statistics.
type SummaryProcessor interface {
	Process(trades []models.NormalizedTrade) models.TradeSummary
}

type summaryProcessorImpl struct{}

func NewSummaryProcessor() SummaryProcessor {
	return &summaryProcessorImpl{}
}

func (p *summaryProcessorImpl) Process(trades []models.NormalizedTrade) models.TradeSummary {
	var summary models.TradeSummary
	if len(trades) == 0 {
		return summary
	}

	ordered := append([]models.NormalizedTrade(nil), trades...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CloseTime.Before(ordered[j].CloseTime)
	})

	var gross, commission, swap, volume, equity, peak, drawdown decimal.Decimal
	for i, t := range ordered {
		pnl := decimal.NewFromFloat(t.PnL)
		net := pnl.Add(decimal.NewFromFloat(t.Commission)).Add(decimal.NewFromFloat(t.Swap))

		gross = gross.Add(pnl)
		commission = commission.Add(decimal.NewFromFloat(t.Commission))
		swap = swap.Add(decimal.NewFromFloat(t.Swap))
		volume = volume.Add(decimal.NewFromFloat(t.Volume))

		switch net.Sign() {
		case 1:
			summary.Wins++
		case -1:
			summary.Losses++
		default:
			summary.BreakEven++
		}

		netF := net.InexactFloat64()
		if i == 0 || netF > summary.BestTrade {
			summary.BestTrade = netF
		}
		if i == 0 || netF < summary.WorstTrade {
			summary.WorstTrade = netF
		}

		// Drawdown is measured from the running peak of cumulative net P&L,
		// starting from a flat account.
		equity = equity.Add(net)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(drawdown) {
			drawdown = dd
		}
	}

	summary.TradeCount = len(ordered)
	summary.WinRate = utils.RoundFloat(float64(summary.Wins)/float64(summary.TradeCount)*100, 2)
	summary.GrossPnL = gross.InexactFloat64()
	summary.TotalCommission = commission.InexactFloat64()
	summary.TotalSwap = swap.InexactFloat64()
	summary.NetPnL = gross.Add(commission).Add(swap).InexactFloat64()
	summary.MaxDrawdown = drawdown.InexactFloat64()
	summary.TotalVolume = volume.InexactFloat64()
	return summary
}
