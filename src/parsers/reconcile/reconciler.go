// Package reconcile turns mapped broker rows into normalized trades. Rows that
// belong to the same position are grouped by ticket and merged.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

// Group is the set of legs believed to form one logical trade.
type Group struct {
	Key  string
	Legs []models.Leg
}

// GroupLegs groups legs per strategy. Groups keep the order in which their
// key first appeared; legs without a ticket form singleton groups.
func GroupLegs(legs []models.Leg, strategy brokers.Strategy) []Group {
	groups := make([]Group, 0, len(legs))
	if strategy != brokers.StrategyTicketGrouped {
		for _, leg := range legs {
			groups = append(groups, Group{Key: leg.Mapped.Text(models.FieldTicket), Legs: []models.Leg{leg}})
		}
		return groups
	}

	index := make(map[string]int)
	for _, leg := range legs {
		key := leg.Mapped.Text(models.FieldTicket)
		if key == "" {
			groups = append(groups, Group{Legs: []models.Leg{leg}})
			continue
		}
		if i, seen := index[key]; seen {
			groups[i].Legs = append(groups[i].Legs, leg)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{Key: key, Legs: []models.Leg{leg}})
	}
	return groups
}

// Reconciler merges groups of legs into trades using a profile's rules.
type Reconciler struct {
	Profile brokers.BrokerProfile
	Env     *Env
}

func NewReconciler(profile brokers.BrokerProfile, env *Env) *Reconciler {
	return &Reconciler{Profile: profile, Env: env}
}

// Reconcile groups legs by the given strategy and produces one trade per
// group. The first failing group aborts the call with a *RowError.
func (r *Reconciler) Reconcile(ctx context.Context, legs []models.Leg, strategy brokers.Strategy) ([]models.NormalizedTrade, error) {
	groups := GroupLegs(legs, strategy)
	trades := make([]models.NormalizedTrade, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trade, err := r.mergeSafe(g)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
		r.Env.tradeRows = append(r.Env.tradeRows, g.Legs[0].Row)
	}
	return trades, nil
}

func (r *Reconciler) mergeSafe(g Group) (trade models.NormalizedTrade, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RowError{Row: g.Legs[0].Row, Err: fmt.Errorf("recovered panic: %v", p)}
		}
	}()
	return r.Merge(g)
}

// Merge turns one group into a trade.
func (r *Reconciler) Merge(g Group) (models.NormalizedTrade, error) {
	switch len(g.Legs) {
	case 0:
		return models.NormalizedTrade{}, fmt.Errorf("empty reconciliation group %q", g.Key)
	case 1:
		return r.single(g.Legs[0])
	case 2:
		return r.pair(g)
	default:
		return r.many(g)
	}
}

func (r *Reconciler) single(leg models.Leg) (models.NormalizedTrade, error) {
	trade := r.base(leg)
	var err error
	if trade.OpenTime, _, err = r.Env.Time(leg, models.FieldOpenTime); err != nil {
		return models.NormalizedTrade{}, err
	}
	if trade.CloseTime, _, err = r.Env.Time(leg, models.FieldCloseTime); err != nil {
		return models.NormalizedTrade{}, err
	}
	return trade, nil
}

// base maps the non-time fields of one leg.
func (r *Reconciler) base(leg models.Leg) models.NormalizedTrade {
	m := leg.Mapped
	return models.NormalizedTrade{
		Ticket:     m.Text(models.FieldTicket),
		Symbol:     m.Text(models.FieldSymbol),
		Direction:  r.Profile.DirectionOf(m.Text(models.FieldType)),
		Volume:     math.Abs(utils.CoerceFloat(m[models.FieldVolume])),
		OpenPrice:  utils.CoerceFloat(m[models.FieldOpenPrice]),
		ClosePrice: utils.CoerceFloat(m[models.FieldClosePrice]),
		PnL:        utils.CoerceFloat(m[models.FieldProfit]),
		Commission: utils.CoerceFloat(m[models.FieldCommission]),
		Swap:       utils.CoerceFloat(m[models.FieldSwap]),
		Comment:    m.Text(models.FieldComment),
	}
}

func (r *Reconciler) pair(g Group) (models.NormalizedTrade, error) {
	entryIdx := entryIndex(g.Legs)
	entry, exit := g.Legs[entryIdx], g.Legs[1-entryIdx]

	trade := r.base(entry)
	var err error
	if trade.OpenTime, _, err = r.Env.Time(entry, models.FieldOpenTime); err != nil {
		return models.NormalizedTrade{}, err
	}
	if trade.CloseTime, _, err = r.Env.Time(exit, models.FieldCloseTime); err != nil {
		return models.NormalizedTrade{}, err
	}
	trade.Ticket = groupTicket(g, entry)
	trade.ClosePrice = utils.CoerceFloat(exit.Mapped[models.FieldClosePrice])
	trade.PnL = utils.CoerceFloat(exit.Mapped[models.FieldProfit])
	trade.Commission = sumField(g.Legs, models.FieldCommission)
	trade.Swap = sumField(g.Legs, models.FieldSwap)
	if trade.Comment == "" {
		trade.Comment = exit.Mapped.Text(models.FieldComment)
	}
	return trade, nil
}

// many merges partial fills. The close price of a multi-leg position cannot
// be reconstructed and is left at zero.
func (r *Reconciler) many(g Group) (models.NormalizedTrade, error) {
	anchor := g.Legs[entryIndex(g.Legs)]
	trade := r.base(anchor)
	var err error
	if trade.OpenTime, _, err = r.Env.Time(anchor, models.FieldOpenTime); err != nil {
		return models.NormalizedTrade{}, err
	}

	found := false
	for _, leg := range g.Legs {
		for _, f := range []models.Field{models.FieldOpenTime, models.FieldCloseTime} {
			if !leg.Mapped.Has(f) {
				continue
			}
			t, ok, err := r.Env.Time(leg, f)
			if err != nil {
				return models.NormalizedTrade{}, err
			}
			if ok && (!found || t.After(trade.CloseTime)) {
				trade.CloseTime, found = t, true
			}
		}
	}
	if !found {
		if trade.CloseTime, _, err = r.Env.Time(anchor, models.FieldCloseTime); err != nil {
			return models.NormalizedTrade{}, err
		}
	}

	trade.Ticket = groupTicket(g, anchor)
	trade.ClosePrice = 0
	trade.PnL = sumField(g.Legs, models.FieldProfit)
	trade.Commission = sumField(g.Legs, models.FieldCommission)
	trade.Swap = sumField(g.Legs, models.FieldSwap)
	trade.Comment = fmt.Sprintf("merged %d rows", len(g.Legs))
	return trade, nil
}

// entryIndex picks the leg that opened the position: the first with an "in"
// token, else the first mentioning "buy" when no leg has in/out tokens, else
// the first leg.
func entryIndex(legs []models.Leg) int {
	hasInOut := false
	for i, leg := range legs {
		words := tokens(leg.Mapped.Text(models.FieldType))
		if words["in"] {
			return i
		}
		if words["out"] {
			hasInOut = true
		}
	}
	if !hasInOut {
		for i, leg := range legs {
			if strings.Contains(strings.ToLower(leg.Mapped.Text(models.FieldType)), "buy") {
				return i
			}
		}
	}
	return 0
}

func groupTicket(g Group, anchor models.Leg) string {
	if g.Key != "" {
		return g.Key
	}
	return anchor.Mapped.Text(models.FieldTicket)
}

func sumField(legs []models.Leg, f models.Field) float64 {
	sum := decimal.Zero
	for _, leg := range legs {
		sum = sum.Add(utils.CoerceDecimal(leg.Mapped[f]))
	}
	return sum.InexactFloat64()
}
