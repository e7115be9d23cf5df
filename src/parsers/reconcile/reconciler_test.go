package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/utils"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testEnv(policy utils.FallbackPolicy) *Env {
	dates := utils.NewDateParser(policy)
	dates.Now = func() time.Time { return fixedNow }
	return NewEnv(dates, utils.DateFormatDMY)
}

func lookup(t *testing.T, key string) brokers.BrokerProfile {
	t.Helper()
	p, err := brokers.NewDefaultRegistry().Lookup(key)
	require.NoError(t, err)
	return p
}

func mappedLegs(t *testing.T, profile brokers.BrokerProfile, rows ...models.RawRow) []models.Leg {
	t.Helper()
	legs := make([]models.Leg, len(rows))
	for i, r := range rows {
		legs[i] = models.Leg{Row: i + 1, Raw: r}
	}
	require.NoError(t, MapLegs(legs, profile))
	return legs
}

func TestIsTradeLike(t *testing.T) {
	mt5 := lookup(t, brokers.KeyMT5)
	mt4 := lookup(t, brokers.KeyMT4)

	tests := []struct {
		name    string
		profile brokers.BrokerProfile
		row     models.MappedRow
		want    bool
	}{
		{"buy", mt4, models.MappedRow{models.FieldTicket: "1", models.FieldType: "buy", models.FieldSymbol: "EURUSD"}, true},
		{"deposit", mt4, models.MappedRow{models.FieldTicket: "2", models.FieldType: "balance", models.FieldSymbol: "Deposit"}, false},
		{"missing ticket", mt4, models.MappedRow{models.FieldType: "sell", models.FieldSymbol: "EURUSD"}, false},
		{"missing symbol", mt4, models.MappedRow{models.FieldTicket: "3", models.FieldType: "sell"}, false},
		{"missing type", mt4, models.MappedRow{models.FieldTicket: "3", models.FieldSymbol: "EURUSD"}, false},
		{"out token", mt5, models.MappedRow{models.FieldTicket: "5", models.FieldType: "out", models.FieldSymbol: "XAUUSD"}, true},
		{"in/out reversal", mt5, models.MappedRow{models.FieldTicket: "5", models.FieldType: "in/out", models.FieldSymbol: "XAUUSD"}, true},
		{"interest is not in", mt5, models.MappedRow{models.FieldTicket: "6", models.FieldType: "interest", models.FieldSymbol: "USD"}, false},
		{"commission is not in", mt5, models.MappedRow{models.FieldTicket: "7", models.FieldType: "commission", models.FieldSymbol: "USD"}, false},
		{"generic long", lookup(t, brokers.KeyGeneric), models.MappedRow{models.FieldType: "Long", models.FieldSymbol: "NQ"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := IsTradeLike(tc.row, tc.profile)
			assert.Equal(t, tc.want, ok)
			if !tc.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestFilter_RecordsSkippedRows(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	env := testEnv(utils.FallbackNow)
	legs := mappedLegs(t, mt4,
		models.RawRow{"Ticket": "1", "Type": "buy", "Symbol": "EURUSD"},
		models.RawRow{"Ticket": "2", "Type": "balance", "Symbol": ""},
	)

	kept := Filter(legs, mt4, env)
	require.Len(t, kept, 1)
	assert.Equal(t, 1, kept[0].Row)

	warnings := env.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, models.WarningRowSkipped, warnings[0].Kind)
	assert.Equal(t, 2, warnings[0].Row)
	assert.Zero(t, env.DegradedRows(), "skips are not date degradations")
}

func TestGroupLegs(t *testing.T) {
	mt5 := lookup(t, brokers.KeyMT5)
	legs := mappedLegs(t, mt5,
		models.RawRow{"Position": "500", "Type": "buy", "Direction": "in"},
		models.RawRow{"Position": "", "Type": "sell", "Direction": "in"},
		models.RawRow{"Position": "501", "Type": "sell", "Direction": "in"},
		models.RawRow{"Position": "500", "Type": "sell", "Direction": "out"},
		models.RawRow{"Position": "", "Type": "buy", "Direction": "out"},
	)

	groups := GroupLegs(legs, brokers.StrategyTicketGrouped)
	require.Len(t, groups, 4)
	assert.Equal(t, "500", groups[0].Key)
	assert.Equal(t, []int{1, 4}, rows(groups[0].Legs))
	assert.Equal(t, []int{2}, rows(groups[1].Legs))
	assert.Equal(t, "501", groups[2].Key)
	assert.Equal(t, []int{5}, rows(groups[3].Legs))

	assert.Len(t, GroupLegs(legs, brokers.StrategySingleRow), 5)
}

func rows(legs []models.Leg) []int {
	var out []int
	for _, l := range legs {
		out = append(out, l.Row)
	}
	return out
}

func TestReconcile_SingleRow(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	env := testEnv(utils.FallbackNow)
	legs := mappedLegs(t, mt4, models.RawRow{
		"Ticket": "1001", "Type": "buy", "Symbol": "EURUSD", "Volume": "1.0",
		"Open Time": "2024.03.01 10:00:00", "Close Time": "2024.03.01 12:30:00",
		"Open Price": "1.1000", "Close Price": "1.1050", "Profit": "50", "Commission": "-7", "Swap": "-0.5",
		"Comment": "tp hit",
	})

	trades, err := NewReconciler(mt4, env).Reconcile(context.Background(), legs, brokers.StrategySingleRow)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "1001", tr.Ticket)
	assert.Equal(t, models.DirectionBuy, tr.Direction)
	assert.Equal(t, 1.0, tr.Volume)
	assert.Equal(t, 1.1, tr.OpenPrice)
	assert.Equal(t, 1.105, tr.ClosePrice)
	assert.Equal(t, 50.0, tr.PnL)
	assert.Equal(t, -7.0, tr.Commission)
	assert.Equal(t, -0.5, tr.Swap)
	assert.Equal(t, "tp hit", tr.Comment)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), tr.OpenTime)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), tr.CloseTime)
	assert.Empty(t, env.Warnings())
}

func TestReconcile_InOutPair(t *testing.T) {
	mt5 := lookup(t, brokers.KeyMT5)
	env := testEnv(utils.FallbackNow)
	legs := mappedLegs(t, mt5,
		models.RawRow{"Position": "500", "Symbol": "XAUUSD", "Type": "sell", "Direction": "out", "Time": "2024.05.02 16:00:00",
			"Volume": "0.5", "Price": "2350.5", "Commission": "-2", "Fee": "-0.1", "Swap": "-1.2", "Profit": "125.5"},
		models.RawRow{"Position": "500", "Symbol": "XAUUSD", "Type": "buy", "Direction": "in", "Time": "2024.05.01 09:00:00",
			"Volume": "0.5", "Price": "2325.4", "Commission": "-2", "Fee": "0", "Swap": "0", "Profit": "0"},
	)

	trades, err := NewReconciler(mt5, env).Reconcile(context.Background(), legs, brokers.StrategyTicketGrouped)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "500", tr.Ticket)
	assert.Equal(t, models.DirectionBuy, tr.Direction, "direction comes from the in row")
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), tr.OpenTime)
	assert.Equal(t, 2325.4, tr.OpenPrice)
	assert.Equal(t, time.Date(2024, 5, 2, 16, 0, 0, 0, time.UTC), tr.CloseTime)
	assert.Equal(t, 2350.5, tr.ClosePrice)
	assert.Equal(t, 125.5, tr.PnL)
	assert.Equal(t, -4.1, tr.Commission, "commission and fee of both legs, summed exactly")
	assert.Equal(t, -1.2, tr.Swap)
	assert.Equal(t, 0.5, tr.Volume)
}

func TestReconcile_PairWithoutInOutUsesBuyAsEntry(t *testing.T) {
	mt5 := lookup(t, brokers.KeyMT5)
	legs := mappedLegs(t, mt5,
		models.RawRow{"Position": "9", "Symbol": "EURUSD", "Type": "sell", "Time": "2024-01-02", "Price": "1.2", "Profit": "30"},
		models.RawRow{"Position": "9", "Symbol": "EURUSD", "Type": "buy", "Time": "2024-01-01", "Price": "1.1", "Profit": "0"},
	)

	trades, err := NewReconciler(mt5, testEnv(utils.FallbackNow)).Reconcile(context.Background(), legs, brokers.StrategyTicketGrouped)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 1.1, trades[0].OpenPrice)
	assert.Equal(t, 1.2, trades[0].ClosePrice)
	assert.Equal(t, 30.0, trades[0].PnL)
}

func TestReconcile_ManyLegs(t *testing.T) {
	mt5 := lookup(t, brokers.KeyMT5)
	legs := mappedLegs(t, mt5,
		models.RawRow{"Position": "7", "Symbol": "US30", "Type": "sell", "Direction": "in", "Time": "2024.06.03 08:00:00", "Volume": "3", "Price": "39000", "Profit": "0", "Commission": "-3", "Swap": "0"},
		models.RawRow{"Position": "7", "Symbol": "US30", "Type": "buy", "Direction": "out", "Time": "2024.06.03 11:00:00", "Volume": "1", "Price": "38900", "Profit": "100.1", "Commission": "-1", "Swap": "0"},
		models.RawRow{"Position": "7", "Symbol": "US30", "Type": "buy", "Direction": "out", "Time": "2024.06.05 09:30:00", "Volume": "2", "Price": "38950", "Profit": "100.2", "Commission": "-2", "Swap": "-0.3"},
		models.RawRow{"Position": "7", "Symbol": "US30", "Type": "buy", "Direction": "out", "Time": "2024.06.04 17:00:00", "Volume": "0", "Price": "0", "Profit": "0.1", "Commission": "0", "Swap": "0"},
	)

	trades, err := NewReconciler(mt5, testEnv(utils.FallbackNow)).Reconcile(context.Background(), legs, brokers.StrategyTicketGrouped)
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, models.DirectionSell, tr.Direction)
	assert.Equal(t, 3.0, tr.Volume)
	assert.Equal(t, 39000.0, tr.OpenPrice)
	assert.Equal(t, time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC), tr.OpenTime)
	assert.Equal(t, time.Date(2024, 6, 5, 9, 30, 0, 0, time.UTC), tr.CloseTime, "latest timestamp across all legs")
	assert.Zero(t, tr.ClosePrice)
	assert.Equal(t, 200.4, tr.PnL)
	assert.Equal(t, -6.0, tr.Commission)
	assert.Equal(t, -0.3, tr.Swap)
	assert.Equal(t, "merged 4 rows", tr.Comment)
}

func TestReconcile_OpenAfterCloseIsKept(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	legs := mappedLegs(t, mt4, models.RawRow{
		"Ticket": "1", "Type": "sell", "Symbol": "GBPUSD",
		"Open Time": "2024-02-10 10:00:00", "Close Time": "2024-02-01 10:00:00",
	})
	trades, err := NewReconciler(mt4, testEnv(utils.FallbackNow)).Reconcile(context.Background(), legs, brokers.StrategySingleRow)
	require.NoError(t, err)
	assert.True(t, trades[0].OpenTime.After(trades[0].CloseTime))
}

func TestReconcile_DateFallbacks(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	row := models.RawRow{"Ticket": "1", "Type": "buy", "Symbol": "EURUSD", "Open Time": "not a date", "Close Time": "soon"}

	t.Run("now policy warns once per field", func(t *testing.T) {
		env := testEnv(utils.FallbackNow)
		trades, err := NewReconciler(mt4, env).Reconcile(context.Background(), mappedLegs(t, mt4, row), brokers.StrategySingleRow)
		require.NoError(t, err)
		assert.Equal(t, fixedNow, trades[0].OpenTime)
		assert.Equal(t, fixedNow, trades[0].CloseTime)
		require.Len(t, env.Warnings(), 2)
		assert.Equal(t, models.WarningDateFallback, env.Warnings()[0].Kind)
		assert.Equal(t, models.FieldOpenTime, env.Warnings()[0].Field)
		assert.Equal(t, 1, env.DegradedRows())
	})

	t.Run("epoch policy", func(t *testing.T) {
		env := testEnv(utils.FallbackEpoch)
		trades, err := NewReconciler(mt4, env).Reconcile(context.Background(), mappedLegs(t, mt4, row), brokers.StrategySingleRow)
		require.NoError(t, err)
		assert.Equal(t, time.Unix(0, 0).UTC(), trades[0].OpenTime)
	})

	t.Run("fail policy rejects the row", func(t *testing.T) {
		env := testEnv(utils.FallbackFail)
		_, err := NewReconciler(mt4, env).Reconcile(context.Background(), mappedLegs(t, mt4, row), brokers.StrategySingleRow)
		require.Error(t, err)
		var rowErr *RowError
		require.True(t, errors.As(err, &rowErr))
		assert.Equal(t, 1, rowErr.Row)
		assert.ErrorIs(t, err, ErrUnparseableDate)
	})
}

func TestReconcile_RecoversPanics(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	legs := mappedLegs(t, mt4,
		models.RawRow{"Ticket": "1", "Type": "buy", "Symbol": "EURUSD"},
		models.RawRow{"Ticket": "2", "Type": "sell", "Symbol": "EURUSD"},
	)
	legs = legs[1:]

	// A reconciler without an Env cannot parse dates and panics mid-merge.
	_, err := NewReconciler(mt4, nil).Reconcile(context.Background(), legs, brokers.StrategySingleRow)
	require.Error(t, err)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Row)
	assert.Contains(t, err.Error(), "recovered panic")
}

func TestReconcile_HonoursCancellation(t *testing.T) {
	mt4 := lookup(t, brokers.KeyMT4)
	legs := mappedLegs(t, mt4, models.RawRow{"Ticket": "1", "Type": "buy", "Symbol": "EURUSD"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReconciler(mt4, testEnv(utils.FallbackNow)).Reconcile(ctx, legs, brokers.StrategySingleRow)
	assert.ErrorIs(t, err, context.Canceled)
}
