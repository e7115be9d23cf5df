package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/reconcile"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/utils"
)

var fixedNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func newPipeline(opts ...Option) *Pipeline {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(brokers.NewDefaultRegistry(), opts...)
}

const mt4CSV = `Ticket,Open Time,Type,Volume,Symbol,Open Price,Close Time,Close Price,Commission,Swap,Profit
1001,2024.03.01 10:00:00,buy,1.0,EURUSD,1.1000,2024.03.01 12:00:00,1.1050,0,0,50
1002,2024.03.01 13:00:00,balance,,,,,,,,1000
1003,2024.03.04 09:15:00,sell,0.50,GBPUSD,1.2700,2024.03.04 16:45:00,1.2650,-3.50,-0.25,25
`

func TestRun_MT4CSV(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), Request{
		Data: []byte(mt4CSV), Filename: "statement.csv", BrokerKey: "MT4",
	})
	require.NoError(t, err)

	assert.Equal(t, brokers.KeyMT4, res.Broker)
	assert.Equal(t, 3, res.RowsRead)
	require.Len(t, res.Trades, 2, "the deposit row is excluded")

	tr := res.Trades[0]
	assert.NotEmpty(t, tr.ID)
	assert.Empty(t, tr.AccountID)
	assert.Equal(t, []string{}, tr.Tags)
	assert.Equal(t, "1001", tr.Ticket)
	assert.Equal(t, models.DirectionBuy, tr.Direction)
	assert.Equal(t, 1.0, tr.Volume)
	assert.Equal(t, 50.0, tr.PnL)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), tr.OpenTime)

	assert.Equal(t, models.DirectionSell, res.Trades[1].Direction)
	assert.Equal(t, -3.5, res.Trades[1].Commission)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, models.WarningRowSkipped, res.Warnings[0].Kind)
	assert.Equal(t, 2, res.Warnings[0].Row)
	assert.Zero(t, res.DegradedRows)
}

const mt4HTML = `<html><body>
<table>
<tr><td colspan="3"><b>Account: 123456</b></td><td colspan="3">Name: Jane Trader</td></tr>
<tr><td colspan="6"><b>Closed Transactions:</b></td></tr>
<tr><td>Ticket</td><td>Open Time</td><td>Type</td><td>Size</td><td>Item</td><td>Price</td><td>Close Time</td><td>Price</td><td>Profit</td></tr>
<tr><td>2001</td><td>2024.04.02 08:00:00</td><td>sell</td><td>0.10</td><td>usdjpy</td><td>151.20</td><td>2024.04.02 10:30:00</td><td>150.90</td><td>1&nbsp;980.00</td></tr>
<tr><td>2002</td><td>2024.04.03 08:00:00</td><td>buy stop</td><td>0.10</td><td>usdjpy</td><td>152.00</td><td>2024.04.03 10:30:00</td><td>cancelled</td><td></td></tr>
</table></body></html>`

func TestRun_MT4DetailedStatement(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), Request{
		Data: []byte(mt4HTML), Filename: "Statement.htm", BrokerKey: "mt4",
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, "2001", tr.Ticket)
	assert.Equal(t, "usdjpy", tr.Symbol)
	assert.Equal(t, models.DirectionSell, tr.Direction)
	assert.Equal(t, 0.1, tr.Volume)
	assert.Equal(t, 151.2, tr.OpenPrice, "first Price column is the open price")
	assert.Equal(t, 150.9, tr.ClosePrice, "repeated Price column is the close price")
	assert.Equal(t, 1980.0, tr.PnL)
	assert.Equal(t, 2, res.RowsRead, "title rows above the header are not data")
}

func buildMT5Workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Trade History Report"},
		{"Time", "Deal", "Symbol", "Type", "Direction", "Volume", "Price", "Order", "Commission", "Fee", "Swap", "Profit", "Balance", "Comment", "Position"},
		{"2024.05.01 08:00:00", "1", "", "balance", "", "", "", "", "", "", "", "5000", "5000", "Deposit", ""},
		{"2024.05.01 09:00:00", "2", "XAUUSD", "buy", "in", "0.5", "2325.4", "11", "-2", "0", "0", "0", "5000", "", "500"},
		{"2024.05.02 16:00:00", "3", "XAUUSD", "sell", "out", "0.5", "2350.5", "12", "-2", "-0.1", "-1.2", "125.5", "5122.2", "tp 2350.5", "500"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRun_MT5Workbook(t *testing.T) {
	res, err := newPipeline().Run(context.Background(), Request{
		Data: buildMT5Workbook(t), Filename: "ReportHistory.xlsx", BrokerKey: "mt5",
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, "500", tr.Ticket)
	assert.Equal(t, models.DirectionBuy, tr.Direction)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), tr.OpenTime)
	assert.Equal(t, 2325.4, tr.OpenPrice)
	assert.Equal(t, time.Date(2024, 5, 2, 16, 0, 0, 0, time.UTC), tr.CloseTime)
	assert.Equal(t, 2350.5, tr.ClosePrice)
	assert.Equal(t, 125.5, tr.PnL)
	assert.Equal(t, -4.1, tr.Commission)
	assert.Equal(t, -1.2, tr.Swap)
	assert.Equal(t, "tp 2350.5", tr.Comment)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"unknown broker", Request{Data: []byte(mt4CSV), Filename: "a.csv", BrokerKey: "acme"}, ErrUnsupportedBroker},
		{"header only", Request{Data: []byte("Ticket,Type,Symbol\n"), Filename: "a.csv", BrokerKey: "mt4"}, tabular.ErrEmptyFile},
		{"empty file", Request{Data: nil, Filename: "a.csv", BrokerKey: "mt4"}, tabular.ErrEmptyFile},
		{"no trades", Request{Data: []byte("Ticket,Type,Symbol,Profit\n1,balance,,100\n2,credit,,5\n"), Filename: "a.csv", BrokerKey: "mt4"}, ErrNoTradesFound},
		{"pdf", Request{Data: []byte("%PDF"), Filename: "a.pdf", BrokerKey: "mt4"}, tabular.ErrUnsupportedFormat},
		{"html for csv-only broker", Request{Data: []byte(mt4HTML), Filename: "a.html", BrokerKey: "tradelocker"}, tabular.ErrUnsupportedFormat},
		{"html without table", Request{Data: []byte("<html><p>nothing</p></html>"), Filename: "a.html", BrokerKey: "mt4"}, tabular.ErrNoTableFound},
		{"bad date format", Request{Data: []byte(mt4CSV), Filename: "a.csv", BrokerKey: "mt4", DateFormat: "YY.MM"}, utils.ErrInvalidDateFormat},
		{"bad alias field", Request{Data: []byte(mt4CSV), Filename: "a.csv", BrokerKey: "acme", CustomAliases: brokers.CustomAliases{"isin": {"ISIN"}}}, brokers.ErrInvalidAliasConfig},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newPipeline().Run(context.Background(), tc.req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRun_CustomAliasesForUnknownBroker(t *testing.T) {
	csv := "Deal #;Market;Side;Opened;Closed;Lots;Net\n" +
		"A-1;DAX40;Long;05/03/2024 09:00;05/03/2024 09:30;2;1.234,50\n" +
		"A-2;DAX40;Short;06/03/2024 10:00;06/03/2024 10:05;1;-80\n"

	res, err := newPipeline().Run(context.Background(), Request{
		Data:      []byte(csv),
		Filename:  "export.csv",
		BrokerKey: "My Prop Firm",
		CustomAliases: brokers.CustomAliases{
			"ticket":    {"Deal #"},
			"closeTime": {"Closed"},
			"pnl":       {"Net"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "my prop firm", res.Broker)
	require.Len(t, res.Trades, 2)

	tr := res.Trades[0]
	assert.Equal(t, "A-1", tr.Ticket)
	assert.Equal(t, models.DirectionBuy, tr.Direction)
	assert.Equal(t, 1234.5, tr.PnL)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), tr.OpenTime, "DD/MM/YYYY is the default hint")
	assert.Equal(t, time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC), tr.CloseTime)
	assert.Equal(t, models.DirectionSell, res.Trades[1].Direction)
}

func TestRun_DateHintAndFallback(t *testing.T) {
	csv := "Symbol,Type,Open Time,Close Time,Profit\n" +
		"ES,buy,03/05/2024,03/06/2024,10\n" +
		"ES,sell,yesterday,03/07/2024,-5\n"

	res, err := newPipeline().Run(context.Background(), Request{
		Data: []byte(csv), Filename: "trades.csv", BrokerKey: "generic", DateFormat: utils.DateFormatMDY,
	})
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), res.Trades[0].OpenTime)
	assert.Equal(t, fixedNow, res.Trades[1].OpenTime)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), res.Trades[1].CloseTime)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, models.WarningDateFallback, w.Kind)
	assert.Equal(t, 2, w.Row)
	assert.Equal(t, models.FieldOpenTime, w.Field)
	assert.Equal(t, 1, res.DegradedRows)
}

func TestRun_RowProcessingError(t *testing.T) {
	csv := "Symbol,Type,Open Time,Close Time\n" +
		"ES,buy,2024-03-05,2024-03-05\n" +
		"ES,sell,2024-03-06,2024-03-06\n" +
		"NQ,buy,not a date,2024-03-07\n"

	_, err := newPipeline(WithFallbackPolicy(utils.FallbackFail)).Run(context.Background(), Request{
		Data: []byte(csv), Filename: "trades.csv", BrokerKey: "generic",
	})
	require.Error(t, err)

	var rowErr *RowProcessingError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 3, rowErr.Row)
	assert.ErrorIs(t, err, ErrRowProcessing)
	assert.ErrorIs(t, err, reconcile.ErrUnparseableDate)
	assert.Contains(t, err.Error(), "row 3")
}

func TestRun_ValidationFailureNamesSourceRow(t *testing.T) {
	csv := "Symbol,Type,Open Time,Close Time\n" +
		"balance,deposit,2024-03-05,2024-03-05\n" +
		"ES,buy,2024-03-05,2024-03-05\n" +
		strings.Repeat("X", validation.MaxSymbolLength+1) + ",sell,2024-03-06,2024-03-06\n"

	_, err := newPipeline().Run(context.Background(), Request{
		Data: []byte(csv), Filename: "trades.csv", BrokerKey: "generic",
	})
	var rowErr *RowProcessingError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Row)
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}

func TestRun_IsDeterministicApartFromIDs(t *testing.T) {
	p := newPipeline()
	req := Request{Data: []byte(mt4CSV), Filename: "statement.csv", BrokerKey: "mt4"}

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, second.Trades, len(first.Trades))
	for i := range first.Trades {
		a, b := first.Trades[i], second.Trades[i]
		assert.NotEqual(t, a.ID, b.ID)
		a.ID, b.ID = "", ""
		assert.Equal(t, a, b)
	}
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline().Run(ctx, Request{Data: []byte(mt4CSV), Filename: "statement.csv", BrokerKey: "mt4"})
	assert.ErrorIs(t, err, context.Canceled)
}

func buildDateOnlyWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	dateOnly, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Ticket", "Symbol", "Type", "Volume", "Open Date", "Close Date", "Profit"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"T-1", "US500", "buy", 2, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), 42.5}))
	require.NoError(t, f.SetCellStyle("Sheet1", "E2", "F2", dateOnly))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRun_DateOnlyWorkbookCells(t *testing.T) {
	data := buildDateOnlyWorkbook(t)
	for _, hint := range utils.SupportedDateFormats {
		t.Run(string(hint), func(t *testing.T) {
			res, err := newPipeline().Run(context.Background(), Request{
				Data: data, Filename: "trades.xlsx", BrokerKey: "generic", DateFormat: hint,
			})
			require.NoError(t, err)
			require.Len(t, res.Trades, 1)

			tr := res.Trades[0]
			assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), tr.OpenTime)
			assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), tr.CloseTime)
			assert.Equal(t, 42.5, tr.PnL)
			assert.Empty(t, res.Warnings)
			assert.Zero(t, res.DegradedRows)
		})
	}
}
