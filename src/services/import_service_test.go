package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/pipeline"
	"github.com/username/tradejournal/backend/src/processors"
)

const statementCSV = `Ticket,Open Time,Type,Volume,Symbol,Open Price,Close Time,Close Price,Commission,Swap,Profit
1001,2024.03.01 10:00:00,buy,1.0,EURUSD,1.1000,2024.03.01 12:00:00,1.1050,0,0,50
1002,2024.03.01 13:00:00,balance,,,,,,,,1000
1003,2024.03.04 09:15:00,sell,0.50,GBPUSD,1.2700,2024.03.04 16:45:00,1.2650,-3.50,-0.25,25
`

func newTestService(t *testing.T) (*importServiceImpl, *sql.DB) {
	t.Helper()
	db, err := database.OpenDB(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	svc := NewImportService(
		pipeline.New(brokers.NewDefaultRegistry()),
		db,
		processors.NewSummaryProcessor(),
		cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	)
	return svc.(*importServiceImpl), db
}

func statementRequest() pipeline.Request {
	return pipeline.Request{Data: []byte(statementCSV), Filename: "statement.csv", BrokerKey: "mt4"}
}

func TestImportService_PreviewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Preview(ctx, statementRequest())
	require.NoError(t, err)
	assert.Len(t, res.Trades, 2)

	trades, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestImportService_ImportAndRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	out, err := svc.Import(ctx, statementRequest(), "acct-1")
	require.NoError(t, err)
	assert.NotEmpty(t, out.Batch.ID)
	assert.Equal(t, "mt4", out.Batch.Broker)
	assert.Equal(t, "statement.csv", out.Batch.Filename)
	assert.Equal(t, 2, out.Batch.TradeCount)
	for _, tr := range out.Result.Trades {
		assert.Equal(t, "acct-1", tr.AccountID)
	}

	trades, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, out.Batch.ID, trades[0].ImportID)
	assert.Equal(t, "1001", trades[0].Ticket)

	summary, err := svc.GetSummary(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TradeCount)
	assert.Equal(t, 71.25, summary.NetPnL)

	imports, err := svc.GetImports(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, out.Batch.ID, imports[0].ID)
}

func TestImportService_ImportInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	before, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, before)
	_, err = svc.GetSummary(ctx, "acct-1")
	require.NoError(t, err)

	_, err = svc.Import(ctx, statementRequest(), "acct-1")
	require.NoError(t, err)

	after, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, after, 2)
	summary, err := svc.GetSummary(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TradeCount)
}

func TestImportService_CachedReadsSkipTheDatabase(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.Import(ctx, statementRequest(), "acct-1")
	require.NoError(t, err)
	first, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM trades`)
	require.NoError(t, err)

	cached, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	svc.InvalidateAccountCache("acct-1")
	fresh, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestImportService_DeleteTrades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Import(ctx, statementRequest(), "acct-1")
	require.NoError(t, err)
	_, err = svc.Import(ctx, statementRequest(), "acct-2")
	require.NoError(t, err)
	_, err = svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)

	deleted, err := svc.DeleteTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	trades, err := svc.GetTrades(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, trades)
	imports, err := svc.GetImports(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, imports)

	other, err := svc.GetTrades(ctx, "acct-2")
	require.NoError(t, err)
	assert.Len(t, other, 2)
}

func TestImportService_ImportErrorsPassThrough(t *testing.T) {
	svc, _ := newTestService(t)
	req := statementRequest()
	req.BrokerKey = "acme"

	_, err := svc.Import(context.Background(), req, "acct-1")
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedBroker)
}

func TestImportService_PersistenceFailure(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Close())

	_, err := svc.Import(context.Background(), statementRequest(), "acct-1")
	assert.ErrorIs(t, err, ErrPersistenceFailed)
}

func TestImportService_Brokers(t *testing.T) {
	svc, _ := newTestService(t)

	list := svc.Brokers()
	require.NotEmpty(t, list)
	keys := make([]string, len(list))
	for i, b := range list {
		keys[i] = b.Key
		assert.NotEmpty(t, b.FileTypes, b.Key)
	}
	assert.Contains(t, keys, brokers.KeyMT4)
	assert.Contains(t, keys, brokers.KeyGeneric)

	steps, err := svc.Instructions("MT5")
	require.NoError(t, err)
	assert.NotEmpty(t, steps)

	_, err = svc.Instructions("acme")
	assert.ErrorIs(t, err, brokers.ErrBrokerNotFound)
}
