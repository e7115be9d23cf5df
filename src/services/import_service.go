// backend/src/services/import_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/model"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/pipeline"
	"github.com/username/tradejournal/backend/src/processors"
)

const (
	ckAccountTrades        = "res_trades_account_%s"
	ckAccountSummary       = "agg_summary_account_%s"
	ckAccountImports       = "res_imports_account_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type importServiceImpl struct {
	pipeline         *pipeline.Pipeline
	db               *sql.DB
	summaryProcessor processors.SummaryProcessor
	reportCache      *cache.Cache
	newID            func() string
}

func NewImportService(p *pipeline.Pipeline, db *sql.DB, summaryProcessor processors.SummaryProcessor, reportCache *cache.Cache) ImportService {
	if reportCache == nil {
		reportCache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	return &importServiceImpl{
		pipeline:         p,
		db:               db,
		summaryProcessor: summaryProcessor,
		reportCache:      reportCache,
		newID:            uuid.NewString,
	}
}

func (s *importServiceImpl) Preview(ctx context.Context, req pipeline.Request) (*models.ImportResult, error) {
	return s.pipeline.Run(ctx, req)
}

func (s *importServiceImpl) Import(ctx context.Context, req pipeline.Request, accountID string) (*ImportOutcome, error) {
	result, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	for i := range result.Trades {
		result.Trades[i].AccountID = accountID
	}
	batch := models.ImportBatch{
		ID:           s.newID(),
		AccountID:    accountID,
		Broker:       result.Broker,
		Filename:     req.Filename,
		TradeCount:   len(result.Trades),
		DegradedRows: result.DegradedRows,
	}
	if err := model.SaveImport(ctx, s.db, &batch, result.Trades); err != nil {
		logger.ErrorFromContext(ctx, "Failed to persist import", "accountID", accountID, "importID", batch.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	s.InvalidateAccountCache(accountID)

	logger.InfoFromContext(ctx, "Import stored", "accountID", accountID, "importID", batch.ID, "trades", batch.TradeCount)
	return &ImportOutcome{Batch: batch, Result: result}, nil
}

func (s *importServiceImpl) GetTrades(ctx context.Context, accountID string) ([]models.StoredTrade, error) {
	cacheKey := fmt.Sprintf(ckAccountTrades, accountID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for trades", "accountID", accountID)
		return cached.([]models.StoredTrade), nil
	}

	trades, err := model.GetTradesByAccount(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, trades, cache.DefaultExpiration)
	return trades, nil
}

func (s *importServiceImpl) GetSummary(ctx context.Context, accountID string) (models.TradeSummary, error) {
	cacheKey := fmt.Sprintf(ckAccountSummary, accountID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(models.TradeSummary), nil
	}

	stored, err := s.GetTrades(ctx, accountID)
	if err != nil {
		return models.TradeSummary{}, err
	}
	trades := make([]models.NormalizedTrade, len(stored))
	for i, t := range stored {
		trades[i] = t.NormalizedTrade
	}
	summary := s.summaryProcessor.Process(trades)
	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *importServiceImpl) GetImports(ctx context.Context, accountID string) ([]models.ImportBatch, error) {
	cacheKey := fmt.Sprintf(ckAccountImports, accountID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.ImportBatch), nil
	}

	batches, err := model.GetImportBatches(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(cacheKey, batches, cache.DefaultExpiration)
	return batches, nil
}

func (s *importServiceImpl) DeleteTrades(ctx context.Context, accountID string) (int64, error) {
	deleted, err := model.DeleteTradesByAccount(ctx, s.db, accountID)
	if err != nil {
		return 0, err
	}
	s.InvalidateAccountCache(accountID)
	logger.InfoFromContext(ctx, "Deleted account trades", "accountID", accountID, "deleted", deleted)
	return deleted, nil
}

func (s *importServiceImpl) Brokers() []BrokerInfo {
	profiles := s.pipeline.Registry().Profiles()
	out := make([]BrokerInfo, len(profiles))
	for i, p := range profiles {
		out[i] = brokerInfo(p)
	}
	return out
}

func (s *importServiceImpl) Instructions(key string) ([]string, error) {
	return s.pipeline.Registry().Instructions(key)
}

func (s *importServiceImpl) InvalidateAccountCache(accountID string) {
	for _, format := range []string{ckAccountTrades, ckAccountSummary, ckAccountImports} {
		s.reportCache.Delete(fmt.Sprintf(format, accountID))
	}
	logger.L.Debug("Invalidated account cache", "accountID", accountID)
}
