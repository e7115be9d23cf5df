// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/pipeline"
)

var ErrPersistenceFailed = errors.New("failed to store imported trades")

// BrokerInfo is the public description of a broker profile.
type BrokerInfo struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	FileTypes []string `json:"fileTypes"`
	Parser    string   `json:"parser"`
}

// ImportOutcome is the result of a persisted import.
type ImportOutcome struct {
	Batch  models.ImportBatch   `json:"batch"`
	Result *models.ImportResult `json:"result"`
}

// ImportService is the application-facing side of the import pipeline.
type ImportService interface {
	// Preview runs the pipeline without storing anything.
	Preview(ctx context.Context, req pipeline.Request) (*models.ImportResult, error)
	Import(ctx context.Context, req pipeline.Request, accountID string) (*ImportOutcome, error)

	GetTrades(ctx context.Context, accountID string) ([]models.StoredTrade, error)
	GetSummary(ctx context.Context, accountID string) (models.TradeSummary, error)
	GetImports(ctx context.Context, accountID string) ([]models.ImportBatch, error)
	DeleteTrades(ctx context.Context, accountID string) (int64, error)

	Brokers() []BrokerInfo
	Instructions(key string) ([]string, error)
	InvalidateAccountCache(accountID string)
}

// compile-time check
var _ ImportService = (*importServiceImpl)(nil)

func brokerInfo(p brokers.BrokerProfile) BrokerInfo {
	types := make([]string, len(p.FileTypes))
	for i, ft := range p.FileTypes {
		types[i] = string(ft)
	}
	return BrokerInfo{Key: p.Key, Name: p.Name, FileTypes: types, Parser: string(p.Parser)}
}
