package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
)

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertTradeQuery = `
	INSERT INTO trades (id, account_id, import_id, ticket, symbol, direction, open_time, close_time,
		volume, open_price, close_price, pnl, commission, swap, comment, tags, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateImportBatch stores the batch row. CreatedAt is set when it is zero.
func CreateImportBatch(ctx context.Context, db Execer, batch *models.ImportBatch) error {
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
	INSERT INTO import_batches (id, account_id, broker, filename, trade_count, degraded_rows, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID, batch.AccountID, batch.Broker, batch.Filename, batch.TradeCount, batch.DegradedRows, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert import batch %s: %w", batch.ID, err)
	}
	return nil
}

// InsertTrades stores trades for accountID under importID in a single transaction.
// The import batch must already exist.
func InsertTrades(ctx context.Context, db *sql.DB, importID, accountID string, trades []models.NormalizedTrade) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		return insertTrades(ctx, tx, importID, accountID, trades)
	})
}

// SaveImport stores the batch and its trades atomically.
func SaveImport(ctx context.Context, db *sql.DB, batch *models.ImportBatch, trades []models.NormalizedTrade) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if err := CreateImportBatch(ctx, tx, batch); err != nil {
			return err
		}
		return insertTrades(ctx, tx, batch.ID, batch.AccountID, trades)
	})
}

func insertTrades(ctx context.Context, tx *sql.Tx, importID, accountID string, trades []models.NormalizedTrade) error {
	stmt, err := tx.PrepareContext(ctx, insertTradeQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, t := range trades {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of trade %s: %w", t.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			t.ID, accountID, importID, t.Ticket, t.Symbol, string(t.Direction),
			t.OpenTime.UTC(), t.CloseTime.UTC(),
			t.Volume, t.OpenPrice, t.ClosePrice, t.PnL, t.Commission, t.Swap,
			t.Comment, string(tagsJSON), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.L.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

// GetTradesByAccount returns the stored trades of an account ordered by close time.
func GetTradesByAccount(ctx context.Context, db *sql.DB, accountID string) ([]models.StoredTrade, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT id, account_id, import_id, ticket, symbol, direction, open_time, close_time,
		volume, open_price, close_price, pnl, commission, swap, comment, tags, created_at
	FROM trades WHERE account_id = ? ORDER BY close_time, rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for account %s: %w", accountID, err)
	}
	defer rows.Close()

	trades := []models.StoredTrade{}
	for rows.Next() {
		var (
			t         models.StoredTrade
			direction string
			tagsJSON  string
		)
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.ImportID, &t.Ticket, &t.Symbol, &direction,
			&t.OpenTime, &t.CloseTime,
			&t.Volume, &t.OpenPrice, &t.ClosePrice, &t.PnL, &t.Commission, &t.Swap,
			&t.Comment, &tagsJSON, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		t.Direction = models.Direction(direction)
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			logger.L.Warn("Stored trade has malformed tags", "tradeID", t.ID, "error", err)
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DeleteTradesByAccount removes every trade and import batch of an account
// and reports how many trades were deleted.
func DeleteTradesByAccount(ctx context.Context, db *sql.DB, accountID string) (int64, error) {
	var deleted int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE account_id = ?`, accountID)
		if err != nil {
			return fmt.Errorf("failed to delete trades for account %s: %w", accountID, err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM import_batches WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("failed to delete import batches for account %s: %w", accountID, err)
		}
		return nil
	})
	return deleted, err
}

// GetImportBatches lists the imports of an account, newest first.
func GetImportBatches(ctx context.Context, db *sql.DB, accountID string) ([]models.ImportBatch, error) {
	rows, err := db.QueryContext(ctx, `
	SELECT id, account_id, broker, filename, trade_count, degraded_rows, created_at
	FROM import_batches WHERE account_id = ? ORDER BY created_at DESC, rowid DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import batches for account %s: %w", accountID, err)
	}
	defer rows.Close()

	batches := []models.ImportBatch{}
	for rows.Next() {
		var b models.ImportBatch
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Broker, &b.Filename, &b.TradeCount, &b.DegradedRows, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import batch row: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
