package models

import "time"

// WarningKind classifies a non-fatal degradation that happened during an import.
type WarningKind string

const (
	WarningDateFallback WarningKind = "date_fallback"
	WarningRowSkipped   WarningKind = "row_skipped"
)

// ImportWarning describes a row that was degraded or dropped without failing
// the whole import.
type ImportWarning struct {
	Row     int         `json:"row"` // 1-based data row index
	Kind    WarningKind `json:"kind"`
	Field   Field       `json:"field,omitempty"`
	Message string      `json:"message"`
}

// ImportResult is the successful output of one pipeline run.
type ImportResult struct {
	Broker       string            `json:"broker"`
	RowsRead     int               `json:"rowsRead"`
	Trades       []NormalizedTrade `json:"trades"`
	Warnings     []ImportWarning   `json:"warnings"`
	DegradedRows int               `json:"degradedRows"` // Distinct rows with at least one date fallback
}

// ImportBatch records one persisted import for an account.
type ImportBatch struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Broker       string    `json:"broker"`
	Filename     string    `json:"filename"`
	TradeCount   int       `json:"tradeCount"`
	DegradedRows int       `json:"degradedRows"`
	CreatedAt    time.Time `json:"createdAt"`
}
