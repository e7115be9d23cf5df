package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
	"github.com/username/tradejournal/backend/src/pipeline"
	"github.com/username/tradejournal/backend/src/utils"
)

// importErrorStatus maps an import failure to its HTTP status.
func importErrorStatus(err error) int {
	switch {
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pipeline.ErrUnsupportedBroker),
		errors.Is(err, brokers.ErrInvalidAliasConfig),
		errors.Is(err, utils.ErrInvalidDateFormat):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrRowProcessing),
		errors.Is(err, tabular.ErrNoTableFound),
		errors.Is(err, tabular.ErrEmptyFile),
		errors.Is(err, pipeline.ErrNoTradesFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeImportError sends err as JSON. Row failures carry the offending row.
func writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	status := importErrorStatus(err)
	if status == http.StatusInternalServerError {
		logger.ErrorFromContext(r.Context(), "Import failed", "error", err)
		requestID, _ := GetRequestIDFromContext(r.Context())
		utils.SendJSONErrorWithDetails(w, "Failed to process the uploaded file", status, map[string]any{"requestId": requestID})
		return
	}

	logger.WarnFromContext(r.Context(), "Import rejected", "status", status, "error", err)
	var rowErr *pipeline.RowProcessingError
	if errors.As(err, &rowErr) {
		utils.SendJSONErrorWithDetails(w, err.Error(), status, map[string]any{"row": rowErr.Row})
		return
	}
	utils.SendJSONError(w, err.Error(), status)
}
