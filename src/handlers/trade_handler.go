// backend/src/handlers/trade_handler.go
package handlers

import (
	"net/http"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type TradeHandler struct {
	importService services.ImportService
}

func NewTradeHandler(service services.ImportService) *TradeHandler {
	return &TradeHandler{importService: service}
}

func (h *TradeHandler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}
	trades, err := h.importService.GetTrades(r.Context(), accountID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error retrieving trades", "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Error retrieving trades", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, trades)
}

func (h *TradeHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}
	summary, err := h.importService.GetSummary(r.Context(), accountID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error computing trade summary", "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Error computing summary", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, summary)
}

func (h *TradeHandler) HandleDeleteTrades(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}
	deleted, err := h.importService.DeleteTrades(r.Context(), accountID)
	if err != nil {
		logger.ErrorFromContext(r.Context(), "Error deleting trades", "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Error deleting trades", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
