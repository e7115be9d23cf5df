package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type BrokerHandler struct {
	importService services.ImportService
}

func NewBrokerHandler(service services.ImportService) *BrokerHandler {
	return &BrokerHandler{importService: service}
}

func (h *BrokerHandler) HandleListBrokers(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, http.StatusOK, h.importService.Brokers())
}

func (h *BrokerHandler) HandleGetInstructions(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	steps, err := h.importService.Instructions(key)
	if err != nil {
		if errors.Is(err, brokers.ErrBrokerNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.ErrorFromContext(r.Context(), "Error retrieving broker instructions", "broker", key, "error", err)
		utils.SendJSONError(w, "Error retrieving instructions", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]any{"broker": key, "instructions": steps})
}
