package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

// RouterConfig carries the HTTP settings of the API.
type RouterConfig struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	Limiter        *rate.Limiter // nil disables rate limiting
}

// NewRouter wires the import API on a chi router.
func NewRouter(service services.ImportService, cfg RouterConfig) http.Handler {
	brokerHandler := NewBrokerHandler(service)
	importHandler := NewImportHandler(service, cfg.MaxUploadBytes)
	tradeHandler := NewTradeHandler(service)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(ProxyHeadersMiddleware)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	if cfg.Limiter != nil {
		r.Use(RateLimitMiddleware(cfg.Limiter))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, http.StatusOK, map[string]string{"message": "Trade journal backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/brokers", brokerHandler.HandleListBrokers)
		r.Get("/brokers/{key}/instructions", brokerHandler.HandleGetInstructions)

		r.Post("/imports/preview", importHandler.HandlePreview)

		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Post("/imports", importHandler.HandleImport)
			r.Get("/imports", importHandler.HandleListImports)
			r.Get("/trades", tradeHandler.HandleGetTrades)
			r.Delete("/trades", tradeHandler.HandleDeleteTrades)
			r.Get("/summary", tradeHandler.HandleGetSummary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			utils.SendJSONError(w, "Not found", http.StatusNotFound)
			return
		}
		http.NotFound(w, r)
	})

	return r
}
