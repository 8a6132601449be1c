package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cryptoavisos/gateway/middleware"
	"cryptoavisos/integrations/journal"
	"cryptoavisos/native/market"
)

// EventSource serves journaled events. It is optional.
type EventSource interface {
	List(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
}

type Config struct {
	Engine        *market.Engine
	Events        EventSource
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
	ServiceName   string
}

type handler struct {
	engine *market.Engine
	events EventSource
	logger *slog.Logger
}

// New builds the gateway handler. Reads are public; every mutation requires a
// bearer token whose subject becomes the caller.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("routes: engine required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("routes: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "avisos-gateway"
	}
	h := &handler{engine: cfg.Engine, events: cfg.Events, logger: logger.With("component", "gateway")}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
		r.Handle("/metrics", cfg.Observability.MetricsHandler())
	}
	r.Get("/healthz", h.health)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(pub chi.Router) {
			if cfg.RateLimiter != nil {
				pub.Use(cfg.RateLimiter.Middleware)
			}
			pub.Get("/products", h.listProducts)
			pub.Get("/products/{id}", h.getProduct)
			pub.Get("/tickets", h.listTickets)
			pub.Get("/tickets/export", h.exportTickets)
			pub.Get("/tickets/{id}", h.getTicket)
			pub.Get("/fees", h.getFee)
			pub.Get("/claimable", h.getClaimable)
			pub.Get("/shipping", h.getShipping)
			pub.Get("/whitelist/{address}", h.getWhitelisted)
			pub.Get("/accounts/{address}", h.getAccount)
			pub.Get("/events", h.listEvents)
		})

		v1.Group(func(auth chi.Router) {
			auth.Use(cfg.Authenticator.Middleware)
			if cfg.RateLimiter != nil {
				auth.Use(cfg.RateLimiter.Middleware)
			}
			auth.Post("/products", h.submitProduct)
			auth.Put("/products/{id}", h.updateProduct)
			auth.Post("/products/{id}/enable", h.switchEnable)
			auth.Post("/products/{id}/stock/add", h.addStock)
			auth.Post("/products/{id}/stock/remove", h.removeStock)
			auth.Post("/products/batch", h.batchSubmit)
			auth.Put("/products/batch", h.batchUpdate)
			auth.Post("/products/batch/enable", h.batchEnable)
			auth.Post("/products/batch/stock/add", h.batchAddStock)
			auth.Post("/products/batch/stock/remove", h.batchRemoveStock)

			auth.Post("/tickets", h.payProduct)
			auth.Post("/tickets/{id}/release", h.releasePay)
			auth.Post("/tickets/{id}/refund", h.refundProduct)

			auth.Post("/whitelist", h.addWhitelisted)
			auth.Delete("/whitelist/{address}", h.removeWhitelisted)
			auth.Post("/claims/fees", h.claimFees)
			auth.Post("/claims/shipping", h.claimShipping)
			auth.Post("/fees/prepare", h.prepareFee)
			auth.Post("/fees/implement", h.implementFee)
			auth.Put("/shipping/signer", h.setSigner)
			auth.Post("/accounts/approve", h.approve)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName), nil
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	seq, err := h.engine.Sequence()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "sequence": seq})
}

func caller(r *http.Request) common.Address {
	addr, _ := middleware.CallerFromContext(r.Context())
	return addr
}
