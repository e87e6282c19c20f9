package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"invoice-auditor/internal/app"

	"github.com/go-chi/chi/v5"
)

// Handler holds the AuditService and the chi router.
type Handler struct {
	svc       app.AuditService
	router    chi.Router
	jwtSecret string
	logger    *slog.Logger
}

// NewHandler creates and wires the chi router with all routes.
// metrics may be nil, in which case /metrics is not served. A nil logger uses slog.Default.
func NewHandler(svc app.AuditService, allowedOrigins, jwtSecret string, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(accessLog(logger))
	r.Use(recoverPanics(logger))
	r.Use(allowOrigins(parseOrigins(allowedOrigins)))

	// Public
	r.Get("/api/health", h.health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// Caller-scoped API, 1 MB body limit.
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(limitBody(1 << 20))

		r.Post("/api/audits", h.apiCreateAudit)
		r.Get("/api/audits", h.apiListAudits)
		r.Get("/api/audits/{id}", h.apiGetAudit)

		r.Post("/api/purchase-orders", h.apiCreatePurchaseOrder)
		r.Get("/api/purchase-orders/{id}", h.apiGetPurchaseOrder)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by the limitBody middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
