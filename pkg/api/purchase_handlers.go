package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/courseloop/authd/pkg/httputil"
	"github.com/courseloop/authd/pkg/observability"
	"github.com/courseloop/authd/pkg/purchases"
)

// PurchaseHandlers serves purchase mirror ingestion.
type PurchaseHandlers struct {
	mirror *purchases.Mirror
	logger *observability.Logger
}

// NewPurchaseHandlers creates the purchase handler group. A nil mirror means
// the feature is disabled; the route then responds 503.
func NewPurchaseHandlers(mirror *purchases.Mirror, logger *observability.Logger) *PurchaseHandlers {
	return &PurchaseHandlers{mirror: mirror, logger: logger}
}

// RegisterRoutes registers mirror routes. Internal only.
func (h *PurchaseHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/internal/purchases/changes", h.ingest).Methods("POST")
}

// ingest handles POST /internal/purchases/changes. The batch is processed
// best-effort; failures are counted, not retried here.
func (h *PurchaseHandlers) ingest(w http.ResponseWriter, r *http.Request) {
	if h.mirror == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "purchase mirror disabled")
		return
	}

	var event purchases.ChangeEvent
	if !httputil.ParseJSONOrError(w, r, &event) {
		return
	}

	mirrored, failed := h.mirror.Process(r.Context(), event)
	httputil.WriteSuccess(w, map[string]int{
		"processed": mirrored,
		"failed":    failed,
	})
}
