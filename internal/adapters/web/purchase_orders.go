package web

import (
	"net/http"

	"invoice-auditor/internal/app"
	"invoice-auditor/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createPurchaseOrderRequest struct {
	PONumber    string          `json:"po_number"`
	Vendor      string          `json:"vendor"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	IssueDate   *string         `json:"issue_date"`
	Items       []core.LineItem `json:"items"`
}

// apiCreatePurchaseOrder handles POST /api/purchase-orders.
func (h *Handler) apiCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.CreatePurchaseOrder(r.Context(), app.CreatePurchaseOrderRequest{
		CallerID:    callerFromContext(r.Context()),
		PONumber:    req.PONumber,
		Vendor:      req.Vendor,
		TotalAmount: req.TotalAmount,
		IssueDate:   req.IssueDate,
		Items:       req.Items,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.PurchaseOrder)
}

// apiGetPurchaseOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) apiGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetPurchaseOrder(r.Context(), callerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.PurchaseOrder)
}
