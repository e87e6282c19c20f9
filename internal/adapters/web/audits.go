package web

import (
	"net/http"
	"strconv"

	"invoice-auditor/internal/app"
	"invoice-auditor/internal/core"

	"github.com/go-chi/chi/v5"
)

type createAuditRequest struct {
	FileName      string                 `json:"file_name"`
	FileType      string                 `json:"file_type"`
	DocumentText  string                 `json:"document_text"`
	ExtractedData *core.ExtractedInvoice `json:"extracted_data"`
	POID          string                 `json:"po_id"`
	PurchaseOrder *core.PurchaseOrder    `json:"purchase_order"`
}

type auditResponse struct {
	Invoice *core.Invoice     `json:"invoice,omitempty"`
	Audit   *core.AuditRecord `json:"audit"`
}

// apiCreateAudit handles POST /api/audits.
func (h *Handler) apiCreateAudit(w http.ResponseWriter, r *http.Request) {
	var req createAuditRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.AuditInvoice(r.Context(), app.AuditInvoiceRequest{
		CallerID:     callerFromContext(r.Context()),
		FileName:     req.FileName,
		FileType:     req.FileType,
		DocumentText: req.DocumentText,
		Extracted:    req.ExtractedData,
		POID:         req.POID,
		PO:           req.PurchaseOrder,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, auditResponse{Invoice: result.Invoice, Audit: result.Audit})
}

// apiListAudits handles GET /api/audits?limit=N.
func (h *Handler) apiListAudits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, r, "limit must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	result, err := h.svc.ListAudits(r.Context(), callerFromContext(r.Context()), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type response struct {
		Audits []core.AuditRecord `json:"audits"`
	}
	writeJSON(w, response{Audits: result.Audits})
}

// apiGetAudit handles GET /api/audits/{id}.
func (h *Handler) apiGetAudit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetAudit(r.Context(), callerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, auditResponse{Audit: rec})
}
