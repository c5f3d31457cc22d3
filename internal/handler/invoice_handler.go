package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"go-invoice/internal/model"
	"go-invoice/internal/service"
)

type InvoiceHandler struct {
	service *service.InvoiceService
}

func NewInvoiceHandler(service *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// Generate renders the submitted lines to a PDF and streams it back as an
// attachment.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var payload model.GenerateInvoiceRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := h.service.Generate(r.Context(), id.UserID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.PDF)))
	w.Header().Set("X-Invoice-Number", doc.Invoice.Number)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.PDF)
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	invoices, err := h.service.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.InvoiceList{Invoices: invoices}, &model.Meta{Total: len(invoices)})
}
