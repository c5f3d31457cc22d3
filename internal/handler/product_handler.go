package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-invoice/internal/model"
	"go-invoice/internal/service"
)

type ProductHandler struct {
	service *service.ProductService
}

func NewProductHandler(service *service.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	products, err := h.service.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ProductList{Products: products}, &model.Meta{Total: len(products)})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var payload model.CreateProductRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := h.service.Create(r.Context(), id.UserID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccessMessage(w, http.StatusCreated, "Product saved successfully", product, nil)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id.UserID, productID); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccessMessage(w, http.StatusOK, "Product deleted successfully", map[string]string{"productId": productID}, nil)
}
