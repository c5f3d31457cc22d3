package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"go-invoice/internal/model"
	"go-invoice/internal/repository"
	"go-invoice/internal/util"
	"go-invoice/pkg/apierror"
)

type ProductService struct {
	products repository.ProductStore
	now      func() time.Time
}

func NewProductService(products repository.ProductStore) *ProductService {
	return &ProductService{products: products, now: time.Now}
}

func (s *ProductService) List(ctx context.Context, userID string) ([]model.Product, error) {
	return s.products.ListByUser(ctx, userID)
}

func (s *ProductService) Create(ctx context.Context, userID string, req model.CreateProductRequest) (model.Product, error) {
	name := util.CleanText(req.Name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 {
		return model.Product{}, apierror.BadRequest("Name must be between 3 and 50 characters", "")
	}
	if req.Qty <= 0 {
		return model.Product{}, apierror.BadRequest("Quantity must be a number greater than 0", "")
	}
	if req.Rate <= 0 {
		return model.Product{}, apierror.BadRequest("Rate must be a number greater than 0", "")
	}

	product := model.Product{
		ID:        uuid.NewString(),
		Name:      name,
		Qty:       req.Qty,
		Rate:      req.Rate,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.products.Create(ctx, product); err != nil {
		return model.Product{}, err
	}

	slog.Debug("product created", "product_id", product.ID, "user_id", userID)
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, userID string, id string) error {
	if strings.TrimSpace(id) == "" {
		return apierror.BadRequest("product id is required", "")
	}

	err := s.products.Delete(ctx, userID, id)
	if errors.Is(err, model.ErrProductNotFound) {
		return apierror.NotFound("Product not found", id)
	}
	return err
}
