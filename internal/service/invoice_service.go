package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-invoice/internal/metrics"
	"go-invoice/internal/model"
	"go-invoice/internal/repository"
	"go-invoice/internal/util"
	"go-invoice/pkg/apierror"
)

//go:embed templates/invoice.html
var invoiceTemplateSource string

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":   func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"percent": func(v float64) string { return fmt.Sprintf("%g%%", math.Round(v*10000)/100) },
}).Parse(invoiceTemplateSource))

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

type InvoiceSettings struct {
	GSTRate float64
	From    model.InvoiceParty
	To      model.InvoiceParty
}

type InvoiceService struct {
	invoices repository.InvoiceStore
	renderer PDFRenderer
	settings InvoiceSettings
	now      func() time.Time
	metrics  *metrics.Metrics
}

// Document is a generated invoice ready to be sent to the client.
type Document struct {
	Invoice  model.Invoice
	Filename string
	PDF      []byte
}

func NewInvoiceService(invoices repository.InvoiceStore, renderer PDFRenderer, settings InvoiceSettings) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		renderer: renderer,
		settings: settings,
		now:      time.Now,
	}
}

// WithMetrics records render outcomes and latency on m.
func (s *InvoiceService) WithMetrics(m *metrics.Metrics) *InvoiceService {
	s.metrics = m
	return s
}

func (s *InvoiceService) Generate(ctx context.Context, userID string, req model.GenerateInvoiceRequest) (Document, error) {
	inv, err := s.build(userID, req)
	if err != nil {
		return Document{}, err
	}

	html, err := s.RenderHTML(inv)
	if err != nil {
		return Document{}, err
	}

	started := time.Now()
	pdf, err := s.renderer.Render(ctx, html)
	s.metrics.PDFRendered(time.Since(started), err)
	if err != nil {
		return Document{}, apierror.New("PDF_FAILED", "Failed to generate PDF", err.Error(), http.StatusInternalServerError)
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return Document{}, err
	}

	slog.Info("invoice generated", "invoice", inv.Number, "user_id", userID, "lines", len(inv.Lines), "bytes", len(pdf))
	return Document{
		Invoice:  inv,
		Filename: util.SafeFilename("invoice-"+inv.Number+".pdf", "invoice.pdf"),
		PDF:      pdf,
	}, nil
}

func (s *InvoiceService) List(ctx context.Context, userID string) ([]model.Invoice, error) {
	return s.invoices.ListByUser(ctx, userID)
}

// build validates the submitted lines and fills in any totals the caller
// left at zero.
func (s *InvoiceService) build(userID string, req model.GenerateInvoiceRequest) (model.Invoice, error) {
	if len(req.Products) == 0 {
		return model.Invoice{}, apierror.BadRequest("Products data is required", model.ErrInvoiceEmpty.Error())
	}

	lines := make([]model.InvoiceLine, 0, len(req.Products))
	var subtotal float64
	for i, p := range req.Products {
		name := util.CleanText(p.Name)
		if name == "" || p.Quantity <= 0 || p.Rate <= 0 {
			return model.Invoice{}, apierror.BadRequest("Each product needs a name, quantity and rate", fmt.Sprintf("products[%d]", i))
		}
		total := roundCents(float64(p.Quantity) * p.Rate)
		lines = append(lines, model.InvoiceLine{Name: name, Qty: p.Quantity, Rate: p.Rate, Total: total})
		subtotal += total
	}

	if req.Subtotal > 0 {
		subtotal = req.Subtotal
	}
	subtotal = roundCents(subtotal)

	tax := req.GST
	if tax <= 0 {
		tax = roundCents(subtotal * s.settings.GSTRate)
	}
	total := req.GrandTotal
	if total <= 0 {
		total = roundCents(subtotal + tax)
	}

	now := s.now()
	return model.Invoice{
		ID:        uuid.NewString(),
		Number:    fmt.Sprintf("INV-%d", now.UnixMilli()),
		UserID:    userID,
		Lines:     lines,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     total,
		IssuedAt:  now.UTC(),
		CreatedAt: now.UTC(),
	}, nil
}

func (s *InvoiceService) RenderHTML(inv model.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	err := invoiceTemplate.Execute(&buf, struct {
		Invoice model.Invoice
		From    model.InvoiceParty
		To      model.InvoiceParty
		GSTRate float64
	}{
		Invoice: inv,
		From:    s.settings.From,
		To:      s.settings.To,
		GSTRate: s.settings.GSTRate,
	})
	if err != nil {
		return nil, fmt.Errorf("render invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
