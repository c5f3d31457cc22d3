package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type CreateProductRequest struct {
	Name string  `json:"name"`
	Qty  int     `json:"qty"`
	Rate float64 `json:"rate"`
}

type InvoiceProductInput struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Rate     float64 `json:"rate"`
}

// GenerateInvoiceRequest mirrors the form the invoice page submits. Totals
// are optional and recomputed when zero.
type GenerateInvoiceRequest struct {
	Products   []InvoiceProductInput `json:"products"`
	Subtotal   float64               `json:"subtotal,omitempty"`
	GST        float64               `json:"gst,omitempty"`
	GrandTotal float64               `json:"grandTotal,omitempty"`
}
