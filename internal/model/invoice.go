package model

import "time"

type InvoiceLine struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Rate  float64 `json:"rate"`
	Total float64 `json:"total"`
}

type Invoice struct {
	ID        string        `json:"id"`
	Number    string        `json:"number"`
	UserID    string        `json:"userId"`
	Lines     []InvoiceLine `json:"products"`
	Subtotal  float64       `json:"subtotal"`
	Tax       float64       `json:"tax"`
	Total     float64       `json:"total"`
	IssuedAt  time.Time     `json:"date"`
	CreatedAt time.Time     `json:"createdAt"`
}

type InvoiceList struct {
	Invoices []Invoice `json:"invoices"`
}

// InvoiceParty is one address block printed on the document.
type InvoiceParty struct {
	Name    string
	Address string
}
