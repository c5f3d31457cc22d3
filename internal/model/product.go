package model

import "time"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Qty       int       `json:"qty"`
	Rate      float64   `json:"rate"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p Product) Total() float64 {
	return float64(p.Qty) * p.Rate
}

type ProductList struct {
	Products []Product `json:"products"`
}
