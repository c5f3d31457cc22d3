package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Qty       int       `json:"qty"`
	Rate      float64   `json:"rate"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewProduct struct {
	Name string  `json:"name"`
	Qty  int     `json:"qty"`
	Rate float64 `json:"rate"`
}

type InvoiceItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Rate     float64 `json:"rate"`
}

type InvoiceRequest struct {
	Products   []InvoiceItem `json:"products"`
	Subtotal   float64       `json:"subtotal,omitempty"`
	GST        float64       `json:"gst,omitempty"`
	GrandTotal float64       `json:"grandTotal,omitempty"`
}

type Invoice struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Subtotal float64   `json:"subtotal"`
	Tax      float64   `json:"tax"`
	Total    float64   `json:"total"`
	IssuedAt time.Time `json:"date"`
}

type authPayload struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) Login(ctx context.Context, email string, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) Register(ctx context.Context, name string, email string, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	if err := c.session.beginLogin(); err != nil {
		return nil, &Error{Kind: KindValidation, Message: "session is busy; retry once the current refresh completes", Err: err}
	}

	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		c.session.failLogin(err)
		return nil, err
	}

	var out authPayload
	if err := resp.Decode(&out); err != nil {
		c.session.failLogin(err)
		return nil, err
	}
	if out.Token == "" {
		err := &Error{Kind: KindUnknown, Status: resp.Status, Message: "server returned no token"}
		c.session.failLogin(err)
		return nil, err
	}

	if err := c.session.completeLogin(out.User, out.Token, out.RefreshToken); err != nil {
		return nil, &Error{Kind: KindUnknown, Status: resp.Status, Message: "login could not be recorded", Err: err}
	}

	c.logger.Info("logged in", "user_id", out.User.ID)
	return &out.User, nil
}

// Logout revokes the refresh token on the server when possible and always
// clears the local session.
func (c *Client) Logout(ctx context.Context) error {
	var revokeErr error
	if refresh := c.session.refreshToken(); refresh != "" {
		_, revokeErr = c.Do(ctx, Request{
			Method: http.MethodPost,
			Path:   "/auth/logout",
			Body:   map[string]string{"refreshToken": refresh},
		})
		if revokeErr != nil {
			c.logger.Warn("server logout failed; clearing local session anyway", "error", revokeErr)
		}
	}

	c.session.Logout(nil)
	return revokeErr
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me", Auth: true})
	if err != nil {
		return nil, err
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/products", Auth: true})
	if err != nil {
		return nil, err
	}

	var out struct {
		Products []Product `json:"products"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) CreateProduct(ctx context.Context, p NewProduct) (*Product, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/products", Body: p, Auth: true})
	if err != nil {
		return nil, err
	}

	var out Product
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return &Error{Kind: KindValidation, Message: "product id is required"}
	}
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/products/" + url.PathEscape(id), Auth: true})
	return err
}

func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/invoices", Auth: true})
	if err != nil {
		return nil, err
	}

	var out struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Invoices, nil
}

// GenerateInvoice returns the rendered PDF document.
func (c *Client) GenerateInvoice(ctx context.Context, req InvoiceRequest) ([]byte, error) {
	if len(req.Products) == 0 {
		return nil, &Error{Kind: KindValidation, Message: "at least one product is required"}
	}

	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/pdf/generate",
		Body:   req,
		Auth:   true,
		Accept: "application/pdf",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, &Error{Kind: KindServer, Status: resp.Status, Message: "empty document", Err: errors.New("empty pdf body")}
	}
	return resp.Body, nil
}
