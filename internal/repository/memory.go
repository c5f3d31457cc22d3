package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-invoice/internal/model"
)

// Memory holds every store in process memory. It backs STUB_MODE and the
// service tests; nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]model.User
	tokens   map[string]memoryToken
	products map[string]model.Product
	invoices []model.Invoice
	now      func() time.Time
}

type memoryToken struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[string]model.User{},
		tokens:   map[string]memoryToken{},
		products: map[string]model.Product{},
		now:      time.Now,
	}
}

func (m *Memory) Users() UserStore          { return memoryUsers{m} }
func (m *Memory) Tokens() RefreshTokenStore { return memoryTokens{m} }
func (m *Memory) Products() ProductStore    { return memoryProducts{m} }
func (m *Memory) Invoices() InvoiceStore    { return memoryInvoices{m} }

type memoryUsers struct{ m *Memory }

func (s memoryUsers) FindByID(_ context.Context, id string) (model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	u, ok := s.m.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, u := range s.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s memoryUsers) Create(_ context.Context, u model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for _, existing := range s.m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrUserAlreadyExists
		}
	}
	s.m.users[u.ID] = u
	return nil
}

type memoryTokens struct{ m *Memory }

func (s memoryTokens) Store(_ context.Context, tokenID string, userID string, expiresAt time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.tokens[tokenID] = memoryToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s memoryTokens) Consume(_ context.Context, tokenID string) (string, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	t, ok := s.m.tokens[tokenID]
	if !ok || t.revoked || !s.m.now().Before(t.expiresAt) {
		return "", model.ErrTokenNotFound
	}
	t.revoked = true
	s.m.tokens[tokenID] = t
	return t.userID, nil
}

func (s memoryTokens) Revoke(_ context.Context, tokenID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	if t, ok := s.m.tokens[tokenID]; ok {
		t.revoked = true
		s.m.tokens[tokenID] = t
	}
	return nil
}

func (s memoryTokens) RevokeAllForUser(_ context.Context, userID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	for id, t := range s.m.tokens {
		if t.userID == userID {
			t.revoked = true
			s.m.tokens[id] = t
		}
	}
	return nil
}

func (s memoryTokens) CleanExpired(_ context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	var removed int64
	now := s.m.now()
	for id, t := range s.m.tokens {
		if t.revoked || !now.Before(t.expiresAt) {
			delete(s.m.tokens, id)
			removed++
		}
	}
	return removed, nil
}

type memoryProducts struct{ m *Memory }

func (s memoryProducts) ListByUser(_ context.Context, userID string) ([]model.Product, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	products := make([]model.Product, 0)
	for _, p := range s.m.products {
		if p.UserID == userID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (s memoryProducts) Create(_ context.Context, p model.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	s.m.products[p.ID] = p
	return nil
}

func (s memoryProducts) Delete(_ context.Context, userID string, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	p, ok := s.m.products[id]
	if !ok || p.UserID != userID {
		return model.ErrProductNotFound
	}
	delete(s.m.products, id)
	return nil
}

type memoryInvoices struct{ m *Memory }

func (s memoryInvoices) Create(_ context.Context, inv model.Invoice) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	inv.Lines = append([]model.InvoiceLine(nil), inv.Lines...)
	s.m.invoices = append(s.m.invoices, inv)
	return nil
}

func (s memoryInvoices) ListByUser(_ context.Context, userID string) ([]model.Invoice, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	invoices := make([]model.Invoice, 0)
	for i := len(s.m.invoices) - 1; i >= 0; i-- {
		if s.m.invoices[i].UserID == userID {
			invoices = append(invoices, s.m.invoices[i])
		}
	}
	return invoices, nil
}
