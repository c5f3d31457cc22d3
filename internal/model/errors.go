package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")

	// Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Domain errors
	ErrProductNotFound = errors.New("product not found")
	ErrInvoiceEmpty    = errors.New("invoice has no products")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
