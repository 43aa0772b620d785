package services

import "errors"

var (
	// ErrNoBundle means the product does not anchor a kit. It is an answer,
	// not a failure.
	ErrNoBundle        = errors.New("no bundle for product")
	ErrNoCart          = errors.New("no active cart")
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = errors.New("product not found")
	ErrQuoteNotFound   = errors.New("quote not found")
	ErrQuoteLocked     = errors.New("quote is locked")
	ErrInvalidStatus   = errors.New("invalid quote status")
	ErrQuoteCreate     = errors.New("failed to create quote request")
	ErrValidation      = errors.New("invalid input")
)
