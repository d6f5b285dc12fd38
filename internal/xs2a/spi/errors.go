package spi

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

// Error is a business error reported by the bank. Any other error returned by
// an SPI call is treated as an infrastructure failure.
type Error struct {
	Code       domain.MessageErrorCode
	HTTPStatus int
	Text       string
}

// NewError builds an Error with the code's default HTTP status.
func NewError(code domain.MessageErrorCode, text string) *Error {
	return &Error{Code: code, HTTPStatus: code.HTTPStatus(), Text: text}
}

func (e *Error) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("spi: %s (%d)", e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("spi: %s (%d): %s", e.Code, e.HTTPStatus, e.Text)
}

// AsError unwraps err into an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
