// Package screen holds rendering-free view models of the login and product
// views. Dialogs are replaced by the Confirmer and Notifier callbacks.
package screen

import (
	"github.com/go-faster/errors"

	"github.com/xenking/productos/internal/api"
	"github.com/xenking/productos/internal/domain/product"
)

// User-facing messages.
const (
	MsgConnection    = "connection error"
	MsgUnauthorized  = "not authorized, please log in"
	MsgEmpty         = "No products to show."
	MsgConfirmDelete = "Are you sure you want to delete this product?"
	msgLoginFailed   = "login failed"
	msgSaveFailed    = "failed to save product"
	msgDeleteFailed  = "failed to delete product"
	msgListFailed    = "failed to load products"
)

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// Notifier shows a transient message to the user.
type Notifier interface {
	Notify(message string)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(message string)

func (f NotifyFunc) Notify(message string) { f(message) }

// Message maps an error to the text shown inline by a view.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var (
		connErr  *api.ConnectionError
		authErr  *api.AuthError
		valErr   *api.ValidationFailedError
		reqErr   *api.RequestFailedError
		localErr *product.ValidationError
	)
	switch {
	case errors.As(err, &connErr):
		return MsgConnection
	case errors.Is(err, api.ErrUnauthorized):
		return MsgUnauthorized
	case errors.As(err, &localErr):
		return localErr.Message
	case errors.As(err, &authErr):
		return nonEmpty(authErr.Message, fallback)
	case errors.As(err, &valErr):
		return nonEmpty(valErr.Message, fallback)
	case errors.As(err, &reqErr):
		return nonEmpty(reqErr.Message, fallback)
	default:
		return fallback
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
