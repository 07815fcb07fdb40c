package ledger

import "errors"

// Business-rule violations. Every validation error is raised before any row
// is appended, so a failed operation never leaves a partial write behind.
var (
	ErrUnknownProduct            = errors.New("unknown product")
	ErrInactiveProduct           = errors.New("product is inactive")
	ErrUnknownOrInactiveSalesman = errors.New("unknown or inactive salesman")
	ErrLinkedTransactionNotFound = errors.New("linked transaction not found")
	ErrLinkedNotSale             = errors.New("linked transaction is not a sale")
	ErrAlreadyVoided             = errors.New("transaction already voided")
	ErrVoidNotAllowed            = errors.New("transaction cannot be voided")
	ErrInvalidQuantity           = errors.New("quantity must be positive")
	ErrInvalidAmount             = errors.New("amount must be non-negative")
	ErrInvalidInput              = errors.New("invalid input")
	ErrAdminRequired             = errors.New("admin role required")
)

// IsBusinessError reports whether err is a domain-rule violation rather than
// an infrastructure failure, so callers can map the two to different exit
// paths.
func IsBusinessError(err error) bool {
	for _, sentinel := range []error{
		ErrUnknownProduct, ErrInactiveProduct, ErrUnknownOrInactiveSalesman,
		ErrLinkedTransactionNotFound, ErrLinkedNotSale, ErrAlreadyVoided,
		ErrVoidNotAllowed, ErrInvalidQuantity, ErrInvalidAmount,
		ErrInvalidInput, ErrAdminRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
