package contracts

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers and the HTTP layer can act on it
// without parsing messages.
type Kind int

const (
	// KindInternal covers underlying store failures. Details are logged,
	// callers see an opaque message.
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindInsufficientStock
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientStock:
		return "insufficient_stock"
	default:
		return "internal"
	}
}

// Error is the tagged error value returned by every lifecycle operation:
// a machine-checkable kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes two tagged errors of the same kind match under errors.Is,
// so callers can test against the exported sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the kind from an error chain. Anything untagged is
// reported as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is checks. Constructors below carry the
// entity-specific message.
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidState      = &Error{Kind: KindStateConflict, Message: "invalid order state"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
)

func CustomerNotFound(id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("customer %d not found", id)}
}

func ProductNotFound(id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("product %d not found", id)}
}

func OrderNotFound(id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("order %d not found", id)}
}

func EmptyItems() *Error {
	return &Error{Kind: KindValidation, Message: "order must contain at least one item"}
}

func NoAmountGiven() *Error {
	return &Error{Kind: KindValidation, Message: "either increase or decrease must be given"}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func InvalidState(current string) *Error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf("operation requires a pending order, current status is %s", current)}
}

func InsufficientStock(productID int64) *Error {
	return &Error{Kind: KindInsufficientStock, Message: fmt.Sprintf("insufficient stock for product %d", productID)}
}

// Internal wraps a store failure; the message stays opaque to callers.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}
