package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindInvalidQuantity   Kind = "INVALID_QUANTITY"
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindInvalidRelease    Kind = "INVALID_RELEASE"
	KindEmptyQuotation    Kind = "EMPTY_QUOTATION"
	KindCreditExceeded    Kind = "CREDIT_EXCEEDED"
	KindUnauthorized      Kind = "UNAUTHORIZED"
)

// Error is the failure returned by every core command. Entity and ID name the
// implicated record, Field the offending input when there is one.
type Error struct {
	Kind       Kind   `json:"kind"`
	Entity     string `json:"entity,omitempty"`
	ID         string `json:"id,omitempty"`
	Field      string `json:"field,omitempty"`
	State      string `json:"state,omitempty"`
	Transition string `json:"transition,omitempty"`
	Msg        string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	if e.Entity != "" {
		fmt.Fprintf(&b, ": %s", e.Entity)
		if e.ID != "" {
			fmt.Fprintf(&b, " %s", e.ID)
		}
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Transition != "" {
		fmt.Fprintf(&b, " transition=%s from=%s", e.Transition, e.State)
	}
	if e.Msg != "" {
		fmt.Fprintf(&b, " (%s)", e.Msg)
	}
	return b.String()
}

// Is matches on Kind so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInvalidQuantity   = &Error{Kind: KindInvalidQuantity}
	ErrInvalidAmount     = &Error{Kind: KindInvalidAmount}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidRelease    = &Error{Kind: KindInvalidRelease}
	ErrEmptyQuotation    = &Error{Kind: KindEmptyQuotation}
	ErrCreditExceeded    = &Error{Kind: KindCreditExceeded}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
)

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func AlreadyExists(entity, id string) *Error {
	return &Error{Kind: KindAlreadyExists, Entity: entity, ID: id}
}

func InvalidInput(entity, id, field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Entity: entity, ID: id, Field: field, Msg: msg}
}

func InvalidQuantity(entity, id, field string, qty int) *Error {
	return &Error{Kind: KindInvalidQuantity, Entity: entity, ID: id, Field: field, Msg: fmt.Sprintf("got %d", qty)}
}

func InvalidAmount(entity, id, field, msg string) *Error {
	return &Error{Kind: KindInvalidAmount, Entity: entity, ID: id, Field: field, Msg: msg}
}

func InsufficientStock(sku string, requested, free int) *Error {
	return &Error{Kind: KindInsufficientStock, Entity: "product", ID: sku, Field: "qty",
		Msg: fmt.Sprintf("requested %d, free %d", requested, free)}
}

func InvalidTransition(entity, id, state, transition string) *Error {
	return &Error{Kind: KindInvalidTransition, Entity: entity, ID: id, State: state, Transition: transition}
}

func InvalidRelease(sku, holder string, requested, held int) *Error {
	return &Error{Kind: KindInvalidRelease, Entity: "product", ID: sku, Field: "qty",
		Msg: fmt.Sprintf("holder %s releases %d, holds %d", holder, requested, held)}
}

func EmptyQuotation(id string) *Error {
	return &Error{Kind: KindEmptyQuotation, Entity: "quotation", ID: id, Field: "lines"}
}

func CreditExceeded(customerID, msg string) *Error {
	return &Error{Kind: KindCreditExceeded, Entity: "customer", ID: customerID, Msg: msg}
}

func Unauthorized(role, action string) *Error {
	return &Error{Kind: KindUnauthorized, Entity: "role", ID: role, Transition: action}
}
