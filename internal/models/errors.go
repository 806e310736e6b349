package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies checkout failures for transport-level status mapping.
type ErrorKind string

const (
	ErrKindEmptyCart              ErrorKind = "EMPTY_CART"
	ErrKindMissingCustomer        ErrorKind = "MISSING_CUSTOMER_FOR_REWARDS"
	ErrKindInsufficientPoints     ErrorKind = "INSUFFICIENT_POINTS"
	ErrKindMenuItemNotFound       ErrorKind = "MENU_ITEM_NOT_FOUND"
	ErrKindOutOfStock             ErrorKind = "OUT_OF_STOCK"
	ErrKindInventoryRecordMissing ErrorKind = "INVENTORY_RECORD_MISSING"
	ErrKindTransactionFailure     ErrorKind = "TRANSACTION_FAILURE"
)

// ErrDuplicateOrder signals that an order with the same idempotency key
// already exists. The caller resolves it by returning the original order.
var ErrDuplicateOrder = errors.New("duplicate order submission")

// CheckoutError carries a classified checkout failure with a message the
// client can render directly.
type CheckoutError struct {
	Kind    ErrorKind
	Message string
}

func (e *CheckoutError) Error() string {
	return e.Message
}

// UserError reports whether the failure was caused by the request rather
// than a server-side fault.
func (e *CheckoutError) UserError() bool {
	switch e.Kind {
	case ErrKindInventoryRecordMissing, ErrKindTransactionFailure:
		return false
	}
	return true
}

func ErrEmptyCart() *CheckoutError {
	return &CheckoutError{Kind: ErrKindEmptyCart, Message: "cart is empty"}
}

func ErrMissingCustomer() *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindMissingCustomer,
		Message: "reward redemption requires a customer account",
	}
}

func ErrInsufficientPoints(available, required int64) *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindInsufficientPoints,
		Message: fmt.Sprintf("insufficient points: available=%d, required=%d", available, required),
	}
}

func ErrMenuItemNotFound(name string) *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindMenuItemNotFound,
		Message: fmt.Sprintf("menu item not found: %s", name),
	}
}

func ErrOutOfStock(name string, available, required int) *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindOutOfStock,
		Message: fmt.Sprintf("insufficient stock for %s: available=%d, required=%d", name, available, required),
	}
}

func ErrInventoryRecordMissing(inventoryID int64) *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindInventoryRecordMissing,
		Message: fmt.Sprintf("inventory record missing for ingredient %d", inventoryID),
	}
}

func ErrTransactionFailure(err error) *CheckoutError {
	return &CheckoutError{
		Kind:    ErrKindTransactionFailure,
		Message: fmt.Sprintf("checkout failed: %v", err),
	}
}
