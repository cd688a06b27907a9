package service

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrUnknownStatus        = errors.New("unknown order status")
	ErrNotOwner             = errors.New("resource does not belong to the requesting user")
	ErrOrderNumberExhausted = errors.New("could not generate a unique order number")

	IllegalTransitionError = errors.New("illegal transition of order status")
)
