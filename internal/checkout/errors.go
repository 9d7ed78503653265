package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrProductUnavailable = errors.New("a cart product is no longer available")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
	ErrSessionExpired     = errors.New("checkout session has expired")
)
