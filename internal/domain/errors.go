package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCorruptCart   = errors.New("stored cart is corrupt")
	ErrAlreadyInCart = errors.New("item already in cart")
	ErrItemNotFound  = errors.New("item not in cart")
	ErrQuantityLimit = errors.New("quantity limit reached")
)

// RecoveryError means the persisted cart could not be decoded and has to be
// replaced with an empty one.
type RecoveryError struct {
	Key   string
	Cause error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("cart[%s] is corrupt: %v", e.Key, e.Cause)
}

func (e *RecoveryError) Unwrap() error {
	return e.Cause
}

func (e *RecoveryError) Is(target error) bool {
	return target == ErrCorruptCart
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Fields, ", ") + " is empty"
}
