package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrEmptyCart         = errors.New("cart is empty")
)

type CheckoutState int

const (
	StateIdle CheckoutState = iota
	StateOpen
	StateCheckingOut
)

func (s CheckoutState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateCheckingOut:
		return "checking_out"
	default:
		return fmt.Sprintf("CheckoutState(%d)", int(s))
	}
}

// A CheckoutFlow tracks the cart drawer and checkout form:
//
//	Idle -> Open -> CheckingOut -> Idle (submitted)
//	                CheckingOut -> Open (cancelled)
//
// The zero value is Idle.
type CheckoutFlow struct {
	state CheckoutState
}

func (f CheckoutFlow) State() CheckoutState {
	return f.state
}

// Open shows the cart drawer. Opening an open drawer is a no-op.
func (f *CheckoutFlow) Open() error {
	switch f.state {
	case StateIdle, StateOpen:
		f.state = StateOpen
		return nil
	}
	return f.invalid("open")
}

// Close dismisses the drawer. A form in progress is discarded.
func (f *CheckoutFlow) Close() error {
	f.state = StateIdle
	return nil
}

// Begin shows the checkout form; it needs something to check out.
func (f *CheckoutFlow) Begin(cartEmpty bool) error {
	if f.state != StateOpen {
		return f.invalid("begin")
	}
	if cartEmpty {
		return fmt.Errorf("CheckoutFlow.Begin: %w", ErrEmptyCart)
	}
	f.state = StateCheckingOut
	return nil
}

func (f *CheckoutFlow) Cancel() error {
	if f.state != StateCheckingOut {
		return f.invalid("cancel")
	}
	f.state = StateOpen
	return nil
}

// Submit completes a checkout and returns to Idle.
func (f *CheckoutFlow) Submit() error {
	if f.state != StateCheckingOut {
		return f.invalid("submit")
	}
	f.state = StateIdle
	return nil
}

func (f CheckoutFlow) invalid(action string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, f.state)
}
