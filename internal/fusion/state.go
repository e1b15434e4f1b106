package fusion

import (
	"errors"
	"fmt"
)

// State is a stage of one decision cycle
type State int

const (
	StateCollecting State = iota
	StatePriceVerified
	StateRiskAssessed
	StateFused
	StateApproved
	StateHeld
	StateRejected
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateCollecting:
		return "COLLECTING"
	case StatePriceVerified:
		return "PRICE_VERIFIED"
	case StateRiskAssessed:
		return "RISK_ASSESSED"
	case StateFused:
		return "FUSED"
	case StateApproved:
		return "APPROVED"
	case StateHeld:
		return "HELD"
	case StateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateApproved || s == StateHeld || s == StateRejected
}

// ErrInvalidTransition is returned when a step is called out of order
var ErrInvalidTransition = errors.New("invalid fusion transition")

func invalidTransition(op string, from State) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
