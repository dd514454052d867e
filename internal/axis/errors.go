package axis

import (
	"errors"
	"fmt"
)

var (
	ErrHighLimit   = errors.New("target position exceeds high limit")
	ErrLowLimit    = errors.New("target position exceeds low limit")
	ErrUnsupported = errors.New("operation not supported")
	// ErrInvalidTarget rejects targets that are not finite or lie outside
	// the positions an axis can represent.
	ErrInvalidTarget = errors.New("invalid target position")
)

// MaxPosition bounds the magnitude of any target or limit. Every integer up to
// it is exactly representable as a float64.
const MaxPosition = 1 << 53

type LimitSide int

const (
	LimitHigh LimitSide = iota
	LimitLow
)

func (s LimitSide) String() string {
	if s == LimitHigh {
		return "high"
	}
	return "low"
}

// LimitError rejects a move whose target lies outside the soft limits.
type LimitError struct {
	Side   LimitSide
	Target float64
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("target position %.0f exceeds %s limit %d", e.Target, e.Side, e.Limit)
}

func (e *LimitError) Unwrap() error {
	if e.Side == LimitHigh {
		return ErrHighLimit
	}
	return ErrLowLimit
}

// message is the text handed to the status reporter.
func (e *LimitError) message() string {
	if e.Side == LimitHigh {
		return "Target position exceeds high limit"
	}
	return "Target position exceeds low limit"
}
