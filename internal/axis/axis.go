// Package axis simulates one motor axis. Moves are planned as analytic
// velocity profiles and the axis position is worked out from the injected
// clock whenever it is read, so nothing runs in the background.
//
// An Axis is not safe for concurrent use; callers serialize access.
package axis

import (
	"fmt"
	"math"
	"time"

	"virtualmotor/internal/clock"
	"virtualmotor/internal/logging"
	"virtualmotor/internal/motion"
	"virtualmotor/internal/status"
)

type StopResult int

const (
	StopIdle    StopResult = iota // no move in progress
	StopPending                   // a stop was already accepted for this move
	StopAccel                     // ramp-up cut short
	StopCruise                    // cruise cut short
	StopDecel                     // already decelerating
	StopStale                     // move had already finished
)

func (r StopResult) String() string {
	switch r {
	case StopIdle:
		return "idle"
	case StopPending:
		return "pending"
	case StopAccel:
		return "accel"
	case StopCruise:
		return "cruise"
	case StopDecel:
		return "decel"
	case StopStale:
		return "stale"
	default:
		return "unknown"
	}
}

type Option func(*Axis)

func WithClock(c clock.Clock) Option {
	return func(a *Axis) { a.clock = c }
}

func WithReporter(r status.Reporter) Option {
	return func(a *Axis) { a.status = r }
}

func WithParameters(p motion.Parameters) Option {
	return func(a *Axis) { a.params = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(a *Axis) { a.logger = l }
}

type Axis struct {
	id     int
	params motion.Parameters
	clock  clock.Clock
	status status.Reporter
	logger *logging.Logger

	lastPosition    float64
	currentPosition float64
	direction       int

	// Active move. profile is nil while the axis is at rest.
	profile   *motion.Profile
	moveStart time.Time
	abortAt   *time.Time

	lastLimit *LimitError
}

func New(id int, opts ...Option) *Axis {
	a := &Axis{
		id:        id,
		params:    motion.DefaultParameters(),
		direction: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = clock.System()
	}
	if a.status == nil {
		a.status = status.New()
	}
	if a.logger == nil {
		a.logger = logging.GetLogger("axis")
	}
	a.logger = a.logger.With("axis", id)
	return a
}

func (a *Axis) ID() int { return a.id }

// Move starts a move to target, rounded to the nearest whole position. A move
// issued while another is running starts from wherever the axis is now.
//
// With limit enforcement on, a target outside [LowLimit, HighLimit] returns a
// *LimitError, flags the error on the status reporter and leaves the axis
// untouched. A target that is not finite returns ErrInvalidTarget.
func (a *Axis) Move(target float64) error {
	now := a.clock.Now()
	rounded, err := a.checkTarget(target)
	if err != nil {
		return err
	}
	a.sample(now)
	return a.plan(now, rounded)
}

// MoveRelative moves by delta from the current position.
func (a *Axis) MoveRelative(delta float64) error {
	now := a.clock.Now()
	a.sample(now)
	rounded, err := a.checkTarget(a.currentPosition + delta)
	if err != nil {
		return err
	}
	return a.plan(now, rounded)
}

// checkTarget validates a commanded target against the kinematics and the
// soft limits. Every rejection is reported and leaves the motion state alone.
func (a *Axis) checkTarget(target float64) (int, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return 0, a.reject(target, fmt.Errorf("%w: %g", ErrInvalidTarget, target))
	}

	rounded := math.Round(target)
	if limitErr := a.checkLimits(rounded); limitErr != nil {
		a.lastLimit = limitErr
		a.status.SetError(true, limitErr.message())
		a.logger.Warn("Move rejected", "target", rounded, "error", limitErr)
		return 0, limitErr
	}

	if math.Abs(rounded) > MaxPosition {
		return 0, a.reject(target, fmt.Errorf("%w: %g outside [-%d, %d]", ErrInvalidTarget, target, MaxPosition, MaxPosition))
	}
	if err := a.params.Validate(); err != nil {
		return 0, a.reject(target, fmt.Errorf("plan move to %.0f: %w", rounded, err))
	}
	return int(rounded), nil
}

func (a *Axis) reject(target float64, err error) error {
	a.status.SetError(true, err.Error())
	a.logger.Warn("Move rejected", "target", target, "error", err)
	return err
}

func (a *Axis) plan(now time.Time, target int) error {
	p, err := motion.Plan(a.params, a.currentPosition, target)
	if err != nil {
		return a.reject(float64(target), fmt.Errorf("plan move to %d: %w", target, err))
	}

	a.lastPosition = a.currentPosition
	a.direction = p.Direction
	a.profile = p
	a.moveStart = now
	a.abortAt = nil
	a.lastLimit = nil
	a.status.SetError(false, "")

	a.logger.Debug("Move planned", "profile", p, "triangular", p.Triangular())
	return nil
}

func (a *Axis) checkLimits(target float64) *LimitError {
	if !a.params.EnforceLimits {
		return nil
	}
	if target > float64(a.params.HighLimit) {
		return &LimitError{Side: LimitHigh, Target: target, Limit: a.params.HighLimit}
	}
	if target < float64(a.params.LowLimit) {
		return &LimitError{Side: LimitLow, Target: target, Limit: a.params.LowLimit}
	}
	return nil
}

// Stop shortens the active move so the axis decelerates as soon as it can.
// Only the first Stop of a move re-plans it.
func (a *Axis) Stop() StopResult {
	if a.profile == nil {
		return StopIdle
	}
	if a.abortAt != nil {
		return StopPending
	}

	now := a.clock.Now()
	elapsed := now.Sub(a.moveStart).Seconds()

	outcome := a.profile.Abort(elapsed)
	if outcome == motion.AbortLate {
		a.logger.Warn("Stop received after the move should have completed",
			"elapsed", elapsed, "move_duration", a.profile.MoveDuration)
		return StopStale
	}
	a.abortAt = &now

	a.logger.Debug("Move aborted", "elapsed", elapsed, "outcome", outcome, "profile", a.profile)
	switch outcome {
	case motion.AbortTruncatedAccel:
		return StopAccel
	case motion.AbortTruncatedCruise:
		return StopCruise
	default:
		return StopDecel
	}
}

// ReadPosition returns the axis position rounded to a whole number.
//
// This is a state transition, not a plain getter: the first read at or after
// the end of a move commits the final position and returns the axis to rest.
func (a *Axis) ReadPosition() int {
	a.sample(a.clock.Now())
	return int(math.Round(a.currentPosition))
}

func (a *Axis) sample(now time.Time) {
	if a.profile == nil {
		return
	}

	t := now.Sub(a.moveStart).Seconds()
	displacement, done := a.profile.Displacement(t)
	if !done {
		a.currentPosition = a.lastPosition + float64(a.profile.Direction)*displacement
		return
	}

	if a.abortAt == nil {
		// snap to the target to drop accumulated rounding
		a.currentPosition = float64(a.profile.TargetPosition)
	} else {
		a.currentPosition = a.lastPosition + float64(a.profile.Direction)*a.profile.MoveDistance
	}
	a.lastPosition = a.currentPosition
	a.profile = nil
	a.abortAt = nil
	a.moveStart = time.Time{}

	a.logger.Debug("Move complete", "position", a.currentPosition)
}

// ReadStatus reports whether the axis is done moving and passes the result to
// the status reporter. It never commits the final position; ReadPosition does.
func (a *Axis) ReadStatus() bool {
	if a.moving(a.clock.Now()) {
		a.status.SetMoving()
	} else {
		a.status.SetDoneMoving()
	}
	return a.status.DoneMoving()
}

func (a *Axis) moving(now time.Time) bool {
	return a.profile != nil && now.Sub(a.moveStart).Seconds() < a.profile.MoveDuration
}

// SetPosition is not defined for the simulated axis.
func (a *Axis) SetPosition(position float64) error {
	return fmt.Errorf("set position to %g: %w", position, ErrUnsupported)
}

// Direction is the direction of the most recent move, +1 or -1.
func (a *Axis) Direction() int { return a.direction }

// LastLimitError is the limit violation that rejected the most recent move
// command, or nil if that command was accepted.
func (a *Axis) LastLimitError() *LimitError { return a.lastLimit }
