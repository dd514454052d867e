package axis

import (
	"math"

	"virtualmotor/internal/motion"
)

// Kinematic accessors. New values apply from the next Move or Stop.

func (a *Axis) SetVelocity(velocity float64) { a.params.Velocity = velocity }

func (a *Axis) Velocity() float64 { return a.params.Velocity }

func (a *Axis) SetBaseVelocity(velocity float64) { a.params.BaseVelocity = velocity }

func (a *Axis) BaseVelocity() float64 { return a.params.BaseVelocity }

// SetAcceleration sets acceleration and deceleration together.
func (a *Axis) SetAcceleration(acceleration float64) {
	a.params.Acceleration = acceleration
	a.params.Deceleration = acceleration
}

func (a *Axis) Acceleration() float64 { return a.params.Acceleration }

func (a *Axis) Deceleration() float64 { return a.params.Deceleration }

// SetHighLimit rounds limit to a whole position and clamps it to
// ±MaxPosition. Non-finite values are ignored.
func (a *Axis) SetHighLimit(limit float64) {
	if v, ok := a.limitValue("high_limit", limit); ok {
		a.params.HighLimit = v
	}
}

func (a *Axis) HighLimit() int { return a.params.HighLimit }

// SetLowLimit behaves like SetHighLimit.
func (a *Axis) SetLowLimit(limit float64) {
	if v, ok := a.limitValue("low_limit", limit); ok {
		a.params.LowLimit = v
	}
}

func (a *Axis) limitValue(name string, limit float64) (int, bool) {
	if math.IsNaN(limit) || math.IsInf(limit, 0) {
		a.logger.Warn("Ignoring non-finite limit", "limit", name, "value", limit)
		return 0, false
	}
	return int(math.Max(-MaxPosition, math.Min(MaxPosition, math.Round(limit)))), true
}

func (a *Axis) LowLimit() int { return a.params.LowLimit }

func (a *Axis) SetEnforceLimits(enforce bool) { a.params.EnforceLimits = enforce }

func (a *Axis) EnforceLimits() bool { return a.params.EnforceLimits }

func (a *Axis) Units() string { return a.params.Units }

func (a *Axis) Resolution() float64 { return a.params.Resolution }

// Parameters returns a copy of the current kinematic parameters.
func (a *Axis) Parameters() motion.Parameters { return a.params }

// Configure replaces every kinematic parameter at once, deceleration included.
func (a *Axis) Configure(p motion.Parameters) {
	a.params = p
	a.logger.Info("Axis reconfigured",
		"velocity", p.Velocity, "base_velocity", p.BaseVelocity,
		"acceleration", p.Acceleration, "deceleration", p.Deceleration,
		"high_limit", p.HighLimit, "low_limit", p.LowLimit, "enforce_limits", p.EnforceLimits)
}
