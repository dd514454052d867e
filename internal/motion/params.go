// Package motion implements the kinematics of a single simulated axis: planning
// a trapezoidal or triangular velocity profile, re-planning it when a stop is
// requested, and sampling displacement as a function of elapsed time.
//
// Everything here is a pure function of its inputs. Times are seconds since
// the start of the move, distances are in axis units.
package motion

import (
	"errors"
	"fmt"
)

var ErrInvalidKinematics = errors.New("invalid kinematics")

// Parameters holds the kinematic configuration of an axis. A profile copies
// what it needs at planning time, so changing Parameters never alters a move
// that is already under way.
type Parameters struct {
	Velocity      float64 `yaml:"velocity" json:"velocity"`
	BaseVelocity  float64 `yaml:"base_velocity" json:"base_velocity"`
	Acceleration  float64 `yaml:"acceleration" json:"acceleration"`
	Deceleration  float64 `yaml:"deceleration" json:"deceleration"`
	HighLimit     int     `yaml:"high_limit" json:"high_limit"`
	LowLimit      int     `yaml:"low_limit" json:"low_limit"`
	EnforceLimits bool    `yaml:"enforce_limits" json:"enforce_limits"`
	Units         string  `yaml:"units" json:"units"`
	Resolution    float64 `yaml:"resolution" json:"resolution"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Velocity:     400,
		BaseVelocity: 0,
		Acceleration: 400,
		Deceleration: 400,
		HighLimit:    40000,
		LowLimit:     -40000,
		Units:        "counts",
		Resolution:   1.0,
	}
}

// Validate reports whether a profile can be planned from p.
func (p Parameters) Validate() error {
	if p.Velocity <= 0 {
		return fmt.Errorf("%w: velocity must be positive, got %g", ErrInvalidKinematics, p.Velocity)
	}
	if p.Acceleration <= 0 {
		return fmt.Errorf("%w: acceleration must be positive, got %g", ErrInvalidKinematics, p.Acceleration)
	}
	if p.Deceleration <= 0 {
		return fmt.Errorf("%w: deceleration must be positive, got %g", ErrInvalidKinematics, p.Deceleration)
	}
	if p.BaseVelocity < 0 || p.BaseVelocity > p.Velocity {
		return fmt.Errorf("%w: base velocity %g outside [0, %g]", ErrInvalidKinematics, p.BaseVelocity, p.Velocity)
	}
	return nil
}
