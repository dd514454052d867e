package motion

import (
	"log/slog"
	"math"
)

type Phase int

const (
	PhaseAccel Phase = iota
	PhaseCruise
	PhaseDecel
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAccel:
		return "accel"
	case PhaseCruise:
		return "cruise"
	case PhaseDecel:
		return "decel"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Profile is a planned point-to-point move.
//
//	velocity
//	   |      _________
//	   |     /         \
//	   |    /           \
//	Vb |___/             \___
//	   |
//	   +---+---------+---+----> time
//	     ta    tc     td
type Profile struct {
	StartPosition  float64
	TargetPosition int
	Direction      int

	MoveDistance float64
	MoveVelocity float64

	AccelDuration    float64
	AccelDistance    float64
	ConstVelDuration float64
	DecelStartTime   float64
	DecelDuration    float64
	DecelDistance    float64
	MoveDuration     float64

	// Kinematics the profile was planned with.
	BaseVelocity float64
	Acceleration float64
	Deceleration float64
}

// ramp returns the time and distance needed to change speed from v0 to v1 at
// the given rate.
func ramp(v0, v1, rate float64) (duration, distance float64) {
	duration = (v1 - v0) / rate
	distance = 0.5*(v1-v0)*duration + v0*duration
	return duration, distance
}

// Plan builds the profile for a move from start to target. When the distance
// is too short to reach params.Velocity the profile is triangular and peaks at
// the highest speed that still lets the axis ramp back down to base velocity.
func Plan(params Parameters, start float64, target int) (*Profile, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := &Profile{
		StartPosition:  start,
		TargetPosition: target,
		Direction:      1,
		BaseVelocity:   params.BaseVelocity,
		Acceleration:   params.Acceleration,
		Deceleration:   params.Deceleration,
	}
	if float64(target) < start {
		p.Direction = -1
	}
	p.MoveDistance = math.Abs(float64(target) - start)

	vb, a, d := params.BaseVelocity, params.Acceleration, params.Deceleration
	p.AccelDuration, p.AccelDistance = ramp(vb, params.Velocity, a)
	p.DecelDuration, p.DecelDistance = ramp(vb, params.Velocity, d)

	if p.MoveDistance < p.AccelDistance+p.DecelDistance {
		peak := math.Sqrt(2*a*d*p.MoveDistance/(a+d) + vb*vb)
		p.MoveVelocity = peak
		p.AccelDuration, p.AccelDistance = ramp(vb, peak, a)
		p.DecelDuration, p.DecelDistance = ramp(vb, peak, d)
		p.ConstVelDuration = 0
	} else {
		p.MoveVelocity = params.Velocity
		p.ConstVelDuration = (p.MoveDistance - p.AccelDistance - p.DecelDistance) / params.Velocity
	}

	p.DecelStartTime = p.AccelDuration + p.ConstVelDuration
	p.MoveDuration = p.DecelStartTime + p.DecelDuration
	return p, nil
}

// Triangular reports whether the profile never cruises.
func (p *Profile) Triangular() bool {
	return p.ConstVelDuration == 0
}

// Phase returns the segment of the profile that t falls into.
func (p *Profile) Phase(t float64) Phase {
	switch {
	case t >= p.MoveDuration:
		return PhaseDone
	case t < p.AccelDuration:
		return PhaseAccel
	case t < p.DecelStartTime:
		return PhaseCruise
	default:
		return PhaseDecel
	}
}

// Displacement returns the unsigned distance travelled t seconds into the
// move. Once t reaches MoveDuration it returns MoveDistance and done=true.
//
// The base velocity contributes Vb*t throughout; the phase terms only carry the
// speed in excess of it, which keeps the curve continuous at every boundary.
func (p *Profile) Displacement(t float64) (displacement float64, done bool) {
	if t >= p.MoveDuration {
		return p.MoveDistance, true
	}
	if t < 0 {
		t = 0
	}

	excess := p.MoveVelocity - p.BaseVelocity
	displacement = p.BaseVelocity * t
	switch {
	case t < p.AccelDuration:
		displacement += 0.5 * p.Acceleration * t * t
	case t < p.DecelStartTime:
		displacement += 0.5*excess*p.AccelDuration + excess*(t-p.AccelDuration)
	default:
		tau := t - p.DecelStartTime
		displacement += 0.5*excess*p.AccelDuration + excess*p.ConstVelDuration + (excess-0.5*p.Deceleration*tau)*tau
	}
	return displacement, false
}

// VelocityAt returns the unsigned speed t seconds into the move.
func (p *Profile) VelocityAt(t float64) float64 {
	switch p.Phase(t) {
	case PhaseAccel:
		return p.BaseVelocity + p.Acceleration*math.Max(t, 0)
	case PhaseCruise:
		return p.MoveVelocity
	case PhaseDecel:
		return p.MoveVelocity - p.Deceleration*(t-p.DecelStartTime)
	default:
		return 0
	}
}

// LogValue groups the profile's timing for structured logs.
func (p *Profile) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("start", p.StartPosition),
		slog.Int("target", p.TargetPosition),
		slog.Int("direction", p.Direction),
		slog.Float64("distance", p.MoveDistance),
		slog.Float64("velocity", p.MoveVelocity),
		slog.Float64("duration", p.MoveDuration),
		slog.Float64("accel_duration", p.AccelDuration),
		slog.Float64("accel_distance", p.AccelDistance),
		slog.Float64("const_vel_duration", p.ConstVelDuration),
		slog.Float64("decel_start", p.DecelStartTime),
		slog.Float64("decel_duration", p.DecelDuration),
		slog.Float64("decel_distance", p.DecelDistance),
	)
}
