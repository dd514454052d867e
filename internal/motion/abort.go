package motion

// AbortOutcome says what Abort did to a profile.
type AbortOutcome int

const (
	// AbortTruncatedAccel: the ramp-up was cut short and the axis ramps down
	// from the speed it had reached.
	AbortTruncatedAccel AbortOutcome = iota
	// AbortTruncatedCruise: the cruise was cut short; both ramps are kept.
	AbortTruncatedCruise
	// AbortDecelerating: already ramping down, nothing to shorten.
	AbortDecelerating
	// AbortLate: the move had nominally finished before the stop arrived.
	AbortLate
)

func (o AbortOutcome) String() string {
	switch o {
	case AbortTruncatedAccel:
		return "truncated_accel"
	case AbortTruncatedCruise:
		return "truncated_cruise"
	case AbortDecelerating:
		return "decelerating"
	case AbortLate:
		return "late"
	default:
		return "unknown"
	}
}

// Abort re-plans the profile in place so the axis starts decelerating at
// elapsed seconds into the move. Motion already executed is preserved, so
// Displacement stays continuous across the re-plan.
//
// Abort does not remember being called; callers allow one abort per move.
func (p *Profile) Abort(elapsed float64) AbortOutcome {
	if elapsed < 0 {
		elapsed = 0
	}

	switch {
	case elapsed < p.AccelDuration:
		peak := p.BaseVelocity + p.Acceleration*elapsed

		p.AccelDuration = elapsed
		p.AccelDistance = 0.5*p.Acceleration*elapsed*elapsed + p.BaseVelocity*elapsed
		p.ConstVelDuration = 0
		p.DecelStartTime = elapsed
		p.DecelDuration, p.DecelDistance = ramp(p.BaseVelocity, peak, p.Deceleration)

		p.MoveDistance = p.AccelDistance + p.DecelDistance
		p.MoveDuration = p.AccelDuration + p.DecelDuration
		p.MoveVelocity = peak
		return AbortTruncatedAccel

	case elapsed < p.DecelStartTime:
		p.ConstVelDuration = elapsed - p.AccelDuration
		p.DecelStartTime = elapsed

		p.MoveDistance = p.AccelDistance + p.MoveVelocity*p.ConstVelDuration + p.DecelDistance
		p.MoveDuration = p.AccelDuration + p.ConstVelDuration + p.DecelDuration
		return AbortTruncatedCruise

	case elapsed < p.MoveDuration:
		return AbortDecelerating

	default:
		return AbortLate
	}
}

// Endpoint is where the axis comes to rest under the current plan.
func (p *Profile) Endpoint() float64 {
	return p.StartPosition + float64(p.Direction)*p.MoveDistance
}
