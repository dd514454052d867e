package axis

// Snapshot is the observable state of an axis at one instant.
type Snapshot struct {
	Axis      int     `json:"axis"`
	Position  int     `json:"position"`
	Moving    bool    `json:"moving"`
	Direction int     `json:"direction"`
	Velocity  float64 `json:"velocity"`
	Phase     string  `json:"phase"`
	Target    *int    `json:"target,omitempty"`
	Stopping  bool    `json:"stopping"`
	Error     string  `json:"error,omitempty"`
}

// Snapshot polls the axis like a controller would: ReadPosition, then
// ReadStatus. It carries the same side effects as those two calls.
func (a *Axis) Snapshot() Snapshot {
	position := a.ReadPosition()
	done := a.ReadStatus()

	s := Snapshot{
		Axis:      a.id,
		Position:  position,
		Moving:    !done,
		Direction: a.direction,
		Phase:     "idle",
	}
	if a.lastLimit != nil {
		s.Error = a.lastLimit.Error()
	}

	if a.profile != nil {
		t := a.clock.Now().Sub(a.moveStart).Seconds()
		target := a.profile.TargetPosition
		s.Target = &target
		s.Phase = a.profile.Phase(t).String()
		s.Velocity = float64(a.profile.Direction) * a.profile.VelocityAt(t)
		s.Stopping = a.abortAt != nil
	}
	return s
}
