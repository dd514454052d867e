package axis

import (
	"errors"
	"math"
	"testing"
	"time"

	"virtualmotor/internal/clock"
	"virtualmotor/internal/logging"
	"virtualmotor/internal/motion"
	"virtualmotor/internal/status"
)

var epoch = time.Date(2015, time.January, 6, 12, 0, 0, 0, time.UTC)

func newTestAxis(t *testing.T, opts ...Option) (*Axis, *clock.Manual, *status.Status) {
	t.Helper()
	logger, err := logging.NewLogger(&logging.Config{Level: "debug", Output: "discard"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	clk := clock.NewManual(epoch)
	st := status.New()
	opts = append([]Option{WithClock(clk), WithReporter(st), WithLogger(logger)}, opts...)
	return New(1, opts...), clk, st
}

func at(clk *clock.Manual, seconds float64) {
	clk.Set(epoch.Add(clock.Seconds(seconds)))
}

func TestScenarioTrapezoid(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(1000); err != nil {
		t.Fatalf("Move: %v", err)
	}

	tests := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{0.5, 50},
		{1.0, 200},
		{2.0, 600},
		{2.5, 800},
		{3.0, 950},
	}
	for _, tt := range tests {
		at(clk, tt.t)
		if got := a.ReadPosition(); got != tt.want {
			t.Errorf("position at %gs = %d, want %d", tt.t, got, tt.want)
		}
		if a.ReadStatus() {
			t.Errorf("status at %gs reports done", tt.t)
		}
	}

	at(clk, 3.5)
	if got := a.ReadPosition(); got != 1000 {
		t.Errorf("final position = %d, want 1000", got)
	}
	if !a.ReadStatus() {
		t.Error("status after completion reports moving")
	}
}

func TestScenarioTriangle(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !approxEq(a.profile.MoveVelocity, 200) || !approxEq(a.profile.MoveDuration, 1.0) {
		t.Fatalf("profile = %+v", *a.profile)
	}

	at(clk, 0.5)
	if got := a.ReadPosition(); got != 50 {
		t.Errorf("position at peak = %d, want 50", got)
	}
	at(clk, 0.999)
	if a.ReadStatus() {
		t.Error("done before move duration")
	}
	at(clk, 1.0)
	if got := a.ReadPosition(); got != 100 {
		t.Errorf("final position = %d, want 100", got)
	}
}

func TestScenarioAbortDuringCruise(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(1000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 2.0)
	if got := a.Stop(); got != StopCruise {
		t.Fatalf("Stop = %s, want %s", got, StopCruise)
	}

	p := a.profile
	if !approxEq(p.ConstVelDuration, 1.0) || !approxEq(p.DecelStartTime, 2.0) ||
		!approxEq(p.MoveDuration, 3.0) || !approxEq(p.MoveDistance, 800) {
		t.Errorf("re-planned profile = %+v", *p)
	}

	at(clk, 2.5)
	if got := a.ReadPosition(); got != 750 {
		t.Errorf("position while decelerating = %d, want 750", got)
	}
	at(clk, 3.0)
	if got := a.ReadPosition(); got != 800 {
		t.Errorf("final position = %d, want 800", got)
	}
	if a.profile != nil {
		t.Error("profile still active after completion")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	once, clk1, _ := newTestAxis(t)
	twice, clk2, _ := newTestAxis(t)

	for _, a := range []*Axis{once, twice} {
		if err := a.Move(1000); err != nil {
			t.Fatalf("Move: %v", err)
		}
	}
	at(clk1, 0.6)
	at(clk2, 0.6)

	if got := once.Stop(); got != StopAccel {
		t.Fatalf("Stop = %s, want %s", got, StopAccel)
	}
	if got := twice.Stop(); got != StopAccel {
		t.Fatalf("Stop = %s, want %s", got, StopAccel)
	}
	at(clk2, 0.8)
	if got := twice.Stop(); got != StopPending {
		t.Errorf("second Stop = %s, want %s", got, StopPending)
	}

	if *once.profile != *twice.profile {
		t.Errorf("profiles differ:\n once  %+v\n twice %+v", *once.profile, *twice.profile)
	}
}

func TestStopIdleAndStale(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if got := a.Stop(); got != StopIdle {
		t.Errorf("Stop at rest = %s, want %s", got, StopIdle)
	}

	if err := a.Move(100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 5)
	before := *a.profile
	if got := a.Stop(); got != StopStale {
		t.Errorf("late Stop = %s, want %s", got, StopStale)
	}
	if *a.profile != before || a.abortAt != nil {
		t.Error("late Stop changed the move")
	}
	if got := a.ReadPosition(); got != 100 {
		t.Errorf("position = %d, want 100", got)
	}
}

func TestStopDuringDecel(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(-1000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 3.0)
	if got := a.Stop(); got != StopDecel {
		t.Fatalf("Stop = %s, want %s", got, StopDecel)
	}
	at(clk, 4)
	if got := a.ReadPosition(); got != -1000 {
		t.Errorf("final position = %d, want -1000", got)
	}
}

func TestExactArrival(t *testing.T) {
	params := motion.DefaultParameters()
	params.Velocity = 333
	params.BaseVelocity = 17
	params.Acceleration = 977
	params.Deceleration = 977
	a, clk, _ := newTestAxis(t, WithParameters(params))

	if err := a.Move(12345.6); err != nil {
		t.Fatalf("Move: %v", err)
	}
	// nanosecond truncation could land just short of the end
	at(clk, a.profile.MoveDuration+1e-6)
	if got := a.ReadPosition(); got != 12346 {
		t.Fatalf("position = %d, want 12346", got)
	}
	if a.lastPosition != 12346 {
		t.Errorf("committed position = %g, want exactly 12346", a.lastPosition)
	}

	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		if got := a.ReadPosition(); got != 12346 {
			t.Errorf("read %d at rest = %d", i, got)
		}
	}
}

func TestLimitRejection(t *testing.T) {
	tests := []struct {
		name   string
		target float64
		want   error
		side   LimitSide
	}{
		{"above high", 501, ErrHighLimit, LimitHigh},
		{"below low", -501, ErrLowLimit, LimitLow},
		{"rounds above high", 500.5, ErrHighLimit, LimitHigh},
		{"huge positive", 1e300, ErrHighLimit, LimitHigh},
		{"huge negative", -1e300, ErrLowLimit, LimitLow},
		{"NaN", math.NaN(), ErrInvalidTarget, 0},
		{"positive infinity", math.Inf(1), ErrInvalidTarget, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, clk, st := newTestAxis(t)
			a.SetHighLimit(500)
			a.SetLowLimit(-500)
			a.SetEnforceLimits(true)

			if err := a.Move(200); err != nil {
				t.Fatalf("Move: %v", err)
			}
			at(clk, 0.5)
			active := *a.profile
			last := a.lastPosition

			err := a.Move(tt.target)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Move(%g) error = %v, want %v", tt.target, err, tt.want)
			}
			var limitErr *LimitError
			isLimit := errors.As(err, &limitErr)
			if tt.want == ErrInvalidTarget {
				if isLimit {
					t.Errorf("non-finite target reported as a limit violation: %v", err)
				}
			} else {
				if !isLimit || limitErr.Side != tt.side {
					t.Errorf("error %v is not a %s LimitError", err, tt.side)
				}
				if a.LastLimitError() == nil {
					t.Error("LastLimitError not recorded")
				}
			}
			if flag, msg := st.Error(); !flag || msg == "" {
				t.Error("rejection not reported to status")
			}
			if a.profile == nil || *a.profile != active || a.lastPosition != last {
				t.Error("rejected move changed axis state")
			}

			if err := a.Move(400); err != nil {
				t.Fatalf("Move after rejection: %v", err)
			}
			if flag, _ := st.Error(); flag {
				t.Error("accepted move did not clear the error")
			}
		})
	}
}

func TestRejectedMoveAfterCompletionKeepsState(t *testing.T) {
	a, clk, _ := newTestAxis(t)
	a.SetHighLimit(500)
	a.SetEnforceLimits(true)

	if err := a.Move(100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 5)

	if err := a.Move(1000); !errors.Is(err, ErrHighLimit) {
		t.Fatalf("Move error = %v, want ErrHighLimit", err)
	}
	if a.profile == nil || a.lastPosition != 0 {
		t.Errorf("rejected move committed the finished move: profile=%v last=%g", a.profile, a.lastPosition)
	}
	if got := a.ReadPosition(); got != 100 {
		t.Errorf("position = %d, want 100", got)
	}
}

func TestLimitsIgnoredWhenNotEnforced(t *testing.T) {
	a, clk, _ := newTestAxis(t)
	a.SetHighLimit(10)
	if err := a.Move(1000); err != nil {
		t.Errorf("Move without enforcement: %v", err)
	}
	at(clk, 1)
	active := *a.profile

	for _, target := range []float64{1e300, -1e300, math.NaN(), math.Inf(-1)} {
		if err := a.Move(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Move(%g) error = %v, want ErrInvalidTarget", target, err)
		}
	}
	if *a.profile != active {
		t.Error("invalid target changed the active move")
	}
	if got := a.ReadPosition(); got != 200 {
		t.Errorf("position = %d, want 200 in the positive direction", got)
	}
}

func TestLimitSettersRejectNonFinite(t *testing.T) {
	a, _, _ := newTestAxis(t)
	a.SetHighLimit(500)
	a.SetLowLimit(-500)

	a.SetHighLimit(math.NaN())
	a.SetLowLimit(math.Inf(-1))
	if a.HighLimit() != 500 || a.LowLimit() != -500 {
		t.Errorf("limits = [%d, %d], want [-500, 500]", a.LowLimit(), a.HighLimit())
	}

	a.SetHighLimit(1e300)
	a.SetLowLimit(-1e300)
	if a.HighLimit() != MaxPosition || a.LowLimit() != -MaxPosition {
		t.Errorf("limits = [%d, %d], want clamped to ±%d", a.LowLimit(), a.HighLimit(), MaxPosition)
	}

	a.SetEnforceLimits(true)
	if err := a.Move(10); err != nil {
		t.Errorf("Move inside clamped limits: %v", err)
	}
}

func TestMoveWhileMoving(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(1000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 2.0)
	if err := a.Move(0); err != nil {
		t.Fatalf("second Move: %v", err)
	}
	if a.lastPosition != 600 {
		t.Errorf("new move starts at %g, want 600", a.lastPosition)
	}
	if a.profile.Direction != -1 {
		t.Errorf("direction = %d, want -1", a.profile.Direction)
	}
	at(clk, 2.0+a.profile.MoveDuration)
	if got := a.ReadPosition(); got != 0 {
		t.Errorf("final position = %d, want 0", got)
	}
}

func TestMoveRelative(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.MoveRelative(100); err != nil {
		t.Fatalf("MoveRelative: %v", err)
	}
	at(clk, 10)
	if got := a.ReadPosition(); got != 100 {
		t.Fatalf("position = %d, want 100", got)
	}
	if err := a.MoveRelative(-250); err != nil {
		t.Fatalf("MoveRelative: %v", err)
	}
	at(clk, 20)
	if got := a.ReadPosition(); got != -150 {
		t.Errorf("position = %d, want -150", got)
	}
}

func TestReadStatusDoesNotCommit(t *testing.T) {
	a, clk, st := newTestAxis(t)

	if err := a.Move(100); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if a.ReadStatus() || st.DoneMoving() {
		t.Error("status done right after Move")
	}
	at(clk, 2)
	if !a.ReadStatus() {
		t.Error("status still moving after move duration")
	}
	if a.profile == nil {
		t.Error("ReadStatus committed the move")
	}
	a.ReadPosition()
	if a.profile != nil {
		t.Error("ReadPosition did not commit the move")
	}
}

func TestInvalidKinematics(t *testing.T) {
	a, _, st := newTestAxis(t)
	a.SetVelocity(0)
	if err := a.Move(10); !errors.Is(err, motion.ErrInvalidKinematics) {
		t.Errorf("Move error = %v, want ErrInvalidKinematics", err)
	}
	if a.profile != nil {
		t.Error("invalid move started")
	}
	if flag, _ := st.Error(); !flag {
		t.Error("error not reported")
	}
}

func TestAccessors(t *testing.T) {
	a, _, _ := newTestAxis(t)

	a.SetVelocity(250)
	a.SetBaseVelocity(10)
	a.SetAcceleration(125)
	a.SetHighLimit(99.6)
	a.SetLowLimit(-99.4)

	if a.Velocity() != 250 || a.BaseVelocity() != 10 {
		t.Errorf("velocity = %g/%g", a.Velocity(), a.BaseVelocity())
	}
	if a.Acceleration() != 125 || a.Deceleration() != 125 {
		t.Errorf("acceleration = %g, deceleration = %g, want both 125", a.Acceleration(), a.Deceleration())
	}
	if a.HighLimit() != 100 || a.LowLimit() != -99 {
		t.Errorf("limits = [%d, %d], want [-99, 100]", a.LowLimit(), a.HighLimit())
	}
	if a.Units() != "counts" || a.Resolution() != 1.0 {
		t.Errorf("units = %q, resolution = %g", a.Units(), a.Resolution())
	}
	if err := a.SetPosition(5); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetPosition error = %v, want ErrUnsupported", err)
	}
}

func TestParameterChangeDoesNotAffectActiveMove(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(1000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	a.SetVelocity(10)
	a.SetAcceleration(1)

	at(clk, 0.5)
	if got := a.ReadPosition(); got != 50 {
		t.Errorf("position = %d, want 50", got)
	}
	at(clk, 1.5)
	if got := a.Stop(); got != StopCruise {
		t.Errorf("Stop = %s, want %s", got, StopCruise)
	}
	at(clk, 2.5)
	if got := a.ReadPosition(); got != 600 {
		t.Errorf("final position = %d, want 600", got)
	}
}

func TestSnapshot(t *testing.T) {
	a, clk, _ := newTestAxis(t)

	if err := a.Move(-1000); err != nil {
		t.Fatalf("Move: %v", err)
	}
	at(clk, 2.0)
	s := a.Snapshot()
	if !s.Moving || s.Position != -600 || s.Phase != "cruise" || s.Velocity != -400 || s.Direction != -1 {
		t.Errorf("snapshot while moving = %+v", s)
	}
	if s.Target == nil || *s.Target != -1000 {
		t.Errorf("snapshot target = %v", s.Target)
	}

	at(clk, 4)
	s = a.Snapshot()
	if s.Moving || s.Position != -1000 || s.Phase != "idle" || s.Target != nil {
		t.Errorf("snapshot at rest = %+v", s)
	}
}

func approxEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
