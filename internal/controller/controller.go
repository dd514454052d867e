// Package controller implements the virtual motor controller: a set of
// simulated axes driven by the line-oriented command set the motor record
// driver sends ("1 MV 1000", "1 POS?", "1 AB", ...).
package controller

import (
	"fmt"
	"strings"
	"sync"

	"virtualmotor/internal/axis"
	"virtualmotor/internal/clock"
	"virtualmotor/internal/logging"
	"virtualmotor/internal/motion"
	"virtualmotor/internal/status"
	"virtualmotor/pkg/types"
)

// Status word bits returned by ST?.
const (
	StatusDirection uint16 = 0x1
	StatusDone      uint16 = 0x2
	StatusHighLimit uint16 = 0x8
	StatusLowLimit  uint16 = 0x10
	StatusError     uint16 = 0x200
)

// ReporterFactory builds the status reporter for axis index (from 1). The
// in-memory status is always attached; the factory adds mirrors next to it.
type ReporterFactory func(index int) status.Reporter

type Option func(*Controller)

func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

func WithReporterFactory(f ReporterFactory) Option {
	return func(ctrl *Controller) { ctrl.mirrors = f }
}

func WithLogger(l *logging.Logger) Option {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// Controller owns the axes and serializes every command against them.
type Controller struct {
	mu       sync.Mutex
	axes     []*axis.Axis
	statuses []*status.Status
	clock    clock.Clock
	mirrors  ReporterFactory
	logger   *logging.Logger
}

func New(configs []types.AxisConfig, opts ...Option) *Controller {
	c := &Controller{}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.System()
	}
	if c.logger == nil {
		c.logger = logging.GetLogger("controller")
	}

	for i, cfg := range configs {
		index := i + 1
		st := status.New()
		var reporter status.Reporter = st
		if c.mirrors != nil {
			if mirror := c.mirrors(index); mirror != nil {
				reporter = status.Fanout{st, mirror}
			}
		}

		c.axes = append(c.axes, axis.New(index,
			axis.WithClock(c.clock),
			axis.WithReporter(reporter),
			axis.WithParameters(cfg.Parameters),
			axis.WithLogger(c.logger),
		))
		c.statuses = append(c.statuses, st)
		c.logger.Info("Axis created", "axis", index, "name", cfg.Name, "velocity", cfg.Velocity, "acceleration", cfg.Acceleration)
	}
	return c
}

func (c *Controller) NumAxes() int {
	return len(c.axes)
}

// Do runs fn against axis index (from 1) while holding the controller lock.
func (c *Controller) Do(index int, fn func(*axis.Axis) error) error {
	if index < 1 || index > len(c.axes) {
		return fmt.Errorf("%w: %d", ErrUnknownAxis, index)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.axes[index-1])
}

// Configure applies new kinematics to the running axes. Moves already under
// way finish with the parameters they were planned with.
func (c *Controller) Configure(configs []types.AxisConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, cfg := range configs {
		if i >= len(c.axes) {
			c.logger.Warn("Ignoring axis added to configuration; restart to create it", "axis", i+1)
			continue
		}
		c.axes[i].Configure(cfg.Parameters)
	}
}

// StatusWord polls axis index and packs the result into the ST? bit layout.
func (c *Controller) StatusWord(index int) (uint16, error) {
	var word uint16
	err := c.Do(index, func(a *axis.Axis) error {
		word = c.statusWord(index, a)
		return nil
	})
	return word, err
}

func (c *Controller) statusWord(index int, a *axis.Axis) uint16 {
	var word uint16
	if a.ReadStatus() {
		word |= StatusDone
	}
	if a.Direction() > 0 {
		word |= StatusDirection
	}
	if limitErr := a.LastLimitError(); limitErr != nil {
		if limitErr.Side == axis.LimitHigh {
			word |= StatusHighLimit
		} else {
			word |= StatusLowLimit
		}
	}
	if flag, _ := c.statuses[index-1].Error(); flag {
		word |= StatusError
	}
	return word
}

// Snapshot polls every axis.
func (c *Controller) Snapshot() []axis.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshots := make([]axis.Snapshot, 0, len(c.axes))
	for i, a := range c.axes {
		s := a.Snapshot()
		if flag, msg := c.statuses[i].Error(); flag && s.Error == "" {
			s.Error = msg
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}

// Parameters returns the current kinematics of every axis.
func (c *Controller) Parameters() []motion.Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := make([]motion.Parameters, len(c.axes))
	for i, a := range c.axes {
		params[i] = a.Parameters()
	}
	return params
}

// Describe is a short human-readable summary of the controller.
func (c *Controller) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "virtual motor controller, %d axes\n", len(c.axes))
	for i, p := range c.Parameters() {
		fmt.Fprintf(&b, "  axis %d: VEL %g BAS %g ACC %g DEC %g limits [%d, %d] enforce=%v (%s)\n",
			i+1, p.Velocity, p.BaseVelocity, p.Acceleration, p.Deceleration, p.LowLimit, p.HighLimit, p.EnforceLimits, p.Units)
	}
	return b.String()
}
