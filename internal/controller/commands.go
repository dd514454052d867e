package controller

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"virtualmotor/internal/axis"
)

var (
	ErrUnknownAxis    = errors.New("unknown axis")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

const (
	replyOK  = "OK"
	replyErr = "ERR"
)

type handler func(c *Controller, index int, a *axis.Axis, args []string) (string, error)

// commands maps a mnemonic to its handler. Queries end in "?".
var commands = map[string]handler{
	"MV":   moveAbsolute,
	"MR":   moveRelative,
	"AB":   abort,
	"POS?": readPosition,
	"POS":  setPosition,
	"ST?":  readStatus,
	"VEL":  setFloat((*axis.Axis).SetVelocity),
	"VEL?": getFloat((*axis.Axis).Velocity),
	"BAS":  setFloat((*axis.Axis).SetBaseVelocity),
	"BAS?": getFloat((*axis.Axis).BaseVelocity),
	"ACC":  setFloat((*axis.Axis).SetAcceleration),
	"ACC?": getFloat((*axis.Axis).Acceleration),
	"HLM":  setFloat((*axis.Axis).SetHighLimit),
	"HLM?": getInt((*axis.Axis).HighLimit),
	"LLM":  setFloat((*axis.Axis).SetLowLimit),
	"LLM?": getInt((*axis.Axis).LowLimit),
	"LIM":  setEnforceLimits,
	"LIM?": readEnforceLimits,
	"JOG":  unsupported,
}

// Execute runs one command line and returns the reply line. Failures come back
// as "ERR <reason>"; the returned error carries the same failure for logging.
func (c *Controller) Execute(line string) (string, error) {
	reply, err := c.execute(line)
	if err != nil {
		c.logger.Debug("Command failed", "command", line, "error", err)
		return fmt.Sprintf("%s %s", replyErr, err), err
	}
	return reply, nil
}

func (c *Controller) execute(line string) (string, error) {
	fields, err := shlex.Split(strings.TrimSpace(line))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	if len(fields) < 2 {
		return "", fmt.Errorf("%w: expected \"<axis> <command> [value]\"", ErrUnknownCommand)
	}

	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownAxis, fields[0])
	}

	name := strings.ToUpper(fields[1])
	h, ok := commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, fields[1])
	}

	var reply string
	err = c.Do(index, func(a *axis.Axis) error {
		var err error
		reply, err = h(c, index, a, fields[2:])
		return err
	})
	return reply, err
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one value, got %d", ErrBadArgument, len(args))
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadArgument, args[0])
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrBadArgument, args[0])
	}
	return v, nil
}

func noArgs(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: unexpected value %q", ErrBadArgument, strings.Join(args, " "))
	}
	return nil
}

func moveAbsolute(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	target, err := floatArg(args)
	if err != nil {
		return "", err
	}
	if err := a.Move(target); err != nil {
		return "", err
	}
	return replyOK, nil
}

func moveRelative(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	delta, err := floatArg(args)
	if err != nil {
		return "", err
	}
	if err := a.MoveRelative(delta); err != nil {
		return "", err
	}
	return replyOK, nil
}

func abort(c *Controller, index int, a *axis.Axis, args []string) (string, error) {
	if err := noArgs(args); err != nil {
		return "", err
	}
	result := a.Stop()
	c.logger.Debug("Stop requested", "axis", index, "result", result)
	return replyOK, nil
}

func readPosition(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	if err := noArgs(args); err != nil {
		return "", err
	}
	return strconv.Itoa(a.ReadPosition()), nil
}

func setPosition(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	position, err := floatArg(args)
	if err != nil {
		return "", err
	}
	if err := a.SetPosition(position); err != nil {
		return "", err
	}
	return replyOK, nil
}

func readStatus(c *Controller, index int, a *axis.Axis, args []string) (string, error) {
	if err := noArgs(args); err != nil {
		return "", err
	}
	return strconv.Itoa(int(c.statusWord(index, a))), nil
}

func setEnforceLimits(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	v, err := floatArg(args)
	if err != nil {
		return "", err
	}
	a.SetEnforceLimits(v != 0)
	return replyOK, nil
}

func readEnforceLimits(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
	if err := noArgs(args); err != nil {
		return "", err
	}
	if a.EnforceLimits() {
		return "1", nil
	}
	return "0", nil
}

func unsupported(_ *Controller, _ int, _ *axis.Axis, _ []string) (string, error) {
	return "", axis.ErrUnsupported
}

func setFloat(set func(*axis.Axis, float64)) handler {
	return func(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
		v, err := floatArg(args)
		if err != nil {
			return "", err
		}
		set(a, v)
		return replyOK, nil
	}
}

func getFloat(get func(*axis.Axis) float64) handler {
	return func(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
		if err := noArgs(args); err != nil {
			return "", err
		}
		return strconv.FormatFloat(get(a), 'f', -1, 64), nil
	}
}

func getInt(get func(*axis.Axis) int) handler {
	return func(_ *Controller, _ int, a *axis.Axis, args []string) (string, error) {
		if err := noArgs(args); err != nil {
			return "", err
		}
		return strconv.Itoa(get(a)), nil
	}
}
