// Package status defines the moving/done reporting contract an axis writes
// to, together with the in-memory implementation used by the controller.
package status

import "sync"

// Reporter receives an axis's moving/done/error signals. Axes write to it and
// only read DoneMoving back to answer a status poll.
type Reporter interface {
	SetError(flag bool, message string)
	SetMoving()
	SetDoneMoving()
	DoneMoving() bool
}

// Status is the default Reporter.
type Status struct {
	mu         sync.RWMutex
	doneMoving bool
	err        bool
	message    string
}

func New() *Status {
	return &Status{doneMoving: true}
}

func (s *Status) SetError(flag bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = flag
	s.message = message
}

func (s *Status) SetMoving() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneMoving = false
}

func (s *Status) SetDoneMoving() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneMoving = true
}

func (s *Status) DoneMoving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doneMoving
}

// Error returns the error flag and its message.
func (s *Status) Error() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err, s.message
}

// Fanout forwards every signal to several reporters. DoneMoving answers from
// the first one.
type Fanout []Reporter

func (f Fanout) SetError(flag bool, message string) {
	for _, r := range f {
		r.SetError(flag, message)
	}
}

func (f Fanout) SetMoving() {
	for _, r := range f {
		r.SetMoving()
	}
}

func (f Fanout) SetDoneMoving() {
	for _, r := range f {
		r.SetDoneMoving()
	}
}

func (f Fanout) DoneMoving() bool {
	if len(f) == 0 {
		return true
	}
	return f[0].DoneMoving()
}
