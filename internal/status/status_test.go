package status

import "testing"

func TestStatus(t *testing.T) {
	s := New()
	if !s.DoneMoving() {
		t.Fatal("new status should be done")
	}

	s.SetMoving()
	if s.DoneMoving() {
		t.Error("SetMoving did not clear done")
	}
	s.SetDoneMoving()
	if !s.DoneMoving() {
		t.Error("SetDoneMoving did not set done")
	}

	s.SetError(true, "Target position exceeds high limit")
	if flag, msg := s.Error(); !flag || msg != "Target position exceeds high limit" {
		t.Errorf("Error() = %v, %q", flag, msg)
	}
	s.SetError(false, "")
	if flag, _ := s.Error(); flag {
		t.Error("error flag not cleared")
	}
}

func TestFanout(t *testing.T) {
	a, b := New(), New()
	f := Fanout{a, b}

	f.SetMoving()
	if a.DoneMoving() || b.DoneMoving() || f.DoneMoving() {
		t.Error("SetMoving not forwarded")
	}
	f.SetError(true, "boom")
	if flag, _ := b.Error(); !flag {
		t.Error("SetError not forwarded")
	}
	f.SetDoneMoving()
	if !a.DoneMoving() || !b.DoneMoving() {
		t.Error("SetDoneMoving not forwarded")
	}

	if !(Fanout{}).DoneMoving() {
		t.Error("empty fanout should report done")
	}
}
