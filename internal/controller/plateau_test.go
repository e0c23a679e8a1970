package controller

import "testing"

func TestPlateauTracker(t *testing.T) {
	p := NewPlateauTracker(3)
	p.Reset(10)

	if p.Update(10) || p.Update(10) {
		t.Fatal("Converged before patience reached")
	}
	if p.StaleCount() != 2 {
		t.Errorf("Expected stale count 2, got %d", p.StaleCount())
	}

	// A change resets the counter and records the new value
	if p.Update(11) {
		t.Fatal("Converged on a changed value")
	}
	if p.StaleCount() != 0 || *p.Last() != 11 {
		t.Errorf("Expected reset to 11, got count=%d last=%v", p.StaleCount(), *p.Last())
	}

	p.Update(11)
	p.Update(11)
	if !p.Update(11) {
		t.Error("Expected convergence after 3 unchanged updates")
	}
}

func TestPlateauTracker_ExactEquality(t *testing.T) {
	a, b := 0.1, 0.2
	p := NewPlateauTracker(2)
	p.Reset(a + b)

	// 0.3 != 0.1+0.2 in floating point
	p.Update(0.3)
	if p.StaleCount() != 0 {
		t.Error("Near-equal values must not count as unchanged")
	}
}

func TestPlateauTracker_ZeroInitial(t *testing.T) {
	p := NewPlateauTracker(1)
	p.Reset(0)
	if !p.Update(0) {
		t.Error("An initial best of 0 must be tracked like any other value")
	}
}

func TestPlateauTracker_ClearRestore(t *testing.T) {
	p := NewPlateauTracker(5)
	p.Reset(4)
	p.Update(4)
	p.Clear()
	if p.Last() != nil || p.StaleCount() != 0 {
		t.Error("Clear should forget everything")
	}
	if p.Update(7) || p.StaleCount() != 0 {
		t.Error("First update after Clear records the value")
	}

	v := 2.5
	p.Restore(&v, 4)
	if !p.Update(2.5) {
		t.Error("Expected convergence after restoring stale count 4 with patience 5")
	}

	p.Restore(nil, 0)
	if p.Last() != nil {
		t.Error("Restore(nil) should clear the last value")
	}
}
