package mode

import "testing"

func TestNewStartsHeating(t *testing.T) {
	c := New()
	if c.Current() != Heating {
		t.Errorf("expected Heating, got %s", c.Current())
	}
}

func TestMarkAllWarmFiresExactlyOnce(t *testing.T) {
	c := New()

	if !c.MarkAllWarm() {
		t.Fatal("first MarkAllWarm should fire")
	}
	if c.Current() != Pumping {
		t.Errorf("expected Pumping, got %s", c.Current())
	}

	// Re-checked every pass: later calls must be no-ops.
	for i := 0; i < 5; i++ {
		if c.MarkAllWarm() {
			t.Errorf("call %d: MarkAllWarm fired again", i)
		}
	}
	if c.Current() != Pumping {
		t.Errorf("expected Pumping after repeats, got %s", c.Current())
	}
}

func TestMarkExhaustedOnlyFromPumping(t *testing.T) {
	c := New()
	if c.MarkExhausted() {
		t.Error("MarkExhausted fired from Heating")
	}

	c.MarkAllWarm()
	if !c.MarkExhausted() {
		t.Fatal("MarkExhausted should fire from Pumping")
	}
	if c.Current() != Exhausted {
		t.Errorf("expected Exhausted, got %s", c.Current())
	}
}

func TestExhaustedIsTerminal(t *testing.T) {
	c := New()
	c.MarkAllWarm()
	c.MarkExhausted()

	if c.MarkAllWarm() {
		t.Error("MarkAllWarm fired from Exhausted")
	}
	if c.MarkExhausted() {
		t.Error("MarkExhausted fired twice")
	}
	if c.Current() != Exhausted {
		t.Errorf("expected Exhausted, got %s", c.Current())
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		m    Mode
		want string
	}{
		{Heating, "HEATING"},
		{Pumping, "PUMPING"},
		{Exhausted, "EXHAUSTED"},
		{Mode(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.m, got, tt.want)
		}
	}
}
