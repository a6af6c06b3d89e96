// Package mode holds the operating-mode state machine. The mode only ever
// advances Heating -> Pumping -> Exhausted; Exhausted is terminal.
package mode

// Mode is the operating mode of the control unit.
type Mode uint8

const (
	Heating Mode = iota
	Pumping
	Exhausted
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Heating:
		return "HEATING"
	case Pumping:
		return "PUMPING"
	case Exhausted:
		return "EXHAUSTED"
	}
	return "UNKNOWN"
}

// Controller gates mode transitions. Both transitions are edge-triggered:
// the first qualifying call fires and reports true, every later call is a
// no-op reporting false, so callers may re-check on every pass.
type Controller struct {
	current Mode
}

// New returns a controller in Heating.
func New() *Controller {
	return &Controller{current: Heating}
}

// Current returns the current mode.
func (c *Controller) Current() Mode {
	return c.current
}

// MarkAllWarm fires the Heating -> Pumping transition. It reports whether
// this call fired it; at most one call per run does.
func (c *Controller) MarkAllWarm() bool {
	if c.current != Heating {
		return false
	}
	c.current = Pumping
	return true
}

// MarkExhausted fires the Pumping -> Exhausted transition. Exhausted is
// terminal; no transition ever leaves it.
func (c *Controller) MarkExhausted() bool {
	if c.current != Pumping {
		return false
	}
	c.current = Exhausted
	return true
}
