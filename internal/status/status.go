// Package status provides a thread-safe snapshot of controller state for the
// periodic status log line and the one-shot print-state command.
package status

import (
	"sync"
	"time"

	"github.com/nimo8741/ACES-HCU/internal/flow"
	"github.com/nimo8741/ACES-HCU/internal/mode"
	"github.com/nimo8741/ACES-HCU/internal/thermal"
)

// ChannelStatus is one thermal zone's view in a snapshot.
type ChannelStatus struct {
	Name      string
	Temp      float64
	HeaterOn  bool
	Satisfied bool
}

// PumpStatus is the flow controller's view in a snapshot.
type PumpStatus struct {
	Running         bool
	DutyPercent     float64
	LastPulses      int
	LastError       int
	Nominal         bool
	FlowGramsPerSec float64
	WindowsRun      int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode      mode.Mode
	Channels  []ChannelStatus
	Pump      PumpStatus
	StartTime time.Time
	Now       time.Time
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time.
func NewTracker(startTime time.Time) *Tracker {
	return &Tracker{snap: Snapshot{StartTime: startTime}}
}

// Update records the current mode and channel states.
// Called from the foreground loop after each scan pass.
func (t *Tracker) Update(m mode.Mode, channels []*thermal.Channel) {
	t.mu.Lock()
	t.snap.Mode = m
	t.snap.Channels = t.snap.Channels[:0]
	for _, ch := range channels {
		t.snap.Channels = append(t.snap.Channels, ChannelStatus{
			Name:      ch.Name,
			Temp:      ch.Temp,
			HeaterOn:  ch.HeaterOn,
			Satisfied: ch.Satisfied,
		})
	}
	t.mu.Unlock()
}

// SetPumpRunning records whether the pump drive is active.
func (t *Tracker) SetPumpRunning(running bool) {
	t.mu.Lock()
	t.snap.Pump.Running = running
	t.mu.Unlock()
}

// RecordWindow records the outcome of one flow sampling window.
func (t *Tracker) RecordWindow(w flow.Window, duty float64) {
	t.mu.Lock()
	t.snap.Pump.WindowsRun++
	t.snap.Pump.LastPulses = w.Pulses
	t.snap.Pump.LastError = w.Error
	t.snap.Pump.Nominal = w.Nominal
	t.snap.Pump.FlowGramsPerSec = w.FlowGramsPerSec
	t.snap.Pump.DutyPercent = duty * 100
	if w.Exhausted {
		t.snap.Pump.Running = false
	}
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelStatus(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
