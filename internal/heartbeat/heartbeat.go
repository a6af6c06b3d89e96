// Package heartbeat drives the status-indicator cadence from the background
// heartbeat timer. The sub-counter is owned exclusively by the overflow
// handler; the foreground only reconfigures the cadence at a mode edge, with
// the timer stopped.
package heartbeat

import (
	"github.com/nimo8741/ACES-HCU/internal/hal"
	"github.com/nimo8741/ACES-HCU/internal/mode"
)

// Cadence is one blink pattern: the alive LED is on for OnTicks and off for
// OffTicks of the timer period set by Reload/Prescaler.
type Cadence struct {
	OnTicks  int
	OffTicks int

	Reload    uint16
	Prescaler uint16
}

// Mode cadence table. Reload values are against the 16-bit heartbeat counter
// and the 1 MHz module clock: heating ticks at 0.5 s (1 s on / 1 s off),
// pumping at 245*1024 us ~ 0.25 s (0.75/0.25), exhausted at 196*256 us
// ~ 0.05 s (0.1/0.9).
var cadences = map[mode.Mode]Cadence{
	mode.Heating:   {OnTicks: 2, OffTicks: 2, Reload: 3036, Prescaler: 8},
	mode.Pumping:   {OnTicks: 3, OffTicks: 1, Reload: 65291, Prescaler: 1024},
	mode.Exhausted: {OnTicks: 2, OffTicks: 18, Reload: 65340, Prescaler: 256},
}

// CadenceFor returns the cadence table entry for a mode.
func CadenceFor(m mode.Mode) Cadence {
	return cadences[m]
}

// Heartbeat owns the indicator sub-counter.
type Heartbeat struct {
	outs  hal.DigitalWriter
	timer hal.Timer

	mode    mode.Mode
	cad     Cadence
	counter int
	warmOn  bool
}

// New wires the heartbeat to its timer and starts the heating cadence.
func New(outs hal.DigitalWriter, timer hal.Timer) *Heartbeat {
	h := &Heartbeat{outs: outs, timer: timer}
	h.timer.OnOverflow(h.tick)
	h.SetMode(mode.Heating)
	return h
}

// SetMode swaps the cadence table entry for the new mode. The swap happens
// exactly once per mode edge, and the timer is stopped across the
// reconfiguration so no tick is lost or double-fired.
func (h *Heartbeat) SetMode(m mode.Mode) {
	h.timer.Stop()

	h.mode = m
	h.cad = cadences[m]
	h.counter = 0
	h.timer.SetReload(h.cad.Reload)
	h.timer.SetPrescaler(h.cad.Prescaler)

	switch m {
	case mode.Heating:
		h.warmOn = true
		h.outs.SetOutput(hal.OutWarmLED, true)
		h.outs.SetOutput(hal.OutAliveLED, true)
	case mode.Pumping:
		// Warming complete: the warm LED goes solid.
		h.outs.SetOutput(hal.OutWarmLED, true)
		h.outs.SetOutput(hal.OutAliveLED, true)
	case mode.Exhausted:
		h.outs.SetOutput(hal.OutWarmLED, true)
		h.outs.SetOutput(hal.OutFuelLED, true)
		h.outs.SetOutput(hal.OutAliveLED, true)
	}

	h.timer.Start()
}

// tick runs in timer-interrupt context. It reloads the timer register on
// every trigger and advances the sub-counter through the on/off cycle.
func (h *Heartbeat) tick() {
	h.timer.SetReload(h.cad.Reload)

	cycle := h.cad.OnTicks + h.cad.OffTicks
	h.counter = (h.counter + 1) % cycle
	h.outs.SetOutput(hal.OutAliveLED, h.counter < h.cad.OnTicks)

	if h.mode == mode.Heating {
		// The warming LED blinks at the full tick rate while heating.
		h.warmOn = !h.warmOn
		h.outs.SetOutput(hal.OutWarmLED, h.warmOn)
	}
}
