// Package flow implements the pulse-counting flow-rate feedback controller:
// a proportional loop that trims the pump PWM duty from the meter pulse count
// observed over fixed hardware-timed sampling windows.
package flow

import (
	"math"

	"github.com/nimo8741/ACES-HCU/internal/config"
	"github.com/nimo8741/ACES-HCU/internal/hal"
)

// Flow-window timer setup: full 8-bit range at prescaler 1024 against the
// 1 MHz module clock gives the 0.262144 s sampling window the calibration
// constants are expressed in.
const (
	windowReload    = 0
	windowPrescaler = 1024
)

// Window reports one completed sampling window.
type Window struct {
	Pulses int

	// Error is desired minus observed, signed.
	Error int

	// Locked is set while the post-transition lock-out is still running;
	// no adjustment was made.
	Locked bool

	// Nominal is set when |Error| is within the configured tolerance.
	Nominal bool

	// Exhausted is set when a post-lockout window saw zero pulses.
	Exhausted bool

	// Threshold is the pump comparator value after any adjustment.
	Threshold uint16

	// FlowGramsPerSec is the mass flow implied by the observed count.
	FlowGramsPerSec float64
}

// Controller owns the pump drive and the pulse counter. The counter is the
// only state shared with background context: the edge handler increments it,
// and the foreground reads it only after disabling the edge source.
type Controller struct {
	edges  hal.EdgeSource
	window hal.Timer
	pwm    hal.PWM
	outs   hal.DigitalWriter

	desired   int
	tolerance int
	vPerPulse float64
	pumpSlope float64
	totalV    float64
	damping   float64
	period    uint16

	// threshold is kept in float so sub-tick corrections accumulate
	// instead of vanishing to integer truncation.
	threshold float64
	lockout   int

	// pulses is written by the edge handler while the source is enabled
	// and read-and-reset by the foreground while it is disabled.
	pulses uint32

	done    chan struct{}
	fuelLED bool
}

// NewController derives the control constants from the calibration set and
// registers the pulse and window handlers. The pump does not run until Start.
func NewController(b *hal.Board, cfg *config.Config) *Controller {
	c := &Controller{
		edges:     b.FlowPulses,
		window:    b.FlowWindow,
		pwm:       b.PWM,
		outs:      b.Outputs,
		desired:   cfg.DesiredPulses(),
		tolerance: cfg.PulseTolerance(),
		vPerPulse: cfg.VoltsPerPulse(),
		pumpSlope: cfg.Pump.VoltsPerGramSec,
		totalV:    cfg.Pump.TotalVolts,
		damping:   cfg.Pump.Damping,
		period:    cfg.Pump.Period,
		threshold: float64(cfg.InitialThreshold()),
		lockout:   cfg.Pump.LockoutWindows,
		done:      make(chan struct{}, 1),
	}

	c.edges.OnEdge(func() { c.pulses++ })
	c.edges.Disable()

	c.window.OnOverflow(func() {
		select {
		case c.done <- struct{}{}:
		default:
		}
	})
	c.window.SetReload(windowReload)
	c.window.SetPrescaler(windowPrescaler)

	return c
}

// Start begins pump drive at the calibrated initial duty. The lock-out
// counter holds that duty for the first windows so fluid and mechanical
// transients settle before feedback engages.
func (c *Controller) Start() {
	c.outs.SetOutput(hal.OutPumpDrive, true)
	c.pwm.ConfigurePeriod(hal.PWMPump, c.period)
	c.pwm.SetDutyThreshold(hal.PWMPump, c.thresholdValue())
	c.pwm.Enable(hal.PWMPump)
}

// Stop disables the pump PWM and drives the pump line low.
func (c *Controller) Stop() {
	c.pwm.Disable(hal.PWMPump)
	c.outs.SetOutput(hal.OutPumpDrive, false)
}

// RunWindow opens one fixed-duration counting window and applies the
// proportional adjustment to the pump duty. It blocks until the window
// timer's overflow fires; the hardware window always completes.
func (c *Controller) RunWindow() Window {
	c.pulses = 0
	c.edges.Enable()
	c.window.Start()
	<-c.done
	c.window.Stop()

	// Critical section: with the edge source disabled no pulse can land
	// between here and the read, so the count cannot tear and no pulse is
	// lost (it is re-enabled at the next window open).
	c.edges.Disable()
	observed := int(c.pulses)

	w := Window{
		Pulses:    observed,
		Error:     c.desired - observed,
		Threshold: c.thresholdValue(),
	}
	w.FlowGramsPerSec = c.vPerPulse * float64(observed) / c.pumpSlope

	if c.lockout > 0 {
		// Hold the initial calibrated duty while transients settle.
		c.lockout--
		w.Locked = true
		return w
	}

	if observed == 0 {
		// No fuel left to pump.
		w.Exhausted = true
		c.Stop()
		return w
	}

	// Proportional correction: pulse deficit -> positive delta -> lower
	// threshold -> larger duty on the inverting comparator.
	delta := float64(w.Error) * c.vPerPulse * float64(c.period) / c.totalV
	next := c.threshold - delta/c.damping
	if next < 0 {
		next = 0
	}
	if next > float64(c.period) {
		next = float64(c.period)
	}
	c.threshold = next
	c.pwm.SetDutyThreshold(hal.PWMPump, c.thresholdValue())
	w.Threshold = c.thresholdValue()

	err := w.Error
	if err < 0 {
		err = -err
	}
	w.Nominal = err <= c.tolerance
	if w.Nominal {
		c.fuelLED = true
	} else {
		c.fuelLED = !c.fuelLED
	}
	c.outs.SetOutput(hal.OutFuelLED, c.fuelLED)

	return w
}

// thresholdValue rounds the working threshold to the comparator register.
func (c *Controller) thresholdValue() uint16 {
	return uint16(math.Round(c.threshold))
}

// Duty returns the current pump duty fraction.
func (c *Controller) Duty() float64 {
	return (float64(c.period) - c.threshold) / float64(c.period)
}

// DesiredPulses returns the per-window pulse target.
func (c *Controller) DesiredPulses() int { return c.desired }

// Tolerance returns the nominal-flow pulse tolerance.
func (c *Controller) Tolerance() int { return c.tolerance }
