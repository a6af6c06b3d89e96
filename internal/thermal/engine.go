package thermal

import (
	"github.com/nimo8741/ACES-HCU/internal/hal"
	"github.com/nimo8741/ACES-HCU/internal/mode"
)

// Engine applies the two-point hysteresis policy to every channel once per
// scan pass and reports when the full channel set is satisfied.
type Engine struct {
	outs     hal.DigitalWriter
	pwm      hal.PWM
	channels []*Channel

	coarsePasses int
	passCount    int
}

// NewEngine wires the engine to its actuators and configures the PWM-backed
// heaters at their calibrated duties. They start enabled: every channel
// begins colder than its setpoint.
func NewEngine(outs hal.DigitalWriter, pwm hal.PWM, channels []*Channel, pwmPeriod uint16, ecuDuty, fline2Duty float64, coarsePasses int) *Engine {
	e := &Engine{
		outs:         outs,
		pwm:          pwm,
		channels:     channels,
		coarsePasses: coarsePasses,
	}

	pwm.ConfigurePeriod(hal.PWMECUHeater, pwmPeriod)
	pwm.SetDutyThreshold(hal.PWMECUHeater, invertDuty(pwmPeriod, ecuDuty))
	pwm.Enable(hal.PWMECUHeater)

	pwm.ConfigurePeriod(hal.PWMFuelLine2Heater, pwmPeriod)
	pwm.SetDutyThreshold(hal.PWMFuelLine2Heater, invertDuty(pwmPeriod, fline2Duty))
	pwm.Enable(hal.PWMFuelLine2Heater)

	for _, ch := range channels {
		ch.HeaterOn = true
		if ch.Kind == ActuatorDiscrete {
			outs.SetOutput(ch.Output, true)
		}
	}
	return e
}

// invertDuty converts a duty fraction to the inverting comparator value.
func invertDuty(period uint16, duty float64) uint16 {
	return period - uint16(float64(period)*duty)
}

// Channels returns the engine's channel set in scan order.
func (e *Engine) Channels() []*Channel {
	return e.channels
}

// Evaluate runs one hysteresis pass over every channel using the readings
// stored by the scan cycle, then reports whether all channels are satisfied.
// The all-satisfied check happens exactly once per pass, after every channel
// has fresh data.
func (e *Engine) Evaluate(m mode.Mode) bool {
	e.passCount++
	for _, ch := range e.channels {
		e.evaluate(ch)
		e.actuate(ch, m)
	}

	for _, ch := range e.channels {
		if !ch.Satisfied {
			return false
		}
	}
	return true
}

// evaluate updates one channel's commanded state and satisfied flag.
func (e *Engine) evaluate(ch *Channel) {
	// Hard safety override: the battery's upper bound cuts the heater
	// regardless of hysteresis state.
	if ch.SafetyCutoff && ch.Temp > ch.High {
		ch.HeaterOn = false
		ch.Satisfied = true
		return
	}

	switch {
	case ch.Temp < ch.Low:
		ch.HeaterOn = true
	case ch.Temp > ch.High:
		ch.HeaterOn = false
		ch.Satisfied = true
	default:
		// Dead band: hold the previous state to avoid chattering.
	}
}

// actuate drives the channel's heater from its commanded state. PWM-backed
// channels use the hardware PWM only while heating; afterwards the timer
// belongs to the pump and they run the coarse 1-of-N pattern on their pin.
func (e *Engine) actuate(ch *Channel, m mode.Mode) {
	switch {
	case ch.Kind == ActuatorDiscrete:
		e.outs.SetOutput(ch.Output, ch.HeaterOn)
	case m == mode.Heating:
		if ch.HeaterOn {
			e.pwm.Enable(ch.PWM)
		} else {
			e.pwm.Disable(ch.PWM)
			e.outs.SetOutput(ch.Output, false)
		}
	default:
		e.outs.SetOutput(ch.Output, ch.HeaterOn && e.passCount%e.coarsePasses == 0)
	}
}

// ReleasePWM disables the PWM heater outputs; called at the heating ->
// pumping edge before the timer is reassigned to the pump.
func (e *Engine) ReleasePWM() {
	for _, ch := range e.channels {
		if ch.Kind != ActuatorPWM {
			continue
		}
		e.pwm.Disable(ch.PWM)
		e.outs.SetOutput(ch.Output, false)
	}
}
