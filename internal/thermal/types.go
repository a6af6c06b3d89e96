// Package thermal contains the per-channel hysteresis regulation logic.
// It is pure control logic: hardware access goes through the hal interfaces
// and readings are stored by the scan cycle before Evaluate runs.
package thermal

import (
	"github.com/nimo8741/ACES-HCU/internal/config"
	"github.com/nimo8741/ACES-HCU/internal/hal"
)

// StartupTemp is guaranteed colder than any real setpoint, so every heater
// starts commanded on rather than trusting an unread sensor.
const StartupTemp = -100.0

// ActuatorKind distinguishes how a channel's heater is driven.
type ActuatorKind int

const (
	// ActuatorDiscrete is a plain on/off output line.
	ActuatorDiscrete ActuatorKind = iota

	// ActuatorPWM uses a hardware PWM while heating and falls back to a
	// coarse 1-of-N-passes pattern on its output line once the PWM timer
	// has been reassigned to the pump.
	ActuatorPWM
)

// Channel is one monitored thermal zone.
type Channel struct {
	Name string

	// Setpoint band: below Low the heater turns on, above High it turns
	// off and the channel is marked satisfied. Between the two the
	// previous actuator state holds.
	Low  float64
	High float64

	Kind   ActuatorKind
	Output hal.OutputID
	PWM    hal.PWMChannel

	// SafetyCutoff marks the battery channel: its upper-bound off
	// condition is enforced before and independently of the hysteresis
	// branch.
	SafetyCutoff bool

	// Temp is the most recent calibrated reading, stored by the scan
	// cycle once per pass.
	Temp float64

	// HeaterOn is the most recent hysteresis decision.
	HeaterOn bool

	// Satisfied latches once the channel first exceeds its upper bound.
	Satisfied bool
}

// Channels builds the fixed channel set from the calibration config, in scan
// order. The battery carries the safety cutoff; the ECU and second fuel line
// are the PWM-backed heaters.
func Channels(cfg *config.Config) []*Channel {
	outputs := map[string]hal.OutputID{
		config.ChanBattery:   hal.OutBatteryHeater,
		config.ChanHopper:    hal.OutHopperHeater,
		config.ChanECU:       hal.OutECUHeater,
		config.ChanFuelLine1: hal.OutFuelLine1Heater,
		config.ChanFuelLine2: hal.OutFuelLine2Heater,
		config.ChanESB:       hal.OutESBHeater,
	}

	chans := make([]*Channel, 0, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		ch := &Channel{
			Name:   cc.Name,
			Low:    cc.Low,
			High:   cc.High,
			Kind:   ActuatorDiscrete,
			Output: outputs[cc.Name],
			Temp:   StartupTemp,
		}
		switch cc.Name {
		case config.ChanBattery:
			ch.SafetyCutoff = true
		case config.ChanECU:
			ch.Kind = ActuatorPWM
			ch.PWM = hal.PWMECUHeater
		case config.ChanFuelLine2:
			ch.Kind = ActuatorPWM
			ch.PWM = hal.PWMFuelLine2Heater
		}
		chans = append(chans, ch)
	}
	return chans
}
