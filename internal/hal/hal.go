// Package hal abstracts the hardware surface of the heater control unit.
// The real implementation uses Linux GPIO character devices, sysfs PWM and
// IIO ADC channels. The fake implementation allows testing without hardware.
package hal

// OutputID identifies a discrete output line.
type OutputID int

const (
	OutBatteryHeater OutputID = iota
	OutHopperHeater
	OutFuelLine1Heater
	OutESBHeater
	OutECUHeater // coarse drive once the PWM timer is reassigned to the pump
	OutFuelLine2Heater
	OutECUPower
	OutPumpDrive
	OutAliveLED
	OutWarmLED
	OutFuelLED
	NumOutputs
)

// DigitalWriter sets discrete output lines.
// Writes are idempotent and take effect immediately.
type DigitalWriter interface {
	SetOutput(id OutputID, on bool)
}

// PWMChannel identifies a hardware PWM generator.
type PWMChannel int

const (
	PWMECUHeater PWMChannel = iota
	PWMFuelLine2Heater
	PWMPump
	NumPWMChannels
)

// PWM drives the pulse-width generators.
// The comparator is inverting: a lower duty threshold means a larger on
// fraction of the fixed-period waveform.
type PWM interface {
	ConfigurePeriod(ch PWMChannel, period uint16)

	// SetDutyThreshold sets the comparator value; 0 <= value <= period.
	SetDutyThreshold(ch PWMChannel, value uint16)

	Enable(ch PWMChannel)
	Disable(ch PWMChannel)
}

// ADC is the shared multiplexed analog input. A new SelectChannel or
// StartConversion must not be issued before the prior result has been
// consumed with ReadRawCode.
type ADC interface {
	SelectChannel(code uint8)
	StartConversion()
	ConversionReady() bool
	ReadRawCode() uint16
}

// Timer is a periodic overflow source. The effective period is derived from
// the counter width, the reload value and the prescaler against the 1 MHz
// module clock. The overflow handler runs in background (interrupt) context;
// Stop returns only once no handler invocation is in flight, so reconfiguring
// between Stop and Start cannot lose or double-fire an overflow.
type Timer interface {
	SetReload(value uint16)
	SetPrescaler(value uint16)
	OnOverflow(fn func())
	Start()
	Stop()
}

// EdgeSource delivers flow-meter pulse edges to a handler while enabled.
// Disable returns only once no handler invocation is in flight, so Disable
// and Enable bracket the foreground's read-and-reset of the pulse counter:
// no edge lands between Disable returning and the next Enable, and the
// counter cannot tear.
type EdgeSource interface {
	OnEdge(fn func())
	Enable()
	Disable()
}

// Board bundles the hardware surface consumed by the control loop.
type Board struct {
	Outputs    DigitalWriter
	PWM        PWM
	ADC        ADC
	Heartbeat  Timer
	FlowWindow Timer
	FlowPulses EdgeSource
}
