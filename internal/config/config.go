// Package config holds the calibration parameter set for the heater control
// unit. All device constants live here rather than scattered through the
// control packages, so a bench recalibration is a config edit, not a code
// change.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel names, in scan order.
const (
	ChanBattery   = "battery"
	ChanHopper    = "hopper"
	ChanECU       = "ecu"
	ChanFuelLine1 = "fuel_line_1"
	ChanFuelLine2 = "fuel_line_2"
	ChanESB       = "esb"
)

// Config is the full calibration parameter set.
type Config struct {
	Fuel     FuelConfig         `yaml:"fuel"`
	Pump     PumpConfig         `yaml:"pump"`
	Heaters  HeaterConfig       `yaml:"heaters"`
	Channels []ChannelConfig    `yaml:"channels"`
	Groups   map[string]Affine  `yaml:"groups"`
	Mux      map[string][]uint8 `yaml:"mux"`
	Revision string             `yaml:"revision"`

	// SettleDelay is inserted after each full scan pass while heating.
	SettleDelay Duration `yaml:"settle_delay"`

	// ECUPresent skips the pumping phase: a real engine control unit
	// manages its own fuel, so the controller goes straight to exhausted
	// once warm.
	ECUPresent bool `yaml:"ecu_present"`
}

// FuelConfig describes the fuel target and the flow meter.
type FuelConfig struct {
	FlowGramsPerSec     float64 `yaml:"flow_g_per_sec"`
	ErrorGramsPerSec    float64 `yaml:"error_g_per_sec"`
	DensityGramsPerML   float64 `yaml:"density_g_per_ml"`
	MeterPulsesPerLiter float64 `yaml:"meter_pulses_per_liter"`

	// WindowSeconds is the fixed flow-sampling window duration.
	WindowSeconds float64 `yaml:"window_seconds"`
}

// PumpConfig describes the pump drive calibration.
type PumpConfig struct {
	// VoltsPerGramSec is the slope of the pump's voltage-to-mass-flow line.
	VoltsPerGramSec float64 `yaml:"volts_per_g_sec"`
	TotalVolts      float64 `yaml:"total_volts"`

	// Damping divides each proportional correction; larger settles slower
	// with less overshoot.
	Damping     float64 `yaml:"damping"`
	InitialDuty float64 `yaml:"initial_duty"`
	Period      uint16  `yaml:"period"`

	// LockoutWindows is the number of sampling windows after entering the
	// pumping phase during which no duty adjustment is made.
	LockoutWindows int `yaml:"lockout_windows"`
}

// HeaterConfig describes the PWM-backed heater channels.
type HeaterConfig struct {
	ECUDuty       float64 `yaml:"ecu_duty"`
	FuelLine2Duty float64 `yaml:"fuel_line_2_duty"`
	PWMPeriod     uint16  `yaml:"pwm_period"`

	// CoarsePasses is N in the 1-of-N-passes drive pattern used once the
	// high-resolution PWM timer has been handed to the pump.
	CoarsePasses int `yaml:"coarse_passes"`
}

// ChannelConfig is one monitored thermal zone.
type ChannelConfig struct {
	Name  string  `yaml:"name"`
	Group string  `yaml:"group"`
	Low   float64 `yaml:"low"`
	High  float64 `yaml:"high"`
}

// Duration is a time.Duration that also unmarshals from YAML strings like
// "250ms".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a nanosecond count.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: bad duration %q: %w", s, perr)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("config: bad duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the standard library view of the duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Affine converts raw ADC codes to physical units and back.
type Affine struct {
	Scale  float64 `yaml:"scale"`
	Offset float64 `yaml:"offset"`
}

// Apply converts a raw code to physical units.
func (a Affine) Apply(code uint16) float64 {
	return float64(code)*a.Scale + a.Offset
}

// InvertCode recovers the raw code that produces the given reading.
func (a Affine) InvertCode(v float64) uint16 {
	return uint16(math.Round((v - a.Offset) / a.Scale))
}

// Default returns the as-shipped calibration. The thermal transform maps the
// 10-bit ADC through the sensor's 208.8 degF/V gain against a 5 V reference.
func Default() *Config {
	return &Config{
		Fuel: FuelConfig{
			FlowGramsPerSec:     4.8,
			ErrorGramsPerSec:    0.13,
			DensityGramsPerML:   0.81,
			MeterPulsesPerLiter: 91387,
			WindowSeconds:       0.262144,
		},
		Pump: PumpConfig{
			VoltsPerGramSec: 0.382587,
			TotalVolts:      22.2,
			Damping:         3.0,
			InitialDuty:     0.55,
			Period:          1000,
			LockoutWindows:  5,
		},
		Heaters: HeaterConfig{
			ECUDuty:       0.5,
			FuelLine2Duty: 0.20946,
			PWMPeriod:     256,
			CoarsePasses:  8,
		},
		Channels: []ChannelConfig{
			{Name: ChanBattery, Group: "thermal", Low: 8, High: 10},
			{Name: ChanHopper, Group: "thermal", Low: 8, High: 10},
			{Name: ChanECU, Group: "thermal", Low: 995, High: 1000},
			{Name: ChanFuelLine1, Group: "thermal", Low: 8, High: 10},
			{Name: ChanFuelLine2, Group: "thermal", Low: 995, High: 1000},
			{Name: ChanESB, Group: "thermal", Low: 8, High: 10},
		},
		Groups: map[string]Affine{
			// 5.0/1024 V per code times 208.8 degF per volt.
			"thermal": {Scale: 1.01953125, Offset: -79.6},
		},
		Mux: map[string][]uint8{
			// revA is the schematic's channel assignment; revB is the
			// as-wired board, where fuel line 2 landed on input 6.
			"revA": {0, 2, 3, 4, 5, 6},
			"revB": {0, 1, 2, 3, 6, 5},
		},
		Revision:    "revB",
		SettleDelay: Duration(250 * time.Millisecond),
	}
}

// Load reads a YAML calibration file over the defaults. A missing file is not
// an error; the defaults apply.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	table, ok := c.Mux[c.Revision]
	if !ok {
		return fmt.Errorf("config: unknown hardware revision %q", c.Revision)
	}
	if len(table) != len(c.Channels) {
		return fmt.Errorf("config: mux table %q has %d entries for %d channels",
			c.Revision, len(table), len(c.Channels))
	}
	for _, ch := range c.Channels {
		if _, ok := c.Groups[ch.Group]; !ok {
			return fmt.Errorf("config: channel %s references unknown group %q", ch.Name, ch.Group)
		}
		if ch.Low >= ch.High {
			return fmt.Errorf("config: channel %s setpoint band [%g,%g] is empty", ch.Name, ch.Low, ch.High)
		}
	}
	if c.Fuel.FlowGramsPerSec <= 0 || c.Fuel.DensityGramsPerML <= 0 {
		return fmt.Errorf("config: fuel flow and density must be positive")
	}
	return nil
}

// MuxTable returns the channel-to-multiplexer-code table for the configured
// hardware revision.
func (c *Config) MuxTable() []uint8 {
	return c.Mux[c.Revision]
}

// PulsesPerWindow is the expected meter pulse count for the target flow over
// one sampling window.
func (c *Config) PulsesPerWindow() float64 {
	litersPerSec := c.Fuel.FlowGramsPerSec / c.Fuel.DensityGramsPerML / 1000
	return litersPerSec * c.Fuel.MeterPulsesPerLiter * c.Fuel.WindowSeconds
}

// DesiredPulses is PulsesPerWindow truncated to a whole pulse count.
func (c *Config) DesiredPulses() int {
	return int(c.PulsesPerWindow())
}

// VoltsPerPulse converts a pulse-count error to a pump voltage delta.
func (c *Config) VoltsPerPulse() float64 {
	return c.Pump.VoltsPerGramSec * c.Fuel.FlowGramsPerSec / c.PulsesPerWindow()
}

// PulseTolerance is the pulse-count error still considered nominal flow:
// the relative fuel error budget applied to the desired count.
func (c *Config) PulseTolerance() int {
	rel := c.Fuel.ErrorGramsPerSec / c.Fuel.FlowGramsPerSec
	return int(math.Round(float64(c.DesiredPulses()) * rel))
}

// InitialThreshold is the pump PWM comparator value for the calibrated
// starting duty (inverting comparator).
func (c *Config) InitialThreshold() uint16 {
	return c.Pump.Period - uint16(float64(c.Pump.Period)*c.Pump.InitialDuty)
}
