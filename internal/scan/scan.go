// Package scan runs the sensor scan cycle: it walks the fixed channel set
// over the shared multiplexed ADC, converts raw codes to physical units, and
// hands the thermal engine a fresh full pass.
package scan

import (
	"time"

	"github.com/nimo8741/ACES-HCU/internal/config"
	"github.com/nimo8741/ACES-HCU/internal/hal"
	"github.com/nimo8741/ACES-HCU/internal/mode"
	"github.com/nimo8741/ACES-HCU/internal/thermal"
)

// Cycle scans every monitored channel once per Run.
type Cycle struct {
	adc    hal.ADC
	engine *thermal.Engine

	// mux and cal are indexed in channel scan order. The mux table is
	// revision-specific: certain channels share wiring and carry
	// non-sequential selection codes, so the mapping is data, not code.
	mux []uint8
	cal []config.Affine

	settle time.Duration
	sleep  func(time.Duration)
}

// New builds a scan cycle for the engine's channel set. The mux table and
// calibration groups come from the configured hardware revision.
func New(adc hal.ADC, engine *thermal.Engine, cfg *config.Config) *Cycle {
	cal := make([]config.Affine, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		cal[i] = cfg.Groups[cc.Group]
	}
	return &Cycle{
		adc:    adc,
		engine: engine,
		mux:    cfg.MuxTable(),
		cal:    cal,
		settle: cfg.SettleDelay.Std(),
		sleep:  time.Sleep,
	}
}

// Run performs one full pass: select, convert, and store a reading for every
// channel, then invoke the thermal engine synchronously and report its
// all-satisfied result. While heating, a settle delay follows the pass so the
// sensor circuitry stabilizes; once pumping, that time budget belongs to flow
// sampling and the delay is omitted.
func (c *Cycle) Run(m mode.Mode) bool {
	channels := c.engine.Channels()
	for i, ch := range channels {
		c.adc.SelectChannel(c.mux[i])
		c.adc.StartConversion()
		for !c.adc.ConversionReady() {
			// No timeout: trusted hardware, fail-stop on a dead ADC.
		}
		ch.Temp = c.cal[i].Apply(c.adc.ReadRawCode())
	}

	allWarm := c.engine.Evaluate(m)

	if m == mode.Heating {
		c.sleep(c.settle)
	}
	return allWarm
}
