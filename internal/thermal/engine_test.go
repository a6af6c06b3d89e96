package thermal

import (
	"testing"

	"github.com/nimo8741/ACES-HCU/internal/config"
	"github.com/nimo8741/ACES-HCU/internal/hal"
	"github.com/nimo8741/ACES-HCU/internal/mode"
)

func newTestEngine(t *testing.T) (*Engine, *hal.FakeOutputs, *hal.FakePWM) {
	t.Helper()
	cfg := config.Default()
	outs := &hal.FakeOutputs{}
	pwm := &hal.FakePWM{}
	engine := NewEngine(outs, pwm, Channels(cfg),
		cfg.Heaters.PWMPeriod, cfg.Heaters.ECUDuty, cfg.Heaters.FuelLine2Duty,
		cfg.Heaters.CoarsePasses)
	return engine, outs, pwm
}

// setAll stores the same reading on every channel, as a scan pass would.
func setAll(e *Engine, temp float64) {
	for _, ch := range e.Channels() {
		ch.Temp = temp
	}
}

func findChannel(t *testing.T, e *Engine, name string) *Channel {
	t.Helper()
	for _, ch := range e.Channels() {
		if ch.Name == name {
			return ch
		}
	}
	t.Fatalf("channel %s not found", name)
	return nil
}

func TestChannelsStartColdAndHeating(t *testing.T) {
	engine, outs, pwm := newTestEngine(t)

	for _, ch := range engine.Channels() {
		if ch.Temp != StartupTemp {
			t.Errorf("%s: startup temp = %g, want %g", ch.Name, ch.Temp, StartupTemp)
		}
		if !ch.HeaterOn {
			t.Errorf("%s: heater should start commanded on", ch.Name)
		}
		if ch.Satisfied {
			t.Errorf("%s: should not start satisfied", ch.Name)
		}
	}

	bat := findChannel(t, engine, config.ChanBattery)
	if !outs.Levels[bat.Output] {
		t.Error("battery heater output should be high at start")
	}
	if !pwm.Running[hal.PWMECUHeater] || !pwm.Running[hal.PWMFuelLine2Heater] {
		t.Error("PWM heaters should start enabled")
	}
}

func TestHysteresisBelowLowTurnsOn(t *testing.T) {
	engine, outs, _ := newTestEngine(t)
	hop := findChannel(t, engine, config.ChanHopper)

	setAll(engine, hop.Low-1)
	engine.Evaluate(mode.Heating)

	if !hop.HeaterOn {
		t.Error("heater should be on below the low setpoint")
	}
	if !outs.Levels[hop.Output] {
		t.Error("output should reflect the heater decision")
	}
	if hop.Satisfied {
		t.Error("channel must not be satisfied below the band")
	}
}

func TestHysteresisAboveHighTurnsOffAndSatisfies(t *testing.T) {
	engine, outs, _ := newTestEngine(t)
	hop := findChannel(t, engine, config.ChanHopper)

	setAll(engine, 2000)
	engine.Evaluate(mode.Heating)

	if hop.HeaterOn {
		t.Error("heater should be off above the high setpoint")
	}
	if outs.Levels[hop.Output] {
		t.Error("output should be low")
	}
	if !hop.Satisfied {
		t.Error("channel should be satisfied above the band")
	}
}

func TestDeadBandHoldsPreviousState(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	hop := findChannel(t, engine, config.ChanHopper)
	mid := (hop.Low + hop.High) / 2

	// Heater on from below, then reading lands in the dead band: stays on.
	setAll(engine, hop.Low-1)
	engine.Evaluate(mode.Heating)
	setAll(engine, mid)
	engine.Evaluate(mode.Heating)
	if !hop.HeaterOn {
		t.Error("dead band should hold the heater on")
	}

	// Heater off from above, then back into the dead band: stays off.
	setAll(engine, hop.High+1)
	engine.Evaluate(mode.Heating)
	setAll(engine, mid)
	engine.Evaluate(mode.Heating)
	if hop.HeaterOn {
		t.Error("dead band should hold the heater off")
	}
}

func TestHeaterStaysOnUntilHighExceeded(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	hop := findChannel(t, engine, config.ChanHopper)

	setAll(engine, hop.Low-1)
	engine.Evaluate(mode.Heating)

	// Rising through the band: on at every point up to and including High.
	for _, temp := range []float64{hop.Low, (hop.Low + hop.High) / 2, hop.High} {
		setAll(engine, temp)
		engine.Evaluate(mode.Heating)
		if !hop.HeaterOn {
			t.Errorf("heater turned off at %g, inside the band", temp)
		}
	}

	setAll(engine, hop.High+0.5)
	engine.Evaluate(mode.Heating)
	if hop.HeaterOn {
		t.Error("heater should turn off above the high setpoint")
	}
}

func TestBatterySafetyCutoff(t *testing.T) {
	engine, outs, _ := newTestEngine(t)
	bat := findChannel(t, engine, config.ChanBattery)
	if !bat.SafetyCutoff {
		t.Fatal("battery channel should carry the safety cutoff")
	}

	setAll(engine, bat.High+50)
	engine.Evaluate(mode.Heating)

	if bat.HeaterOn {
		t.Error("battery heater must be off above the upper bound")
	}
	if outs.Levels[bat.Output] {
		t.Error("battery output must be low above the upper bound")
	}
	if !bat.Satisfied {
		t.Error("battery should be marked satisfied by the cutoff")
	}
}

func TestSatisfiedLatches(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	hop := findChannel(t, engine, config.ChanHopper)

	setAll(engine, hop.High+1)
	engine.Evaluate(mode.Heating)
	if !hop.Satisfied {
		t.Fatal("channel should satisfy above the band")
	}

	// Cooling back below the band turns the heater back on but the
	// satisfied flag stays latched.
	setAll(engine, hop.Low-1)
	engine.Evaluate(mode.Heating)
	if !hop.HeaterOn {
		t.Error("heater should turn back on below the band")
	}
	if !hop.Satisfied {
		t.Error("satisfied flag must stay latched")
	}
}

func TestAllSatisfiedReportedOncePerFullPass(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	setAll(engine, 500)
	if engine.Evaluate(mode.Heating) {
		t.Error("pass with cold channels should not report all satisfied")
	}

	// All above their bands (ECU band tops at 1000, the rest at 10).
	setAll(engine, 2000)
	if !engine.Evaluate(mode.Heating) {
		t.Error("pass with every channel hot should report all satisfied")
	}
}

func TestPWMHeaterInHeatingMode(t *testing.T) {
	engine, outs, pwm := newTestEngine(t)
	ecu := findChannel(t, engine, config.ChanECU)

	setAll(engine, ecu.High+1)
	engine.Evaluate(mode.Heating)
	if pwm.Running[hal.PWMECUHeater] {
		t.Error("ECU PWM should be disabled above the band")
	}
	if outs.Levels[ecu.Output] {
		t.Error("ECU pin should be forced low with the PWM off")
	}

	setAll(engine, ecu.Low-1)
	engine.Evaluate(mode.Heating)
	if !pwm.Running[hal.PWMECUHeater] {
		t.Error("ECU PWM should be re-enabled below the band")
	}
}

func TestCoarsePatternOncePumping(t *testing.T) {
	engine, outs, pwm := newTestEngine(t)
	ecu := findChannel(t, engine, config.ChanECU)
	cfg := config.Default()

	engine.ReleasePWM()
	if pwm.Running[hal.PWMECUHeater] {
		t.Fatal("ReleasePWM should disable the ECU PWM")
	}

	// Heater demanded on, pumping mode: the pin is high on exactly one of
	// every CoarsePasses passes.
	n := cfg.Heaters.CoarsePasses * 4
	onPasses := 0
	for i := 0; i < n; i++ {
		setAll(engine, ecu.Low-1)
		engine.Evaluate(mode.Pumping)
		if outs.Levels[ecu.Output] {
			onPasses++
		}
	}
	if want := 4; onPasses != want {
		t.Errorf("coarse pattern: pin high on %d of %d passes, want %d", onPasses, n, want)
	}
}

func TestCoarsePatternOffWhenHot(t *testing.T) {
	engine, outs, _ := newTestEngine(t)
	ecu := findChannel(t, engine, config.ChanECU)
	cfg := config.Default()

	engine.ReleasePWM()
	for i := 0; i < cfg.Heaters.CoarsePasses*2; i++ {
		setAll(engine, ecu.High+1)
		engine.Evaluate(mode.Pumping)
		if outs.Levels[ecu.Output] {
			t.Fatalf("pass %d: pin high while above the band", i)
		}
	}
}
