package hal

import "testing"

func TestFakeADCScript(t *testing.T) {
	adc := &FakeADC{Codes: []uint16{10, 20, 30}}

	adc.SelectChannel(6)
	adc.StartConversion()
	if !adc.ConversionReady() {
		t.Fatal("conversion should be ready after start")
	}
	if got := adc.ReadRawCode(); got != 10 {
		t.Errorf("first read = %d, want 10", got)
	}
	if adc.ConversionReady() {
		t.Error("ready flag should clear on read")
	}

	adc.StartConversion()
	adc.ReadRawCode()
	adc.StartConversion()
	if got := adc.ReadRawCode(); got != 30 {
		t.Errorf("third read = %d, want 30", got)
	}

	// Exhausted script repeats the last code.
	adc.StartConversion()
	if got := adc.ReadRawCode(); got != 30 {
		t.Errorf("exhausted read = %d, want 30", got)
	}

	if len(adc.Selected) != 1 || adc.Selected[0] != 6 {
		t.Errorf("selected = %v, want [6]", adc.Selected)
	}
}

func TestFakeEdgesBurstPerEnable(t *testing.T) {
	edges := &FakeEdges{Bursts: []int{3, 0, 5}}
	count := 0
	edges.OnEdge(func() { count++ })

	edges.Enable()
	edges.Disable()
	if count != 3 {
		t.Errorf("first window counted %d, want 3", count)
	}

	count = 0
	edges.Enable()
	edges.Disable()
	if count != 0 {
		t.Errorf("second window counted %d, want 0", count)
	}

	count = 0
	edges.Enable()
	if count != 5 {
		t.Errorf("third window counted %d, want 5", count)
	}
	if !edges.Enabled {
		t.Error("source should report enabled until Disable")
	}
}

func TestFakeTimerFireAndAutoFire(t *testing.T) {
	fired := 0
	manual := &FakeTimer{}
	manual.OnOverflow(func() { fired++ })
	manual.Start()
	if fired != 0 {
		t.Error("manual timer must not fire on Start")
	}
	manual.Fire()
	manual.Fire()
	if fired != 2 {
		t.Errorf("fired %d times, want 2", fired)
	}

	fired = 0
	auto := &FakeTimer{AutoFire: true}
	auto.OnOverflow(func() { fired++ })
	auto.Start()
	if fired != 1 {
		t.Errorf("auto-fire timer fired %d times on Start, want 1", fired)
	}
}

func TestFakeOutputsRecordsHistory(t *testing.T) {
	outs := &FakeOutputs{}
	outs.SetOutput(OutAliveLED, true)
	outs.SetOutput(OutAliveLED, false)
	outs.SetOutput(OutFuelLED, true)

	if outs.Levels[OutAliveLED] {
		t.Error("alive LED should end low")
	}
	if !outs.Levels[OutFuelLED] {
		t.Error("fuel LED should end high")
	}
	if len(outs.History) != 3 {
		t.Errorf("history has %d writes, want 3", len(outs.History))
	}
	if outs.History[0] != (OutputWrite{ID: OutAliveLED, On: true}) {
		t.Errorf("unexpected first write: %+v", outs.History[0])
	}
}

func TestFakePWMRecordsThresholds(t *testing.T) {
	pwm := &FakePWM{}
	pwm.ConfigurePeriod(PWMPump, 1000)
	pwm.SetDutyThreshold(PWMPump, 450)
	pwm.SetDutyThreshold(PWMPump, 440)
	pwm.Enable(PWMPump)

	if pwm.Periods[PWMPump] != 1000 {
		t.Errorf("period = %d, want 1000", pwm.Periods[PWMPump])
	}
	if pwm.Thresholds[PWMPump] != 440 {
		t.Errorf("threshold = %d, want 440", pwm.Thresholds[PWMPump])
	}
	if got := pwm.ThresholdHistory[PWMPump]; len(got) != 2 || got[0] != 450 {
		t.Errorf("threshold history = %v, want [450 440]", got)
	}
	if !pwm.Running[PWMPump] {
		t.Error("pump PWM should be running")
	}
}
