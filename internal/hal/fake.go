package hal

// FakeOutputs records discrete output writes for test assertions.
type FakeOutputs struct {
	// Levels holds the current level of every output line.
	Levels [NumOutputs]bool

	// History records every write in order.
	History []OutputWrite
}

// OutputWrite is a single recorded SetOutput call.
type OutputWrite struct {
	ID OutputID
	On bool
}

// SetOutput records the write and updates the current level.
func (f *FakeOutputs) SetOutput(id OutputID, on bool) {
	f.Levels[id] = on
	f.History = append(f.History, OutputWrite{ID: id, On: on})
}

// FakePWM records PWM configuration for test assertions.
type FakePWM struct {
	Periods    [NumPWMChannels]uint16
	Thresholds [NumPWMChannels]uint16
	Running    [NumPWMChannels]bool

	// ThresholdHistory records every SetDutyThreshold value per channel.
	ThresholdHistory [NumPWMChannels][]uint16
}

func (f *FakePWM) ConfigurePeriod(ch PWMChannel, period uint16) {
	f.Periods[ch] = period
}

func (f *FakePWM) SetDutyThreshold(ch PWMChannel, value uint16) {
	f.Thresholds[ch] = value
	f.ThresholdHistory[ch] = append(f.ThresholdHistory[ch], value)
}

func (f *FakePWM) Enable(ch PWMChannel) { f.Running[ch] = true }

func (f *FakePWM) Disable(ch PWMChannel) { f.Running[ch] = false }

// FakeADC returns scripted raw codes. Each ReadRawCode consumes the next
// code; when the script is exhausted the last code repeats, so a steady
// reading needs only one entry.
type FakeADC struct {
	// Codes contains the scripted conversion results in read order.
	Codes []uint16

	// Selected records every mux code passed to SelectChannel.
	Selected []uint8

	// Conversions counts StartConversion calls.
	Conversions int

	index   int
	started bool
}

func (f *FakeADC) SelectChannel(code uint8) {
	f.Selected = append(f.Selected, code)
}

func (f *FakeADC) StartConversion() {
	f.Conversions++
	f.started = true
}

// ConversionReady is immediately true once a conversion has been started.
func (f *FakeADC) ConversionReady() bool { return f.started }

func (f *FakeADC) ReadRawCode() uint16 {
	f.started = false
	if len(f.Codes) == 0 {
		return 0
	}
	code := f.Codes[f.index]
	if f.index < len(f.Codes)-1 {
		f.index++
	}
	return code
}

// FakeTimer lets tests fire overflows deterministically. With AutoFire set,
// Start invokes the overflow handler synchronously, which is how the flow
// window is driven to completion in tests.
type FakeTimer struct {
	Reload    uint16
	Prescaler uint16
	Started   bool

	// AutoFire makes Start call the handler once, synchronously.
	AutoFire bool

	// ReloadHistory records every SetReload value.
	ReloadHistory []uint16

	// StartCount and StopCount track reconfiguration bracketing.
	StartCount int
	StopCount  int

	handler func()
}

func (f *FakeTimer) SetReload(value uint16) {
	f.Reload = value
	f.ReloadHistory = append(f.ReloadHistory, value)
}

func (f *FakeTimer) SetPrescaler(value uint16) { f.Prescaler = value }

func (f *FakeTimer) OnOverflow(fn func()) { f.handler = fn }

func (f *FakeTimer) Start() {
	f.Started = true
	f.StartCount++
	if f.AutoFire && f.handler != nil {
		f.handler()
	}
}

func (f *FakeTimer) Stop() {
	f.Started = false
	f.StopCount++
}

// Fire invokes the overflow handler once, as the background timer would.
func (f *FakeTimer) Fire() {
	if f.handler != nil {
		f.handler()
	}
}

// FakeEdges delivers scripted pulse bursts. Each Enable consumes the next
// entry of Bursts and invokes the edge handler that many times, simulating
// the pulse train arriving during one counting window.
type FakeEdges struct {
	Bursts []int

	// Enabled mirrors the interrupt-source mask.
	Enabled bool

	index   int
	handler func()
}

func (f *FakeEdges) OnEdge(fn func()) { f.handler = fn }

func (f *FakeEdges) Enable() {
	f.Enabled = true
	if f.index >= len(f.Bursts) || f.handler == nil {
		return
	}
	n := f.Bursts[f.index]
	f.index++
	for i := 0; i < n; i++ {
		f.handler()
	}
}

func (f *FakeEdges) Disable() { f.Enabled = false }

// FakeBoard bundles fake peripherals for tests.
type FakeBoard struct {
	Outputs *FakeOutputs
	PWM     *FakePWM
	ADC     *FakeADC
	Hb      *FakeTimer
	Window  *FakeTimer
	Edges   *FakeEdges
}

// NewFakeBoard creates a fully wired fake board. The flow window timer
// auto-fires so a window completes as soon as it is started.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{
		Outputs: &FakeOutputs{},
		PWM:     &FakePWM{},
		ADC:     &FakeADC{},
		Hb:      &FakeTimer{},
		Window:  &FakeTimer{AutoFire: true},
		Edges:   &FakeEdges{},
	}
}

// Board returns the hal.Board view of the fake peripherals.
func (f *FakeBoard) Board() *Board {
	return &Board{
		Outputs:    f.Outputs,
		PWM:        f.PWM,
		ADC:        f.ADC,
		Heartbeat:  f.Hb,
		FlowWindow: f.Window,
		FlowPulses: f.Edges,
	}
}
