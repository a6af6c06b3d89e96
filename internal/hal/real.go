//go:build linux

package hal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Default line assignments (BCM numbering) for the carrier board.
var DefaultOutputPins = map[OutputID]int{
	OutBatteryHeater:   5,
	OutHopperHeater:    6,
	OutFuelLine1Heater: 13,
	OutESBHeater:       19,
	OutECUHeater:       20,
	OutFuelLine2Heater: 21,
	OutECUPower:        12,
	OutPumpDrive:       24,
	OutAliveLED:        17,
	OutWarmLED:         27,
	OutFuelLED:         22,
}

// DefaultPulsePin is the flow-meter pulse input (BCM numbering).
const DefaultPulsePin = 23

// moduleClockHz is the reference clock the timer reload/prescaler values are
// expressed against.
const moduleClockHz = 1_000_000

// RealBoard drives actual hardware: GPIO character-device lines for discrete
// outputs and the flow-meter pulse input, sysfs PWM chips, and IIO sysfs ADC
// channels.
type RealBoard struct {
	Board

	chip     *gpiocdev.Chip
	outLines map[OutputID]*gpiocdev.Line
	pulse    *edgeLine
}

// NewRealBoard opens the default hardware surface.
func NewRealBoard() (*RealBoard, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	b := &RealBoard{
		chip:     chip,
		outLines: make(map[OutputID]*gpiocdev.Line),
	}

	for id, pin := range DefaultOutputPins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		b.outLines[id] = line
	}

	b.pulse = &edgeLine{}
	line, err := chip.RequestLine(DefaultPulsePin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(b.pulse.event))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request pulse pin %d: %w", DefaultPulsePin, err)
	}
	b.pulse.line = line

	b.Board = Board{
		Outputs:    (*realOutputs)(b),
		PWM:        newSysfsPWM(),
		ADC:        &iioADC{dir: "/sys/bus/iio/devices/iio:device0"},
		Heartbeat:  &tickTimer{max: 1 << 16},
		FlowWindow: &tickTimer{max: 1 << 8},
		FlowPulses: b.pulse,
	}
	return b, nil
}

// Close drives every output low and releases the GPIO lines.
func (b *RealBoard) Close() error {
	var errs []error
	for id, line := range b.outLines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear output %d: %w", id, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output %d: %w", id, err))
		}
	}
	if b.pulse != nil && b.pulse.line != nil {
		if err := b.pulse.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pulse line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// realOutputs adapts the requested lines to DigitalWriter.
type realOutputs RealBoard

func (o *realOutputs) SetOutput(id OutputID, on bool) {
	line, ok := o.outLines[id]
	if !ok {
		return
	}
	v := 0
	if on {
		v = 1
	}
	// Output writes are best-effort; a failed write on a trusted board is
	// treated like a stuck pin, not a recoverable error.
	_ = line.SetValue(v)
}

// edgeLine delivers rising edges on the flow-meter input. The mutex makes the
// interrupt-source mask real: the handler runs under it and Disable takes it
// after clearing the mask, so Disable returns only once no handler invocation
// is in flight and the foreground's read-and-reset cannot race a late edge
// from the event goroutine.
type edgeLine struct {
	line    *gpiocdev.Line
	mu      sync.Mutex
	enabled bool
	handler func()
}

func (e *edgeLine) OnEdge(fn func()) { e.handler = fn }

func (e *edgeLine) Enable() {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
}

func (e *edgeLine) Disable() {
	e.mu.Lock()
	e.enabled = false
	e.mu.Unlock()
}

func (e *edgeLine) event(gpiocdev.LineEvent) {
	e.mu.Lock()
	if e.enabled && e.handler != nil {
		e.handler()
	}
	e.mu.Unlock()
}

// tickTimer emulates a hardware counter of the given width clocked at the
// module clock. The overflow handler runs on a background goroutine; Stop
// waits for the goroutine to exit before returning so reconfiguration never
// races a handler invocation.
type tickTimer struct {
	max       uint32 // counter wrap: 1<<8 or 1<<16
	reload    uint32
	prescaler uint32
	handler   func()

	stop chan struct{}
	done chan struct{}
}

func (t *tickTimer) SetReload(value uint16) { atomic.StoreUint32(&t.reload, uint32(value)) }

func (t *tickTimer) SetPrescaler(value uint16) { atomic.StoreUint32(&t.prescaler, uint32(value)) }

func (t *tickTimer) OnOverflow(fn func()) { t.handler = fn }

func (t *tickTimer) period() time.Duration {
	presc := atomic.LoadUint32(&t.prescaler)
	if presc == 0 {
		presc = 1
	}
	ticks := t.max - atomic.LoadUint32(&t.reload)
	us := uint64(ticks) * uint64(presc) * 1_000_000 / moduleClockHz
	return time.Duration(us) * time.Microsecond
}

func (t *tickTimer) Start() {
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		for {
			// The reload register may be rewritten by the handler, so the
			// period is recomputed for every cycle, as hardware would.
			tm := time.NewTimer(t.period())
			select {
			case <-stop:
				tm.Stop()
				return
			case <-tm.C:
				if t.handler != nil {
					t.handler()
				}
			}
		}
	}(t.stop, t.done)
}

func (t *tickTimer) Stop() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
}

// sysfsPWM drives /sys/class/pwm chips. Thresholds are inverting, matching
// the PWM contract: on-time per cycle is period minus threshold, expressed in
// module-clock ticks (1 us each).
type sysfsPWM struct {
	dirs    [NumPWMChannels]string
	periods [NumPWMChannels]uint16
}

func newSysfsPWM() *sysfsPWM {
	return &sysfsPWM{
		dirs: [NumPWMChannels]string{
			PWMECUHeater:       "/sys/class/pwm/pwmchip0/pwm0",
			PWMFuelLine2Heater: "/sys/class/pwm/pwmchip0/pwm1",
			PWMPump:            "/sys/class/pwm/pwmchip1/pwm0",
		},
	}
}

func (p *sysfsPWM) write(ch PWMChannel, file, value string) {
	// Best-effort, same rationale as discrete outputs.
	_ = os.WriteFile(filepath.Join(p.dirs[ch], file), []byte(value), 0o644)
}

func (p *sysfsPWM) ConfigurePeriod(ch PWMChannel, period uint16) {
	p.periods[ch] = period
	p.write(ch, "period", strconv.Itoa(int(period)*1000)) // ticks -> ns
}

func (p *sysfsPWM) SetDutyThreshold(ch PWMChannel, value uint16) {
	on := int(p.periods[ch]) - int(value)
	if on < 0 {
		on = 0
	}
	p.write(ch, "duty_cycle", strconv.Itoa(on*1000))
}

func (p *sysfsPWM) Enable(ch PWMChannel) { p.write(ch, "enable", "1") }

func (p *sysfsPWM) Disable(ch PWMChannel) { p.write(ch, "enable", "0") }

// iioADC reads the industrial-I/O sysfs voltage channels. The conversion is
// performed on StartConversion; ConversionReady reports completion so the
// scan cycle's await loop terminates on the first poll.
type iioADC struct {
	dir   string
	code  uint8
	value uint16
	ready bool
}

func (a *iioADC) SelectChannel(code uint8) { a.code = code }

func (a *iioADC) StartConversion() {
	a.value = 0
	raw, err := os.ReadFile(filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", a.code)))
	if err == nil {
		if v, perr := strconv.Atoi(strings.TrimSpace(string(raw))); perr == nil {
			a.value = uint16(v)
		}
	}
	a.ready = true
}

func (a *iioADC) ConversionReady() bool { return a.ready }

func (a *iioADC) ReadRawCode() uint16 {
	a.ready = false
	return a.value
}
