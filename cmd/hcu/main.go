// Command hcu regulates the heater control unit: it warms the monitored
// zones to setpoint, then drives the fuel pump at the commanded flow rate
// with pulse-count feedback, indicating status on the LED outputs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimo8741/ACES-HCU/internal/config"
	"github.com/nimo8741/ACES-HCU/internal/flow"
	"github.com/nimo8741/ACES-HCU/internal/hal"
	"github.com/nimo8741/ACES-HCU/internal/heartbeat"
	"github.com/nimo8741/ACES-HCU/internal/mode"
	"github.com/nimo8741/ACES-HCU/internal/scan"
	"github.com/nimo8741/ACES-HCU/internal/status"
	"github.com/nimo8741/ACES-HCU/internal/thermal"
)

func main() {
	configPath := flag.String("config", "", "calibration file (YAML), empty for defaults")
	revision := flag.String("revision", "", "hardware revision override for the mux table")
	statusEvery := flag.Duration("status-interval", 10*time.Second, "status log interval (0 to disable)")
	printState := flag.Bool("print-state", false, "read every channel once, print readings, and exit")
	ecu := flag.Bool("ecu", false, "a real ECU is present (pump phase is skipped once warm)")

	flag.Parse()

	if err := run(*configPath, *revision, *statusEvery, *printState, *ecu); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, revision string, statusEvery time.Duration, printState, ecuPresent bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if revision != "" {
		cfg.Revision = revision
	}
	if ecuPresent {
		cfg.ECUPresent = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	board, err := hal.NewRealBoard()
	if err != nil {
		return fmt.Errorf("init board: %w", err)
	}
	defer board.Close()

	if printState {
		return printReadings(&board.Board, cfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runController(&board.Board, cfg, statusEvery, sigCh, time.Now, func() {
		time.Sleep(50 * time.Millisecond)
	})
}

// printReadings performs one bare pass over the channel set and prints the
// calibrated readings without energizing any heater.
func printReadings(b *hal.Board, cfg *config.Config) error {
	mux := cfg.MuxTable()
	for i, cc := range cfg.Channels {
		b.ADC.SelectChannel(mux[i])
		b.ADC.StartConversion()
		for !b.ADC.ConversionReady() {
		}
		temp := cfg.Groups[cc.Group].Apply(b.ADC.ReadRawCode())
		fmt.Printf("%s: %.1f\n", cc.Name, temp)
	}
	return nil
}

// runController is the foreground polling loop. The heartbeat timer and the
// pulse edge source run in background context; everything here is
// foreground-owned.
func runController(b *hal.Board, cfg *config.Config, statusEvery time.Duration, sig <-chan os.Signal, now func() time.Time, idle func()) error {
	channels := thermal.Channels(cfg)
	engine := thermal.NewEngine(b.Outputs, b.PWM, channels,
		cfg.Heaters.PWMPeriod, cfg.Heaters.ECUDuty, cfg.Heaters.FuelLine2Duty,
		cfg.Heaters.CoarsePasses)
	scanner := scan.New(b.ADC, engine, cfg)
	modes := mode.New()
	hb := heartbeat.New(b.Outputs, b.Heartbeat)
	pump := flow.NewController(b, cfg)
	tracker := status.NewTracker(now())

	log.Printf("started: revision=%s channels=%d desired_pulses=%d tolerance=%d",
		cfg.Revision, len(channels), pump.DesiredPulses(), pump.Tolerance())

	lastStatus := now()
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			shutdown(b, pump)
			return nil
		default:
		}

		switch modes.Current() {
		case mode.Heating:
			allWarm := scanner.Run(mode.Heating)
			tracker.Update(mode.Heating, channels)
			if allWarm && modes.MarkAllWarm() {
				log.Printf("all channels satisfied, warming complete")
				engine.ReleasePWM()
				b.Outputs.SetOutput(hal.OutECUPower, cfg.ECUPresent)
				if cfg.ECUPresent {
					// A real ECU manages its own fuel; go straight to the
					// terminal mode with the pump never started.
					modes.MarkExhausted()
					hb.SetMode(mode.Exhausted)
					log.Printf("real ECU present, pump phase skipped")
				} else {
					hb.SetMode(mode.Pumping)
					pump.Start()
					tracker.SetPumpRunning(true)
					log.Printf("pump started: duty=%.1f%%", pump.Duty()*100)
				}
			}

		case mode.Pumping:
			scanner.Run(mode.Pumping)
			w := pump.RunWindow()
			tracker.Update(mode.Pumping, channels)
			tracker.RecordWindow(w, pump.Duty())
			if w.Exhausted && modes.MarkExhausted() {
				// Heaters stay frozen at their last commanded state.
				hb.SetMode(mode.Exhausted)
				log.Printf("fuel exhausted, pump stopped")
			}

		case mode.Exhausted:
			tracker.Update(mode.Exhausted, channels)
			idle()
		}

		if statusEvery > 0 && now().Sub(lastStatus) >= statusEvery {
			lastStatus = now()
			log.Printf("status: %s", status.FormatSnapshot(tracker.Snapshot()))
		}
	}
}

// shutdown drives every output safe: pump off, heaters and LEDs low,
// heartbeat stopped.
func shutdown(b *hal.Board, pump *flow.Controller) {
	pump.Stop()
	b.Heartbeat.Stop()
	b.PWM.Disable(hal.PWMECUHeater)
	b.PWM.Disable(hal.PWMFuelLine2Heater)
	for id := hal.OutputID(0); id < hal.NumOutputs; id++ {
		b.Outputs.SetOutput(id, false)
	}
}
