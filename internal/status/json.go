package status

import (
	"encoding/json"
	"time"
)

// jsonSnapshot is the wire shape of a formatted snapshot.
type jsonSnapshot struct {
	Timestamp string        `json:"timestamp"`
	Mode      string        `json:"mode"`
	UptimeSec float64       `json:"uptime_sec"`
	Channels  []jsonChannel `json:"channels"`
	Pump      jsonPump      `json:"pump"`
}

type jsonChannel struct {
	Name      string  `json:"name"`
	Temp      float64 `json:"temp"`
	Heater    string  `json:"heater"`
	Satisfied bool    `json:"satisfied"`
}

type jsonPump struct {
	Running     bool    `json:"running"`
	DutyPercent float64 `json:"duty_percent"`
	LastPulses  int     `json:"last_pulses"`
	LastError   int     `json:"last_error"`
	Nominal     bool    `json:"nominal"`
	FlowGPS     float64 `json:"flow_g_per_sec"`
	WindowsRun  int     `json:"windows_run"`
}

// FormatSnapshot renders a snapshot as JSON for the status log line and the
// print-state command.
func FormatSnapshot(s Snapshot) []byte {
	out := jsonSnapshot{
		Timestamp: s.Now.UTC().Format(time.RFC3339),
		Mode:      s.Mode.String(),
		UptimeSec: s.Uptime().Seconds(),
		Pump: jsonPump{
			Running:     s.Pump.Running,
			DutyPercent: s.Pump.DutyPercent,
			LastPulses:  s.Pump.LastPulses,
			LastError:   s.Pump.LastError,
			Nominal:     s.Pump.Nominal,
			FlowGPS:     s.Pump.FlowGramsPerSec,
			WindowsRun:  s.Pump.WindowsRun,
		},
	}
	for _, ch := range s.Channels {
		heater := "OFF"
		if ch.HeaterOn {
			heater = "ON"
		}
		out.Channels = append(out.Channels, jsonChannel{
			Name:      ch.Name,
			Temp:      ch.Temp,
			Heater:    heater,
			Satisfied: ch.Satisfied,
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		// Snapshot contains only plain values; marshal cannot fail.
		return []byte("{}")
	}
	return b
}
