// Package api builds the JSON payloads of the acquisition service and binds
// them to the routes of the embedded HTTP server.
package api

import (
	"strings"

	"github.com/google/uuid"

	"github.com/itohio/wally/pkg/daq"
	"github.com/itohio/wally/pkg/vernier"
)

// CommandPrefix is the path prefix of single-character commands.
const CommandPrefix = "/vernier/command/"

// Service produces the payloads. It is not safe for concurrent use; hosts
// with concurrent handlers must serialize calls.
type Service struct {
	agg       *daq.Aggregator
	ipAddress string
	bootID    string
}

// New creates a service reporting ipAddress in /status.
func New(agg *daq.Aggregator, ipAddress string) *Service {
	return &Service{
		agg:       agg,
		ipAddress: ipAddress,
		bootID:    uuid.NewString(),
	}
}

func (s *Service) BootID() string { return s.bootID }

// Status is the /status payload.
type Status struct {
	DeviceID          string  `json:"device_id"`
	Status            string  `json:"status"`
	Uptime            float64 `json:"uptime"`
	SensorsConfigured int     `json:"sensors_configured"`
	MemoryFree        uint64  `json:"memory_free"`
	IPAddress         string  `json:"ip_address"`
	BootID            string  `json:"boot_id"`
}

// CommandResult is the /vernier/command/{c} payload.
type CommandResult struct {
	Command       string  `json:"command"`
	Result        string  `json:"result"`
	Timestamp     float64 `json:"timestamp"`
	ActiveSensor  int     `json:"active_sensor"`
	ReadingActive bool    `json:"reading_active"`
	Error         bool    `json:"error,omitempty"`
}

// Manager is the acquisition state as shown in /vernier/status.
type Manager struct {
	ActiveSensor  int     `json:"active_sensor"`
	ReadingActive bool    `json:"reading_active"`
	ReadingNumber uint64  `json:"reading_number"`
	Threshold     float64 `json:"threshold"`
}

// VernierStatus is the /vernier/status payload.
type VernierStatus struct {
	Manager           Manager        `json:"vernier_manager"`
	SensorMapping     map[string]int `json:"sensor_mapping"`
	AvailableCommands []string       `json:"available_commands"`
}

func (s *Service) Sensors() daq.Report {
	return s.agg.Report()
}

func (s *Service) Status() Status {
	return Status{
		DeviceID:          s.agg.DeviceID(),
		Status:            "running",
		Uptime:            s.agg.Uptime().Seconds(),
		SensorsConfigured: len(s.agg.Descriptors()),
		MemoryFree:        s.agg.MemFree(),
		IPAddress:         s.ipAddress,
		BootID:            s.bootID,
	}
}

// Command dispatches the command found after CommandPrefix in path. Unknown
// commands are not an error.
func (s *Service) Command(path string) CommandResult {
	cmd := strings.TrimPrefix(path, CommandPrefix)
	res := s.agg.Command(cmd)
	return CommandResult{
		Command:       res.Command,
		Result:        res.Message,
		Timestamp:     float64(s.agg.Now().UnixNano()) / 1e9,
		ActiveSensor:  res.Active.ID(),
		ReadingActive: res.ReadingActive,
		Error:         !res.Recognized,
	}
}

func (s *Service) VernierStatus() VernierStatus {
	st := s.agg.Machine().State()
	return VernierStatus{
		Manager: Manager{
			ActiveSensor:  st.Active.ID(),
			ReadingActive: st.ReadingActive,
			ReadingNumber: st.ReadingCount,
			Threshold:     st.Threshold,
		},
		SensorMapping:     vernier.Mapping(),
		AvailableCommands: append([]string(nil), vernier.Commands...),
	}
}

// Active is either a daq.ActiveReading or a daq.Paused.
func (s *Service) Active() any {
	return s.agg.Active()
}
