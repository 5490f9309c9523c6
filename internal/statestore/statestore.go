// Package statestore holds the process-wide snapshot of monitoring and
// power state: atomic get/set with synchronous on-change fan-out to the
// bus, so external observers never race a reader against an in-flight
// write.
package statestore

import (
	"sync"

	"github.com/arpi-project/monitord/internal/bus"
)

// MonitoringState is the global state of the monitoring core's state
// machine, 
type MonitoringState string

const (
	Startup        MonitoringState = "STARTUP"
	UpdatingConfig MonitoringState = "UPDATING_CONFIG"
	InvalidConfig  MonitoringState = "INVALID_CONFIG"
	Ready          MonitoringState = "READY"
	ArmDelay       MonitoringState = "ARM_DELAY"
	Armed          MonitoringState = "ARMED"
	AlertDelay     MonitoringState = "ALERT_DELAY"
	Alert          MonitoringState = "ALERT"
	Sabotage       MonitoringState = "SABOTAGE"
	Error          MonitoringState = "ERROR"
)

// PowerState is whether the controller currently has AC power.
type PowerState string

const (
	PowerOK      PowerState = "AC_PRESENT"
	PowerOutage  PowerState = "AC_MISSING"
	PowerUnknown PowerState = "UNKNOWN"
)

// Store is a lock-guarded snapshot of process-wide state. Every Set that
// changes a value publishes on the bus before returning, so writers observe their own
// fan-out having happened synchronously.
type Store struct {
	mu sync.RWMutex

	monitoring MonitoringState
	power      PowerState

	bus *bus.Bus
}

// New returns a Store wired to b for change fan-out.
func New(b *bus.Bus) *Store {
	return &Store{
		monitoring: Startup,
		power:      PowerUnknown,
		bus:        b,
	}
}

// Monitoring returns the current monitoring state.
func (s *Store) Monitoring() MonitoringState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitoring
}

// SetMonitoring updates the monitoring state and publishes
// "system_state_change" if it actually changed.
func (s *Store) SetMonitoring(v MonitoringState) {
	s.mu.Lock()
	changed := s.monitoring != v
	s.monitoring = v
	s.mu.Unlock()

	if changed && s.bus != nil {
		s.bus.Publish("system_state_change", v)
	}
}

// Power returns the current power state.
func (s *Store) Power() PowerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.power
}

// SetPower updates the power state and publishes "power_state_change" if
// it actually changed.
func (s *Store) SetPower(v PowerState) {
	s.mu.Lock()
	changed := s.power != v
	s.power = v
	s.mu.Unlock()

	if changed && s.bus != nil {
		s.bus.Publish("power_state_change", v)
	}
}

// Snapshot is the persisted form written to status.json.
type Snapshot struct {
	Monitoring MonitoringState `json:"MONITORING"`
	Power      PowerState      `json:"POWER"`
}

// Snapshot returns the current state as a Snapshot for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Monitoring: s.monitoring, Power: s.power}
}

// Restore sets both fields from a persisted Snapshot without publishing
// change events (used only at startup, before subscribers exist).
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Monitoring != "" {
		s.monitoring = snap.Monitoring
	}
	if snap.Power != "" {
		s.power = snap.Power
	}
}
