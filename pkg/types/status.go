package types

import "time"

// Status is the point-in-time snapshot served by the control API.
type Status struct {
	Timestamp        time.Time  `json:"timestamp_utc" yaml:"timestamp_utc"`
	WatcherRunning   bool       `json:"watcher_running" yaml:"watcher_running"`
	RunID            string     `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	DeviceOnline     *bool      `json:"device_online" yaml:"device_online"`
	LastAlarm        *time.Time `json:"last_alarm_utc" yaml:"last_alarm_utc"`
	LastHealthChange *time.Time `json:"last_health_change_utc" yaml:"last_health_change_utc"`
	KnownFiles       int        `json:"known_files_count" yaml:"known_files_count"`
}

// ClearResult aggregates the outcome of a clear-images sweep.
type ClearResult struct {
	Deleted int `json:"deleted" yaml:"deleted"`
	Failed  int `json:"failed" yaml:"failed"`
}
