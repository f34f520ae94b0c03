package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// Store maintains in-memory counters for watcher telemetry.
type Store struct {
	ticks            atomic.Uint64
	probesUp         atomic.Uint64
	probesDown       atomic.Uint64
	scanErrors       atomic.Uint64
	motionAlerts     atomic.Uint64
	suppressedAlerts atomic.Uint64
	notifySent       atomic.Uint64
	notifyFailed     atomic.Uint64
	notifyLimited    atomic.Uint64
	filesDeleted     atomic.Uint64
	deleteFailures   atomic.Uint64
}

// NewStore constructs a Store with zeroed metrics.
func NewStore() *Store {
	return &Store{}
}

// Snapshot captures the current metric values in a plain struct.
type Snapshot struct {
	Ticks            uint64
	ProbesUp         uint64
	ProbesDown       uint64
	ScanErrors       uint64
	MotionAlerts     uint64
	SuppressedAlerts uint64
	NotifySent       uint64
	NotifyFailed     uint64
	NotifyLimited    uint64
	FilesDeleted     uint64
	DeleteFailures   uint64
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Ticks:            s.ticks.Load(),
		ProbesUp:         s.probesUp.Load(),
		ProbesDown:       s.probesDown.Load(),
		ScanErrors:       s.scanErrors.Load(),
		MotionAlerts:     s.motionAlerts.Load(),
		SuppressedAlerts: s.suppressedAlerts.Load(),
		NotifySent:       s.notifySent.Load(),
		NotifyFailed:     s.notifyFailed.Load(),
		NotifyLimited:    s.notifyLimited.Load(),
		FilesDeleted:     s.filesDeleted.Load(),
		DeleteFailures:   s.deleteFailures.Load(),
	}
}

func (s *Store) ObserveTick() {
	s.ticks.Add(1)
}

func (s *Store) ObserveProbe(up bool) {
	if up {
		s.probesUp.Add(1)
		return
	}
	s.probesDown.Add(1)
}

func (s *Store) IncScanErrors() {
	s.scanErrors.Add(1)
}

func (s *Store) IncMotionAlerts() {
	s.motionAlerts.Add(1)
}

func (s *Store) IncSuppressedAlerts() {
	s.suppressedAlerts.Add(1)
}

func (s *Store) ObserveNotify(err error) {
	if err != nil {
		s.notifyFailed.Add(1)
		return
	}
	s.notifySent.Add(1)
}

func (s *Store) IncNotifyLimited() {
	s.notifyLimited.Add(1)
}

func (s *Store) ObserveClear(deleted, failed int) {
	if deleted > 0 {
		s.filesDeleted.Add(uint64(deleted))
	}
	if failed > 0 {
		s.deleteFailures.Add(uint64(failed))
	}
}

// WritePrometheus renders the current metrics using the Prometheus text format.
func (s *Store) WritePrometheus(w io.Writer) error {
	snap := s.Snapshot()
	lines := []string{
		"# HELP snapwatch_ticks_total Total watcher loop iterations.",
		"# TYPE snapwatch_ticks_total counter",
		fmt.Sprintf("snapwatch_ticks_total %d", snap.Ticks),
		"# HELP snapwatch_probes_total Total reachability probes by raw outcome.",
		"# TYPE snapwatch_probes_total counter",
		fmt.Sprintf("snapwatch_probes_total{outcome=%q} %d", "up", snap.ProbesUp),
		fmt.Sprintf("snapwatch_probes_total{outcome=%q} %d", "down", snap.ProbesDown),
		"# HELP snapwatch_scan_errors_total Total per-tick directory scan failures.",
		"# TYPE snapwatch_scan_errors_total counter",
		fmt.Sprintf("snapwatch_scan_errors_total %d", snap.ScanErrors),
		"# HELP snapwatch_motion_alerts_total Total motion alerts fired.",
		"# TYPE snapwatch_motion_alerts_total counter",
		fmt.Sprintf("snapwatch_motion_alerts_total %d", snap.MotionAlerts),
		"# HELP snapwatch_suppressed_alerts_total Total motion batches suppressed by cooldown.",
		"# TYPE snapwatch_suppressed_alerts_total counter",
		fmt.Sprintf("snapwatch_suppressed_alerts_total %d", snap.SuppressedAlerts),
		"# HELP snapwatch_notifications_total Total notification deliveries by outcome.",
		"# TYPE snapwatch_notifications_total counter",
		fmt.Sprintf("snapwatch_notifications_total{outcome=%q} %d", "sent", snap.NotifySent),
		fmt.Sprintf("snapwatch_notifications_total{outcome=%q} %d", "failed", snap.NotifyFailed),
		fmt.Sprintf("snapwatch_notifications_total{outcome=%q} %d", "rate_limited", snap.NotifyLimited),
		"# HELP snapwatch_files_deleted_total Total files removed by clear sweeps.",
		"# TYPE snapwatch_files_deleted_total counter",
		fmt.Sprintf("snapwatch_files_deleted_total %d", snap.FilesDeleted),
		"# HELP snapwatch_delete_failures_total Total per-file delete failures during clear sweeps.",
		"# TYPE snapwatch_delete_failures_total counter",
		fmt.Sprintf("snapwatch_delete_failures_total %d", snap.DeleteFailures),
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// NewHTTPHandler returns an http.Handler that serves Prometheus formatted metrics.
func NewHTTPHandler(store *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if r.Method == http.MethodHead {
			return
		}
		if err := store.WritePrometheus(w); err != nil {
			http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		}
	})
}
