package watcher

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snapwatchhq/watcher/internal/arrival"
	"github.com/snapwatchhq/watcher/internal/config"
	"github.com/snapwatchhq/watcher/internal/events"
	"github.com/snapwatchhq/watcher/internal/health"
	"github.com/snapwatchhq/watcher/internal/metrics"
	"github.com/snapwatchhq/watcher/internal/probe"
	"github.com/snapwatchhq/watcher/internal/scan"
	"github.com/snapwatchhq/watcher/pkg/types"
)

// Dependencies allow test overrides for collaborators and the clock.
type Dependencies struct {
	Logger   *log.Logger
	Emitter  events.Emitter
	Recorder events.Recorder
	Metrics  *metrics.Store
	Now      func() time.Time
	// Reload produces a fresh configuration on every Start. Defaults to
	// returning the construction-time config unchanged.
	Reload func(ctx context.Context) (config.Config, error)
	// NewProber builds the reachability probe for one run.
	NewProber func(cfg config.Config) probe.Prober
	NewRunID  func() string
}

// Watcher owns the monitor run loop and its control operations. At most
// one loop is alive at a time; all operations are safe to call
// concurrently with each other and with the loop.
type Watcher struct {
	logger    *log.Logger
	emitter   events.Emitter
	recorder  events.Recorder
	metrics   *metrics.Store
	now       func() time.Time
	reload    func(ctx context.Context) (config.Config, error)
	newProber func(cfg config.Config) probe.Prober
	newRunID  func() string

	mu               sync.Mutex
	run              *runHandle
	cfg              config.Config
	deb              *arrival.Debouncer
	online           *bool
	lastHealthChange *time.Time
	// clearGen counts known-set resyncs by ClearImages. The tick scans
	// outside the lock; a snapshot taken before a resync is stale and
	// must not be fed to the debouncer, or just-deleted files would be
	// reported as new.
	clearGen uint64
}

// runHandle is the loop's cancellation signal and completion handle.
// It is created on Start and owned exclusively by the Watcher.
type runHandle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg config.Config, deps Dependencies) *Watcher {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = events.NoopRecorder{}
	}
	store := deps.Metrics
	if store == nil {
		store = metrics.NewStore()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	reload := deps.Reload
	if reload == nil {
		reload = func(ctx context.Context) (config.Config, error) {
			return cfg, nil
		}
	}
	newProber := deps.NewProber
	if newProber == nil {
		newProber = func(cfg config.Config) probe.Prober {
			return defaultProber(cfg, logger)
		}
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Watcher{
		logger:    logger,
		emitter:   emitter,
		recorder:  recorder,
		metrics:   store,
		now:       now,
		reload:    reload,
		newProber: newProber,
		newRunID:  newRunID,
		cfg:       cfg,
		deb:       arrival.NewDebouncer(cfg.Watch.Cooldown()),
	}
}

func defaultProber(cfg config.Config, logger *log.Logger) probe.Prober {
	deps := probe.Dependencies{Logger: logger}
	if cfg.Device.HealthURL != "" {
		return probe.NewHTTPProber(cfg.Device.HealthURL, cfg.Device.Timeout(), deps)
	}
	return probe.NewPingProber(cfg.Device.PingHost, cfg.Device.Timeout(), deps)
}

// Start reloads configuration and spawns the run loop. It returns false
// without side effects when a loop is already running.
func (w *Watcher) Start(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.run != nil {
		return false, nil
	}

	cfg, err := w.reload(ctx)
	if err != nil {
		return false, err
	}
	w.cfg = cfg
	w.deb = arrival.NewDebouncer(cfg.Watch.Cooldown())
	w.online = nil
	w.lastHealthChange = nil

	loopCtx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{
		id:     w.newRunID(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.run = handle

	go w.runLoop(loopCtx, cfg, w.newProber(cfg), handle)
	return true, nil
}

// Stop raises the stop signal and waits up to timeout for the loop to
// unwind. It returns false when no loop is running or the loop did not
// confirm exit within the bound; the loop may still finish shortly
// after, so callers needing certainty poll Status.
func (w *Watcher) Stop(timeout time.Duration) bool {
	w.mu.Lock()
	handle := w.run
	w.mu.Unlock()

	if handle == nil {
		return false
	}
	handle.cancel()

	if timeout <= 0 {
		select {
		case <-handle.done:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-handle.done:
		return true
	case <-timer.C:
		return false
	}
}

// Running reports whether a loop is currently alive.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.run != nil
}

// Status takes a consistent snapshot of the shared state without
// pausing the loop.
func (w *Watcher) Status() types.Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := types.Status{
		Timestamp:      w.now().UTC(),
		WatcherRunning: w.run != nil,
		KnownFiles:     w.deb.KnownCount(),
	}
	if w.run != nil {
		st.RunID = w.run.id
	}
	if w.online != nil {
		online := *w.online
		st.DeviceOnline = &online
	}
	if alarm, ok := w.deb.LastAlarm(); ok {
		alarm := alarm
		st.LastAlarm = &alarm
	}
	if w.lastHealthChange != nil {
		changed := *w.lastHealthChange
		st.LastHealthChange = &changed
	}
	return st
}

// ClearImages deletes every file currently matching the accepted
// extensions and re-synchronizes the known set. Per-file failures are
// collected, not fatal to the batch.
func (w *Watcher) ClearImages(ctx context.Context) types.ClearResult {
	w.mu.Lock()
	cfg := w.cfg
	w.mu.Unlock()

	exts := scan.NormalizeExts(cfg.Watch.Extensions)
	var res types.ClearResult

	files, err := scan.Scan(cfg.Watch.Dir, exts)
	if err != nil {
		w.logger.Printf("clear: scan failed: %v", err)
		w.emit(ctx, w.currentRunID(), events.TypeCleared, map[string]any{
			"deleted": 0,
			"failed":  0,
			"error":   err.Error(),
		})
		return res
	}

	w.mu.Lock()
	for name := range files {
		path := filepath.Join(cfg.Watch.Dir, name)
		if err := os.Remove(path); err != nil {
			res.Failed++
			w.logger.Printf("clear: failed to delete %s: %v", path, err)
			continue
		}
		res.Deleted++
	}
	// Rescan for truth: files recreated mid-sweep must be known, not
	// later reported as new.
	if resync, err := scan.Scan(cfg.Watch.Dir, exts); err == nil {
		w.deb.ReplaceKnown(resync)
	} else {
		w.logger.Printf("clear: resync scan failed: %v", err)
		w.deb.ReplaceKnown(nil)
	}
	w.clearGen++
	w.mu.Unlock()

	w.metrics.ObserveClear(res.Deleted, res.Failed)
	w.emit(ctx, w.currentRunID(), events.TypeCleared, map[string]any{
		"deleted": res.Deleted,
		"failed":  res.Failed,
	})
	return res
}

// TestNotify fires a synthetic event through the emitter, independent
// of monitor state.
func (w *Watcher) TestNotify(ctx context.Context) {
	w.emit(ctx, w.currentRunID(), events.TypeTest, nil)
}

func (w *Watcher) currentRunID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run != nil {
		return w.run.id
	}
	return ""
}

func (w *Watcher) runLoop(ctx context.Context, cfg config.Config, prober probe.Prober, handle *runHandle) {
	defer func() {
		w.mu.Lock()
		if w.run == handle {
			w.run = nil
		}
		w.mu.Unlock()
		close(handle.done)
	}()

	exts := scan.NormalizeExts(cfg.Watch.Extensions)
	w.logger.Printf("watching %s (run %s)", cfg.Watch.Dir, handle.id)

	initial, err := scan.Scan(cfg.Watch.Dir, exts)
	if err != nil {
		w.logger.Printf("initial scan failed, aborting run: %v", err)
		return
	}
	w.mu.Lock()
	w.deb.ReplaceKnown(initial)
	w.mu.Unlock()
	w.logger.Printf("%d existing files marked as known", len(initial))

	filter := health.NewFilter(cfg.Device.Hysteresis)

	w.emit(ctx, handle.id, events.TypeStarted, nil)

	defer func() {
		now := w.now().UTC()
		w.mu.Lock()
		w.online = nil
		w.lastHealthChange = &now
		w.mu.Unlock()
		// The loop context is already cancelled; cleanup events get a
		// fresh one so delivery still happens.
		w.emit(context.Background(), handle.id, events.TypeOffline, nil)
		w.emit(context.Background(), handle.id, events.TypeStopped, nil)
		w.logger.Printf("watcher stopped (run %s)", handle.id)
	}()

	ticker := time.NewTicker(cfg.Watch.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		w.tick(ctx, cfg, exts, prober, filter, handle)
	}
}

func (w *Watcher) tick(ctx context.Context, cfg config.Config, exts map[string]struct{}, prober probe.Prober, filter *health.Filter, handle *runHandle) {
	w.metrics.ObserveTick()

	raw := prober.Probe(ctx)
	w.metrics.ObserveProbe(raw)

	online, flipped := filter.Observe(raw)
	now := w.now().UTC()
	if flipped {
		w.mu.Lock()
		verdict := online
		w.online = &verdict
		changed := now
		w.lastHealthChange = &changed
		w.mu.Unlock()

		typ := events.TypeOffline
		if online {
			typ = events.TypeOnline
		}
		w.emit(ctx, handle.id, typ, nil)
	}

	gen := w.knownGen()
	current, err := scan.Scan(cfg.Watch.Dir, exts)
	if err != nil {
		// Keep the previous known set for this tick.
		w.logger.Printf("scan failed: %v", err)
		w.metrics.IncScanErrors()
		return
	}

	res, ok := w.applyScan(current, gen, now)
	if !ok {
		w.logger.Printf("scan superseded by clear, skipping")
		return
	}

	switch {
	case res.Fired:
		w.logger.Printf("new file(s): %v", res.NewFiles)
		w.metrics.IncMotionAlerts()
		w.emit(ctx, handle.id, events.TypeMotion, map[string]any{
			"files": res.NewFiles,
			"count": len(res.NewFiles),
		})
	case len(res.NewFiles) > 0:
		w.logger.Printf("new file(s) suppressed, cooldown active (%s left)", res.Remaining.Round(time.Second))
		w.metrics.IncSuppressedAlerts()
	}
}

func (w *Watcher) knownGen() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clearGen
}

// applyScan feeds a scan snapshot to the debouncer unless the known set
// was resynced after the snapshot was taken.
func (w *Watcher) applyScan(current map[string]struct{}, gen uint64, now time.Time) (arrival.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.clearGen {
		return arrival.Result{}, false
	}
	return w.deb.Observe(current, now), true
}

func (w *Watcher) emit(ctx context.Context, runID string, typ events.Type, details map[string]any) {
	event := events.Event{
		Type:      typ,
		Timestamp: w.now().UTC(),
		RunID:     runID,
		Details:   details,
	}
	w.recorder.Record(event)
	w.emitter.Emit(ctx, event)
}
