package arrival

import (
	"sort"
	"time"
)

// Result describes one tick's worth of arrival detection.
type Result struct {
	// NewFiles lists filenames seen for the first time, sorted.
	NewFiles []string
	// Fired reports whether a motion alert is due for this batch.
	Fired bool
	// Remaining is how much cooldown was left when a batch was
	// suppressed; zero when Fired or when nothing arrived.
	Remaining time.Duration
}

// Debouncer tracks the known-file set and gates motion alerts on a
// cooldown window. Callers synchronize access; the watcher holds its
// state lock around every method.
type Debouncer struct {
	cooldown  time.Duration
	known     map[string]struct{}
	lastAlarm time.Time
}

func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Debouncer{
		cooldown: cooldown,
		known:    make(map[string]struct{}),
	}
}

// Observe diffs the current snapshot against the known set. The known
// set always advances to the snapshot, so a suppressed batch is never
// re-alerted once the cooldown expires.
func (d *Debouncer) Observe(current map[string]struct{}, now time.Time) Result {
	var res Result
	for name := range current {
		if _, ok := d.known[name]; !ok {
			res.NewFiles = append(res.NewFiles, name)
		}
	}
	d.known = cloneSet(current)

	if len(res.NewFiles) == 0 {
		return res
	}
	sort.Strings(res.NewFiles)

	if d.lastAlarm.IsZero() || now.Sub(d.lastAlarm) >= d.cooldown {
		res.Fired = true
		d.lastAlarm = now
		return res
	}
	res.Remaining = d.cooldown - now.Sub(d.lastAlarm)
	return res
}

// ReplaceKnown swaps in a fresh snapshot without running detection.
// Used to seed at loop start and to re-synchronize after a clear sweep.
func (d *Debouncer) ReplaceKnown(files map[string]struct{}) {
	d.known = cloneSet(files)
}

func (d *Debouncer) KnownCount() int {
	return len(d.known)
}

// LastAlarm reports when an alert last fired, false if never.
func (d *Debouncer) LastAlarm() (time.Time, bool) {
	return d.lastAlarm, !d.lastAlarm.IsZero()
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for name := range in {
		out[name] = struct{}{}
	}
	return out
}
