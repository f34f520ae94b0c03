package arrival

import (
	"testing"
	"time"
)

func set(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func TestObserveDetectsNewFiles(t *testing.T) {
	d := NewDebouncer(10 * time.Minute)
	d.ReplaceKnown(set("a.jpg"))
	now := time.Unix(1000, 0).UTC()

	res := d.Observe(set("a.jpg", "b.jpg"), now)
	if len(res.NewFiles) != 1 || res.NewFiles[0] != "b.jpg" {
		t.Fatalf("expected new file b.jpg, got %#v", res.NewFiles)
	}
	if !res.Fired {
		t.Fatalf("first batch should fire")
	}
	if d.KnownCount() != 2 {
		t.Fatalf("expected known set of 2, got %d", d.KnownCount())
	}
}

func TestCooldownSuppressesButAbsorbs(t *testing.T) {
	d := NewDebouncer(10 * time.Minute)
	d.ReplaceKnown(set("a.jpg"))
	now := time.Unix(1000, 0).UTC()

	if res := d.Observe(set("a.jpg", "b.jpg"), now); !res.Fired {
		t.Fatalf("expected first alert to fire")
	}

	// Inside the cooldown: suppressed, but the file becomes known.
	later := now.Add(time.Minute)
	res := d.Observe(set("a.jpg", "b.jpg", "c.jpg"), later)
	if res.Fired {
		t.Fatalf("alert inside cooldown must be suppressed")
	}
	if len(res.NewFiles) != 1 || res.NewFiles[0] != "c.jpg" {
		t.Fatalf("expected c.jpg detected, got %#v", res.NewFiles)
	}
	if res.Remaining != 9*time.Minute {
		t.Fatalf("expected 9m cooldown remaining, got %s", res.Remaining)
	}
	if d.KnownCount() != 3 {
		t.Fatalf("suppressed files must still be absorbed, got %d known", d.KnownCount())
	}

	// After the cooldown the absorbed batch never re-alerts.
	after := now.Add(11 * time.Minute)
	if res := d.Observe(set("a.jpg", "b.jpg", "c.jpg"), after); res.Fired || len(res.NewFiles) != 0 {
		t.Fatalf("absorbed batch re-alerted: %#v", res)
	}
}

func TestFirstBatchFiresWithoutPriorAlarm(t *testing.T) {
	d := NewDebouncer(time.Hour)
	now := time.Unix(1000, 0).UTC()
	if res := d.Observe(set("a.jpg"), now); !res.Fired {
		t.Fatalf("expected alert with no prior alarm")
	}
	if alarm, ok := d.LastAlarm(); !ok || !alarm.Equal(now) {
		t.Fatalf("expected last alarm %s, got %v ok=%t", now, alarm, ok)
	}
}

func TestSuppressedBatchDoesNotTouchLastAlarm(t *testing.T) {
	d := NewDebouncer(10 * time.Minute)
	now := time.Unix(1000, 0).UTC()
	d.Observe(set("a.jpg"), now)

	d.Observe(set("a.jpg", "b.jpg"), now.Add(time.Minute))
	if alarm, _ := d.LastAlarm(); !alarm.Equal(now) {
		t.Fatalf("suppressed batch moved last alarm to %s", alarm)
	}
}

func TestDeletionsFallOutSilently(t *testing.T) {
	d := NewDebouncer(0)
	now := time.Unix(1000, 0).UTC()
	d.ReplaceKnown(set("a.jpg", "b.jpg"))

	res := d.Observe(set("a.jpg"), now)
	if len(res.NewFiles) != 0 || res.Fired {
		t.Fatalf("deletion must not alert: %#v", res)
	}
	if d.KnownCount() != 1 {
		t.Fatalf("expected deleted file to fall out, got %d known", d.KnownCount())
	}

	// The same name arriving again is new.
	res = d.Observe(set("a.jpg", "b.jpg"), now.Add(time.Second))
	if len(res.NewFiles) != 1 || res.NewFiles[0] != "b.jpg" {
		t.Fatalf("recreated file should be detected, got %#v", res.NewFiles)
	}
}

func TestZeroCooldownAlwaysFires(t *testing.T) {
	d := NewDebouncer(0)
	now := time.Unix(1000, 0).UTC()
	if res := d.Observe(set("a.jpg"), now); !res.Fired {
		t.Fatalf("expected fire")
	}
	if res := d.Observe(set("a.jpg", "b.jpg"), now); !res.Fired {
		t.Fatalf("zero cooldown must fire every batch")
	}
}
