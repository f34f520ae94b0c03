package health

import (
	"math/rand"
	"testing"
)

func TestVerdictBeforeWindowFull(t *testing.T) {
	f := NewFilter(3)

	online, flipped := f.Observe(true)
	if !online || !flipped {
		t.Fatalf("first sample should publish raw verdict, got online=%t flipped=%t", online, flipped)
	}
	online, flipped = f.Observe(false)
	if online || !flipped {
		t.Fatalf("second raw sample should flip to offline, got online=%t flipped=%t", online, flipped)
	}
}

func TestMajorityAfterWindowFull(t *testing.T) {
	f := NewFilter(3)
	f.Observe(true)
	f.Observe(true)

	// Window now full: one false against two trues stays online.
	online, flipped := f.Observe(false)
	if !online {
		t.Fatalf("expected majority online")
	}
	if flipped {
		t.Fatalf("stable verdict must not flip")
	}

	// Two falses out of three flips offline.
	online, flipped = f.Observe(false)
	if online || !flipped {
		t.Fatalf("expected flip to offline, got online=%t flipped=%t", online, flipped)
	}
}

func TestEvenWindowTieIsOffline(t *testing.T) {
	f := NewFilter(4)
	f.Observe(true)
	f.Observe(true)
	f.Observe(false)

	// 2 of 4 true is not a strict majority.
	online, _ := f.Observe(false)
	if online {
		t.Fatalf("tie with even window must read offline")
	}
}

func TestNoDuplicateFlipsWhileStable(t *testing.T) {
	f := NewFilter(3)
	flips := 0
	for i := 0; i < 20; i++ {
		if _, flipped := f.Observe(true); flipped {
			flips++
		}
	}
	if flips != 1 {
		t.Fatalf("expected exactly one flip for constant input, got %d", flips)
	}
}

func TestFirstVerdictAlwaysFlips(t *testing.T) {
	f := NewFilter(5)
	if f.verdict != VerdictUnknown {
		t.Fatalf("expected unknown before first sample")
	}
	if _, flipped := f.Observe(false); !flipped {
		t.Fatalf("first verdict must publish even when offline")
	}
	if f.verdict != VerdictOffline {
		t.Fatalf("expected offline published, got %s", f.verdict)
	}
}

func TestFreshFilterPublishesAgain(t *testing.T) {
	f := NewFilter(3)
	f.Observe(true)

	f = NewFilter(3)
	if f.verdict != VerdictUnknown {
		t.Fatalf("fresh filter must start unknown")
	}
	if _, flipped := f.Observe(true); !flipped {
		t.Fatalf("first verdict of a fresh filter must publish")
	}
}

func TestVerdictMatchesTrailingMajority(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 3, 4, 7} {
		f := NewFilter(n)
		var history []bool
		for i := 0; i < 200; i++ {
			raw := rng.Intn(2) == 0
			history = append(history, raw)
			online, _ := f.Observe(raw)

			want := raw
			if len(history) >= n {
				trues := 0
				for _, s := range history[len(history)-n:] {
					if s {
						trues++
					}
				}
				want = trues >= n/2+1
			}
			if online != want {
				t.Fatalf("n=%d sample=%d: verdict %t, want %t", n, i, online, want)
			}
		}
	}
}
