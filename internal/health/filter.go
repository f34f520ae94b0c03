package health

// Verdict is the published, debounced reachability state.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictOffline
	VerdictOnline
)

func (v Verdict) String() string {
	switch v {
	case VerdictOnline:
		return "online"
	case VerdictOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Filter smooths raw reachability samples with a fixed-capacity window
// and a strict majority vote. It is owned by a single run loop and is
// not safe for concurrent use.
type Filter struct {
	ring    []bool
	next    int
	count   int
	verdict Verdict
}

func NewFilter(n int) *Filter {
	if n < 1 {
		n = 1
	}
	return &Filter{ring: make([]bool, n)}
}

// Observe pushes one raw sample and returns the current verdict plus
// whether it differs from the previously published one. The first
// verdict always reports a flip.
func (f *Filter) Observe(raw bool) (bool, bool) {
	f.ring[f.next] = raw
	f.next = (f.next + 1) % len(f.ring)
	if f.count < len(f.ring) {
		f.count++
	}

	online := raw
	if f.count == len(f.ring) {
		trues := 0
		for _, s := range f.ring {
			if s {
				trues++
			}
		}
		// Strict majority: even windows tie toward offline.
		online = trues >= len(f.ring)/2+1
	}

	verdict := VerdictOffline
	if online {
		verdict = VerdictOnline
	}
	flipped := verdict != f.verdict
	f.verdict = verdict
	return online, flipped
}
