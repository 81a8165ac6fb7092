package admission

import (
	"time"

	"github.com/banshee-data/actsim/internal/simulator/bloomfilter"
)

// Result is the tri-state outcome of an admission check. Callers must
// discriminate on the tag rather than collapsing it to a boolean.
type Result int

const (
	// Pending means the id's exact count has been incremented but has not
	// yet reached the promotion threshold.
	Pending Result = iota
	// Promoted means this call pushed the id's count to the threshold and
	// it has just been moved into the scalable filter.
	Promoted
	// Trusted means the id was already present in the scalable filter.
	Trusted
)

// String renders the result for logging.
func (r Result) String() string {
	switch r {
	case Pending:
		return "Pending"
	case Promoted:
		return "Promoted"
	case Trusted:
		return "Trusted"
	default:
		return "Unknown"
	}
}

// DefaultThreshold is the number of contemporaneous sightings required to
// promote an id from the pending buffer into the scalable filter.
const DefaultThreshold = 3

// Stats reports the current occupancy of an admission Manager.
type Stats struct {
	LayerCount  int
	TotalBits   int
	FillRatio   float64
	EstFPR      float64
	PendingSize int
}

// Manager is either absent, pending (seen 1..threshold-1 times), or
// promoted into the scalable filter (and absent from pending) for any
// given id — never both.
type Manager struct {
	filter    *bloomfilter.ScalableFilter
	pending   map[string]int
	threshold int
}

// NewManager creates a Manager with the default promotion threshold.
func NewManager() *Manager {
	return NewManagerWithThreshold(DefaultThreshold)
}

// NewManagerWithThreshold creates a Manager with a custom promotion
// threshold (mainly useful for tests).
func NewManagerWithThreshold(threshold int) *Manager {
	if threshold < 1 {
		threshold = 1
	}
	return &Manager{
		filter:    bloomfilter.NewScalableFilter(),
		pending:   make(map[string]int),
		threshold: threshold,
	}
}

// Admit processes one sighting of id and returns the resulting tri-state
// decision.
func (m *Manager) Admit(id string) Result {
	if m.filter.Contains(id) {
		return Trusted
	}

	m.pending[id]++
	if m.pending[id] >= m.threshold {
		delete(m.pending, id)
		m.filter.Insert(id)
		return Promoted
	}
	return Pending
}

// Stats reports the manager's current occupancy.
func (m *Manager) Stats() Stats {
	return Stats{
		LayerCount:  m.filter.LayerCount(),
		TotalBits:   m.filter.TotalBits(),
		FillRatio:   m.filter.FillRatio(),
		EstFPR:      m.filter.FPR(),
		PendingSize: len(m.pending),
	}
}

// Prune delegates to the scalable filter's age-based layer eviction and
// unconditionally clears the pending map: promotion relies on
// contemporaneous repetition, so stale counters should not carry forward
// across a prune boundary.
func (m *Manager) Prune(maxAge time.Duration) {
	m.filter.Prune(maxAge)
	m.pending = make(map[string]int)
}
