package track

import (
	"sync"
	"time"

	"github.com/banshee-data/actsim/internal/simulator/spatial"
	"github.com/banshee-data/actsim/internal/simulator/vector"
)

// HistoryCapacity is the number of prior positions retained per track, as a
// drop-oldest ring buffer.
const HistoryCapacity = 32

// history is a fixed-capacity ring buffer of positions, oldest overwritten
// first. It never grows past HistoryCapacity.
type history struct {
	buf   [HistoryCapacity]vector.Vector2D
	count int
	head  int // index of the next write
}

func (h *history) push(p vector.Vector2D) {
	h.buf[h.head] = p
	h.head = (h.head + 1) % HistoryCapacity
	if h.count < HistoryCapacity {
		h.count++
	}
}

// Snapshot returns the retained positions oldest-first.
func (h *history) Snapshot() []vector.Vector2D {
	out := make([]vector.Vector2D, h.count)
	start := (h.head - h.count + HistoryCapacity) % HistoryCapacity
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(start+i)%HistoryCapacity]
	}
	return out
}

// Track is a single aircraft's current state plus bounded position
// history. Created by the first in-range update; mutated only by the
// store's Upsert and by SetGridCoord; destroyed by the store's Remove or
// RemoveIf (prune or blacklist entry).
type Track struct {
	ID        string
	Position  vector.Vector2D
	Velocity  vector.Vector2D
	Altitude  float64
	GridCoord spatial.Coord
	LastSeen  time.Time

	hist history
}

// History returns the retained prior positions, oldest first.
func (t *Track) History() []vector.Vector2D {
	return t.hist.Snapshot()
}

func newTrack(id string, p vector.Vector2D, v vector.Vector2D, alt float64, now time.Time) *Track {
	return &Track{
		ID:       id,
		Position: p,
		Velocity: v,
		Altitude: alt,
		LastSeen: now,
	}
}

// update pushes the track's current position into history, then replaces
// position and velocity and refreshes last-seen.
func (t *Track) update(p, v vector.Vector2D, now time.Time) {
	t.hist.push(t.Position)
	t.Position = p
	t.Velocity = v
	t.LastSeen = now
}

// Store owns the live set of tracks, keyed by id. Safe for concurrent
// readers during the collision engine's parallel phase; writes (Upsert,
// Remove) must happen on the main/driver goroutine only, between ticks.
type Store struct {
	mu     sync.RWMutex
	tracks map[string]*Track
}

// NewStore creates an empty track Store.
func NewStore() *Store {
	return &Store{tracks: make(map[string]*Track)}
}

// Upsert creates a track for id if none exists, or updates the existing
// one, pushing its previous position into history.
func (s *Store) Upsert(id string, p, v vector.Vector2D, alt float64, now time.Time) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tracks[id]; ok {
		t.update(p, v, now)
		return t
	}
	t := newTrack(id, p, v, alt, now)
	s.tracks[id] = t
	return t
}

// Get returns the track for id, or nil if absent.
func (s *Store) Get(id string) *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracks[id]
}

// Remove deletes the track for id, if any.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, id)
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// All returns a snapshot slice of every live track pointer. The returned
// slice is safe to range over after the call returns even if the store is
// mutated concurrently; the *Track values themselves must not be mutated
// by callers outside the owning goroutine.
func (s *Store) All() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// RemoveIf deletes every track for which keep returns false.
func (s *Store) RemoveIf(keep func(*Track) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tracks {
		if !keep(t) {
			delete(s.tracks, id)
		}
	}
}

// SetGridCoord records the cell a track currently occupies, maintained by
// the collision engine when it rebuilds the spatial index.
func (t *Track) SetGridCoord(c spatial.Coord) {
	t.GridCoord = c
}
