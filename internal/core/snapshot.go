package core

import (
	"sync/atomic"
	"time"
)

// Snapshot is the read-only configuration a print pass runs against.
type Snapshot struct {
	Endpoint  Endpoint
	Templates *TemplateSet
	Pacing    time.Duration
}

// SnapshotStore publishes snapshots. Reloads replace the whole value, so a
// pass that already loaded a snapshot never observes a change.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
}

func NewSnapshotStore(initial *Snapshot) *SnapshotStore {
	s := &SnapshotStore{}
	s.current.Store(initial)
	return s
}

func (s *SnapshotStore) Load() *Snapshot {
	return s.current.Load()
}

func (s *SnapshotStore) Swap(next *Snapshot) *Snapshot {
	return s.current.Swap(next)
}
