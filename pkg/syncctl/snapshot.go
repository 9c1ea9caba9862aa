package syncctl

import (
	"errors"
	"sync"
)

// SnapshotStore keeps the raw query of the last settled search so that a
// round trip through a provider detail page can come back to it.
type SnapshotStore interface {
	LoadSnapshot() (raw string, ok bool, err error)
	SaveSnapshot(raw string) error
	ClearSnapshot() error
}

// Layered combines a session scoped store with a durable one. Reads prefer
// the session store and only fall back to the durable store; writes and
// clears go to both.
type Layered struct {
	Session SnapshotStore
	Durable SnapshotStore
}

func (l Layered) stores() []SnapshotStore {
	var out []SnapshotStore
	for _, s := range []SnapshotStore{l.Session, l.Durable} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (l Layered) LoadSnapshot() (string, bool, error) {
	var errs []error
	for _, s := range l.stores() {
		raw, ok, err := s.LoadSnapshot()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return raw, true, nil
		}
	}
	return "", false, errors.Join(errs...)
}

func (l Layered) SaveSnapshot(raw string) error {
	var errs []error
	for _, s := range l.stores() {
		errs = append(errs, s.SaveSnapshot(raw))
	}
	return errors.Join(errs...)
}

func (l Layered) ClearSnapshot() error {
	var errs []error
	for _, s := range l.stores() {
		errs = append(errs, s.ClearSnapshot())
	}
	return errors.Join(errs...)
}

// MemorySnapshot is a SnapshotStore living as long as the value does.
type MemorySnapshot struct {
	mu  sync.Mutex
	raw string
	ok  bool
}

func (m *MemorySnapshot) LoadSnapshot() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw, m.ok, nil
}

func (m *MemorySnapshot) SaveSnapshot(raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw, m.ok = raw, true
	return nil
}

func (m *MemorySnapshot) ClearSnapshot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw, m.ok = "", false
	return nil
}
