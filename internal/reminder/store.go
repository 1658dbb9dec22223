package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Key identifies a scheduled reminder. One appointment can hold several
// entries, never two with the same kind and send time.
type Key struct {
	AppointmentID uuid.UUID
	Kind          Kind
	SendAt        time.Time
}

// ScheduledReminder is a queued send. SendAt is fixed once written; a
// reschedule replaces the entry instead of editing it.
type ScheduledReminder struct {
	AppointmentID uuid.UUID
	Kind          Kind
	Channels      []Channel
	SendAt        time.Time
	Snapshot      Snapshot
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	CreatedAt     time.Time
}

func (r ScheduledReminder) Key() Key {
	return Key{AppointmentID: r.AppointmentID, Kind: r.Kind, SendAt: r.SendAt}
}

// Store is the durable queue of scheduled reminders.
type Store interface {
	// Replace atomically swaps every entry of an appointment for entries.
	Replace(ctx context.Context, appointmentID uuid.UUID, entries []ScheduledReminder) error
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) (int, error)
	ListDue(ctx context.Context, asOf time.Time) ([]ScheduledReminder, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error)
	Delete(ctx context.Context, key Key) (bool, error)
}

type memoryKey struct {
	appointmentID uuid.UUID
	kind          Kind
	sendAt        int64
}

func toMemoryKey(k Key) memoryKey {
	return memoryKey{appointmentID: k.AppointmentID, kind: k.Kind, sendAt: k.SendAt.UnixNano()}
}

// MemoryStore keeps reminders in process memory. It does not survive a
// restart; use it for tests and local development only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[memoryKey]ScheduledReminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[memoryKey]ScheduledReminder)}
}

func (s *MemoryStore) Replace(_ context.Context, appointmentID uuid.UUID, entries []ScheduledReminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		if k.appointmentID == appointmentID {
			delete(s.entries, k)
		}
	}
	for _, e := range entries {
		s.entries[toMemoryKey(e.Key())] = e
	}
	return nil
}

func (s *MemoryStore) DeleteByAppointment(_ context.Context, appointmentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if k.appointmentID == appointmentID {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListDue(_ context.Context, asOf time.Time) ([]ScheduledReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ScheduledReminder
	for _, e := range s.entries {
		if !e.SendAt.After(asOf) {
			out = append(out, e)
		}
	}
	sortBySendAt(out)
	return out, nil
}

func (s *MemoryStore) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]ScheduledReminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ScheduledReminder
	for k, e := range s.entries {
		if k.appointmentID == appointmentID {
			out = append(out, e)
		}
	}
	sortBySendAt(out)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := toMemoryKey(key)
	if _, ok := s.entries[mk]; !ok {
		return false, nil
	}
	delete(s.entries, mk)
	return true, nil
}

func sortBySendAt(rs []ScheduledReminder) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].SendAt.Equal(rs[j].SendAt) {
			return rs[i].Kind < rs[j].Kind
		}
		return rs[i].SendAt.Before(rs[j].SendAt)
	})
}
