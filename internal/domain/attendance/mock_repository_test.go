package attendance

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gatherline/server/internal/domain/events"
)

// MockRepository implements Repository in memory for testing. Records
// are keyed by the (event, user) pair, like the real table.
type MockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	base    time.Time
	seq     int

	shouldFailUpsert bool
	shouldFailList   bool
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		records: make(map[string]*Record),
		base:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func recordKey(eventID, userID string) string {
	return eventID + "/" + userID
}

func (m *MockRepository) Upsert(ctx context.Context, eventID, userID string, status Status) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailUpsert {
		return nil, errors.New("mock upsert error")
	}

	key := recordKey(eventID, userID)
	if existing, ok := m.records[key]; ok {
		existing.Status = status
		copied := *existing
		return &copied, nil
	}

	m.seq++
	record := &Record{
		Attendance: Attendance{
			EventID: eventID,
			UserID:  userID,
			Status:  status,
			// Deterministic stamps so list ordering is stable.
			RespondedAt: m.base.Add(time.Duration(m.seq) * time.Minute),
		},
		Event: events.Event{ID: eventID},
		User:  Responder{ID: userID},
	}
	m.records[key] = record
	copied := *record
	return &copied, nil
}

func (m *MockRepository) ListByUser(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	return m.collect(func(r *Record) bool { return r.UserID == userID }, page)
}

func (m *MockRepository) ListByEvent(ctx context.Context, eventID string, page Pagination) (ListResult, error) {
	return m.collect(func(r *Record) bool { return r.EventID == eventID }, page)
}

func (m *MockRepository) CountsForEvent(ctx context.Context, eventID string) (events.AttendanceCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts events.AttendanceCounts
	for _, r := range m.records {
		if r.EventID != eventID {
			continue
		}
		switch r.Status {
		case StatusGoing:
			counts.Going++
		case StatusMaybe:
			counts.Maybe++
		case StatusDeclined:
			counts.Declined++
		}
	}
	return counts, nil
}

func (m *MockRepository) StatusForUser(ctx context.Context, eventID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[recordKey(eventID, userID)]; ok {
		return string(r.Status), nil
	}
	return "", nil
}

func (m *MockRepository) collect(keep func(*Record) bool, page Pagination) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailList {
		return ListResult{}, errors.New("mock list error")
	}

	var matched []Record
	for _, r := range m.records {
		if keep(r) {
			matched = append(matched, *r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].RespondedAt.Equal(matched[j].RespondedAt) {
			before := matched[i].RespondedAt.Before(matched[j].RespondedAt)
			if page.Desc {
				return !before
			}
			return before
		}
		return recordKey(matched[i].EventID, matched[i].UserID) < recordKey(matched[j].EventID, matched[j].UserID)
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return ListResult{Total: total}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return ListResult{Attendances: matched, Total: total}, nil
}

// MockEventSource implements EventSource over a fixed set of events.
// Deleted events are invisible, matching the real lookup.
type MockEventSource struct {
	events map[string]*events.Event
}

func NewMockEventSource() *MockEventSource {
	return &MockEventSource{events: make(map[string]*events.Event)}
}

func (m *MockEventSource) add(event *events.Event) {
	m.events[event.ID] = event
}

func (m *MockEventSource) GetByID(ctx context.Context, id string) (*events.Event, error) {
	event, ok := m.events[id]
	if !ok || event.Deleted {
		return nil, events.ErrNotFound
	}
	copied := *event
	return &copied, nil
}
