package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockRepository implements Repository in memory for testing. Listing
// reuses AccessScope.Matches and Filters.Matches, so these tests
// exercise the same predicates the store renders as SQL.
type MockRepository struct {
	mu     sync.Mutex
	events map[string]*Event
	// attendees maps event ID to the user IDs with any stored response.
	attendees map[string]map[string]bool
	seq       int

	shouldFailCreate bool
	shouldFailList   bool
	getCalls         int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		events:    make(map[string]*Event),
		attendees: make(map[string]map[string]bool),
	}
}

func (m *MockRepository) Create(ctx context.Context, params CreateParams) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFailCreate {
		return nil, errors.New("mock create error")
	}

	m.seq++
	now := time.Now().UTC()
	event := &Event{
		ID:          fmt.Sprintf("event-%d", m.seq),
		Title:       params.Title,
		Description: params.Description,
		Location:    params.Location,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		Visibility:  params.Visibility,
		HostID:      params.HostID,
		Host:        Host{ID: params.HostID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.events[event.ID] = event
	copied := *event
	return &copied, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	event, ok := m.events[id]
	if !ok || event.Deleted {
		return nil, ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (m *MockRepository) Update(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.events[event.ID]
	if !ok || stored.Deleted {
		return ErrNotFound
	}
	event.UpdatedAt = time.Now().UTC()
	copied := *event
	m.events[event.ID] = &copied
	return nil
}

func (m *MockRepository) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[id]
	if !ok || event.Deleted {
		return ErrNotFound
	}
	event.Deleted = true
	return nil
}

func (m *MockRepository) List(ctx context.Context, scope AccessScope, filters Filters, page Pagination) (ListResult, error) {
	if m.shouldFailList {
		return ListResult{}, errors.New("mock list error")
	}
	return m.collect(func(e *Event) bool {
		return scope.Matches(e) && filters.Matches(e)
	}, page), nil
}

func (m *MockRepository) ListUpcoming(ctx context.Context, from time.Time, page Pagination) (ListResult, error) {
	return m.collect(func(e *Event) bool {
		return !e.Deleted && e.Visibility == VisibilityPublic && !e.StartTime.Before(from)
	}, page), nil
}

func (m *MockRepository) ListHostedBy(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	return m.collect(func(e *Event) bool {
		return !e.Deleted && e.HostID == userID
	}, page), nil
}

func (m *MockRepository) ListAttendedBy(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	return m.collect(func(e *Event) bool {
		return !e.Deleted && m.attendees[e.ID][userID]
	}, page), nil
}

func (m *MockRepository) ListInvolving(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	return m.collect(func(e *Event) bool {
		return !e.Deleted && (e.HostID == userID || m.attendees[e.ID][userID])
	}, page), nil
}

func (m *MockRepository) collect(keep func(*Event) bool, page Pagination) ListResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Event
	for _, event := range m.events {
		if keep(event) {
			matched = append(matched, *event)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].StartTime.Before(matched[j].StartTime)
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return ListResult{Events: []Event{}, Total: total}
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return ListResult{Events: matched, Total: total}
}

func (m *MockRepository) addAttendee(eventID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.attendees[eventID] == nil {
		m.attendees[eventID] = make(map[string]bool)
	}
	m.attendees[eventID][userID] = true
}

// MockAttendanceSource feeds the status report fixed counts.
type MockAttendanceSource struct {
	counts   map[string]AttendanceCounts
	statuses map[string]map[string]string
}

func NewMockAttendanceSource() *MockAttendanceSource {
	return &MockAttendanceSource{
		counts:   make(map[string]AttendanceCounts),
		statuses: make(map[string]map[string]string),
	}
}

func (m *MockAttendanceSource) CountsForEvent(ctx context.Context, eventID string) (AttendanceCounts, error) {
	return m.counts[eventID], nil
}

func (m *MockAttendanceSource) StatusForUser(ctx context.Context, eventID, userID string) (string, error) {
	return m.statuses[eventID][userID], nil
}

func (m *MockAttendanceSource) setStatus(eventID, userID, status string) {
	if m.statuses[eventID] == nil {
		m.statuses[eventID] = make(map[string]string)
	}
	m.statuses[eventID][userID] = status
}

// MockCache records operations so tests can observe read-through and
// invalidation behavior.
type MockCache struct {
	mu            sync.Mutex
	data          map[string][]byte
	deletes       []string
	prefixDeletes []string
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[key]
	return raw, ok
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
		m.deletes = append(m.deletes, key)
	}
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.data {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.data, key)
		}
	}
	m.prefixDeletes = append(m.prefixDeletes, prefix)
}

func (m *MockCache) contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.data[key]
	return ok
}
