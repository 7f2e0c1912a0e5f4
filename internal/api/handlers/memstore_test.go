package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/users"
)

// memStore backs every repository interface the handlers' services
// need, so one fixture serves the whole package.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*users.User
	usersByMail map[string]string
	events      map[string]*events.Event
	rsvps       map[string]*attendance.Record
	clock       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]*users.User),
		usersByMail: make(map[string]string),
		events:      make(map[string]*events.Event),
		rsvps:       make(map[string]*attendance.Record),
		clock:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// users.Repository

func (s *memStore) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByMail[params.Email]; taken {
		return nil, users.ErrEmailTaken
	}
	now := s.tick()
	user := &users.User{
		ID:           uuid.NewString(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.usersByMail[user.Email] = user.ID
	copied := *user
	return &copied, nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByMail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.usersByMail[email]
	return ok, nil
}

// eventStore adapts memStore to events.Repository. A separate type
// because Create and GetByID collide with the user methods.
type eventStore struct{ *memStore }

func (s eventStore) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	event := &events.Event{
		ID:          uuid.NewString(),
		Title:       params.Title,
		Description: params.Description,
		Location:    params.Location,
		StartTime:   params.StartTime,
		EndTime:     params.EndTime,
		Visibility:  params.Visibility,
		HostID:      params.HostID,
		Host:        s.hostLocked(params.HostID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.events[event.ID] = event
	copied := *event
	return &copied, nil
}

func (s eventStore) hostLocked(hostID string) events.Host {
	if user, ok := s.users[hostID]; ok {
		return events.Host{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, CreatedAt: user.CreatedAt}
	}
	return events.Host{ID: hostID}
}

func (s eventStore) GetByID(ctx context.Context, id string) (*events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || event.Deleted {
		return nil, events.ErrNotFound
	}
	copied := *event
	return &copied, nil
}

func (s eventStore) Update(ctx context.Context, event *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.events[event.ID]
	if !ok || stored.Deleted {
		return events.ErrNotFound
	}
	updated := *event
	updated.UpdatedAt = s.tick()
	s.events[event.ID] = &updated
	return nil
}

func (s eventStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok || event.Deleted {
		return events.ErrNotFound
	}
	event.Deleted = true
	return nil
}

func (s eventStore) List(ctx context.Context, scope events.AccessScope, filters events.Filters, page events.Pagination) (events.ListResult, error) {
	return s.collect(func(e *events.Event) bool {
		return scope.Matches(e) && filters.Matches(e)
	}, page)
}

func (s eventStore) ListUpcoming(ctx context.Context, from time.Time, page events.Pagination) (events.ListResult, error) {
	return s.collect(func(e *events.Event) bool {
		return !e.Deleted && e.Visibility == events.VisibilityPublic && !e.StartTime.Before(from)
	}, page)
}

func (s eventStore) ListHostedBy(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	return s.collect(func(e *events.Event) bool {
		return !e.Deleted && e.HostID == userID
	}, page)
}

func (s eventStore) ListAttendedBy(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	return s.collect(func(e *events.Event) bool {
		return !e.Deleted && s.hasRSVPLocked(e.ID, userID)
	}, page)
}

func (s eventStore) ListInvolving(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	return s.collect(func(e *events.Event) bool {
		return !e.Deleted && (e.HostID == userID || s.hasRSVPLocked(e.ID, userID))
	}, page)
}

func (s eventStore) hasRSVPLocked(eventID, userID string) bool {
	_, ok := s.rsvps[eventID+"/"+userID]
	return ok
}

func (s eventStore) collect(keep func(*events.Event) bool, page events.Pagination) (events.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []events.Event
	for _, e := range s.events {
		if keep(e) {
			matched = append(matched, *e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.Before(matched[j].StartTime)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return events.ListResult{Total: total}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return events.ListResult{Events: matched, Total: total}, nil
}

// attendanceStore adapts memStore to attendance.Repository.
type attendanceStore struct{ *memStore }

func (s attendanceStore) Upsert(ctx context.Context, eventID, userID string, status attendance.Status) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventID + "/" + userID
	if existing, ok := s.rsvps[key]; ok {
		existing.Status = status
		copied := s.joinedLocked(existing)
		return &copied, nil
	}

	record := &attendance.Record{
		Attendance: attendance.Attendance{
			EventID:     eventID,
			UserID:      userID,
			Status:      status,
			RespondedAt: s.tick(),
		},
	}
	s.rsvps[key] = record
	copied := s.joinedLocked(record)
	return &copied, nil
}

// joinedLocked fills the event and responder the way the SQL join does.
func (s attendanceStore) joinedLocked(record *attendance.Record) attendance.Record {
	out := *record
	if event, ok := s.events[record.EventID]; ok {
		out.Event = *event
	}
	if user, ok := s.users[record.UserID]; ok {
		out.User = attendance.Responder{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, CreatedAt: user.CreatedAt}
	} else {
		out.User = attendance.Responder{ID: record.UserID}
	}
	return out
}

func (s attendanceStore) ListByUser(ctx context.Context, userID string, page attendance.Pagination) (attendance.ListResult, error) {
	return s.collectRSVPs(func(r *attendance.Record) bool { return r.UserID == userID }, page)
}

func (s attendanceStore) ListByEvent(ctx context.Context, eventID string, page attendance.Pagination) (attendance.ListResult, error) {
	return s.collectRSVPs(func(r *attendance.Record) bool { return r.EventID == eventID }, page)
}

func (s attendanceStore) collectRSVPs(keep func(*attendance.Record) bool, page attendance.Pagination) (attendance.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []attendance.Record
	for _, r := range s.rsvps {
		if keep(r) {
			matched = append(matched, s.joinedLocked(r))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RespondedAt.Before(matched[j].RespondedAt)
	})

	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return attendance.ListResult{Total: total}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return attendance.ListResult{Attendances: matched, Total: total}, nil
}

func (s attendanceStore) CountsForEvent(ctx context.Context, eventID string) (events.AttendanceCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts events.AttendanceCounts
	for _, r := range s.rsvps {
		if r.EventID != eventID {
			continue
		}
		switch r.Status {
		case attendance.StatusGoing:
			counts.Going++
		case attendance.StatusMaybe:
			counts.Maybe++
		case attendance.StatusDeclined:
			counts.Declined++
		}
	}
	return counts, nil
}

func (s attendanceStore) StatusForUser(ctx context.Context, eventID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rsvps[eventID+"/"+userID]; ok {
		return string(r.Status), nil
	}
	return "", nil
}
