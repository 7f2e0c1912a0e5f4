package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000

	// AttendanceNotResponded is the sentinel the status report uses for a
	// viewer with no stored response. It is never persisted.
	AttendanceNotResponded = "NOT_RESPONDED"
)

// AttendanceCounts aggregates responses for one event.
type AttendanceCounts struct {
	Going    int64
	Maybe    int64
	Declined int64
}

// AttendanceSource is the slice of the attendance store the status
// report needs. Implemented by the attendance repository.
type AttendanceSource interface {
	CountsForEvent(ctx context.Context, eventID string) (AttendanceCounts, error)
	// StatusForUser returns "" when the user has not responded.
	StatusForUser(ctx context.Context, eventID, userID string) (string, error)
}

// Cache is a fail-soft byte cache. Implementations must never surface
// backend errors; a miss and a failure look the same to the service.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, keys ...string)
	DeletePrefix(ctx context.Context, prefix string)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (nopCache) Set(context.Context, string, []byte)        {}
func (nopCache) Delete(context.Context, ...string)          {}
func (nopCache) DeletePrefix(context.Context, string)       {}

const (
	cacheKeyEventPrefix    = "event:"
	cacheKeyUpcomingPrefix = "events:upcoming:"
)

type Service struct {
	repo  Repository
	rsvps AttendanceSource
	cache Cache
}

// NewService wires the event service. cache may be nil, which disables
// read-through caching.
func NewService(repo Repository, rsvps AttendanceSource, cache Cache) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{repo: repo, rsvps: rsvps, cache: cache}
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidationError reports one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (s *Service) Create(ctx context.Context, hostID string, params CreateParams) (*Event, error) {
	if params.Visibility == "" {
		params.Visibility = VisibilityPublic
	}
	if err := validateCreate(params); err != nil {
		return nil, err
	}
	params.HostID = hostID

	event, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.invalidate(ctx, event.ID)
	zerolog.Ctx(ctx).Info().
		Str("event_id", event.ID).
		Str("host_id", hostID).
		Msg("event created")
	return event, nil
}

func (s *Service) Update(ctx context.Context, viewer Viewer, id string, params UpdateParams) (*Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.CanBeModifiedBy(viewer) {
		return nil, ErrForbidden
	}

	applyUpdate(event, params)
	if err := validateUpdated(event); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	s.invalidate(ctx, event.ID)
	zerolog.Ctx(ctx).Info().
		Str("event_id", event.ID).
		Str("user_id", viewer.UserID).
		Msg("event updated")
	return event, nil
}

func (s *Service) Delete(ctx context.Context, viewer Viewer, id string) error {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !event.CanBeModifiedBy(viewer) {
		return ErrForbidden
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	s.invalidate(ctx, id)
	zerolog.Ctx(ctx).Info().
		Str("event_id", id).
		Str("user_id", viewer.UserID).
		Msg("event deleted")
	return nil
}

// Get reads through the cache, then applies the single-event view rule.
// The permission check always runs on the cached copy too, so a hit can
// never hand a private event to the wrong viewer.
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (*Event, error) {
	key := cacheKeyEventPrefix + id
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached Event
		if err := json.Unmarshal(raw, &cached); err == nil && !cached.Deleted {
			if !cached.CanBeViewedBy(viewer) {
				return nil, ErrForbidden
			}
			return &cached, nil
		}
	}

	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(event); err == nil {
		s.cache.Set(ctx, key, raw)
	}
	if !event.CanBeViewedBy(viewer) {
		return nil, ErrForbidden
	}
	return event, nil
}

// ListUpcoming serves the public upcoming feed: public, not deleted,
// starting now or later. It is viewer-independent, which is what makes
// the shared cache safe.
func (s *Service) ListUpcoming(ctx context.Context, page Pagination) (ListResult, error) {
	key := fmt.Sprintf("%s%d:%d:%s:%t", cacheKeyUpcomingPrefix, page.Offset, page.Limit, page.Sort, page.Desc)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached ListResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	result, err := s.repo.ListUpcoming(ctx, time.Now().UTC(), page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list upcoming events: %w", err)
	}
	if raw, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, key, raw)
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, viewer Viewer, filters Filters, page Pagination) (ListResult, error) {
	scope := ScopeFor(viewer, filters.Visibility)
	result, err := s.repo.List(ctx, scope, filters, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list events: %w", err)
	}
	return result, nil
}

func (s *Service) ListHosted(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	result, err := s.repo.ListHostedBy(ctx, userID, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list hosted events: %w", err)
	}
	return result, nil
}

func (s *Service) ListAttending(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	result, err := s.repo.ListAttendedBy(ctx, userID, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list attending events: %w", err)
	}
	return result, nil
}

func (s *Service) ListInvolving(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	result, err := s.repo.ListInvolving(ctx, userID, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list user events: %w", err)
	}
	return result, nil
}

// StatusReport is the aggregate behind the status endpoint.
type StatusReport struct {
	EventID        string
	Title          string
	Status         Status
	TotalAttendees int64
	GoingCount     int64
	MaybeCount     int64
	DeclinedCount  int64
	StartTime      time.Time
	EndTime        time.Time
	CanUserAttend  bool
	UserStatus     string
}

func (s *Service) Status(ctx context.Context, viewer Viewer, id string) (*StatusReport, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.CanBeViewedBy(viewer) {
		return nil, ErrForbidden
	}

	counts, err := s.rsvps.CountsForEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count attendances: %w", err)
	}
	userStatus, err := s.rsvps.StatusForUser(ctx, id, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("load viewer attendance: %w", err)
	}
	if userStatus == "" {
		userStatus = AttendanceNotResponded
	}

	now := time.Now().UTC()
	return &StatusReport{
		EventID:        event.ID,
		Title:          event.Title,
		Status:         event.StatusAt(now),
		TotalAttendees: counts.Going + counts.Maybe + counts.Declined,
		GoingCount:     counts.Going,
		MaybeCount:     counts.Maybe,
		DeclinedCount:  counts.Declined,
		StartTime:      event.StartTime,
		EndTime:        event.EndTime,
		CanUserAttend:  event.StartTime.After(now),
		UserStatus:     userStatus,
	}, nil
}

func (s *Service) invalidate(ctx context.Context, eventID string) {
	s.cache.Delete(ctx, cacheKeyEventPrefix+eventID)
	s.cache.DeletePrefix(ctx, cacheKeyUpcomingPrefix)
}

// ParseFilters reads the list query parameters. Visibility is never
// rejected here; the scope rules decide what an unparseable value means
// for each viewer class.
func ParseFilters(values url.Values) (Filters, error) {
	filters := Filters{}

	raw := strings.TrimSpace(values.Get("visibility"))
	if raw != "" {
		filters.Visibility.Raw = raw
		if v, ok := ParseVisibility(raw); ok {
			filters.Visibility.Value = v
		}
	}

	filters.Location = strings.TrimSpace(values.Get("location"))

	startDate, err := parseTime("startDate", values.Get("startDate"))
	if err != nil {
		return filters, err
	}
	endDate, err := parseTime("endDate", values.Get("endDate"))
	if err != nil {
		return filters, err
	}
	filters.StartDate = startDate
	filters.EndDate = endDate

	return filters, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, FilterError{Field: field, Message: "must be an ISO8601 timestamp"}
}

func validateCreate(params CreateParams) error {
	fields := map[string]string{}

	if strings.TrimSpace(params.Title) == "" {
		fields["title"] = "Title is required"
	} else if len(params.Title) > MaxTitleLength {
		fields["title"] = fmt.Sprintf("Title must not exceed %d characters", MaxTitleLength)
	}
	if len(params.Description) > MaxDescriptionLength {
		fields["description"] = fmt.Sprintf("Description must not exceed %d characters", MaxDescriptionLength)
	}
	if strings.TrimSpace(params.Location) == "" {
		fields["location"] = "Location is required"
	}
	if params.StartTime.IsZero() {
		fields["startTime"] = "Start time is required"
	} else if !params.StartTime.After(time.Now()) {
		fields["startTime"] = "Start time must be in the future"
	}
	if params.EndTime.IsZero() {
		fields["endTime"] = "End time is required"
	} else if _, ok := fields["startTime"]; !ok && !params.EndTime.After(params.StartTime) {
		fields["endTime"] = "End time must be after start time"
	}
	if _, ok := ParseVisibility(string(params.Visibility)); !ok {
		fields["visibility"] = "Visibility must be PUBLIC or PRIVATE"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// validateUpdated re-checks the merged event after a partial update. The
// start time is allowed to stay in the past here; only the ordering of
// the merged bounds is enforced again.
func validateUpdated(event *Event) error {
	fields := map[string]string{}

	if strings.TrimSpace(event.Title) == "" {
		fields["title"] = "Title is required"
	} else if len(event.Title) > MaxTitleLength {
		fields["title"] = fmt.Sprintf("Title must not exceed %d characters", MaxTitleLength)
	}
	if len(event.Description) > MaxDescriptionLength {
		fields["description"] = fmt.Sprintf("Description must not exceed %d characters", MaxDescriptionLength)
	}
	if strings.TrimSpace(event.Location) == "" {
		fields["location"] = "Location is required"
	}
	if !event.EndTime.After(event.StartTime) {
		fields["endTime"] = "End time must be after start time"
	}
	if _, ok := ParseVisibility(string(event.Visibility)); !ok {
		fields["visibility"] = "Visibility must be PUBLIC or PRIVATE"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func applyUpdate(event *Event, params UpdateParams) {
	if params.Title != nil {
		event.Title = *params.Title
	}
	if params.Description != nil {
		event.Description = *params.Description
	}
	if params.Location != nil {
		event.Location = *params.Location
	}
	if params.StartTime != nil {
		event.StartTime = *params.StartTime
	}
	if params.EndTime != nil {
		event.EndTime = *params.EndTime
	}
	if params.Visibility != nil {
		event.Visibility = *params.Visibility
	}
}
