package events

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("event not found")

var ErrForbidden = errors.New("event access denied")

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility accepts the exact enum values only. Anything else is
// reported as not ok so callers can apply their own fallback rules.
func ParseVisibility(value string) (Visibility, bool) {
	switch Visibility(strings.TrimSpace(value)) {
	case VisibilityPublic:
		return VisibilityPublic, true
	case VisibilityPrivate:
		return VisibilityPrivate, true
	}
	return "", false
}

type Status string

const (
	StatusUpcoming  Status = "UPCOMING"
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled is part of the public enum but nothing transitions
	// into it yet; clients are told to handle it anyway.
	StatusCancelled Status = "CANCELLED"
)

type Host struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Visibility  Visibility
	HostID      string
	Host        Host
	Deleted     bool
	// AttendeeCount is the number of GOING responses, filled in by list
	// and get queries.
	AttendeeCount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusAt derives the temporal status. Both bounds are inclusive for
// ONGOING, so an event is still ongoing at the exact end instant.
func (e *Event) StatusAt(now time.Time) Status {
	switch {
	case now.After(e.EndTime):
		return StatusCompleted
	case !now.Before(e.StartTime):
		return StatusOngoing
	default:
		return StatusUpcoming
	}
}

func (e *Event) IsHostedBy(userID string) bool {
	return userID != "" && e.HostID == userID
}

// CanBeViewedBy applies the single-event rule: public events are open to
// any viewer, private ones to the host or an admin. Attendees of a
// private event get no special access here.
func (e *Event) CanBeViewedBy(v Viewer) bool {
	if e.Visibility == VisibilityPublic {
		return true
	}
	return v.IsAdmin || e.IsHostedBy(v.UserID)
}

func (e *Event) CanBeModifiedBy(v Viewer) bool {
	return v.IsAdmin || e.IsHostedBy(v.UserID)
}

type CreateParams struct {
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Visibility  Visibility
	HostID      string
}

// UpdateParams carries a partial update; nil means keep the stored value.
type UpdateParams struct {
	Title       *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Visibility  *Visibility
}

// VisibilityFilter keeps the raw request value next to the parsed one so
// the scope rules can tell "absent" from "present but unparseable".
type VisibilityFilter struct {
	Raw   string
	Value Visibility
}

func (f VisibilityFilter) Present() bool {
	return f.Raw != ""
}

func (f VisibilityFilter) Valid() bool {
	return f.Value != ""
}

type Filters struct {
	Visibility VisibilityFilter
	Location   string
	StartDate  *time.Time
	EndDate    *time.Time
}

// Matches is the in-memory twin of the SQL the store renders for the
// location and date filters. StartDate bounds the start from below,
// EndDate bounds the end from above, both inclusive.
func (f Filters) Matches(e *Event) bool {
	if f.Location != "" && !strings.Contains(strings.ToLower(e.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.StartDate != nil && e.StartTime.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.EndTime.After(*f.EndDate) {
		return false
	}
	return true
}

type Pagination struct {
	Offset int
	Limit  int
	Sort   string
	Desc   bool
}

type ListResult struct {
	Events []Event
	Total  int64
}

type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Event, error)
	// GetByID never returns soft-deleted events.
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, event *Event) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, scope AccessScope, filters Filters, page Pagination) (ListResult, error)
	ListUpcoming(ctx context.Context, from time.Time, page Pagination) (ListResult, error)
	ListHostedBy(ctx context.Context, userID string, page Pagination) (ListResult, error)
	ListAttendedBy(ctx context.Context, userID string, page Pagination) (ListResult, error)
	ListInvolving(ctx context.Context, userID string, page Pagination) (ListResult, error)
}
