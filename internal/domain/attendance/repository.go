package attendance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gatherline/server/internal/domain/events"
)

var ErrNotFound = errors.New("attendance not found")

type Status string

const (
	StatusGoing    Status = "GOING"
	StatusMaybe    Status = "MAYBE"
	StatusDeclined Status = "DECLINED"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(strings.TrimSpace(value)) {
	case StatusGoing:
		return StatusGoing, true
	case StatusMaybe:
		return StatusMaybe, true
	case StatusDeclined:
		return StatusDeclined, true
	}
	return "", false
}

// Attendance is one RSVP. The identity is the (event, user) pair; there
// is no surrogate key. RespondedAt is stamped on the first response and
// kept on later status changes.
type Attendance struct {
	EventID     string
	UserID      string
	Status      Status
	RespondedAt time.Time
}

// Responder is the user summary joined into attendance listings.
type Responder struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// Record is an attendance with the joined event and responder the API
// representations need.
type Record struct {
	Attendance
	Event events.Event
	User  Responder
}

type Pagination struct {
	Offset int
	Limit  int
	Sort   string
	Desc   bool
}

type ListResult struct {
	Attendances []Record
	Total       int64
}

// Repository persists RSVPs. CountsForEvent and StatusForUser double as
// the events domain's attendance source.
type Repository interface {
	Upsert(ctx context.Context, eventID, userID string, status Status) (*Record, error)
	ListByUser(ctx context.Context, userID string, page Pagination) (ListResult, error)
	ListByEvent(ctx context.Context, eventID string, page Pagination) (ListResult, error)
	CountsForEvent(ctx context.Context, eventID string) (events.AttendanceCounts, error)
	// StatusForUser returns "" when the user has not responded.
	StatusForUser(ctx context.Context, eventID, userID string) (string, error)
}
