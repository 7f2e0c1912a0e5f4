package handlers

import (
	"time"

	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/users"
)

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u *users.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func newHostResponse(h events.Host) UserResponse {
	return UserResponse{
		ID:        h.ID,
		Name:      h.Name,
		Email:     h.Email,
		Role:      h.Role,
		CreatedAt: h.CreatedAt,
	}
}

func newResponderResponse(u attendance.Responder) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type Link struct {
	Href string `json:"href"`
}

type EventResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Visibility    string          `json:"visibility"`
	Host          UserResponse    `json:"host"`
	AttendeeCount int64           `json:"attendeeCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Links         map[string]Link `json:"_links,omitempty"`
}

func newEventResponse(e *events.Event, viewer events.Viewer) EventResponse {
	return EventResponse{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Location:      e.Location,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		Visibility:    string(e.Visibility),
		Host:          newHostResponse(e.Host),
		AttendeeCount: e.AttendeeCount,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Links:         eventLinks(e, viewer),
	}
}

func newEventResponses(items []events.Event, viewer events.Viewer) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for i := range items {
		out = append(out, newEventResponse(&items[i], viewer))
	}
	return out
}

// eventLinks decorates the representation after the fact. Mutation
// links appear only for callers the operations themselves would admit.
func eventLinks(e *events.Event, viewer events.Viewer) map[string]Link {
	self := "/api/events/" + e.ID
	links := map[string]Link{
		"self":        {Href: self},
		"status":      {Href: self + "/status"},
		"attendances": {Href: "/api/attendances/event/" + e.ID},
	}
	if e.CanBeModifiedBy(viewer) {
		links["update"] = Link{Href: self}
		links["delete"] = Link{Href: self}
	}
	return links
}

type AttendanceResponse struct {
	Event       EventResponse `json:"event"`
	User        UserResponse  `json:"user"`
	Status      string        `json:"status"`
	RespondedAt time.Time     `json:"respondedAt"`
}

func newAttendanceResponse(rec *attendance.Record, viewer events.Viewer) AttendanceResponse {
	return AttendanceResponse{
		Event:       newEventResponse(&rec.Event, viewer),
		User:        newResponderResponse(rec.User),
		Status:      string(rec.Status),
		RespondedAt: rec.RespondedAt,
	}
}

func newAttendanceResponses(items []attendance.Record, viewer events.Viewer) []AttendanceResponse {
	out := make([]AttendanceResponse, 0, len(items))
	for i := range items {
		out = append(out, newAttendanceResponse(&items[i], viewer))
	}
	return out
}

type EventStatusResponse struct {
	EventID              string    `json:"eventId"`
	Title                string    `json:"title"`
	Status               string    `json:"status"`
	TotalAttendees       int64     `json:"totalAttendees"`
	GoingCount           int64     `json:"goingCount"`
	MaybeCount           int64     `json:"maybeCount"`
	DeclinedCount        int64     `json:"declinedCount"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	CanUserAttend        bool      `json:"canUserAttend"`
	UserAttendanceStatus string    `json:"userAttendanceStatus"`
}

func newEventStatusResponse(report *events.StatusReport) EventStatusResponse {
	return EventStatusResponse{
		EventID:              report.EventID,
		Title:                report.Title,
		Status:               string(report.Status),
		TotalAttendees:       report.TotalAttendees,
		GoingCount:           report.GoingCount,
		MaybeCount:           report.MaybeCount,
		DeclinedCount:        report.DeclinedCount,
		StartTime:            report.StartTime,
		EndTime:              report.EndTime,
		CanUserAttend:        report.CanUserAttend,
		UserAttendanceStatus: report.UserStatus,
	}
}
