package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gatherline/server/internal/api/pagination"
	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/attendance"
)

var attendanceSortFields = []string{"respondedAt", "status"}

var defaultAttendanceSort = pagination.Sort{Field: "respondedAt"}

type AttendancesHandler struct {
	attendance *attendance.Service
}

func NewAttendancesHandler(attendance *attendance.Service) *AttendancesHandler {
	return &AttendancesHandler{attendance: attendance}
}

type attendanceRequest struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

// Respond records or replaces the caller's RSVP. Re-responding changes
// the status in place; there is never more than one row per user and
// event.
func (h *AttendancesHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fields := map[string]string{}
	if _, err := uuid.Parse(req.EventID); err != nil {
		fields["eventId"] = "Event id must be a UUID"
	}
	status, ok := attendance.ParseStatus(req.Status)
	if !ok {
		fields["status"] = "Status must be GOING, MAYBE, or DECLINED"
	}
	if len(fields) > 0 {
		problem.WriteValidation(w, r, fields)
		return
	}

	viewer := viewerFrom(r)
	record, err := h.attendance.Respond(r.Context(), viewer.UserID, req.EventID, status)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newAttendanceResponse(record, viewer))
}

func (h *AttendancesHandler) MyAttendances(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query(), attendanceSortFields, defaultAttendanceSort)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	viewer := viewerFrom(r)
	result, err := h.attendance.ListMine(r.Context(), viewer.UserID, attendancePage(page))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	content := newAttendanceResponses(result.Attendances, viewer)
	writeJSON(w, http.StatusOK, pagination.NewPage(content, page, result.Total))
}

// ListForEvent returns every RSVP for one event. The route is admin
// only; the router enforces that before this handler runs.
func (h *AttendancesHandler) ListForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventId")
	if !ok {
		return
	}

	page, err := pagination.Parse(r.URL.Query(), attendanceSortFields, defaultAttendanceSort)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	viewer := viewerFrom(r)
	result, err := h.attendance.ListForEvent(r.Context(), eventID, attendancePage(page))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	content := newAttendanceResponses(result.Attendances, viewer)
	writeJSON(w, http.StatusOK, pagination.NewPage(content, page, result.Total))
}

func attendancePage(req pagination.Request) attendance.Pagination {
	return attendance.Pagination{
		Offset: req.Offset(),
		Limit:  req.Size,
		Sort:   req.Sort.Field,
		Desc:   req.Sort.Desc,
	}
}
