package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gatherline/server/internal/api/pagination"
	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/events"
)

// eventSortFields is the whitelist for every event listing. Sorting on
// a column outside it is a client error, not a silent fallback.
var eventSortFields = []string{"startTime", "endTime", "title", "createdAt"}

var defaultEventSort = pagination.Sort{Field: "startTime"}

type EventsHandler struct {
	events *events.Service
}

func NewEventsHandler(events *events.Service) *EventsHandler {
	return &EventsHandler{events: events}
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Visibility  string    `json:"visibility"`
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	viewer := viewerFrom(r)
	event, err := h.events.Create(r.Context(), viewer.UserID, events.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Visibility:  events.Visibility(req.Visibility),
	})
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newEventResponse(event, viewer))
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	viewer := viewerFrom(r)
	event, err := h.events.Get(r.Context(), viewer, id)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newEventResponse(event, viewer))
}

type updateEventRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	Visibility  *string    `json:"visibility"`
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req updateEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := events.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if req.Visibility != nil {
		v := events.Visibility(*req.Visibility)
		params.Visibility = &v
	}

	viewer := viewerFrom(r)
	event, err := h.events.Update(r.Context(), viewer, id, params)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newEventResponse(event, viewer))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), viewerFrom(r), id); err != nil {
		problem.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List serves the general event search. Anonymous callers see public
// events only; the service narrows the scope further when visibility
// filters name private data.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query(), eventSortFields, defaultEventSort)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	filters, err := events.ParseFilters(r.URL.Query())
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	viewer := viewerFrom(r)
	result, err := h.events.List(r.Context(), viewer, filters, eventPage(page))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeEventPage(w, result, page, viewer)
}

func (h *EventsHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r.URL.Query(), eventSortFields, defaultEventSort)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	result, err := h.events.ListUpcoming(r.Context(), eventPage(page))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeEventPage(w, result, page, viewerFrom(r))
}

func (h *EventsHandler) MyHosted(w http.ResponseWriter, r *http.Request) {
	h.listForViewer(w, r, h.events.ListHosted)
}

func (h *EventsHandler) MyAttending(w http.ResponseWriter, r *http.Request) {
	h.listForViewer(w, r, h.events.ListAttending)
}

func (h *EventsHandler) MyEvents(w http.ResponseWriter, r *http.Request) {
	h.listForViewer(w, r, h.events.ListInvolving)
}

func (h *EventsHandler) listForViewer(w http.ResponseWriter, r *http.Request, list func(context.Context, string, events.Pagination) (events.ListResult, error)) {
	page, err := pagination.Parse(r.URL.Query(), eventSortFields, defaultEventSort)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	viewer := viewerFrom(r)
	result, err := list(r.Context(), viewer.UserID, eventPage(page))
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeEventPage(w, result, page, viewer)
}

func (h *EventsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.events.Status(r.Context(), viewerFrom(r), id)
	if err != nil {
		problem.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newEventStatusResponse(report))
}

func eventPage(req pagination.Request) events.Pagination {
	return events.Pagination{
		Offset: req.Offset(),
		Limit:  req.Size,
		Sort:   req.Sort.Field,
		Desc:   req.Sort.Desc,
	}
}

func writeEventPage(w http.ResponseWriter, result events.ListResult, req pagination.Request, viewer events.Viewer) {
	content := newEventResponses(result.Events, viewer)
	writeJSON(w, http.StatusOK, pagination.NewPage(content, req, result.Total))
}
