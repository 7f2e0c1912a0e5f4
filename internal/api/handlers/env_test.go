package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/auth"
	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/users"
)

// testEnv wires the handlers over in-memory stores, with the real
// authentication middleware in front so viewer resolution is exercised
// the same way it is in production.
type testEnv struct {
	store  *memStore
	tokens *auth.JWTManager

	usersSvc  *users.Service
	eventsSvc *events.Service
	attendSvc *attendance.Service

	auth        *AuthHandler
	events      *EventsHandler
	attendances *AttendancesHandler
}

func newTestEnv() *testEnv {
	store := newMemStore()
	tokens := auth.NewJWTManager("handlers-test-secret-0123456789abcd", time.Hour, "gatherline")

	usersSvc := users.NewService(store, zerolog.Nop())
	eventsSvc := events.NewService(eventStore{store}, attendanceStore{store}, nil)
	attendSvc := attendance.NewService(attendanceStore{store}, eventStore{store})

	return &testEnv{
		store:       store,
		tokens:      tokens,
		usersSvc:    usersSvc,
		eventsSvc:   eventsSvc,
		attendSvc:   attendSvc,
		auth:        NewAuthHandler(usersSvc, tokens),
		events:      NewEventsHandler(eventsSvc),
		attendances: NewAttendancesHandler(attendSvc),
	}
}

func (e *testEnv) do(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.Authenticate(e.tokens)(handler).ServeHTTP(rec, req)
	return rec
}

// seedUser writes a user straight to the store, skipping the bcrypt
// work that registration tests cover on their own.
func (e *testEnv) seedUser(t *testing.T, name, email, role string) *users.User {
	t.Helper()
	user, err := e.store.Create(context.Background(), users.CreateParams{
		Name: name, Email: email, PasswordHash: "not-a-real-hash", Role: role,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) seedEvent(t *testing.T, hostID string, mutate func(*events.CreateParams)) *events.Event {
	t.Helper()
	params := events.CreateParams{
		Title:       "Team offsite",
		Description: "Planning day",
		Location:    "Harbour House",
		StartTime:   time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second),
		EndTime:     time.Now().Add(52 * time.Hour).UTC().Truncate(time.Second),
		Visibility:  events.VisibilityPublic,
	}
	if mutate != nil {
		mutate(&params)
	}
	event, err := e.eventsSvc.Create(context.Background(), hostID, params)
	require.NoError(t, err)
	return event
}

func (e *testEnv) authorize(t *testing.T, req *http.Request, user *users.User) {
	t.Helper()
	token, err := e.tokens.Generate(user.ID, user.Role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// errorBody mirrors the problem response shape.
type errorBody struct {
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Path             string            `json:"path"`
	ValidationErrors map[string]string `json:"validationErrors"`
}
