package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gatherline/server/internal/api"
	"github.com/gatherline/server/internal/config"
	"github.com/gatherline/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

const testPassword = "orange-crane-42"

type testEnv struct {
	Context context.Context
	DBURL   string
	Pool    *pgxpool.Pool
	Server  *httptest.Server
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := tcpostgres.Run(
		ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gatherline"),
		tcpostgres.WithUsername("gatherline"),
		tcpostgres.WithPassword("gatherline_dev"),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrationsPath := filepath.Join(projectRoot(t), "internal", "storage", "postgres", "migrations")
	require.NoError(t, migrateWithRetry(dbURL, migrationsPath, 10*time.Second))

	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	router, err := api.NewRouter(testConfig(dbURL), testLogger(), pool, nil, api.BuildInfo{Version: "test", GitCommit: "none"})
	require.NoError(t, err)
	t.Cleanup(router.RateLimiter.Stop)

	server := httptest.NewServer(router.Handler)
	t.Cleanup(server.Close)

	return &testEnv{
		Context: ctx,
		DBURL:   dbURL,
		Pool:    pool,
		Server:  server,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		Server: config.ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		Database: config.DatabaseConfig{
			URL:            dbURL,
			MaxConnections: 5,
			MinConnections: 1,
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret-32-bytes-minimum----",
			JWTExpiry: time.Hour,
			Issuer:    "gatherline",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			PerMinute: 1000,
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "json",
		},
		Environment: "test",
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func migrateWithRetry(databaseURL string, migrationsPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := postgres.MigrateUp(databaseURL, migrationsPath); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}

// apiRequest performs one JSON request against the test server. The
// response body is closed when the test finishes.
func apiRequest(t *testing.T, env *testEnv, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.Server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type userPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginPayload struct {
	Token string      `json:"token"`
	Type  string      `json:"type"`
	User  userPayload `json:"user"`
}

type linkPayload struct {
	Href string `json:"href"`
}

type eventPayload struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Location      string                 `json:"location"`
	StartTime     time.Time              `json:"startTime"`
	EndTime       time.Time              `json:"endTime"`
	Visibility    string                 `json:"visibility"`
	Host          userPayload            `json:"host"`
	AttendeeCount int64                  `json:"attendeeCount"`
	CreatedAt     time.Time              `json:"createdAt"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	Links         map[string]linkPayload `json:"_links"`
}

type attendancePayload struct {
	Event       eventPayload `json:"event"`
	User        userPayload  `json:"user"`
	Status      string       `json:"status"`
	RespondedAt time.Time    `json:"respondedAt"`
}

type statusPayload struct {
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

type pageOf[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

type problemPayload struct {
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Path             string            `json:"path"`
	ValidationErrors map[string]string `json:"validationErrors"`
}

type account struct {
	ID    string
	Email string
	Token string
}

// signUp registers a user over the API and logs them in, so every test
// token went through the real issuing path.
func signUp(t *testing.T, env *testEnv, name, email, role string) account {
	t.Helper()

	resp := apiRequest(t, env, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     name,
		"email":    email,
		"password": testPassword,
		"role":     role,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "register %s", email)
	var registered userPayload
	decodeInto(t, resp, &registered)

	resp = apiRequest(t, env, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login %s", email)
	var login loginPayload
	decodeInto(t, resp, &login)
	require.NotEmpty(t, login.Token)

	return account{ID: registered.ID, Email: email, Token: login.Token}
}

func createEvent(t *testing.T, env *testEnv, token string, mutate func(map[string]any)) eventPayload {
	t.Helper()

	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	payload := map[string]any{
		"title":       "Dockside Market",
		"description": "Stalls along the pier",
		"location":    "Harbourfront Centre",
		"startTime":   start.Format(time.RFC3339),
		"endTime":     start.Add(4 * time.Hour).Format(time.RFC3339),
	}
	if mutate != nil {
		mutate(payload)
	}

	resp := apiRequest(t, env, http.MethodPost, "/api/events", token, payload)
	if resp.StatusCode != http.StatusCreated {
		var failure problemPayload
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		require.Failf(t, "create event failed", "status=%d message=%s fields=%v", resp.StatusCode, failure.Message, failure.ValidationErrors)
	}

	var created eventPayload
	decodeInto(t, resp, &created)
	return created
}

func respond(t *testing.T, env *testEnv, token, eventID, status string) attendancePayload {
	t.Helper()

	resp := apiRequest(t, env, http.MethodPost, "/api/attendances", token, map[string]any{
		"eventId": eventID,
		"status":  status,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec attendancePayload
	decodeInto(t, resp, &rec)
	return rec
}
