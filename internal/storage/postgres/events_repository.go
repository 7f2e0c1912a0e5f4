package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatherline/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
)

var _ events.Repository = (*EventRepository)(nil)

// eventColumns is every SELECT list over events: the row, the joined
// host, and the GOING count.
const eventColumns = `e.id, e.title, e.description, e.location, e.start_time, e.end_time,
       e.visibility, e.host_id, e.deleted, e.created_at, e.updated_at,
       u.name, u.email, u.role, u.created_at,
       (SELECT COUNT(*) FROM attendances a WHERE a.event_id = e.id AND a.status = 'GOING')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (events.Event, error) {
	var (
		event      events.Event
		visibility string
		host       events.Host
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.StartTime,
		&event.EndTime,
		&visibility,
		&event.HostID,
		&event.Deleted,
		&event.CreatedAt,
		&event.UpdatedAt,
		&host.Name,
		&host.Email,
		&host.Role,
		&host.CreatedAt,
		&event.AttendeeCount,
	)
	if err != nil {
		return events.Event{}, err
	}
	event.Visibility = events.Visibility(visibility)
	host.ID = event.HostID
	event.Host = host
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, params events.CreateParams) (*events.Event, error) {
	var id string
	err := r.queryer().QueryRow(ctx, `
INSERT INTO events (title, description, location, start_time, end_time, visibility, host_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		params.Title,
		params.Description,
		params.Location,
		params.StartTime,
		params.EndTime,
		string(params.Visibility),
		params.HostID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+eventColumns+`
  FROM events e
  JOIN users u ON u.id = e.host_id
 WHERE e.id = $1 AND e.deleted = FALSE`, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) Update(ctx context.Context, event *events.Event) error {
	err := r.queryer().QueryRow(ctx, `
UPDATE events
   SET title = $2, description = $3, location = $4, start_time = $5,
       end_time = $6, visibility = $7, updated_at = now()
 WHERE id = $1 AND deleted = FALSE
RETURNING updated_at`,
		event.ID,
		event.Title,
		event.Description,
		event.Location,
		event.StartTime,
		event.EndTime,
		string(event.Visibility),
	).Scan(&event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return events.ErrNotFound
		}
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

func (r *EventRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET deleted = TRUE, updated_at = now()
 WHERE id = $1 AND deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

// List renders the access scope and filters into one WHERE clause. The
// soft-delete condition is composed here unconditionally; no caller can
// drop it.
func (r *EventRepository) List(ctx context.Context, scope events.AccessScope, filters events.Filters, page events.Pagination) (events.ListResult, error) {
	args := []any{}
	conds := []string{"e.deleted = FALSE", scopeCondition(scope, &args)}

	if filters.Location != "" {
		args = append(args, escapeLike(filters.Location))
		conds = append(conds, fmt.Sprintf("e.location ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		conds = append(conds, fmt.Sprintf("e.start_time >= $%d", len(args)))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		conds = append(conds, fmt.Sprintf("e.end_time <= $%d", len(args)))
	}

	return r.listEvents(ctx, strings.Join(conds, " AND "), args, page)
}

func (r *EventRepository) ListUpcoming(ctx context.Context, from time.Time, page events.Pagination) (events.ListResult, error) {
	where := "e.deleted = FALSE AND e.visibility = 'PUBLIC' AND e.start_time >= $1"
	return r.listEvents(ctx, where, []any{from}, page)
}

func (r *EventRepository) ListHostedBy(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	where := "e.deleted = FALSE AND e.host_id = $1"
	return r.listEvents(ctx, where, []any{userID}, page)
}

func (r *EventRepository) ListAttendedBy(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	where := `e.deleted = FALSE AND EXISTS (
		SELECT 1 FROM attendances a WHERE a.event_id = e.id AND a.user_id = $1)`
	return r.listEvents(ctx, where, []any{userID}, page)
}

func (r *EventRepository) ListInvolving(ctx context.Context, userID string, page events.Pagination) (events.ListResult, error) {
	where := `e.deleted = FALSE AND (e.host_id = $1 OR EXISTS (
		SELECT 1 FROM attendances a WHERE a.event_id = e.id AND a.user_id = $1))`
	return r.listEvents(ctx, where, []any{userID}, page)
}

// scopeCondition translates the visibility scope to SQL. It must agree
// with AccessScope.Matches; the integration tests check both against
// the same fixtures. Unknown kinds deny everything.
func scopeCondition(scope events.AccessScope, args *[]any) string {
	switch scope.Kind {
	case events.ScopeAll:
		return "TRUE"
	case events.ScopePublicOnly:
		return "e.visibility = 'PUBLIC'"
	case events.ScopeExact:
		*args = append(*args, string(scope.Visibility))
		return fmt.Sprintf("e.visibility = $%d", len(*args))
	case events.ScopeOwnPrivate:
		*args = append(*args, scope.ViewerID)
		return fmt.Sprintf("(e.visibility = 'PRIVATE' AND e.host_id = $%d)", len(*args))
	case events.ScopePublicOrOwnPrivate:
		*args = append(*args, scope.ViewerID)
		return fmt.Sprintf("(e.visibility = 'PUBLIC' OR (e.visibility = 'PRIVATE' AND e.host_id = $%d))", len(*args))
	default:
		return "FALSE"
	}
}

var eventSortColumns = map[string]string{
	"startTime": "e.start_time",
	"endTime":   "e.end_time",
	"title":     "e.title",
	"createdAt": "e.created_at",
}

func eventOrderClause(page events.Pagination) string {
	column, ok := eventSortColumns[page.Sort]
	if !ok {
		column = "e.start_time"
	}
	direction := "ASC"
	if page.Desc {
		direction = "DESC"
	}
	// e.id breaks ties so pages never overlap under equal sort keys
	return fmt.Sprintf("%s %s, e.id ASC", column, direction)
}

func (r *EventRepository) listEvents(ctx context.Context, where string, args []any, page events.Pagination) (events.ListResult, error) {
	queryer := r.queryer()

	var total int64
	if err := queryer.QueryRow(ctx, "SELECT COUNT(*) FROM events e WHERE "+where, args...).Scan(&total); err != nil {
		return events.ListResult{}, fmt.Errorf("count events: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, page.Offset)
	query := fmt.Sprintf(`
SELECT %s
  FROM events e
  JOIN users u ON u.id = e.host_id
 WHERE %s
 ORDER BY %s
 LIMIT $%d OFFSET $%d`, eventColumns, where, eventOrderClause(page), len(args)-1, len(args))

	rows, err := queryer.Query(ctx, query, args...)
	if err != nil {
		return events.ListResult{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, event)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, fmt.Errorf("iterate events: %w", err)
	}

	return events.ListResult{Events: items, Total: total}, nil
}

func (r *EventRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
