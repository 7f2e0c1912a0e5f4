package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/jackc/pgx/v5"
)

var (
	_ attendance.Repository   = (*AttendanceRepository)(nil)
	_ events.AttendanceSource = (*AttendanceRepository)(nil)
)

const recordColumns = `a.status, a.responded_at,
       ` + eventColumns + `,
       ru.id, ru.name, ru.email, ru.role, ru.created_at`

const recordJoins = `
  FROM attendances a
  JOIN events e ON e.id = a.event_id
  JOIN users u ON u.id = e.host_id
  JOIN users ru ON ru.id = a.user_id`

func scanRecord(row rowScanner) (attendance.Record, error) {
	var (
		rec        attendance.Record
		status     string
		visibility string
	)
	err := row.Scan(
		&status,
		&rec.RespondedAt,
		&rec.Event.ID,
		&rec.Event.Title,
		&rec.Event.Description,
		&rec.Event.Location,
		&rec.Event.StartTime,
		&rec.Event.EndTime,
		&visibility,
		&rec.Event.HostID,
		&rec.Event.Deleted,
		&rec.Event.CreatedAt,
		&rec.Event.UpdatedAt,
		&rec.Event.Host.Name,
		&rec.Event.Host.Email,
		&rec.Event.Host.Role,
		&rec.Event.Host.CreatedAt,
		&rec.Event.AttendeeCount,
		&rec.User.ID,
		&rec.User.Name,
		&rec.User.Email,
		&rec.User.Role,
		&rec.User.CreatedAt,
	)
	if err != nil {
		return attendance.Record{}, err
	}
	rec.Status = attendance.Status(status)
	rec.Event.Visibility = events.Visibility(visibility)
	rec.Event.Host.ID = rec.Event.HostID
	rec.EventID = rec.Event.ID
	rec.UserID = rec.User.ID
	return rec, nil
}

// Upsert inserts or replaces the response for (event, user). The
// conflict branch leaves responded_at alone so the column keeps the
// first response time across changes of mind.
func (r *AttendanceRepository) Upsert(ctx context.Context, eventID, userID string, status attendance.Status) (*attendance.Record, error) {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO attendances (event_id, user_id, status)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, user_id) DO UPDATE SET status = EXCLUDED.status`,
		eventID, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return r.getRecord(ctx, eventID, userID)
}

func (r *AttendanceRepository) getRecord(ctx context.Context, eventID, userID string) (*attendance.Record, error) {
	row := r.queryer().QueryRow(ctx, `
SELECT `+recordColumns+recordJoins+`
 WHERE a.event_id = $1 AND a.user_id = $2`, eventID, userID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, attendance.ErrNotFound
		}
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	return &rec, nil
}

func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string, page attendance.Pagination) (attendance.ListResult, error) {
	where := "a.user_id = $1 AND e.deleted = FALSE"
	return r.listRecords(ctx, where, []any{userID}, page)
}

func (r *AttendanceRepository) ListByEvent(ctx context.Context, eventID string, page attendance.Pagination) (attendance.ListResult, error) {
	where := "a.event_id = $1 AND e.deleted = FALSE"
	return r.listRecords(ctx, where, []any{eventID}, page)
}

func (r *AttendanceRepository) CountsForEvent(ctx context.Context, eventID string) (events.AttendanceCounts, error) {
	var counts events.AttendanceCounts
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE status = 'GOING'),
       COUNT(*) FILTER (WHERE status = 'MAYBE'),
       COUNT(*) FILTER (WHERE status = 'DECLINED')
  FROM attendances
 WHERE event_id = $1`, eventID).Scan(&counts.Going, &counts.Maybe, &counts.Declined)
	if err != nil {
		return events.AttendanceCounts{}, fmt.Errorf("count attendances: %w", err)
	}
	return counts, nil
}

// StatusForUser returns the viewer's response for the event, or the
// empty string when they have not responded.
func (r *AttendanceRepository) StatusForUser(ctx context.Context, eventID, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}
	var status string
	err := r.queryer().QueryRow(ctx,
		`SELECT status FROM attendances WHERE event_id = $1 AND user_id = $2`,
		eventID, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get attendance status: %w", err)
	}
	return status, nil
}

var attendanceSortColumns = map[string]string{
	"respondedAt": "a.responded_at",
	"status":      "a.status",
}

func attendanceOrderClause(page attendance.Pagination) string {
	if column, ok := attendanceSortColumns[page.Sort]; ok {
		direction := "ASC"
		if page.Desc {
			direction = "DESC"
		}
		return fmt.Sprintf("%s %s, a.event_id ASC, a.user_id ASC", column, direction)
	}
	return "a.responded_at ASC, a.event_id ASC, a.user_id ASC"
}

func (r *AttendanceRepository) listRecords(ctx context.Context, where string, args []any, page attendance.Pagination) (attendance.ListResult, error) {
	queryer := r.queryer()

	var total int64
	countSQL := `SELECT COUNT(*) FROM attendances a JOIN events e ON e.id = a.event_id WHERE ` + where
	if err := queryer.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return attendance.ListResult{}, fmt.Errorf("count attendances: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, page.Offset)
	query := fmt.Sprintf(`
SELECT %s%s
 WHERE %s
 ORDER BY %s
 LIMIT $%d OFFSET $%d`, recordColumns, recordJoins, where, attendanceOrderClause(page), len(args)-1, len(args))

	rows, err := queryer.Query(ctx, query, args...)
	if err != nil {
		return attendance.ListResult{}, fmt.Errorf("list attendances: %w", err)
	}
	defer rows.Close()

	items := make([]attendance.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return attendance.ListResult{}, fmt.Errorf("scan attendance: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return attendance.ListResult{}, fmt.Errorf("iterate attendances: %w", err)
	}

	return attendance.ListResult{Attendances: items, Total: total}, nil
}

func (r *AttendanceRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
