package attendance

import (
	"context"
	"fmt"

	"github.com/gatherline/server/internal/domain/events"
	"github.com/rs/zerolog"
)

// EventSource is the slice of the event store the service needs: a
// lookup that already excludes soft-deleted events.
type EventSource interface {
	GetByID(ctx context.Context, id string) (*events.Event, error)
}

type Service struct {
	repo   Repository
	events EventSource
}

func NewService(repo Repository, eventSource EventSource) *Service {
	return &Service{repo: repo, events: eventSource}
}

// Respond upserts the caller's RSVP. The event must exist and not be
// deleted; beyond that anything goes, a host can RSVP to their own
// event and visibility plays no part.
func (s *Service) Respond(ctx context.Context, userID, eventID string, status Status) (*Record, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	record, err := s.repo.Upsert(ctx, eventID, userID, status)
	if err != nil {
		return nil, fmt.Errorf("save attendance: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("status", string(status)).
		Msg("attendance recorded")
	return record, nil
}

func (s *Service) ListMine(ctx context.Context, userID string, page Pagination) (ListResult, error) {
	result, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list user attendances: %w", err)
	}
	return result, nil
}

// ListForEvent returns every RSVP on one event. The admin gate lives at
// the route; this layer only requires that the event is readable at all.
func (s *Service) ListForEvent(ctx context.Context, eventID string, page Pagination) (ListResult, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return ListResult{}, err
	}

	result, err := s.repo.ListByEvent(ctx, eventID, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list event attendances: %w", err)
	}
	return result, nil
}
