package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/store"
	"github.com/aussiebroadwan/calendar/pkg/idx"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const maxTitleLength = 200

var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated caller of an event operation.
type Actor struct {
	UserID string
	Role   domain.Role
}

func (a Actor) canModify(e domain.Event) bool {
	return a.Role == domain.RoleAdmin || a.UserID == e.OwnerID
}

// EventInput is the writable part of an event. An empty OwnerID means the
// caller and an empty Status means DRAFT.
type EventInput struct {
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	OwnerID     string
	Status      domain.EventStatus
}

type EventService struct {
	Store store.Store
}

func (s *EventService) List(ctx context.Context) ([]domain.Event, error) {
	return s.Store.Events().ListEvents(ctx)
}

func (s *EventService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Event, error) {
	return s.Store.Events().ListEventsByOwner(ctx, ownerID)
}

func (s *EventService) Get(ctx context.Context, id string) (domain.Event, error) {
	e, err := s.Store.Events().GetEventByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Event{}, ErrNotFound
	}
	return e, err
}

func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (domain.Event, error) {
	in = s.defaults(actor, in)
	if err := s.validate(ctx, actor, in); err != nil {
		return domain.Event{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	e := domain.Event{
		ID:          idx.NewAt(now).String(),
		Title:       in.Title,
		Description: in.Description,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		OwnerID:     in.OwnerID,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.Events().CreateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}

	slogx.FromContext(ctx).Info("event created", slog.String("event_id", e.ID), slog.String("owner_id", e.OwnerID))
	return e, nil
}

func (s *EventService) Update(ctx context.Context, actor Actor, id string, in EventInput) (domain.Event, error) {
	var updated domain.Event
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Events().GetEventByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !actor.canModify(current) {
			return ErrForbidden
		}

		if in.OwnerID == "" {
			in.OwnerID = current.OwnerID
		}
		in = s.defaults(actor, in)
		if err := s.validateWith(ctx, tx, actor, in); err != nil {
			return err
		}

		updated = current
		updated.Title = in.Title
		updated.Description = in.Description
		updated.StartTime = in.StartTime.UTC()
		updated.EndTime = in.EndTime.UTC()
		updated.OwnerID = in.OwnerID
		updated.Status = in.Status
		updated.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
		return tx.Events().UpdateEvent(ctx, updated)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return updated, nil
}

func (s *EventService) Delete(ctx context.Context, actor Actor, id string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Events().GetEventByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !actor.canModify(current) {
			return ErrForbidden
		}
		return tx.Events().DeleteEvent(ctx, id)
	})
}

func (s *EventService) defaults(actor Actor, in EventInput) EventInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.OwnerID == "" {
		in.OwnerID = actor.UserID
	}
	if in.Status == "" {
		in.Status = domain.EventDraft
	}
	return in
}

func (s *EventService) validate(ctx context.Context, actor Actor, in EventInput) error {
	return s.validateWith(ctx, s.Store, actor, in)
}

func (s *EventService) validateWith(ctx context.Context, st store.Store, actor Actor, in EventInput) error {
	v := validator{}
	v.check(in.Title != "", "title", "is required")
	v.check(len(in.Title) <= maxTitleLength, "title", "is too long")
	v.check(!in.StartTime.IsZero(), "startTime", "is required")
	v.check(!in.EndTime.IsZero(), "endTime", "is required")
	v.check(in.EndTime.After(in.StartTime), "endTime", "must be after startTime")
	v.check(in.Status.Valid(), "status", "must be DRAFT, PUBLISHED or CANCELLED")
	v.check(actor.Role == domain.RoleAdmin || in.OwnerID == actor.UserID, "ownerId", "must be the caller")

	if _, ok := v["ownerId"]; !ok {
		_, err := st.Users().GetUserByID(ctx, in.OwnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		v.check(err == nil, "ownerId", "unknown user")
	}
	return v.err()
}
