package sqlite

import (
	"context"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
)

const eventColumns = `id, title, description, start_time, end_time, owner_id, status, created_at, updated_at`

type eventsRepo struct {
	db dbtx
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var (
		e                            domain.Event
		status                       string
		start, end, created, updated int64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.OwnerID, &status, &created, &updated); err != nil {
		return domain.Event{}, err
	}
	e.StartTime = fromMillis(start)
	e.EndTime = fromMillis(end)
	e.Status = domain.EventStatus(status)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func (r *eventsRepo) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, toMillis(e.StartTime), toMillis(e.EndTime),
		e.OwnerID, string(e.Status), toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *eventsRepo) GetEventByID(ctx context.Context, id string) (domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return domain.Event{}, mapNotFound(err)
	}
	return e, nil
}

func (r *eventsRepo) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_time, id`)
}

func (r *eventsRepo) ListEventsByOwner(ctx context.Context, ownerID string) ([]domain.Event, error) {
	return r.list(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = ? ORDER BY start_time, id`, ownerID)
}

func (r *eventsRepo) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventsRepo) UpdateEvent(ctx context.Context, e domain.Event) error {
	return requireAffected(r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, start_time = ?, end_time = ?, owner_id = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, e.Description, toMillis(e.StartTime), toMillis(e.EndTime),
		e.OwnerID, string(e.Status), toMillis(e.UpdatedAt), e.ID,
	))
}

func (r *eventsRepo) DeleteEvent(ctx context.Context, id string) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id))
}
