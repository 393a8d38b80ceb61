package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

// EventRepo журнал событий. Файрвол читает только эту таблицу.
type EventRepo struct {
	q Querier
}

func NewEventRepo(q Querier) *EventRepo {
	return &EventRepo{q: q}
}

func (r *EventRepo) Record(ctx context.Context, in domain.EventInput) (*domain.Event, error) {
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO events (type, originator_user_id, originator_ip, metadata)
		VALUES ($1, $2, NULLIF($3::text, '')::inet, $4::jsonb)
		RETURNING id, created_at`

	ev := &domain.Event{
		Type:             in.Type,
		OriginatorUserID: in.Origin.UserID,
		OriginatorIP:     in.Origin.IP,
		Metadata:         meta,
	}
	err = r.q.QueryRowContext(ctx, query, string(in.Type), in.Origin.UserID, in.Origin.IP, string(raw)).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return nil, wrap("record event", err)
	}
	return ev, nil
}

// buildEventFilter собирает WHERE для скользящего окна. Ключи метаданных сортируются,
// чтобы порядок параметров был стабильным.
func buildEventFilter(q domain.EventQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Type != "" {
		conds = append(conds, "type = "+next(string(q.Type)))
	}
	if q.OriginatorIP != "" {
		conds = append(conds, "originator_ip = "+next(q.OriginatorIP)+"::inet")
	}
	if q.Window > 0 {
		conds = append(conds, "created_at > now() - make_interval(secs => "+next(q.Window.Seconds())+")")
	}

	keys := make([]string, 0, len(q.Metadata))
	for k := range q.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		conds = append(conds, "metadata->>"+next(k)+" = "+next(q.Metadata[k]))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *EventRepo) Count(ctx context.Context, q domain.EventQuery) (int, error) {
	where, args := buildEventFilter(q)
	query := `SELECT count(*) FROM events` + where

	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, wrap("count events", err)
	}
	return n, nil
}

const eventColumns = `id, type, originator_user_id, COALESCE(host(originator_ip), ''), metadata, created_at`

func scanEvent(s rowScanner) (*domain.Event, error) {
	ev := &domain.Event{}
	var (
		typ string
		raw []byte
	)
	if err := s.Scan(&ev.ID, &typ, &ev.OriginatorUserID, &ev.OriginatorIP, &raw, &ev.CreatedAt); err != nil {
		return nil, err
	}
	ev.Type = domain.EventType(typ)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", ev.ID, err)
		}
	}
	return ev, nil
}

// List возвращает события окна в порядке created_at (или от новых к старым).
func (r *EventRepo) List(ctx context.Context, q domain.EventQuery) ([]domain.Event, error) {
	where, args := buildEventFilter(q)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY created_at`
	if q.NewestFirst {
		query += ` DESC`
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("scan event", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list events", err)
	}
	return events, nil
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	ev, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "event", ID: id.String()}
		}
		return nil, wrap("get event", err)
	}
	return ev, nil
}

// BackfillMetadata единственное допустимое изменение события: дописать id созданной
// сущности в той же транзакции, где событие записано.
func (r *EventRepo) BackfillMetadata(ctx context.Context, eventID uuid.UUID, key, value string) error {
	query := `UPDATE events SET metadata = metadata || jsonb_build_object($2::text, $3::text) WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, eventID, key, value)
	if err != nil {
		return wrap("backfill event metadata", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Resource: "event", ID: eventID.String()}
	}
	return nil
}
