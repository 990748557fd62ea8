package db

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var Schema string

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

func (s *DB) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, Schema)
	return s.mapError(err)
}

func (s *DB) CreateEntry(ctx context.Context, in entity.AuditEntry) (err error) {
	ctx, span := s.startSpan(ctx, "CreateEntry")
	defer func() { s.endSpan(span, err) }()

	data := in.Data
	if data == nil {
		data = valueobject.JSONMap{}
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO audit_entries (id, user_id, factor_config_id, event, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.UserID, in.FactorConfigID, in.Event.String(), data, in.CreatedAt,
	)
	err = s.mapError(err)
	return err
}

func (s *DB) ListEntries(ctx context.Context, userID int64, limit, offset int32) (_ []entity.AuditEntry, err error) {
	ctx, span := s.startSpan(ctx, "ListEntries")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, factor_config_id, event, data, created_at
		FROM audit_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.AuditEntry, error) {
		var (
			e     entity.AuditEntry
			event string
		)
		err := row.Scan(&e.ID, &e.UserID, &e.FactorConfigID, &event, &e.Data, &e.CreatedAt)
		e.Event = entity.Event(event)
		return e, err
	})
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return items, nil
}

func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("audit.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
