package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

const challengeColumns = `id, factor_config_id, user_id, challenge_key, session_id, workflow_key,
	ttl_expires_at, response_token_hash, response_expires_at, answered, reused, properties, created_at`

// Atomic runs fn inside one transaction holding pg_advisory_xact_lock on
// factorConfigID. The lock is released on commit or rollback.
func (s *DB) Atomic(ctx context.Context, factorConfigID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) (err error) {
	ctx, span := s.startSpan(ctx, "Atomic")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, rbErr)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, factorConfigID); err != nil {
		err = s.mapError(err)
		return err
	}

	if err = fn(ctx, &ledgerTx{db: s, tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		err = s.mapError(err)
		return err
	}

	return nil
}

type ledgerTx struct {
	db *DB
	tx pgx.Tx
}

func (l *ledgerTx) LiveChallenges(ctx context.Context, factorConfigID int64, now time.Time) (_ []entity.Challenge, err error) {
	ctx, span := l.db.startSpan(ctx, "LiveChallenges")
	defer func() { l.db.endSpan(span, err) }()

	rows, err := l.tx.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM factor_challenges
		WHERE factor_config_id = $1 AND ttl_expires_at > $2
		ORDER BY id`,
		factorConfigID, now,
	)
	if err != nil {
		err = l.db.mapError(err)
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Challenge, error) {
		return scanChallenge(row)
	})
	if err != nil {
		err = l.db.mapError(err)
		return nil, err
	}
	return out, nil
}

func (l *ledgerTx) SaveChallenge(ctx context.Context, in entity.Challenge) (err error) {
	ctx, span := l.db.startSpan(ctx, "SaveChallenge")
	defer func() { l.db.endSpan(span, err) }()

	// expired challenges are never read again
	if _, err = l.tx.Exec(ctx, `
		DELETE FROM factor_challenges
		WHERE factor_config_id = $1 AND ttl_expires_at <= $2`,
		in.FactorConfigID, in.CreatedAt,
	); err != nil {
		err = l.db.mapError(err)
		return err
	}

	_, err = l.tx.Exec(ctx, `
		INSERT INTO factor_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		in.ID, in.FactorConfigID, in.UserID, int64(in.ChallengeKey), in.SessionID, in.WorkflowKey,
		in.TTLExpiresAt, in.ResponseTokenHash, nullTime(in.ResponseExpiresAt), in.Answered, in.Reused,
		properties(in.Properties), in.CreatedAt,
	)
	err = l.db.mapError(err)
	return err
}

func (l *ledgerTx) UpdateChallenge(ctx context.Context, in entity.Challenge) (err error) {
	ctx, span := l.db.startSpan(ctx, "UpdateChallenge")
	defer func() { l.db.endSpan(span, err) }()

	tag, err := l.tx.Exec(ctx, `
		UPDATE factor_challenges
		SET response_token_hash = $2,
			response_expires_at = $3,
			answered = $4,
			reused = $5,
			properties = $6
		WHERE id = $1`,
		in.ID, in.ResponseTokenHash, nullTime(in.ResponseExpiresAt), in.Answered, in.Reused, properties(in.Properties),
	)
	if err != nil {
		err = l.db.mapError(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		err = goerror.ErrNotFound
		return err
	}
	return nil
}

func scanChallenge(row pgx.Row) (entity.Challenge, error) {
	var (
		c         entity.Challenge
		key       int64
		respUntil *time.Time
	)
	err := row.Scan(&c.ID, &c.FactorConfigID, &c.UserID, &key, &c.SessionID, &c.WorkflowKey,
		&c.TTLExpiresAt, &c.ResponseTokenHash, &respUntil, &c.Answered, &c.Reused, &c.Properties, &c.CreatedAt)
	if err != nil {
		return entity.Challenge{}, err
	}

	c.ChallengeKey = otp.Timestep(key)
	if respUntil != nil {
		c.ResponseExpiresAt = *respUntil
	}
	return c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func properties(p valueobject.JSONMap) valueobject.JSONMap {
	if p == nil {
		return valueobject.JSONMap{}
	}
	return p
}
