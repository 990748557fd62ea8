package db

import (
	"context"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
)

func (s *DB) FindEnrollmentToken(ctx context.Context, resourceID int64, tokenType, codeHash string, now time.Time) (_ *entity.EnrollmentToken, err error) {
	ctx, span := s.startSpan(ctx, "FindEnrollmentToken")
	defer func() { s.endSpan(span, err) }()

	var tok entity.EnrollmentToken
	err = s.conn.QueryRow(ctx, `
		SELECT id, resource_id, token_type, code_hash, expires_at, created_at
		FROM factor_enrollment_tokens
		WHERE resource_id = $1 AND token_type = $2 AND code_hash = $3 AND expires_at > $4
		LIMIT 1`,
		resourceID, tokenType, codeHash, now,
	).Scan(&tok.ID, &tok.ResourceID, &tok.TokenType, &tok.CodeHash, &tok.ExpiresAt, &tok.CreatedAt)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return &tok, nil
}

func (s *DB) SaveEnrollmentToken(ctx context.Context, in entity.EnrollmentToken) (err error) {
	ctx, span := s.startSpan(ctx, "SaveEnrollmentToken")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO factor_enrollment_tokens (id, resource_id, token_type, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.ResourceID, in.TokenType, in.CodeHash, in.ExpiresAt, in.CreatedAt,
	)
	err = s.mapError(err)
	return err
}

func (s *DB) DeleteEnrollmentTokens(ctx context.Context, resourceID int64, tokenType string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteEnrollmentTokens")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		DELETE FROM factor_enrollment_tokens
		WHERE resource_id = $1 AND token_type = $2`,
		resourceID, tokenType,
	)
	err = s.mapError(err)
	return err
}
