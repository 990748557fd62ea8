package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
)

const factorConfigColumns = `id, user_id, kind, name, secret_ciphertext, key_version, created_at`

func (s *DB) CreateFactorConfig(ctx context.Context, in entity.FactorConfig) (err error) {
	ctx, span := s.startSpan(ctx, "CreateFactorConfig")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO factor_configs (`+factorConfigColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.UserID, string(in.Kind), in.Name, in.SecretCiphertext, in.KeyVersion, in.CreatedAt,
	)
	err = s.mapError(err)
	return err
}

func (s *DB) GetFactorConfig(ctx context.Context, id, userID int64) (_ *entity.FactorConfig, err error) {
	ctx, span := s.startSpan(ctx, "GetFactorConfig")
	defer func() { s.endSpan(span, err) }()

	row := s.conn.QueryRow(ctx, `
		SELECT `+factorConfigColumns+`
		FROM factor_configs
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	cfg, err := scanFactorConfig(row)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return &cfg, nil
}

func (s *DB) ListFactorConfigs(ctx context.Context, userID int64) (_ []entity.FactorConfig, err error) {
	ctx, span := s.startSpan(ctx, "ListFactorConfigs")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT `+factorConfigColumns+`
		FROM factor_configs
		WHERE user_id = $1
		ORDER BY id`,
		userID,
	)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.FactorConfig, error) {
		return scanFactorConfig(row)
	})
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return out, nil
}

func scanFactorConfig(row pgx.Row) (entity.FactorConfig, error) {
	var (
		cfg  entity.FactorConfig
		kind string
	)
	err := row.Scan(&cfg.ID, &cfg.UserID, &kind, &cfg.Name, &cfg.SecretCiphertext, &cfg.KeyVersion, &cfg.CreatedAt)
	cfg.Kind = entity.FactorKind(kind)
	return cfg, err
}
