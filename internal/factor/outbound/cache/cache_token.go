package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
)

type tokenRecord struct {
	ID        int64     `json:"id"`
	CodeHash  string    `json:"code_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// FindEnrollmentToken looks the token up by its digest inside the hash of
// resourceID and tokenType.
func (c *Cache) FindEnrollmentToken(ctx context.Context, resourceID int64, tokenType, codeHash string, now time.Time) (_ *entity.EnrollmentToken, err error) {
	ctx, span := c.startSpan(ctx, "FindEnrollmentToken")
	defer func() { c.endSpan(span, err) }()

	raw, err := c.client.HGet(ctx, c.tokensKey(resourceID, tokenType), codeHash).Bytes()
	if err != nil {
		err = c.mapError(err)
		return nil, err
	}

	var rec tokenRecord
	if err = json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	tok := entity.EnrollmentToken{
		ID:         rec.ID,
		ResourceID: resourceID,
		TokenType:  tokenType,
		CodeHash:   rec.CodeHash,
		ExpiresAt:  rec.ExpiresAt,
		CreatedAt:  rec.CreatedAt,
	}
	if tok.IsExpired(now) {
		err = goerror.ErrNotFound
		return nil, err
	}
	return &tok, nil
}

// SaveEnrollmentToken stores in and pushes the hash expiry out to cover it.
func (c *Cache) SaveEnrollmentToken(ctx context.Context, in entity.EnrollmentToken) (err error) {
	ctx, span := c.startSpan(ctx, "SaveEnrollmentToken")
	defer func() { c.endSpan(span, err) }()

	body, err := json.Marshal(tokenRecord{
		ID:        in.ID,
		CodeHash:  in.CodeHash,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: in.CreatedAt,
	})
	if err != nil {
		return err
	}

	key := c.tokensKey(in.ResourceID, in.TokenType)
	ttl := max(in.ExpiresAt.Sub(in.CreatedAt), time.Second)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, in.CodeHash, body)
	pipe.ExpireGT(ctx, key, ttl)
	pipe.ExpireNX(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *Cache) DeleteEnrollmentTokens(ctx context.Context, resourceID int64, tokenType string) (err error) {
	ctx, span := c.startSpan(ctx, "DeleteEnrollmentTokens")
	defer func() { c.endSpan(span, err) }()

	err = c.client.Del(ctx, c.tokensKey(resourceID, tokenType)).Err()
	return err
}
