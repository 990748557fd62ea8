package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/otp"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

// challengeKeySlack keeps the hash alive past the newest challenge TTL.
const challengeKeySlack = time.Minute

type challengeRecord struct {
	ID                int64               `json:"id"`
	UserID            int64               `json:"user_id"`
	ChallengeKey      int64               `json:"challenge_key"`
	SessionID         string              `json:"session_id"`
	WorkflowKey       string              `json:"workflow_key"`
	TTLExpiresAt      time.Time           `json:"ttl_expires_at"`
	ResponseTokenHash string              `json:"response_token_hash,omitempty"`
	ResponseExpiresAt time.Time           `json:"response_expires_at"`
	Answered          bool                `json:"answered"`
	Reused            bool                `json:"reused"`
	Properties        valueobject.JSONMap `json:"properties"`
	CreatedAt         time.Time           `json:"created_at"`
}

func toRecord(c entity.Challenge) challengeRecord {
	return challengeRecord{
		ID:                c.ID,
		UserID:            c.UserID,
		ChallengeKey:      int64(c.ChallengeKey),
		SessionID:         c.SessionID,
		WorkflowKey:       c.WorkflowKey,
		TTLExpiresAt:      c.TTLExpiresAt,
		ResponseTokenHash: c.ResponseTokenHash,
		ResponseExpiresAt: c.ResponseExpiresAt,
		Answered:          c.Answered,
		Reused:            c.Reused,
		Properties:        c.Properties.Clone(),
		CreatedAt:         c.CreatedAt,
	}
}

func (r challengeRecord) toEntity(factorConfigID int64) entity.Challenge {
	return entity.Challenge{
		ID:                r.ID,
		FactorConfigID:    factorConfigID,
		UserID:            r.UserID,
		ChallengeKey:      otp.Timestep(r.ChallengeKey),
		SessionID:         r.SessionID,
		WorkflowKey:       r.WorkflowKey,
		TTLExpiresAt:      r.TTLExpiresAt,
		ResponseTokenHash: r.ResponseTokenHash,
		ResponseExpiresAt: r.ResponseExpiresAt,
		Answered:          r.Answered,
		Reused:            r.Reused,
		Properties:        r.Properties.Clone(),
		CreatedAt:         r.CreatedAt,
	}
}

// Atomic runs fn while holding the Redis lock for factorConfigID. Writes are
// applied as they happen; an error from fn does not undo them.
func (c *Cache) Atomic(ctx context.Context, factorConfigID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) (err error) {
	ctx, span := c.startSpan(ctx, "Atomic")
	defer func() { c.endSpan(span, err) }()

	err = c.locker.WithLock(ctx, "factor:"+strconv.FormatInt(factorConfigID, 10), func(ctx context.Context) error {
		return fn(ctx, ledgerTx{c: c})
	})
	return err
}

type ledgerTx struct {
	c *Cache
}

func (tx ledgerTx) all(ctx context.Context, factorConfigID int64) ([]entity.Challenge, error) {
	raw, err := tx.c.client.HGetAll(ctx, tx.c.challengesKey(factorConfigID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]entity.Challenge, 0, len(raw))
	for _, v := range raw {
		var rec challengeRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec.toEntity(factorConfigID))
	}
	return out, nil
}

func (tx ledgerTx) LiveChallenges(ctx context.Context, factorConfigID int64, now time.Time) (_ []entity.Challenge, err error) {
	ctx, span := tx.c.startSpan(ctx, "LiveChallenges")
	defer func() { tx.c.endSpan(span, err) }()

	all, err := tx.all(ctx, factorConfigID)
	if err != nil {
		return nil, err
	}

	live := lo.Filter(all, func(c entity.Challenge, _ int) bool { return c.IsLive(now) })
	slices.SortFunc(live, func(a, b entity.Challenge) int { return cmp.Compare(a.ID, b.ID) })
	return live, nil
}

func (tx ledgerTx) SaveChallenge(ctx context.Context, in entity.Challenge) (err error) {
	ctx, span := tx.c.startSpan(ctx, "SaveChallenge")
	defer func() { tx.c.endSpan(span, err) }()

	all, err := tx.all(ctx, in.FactorConfigID)
	if err != nil {
		return err
	}

	// expired challenges are never read again
	stale := lo.FilterMap(all, func(c entity.Challenge, _ int) (string, bool) {
		return strconv.FormatInt(c.ID, 10), !c.IsLive(in.CreatedAt)
	})

	body, err := json.Marshal(toRecord(in))
	if err != nil {
		return err
	}

	key := tx.c.challengesKey(in.FactorConfigID)
	pipe := tx.c.client.TxPipeline()
	if len(stale) > 0 {
		pipe.HDel(ctx, key, stale...)
	}
	pipe.HSet(ctx, key, strconv.FormatInt(in.ID, 10), body)
	pipe.Expire(ctx, key, in.TTLExpiresAt.Sub(in.CreatedAt)+challengeKeySlack)
	_, err = pipe.Exec(ctx)
	return err
}

func (tx ledgerTx) UpdateChallenge(ctx context.Context, in entity.Challenge) (err error) {
	ctx, span := tx.c.startSpan(ctx, "UpdateChallenge")
	defer func() { tx.c.endSpan(span, err) }()

	key := tx.c.challengesKey(in.FactorConfigID)
	field := strconv.FormatInt(in.ID, 10)

	ok, err := tx.c.client.HExists(ctx, key, field).Result()
	if err != nil {
		return err
	}
	if !ok {
		err = goerror.ErrNotFound
		return err
	}

	body, err := json.Marshal(toRecord(in))
	if err != nil {
		return err
	}

	err = tx.c.client.HSet(ctx, key, field, body).Err()
	return err
}
