// Package memory is a process-local factor store for single-node
// deployments and tests. Nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/lock"
	"go.uber.org/atomic"
)

// Stats counts ledger writes.
type Stats struct {
	ChallengesSaved   int64
	ChallengesUpdated int64
}

type Store struct {
	mu         sync.RWMutex
	configs    map[int64]entity.FactorConfig
	tokens     map[int64]entity.EnrollmentToken
	challenges map[int64][]entity.Challenge

	locker  *lock.Local
	saved   *atomic.Int64
	updated *atomic.Int64
}

func New() *Store {
	return &Store{
		configs:    make(map[int64]entity.FactorConfig),
		tokens:     make(map[int64]entity.EnrollmentToken),
		challenges: make(map[int64][]entity.Challenge),
		locker:     lock.NewLocal(),
		saved:      atomic.NewInt64(0),
		updated:    atomic.NewInt64(0),
	}
}

// Stats returns a snapshot of the write counters.
func (s *Store) Stats() Stats {
	return Stats{ChallengesSaved: s.saved.Load(), ChallengesUpdated: s.updated.Load()}
}

func (s *Store) CreateFactorConfig(_ context.Context, in entity.FactorConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[in.ID]; ok {
		return goerror.ErrConflict
	}
	in.SecretCiphertext = slices.Clone(in.SecretCiphertext)
	s.configs[in.ID] = in
	return nil
}

func (s *Store) GetFactorConfig(_ context.Context, id, userID int64) (*entity.FactorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[id]
	if !ok || cfg.UserID != userID {
		return nil, goerror.ErrNotFound
	}
	cfg.SecretCiphertext = slices.Clone(cfg.SecretCiphertext)
	return &cfg, nil
}

func (s *Store) ListFactorConfigs(_ context.Context, userID int64) ([]entity.FactorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Filter(lo.Values(s.configs), func(c entity.FactorConfig, _ int) bool {
		return c.UserID == userID
	})
	slices.SortFunc(out, func(a, b entity.FactorConfig) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) FindEnrollmentToken(_ context.Context, resourceID int64, tokenType, codeHash string, now time.Time) (*entity.EnrollmentToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := lo.Find(lo.Values(s.tokens), func(t entity.EnrollmentToken) bool {
		return t.ResourceID == resourceID && t.TokenType == tokenType && t.CodeHash == codeHash && !t.IsExpired(now)
	})
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &tok, nil
}

func (s *Store) SaveEnrollmentToken(_ context.Context, in entity.EnrollmentToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[in.ID] = in
	return nil
}

func (s *Store) DeleteEnrollmentTokens(_ context.Context, resourceID int64, tokenType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.ResourceID == resourceID && t.TokenType == tokenType {
			delete(s.tokens, id)
		}
	}
	return nil
}

// Atomic runs fn while holding the in-process lock for factorConfigID.
func (s *Store) Atomic(ctx context.Context, factorConfigID int64, fn func(ctx context.Context, tx usecase.LedgerTx) error) error {
	return s.locker.WithLock(ctx, "factor:"+strconv.FormatInt(factorConfigID, 10), func(ctx context.Context) error {
		return fn(ctx, ledgerTx{s: s})
	})
}

type ledgerTx struct {
	s *Store
}

func (tx ledgerTx) LiveChallenges(_ context.Context, factorConfigID int64, now time.Time) ([]entity.Challenge, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	live := lo.Filter(tx.s.challenges[factorConfigID], func(c entity.Challenge, _ int) bool {
		return c.IsLive(now)
	})
	return lo.Map(live, func(c entity.Challenge, _ int) entity.Challenge {
		c.Properties = c.Properties.Clone()
		return c
	}), nil
}

func (tx ledgerTx) SaveChallenge(_ context.Context, in entity.Challenge) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	// expired challenges are never read again
	list := lo.Filter(tx.s.challenges[in.FactorConfigID], func(c entity.Challenge, _ int) bool {
		return c.IsLive(in.CreatedAt)
	})

	in.Properties = in.Properties.Clone()
	in.ResponseVerified = false
	tx.s.challenges[in.FactorConfigID] = append(list, in)
	tx.s.saved.Inc()
	return nil
}

func (tx ledgerTx) UpdateChallenge(_ context.Context, in entity.Challenge) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	list := tx.s.challenges[in.FactorConfigID]
	idx := slices.IndexFunc(list, func(c entity.Challenge) bool { return c.ID == in.ID })
	if idx < 0 {
		return goerror.ErrNotFound
	}

	in.Properties = in.Properties.Clone()
	in.ResponseVerified = false
	list[idx] = in
	tx.s.updated.Inc()
	return nil
}
