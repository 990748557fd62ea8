package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
)

// Store keeps audit entries in process memory.
type Store struct {
	mu      sync.RWMutex
	entries []entity.AuditEntry
}

func New() *Store {
	return &Store{}
}

func (s *Store) CreateEntry(_ context.Context, in entity.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.entries, func(e entity.AuditEntry) bool { return e.ID == in.ID }) {
		return goerror.ErrConflict
	}

	in.Data = in.Data.Clone()
	s.entries = append(s.entries, in)
	return nil
}

func (s *Store) ListEntries(_ context.Context, userID int64, limit, offset int32) ([]entity.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	own := lo.Filter(s.entries, func(e entity.AuditEntry, _ int) bool { return e.UserID == userID })
	slices.SortFunc(own, func(a, b entity.AuditEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return lo.Subset(own, int(offset), uint(limit)), nil
}
