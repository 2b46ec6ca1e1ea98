package memory

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-desk/internal/domain"
)

type profileRepo struct{ s *Store }

func (r profileRepo) Upsert(_ context.Context, p *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if existing, ok := r.s.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.profiles[p.ID] = *p
	return nil
}

func (r profileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

type roleRepo struct{ s *Store }

func (r roleRepo) ListByUser(_ context.Context, userID string) ([]domain.AppRole, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	roles := []domain.AppRole{}
	for role := range r.s.roles[userID] {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles, nil
}

func (r roleRepo) Grant(_ context.Context, userID string, role domain.AppRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.roles[userID] == nil {
		r.s.roles[userID] = map[domain.AppRole]struct{}{}
	}
	r.s.roles[userID][role] = struct{}{}
	return nil
}

func (r roleRepo) HasRole(_ context.Context, userID string, role domain.AppRole) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.roles[userID][role]
	return ok, nil
}
