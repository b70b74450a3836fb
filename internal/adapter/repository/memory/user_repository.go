package memory

import (
	"context"
	"sort"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(ctx context.Context, user *entity.User) error {
	if user.ID == "" {
		return errors.BadRequest("User ID is required", nil)
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; exists {
		return errors.Conflict("User already exists")
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) Update(ctx context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return errors.NotFound("User", nil)
	}
	user.UpdatedAt = r.s.now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *userRepo) ListByRole(ctx context.Context, role string, limit int) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.User
	for _, u := range r.s.users {
		if u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}
