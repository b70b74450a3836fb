package memory

import (
	"context"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

type escrowRepo struct {
	s *Store
}

func (r *escrowRepo) GetByID(ctx context.Context, id string) (*entity.Escrow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.escrows[id]
	if !ok {
		return nil, errors.NotFound("Escrow", nil)
	}
	return cloneEscrow(e), nil
}

func (r *escrowRepo) GetByProposalID(ctx context.Context, proposalID string) (*entity.Escrow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, e := range r.s.escrows {
		if e.ProposalID == proposalID {
			return cloneEscrow(e), nil
		}
	}
	return nil, errors.NotFound("Escrow", nil)
}

func (r *escrowRepo) ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Escrow, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Escrow
	for _, e := range r.s.escrows {
		if !matchesParty(userID, role, e.ClientID, e.AgentID) {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, cloneEscrow(e))
	}
	newestFirst(out, func(e *entity.Escrow) time.Time { return e.CreatedAt })
	return page(out, limit, offset), int64(len(out)), nil
}

type caseRepo struct {
	s *Store
}

func (r *caseRepo) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.cases[id]
	if !ok {
		return nil, errors.NotFound("Case", nil)
	}
	return cloneCase(c), nil
}

func (r *caseRepo) ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Case, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Case
	for _, c := range r.s.cases {
		if !matchesParty(userID, role, c.ClientID, c.AgentID) {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, cloneCase(c))
	}
	newestFirst(out, func(c *entity.Case) time.Time { return c.CreatedAt })
	return page(out, limit, offset), int64(len(out)), nil
}
