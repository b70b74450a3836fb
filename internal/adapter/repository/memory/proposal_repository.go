package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

type proposalRepo struct {
	s *Store
}

func (r *proposalRepo) Create(ctx context.Context, p *entity.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := r.s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.proposals[p.ID]; exists {
		return errors.Conflict("Proposal already exists")
	}
	r.s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *proposalRepo) GetByID(ctx context.Context, id string) (*entity.Proposal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.proposals[id]
	if !ok {
		return nil, errors.NotFound("Proposal", nil)
	}
	return cloneProposal(p), nil
}

// Update is version checked and waits for in-flight ledger transactions, which
// also write proposals.
func (r *proposalRepo) Update(ctx context.Context, p *entity.Proposal) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.proposals[p.ID]
	if !ok {
		return errors.NotFound("Proposal", nil)
	}
	if current.Version != p.Version {
		return errors.Conflict("Proposal was modified concurrently")
	}
	p.Version++
	p.UpdatedAt = r.s.now()
	r.s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (r *proposalRepo) ListByVisaRequest(ctx context.Context, visaRequestID string, limit, offset int) ([]*entity.Proposal, int64, error) {
	return r.list(func(p *entity.Proposal) bool { return p.VisaRequestID == visaRequestID }, limit, offset)
}

func (r *proposalRepo) ListByAgent(ctx context.Context, agentID, status string, limit, offset int) ([]*entity.Proposal, int64, error) {
	return r.list(func(p *entity.Proposal) bool {
		return p.AgentID == agentID && (status == "" || p.Status == status)
	}, limit, offset)
}

func (r *proposalRepo) ExistsForAgent(ctx context.Context, visaRequestID, agentID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.proposals {
		if p.VisaRequestID == visaRequestID && p.AgentID == agentID && p.Status != entity.ProposalStatusWithdrawn {
			return true, nil
		}
	}
	return false, nil
}

func (r *proposalRepo) list(keep func(*entity.Proposal) bool, limit, offset int) ([]*entity.Proposal, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Proposal
	for _, p := range r.s.proposals {
		if keep(p) {
			out = append(out, cloneProposal(p))
		}
	}
	newestFirst(out, func(p *entity.Proposal) time.Time { return p.CreatedAt })
	return page(out, limit, offset), int64(len(out)), nil
}

type visaRequestRepo struct {
	s *Store
}

func (r *visaRequestRepo) Create(ctx context.Context, v *entity.VisaRequest) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := r.s.now()
	v.CreatedAt = now
	v.UpdatedAt = now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *v
	r.s.visaRequests[v.ID] = &cp
	return nil
}

func (r *visaRequestRepo) GetByID(ctx context.Context, id string) (*entity.VisaRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.visaRequests[id]
	if !ok {
		return nil, errors.NotFound("Visa request", nil)
	}
	cp := *v
	return &cp, nil
}

func (r *visaRequestRepo) Update(ctx context.Context, v *entity.VisaRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.visaRequests[v.ID]; !ok {
		return errors.NotFound("Visa request", nil)
	}
	v.UpdatedAt = r.s.now()
	cp := *v
	r.s.visaRequests[v.ID] = &cp
	return nil
}

func (r *visaRequestRepo) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	return r.list(func(v *entity.VisaRequest) bool { return v.ClientID == clientID }, limit, offset)
}

func (r *visaRequestRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	return r.list(func(v *entity.VisaRequest) bool { return v.Status == status }, limit, offset)
}

func (r *visaRequestRepo) list(keep func(*entity.VisaRequest) bool, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.VisaRequest
	for _, v := range r.s.visaRequests {
		if keep(v) {
			cp := *v
			out = append(out, &cp)
		}
	}
	newestFirst(out, func(v *entity.VisaRequest) time.Time { return v.CreatedAt })
	return page(out, limit, offset), int64(len(out)), nil
}
