package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/money"
)

type ProposalUseCase struct {
	proposalRepo    repository.ProposalRepository
	visaRequestRepo repository.VisaRequestRepository
	locker          service.Locker
	notifier        service.Notifier
}

func NewProposalUseCase(
	proposalRepo repository.ProposalRepository,
	visaRequestRepo repository.VisaRequestRepository,
	locker service.Locker,
	notifier service.Notifier,
) *ProposalUseCase {
	return &ProposalUseCase{
		proposalRepo:    proposalRepo,
		visaRequestRepo: visaRequestRepo,
		locker:          locker,
		notifier:        notifier,
	}
}

type CreateProposalInput struct {
	VisaRequestID string
	CoverLetter   string
	TotalAmount   float64
	Currency      string
	EstimatedDays int
	Milestones    []entity.ProposalMilestone
}

func (uc *ProposalUseCase) Create(ctx context.Context, actor Actor, input CreateProposalInput) (*entity.Proposal, error) {
	if actor.Role != entity.RoleAgent {
		return nil, errors.Forbidden("Only agents can submit proposals", nil)
	}
	if input.TotalAmount <= 0 || !money.Valid(input.TotalAmount) {
		return nil, errors.Validation("Total amount must be a positive value with at most two decimals")
	}
	if len(input.Milestones) > 0 {
		amounts := make([]float64, 0, len(input.Milestones))
		for _, m := range input.Milestones {
			if m.Amount <= 0 || !money.Valid(m.Amount) {
				return nil, errors.Validation("Milestone amounts must be positive values with at most two decimals")
			}
			amounts = append(amounts, m.Amount)
		}
		if !money.Equal(money.Sum(amounts...), input.TotalAmount) {
			return nil, errors.Validation("Milestone amounts must add up to the total amount")
		}
	}

	request, err := uc.visaRequestRepo.GetByID(ctx, input.VisaRequestID)
	if err != nil {
		return nil, err
	}
	if request.Status != entity.VisaRequestStatusOpen {
		return nil, errors.InvalidState("This visa request is no longer accepting proposals")
	}

	exists, err := uc.proposalRepo.ExistsForAgent(ctx, request.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Conflict("You already submitted a proposal for this visa request")
	}

	currency := input.Currency
	if currency == "" {
		currency = request.Currency
	}
	if currency == "" {
		currency = defaultCurrency
	}

	proposal := &entity.Proposal{
		VisaRequestID: request.ID,
		ClientID:      request.ClientID,
		AgentID:       actor.ID,
		CoverLetter:   strings.TrimSpace(input.CoverLetter),
		TotalAmount:   input.TotalAmount,
		Currency:      currency,
		EstimatedDays: input.EstimatedDays,
		Milestones:    input.Milestones,
		Status:        entity.ProposalStatusPending,
	}
	if proposal.Milestones == nil {
		proposal.Milestones = []entity.ProposalMilestone{}
	}

	if err := uc.proposalRepo.Create(ctx, proposal); err != nil {
		return nil, err
	}

	request.ProposalCount++
	request.UpdatedAt = time.Now()
	if err := uc.visaRequestRepo.Update(ctx, request); err != nil {
		logger.Warn("Failed to update proposal count of visa request %s: %v", request.ID, err)
	}

	notifyAll(ctx, uc.notifier, []service.Notice{{
		RecipientID: request.ClientID,
		Event:       entity.EventProposalNew,
		Title:       "New proposal",
		Message:     fmt.Sprintf("An agent sent a proposal for %q", request.Title),
		Priority:    entity.PriorityNormal,
		Category:    entity.CategoryInfo,
		EntityID:    proposal.ID,
		Data:        map[string]interface{}{"proposal_id": proposal.ID, "visa_request_id": request.ID},
	}})

	return proposal, nil
}

func (uc *ProposalUseCase) Get(ctx context.Context, actor Actor, id string) (*entity.Proposal, error) {
	proposal, err := uc.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.ClientID != actor.ID && proposal.AgentID != actor.ID && !actor.IsAdmin() {
		return nil, errors.Forbidden("You don't have permission to view this proposal", nil)
	}
	return proposal, nil
}

func (uc *ProposalUseCase) ListForVisaRequest(ctx context.Context, actor Actor, visaRequestID string, limit, offset int) ([]*entity.Proposal, int64, error) {
	request, err := uc.visaRequestRepo.GetByID(ctx, visaRequestID)
	if err != nil {
		return nil, 0, err
	}
	if request.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, 0, errors.Forbidden("Only the owner of the visa request can list its proposals", nil)
	}
	return uc.proposalRepo.ListByVisaRequest(ctx, visaRequestID, limit, offset)
}

func (uc *ProposalUseCase) ListMine(ctx context.Context, actor Actor, status string, limit, offset int) ([]*entity.Proposal, int64, error) {
	if actor.Role != entity.RoleAgent {
		return nil, 0, errors.Forbidden("Only agents have proposals", nil)
	}
	return uc.proposalRepo.ListByAgent(ctx, actor.ID, status, limit, offset)
}

// Reject declines a pending proposal on behalf of the client.
func (uc *ProposalUseCase) Reject(ctx context.Context, actor Actor, id, reason string) (*entity.Proposal, error) {
	return uc.transition(ctx, id, func(p *entity.Proposal) (*service.Notice, error) {
		if p.ClientID != actor.ID {
			return nil, errors.Forbidden("Only the client can reject this proposal", nil)
		}
		p.Status = entity.ProposalStatusRejected
		p.RejectionReason = strings.TrimSpace(reason)
		return &service.Notice{
			RecipientID: p.AgentID,
			Event:       entity.EventProposalUpdated,
			Title:       "Proposal declined",
			Message:     describeRelease("The client declined your proposal", reason),
			Priority:    entity.PriorityNormal,
			Category:    entity.CategoryWarning,
			EntityID:    p.ID,
			Data:        map[string]interface{}{"proposal_id": p.ID, "status": p.Status},
		}, nil
	})
}

// Withdraw lets the agent pull a proposal that was not funded yet.
func (uc *ProposalUseCase) Withdraw(ctx context.Context, actor Actor, id string) (*entity.Proposal, error) {
	return uc.transition(ctx, id, func(p *entity.Proposal) (*service.Notice, error) {
		if p.AgentID != actor.ID {
			return nil, errors.Forbidden("Only the agent can withdraw this proposal", nil)
		}
		p.Status = entity.ProposalStatusWithdrawn
		return &service.Notice{
			RecipientID: p.ClientID,
			Event:       entity.EventProposalUpdated,
			Title:       "Proposal withdrawn",
			Message:     "An agent withdrew their proposal",
			Priority:    entity.PriorityLow,
			Category:    entity.CategoryInfo,
			EntityID:    p.ID,
			Data:        map[string]interface{}{"proposal_id": p.ID, "status": p.Status},
		}, nil
	})
}

// transition applies fn to a pending proposal under the proposal lock, the
// same lock Fund holds while it creates an escrow.
func (uc *ProposalUseCase) transition(ctx context.Context, id string, fn func(p *entity.Proposal) (*service.Notice, error)) (*entity.Proposal, error) {
	unlock, err := acquire(ctx, uc.locker, "proposal:"+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	proposal, err := uc.proposalRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status != entity.ProposalStatusPending || proposal.EscrowID != "" {
		return nil, errors.InvalidState(fmt.Sprintf("Proposal is %s and can no longer change", proposal.Status))
	}

	notice, err := fn(proposal)
	if err != nil {
		return nil, err
	}
	if err := uc.proposalRepo.Update(ctx, proposal); err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, []service.Notice{*notice})
	return proposal, nil
}
