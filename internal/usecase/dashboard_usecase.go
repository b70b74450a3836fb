package usecase

import (
	"context"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/money"
)

type EscrowTotals struct {
	Funded   float64 `json:"funded"`
	Released float64 `json:"released"`
	Held     float64 `json:"held"`
	Refunded float64 `json:"refunded"`
}

type DashboardStats struct {
	Cases               map[string]int `json:"cases"`
	TotalCases          int            `json:"total_cases"`
	AverageProgress     int            `json:"average_progress"`
	Escrow              EscrowTotals   `json:"escrow"`
	OpenProposals       int64          `json:"open_proposals"`
	UnreadNotifications int64          `json:"unread_notifications"`
}

type DashboardUseCase struct {
	caseRepo         repository.CaseRepository
	escrowRepo       repository.EscrowRepository
	proposalRepo     repository.ProposalRepository
	visaRequestRepo  repository.VisaRequestRepository
	notificationRepo repository.NotificationRepository
}

func NewDashboardUseCase(
	caseRepo repository.CaseRepository,
	escrowRepo repository.EscrowRepository,
	proposalRepo repository.ProposalRepository,
	visaRequestRepo repository.VisaRequestRepository,
	notificationRepo repository.NotificationRepository,
) *DashboardUseCase {
	return &DashboardUseCase{
		caseRepo:         caseRepo,
		escrowRepo:       escrowRepo,
		proposalRepo:     proposalRepo,
		visaRequestRepo:  visaRequestRepo,
		notificationRepo: notificationRepo,
	}
}

// Stats summarizes the caller's own cases, escrows and proposals.
func (uc *DashboardUseCase) Stats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	stats := &DashboardStats{Cases: map[string]int{}}

	cases, total, err := uc.caseRepo.ListByUser(ctx, actor.ID, actor.Role, "", 0, 0)
	if err != nil {
		return nil, err
	}
	stats.TotalCases = int(total)
	progress := 0
	for _, c := range cases {
		stats.Cases[c.Status]++
		progress += c.Progress
	}
	if len(cases) > 0 {
		stats.AverageProgress = progress / len(cases)
	}

	escrows, _, err := uc.escrowRepo.ListByUser(ctx, actor.ID, actor.Role, "", 0, 0)
	if err != nil {
		return nil, err
	}
	var funded, released, held, refunded []float64
	for _, e := range escrows {
		funded = append(funded, e.Amount)
		refunded = append(refunded, e.RefundedAmount)
		r := releasedAmount(e)
		released = append(released, r)
		if !e.IsTerminal() {
			held = append(held, money.Sub(e.Amount, r))
		}
	}
	stats.Escrow = EscrowTotals{
		Funded:   money.Sum(funded...),
		Released: money.Sum(released...),
		Held:     money.Sum(held...),
		Refunded: money.Sum(refunded...),
	}

	stats.OpenProposals = uc.openProposals(ctx, actor)

	unread, err := uc.notificationRepo.CountUnread(ctx, actor.ID)
	if err != nil {
		logger.Warn("Failed to count unread notifications for %s: %v", actor.ID, err)
	}
	stats.UnreadNotifications = unread

	return stats, nil
}

// openProposals counts pending proposals the agent sent, or the ones waiting
// on the client's open visa requests.
func (uc *DashboardUseCase) openProposals(ctx context.Context, actor Actor) int64 {
	if actor.Role == entity.RoleAgent {
		_, total, err := uc.proposalRepo.ListByAgent(ctx, actor.ID, entity.ProposalStatusPending, 1, 0)
		if err != nil {
			logger.Warn("Failed to count proposals for %s: %v", actor.ID, err)
		}
		return total
	}

	requests, _, err := uc.visaRequestRepo.ListByClient(ctx, actor.ID, 0, 0)
	if err != nil {
		logger.Warn("Failed to list visa requests for %s: %v", actor.ID, err)
		return 0
	}
	var count int64
	for _, r := range requests {
		if r.Status != entity.VisaRequestStatusOpen {
			continue
		}
		proposals, _, err := uc.proposalRepo.ListByVisaRequest(ctx, r.ID, 0, 0)
		if err != nil {
			logger.Warn("Failed to list proposals of visa request %s: %v", r.ID, err)
			continue
		}
		for _, p := range proposals {
			if p.Status == entity.ProposalStatusPending {
				count++
			}
		}
	}
	return count
}
