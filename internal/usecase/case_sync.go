package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/money"
)

// syncCaseState recomputes every derived field of a case after a mutation:
// progress, paid amount, the single active milestone, the current milestone
// pointer and completion.
//
// The active milestone is the first one not yet approved; once all are
// approved the last one stays active so currentMilestone keeps pointing at an
// active milestone.
func syncCaseState(c *entity.Case, by string, now time.Time) {
	total := len(c.Milestones)
	if total == 0 {
		c.Progress = 0
		c.PaidAmount = 0
		c.CurrentMilestone = 0
		return
	}

	approved := 0
	active := -1
	var paid []float64
	for i := range c.Milestones {
		m := &c.Milestones[i]
		m.IsActive = false
		if m.Status == entity.MilestoneStatusApproved {
			approved++
			paid = append(paid, m.Amount)
			continue
		}
		if active == -1 {
			active = i
		}
	}

	c.Progress = int(math.Round(float64(approved) * 100 / float64(total)))
	c.PaidAmount = money.Sum(paid...)

	if active == -1 {
		active = total - 1
	}
	m := &c.Milestones[active]
	m.IsActive = true
	c.CurrentMilestone = active + 1

	if m.Status == entity.MilestoneStatusPending && c.Status == entity.CaseStatusActive {
		m.Status = entity.MilestoneStatusInProgress
		if m.StartedAt == nil {
			started := now
			m.StartedAt = &started
		}
	}

	if approved == total && c.Status != entity.CaseStatusCancelled && c.Status != entity.CaseStatusCompleted {
		c.Status = entity.CaseStatusCompleted
		if c.ActualCompletionDate == nil {
			done := now
			c.ActualCompletionDate = &done
		}
		if entity.CountEvents(c.Timeline, entity.EventCaseCompleted) == 0 {
			c.AddTimeline(entity.EventCaseCompleted, "All milestones approved, case completed", by, now)
		}
	}
}

// approveMirrored approves the case milestone linked to an escrow milestone.
// It reports whether anything changed.
func approveMirrored(c *entity.Case, escrowMilestoneID string, now time.Time) bool {
	if escrowMilestoneID == "" {
		return false
	}
	_, m := c.MilestoneByEscrowID(escrowMilestoneID)
	if m == nil || m.Status == entity.MilestoneStatusApproved {
		return false
	}
	approveMilestone(m, now)
	return true
}

func approveMilestone(m *entity.CaseMilestone, now time.Time) {
	m.Status = entity.MilestoneStatusApproved
	stamp := now
	if m.CompletedAt == nil {
		m.CompletedAt = &stamp
	}
	m.ApprovedAt = &stamp
}

// newCase builds the case opened when an escrow is funded. Milestones carry
// the id of the escrow milestone they mirror.
func newCase(escrow *entity.Escrow, proposal *entity.Proposal, title string, now time.Time) *entity.Case {
	c := &entity.Case{
		ID:            uuid.New().String(),
		Title:         title,
		ClientID:      escrow.ClientID,
		AgentID:       escrow.AgentID,
		ProposalID:    escrow.ProposalID,
		VisaRequestID: escrow.VisaRequestID,
		EscrowID:      escrow.ID,
		Status:        entity.CaseStatusActive,
		TotalAmount:   escrow.Amount,
		Documents:     []entity.CaseDocument{},
		StartDate:     now,
	}

	if proposal.EstimatedDays > 0 {
		expected := now.AddDate(0, 0, proposal.EstimatedDays)
		c.ExpectedCompletionDate = &expected
	}

	dueOffset := 0
	for i, em := range escrow.Milestones {
		cm := entity.CaseMilestone{
			EscrowMilestoneID: em.ID,
			Title:             em.Description,
			Description:       em.Description,
			Amount:            em.Amount,
			Order:             em.Order,
			Status:            entity.MilestoneStatusPending,
			SubmittedFiles:    []string{},
		}
		if i < len(proposal.Milestones) {
			pm := proposal.Milestones[i]
			if pm.Title != "" {
				cm.Title = pm.Title
			}
			if pm.DueInDays > 0 {
				dueOffset += pm.DueInDays
				due := now.AddDate(0, 0, dueOffset)
				cm.DueDate = &due
			}
		}
		c.Milestones = append(c.Milestones, cm)
	}

	c.AddTimeline(entity.EventCaseCreated, fmt.Sprintf("Case opened with %d milestone(s)", len(c.Milestones)), escrow.ClientID, now)
	syncCaseState(c, escrow.ClientID, now)
	return c
}
