package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/money"
)

const minDisputeDescription = 20

type HoldInput struct {
	Reason      string
	Description string
	Evidence    []string
}

type ResolveDisputeInput struct {
	Resolution string
	Note       string
}

// Hold opens a dispute and freezes the escrow until an admin resolves it.
func (uc *EscrowUseCase) Hold(ctx context.Context, actor Actor, escrowID string, input HoldInput) (*entity.Escrow, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, errors.Validation("Dispute reason is required")
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) < minDisputeDescription {
		return nil, errors.Validation(fmt.Sprintf("Dispute description must be at least %d characters", minDisputeDescription))
	}

	unlock, err := uc.lockEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		escrow  *entity.Escrow
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		notices = nil
		now := uc.now()

		e, c, err := readEscrowAndCase(tx, escrowID)
		if err != nil {
			return err
		}
		if !e.IsParty(actor.ID) && !actor.IsAdmin() {
			return errors.Forbidden("You are not a party to this escrow", nil)
		}
		if !e.CanRelease() {
			return errors.InvalidState(fmt.Sprintf("Escrow cannot be disputed in status %s", e.Status))
		}

		evidence := input.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		e.Dispute = &entity.Dispute{
			Reason:         reason,
			Description:    description,
			Evidence:       evidence,
			CreatedBy:      actor.ID,
			CreatedAt:      now,
			Status:         entity.DisputeStatusOpen,
			PreviousStatus: e.Status,
		}
		e.Status = entity.EscrowStatusDisputed
		e.AddTimeline(entity.EventDisputeRaised, "Dispute raised: "+reason, actor.ID, now)

		if c != nil && (c.Status == entity.CaseStatusActive || c.Status == entity.CaseStatusOnHold) {
			c.Status = entity.CaseStatusDisputed
			c.AddTimeline(entity.EventCaseDisputeRaised, "Payment dispute raised: "+reason, actor.ID, now)
			syncCaseState(c, actor.ID, now)
		} else {
			c = nil
		}

		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}
		if c != nil {
			if err := tx.UpdateCase(c); err != nil {
				return err
			}
		}

		message := fmt.Sprintf("A dispute was raised on escrow %s: %s", e.ID, reason)
		for _, recipient := range append(recipientsExcept(actor.ID, e.ClientID, e.AgentID), service.AdminChannel) {
			notices = append(notices, service.Notice{
				RecipientID: recipient,
				Event:       entity.EventEscrowDisputedNotice,
				Title:       "Escrow disputed",
				Message:     message,
				Priority:    entity.PriorityHigh,
				Category:    entity.CategoryWarning,
				EntityID:    e.ID,
				Data:        map[string]interface{}{"escrow_id": e.ID, "reason": reason},
			})
		}

		escrow = e
		return nil
	})
	logOutcome(escrowID, "hold", actor.ID, err)
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return escrow, nil
}

// EscalateDispute hands an open dispute to the admins.
func (uc *EscrowUseCase) EscalateDispute(ctx context.Context, actor Actor, escrowID, note string) (*entity.Escrow, error) {
	unlock, err := uc.lockEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		escrow  *entity.Escrow
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		notices = nil
		now := uc.now()

		e, err := tx.GetEscrow(escrowID)
		if err != nil {
			return err
		}
		if !e.IsParty(actor.ID) && !actor.IsAdmin() {
			return errors.Forbidden("You are not a party to this escrow", nil)
		}
		if e.Status != entity.EscrowStatusDisputed || e.Dispute == nil || e.Dispute.Status != entity.DisputeStatusOpen {
			return errors.InvalidState("Only an open dispute can be escalated")
		}

		e.Dispute.Status = entity.DisputeStatusEscalated
		e.AddTimeline(entity.EventDisputeEscalated, describeRelease("Dispute escalated to admin review", note), actor.ID, now)

		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}

		for _, recipient := range append(recipientsExcept(actor.ID, e.ClientID, e.AgentID), service.AdminChannel) {
			notices = append(notices, service.Notice{
				RecipientID: recipient,
				Event:       entity.EventEscrowDisputedNotice,
				Title:       "Dispute escalated",
				Message:     fmt.Sprintf("The dispute on escrow %s was escalated for admin review", e.ID),
				Priority:    entity.PriorityHigh,
				Category:    entity.CategoryWarning,
				EntityID:    e.ID,
				Data:        map[string]interface{}{"escrow_id": e.ID, "dispute_status": e.Dispute.Status},
			})
		}

		escrow = e
		return nil
	})
	logOutcome(escrowID, "escalate", actor.ID, err)
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return escrow, nil
}

// ResolveDispute closes a dispute. continue restores the status held before
// the dispute, release pays out everything still held, refund returns it to
// the client.
func (uc *EscrowUseCase) ResolveDispute(ctx context.Context, actor Actor, escrowID string, input ResolveDisputeInput) (*entity.Escrow, error) {
	if !actor.IsAdmin() {
		return nil, errors.Forbidden("Only admins can resolve disputes", nil)
	}
	switch input.Resolution {
	case entity.DisputeResolutionContinue, entity.DisputeResolutionRelease, entity.DisputeResolutionRefund:
	default:
		return nil, errors.Validation("Resolution must be one of continue, release, refund")
	}

	unlock, err := uc.lockEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := uc.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if current.Status != entity.EscrowStatusDisputed || current.Dispute == nil {
		return nil, errors.InvalidState(fmt.Sprintf("Escrow has no dispute to resolve in status %s", current.Status))
	}

	var refunded float64
	if input.Resolution == entity.DisputeResolutionRefund {
		refunded, err = uc.refundRemaining(ctx, current, "escrow-refund-"+current.ID, "Dispute resolved with refund")
		if err != nil {
			return nil, err
		}
	}

	var (
		escrow  *entity.Escrow
		notices []service.Notice
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		notices = nil
		now := uc.now()

		e, c, err := readEscrowAndCase(tx, escrowID)
		if err != nil {
			return err
		}
		if e.Status != entity.EscrowStatusDisputed || e.Dispute == nil {
			return errors.InvalidState("Escrow has no dispute to resolve")
		}

		var outcome string
		switch input.Resolution {
		case entity.DisputeResolutionContinue:
			e.Status = e.Dispute.PreviousStatus
			if e.Status != entity.EscrowStatusDeposited && e.Status != entity.EscrowStatusInProgress {
				e.Status = entity.EscrowStatusInProgress
			}
			if c != nil && c.Status == entity.CaseStatusDisputed {
				c.Status = entity.CaseStatusActive
			}
			outcome = "work continues"

		case entity.DisputeResolutionRelease:
			var releasedIDs []string
			for i := range e.Milestones {
				if e.Milestones[i].Status != entity.EscrowMilestoneCompleted {
					completeMilestone(&e.Milestones[i], now)
					releasedIDs = append(releasedIDs, e.Milestones[i].ID)
				}
			}
			e.Status = entity.EscrowStatusCompleted
			if c != nil {
				for _, id := range releasedIDs {
					approveMirrored(c, id, now)
				}
			}
			outcome = "remaining funds released to the agent"

		case entity.DisputeResolutionRefund:
			e.RefundedAmount = refunded
			e.Status = entity.EscrowStatusRefunded
			if c != nil {
				c.Status = entity.CaseStatusCancelled
			}
			outcome = fmt.Sprintf("%.2f refunded to the client", refunded)
		}

		resolvedAt := now
		e.Dispute.Status = entity.DisputeStatusResolved
		e.Dispute.Resolution = input.Resolution
		e.Dispute.ResolutionNote = strings.TrimSpace(input.Note)
		e.Dispute.ResolvedBy = actor.ID
		e.Dispute.ResolvedAt = &resolvedAt
		e.AddTimeline(entity.EventDisputeResolved, describeRelease("Dispute resolved, "+outcome, input.Note), actor.ID, now)

		if c != nil {
			c.AddTimeline(entity.EventCaseDisputeSettled, "Payment dispute resolved, "+outcome, actor.ID, now)
			syncCaseState(c, actor.ID, now)
		}

		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}
		if c != nil {
			if err := tx.UpdateCase(c); err != nil {
				return err
			}
		}

		for _, recipient := range []string{e.ClientID, e.AgentID} {
			notices = append(notices, service.Notice{
				RecipientID: recipient,
				Event:       resolutionEvent(input.Resolution),
				Title:       "Dispute resolved",
				Message:     "The dispute was resolved: " + outcome,
				Priority:    entity.PriorityHigh,
				Category:    entity.CategoryInfo,
				EntityID:    e.ID,
				Data:        map[string]interface{}{"escrow_id": e.ID, "resolution": input.Resolution, "status": e.Status},
			})
		}

		escrow = e
		return nil
	})
	logOutcome(escrowID, "resolve:"+input.Resolution, actor.ID, err)
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return escrow, nil
}

func resolutionEvent(resolution string) string {
	switch resolution {
	case entity.DisputeResolutionRelease:
		return entity.EventEscrowReleasedNotice
	case entity.DisputeResolutionRefund:
		return entity.EventEscrowRefundedNotice
	}
	return entity.EventEscrowDisputedNotice
}

// Refund returns everything not yet released to the client and closes the
// case. Only the agent or an admin can give money back.
func (uc *EscrowUseCase) Refund(ctx context.Context, actor Actor, escrowID, reason string) (*entity.Escrow, error) {
	unlock, err := uc.lockEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := uc.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if current.AgentID != actor.ID && !actor.IsAdmin() {
		return nil, errors.Forbidden("Only the agent or an admin can refund an escrow", nil)
	}
	if !current.CanRelease() {
		return nil, errors.InvalidState(fmt.Sprintf("Escrow cannot be refunded in status %s", current.Status))
	}

	refunded, err := uc.refundRemaining(ctx, current, "escrow-refund-"+current.ID, reason)
	if err != nil {
		return nil, err
	}

	return uc.terminate(ctx, actor, escrowID, terminal{
		status:   entity.EscrowStatusRefunded,
		event:    entity.EventEscrowRefunded,
		notice:   entity.EventEscrowRefundedNotice,
		title:    "Escrow refunded",
		message:  fmt.Sprintf("%.2f %s was refunded", refunded, current.Currency),
		action:   "refund",
		refunded: refunded,
		reason:   reason,
		allowed:  func(e *entity.Escrow) bool { return e.CanRelease() },
	})
}

// Cancel unwinds an escrow before any work was paid out: the client gets the
// full amount back and the proposal can be funded again.
func (uc *EscrowUseCase) Cancel(ctx context.Context, actor Actor, escrowID, reason string) (*entity.Escrow, error) {
	unlock, err := uc.lockEscrow(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := uc.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if current.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, errors.Forbidden("Only the client or an admin can cancel an escrow", nil)
	}
	if !cancellable(current) {
		return nil, errors.InvalidState("Escrow can only be cancelled before any milestone is released")
	}

	refunded, err := uc.refundRemaining(ctx, current, "escrow-cancel-"+current.ID, reason)
	if err != nil {
		return nil, err
	}

	cancelled, err := uc.terminate(ctx, actor, escrowID, terminal{
		status:         entity.EscrowStatusCancelled,
		event:          entity.EventEscrowCancelled,
		notice:         entity.EventEscrowCancelledNotice,
		title:          "Escrow cancelled",
		message:        fmt.Sprintf("The escrow was cancelled and %.2f %s refunded", refunded, current.Currency),
		action:         "cancel",
		refunded:       refunded,
		reason:         reason,
		allowed:        cancellable,
		reopenProposal: true,
	})
	if err != nil {
		return nil, err
	}

	// The proposal is open again, so is the request it answers
	uc.moveVisaRequest(ctx, cancelled.VisaRequestID, entity.VisaRequestStatusInProgress, entity.VisaRequestStatusOpen)
	return cancelled, nil
}

func cancellable(e *entity.Escrow) bool {
	if e.Status != entity.EscrowStatusPending && e.Status != entity.EscrowStatusDeposited {
		return false
	}
	for _, m := range e.Milestones {
		if m.Status == entity.EscrowMilestoneCompleted {
			return false
		}
	}
	return true
}

// refundRemaining refunds the unreleased amount. The key is stable per escrow
// so a retry after a failed ledger write does not refund twice.
func (uc *EscrowUseCase) refundRemaining(ctx context.Context, e *entity.Escrow, key, reason string) (float64, error) {
	remaining := money.Sub(e.Amount, releasedAmount(e))
	if remaining <= 0 || e.PaymentReference == "" {
		return remaining, nil
	}

	result, err := uc.gateway.Refund(ctx, service.RefundRequest{
		IdempotencyKey: key,
		Reference:      e.PaymentReference,
		Amount:         remaining,
		Reason:         reason,
	})
	if err != nil {
		logOutcome(e.ID, "refund", "", err)
		return 0, gatewayError(err)
	}
	if result.Status == service.PaymentStatusFailure {
		return 0, errors.BadRequest("Refund was rejected by the payment provider", nil)
	}
	return remaining, nil
}

type terminal struct {
	status         string
	event          string
	notice         string
	title          string
	message        string
	action         string
	refunded       float64
	reason         string
	allowed        func(*entity.Escrow) bool
	reopenProposal bool
}

// terminate moves an escrow into a terminal state after its money was
// returned, cancelling the case with it.
func (uc *EscrowUseCase) terminate(ctx context.Context, actor Actor, escrowID string, t terminal) (*entity.Escrow, error) {
	var (
		escrow  *entity.Escrow
		notices []service.Notice
	)
	err := uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		notices = nil
		now := uc.now()

		e, c, err := readEscrowAndCase(tx, escrowID)
		if err != nil {
			return err
		}
		var p *entity.Proposal
		if t.reopenProposal {
			p, err = tx.GetProposal(e.ProposalID)
			if err != nil && !errors.Is(err, errors.CodeNotFound) {
				return err
			}
		}
		if !t.allowed(e) {
			return errors.InvalidState(fmt.Sprintf("Escrow cannot move to %s from status %s", t.status, e.Status))
		}

		e.Status = t.status
		e.RefundedAmount = t.refunded
		e.AddTimeline(t.event, describeRelease(t.message, t.reason), actor.ID, now)

		if c != nil && c.Status != entity.CaseStatusCompleted && c.Status != entity.CaseStatusCancelled {
			c.Status = entity.CaseStatusCancelled
			c.AddTimeline(entity.EventCaseStatusUpdated, "Case cancelled: "+t.title, actor.ID, now)
			syncCaseState(c, actor.ID, now)
		} else {
			c = nil
		}

		if p != nil && p.EscrowID == e.ID {
			p.Status = entity.ProposalStatusPending
			p.EscrowID = ""
			p.CaseID = ""
			p.AcceptedAt = nil
		} else {
			p = nil
		}

		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}
		if c != nil {
			if err := tx.UpdateCase(c); err != nil {
				return err
			}
		}
		if p != nil {
			if err := tx.UpdateProposal(p); err != nil {
				return err
			}
		}

		for _, recipient := range recipientsExcept(actor.ID, e.ClientID, e.AgentID) {
			notices = append(notices, service.Notice{
				RecipientID: recipient,
				Event:       t.notice,
				Title:       t.title,
				Message:     t.message,
				Priority:    entity.PriorityHigh,
				Category:    entity.CategoryWarning,
				EntityID:    e.ID,
				Data:        map[string]interface{}{"escrow_id": e.ID, "refunded_amount": t.refunded},
			})
		}

		escrow = e
		return nil
	})
	logOutcome(escrowID, t.action, actor.ID, err)
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return escrow, nil
}
