package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
	"visaconnect/pkg/money"
)

const defaultCurrency = "IDR"

type FeeConfig struct {
	PlatformPercent float64
	PaymentPercent  float64
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{PlatformPercent: 5, PaymentPercent: 2.9}
}

func (f FeeConfig) compute(amount float64) entity.Fees {
	platform := money.Percent(amount, f.PlatformPercent)
	payment := money.Percent(amount, f.PaymentPercent)
	return entity.Fees{
		Platform: platform,
		Payment:  payment,
		Total:    money.Sum(platform, payment),
	}
}

type EscrowUseCase struct {
	ledger          repository.Ledger
	escrowRepo      repository.EscrowRepository
	proposalRepo    repository.ProposalRepository
	visaRequestRepo repository.VisaRequestRepository
	gateway         service.PaymentGateway
	locker          service.Locker
	notifier        service.Notifier
	fees            FeeConfig
	now             func() time.Time
}

func NewEscrowUseCase(
	ledger repository.Ledger,
	escrowRepo repository.EscrowRepository,
	proposalRepo repository.ProposalRepository,
	visaRequestRepo repository.VisaRequestRepository,
	gateway service.PaymentGateway,
	locker service.Locker,
	notifier service.Notifier,
	fees FeeConfig,
) *EscrowUseCase {
	return &EscrowUseCase{
		ledger:          ledger,
		escrowRepo:      escrowRepo,
		proposalRepo:    proposalRepo,
		visaRequestRepo: visaRequestRepo,
		gateway:         gateway,
		locker:          locker,
		notifier:        notifier,
		fees:            fees,
		now:             time.Now,
	}
}

type FundEscrowInput struct {
	ProposalID    string
	Amount        float64
	PaymentMethod string
	Currency      string

	// IdempotencyKey is an optional client supplied suffix for the charge key.
	IdempotencyKey string
}

type ReleaseInput struct {
	MilestoneID string
	Amount      *float64
	Reason      string
}

// EscrowView is the computed, read-only status of an escrow.
type EscrowView struct {
	EscrowID        string                   `json:"escrow_id"`
	Status          string                   `json:"status"`
	Amount          float64                  `json:"amount"`
	Currency        string                   `json:"currency"`
	ReleasedAmount  float64                  `json:"released_amount"`
	RemainingAmount float64                  `json:"remaining_amount"`
	RefundedAmount  float64                  `json:"refunded_amount"`
	Progress        float64                  `json:"progress"`
	Fees            entity.Fees              `json:"fees"`
	Milestones      []entity.EscrowMilestone `json:"milestones"`
	Dispute         *entity.Dispute          `json:"dispute,omitempty"`
}

// Fund charges the client and, in one ledger transaction, creates the escrow,
// opens the case and marks the proposal accepted. A charge whose transaction
// fails is refunded unless the proposal turns out to be escrowed already.
func (uc *EscrowUseCase) Fund(ctx context.Context, actor Actor, input FundEscrowInput) (*entity.Escrow, error) {
	if input.ProposalID == "" {
		return nil, errors.Validation("Proposal ID is required")
	}
	if input.Amount <= 0 || !money.Valid(input.Amount) {
		return nil, errors.Validation("Amount must be a positive value with at most two decimals")
	}
	if strings.TrimSpace(input.PaymentMethod) == "" {
		return nil, errors.Validation("Payment method is required")
	}

	unlock, err := acquire(ctx, uc.locker, "proposal:"+input.ProposalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	proposal, err := uc.proposalRepo.GetByID(ctx, input.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.ClientID != actor.ID {
		return nil, errors.Forbidden("Only the client of this proposal can fund it", nil)
	}
	if proposal.EscrowID != "" {
		return nil, errors.Conflict("Escrow already exists for this proposal")
	}
	if !proposal.Fundable() {
		return nil, errors.InvalidState(fmt.Sprintf("Proposal cannot be funded in status %s", proposal.Status))
	}
	if len(proposal.Milestones) > 0 {
		amounts := make([]float64, 0, len(proposal.Milestones))
		for _, m := range proposal.Milestones {
			amounts = append(amounts, m.Amount)
		}
		if !money.Equal(money.Sum(amounts...), input.Amount) {
			return nil, errors.Validation("Milestone amounts must add up to the escrow amount")
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = proposal.Currency
	}
	if currency == "" {
		currency = defaultCurrency
	}

	chargeKey := fmt.Sprintf("escrow-fund-%s-v%d", proposal.ID, proposal.Version)
	if input.IdempotencyKey != "" {
		chargeKey += "-" + input.IdempotencyKey
	}

	charge, err := uc.gateway.Charge(ctx, service.ChargeRequest{
		IdempotencyKey: chargeKey,
		Amount:         input.Amount,
		Currency:       currency,
		PaymentMethod:  input.PaymentMethod,
		CustomerID:     actor.ID,
		Description:    "Escrow for proposal " + proposal.ID,
	})
	if err != nil {
		return nil, gatewayError(err)
	}
	switch charge.Status {
	case service.PaymentStatusSuccess:
	case service.PaymentStatusPending:
		return nil, errors.PaymentRequired("Complete the payment, then retry with the same idempotency key").
			WithDetails(map[string]string{
				"redirect_url": charge.RedirectURL,
				"reference":    charge.Reference,
			})
	case service.PaymentStatusRefunded:
		return nil, errors.Conflict("This payment was refunded, retry with a new idempotency key")
	default:
		return nil, errors.BadRequest("Payment was declined", nil)
	}

	title := "Visa application"
	if vr, err := uc.visaRequestRepo.GetByID(ctx, proposal.VisaRequestID); err == nil && vr.Title != "" {
		title = vr.Title
	}

	escrowID := uuid.New().String()
	milestoneIDs := make([]string, len(proposal.Milestones))
	for i := range milestoneIDs {
		milestoneIDs[i] = uuid.New().String()
	}

	var (
		escrow  *entity.Escrow
		created *entity.Case
	)
	err = uc.ledger.RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		now := uc.now()

		p, err := tx.GetProposal(proposal.ID)
		if err != nil {
			return err
		}
		if p.EscrowID != "" {
			return errors.Conflict("Escrow already exists for this proposal")
		}
		if p.Version != proposal.Version {
			return errors.Conflict("Proposal changed while funding, please retry")
		}

		e := &entity.Escrow{
			ID:               escrowID,
			ClientID:         p.ClientID,
			AgentID:          p.AgentID,
			ProposalID:       p.ID,
			VisaRequestID:    p.VisaRequestID,
			Amount:           input.Amount,
			Currency:         currency,
			PaymentMethod:    input.PaymentMethod,
			PaymentReference: charge.Reference,
			Fees:             uc.fees.compute(input.Amount),
			Status:           entity.EscrowStatusDeposited,
		}
		if len(p.Milestones) == 0 {
			e.Milestones = []entity.EscrowMilestone{{
				ID:          uuid.New().String(),
				Order:       1,
				Description: "Full service",
				Amount:      input.Amount,
				Status:      entity.EscrowMilestonePending,
			}}
		} else {
			for i, pm := range p.Milestones {
				description := pm.Description
				if description == "" {
					description = pm.Title
				}
				e.Milestones = append(e.Milestones, entity.EscrowMilestone{
					ID:          milestoneIDs[i],
					Order:       i + 1,
					Description: description,
					Amount:      pm.Amount,
					Status:      entity.EscrowMilestonePending,
				})
			}
		}

		c := newCase(e, p, title, now)
		e.CaseID = c.ID
		e.AddTimeline(entity.EventEscrowFunded,
			fmt.Sprintf("Escrow funded with %.2f %s via %s", e.Amount, e.Currency, e.PaymentMethod), actor.ID, now)

		p.Status = entity.ProposalStatusAccepted
		p.EscrowID = e.ID
		p.CaseID = c.ID
		accepted := now
		p.AcceptedAt = &accepted

		if err := tx.CreateEscrow(e); err != nil {
			return err
		}
		if err := tx.CreateCase(c); err != nil {
			return err
		}
		if err := tx.UpdateProposal(p); err != nil {
			return err
		}

		escrow = e
		created = c
		return nil
	})
	if err != nil {
		uc.compensateCharge(ctx, proposal.ID, chargeKey, charge.Reference, input.Amount)
		logOutcome(escrowID, "fund", actor.ID, err)
		return nil, err
	}
	logOutcome(escrow.ID, "fund", actor.ID, nil)

	uc.moveVisaRequest(ctx, escrow.VisaRequestID, entity.VisaRequestStatusOpen, entity.VisaRequestStatusInProgress)

	notifyAll(ctx, uc.notifier, []service.Notice{{
		RecipientID: escrow.AgentID,
		Event:       entity.EventEscrowFundedNotice,
		Title:       "Escrow funded",
		Message:     fmt.Sprintf("The client funded %.2f %s. Case %q is open.", escrow.Amount, escrow.Currency, created.Title),
		Priority:    entity.PriorityHigh,
		Category:    entity.CategorySuccess,
		EntityID:    escrow.ID,
		Data:        map[string]interface{}{"escrow_id": escrow.ID, "case_id": created.ID},
	}})

	return escrow, nil
}

// compensateCharge refunds a charge whose ledger transaction failed. A
// proposal that carries an escrow means a concurrent attempt committed with
// the same charge, which must then be kept.
func (uc *EscrowUseCase) compensateCharge(ctx context.Context, proposalID, chargeKey, reference string, amount float64) {
	current, err := uc.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		logger.Error("Failed to re-read proposal %s before refunding charge %s: %v", proposalID, reference, err)
		return
	}
	if current.EscrowID != "" {
		return
	}

	_, err = uc.gateway.Refund(ctx, service.RefundRequest{
		IdempotencyKey: chargeKey + "-compensation",
		Reference:      reference,
		Amount:         amount,
		Reason:         "Escrow creation failed",
	})
	if err != nil {
		logger.Error("Failed to refund charge %s for proposal %s: %v", reference, proposalID, err)
		return
	}
	logger.Warn("Refunded charge %s after failed escrow creation for proposal %s", reference, proposalID)
}

// moveVisaRequest moves a visa request from one status to another after an
// escrow commit. Failures are logged, the escrow outcome stands.
func (uc *EscrowUseCase) moveVisaRequest(ctx context.Context, visaRequestID, from, to string) {
	if visaRequestID == "" {
		return
	}
	vr, err := uc.visaRequestRepo.GetByID(ctx, visaRequestID)
	if err != nil {
		logger.Warn("Failed to load visa request %s: %v", visaRequestID, err)
		return
	}
	if vr.Status != from {
		return
	}
	vr.Status = to
	vr.UpdatedAt = uc.now()
	if err := uc.visaRequestRepo.Update(ctx, vr); err != nil {
		logger.Warn("Failed to update visa request %s: %v", visaRequestID, err)
	}
}

// Release pays out one milestone, or everything still held when no milestone
// is given. The mirrored case milestones are approved in the same transaction.
func (uc *EscrowUseCase) Release(ctx context.Context, actor Actor, escrowID string, input ReleaseInput) (*entity.Escrow, error) {
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
			return errors.InvalidState(fmt.Sprintf("Escrow cannot be released in status %s", e.Status))
		}

		var released float64
		var releasedIDs []string
		if input.MilestoneID != "" {
			_, m := e.Milestone(input.MilestoneID)
			if m == nil {
				return errors.NotFound("Milestone", nil)
			}
			if m.Status == entity.EscrowMilestoneCompleted {
				return errors.Conflict("Milestone has already been released")
			}
			if input.Amount != nil && !money.Equal(*input.Amount, m.Amount) {
				return errors.Validation(fmt.Sprintf("Release amount must equal the milestone amount %.2f", m.Amount))
			}
			completeMilestone(m, now)
			released = m.Amount
			releasedIDs = []string{m.ID}

			if e.AllMilestonesCompleted() {
				e.Status = entity.EscrowStatusCompleted
			} else {
				e.Status = entity.EscrowStatusInProgress
			}
			e.AddTimeline(entity.EventMilestoneRelease,
				describeRelease(fmt.Sprintf("Milestone %q released (%.2f)", m.Description, m.Amount), input.Reason), actor.ID, now)
		} else {
			remaining := money.Sub(e.Amount, releasedAmount(e))
			if input.Amount != nil && !money.Equal(*input.Amount, remaining) {
				return errors.Validation(fmt.Sprintf("Release amount must equal the remaining amount %.2f", remaining))
			}
			for i := range e.Milestones {
				if e.Milestones[i].Status != entity.EscrowMilestoneCompleted {
					completeMilestone(&e.Milestones[i], now)
					releasedIDs = append(releasedIDs, e.Milestones[i].ID)
				}
			}
			released = remaining
			e.Status = entity.EscrowStatusCompleted
			e.AddTimeline(entity.EventEscrowReleased,
				describeRelease(fmt.Sprintf("Escrow released in full (%.2f)", remaining), input.Reason), actor.ID, now)
		}

		caseCompleted := false
		if c != nil {
			wasCompleted := c.Status == entity.CaseStatusCompleted
			changed := false
			for _, id := range releasedIDs {
				if approveMirrored(c, id, now) {
					changed = true
				}
			}
			if changed {
				c.AddTimeline(entity.EventPaymentReleased, fmt.Sprintf("Payment of %.2f released from escrow", released), actor.ID, now)
				syncCaseState(c, actor.ID, now)
				caseCompleted = !wasCompleted && c.Status == entity.CaseStatusCompleted
			}
		}

		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}
		if c != nil {
			if err := tx.UpdateCase(c); err != nil {
				return err
			}
		}

		message := fmt.Sprintf("%.2f %s has been released", released, e.Currency)
		for _, recipient := range recipientsExcept(actor.ID, e.ClientID, e.AgentID) {
			notices = append(notices, service.Notice{
				RecipientID: recipient,
				Event:       entity.EventEscrowReleasedNotice,
				Title:       "Payment released",
				Message:     message,
				Priority:    entity.PriorityHigh,
				Category:    entity.CategorySuccess,
				EntityID:    e.ID,
				Data:        map[string]interface{}{"escrow_id": e.ID, "amount": released, "status": e.Status},
			})
		}
		if caseCompleted {
			notices = append(notices, caseStatusNotices(c, "Case completed", "All milestones are approved and the case is complete")...)
		}

		escrow = e
		return nil
	})
	logOutcome(escrowID, "release", actor.ID, err)
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, uc.notifier, notices)
	return escrow, nil
}

func (uc *EscrowUseCase) Status(ctx context.Context, actor Actor, escrowID string) (*EscrowView, error) {
	escrow, err := uc.Get(ctx, actor, escrowID)
	if err != nil {
		return nil, err
	}
	return NewEscrowView(escrow), nil
}

func NewEscrowView(e *entity.Escrow) *EscrowView {
	completed := 0
	for _, m := range e.Milestones {
		if m.Status == entity.EscrowMilestoneCompleted {
			completed++
		}
	}
	released := releasedAmount(e)
	return &EscrowView{
		EscrowID:        e.ID,
		Status:          e.Status,
		Amount:          e.Amount,
		Currency:        e.Currency,
		ReleasedAmount:  released,
		RemainingAmount: money.Sub(e.Amount, released),
		RefundedAmount:  e.RefundedAmount,
		Progress:        money.Ratio(completed, len(e.Milestones)),
		Fees:            e.Fees,
		Milestones:      e.Milestones,
		Dispute:         e.Dispute,
	}
}

func (uc *EscrowUseCase) Get(ctx context.Context, actor Actor, escrowID string) (*entity.Escrow, error) {
	escrow, err := uc.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !escrow.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, errors.Forbidden("You don't have permission to view this escrow", nil)
	}
	return escrow, nil
}

func (uc *EscrowUseCase) ListMine(ctx context.Context, actor Actor, status string, limit, offset int) ([]*entity.Escrow, int64, error) {
	return uc.escrowRepo.ListByUser(ctx, actor.ID, actor.Role, status, limit, offset)
}

// lockEscrow locks an escrow and its case. The escrow is read first to find
// the case id; non-parties are turned away before any lock is taken.
func (uc *EscrowUseCase) lockEscrow(ctx context.Context, actor Actor, escrowID string) (func(), error) {
	escrow, err := uc.escrowRepo.GetByID(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !escrow.IsParty(actor.ID) && !actor.IsAdmin() {
		return nil, errors.Forbidden("You are not a party to this escrow", nil)
	}

	keys := []string{"escrow:" + escrow.ID}
	if escrow.CaseID != "" {
		keys = append(keys, "case:"+escrow.CaseID)
	}
	return acquire(ctx, uc.locker, keys...)
}

func readEscrowAndCase(tx repository.LedgerTx, escrowID string) (*entity.Escrow, *entity.Case, error) {
	e, err := tx.GetEscrow(escrowID)
	if err != nil {
		return nil, nil, err
	}
	if e.CaseID == "" {
		return e, nil, nil
	}
	c, err := tx.GetCase(e.CaseID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			logger.Warn("Escrow %s points at missing case %s", e.ID, e.CaseID)
			return e, nil, nil
		}
		return nil, nil, err
	}
	return e, c, nil
}

func gatewayError(err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errors.Internal("Payment gateway error", err)
}

func completeMilestone(m *entity.EscrowMilestone, now time.Time) {
	m.Status = entity.EscrowMilestoneCompleted
	if m.CompletedAt == nil {
		done := now
		m.CompletedAt = &done
	}
}

func releasedAmount(e *entity.Escrow) float64 {
	var amounts []float64
	for _, m := range e.Milestones {
		if m.Status == entity.EscrowMilestoneCompleted {
			amounts = append(amounts, m.Amount)
		}
	}
	return money.Sum(amounts...)
}

func describeRelease(description, reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return description + ": " + reason
	}
	return description
}

// recipientsExcept returns the parties other than the actor. An admin acting
// on an escrow notifies both parties.
func recipientsExcept(actorID string, parties ...string) []string {
	var out []string
	for _, p := range parties {
		if p != "" && p != actorID {
			out = append(out, p)
		}
	}
	return out
}

func caseStatusNotices(c *entity.Case, title, message string) []service.Notice {
	var notices []service.Notice
	for _, recipient := range []string{c.ClientID, c.AgentID} {
		notices = append(notices, service.Notice{
			RecipientID: recipient,
			Event:       entity.EventCaseStatusChanged,
			Title:       title,
			Message:     message,
			Priority:    entity.PriorityHigh,
			Category:    entity.CategoryInfo,
			EntityID:    c.ID,
			Data:        map[string]interface{}{"case_id": c.ID, "status": c.Status},
		})
	}
	return notices
}
