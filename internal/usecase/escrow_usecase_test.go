package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/money"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Charge(ctx context.Context, req service.ChargeRequest) (*service.ChargeResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*service.ChargeResult)
	return res, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req service.RefundRequest) (*service.RefundResult, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*service.RefundResult)
	return res, args.Error(1)
}

func TestFundCreatesEscrowAndCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 400, 600)

	escrow, err := f.escrows.Fund(ctx, client, FundEscrowInput{
		ProposalID:    proposal.ID,
		Amount:        1000,
		PaymentMethod: "bank_transfer",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.EscrowStatusDeposited, escrow.Status)
	require.Len(t, escrow.Milestones, 2)
	assert.Equal(t, escrow.Amount, money.Sum(escrow.Milestones[0].Amount, escrow.Milestones[1].Amount))
	for _, m := range escrow.Milestones {
		assert.Equal(t, entity.EscrowMilestonePending, m.Status)
		assert.NotEmpty(t, m.ID)
	}
	assert.Equal(t, entity.Fees{Platform: 50, Payment: 29, Total: 79}, escrow.Fees)
	require.Len(t, escrow.Timeline, 1)
	assert.Equal(t, entity.EventEscrowFunded, escrow.Timeline[0].Event)
	assert.Equal(t, 1000.0, f.gateway.Charged(escrow.PaymentReference))

	c := f.reloadCase(t, escrow.CaseID)
	assert.Equal(t, escrow.ID, c.EscrowID)
	assert.Equal(t, entity.CaseStatusActive, c.Status)
	assert.Equal(t, "Schengen tourist visa", c.Title)
	require.Len(t, c.Milestones, 2)
	assert.True(t, c.Milestones[0].IsActive)
	assert.Equal(t, entity.MilestoneStatusInProgress, c.Milestones[0].Status)
	assert.NotNil(t, c.Milestones[0].StartedAt)
	assert.False(t, c.Milestones[1].IsActive)
	assert.Equal(t, entity.MilestoneStatusPending, c.Milestones[1].Status)
	assert.Equal(t, 1, c.CurrentMilestone)
	assert.Equal(t, 0, c.Progress)
	for i := range c.Milestones {
		assert.Equal(t, escrow.Milestones[i].ID, c.Milestones[i].EscrowMilestoneID)
	}

	stored, err := f.store.Proposals().GetByID(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusAccepted, stored.Status)
	assert.Equal(t, escrow.ID, stored.EscrowID)
	assert.Equal(t, c.ID, stored.CaseID)
	assert.NotNil(t, stored.AcceptedAt)

	request, err := f.store.VisaRequests().GetByID(ctx, proposal.VisaRequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.VisaRequestStatusInProgress, request.Status)

	assert.Equal(t, []string{entity.EventEscrowFundedNotice}, f.notifier.events(agent.ID))
	assert.Empty(t, f.notifier.events(client.ID))
}

func TestFundRejectsSecondEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 400, 600)
	input := FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"}

	_, err := f.escrows.Fund(ctx, client, input)
	require.NoError(t, err)

	_, err = f.escrows.Fund(ctx, client, input)
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)

	escrows, total, err := f.escrows.ListMine(ctx, client, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, escrows, 1)
}

func TestFundValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 400, 600)

	tests := []struct {
		name  string
		actor Actor
		input FundEscrowInput
		code  string
	}{
		{"milestones do not add up", client, FundEscrowInput{ProposalID: proposal.ID, Amount: 900, PaymentMethod: "card"}, errors.CodeValidation},
		{"missing payment method", client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000}, errors.CodeValidation},
		{"zero amount", client, FundEscrowInput{ProposalID: proposal.ID, PaymentMethod: "card"}, errors.CodeValidation},
		{"sub-cent amount", client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000.001, PaymentMethod: "card"}, errors.CodeValidation},
		{"not the client", stranger, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"}, errors.CodeForbidden},
		{"unknown proposal", client, FundEscrowInput{ProposalID: "missing", Amount: 1000, PaymentMethod: "card"}, errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.escrows.Fund(ctx, tt.actor, tt.input)
			assert.True(t, errors.Is(err, tt.code), "want %s, got %v", tt.code, err)
		})
	}
}

func TestFundRejectsWithdrawnProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 1000)

	_, err := f.proposals.Withdraw(ctx, agent, proposal.ID)
	require.NoError(t, err)

	_, err = f.escrows.Fund(ctx, client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)
}

func TestFundWithoutMilestonesUsesSingleMilestone(t *testing.T) {
	f := newFixture(t)
	proposal := f.seedProposal(t)

	escrow, err := f.escrows.Fund(context.Background(), client, FundEscrowInput{
		ProposalID:    proposal.ID,
		Amount:        750,
		PaymentMethod: "card",
	})
	require.NoError(t, err)

	require.Len(t, escrow.Milestones, 1)
	assert.Equal(t, "Full service", escrow.Milestones[0].Description)
	assert.Equal(t, 750.0, escrow.Milestones[0].Amount)

	c := f.reloadCase(t, escrow.CaseID)
	require.Len(t, c.Milestones, 1)
	assert.True(t, c.Milestones[0].IsActive)
	assert.Equal(t, escrow.Milestones[0].ID, c.Milestones[0].EscrowMilestoneID)
}

func TestFundRefundsChargeWhenLedgerFails(t *testing.T) {
	f := newFixture(t)
	proposal := f.seedProposal(t, 400, 600)
	chargeKey := fmt.Sprintf("escrow-fund-%s-v1", proposal.ID)

	gateway := &mockGateway{}
	gateway.On("Charge", mock.MatchedBy(func(req service.ChargeRequest) bool {
		return req.IdempotencyKey == chargeKey && req.Amount == 1000
	})).Return(&service.ChargeResult{Reference: "ref-1", Status: service.PaymentStatusSuccess}, nil).Once()
	gateway.On("Refund", mock.MatchedBy(func(req service.RefundRequest) bool {
		return req.Reference == "ref-1" && req.Amount == 1000
	})).Return(&service.RefundResult{Reference: "ref-1", Status: service.PaymentStatusRefunded}, nil).Once()

	notifier := &recordingNotifier{}
	uc := NewEscrowUseCase(failingLedger{err: errors.Internal("ledger unavailable", nil)},
		f.store.Escrows(), f.store.Proposals(), f.store.VisaRequests(), gateway, nil, notifier, DefaultFeeConfig())

	_, err := uc.Fund(context.Background(), client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"})
	assert.True(t, errors.Is(err, errors.CodeInternal), "got %v", err)

	gateway.AssertExpectations(t)
	assert.Empty(t, notifier.notices)

	stored, err := f.store.Proposals().GetByID(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.EscrowID)
	assert.Equal(t, entity.ProposalStatusPending, stored.Status)
}

func TestFundPendingPaymentReturnsRedirect(t *testing.T) {
	f := newFixture(t)
	proposal := f.seedProposal(t, 1000)

	gateway := &mockGateway{}
	gateway.On("Charge", mock.Anything).Return(&service.ChargeResult{
		Reference:   "order-1",
		Status:      service.PaymentStatusPending,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/abc",
	}, nil)

	uc := NewEscrowUseCase(f.store.Ledger(), f.store.Escrows(), f.store.Proposals(), f.store.VisaRequests(),
		gateway, nil, nil, DefaultFeeConfig())

	_, err := uc.Fund(context.Background(), client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.CodePayment, appErr.Code)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "https://app.sandbox.midtrans.com/snap/v2/vtweb/abc", details["redirect_url"])

	_, err = f.store.Escrows().GetByProposalID(context.Background(), proposal.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
	gateway.AssertNotCalled(t, "Refund", mock.Anything)
}

func TestFundRefundedChargeNeedsNewKey(t *testing.T) {
	f := newFixture(t)
	proposal := f.seedProposal(t, 1000)

	gateway := &mockGateway{}
	gateway.On("Charge", mock.Anything).Return(&service.ChargeResult{Reference: "ref-9", Status: service.PaymentStatusRefunded}, nil)
	uc := NewEscrowUseCase(f.store.Ledger(), f.store.Escrows(), f.store.Proposals(), f.store.VisaRequests(),
		gateway, nil, nil, DefaultFeeConfig())

	_, err := uc.Fund(context.Background(), client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"})
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)
}

func TestReleaseMilestonesEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	assert.Equal(t, entity.EscrowStatusDeposited, escrow.Status)
	assert.True(t, c.Milestones[0].IsActive)

	e, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowMilestoneCompleted, e.Milestones[0].Status)
	assert.NotNil(t, e.Milestones[0].CompletedAt)
	assert.Equal(t, entity.EscrowStatusInProgress, e.Status)

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.MilestoneStatusApproved, c.Milestones[0].Status)
	assert.NotNil(t, c.Milestones[0].ApprovedAt)
	assert.True(t, c.Milestones[1].IsActive)
	assert.Equal(t, 1, c.ActiveCount())
	assert.Equal(t, 2, c.CurrentMilestone)
	assert.Equal(t, 50, c.Progress)
	assert.Equal(t, 400.0, c.PaidAmount)

	assert.Equal(t, []string{entity.EventEscrowReleasedNotice}, f.notifier.events(agent.ID))
	assert.Empty(t, f.notifier.events(client.ID))

	e, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[1].ID})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusCompleted, e.Status)
	assert.Equal(t, 2, entity.CountEvents(e.Timeline, entity.EventMilestoneRelease))

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCompleted, c.Status)
	assert.Equal(t, 100, c.Progress)
	assert.Equal(t, 1000.0, c.PaidAmount)
	assert.NotNil(t, c.ActualCompletionDate)
	assert.Equal(t, 1, entity.CountEvents(c.Timeline, entity.EventCaseCompleted))
}

func TestReleaseSameMilestoneTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 400, 600)
	input := ReleaseInput{MilestoneID: escrow.Milestones[0].ID}

	_, err := f.escrows.Release(ctx, client, escrow.ID, input)
	require.NoError(t, err)

	_, err = f.escrows.Release(ctx, agent, escrow.ID, input)
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)

	e := f.reloadEscrow(t, escrow.ID)
	assert.Len(t, e.Timeline, 2)
}

func TestConcurrentReleasePaysOnce(t *testing.T) {
	f := newFixture(t)
	escrow, c := f.fund(t, 400, 600)
	input := ReleaseInput{MilestoneID: escrow.Milestones[0].ID}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.escrows.Release(context.Background(), client, escrow.ID, input)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, conflicts)

	e := f.reloadEscrow(t, escrow.ID)
	assert.Equal(t, 1, entity.CountEvents(e.Timeline, entity.EventMilestoneRelease))
	c = f.reloadCase(t, c.ID)
	assert.Equal(t, 400.0, c.PaidAmount)
	assert.Equal(t, 1, entity.CountEvents(c.Timeline, entity.EventPaymentReleased))
}

func TestReleaseFullEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)

	wrong := 1000.0
	_, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{Amount: &wrong})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	remaining := 600.0
	e, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{Amount: &remaining, Reason: "visa granted"})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusCompleted, e.Status)
	assert.True(t, e.AllMilestonesCompleted())
	last := e.Timeline[len(e.Timeline)-1]
	assert.Equal(t, entity.EventEscrowReleased, last.Event)
	assert.Contains(t, last.Description, "visa granted")

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCompleted, c.Status)
	assert.Equal(t, 1, entity.CountEvents(c.Timeline, entity.EventCaseCompleted))
}

func TestReleaseChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 400, 600)
	amount := 100.0

	_, err := f.escrows.Release(ctx, stranger, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	_, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: "nope"})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)

	_, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID, Amount: &amount})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	_, err = f.escrows.Release(ctx, client, "missing", ReleaseInput{})
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
}

func TestAdminReleaseNotifiesBothParties(t *testing.T) {
	f := newFixture(t)
	escrow, _ := f.fund(t, 400, 600)

	_, err := f.escrows.Release(context.Background(), admin, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)

	assert.Equal(t, []string{entity.EventEscrowReleasedNotice}, f.notifier.events(client.ID))
	assert.Equal(t, []string{entity.EventEscrowReleasedNotice}, f.notifier.events(agent.ID))
}

func TestStatusComputesAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, agent, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)

	view, err := f.escrows.Status(ctx, client, escrow.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusInProgress, view.Status)
	assert.Equal(t, 50.0, view.Progress)
	assert.Equal(t, 400.0, view.ReleasedAmount)
	assert.Equal(t, 600.0, view.RemainingAmount)

	_, err = f.escrows.Status(ctx, admin, escrow.ID)
	assert.NoError(t, err)

	_, err = f.escrows.Status(ctx, stranger, escrow.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)
}

func TestListMineFiltersByParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, 1000)

	_, total, err := f.escrows.ListMine(ctx, client, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = f.escrows.ListMine(ctx, agent, entity.EscrowStatusDeposited, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, total, err = f.escrows.ListMine(ctx, stranger, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
