package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
)

var qualityDispute = HoldInput{
	Reason:      "quality",
	Description: "The submitted documents were incomplete twice",
	Evidence:    []string{"https://storage.example.com/evidence.png"},
}

func TestHoldOpensDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	e, err := f.escrows.Hold(ctx, client, escrow.ID, qualityDispute)
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusDisputed, e.Status)
	require.NotNil(t, e.Dispute)
	assert.Equal(t, entity.DisputeStatusOpen, e.Dispute.Status)
	assert.Equal(t, client.ID, e.Dispute.CreatedBy)
	assert.Equal(t, entity.EscrowStatusDeposited, e.Dispute.PreviousStatus)
	assert.Equal(t, 1, entity.CountEvents(e.Timeline, entity.EventDisputeRaised))

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusDisputed, c.Status)

	assert.Equal(t, []string{entity.EventEscrowDisputedNotice}, f.notifier.events(agent.ID))
	assert.Equal(t, []string{entity.EventEscrowDisputedNotice}, f.notifier.events(service.AdminChannel))
	assert.Empty(t, f.notifier.events(client.ID))

	_, err = f.escrows.Hold(ctx, agent, escrow.ID, qualityDispute)
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)
}

func TestHoldValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 1000)

	_, err := f.escrows.Hold(ctx, client, escrow.ID, HoldInput{Reason: "quality", Description: "too short"})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	_, err = f.escrows.Hold(ctx, client, escrow.ID, HoldInput{Description: qualityDispute.Description})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	_, err = f.escrows.Hold(ctx, stranger, escrow.ID, qualityDispute)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)
}

func TestDisputeFreezesPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)
	f.finishMilestone(t, c.ID, 0)

	_, err := f.escrows.Hold(ctx, agent, escrow.ID, qualityDispute)
	require.NoError(t, err)

	_, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	_, err = f.cases.ApproveMilestone(ctx, client, c.ID, 0, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)
}

func TestEscalateDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 1000)

	_, err := f.escrows.EscalateDispute(ctx, agent, escrow.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	_, err = f.escrows.Hold(ctx, client, escrow.ID, qualityDispute)
	require.NoError(t, err)
	f.notifier.reset()

	e, err := f.escrows.EscalateDispute(ctx, agent, escrow.ID, "client is unresponsive")
	require.NoError(t, err)
	assert.Equal(t, entity.DisputeStatusEscalated, e.Dispute.Status)
	assert.Equal(t, entity.EscrowStatusDisputed, e.Status)
	assert.Equal(t, 1, entity.CountEvents(e.Timeline, entity.EventDisputeEscalated))
	assert.Contains(t, f.notifier.events(service.AdminChannel), entity.EventEscrowDisputedNotice)
	assert.Contains(t, f.notifier.events(client.ID), entity.EventEscrowDisputedNotice)

	_, err = f.escrows.EscalateDispute(ctx, client, escrow.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)
}

func TestResolveDisputeContinue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)
	_, err = f.escrows.Hold(ctx, client, escrow.ID, qualityDispute)
	require.NoError(t, err)

	e, err := f.escrows.ResolveDispute(ctx, admin, escrow.ID, ResolveDisputeInput{
		Resolution: entity.DisputeResolutionContinue,
		Note:       "agent provided the missing documents",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusInProgress, e.Status)
	assert.Equal(t, entity.DisputeStatusResolved, e.Dispute.Status)
	assert.Equal(t, entity.DisputeResolutionContinue, e.Dispute.Resolution)
	assert.Equal(t, admin.ID, e.Dispute.ResolvedBy)
	assert.NotNil(t, e.Dispute.ResolvedAt)

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusActive, c.Status)
	assert.True(t, c.Milestones[1].IsActive)
	assert.Equal(t, 1, c.ActiveCount())

	_, err = f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[1].ID})
	assert.NoError(t, err)
}

func TestResolveDisputeRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Hold(ctx, agent, escrow.ID, qualityDispute)
	require.NoError(t, err)

	e, err := f.escrows.ResolveDispute(ctx, admin, escrow.ID, ResolveDisputeInput{Resolution: entity.DisputeResolutionRelease})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusCompleted, e.Status)
	assert.True(t, e.AllMilestonesCompleted())

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCompleted, c.Status)
	assert.Equal(t, 100, c.Progress)
	assert.Equal(t, 1000.0, c.PaidAmount)
	assert.Equal(t, 1, entity.CountEvents(c.Timeline, entity.EventCaseCompleted))
}

func TestResolveDisputeRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)
	_, err = f.escrows.Hold(ctx, client, escrow.ID, qualityDispute)
	require.NoError(t, err)

	e, err := f.escrows.ResolveDispute(ctx, admin, escrow.ID, ResolveDisputeInput{Resolution: entity.DisputeResolutionRefund})
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusRefunded, e.Status)
	assert.Equal(t, 600.0, e.RefundedAmount)
	assert.Equal(t, 400.0, f.gateway.Charged(e.PaymentReference))

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCancelled, c.Status)
	assert.Equal(t, 400.0, c.PaidAmount)
}

func TestResolveDisputeChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 1000)

	_, err := f.escrows.ResolveDispute(ctx, admin, escrow.ID, ResolveDisputeInput{Resolution: entity.DisputeResolutionContinue})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	_, err = f.escrows.Hold(ctx, client, escrow.ID, qualityDispute)
	require.NoError(t, err)

	_, err = f.escrows.ResolveDispute(ctx, client, escrow.ID, ResolveDisputeInput{Resolution: entity.DisputeResolutionRefund})
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	_, err = f.escrows.ResolveDispute(ctx, admin, escrow.ID, ResolveDisputeInput{Resolution: "split"})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)
}

func TestRefundReturnsUnreleasedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)
	f.notifier.reset()

	_, err = f.escrows.Refund(ctx, client, escrow.ID, "changed my mind")
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	e, err := f.escrows.Refund(ctx, agent, escrow.ID, "cannot take the case")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusRefunded, e.Status)
	assert.Equal(t, 600.0, e.RefundedAmount)
	assert.Equal(t, 400.0, f.gateway.Charged(e.PaymentReference))
	assert.Equal(t, 1, entity.CountEvents(e.Timeline, entity.EventEscrowRefunded))
	assert.Equal(t, []string{entity.EventEscrowRefundedNotice}, f.notifier.events(client.ID))

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCancelled, c.Status)

	_, err = f.escrows.Refund(ctx, agent, escrow.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)
}

func TestCancelReopensProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, c := f.fund(t, 400, 600)

	_, err := f.escrows.Cancel(ctx, agent, escrow.ID, "")
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	e, err := f.escrows.Cancel(ctx, client, escrow.ID, "found another agent")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusCancelled, e.Status)
	assert.Equal(t, 1000.0, e.RefundedAmount)
	assert.Equal(t, 0.0, f.gateway.Charged(e.PaymentReference))
	assert.Equal(t, []string{entity.EventEscrowCancelledNotice}, f.notifier.events(agent.ID))

	c = f.reloadCase(t, c.ID)
	assert.Equal(t, entity.CaseStatusCancelled, c.Status)
	assert.Equal(t, 1, entity.CountEvents(c.Timeline, entity.EventCaseStatusUpdated))

	proposal, err := f.store.Proposals().GetByID(ctx, escrow.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusPending, proposal.Status)
	assert.Empty(t, proposal.EscrowID)
	assert.Nil(t, proposal.AcceptedAt)

	request, err := f.store.VisaRequests().GetByID(ctx, proposal.VisaRequestID)
	require.NoError(t, err)
	assert.Equal(t, entity.VisaRequestStatusOpen, request.Status)

	again, err := f.escrows.Fund(ctx, client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "card"})
	require.NoError(t, err)
	assert.NotEqual(t, escrow.ID, again.ID)
	assert.NotEqual(t, escrow.PaymentReference, again.PaymentReference)
}

func TestCancelAfterReleaseRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	escrow, _ := f.fund(t, 400, 600)

	_, err := f.escrows.Release(ctx, client, escrow.ID, ReleaseInput{MilestoneID: escrow.Milestones[0].ID})
	require.NoError(t, err)

	_, err = f.escrows.Cancel(ctx, client, escrow.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	e := f.reloadEscrow(t, escrow.ID)
	assert.Equal(t, 1000.0, f.gateway.Charged(e.PaymentReference))
}
