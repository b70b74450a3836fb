package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

func openRequest(t *testing.T, f *fixture) *entity.VisaRequest {
	t.Helper()
	requests := NewVisaRequestUseCase(f.store.VisaRequests())
	request, err := requests.Create(context.Background(), client, CreateVisaRequestInput{
		Title:              "Student visa for Germany",
		VisaType:           "student",
		DestinationCountry: "DE",
		Budget:             2500000,
	})
	require.NoError(t, err)
	return request
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	request := openRequest(t, f)

	proposal, err := f.proposals.Create(ctx, agent, CreateProposalInput{
		VisaRequestID: request.ID,
		CoverLetter:   "  Ten years of student visa filings  ",
		TotalAmount:   1500000,
		EstimatedDays: 21,
		Milestones: []entity.ProposalMilestone{
			{Title: "Documents", Amount: 500000},
			{Title: "Embassy appointment", Amount: 1000000},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, proposal.ID)
	assert.Equal(t, client.ID, proposal.ClientID)
	assert.Equal(t, "IDR", proposal.Currency)
	assert.Equal(t, "Ten years of student visa filings", proposal.CoverLetter)
	assert.Equal(t, entity.ProposalStatusPending, proposal.Status)
	assert.Equal(t, []string{entity.EventProposalNew}, f.notifier.events(client.ID))

	stored, err := f.store.VisaRequests().GetByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ProposalCount)

	_, err = f.proposals.Create(ctx, agent, CreateProposalInput{VisaRequestID: request.ID, TotalAmount: 900000})
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)
}

func TestCreateProposalValidation(t *testing.T) {
	f := newFixture(t)
	request := openRequest(t, f)

	tests := []struct {
		name  string
		actor Actor
		input CreateProposalInput
		code  string
	}{
		{"client cannot propose", client, CreateProposalInput{VisaRequestID: request.ID, TotalAmount: 100}, errors.CodeForbidden},
		{"zero amount", agent, CreateProposalInput{VisaRequestID: request.ID}, errors.CodeValidation},
		{"fractional cents", agent, CreateProposalInput{VisaRequestID: request.ID, TotalAmount: 10.005}, errors.CodeValidation},
		{"milestones off total", agent, CreateProposalInput{
			VisaRequestID: request.ID,
			TotalAmount:   1000,
			Milestones:    []entity.ProposalMilestone{{Amount: 400}, {Amount: 500}},
		}, errors.CodeValidation},
		{"negative milestone", agent, CreateProposalInput{
			VisaRequestID: request.ID,
			TotalAmount:   1000,
			Milestones:    []entity.ProposalMilestone{{Amount: 1100}, {Amount: -100}},
		}, errors.CodeValidation},
		{"unknown request", agent, CreateProposalInput{VisaRequestID: "missing", TotalAmount: 100}, errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.proposals.Create(context.Background(), tt.actor, tt.input)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestRejectAndWithdrawProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 1000)

	_, err := f.proposals.Reject(ctx, agent, proposal.ID, "")
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	rejected, err := f.proposals.Reject(ctx, client, proposal.ID, "Found a cheaper agent")
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusRejected, rejected.Status)
	assert.Equal(t, "Found a cheaper agent", rejected.RejectionReason)
	assert.Equal(t, []string{entity.EventProposalUpdated}, f.notifier.events(agent.ID))

	_, err = f.proposals.Withdraw(ctx, agent, proposal.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	_, err = f.escrows.Fund(ctx, client, FundEscrowInput{ProposalID: proposal.ID, Amount: 1000, PaymentMethod: "bank_transfer"})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	other := f.seedProposal(t, 500)
	withdrawn, err := f.proposals.Withdraw(ctx, agent, other.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusWithdrawn, withdrawn.Status)
}

func TestFundedProposalCannotBeWithdrawn(t *testing.T) {
	f := newFixture(t)
	escrow, _ := f.fund(t, 1000)

	_, err := f.proposals.Withdraw(context.Background(), agent, escrow.ProposalID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	p, err := f.store.Proposals().GetByID(context.Background(), escrow.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProposalStatusAccepted, p.Status)
	assert.Equal(t, escrow.ID, p.EscrowID)
}

func TestProposalVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	proposal := f.seedProposal(t, 1000)

	for _, actor := range []Actor{client, agent, admin} {
		_, err := f.proposals.Get(ctx, actor, proposal.ID)
		assert.NoError(t, err, actor.ID)
	}
	_, err := f.proposals.Get(ctx, stranger, proposal.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	list, total, err := f.proposals.ListForVisaRequest(ctx, client, proposal.VisaRequestID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, proposal.ID, list[0].ID)

	_, _, err = f.proposals.ListForVisaRequest(ctx, agent, proposal.VisaRequestID, 10, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	mine, total, err := f.proposals.ListMine(ctx, agent, entity.ProposalStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, mine, 1)

	_, _, err = f.proposals.ListMine(ctx, client, "", 10, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)
}

func TestVisaRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	requests := NewVisaRequestUseCase(f.store.VisaRequests())

	_, err := requests.Create(ctx, agent, CreateVisaRequestInput{Title: "x", VisaType: "work", DestinationCountry: "JP"})
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)
	_, err = requests.Create(ctx, client, CreateVisaRequestInput{Title: " ", VisaType: "work", DestinationCountry: "JP"})
	assert.True(t, errors.Is(err, errors.CodeValidation), "got %v", err)

	request := openRequest(t, f)
	assert.Equal(t, entity.VisaRequestStatusOpen, request.Status)
	assert.Equal(t, "IDR", request.Currency)

	_, err = requests.Get(ctx, agent, request.ID)
	assert.NoError(t, err)
	_, err = requests.Get(ctx, stranger, request.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	open, total, err := requests.ListOpen(ctx, agent, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, request.ID, open[0].ID)

	_, _, err = requests.ListOpen(ctx, client, 10, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)

	request.Status = entity.VisaRequestStatusClosed
	require.NoError(t, f.store.VisaRequests().Update(ctx, request))
	_, err = requests.Get(ctx, agent, request.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden), "got %v", err)
	_, err = f.proposals.Create(ctx, agent, CreateProposalInput{VisaRequestID: request.ID, TotalAmount: 100})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	mine, _, err := requests.ListMine(ctx, client, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
