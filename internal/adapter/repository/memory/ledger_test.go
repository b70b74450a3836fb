package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

func seedEscrow(t *testing.T, s *Store) *entity.Escrow {
	t.Helper()
	e := &entity.Escrow{
		ID:       "escrow-1",
		ClientID: "client-1",
		AgentID:  "agent-1",
		Amount:   1000,
		Status:   entity.EscrowStatusDeposited,
		Milestones: []entity.EscrowMilestone{
			{ID: "m-1", Amount: 1000, Status: entity.EscrowMilestonePending},
		},
	}
	err := s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.CreateEscrow(e)
	})
	require.NoError(t, err)
	return e
}

func TestLedgerCommitsAndBumpsVersion(t *testing.T) {
	s := NewStore()
	seedEscrow(t, s)

	err := s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.GetEscrow("escrow-1")
		if err != nil {
			return err
		}
		e.Status = entity.EscrowStatusInProgress
		return tx.UpdateEscrow(e)
	})
	require.NoError(t, err)

	stored, err := s.Escrows().GetByID(context.Background(), "escrow-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusInProgress, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestLedgerRejectsStaleVersion(t *testing.T) {
	s := NewStore()
	stale := seedEscrow(t, s)

	err := s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.GetEscrow("escrow-1")
		if err != nil {
			return err
		}
		return tx.UpdateEscrow(e)
	})
	require.NoError(t, err)

	stale.Status = entity.EscrowStatusRefunded
	err = s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.UpdateEscrow(stale)
	})
	assert.True(t, errors.Is(err, errors.CodeConflict), "got %v", err)

	stored, err := s.Escrows().GetByID(context.Background(), "escrow-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusDeposited, stored.Status)
}

func TestLedgerRollsBackOnError(t *testing.T) {
	s := NewStore()
	seedEscrow(t, s)

	err := s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		e, err := tx.GetEscrow("escrow-1")
		if err != nil {
			return err
		}
		c := &entity.Case{ID: "case-1", EscrowID: e.ID, Status: entity.CaseStatusActive}
		if err := tx.CreateCase(c); err != nil {
			return err
		}
		e.Status = entity.EscrowStatusCompleted
		if err := tx.UpdateEscrow(e); err != nil {
			return err
		}
		return errors.InvalidState("abort")
	})
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "got %v", err)

	_, err = s.Cases().GetByID(context.Background(), "case-1")
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)
	stored, err := s.Escrows().GetByID(context.Background(), "escrow-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowStatusDeposited, stored.Status)
}

func TestLedgerRejectsReadAfterWrite(t *testing.T) {
	s := NewStore()
	seedEscrow(t, s)

	err := s.Ledger().RunTransaction(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		if err := tx.CreateCase(&entity.Case{ID: "case-1"}); err != nil {
			return err
		}
		_, err := tx.GetEscrow("escrow-1")
		return err
	})
	assert.True(t, errors.Is(err, errors.CodeInternal), "got %v", err)
}

func TestLedgerReturnsCopies(t *testing.T) {
	s := NewStore()
	seedEscrow(t, s)

	got, err := s.Escrows().GetByID(context.Background(), "escrow-1")
	require.NoError(t, err)
	got.Milestones[0].Status = entity.EscrowMilestoneCompleted

	again, err := s.Escrows().GetByID(context.Background(), "escrow-1")
	require.NoError(t, err)
	assert.Equal(t, entity.EscrowMilestonePending, again.Milestones[0].Status)
}

func TestLedgerHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Ledger().RunTransaction(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
