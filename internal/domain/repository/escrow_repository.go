package repository

import (
	"context"

	"visaconnect/internal/domain/entity"
)

// EscrowRepository is the read side of the escrow collection. Writes go
// through Ledger so they share a transaction with the case and proposal.
type EscrowRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Escrow, error)
	GetByProposalID(ctx context.Context, proposalID string) (*entity.Escrow, error)
	ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Escrow, int64, error)
}

type CaseRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Case, error)
	ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Case, int64, error)
}
