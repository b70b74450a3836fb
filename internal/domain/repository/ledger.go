package repository

import (
	"context"

	"visaconnect/internal/domain/entity"
)

// Ledger runs a unit of work over escrows, cases and proposals. Either every
// write staged on the LedgerTx is committed or none is.
//
// Implementations may retry fn on contention, so fn must not have side effects
// outside tx.
type Ledger interface {
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx reads and stages writes inside one transaction. All reads must
// happen before the first write.
//
// Update methods are version checked: the aggregate's Version must match the
// stored version, otherwise a Conflict error is returned. On success Version
// is incremented and UpdatedAt refreshed.
type LedgerTx interface {
	GetEscrow(id string) (*entity.Escrow, error)
	GetCase(id string) (*entity.Case, error)
	GetProposal(id string) (*entity.Proposal, error)

	CreateEscrow(escrow *entity.Escrow) error
	UpdateEscrow(escrow *entity.Escrow) error
	CreateCase(c *entity.Case) error
	UpdateCase(c *entity.Case) error
	UpdateProposal(proposal *entity.Proposal) error
}
