package memory

import (
	"context"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

type ledger struct {
	s *Store
}

func (l *ledger) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	l.s.txMu.Lock()
	defer l.s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		s:         l.s,
		escrows:   make(map[string]*entity.Escrow),
		cases:     make(map[string]*entity.Case),
		proposals: make(map[string]*entity.Proposal),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, e := range tx.escrows {
		l.s.escrows[id] = e
	}
	for id, c := range tx.cases {
		l.s.cases[id] = c
	}
	for id, p := range tx.proposals {
		l.s.proposals[id] = p
	}
	return nil
}

// ledgerTx stages writes and applies them on commit. Like Firestore it rejects
// reads once a write has been staged.
type ledgerTx struct {
	s *Store

	escrows   map[string]*entity.Escrow
	cases     map[string]*entity.Case
	proposals map[string]*entity.Proposal
	wrote     bool
}

func (tx *ledgerTx) readable() error {
	if tx.wrote {
		return errors.Internal("read after write in transaction", nil)
	}
	return nil
}

func (tx *ledgerTx) GetEscrow(id string) (*entity.Escrow, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	e, ok := tx.s.escrows[id]
	if !ok {
		return nil, errors.NotFound("Escrow", nil)
	}
	return cloneEscrow(e), nil
}

func (tx *ledgerTx) GetCase(id string) (*entity.Case, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	c, ok := tx.s.cases[id]
	if !ok {
		return nil, errors.NotFound("Case", nil)
	}
	return cloneCase(c), nil
}

func (tx *ledgerTx) GetProposal(id string) (*entity.Proposal, error) {
	if err := tx.readable(); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	p, ok := tx.s.proposals[id]
	if !ok {
		return nil, errors.NotFound("Proposal", nil)
	}
	return cloneProposal(p), nil
}

func (tx *ledgerTx) CreateEscrow(escrow *entity.Escrow) error {
	tx.wrote = true
	tx.s.mu.RLock()
	_, exists := tx.s.escrows[escrow.ID]
	tx.s.mu.RUnlock()
	if _, staged := tx.escrows[escrow.ID]; exists || staged {
		return errors.Conflict("Escrow already exists")
	}
	now := tx.s.now()
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	escrow.Version = 1
	tx.escrows[escrow.ID] = cloneEscrow(escrow)
	return nil
}

func (tx *ledgerTx) UpdateEscrow(escrow *entity.Escrow) error {
	tx.wrote = true
	current, ok := tx.escrows[escrow.ID]
	if !ok {
		tx.s.mu.RLock()
		current, ok = tx.s.escrows[escrow.ID]
		tx.s.mu.RUnlock()
	}
	if !ok {
		return errors.NotFound("Escrow", nil)
	}
	if current.Version != escrow.Version {
		return errors.Conflict("Escrow was modified concurrently")
	}
	escrow.Version++
	escrow.UpdatedAt = tx.s.now()
	tx.escrows[escrow.ID] = cloneEscrow(escrow)
	return nil
}

func (tx *ledgerTx) CreateCase(c *entity.Case) error {
	tx.wrote = true
	tx.s.mu.RLock()
	_, exists := tx.s.cases[c.ID]
	tx.s.mu.RUnlock()
	if _, staged := tx.cases[c.ID]; exists || staged {
		return errors.Conflict("Case already exists")
	}
	now := tx.s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1
	tx.cases[c.ID] = cloneCase(c)
	return nil
}

func (tx *ledgerTx) UpdateCase(c *entity.Case) error {
	tx.wrote = true
	current, ok := tx.cases[c.ID]
	if !ok {
		tx.s.mu.RLock()
		current, ok = tx.s.cases[c.ID]
		tx.s.mu.RUnlock()
	}
	if !ok {
		return errors.NotFound("Case", nil)
	}
	if current.Version != c.Version {
		return errors.Conflict("Case was modified concurrently")
	}
	c.Version++
	c.UpdatedAt = tx.s.now()
	tx.cases[c.ID] = cloneCase(c)
	return nil
}

func (tx *ledgerTx) UpdateProposal(p *entity.Proposal) error {
	tx.wrote = true
	current, ok := tx.proposals[p.ID]
	if !ok {
		tx.s.mu.RLock()
		current, ok = tx.s.proposals[p.ID]
		tx.s.mu.RUnlock()
	}
	if !ok {
		return errors.NotFound("Proposal", nil)
	}
	if current.Version != p.Version {
		return errors.Conflict("Proposal was modified concurrently")
	}
	p.Version++
	p.UpdatedAt = tx.s.now()
	tx.proposals[p.ID] = cloneProposal(p)
	return nil
}
