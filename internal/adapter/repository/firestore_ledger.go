package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

const (
	escrowsCollection   = "escrows"
	casesCollection     = "cases"
	proposalsCollection = "proposals"
)

type firestoreLedger struct {
	client *firestore.Client
}

func NewFirestoreLedger(client *firestore.Client) repository.Ledger {
	return &firestoreLedger{
		client: client,
	}
}

func (l *firestoreLedger) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	err := l.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreLedgerTx{
			client:   l.client,
			tx:       tx,
			versions: make(map[string]int64),
		})
	})
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch status.Code(err) {
	case codes.AlreadyExists:
		return errors.Conflict("Record already exists")
	case codes.Aborted, codes.FailedPrecondition:
		return errors.Conflict("Concurrent modification, please retry")
	}
	return errors.Internal("Ledger transaction failed", err)
}

// firestoreLedgerTx remembers the version of every document it read so updates
// can be checked against it.
type firestoreLedgerTx struct {
	client   *firestore.Client
	tx       *firestore.Transaction
	versions map[string]int64
}

func (t *firestoreLedgerTx) get(ref *firestore.DocumentRef, dst interface{}, resource string) error {
	doc, err := t.tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound(resource, err)
		}
		return errors.Internal("Failed to get "+resource, err)
	}
	if err := doc.DataTo(dst); err != nil {
		return errors.Internal("Failed to parse "+resource+" data", err)
	}
	return nil
}

func (t *firestoreLedgerTx) checkVersion(ref *firestore.DocumentRef, version int64, resource string) error {
	read, ok := t.versions[ref.Path]
	if !ok {
		return errors.Internal(resource+" must be read before it is updated", nil)
	}
	if read != version {
		return errors.Conflict(resource + " was modified concurrently")
	}
	return nil
}

func (t *firestoreLedgerTx) GetEscrow(id string) (*entity.Escrow, error) {
	ref := t.client.Collection(escrowsCollection).Doc(id)
	var escrow entity.Escrow
	if err := t.get(ref, &escrow, "Escrow"); err != nil {
		return nil, err
	}
	t.versions[ref.Path] = escrow.Version
	return &escrow, nil
}

func (t *firestoreLedgerTx) GetCase(id string) (*entity.Case, error) {
	ref := t.client.Collection(casesCollection).Doc(id)
	var c entity.Case
	if err := t.get(ref, &c, "Case"); err != nil {
		return nil, err
	}
	t.versions[ref.Path] = c.Version
	return &c, nil
}

func (t *firestoreLedgerTx) GetProposal(id string) (*entity.Proposal, error) {
	ref := t.client.Collection(proposalsCollection).Doc(id)
	var p entity.Proposal
	if err := t.get(ref, &p, "Proposal"); err != nil {
		return nil, err
	}
	t.versions[ref.Path] = p.Version
	return &p, nil
}

func (t *firestoreLedgerTx) CreateEscrow(escrow *entity.Escrow) error {
	now := time.Now()
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	escrow.Version = 1
	return t.tx.Create(t.client.Collection(escrowsCollection).Doc(escrow.ID), escrow)
}

func (t *firestoreLedgerTx) UpdateEscrow(escrow *entity.Escrow) error {
	ref := t.client.Collection(escrowsCollection).Doc(escrow.ID)
	if err := t.checkVersion(ref, escrow.Version, "Escrow"); err != nil {
		return err
	}
	escrow.Version++
	escrow.UpdatedAt = time.Now()
	return t.tx.Set(ref, escrow)
}

func (t *firestoreLedgerTx) CreateCase(c *entity.Case) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1
	return t.tx.Create(t.client.Collection(casesCollection).Doc(c.ID), c)
}

func (t *firestoreLedgerTx) UpdateCase(c *entity.Case) error {
	ref := t.client.Collection(casesCollection).Doc(c.ID)
	if err := t.checkVersion(ref, c.Version, "Case"); err != nil {
		return err
	}
	c.Version++
	c.UpdatedAt = time.Now()
	return t.tx.Set(ref, c)
}

func (t *firestoreLedgerTx) UpdateProposal(p *entity.Proposal) error {
	ref := t.client.Collection(proposalsCollection).Doc(p.ID)
	if err := t.checkVersion(ref, p.Version, "Proposal"); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = time.Now()
	return t.tx.Set(ref, p)
}
