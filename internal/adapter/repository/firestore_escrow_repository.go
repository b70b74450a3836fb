package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

type firestoreEscrowRepository struct {
	client *firestore.Client
}

func NewFirestoreEscrowRepository(client *firestore.Client) repository.EscrowRepository {
	return &firestoreEscrowRepository{
		client: client,
	}
}

func (r *firestoreEscrowRepository) GetByID(ctx context.Context, id string) (*entity.Escrow, error) {
	return getDoc[entity.Escrow](ctx, r.client.Collection(escrowsCollection).Doc(id), "Escrow")
}

func (r *firestoreEscrowRepository) GetByProposalID(ctx context.Context, proposalID string) (*entity.Escrow, error) {
	iter := r.client.Collection(escrowsCollection).Where("proposalId", "==", proposalID).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if err == iterator.Done {
			return nil, errors.NotFound("Escrow", nil)
		}
		return nil, errors.Internal("Failed to query escrow", err)
	}

	var escrow entity.Escrow
	if err := doc.DataTo(&escrow); err != nil {
		return nil, errors.Internal("Failed to parse escrow data", err)
	}
	return &escrow, nil
}

func (r *firestoreEscrowRepository) ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Escrow, int64, error) {
	query := partyQuery(r.client.Collection(escrowsCollection), userID, role, status)
	return listQuery[entity.Escrow](ctx, query, limit, offset, "escrows")
}

type firestoreCaseRepository struct {
	client *firestore.Client
}

func NewFirestoreCaseRepository(client *firestore.Client) repository.CaseRepository {
	return &firestoreCaseRepository{
		client: client,
	}
}

func (r *firestoreCaseRepository) GetByID(ctx context.Context, id string) (*entity.Case, error) {
	return getDoc[entity.Case](ctx, r.client.Collection(casesCollection).Doc(id), "Case")
}

func (r *firestoreCaseRepository) ListByUser(ctx context.Context, userID, role, status string, limit, offset int) ([]*entity.Case, int64, error) {
	query := partyQuery(r.client.Collection(casesCollection), userID, role, status)
	return listQuery[entity.Case](ctx, query, limit, offset, "cases")
}
