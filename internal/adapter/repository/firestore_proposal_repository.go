package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

type firestoreProposalRepository struct {
	client *firestore.Client
}

func NewFirestoreProposalRepository(client *firestore.Client) repository.ProposalRepository {
	return &firestoreProposalRepository{
		client: client,
	}
}

func (r *firestoreProposalRepository) Create(ctx context.Context, proposal *entity.Proposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.New().String()
	}

	now := time.Now()
	proposal.CreatedAt = now
	proposal.UpdatedAt = now
	proposal.Version = 1

	_, err := r.client.Collection(proposalsCollection).Doc(proposal.ID).Create(ctx, proposal)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Proposal already exists")
		}
		return errors.Internal("Failed to create proposal", err)
	}
	return nil
}

func (r *firestoreProposalRepository) GetByID(ctx context.Context, id string) (*entity.Proposal, error) {
	return getDoc[entity.Proposal](ctx, r.client.Collection(proposalsCollection).Doc(id), "Proposal")
}

// Update writes the proposal only if nobody changed it since it was read.
func (r *firestoreProposalRepository) Update(ctx context.Context, proposal *entity.Proposal) error {
	ref := r.client.Collection(proposalsCollection).Doc(proposal.ID)
	var next entity.Proposal
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Proposal", err)
			}
			return errors.Internal("Failed to get proposal", err)
		}

		var current entity.Proposal
		if err := doc.DataTo(&current); err != nil {
			return errors.Internal("Failed to parse proposal data", err)
		}
		if current.Version != proposal.Version {
			return errors.Conflict("Proposal was modified concurrently")
		}

		next = *proposal
		next.Version++
		next.UpdatedAt = time.Now()
		return tx.Set(ref, &next)
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return errors.Internal("Failed to update proposal", err)
	}

	proposal.Version = next.Version
	proposal.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *firestoreProposalRepository) ListByVisaRequest(ctx context.Context, visaRequestID string, limit, offset int) ([]*entity.Proposal, int64, error) {
	query := r.client.Collection(proposalsCollection).
		Where("visaRequestId", "==", visaRequestID).
		OrderBy("createdAt", firestore.Desc)
	return listQuery[entity.Proposal](ctx, query, limit, offset, "proposals")
}

func (r *firestoreProposalRepository) ListByAgent(ctx context.Context, agentID, status string, limit, offset int) ([]*entity.Proposal, int64, error) {
	query := r.client.Collection(proposalsCollection).Where("agentId", "==", agentID)
	if status != "" {
		query = query.Where("status", "==", status)
	}
	query = query.OrderBy("createdAt", firestore.Desc)
	return listQuery[entity.Proposal](ctx, query, limit, offset, "proposals")
}

func (r *firestoreProposalRepository) ExistsForAgent(ctx context.Context, visaRequestID, agentID string) (bool, error) {
	iter := r.client.Collection(proposalsCollection).
		Where("visaRequestId", "==", visaRequestID).
		Where("agentId", "==", agentID).
		Where("status", "in", []string{entity.ProposalStatusPending, entity.ProposalStatusAccepted, entity.ProposalStatusRejected}).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to query proposals", err)
	}
	return true, nil
}
