package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

const visaRequestsCollection = "visa_requests"

type firestoreVisaRequestRepository struct {
	client *firestore.Client
}

func NewFirestoreVisaRequestRepository(client *firestore.Client) repository.VisaRequestRepository {
	return &firestoreVisaRequestRepository{
		client: client,
	}
}

func (r *firestoreVisaRequestRepository) Create(ctx context.Context, request *entity.VisaRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now

	_, err := r.client.Collection(visaRequestsCollection).Doc(request.ID).Set(ctx, request)
	if err != nil {
		return errors.Internal("Failed to create visa request", err)
	}
	return nil
}

func (r *firestoreVisaRequestRepository) GetByID(ctx context.Context, id string) (*entity.VisaRequest, error) {
	return getDoc[entity.VisaRequest](ctx, r.client.Collection(visaRequestsCollection).Doc(id), "Visa request")
}

func (r *firestoreVisaRequestRepository) Update(ctx context.Context, request *entity.VisaRequest) error {
	request.UpdatedAt = time.Now()

	_, err := r.client.Collection(visaRequestsCollection).Doc(request.ID).Set(ctx, request)
	if err != nil {
		return errors.Internal("Failed to update visa request", err)
	}
	return nil
}

func (r *firestoreVisaRequestRepository) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	query := r.client.Collection(visaRequestsCollection).
		Where("clientId", "==", clientID).
		OrderBy("createdAt", firestore.Desc)
	return listQuery[entity.VisaRequest](ctx, query, limit, offset, "visa requests")
}

func (r *firestoreVisaRequestRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*entity.VisaRequest, int64, error) {
	query := r.client.Collection(visaRequestsCollection).
		Where("status", "==", status).
		OrderBy("createdAt", firestore.Desc)
	return listQuery[entity.VisaRequest](ctx, query, limit, offset, "visa requests")
}
