package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
)

const fileMetadataCollection = "file_metadata"

type firestoreFileMetadataRepository struct {
	client *firestore.Client
}

func NewFirestoreFileMetadataRepository(client *firestore.Client) repository.FileMetadataRepository {
	return &firestoreFileMetadataRepository{
		client: client,
	}
}

func (r *firestoreFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	if metadata.ID == "" {
		metadata.ID = uuid.New().String()
	}
	metadata.CreatedAt = time.Now()

	_, err := r.client.Collection(fileMetadataCollection).Doc(metadata.ID).Set(ctx, metadata)
	if err != nil {
		return errors.Internal("Failed to create file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	return getDoc[entity.FileMetadata](ctx, r.client.Collection(fileMetadataCollection).Doc(id), "File metadata")
}

func (r *firestoreFileMetadataRepository) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	query := r.client.Collection(fileMetadataCollection).
		Where("entityType", "==", entityType).
		Where("entityId", "==", entityID).
		OrderBy("createdAt", firestore.Desc)

	items, err := collect[entity.FileMetadata](query.Documents(ctx), "file metadata")
	if err != nil {
		return nil, err
	}
	logger.Debug("Found %d files for %s/%s", len(items), entityType, entityID)
	return items, nil
}

func (r *firestoreFileMetadataRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(fileMetadataCollection).Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete file metadata", err)
	}
	return nil
}
