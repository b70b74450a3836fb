package repository

import (
	"context"

	"visaconnect/internal/domain/entity"
)

type FileMetadataRepository interface {
	Create(ctx context.Context, metadata *entity.FileMetadata) error
	GetByID(ctx context.Context, id string) (*entity.FileMetadata, error)
	GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error)
	Delete(ctx context.Context, id string) error
}
