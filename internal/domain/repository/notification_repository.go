package repository

import (
	"context"

	"visaconnect/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}
