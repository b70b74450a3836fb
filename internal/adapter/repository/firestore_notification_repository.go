package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/pkg/errors"
)

const notificationsCollection = "notifications"

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	notification.CreatedAt = time.Now()

	_, err := r.client.Collection(notificationsCollection).Doc(notification.ID).Set(ctx, notification)
	if err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	return getDoc[entity.Notification](ctx, r.client.Collection(notificationsCollection).Doc(id), "Notification")
}

func (r *firestoreNotificationRepository) unread(recipientID string) firestore.Query {
	return r.client.Collection(notificationsCollection).
		Where("recipientId", "==", recipientID).
		Where("read", "==", false)
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	query := r.client.Collection(notificationsCollection).Where("recipientId", "==", recipientID)
	if unreadOnly {
		query = r.unread(recipientID)
	}
	query = query.OrderBy("createdAt", firestore.Desc)
	return listQuery[entity.Notification](ctx, query, limit, offset, "notifications")
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id string) error {
	_, err := r.client.Collection(notificationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Notification", err)
		}
		return errors.Internal("Failed to mark notification read", err)
	}
	return nil
}

func (r *firestoreNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	docs, err := r.unread(recipientID).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to query notifications", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	now := time.Now()
	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Update(doc.Ref, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: now},
		})
		if err != nil {
			bw.End()
			return 0, errors.Internal("Failed to queue notification update", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	updated := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			updated++
		}
	}
	return updated, nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	docs, err := r.unread(recipientID).Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Internal("Failed to count notifications", err)
	}
	return int64(len(docs)), nil
}
