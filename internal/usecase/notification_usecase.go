package usecase

import (
	"context"
	"time"

	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/repository"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
	"visaconnect/pkg/logger"
)

const (
	defaultQueueSize = 256
	deliveryTimeout  = 5 * time.Second
	maxAdminFanout   = 50
)

// NotificationDispatcher persists notices and pushes them to connected
// clients from a single background worker. Notify never blocks: when the
// queue is full the notice is dropped.
type NotificationDispatcher struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	publisher        service.RealtimePublisher
	queue            chan service.Notice
}

func NewNotificationDispatcher(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	publisher service.RealtimePublisher,
	queueSize int,
) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &NotificationDispatcher{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		publisher:        publisher,
		queue:            make(chan service.Notice, queueSize),
	}
}

func (d *NotificationDispatcher) Notify(ctx context.Context, notice service.Notice) {
	select {
	case d.queue <- notice:
	default:
		logger.Warn("Notification queue full, dropping %s for %s", notice.Event, notice.RecipientID)
	}
}

// Start drains the queue until ctx is cancelled.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	logger.Info("Notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification dispatcher stopped, %d notice(s) left undelivered", len(d.queue))
			return
		case notice := <-d.queue:
			d.dispatch(ctx, notice)
		}
	}
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, notice service.Notice) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if notice.RecipientID != service.AdminChannel {
		d.deliver(ctx, notice)
		return
	}

	admins, err := d.userRepo.ListByRole(ctx, entity.RoleAdmin, maxAdminFanout)
	if err != nil {
		logger.Error("Failed to list admins for %s: %v", notice.Event, err)
		return
	}
	for _, admin := range admins {
		n := notice
		n.RecipientID = admin.ID
		d.deliver(ctx, n)
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, notice service.Notice) {
	notification := &entity.Notification{
		RecipientID: notice.RecipientID,
		Event:       notice.Event,
		Title:       notice.Title,
		Message:     notice.Message,
		Priority:    notice.Priority,
		Category:    notice.Category,
		EntityID:    notice.EntityID,
		Data:        notice.Data,
		CreatedAt:   time.Now(),
	}
	if notification.Priority == "" {
		notification.Priority = entity.PriorityNormal
	}
	if notification.Category == "" {
		notification.Category = entity.CategoryInfo
	}

	if err := d.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("Failed to store notification %s for %s: %v", notice.Event, notice.RecipientID, err)
	}

	if d.publisher == nil {
		return
	}
	if err := d.publisher.SendToUser(notice.RecipientID, notice.Event, notification); err != nil {
		logger.Debug("Realtime push of %s to %s skipped: %v", notice.Event, notice.RecipientID, err)
	}
}

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationUseCase(notificationRepo repository.NotificationRepository) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
	}
}

func (uc *NotificationUseCase) List(ctx context.Context, actor Actor, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	return uc.notificationRepo.ListByRecipient(ctx, actor.ID, unreadOnly, limit, offset)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, actor Actor, id string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != actor.ID {
		return nil, errors.NotFound("Notification", nil)
	}
	if notification.Read {
		return notification, nil
	}

	if err := uc.notificationRepo.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	now := time.Now()
	notification.Read = true
	notification.ReadAt = &now
	return notification, nil
}

func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, actor Actor) (int, error) {
	return uc.notificationRepo.MarkAllRead(ctx, actor.ID)
}

func (uc *NotificationUseCase) CountUnread(ctx context.Context, actor Actor) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, actor.ID)
}
