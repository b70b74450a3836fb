package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/domain/entity"
	"visaconnect/pkg/errors"
)

type notificationRepo struct {
	s *Store
}

func (r *notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = r.s.now()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *n
	r.s.notifications[n.ID] = &cp
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return nil, errors.NotFound("Notification", nil)
	}
	cp := *n
	return &cp, nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Notification
	for _, n := range r.s.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	newestFirst(out, func(n *entity.Notification) time.Time { return n.CreatedAt })
	return page(out, limit, offset), int64(len(out)), nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok {
		return errors.NotFound("Notification", nil)
	}
	if !n.Read {
		now := r.s.now()
		n.Read = true
		n.ReadAt = &now
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	count := 0
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int64
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

type fileMetadataRepo struct {
	s *Store
}

func (r *fileMetadataRepo) Create(ctx context.Context, m *entity.FileMetadata) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = r.s.now()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *m
	r.s.files[m.ID] = &cp
	return nil
}

func (r *fileMetadataRepo) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.files[id]
	if !ok {
		return nil, errors.NotFound("File metadata", nil)
	}
	cp := *m
	return &cp, nil
}

func (r *fileMetadataRepo) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.FileMetadata
	for _, m := range r.s.files {
		if m.EntityType == entityType && m.EntityID == entityID {
			cp := *m
			out = append(out, &cp)
		}
	}
	newestFirst(out, func(m *entity.FileMetadata) time.Time { return m.CreatedAt })
	return out, nil
}

func (r *fileMetadataRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[id]; !ok {
		return errors.NotFound("File metadata", nil)
	}
	delete(r.s.files, id)
	return nil
}
