package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/adapter/repository/memory"
	"visaconnect/internal/domain/entity"
	"visaconnect/internal/domain/service"
	"visaconnect/pkg/errors"
)

type pushed struct {
	userID string
	event  string
}

type fakePublisher struct {
	mu     sync.Mutex
	pushes []pushed
	err    error
}

func (p *fakePublisher) SendToUser(userID string, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.pushes = append(p.pushes, pushed{userID: userID, event: event})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes)
}

func releaseNotice(recipient string) service.Notice {
	return service.Notice{
		RecipientID: recipient,
		Event:       entity.EventEscrowReleasedNotice,
		Title:       "Payment released",
		Message:     "Milestone 1 was released",
		EntityID:    "escrow-1",
		Data:        map[string]interface{}{"escrow_id": "escrow-1"},
	}
}

func TestDispatcherPersistsAndPushes(t *testing.T) {
	store := memory.NewStore()
	publisher := &fakePublisher{}
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), publisher, 8)
	ctx := context.Background()

	d.dispatch(ctx, releaseNotice(agent.ID))

	list, total, err := store.Notifications().ListByRecipient(ctx, agent.ID, true, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	n := list[0]
	assert.Equal(t, entity.EventEscrowReleasedNotice, n.Event)
	assert.Equal(t, entity.PriorityNormal, n.Priority)
	assert.Equal(t, entity.CategoryInfo, n.Category)
	assert.False(t, n.Read)

	assert.Equal(t, []pushed{{userID: agent.ID, event: entity.EventEscrowReleasedNotice}}, publisher.pushes)
}

func TestDispatcherStoresWhenPushFails(t *testing.T) {
	store := memory.NewStore()
	publisher := &fakePublisher{err: fmt.Errorf("user %s not connected", client.ID)}
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), publisher, 8)

	d.dispatch(context.Background(), releaseNotice(client.ID))

	count, err := store.Notifications().CountUnread(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDispatcherFansOutToAdmins(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, u := range []*entity.User{
		{ID: "admin-1", Role: entity.RoleAdmin, FullName: "Ops One"},
		{ID: "admin-2", Role: entity.RoleAdmin, FullName: "Ops Two"},
		{ID: agent.ID, Role: entity.RoleAgent, FullName: "Agent"},
	} {
		require.NoError(t, store.Users().Create(ctx, u))
	}
	publisher := &fakePublisher{}
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), publisher, 8)

	notice := releaseNotice(service.AdminChannel)
	notice.Event = entity.EventEscrowDisputedNotice
	d.dispatch(ctx, notice)

	for _, id := range []string{"admin-1", "admin-2"} {
		count, err := store.Notifications().CountUnread(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, id)
	}
	count, err := store.Notifications().CountUnread(ctx, agent.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 2, publisher.count())
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	store := memory.NewStore()
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), nil, 1)

	d.Notify(context.Background(), releaseNotice(agent.ID))
	d.Notify(context.Background(), releaseNotice(client.ID))

	assert.Len(t, d.queue, 1)
}

func TestDispatcherStartDeliversQueuedNotices(t *testing.T) {
	store := memory.NewStore()
	publisher := &fakePublisher{}
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), publisher, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	d.Notify(ctx, releaseNotice(agent.ID))
	d.Notify(ctx, releaseNotice(client.ID))

	assert.Eventually(t, func() bool { return publisher.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestNotificationUseCase(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	d := NewNotificationDispatcher(store.Notifications(), store.Users(), nil, 8)
	uc := NewNotificationUseCase(store.Notifications())

	for i := 0; i < 3; i++ {
		d.dispatch(ctx, releaseNotice(agent.ID))
	}
	d.dispatch(ctx, releaseNotice(client.ID))

	list, total, err := uc.List(ctx, agent, false, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, err = uc.MarkRead(ctx, client, list[0].ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound), "got %v", err)

	read, err := uc.MarkRead(ctx, agent, list[0].ID)
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.NotNil(t, read.ReadAt)

	unread, err := uc.CountUnread(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	marked, err := uc.MarkAllRead(ctx, agent)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	unread, err = uc.CountUnread(ctx, agent)
	require.NoError(t, err)
	assert.Zero(t, unread)

	unread, err = uc.CountUnread(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}
