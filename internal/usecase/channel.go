package usecase

import (
	"context"
	"fmt"

	"github.com/X1ag/PickupNotifier/internal/domain"
)

// Channel is one notification path the dispatcher drives generically.
type Channel interface {
	Name() domain.ChannelName
	Due(ctx context.Context, w domain.Window) ([]*domain.PickupEvent, error)
	Send(ctx context.Context, ev *domain.PickupEvent) domain.SendResult
	MarkSent(ctx context.Context, ev *domain.PickupEvent, res domain.SendResult) error
}

type EventStore interface {
	DueForChannel(ctx context.Context, ch domain.ChannelName, w domain.Window) ([]*domain.PickupEvent, error)
	MarkSent(ctx context.Context, ch domain.ChannelName, id int64) error
	SetCallSID(ctx context.Context, id int64, sid string) error
}

type channel struct {
	name     domain.ChannelName
	store    EventStore
	notifier Notifier
	// afterMark runs once the flag is persisted.
	afterMark func(ctx context.Context, ev *domain.PickupEvent, res domain.SendResult) error
}

func NewWorkerCallChannel(store EventStore, notifier Notifier) Channel {
	return &channel{
		name:     domain.ChannelWorkerCall,
		store:    store,
		notifier: notifier,
		afterMark: func(ctx context.Context, ev *domain.PickupEvent, res domain.SendResult) error {
			if res.ExternalID == "" {
				return nil
			}
			if err := store.SetCallSID(ctx, ev.ID, res.ExternalID); err != nil {
				return fmt.Errorf("record call sid: %w", err)
			}
			return nil
		},
	}
}

func NewStaffMessageChannel(store EventStore, notifier Notifier) Channel {
	return &channel{
		name:     domain.ChannelStaffMessage,
		store:    store,
		notifier: notifier,
	}
}

func (c *channel) Name() domain.ChannelName {
	return c.name
}

func (c *channel) Due(ctx context.Context, w domain.Window) ([]*domain.PickupEvent, error) {
	return c.store.DueForChannel(ctx, c.name, w)
}

func (c *channel) Send(ctx context.Context, ev *domain.PickupEvent) domain.SendResult {
	if ev.Sent(c.name) {
		return domain.Failed(domain.ErrAlreadySent)
	}
	return c.notifier.Notify(ctx, ev)
}

func (c *channel) MarkSent(ctx context.Context, ev *domain.PickupEvent, res domain.SendResult) error {
	if err := c.store.MarkSent(ctx, c.name, ev.ID); err != nil {
		return err
	}
	if c.afterMark != nil {
		return c.afterMark(ctx, ev, res)
	}
	return nil
}
