package domain

import (
	"context"
	"time"
)

// Worker is the person who receives the pickup call.
type Worker struct {
	ID    int64
	Name  string
	Phone string
}

// Staff is the person who receives the chat message.
type Staff struct {
	ID     int64
	Name   string
	ChatID string
}

// PickupEvent is one scheduled pickup. Worker, Staff and HotelName are
// denormalized by the event store so a notifier never needs a second query.
type PickupEvent struct {
	ID       int64
	StoreID  int64
	WorkerID *int64
	StaffID  *int64
	HotelID  *int64

	StartAt          time.Time
	CourseMinutes    int
	ExtensionMinutes int
	ExitAt           time.Time

	WorkerLeadMinutes int
	StaffLeadMinutes  int

	WorkerCallSent   bool
	StaffMessageSent bool
	WorkerCallSID    *string

	Worker    *Worker
	Staff     *Staff
	HotelName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueAt returns the instant the given channel should fire for this event.
func (e *PickupEvent) DueAt(ch ChannelName) time.Time {
	switch ch {
	case ChannelWorkerCall:
		return e.ExitAt.Add(-time.Duration(e.WorkerLeadMinutes) * time.Minute)
	case ChannelStaffMessage:
		return e.ExitAt.Add(-time.Duration(e.StaffLeadMinutes) * time.Minute)
	}
	return e.ExitAt
}

// Sent reports the sent-flag of the given channel.
func (e *PickupEvent) Sent(ch ChannelName) bool {
	switch ch {
	case ChannelWorkerCall:
		return e.WorkerCallSent
	case ChannelStaffMessage:
		return e.StaffMessageSent
	}
	return false
}

// PlannedExit is start + course + extension.
func (e *PickupEvent) PlannedExit() time.Time {
	return e.StartAt.Add(time.Duration(e.CourseMinutes+e.ExtensionMinutes) * time.Minute)
}

type PickupRepository interface {
	Create(ctx context.Context, ev *PickupEvent) error
	GetByID(ctx context.Context, id int64) (*PickupEvent, error)
	UpdateSchedule(ctx context.Context, ev *PickupEvent) error
	DueForChannel(ctx context.Context, ch ChannelName, w Window) ([]*PickupEvent, error)
	MarkSent(ctx context.Context, ch ChannelName, id int64) error
	SetCallSID(ctx context.Context, id int64, sid string) error
}
