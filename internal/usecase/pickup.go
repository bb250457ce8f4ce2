package usecase

import (
	"context"

	"github.com/X1ag/PickupNotifier/internal/domain"
)

type PickupUsecase struct {
	pickupRepo domain.PickupRepository
}

func NewPickupUsecase(pr domain.PickupRepository) *PickupUsecase {
	return &PickupUsecase{
		pickupRepo: pr,
	}
}

// Register stores a new pickup. When ExitAt is empty it is derived from the
// start time, course and extension.
func (p *PickupUsecase) Register(ctx context.Context, ev *domain.PickupEvent) error {
	if ev.StoreID <= 0 {
		return domain.ErrStoreEmpty
	}
	if ev.StartAt.IsZero() {
		return domain.ErrStartTimeEmpty
	}
	if ev.CourseMinutes <= 0 {
		return domain.ErrCourseMinutes
	}
	if ev.ExtensionMinutes < 0 || ev.WorkerLeadMinutes < 0 || ev.StaffLeadMinutes < 0 {
		return domain.ErrNegativeMinutes
	}
	if ev.ExitAt.IsZero() {
		ev.ExitAt = ev.PlannedExit()
	}
	if ev.ExitAt.Before(ev.StartAt) {
		return domain.ErrExitBeforeStart
	}

	ev.WorkerCallSent = false
	ev.StaffMessageSent = false
	return p.pickupRepo.Create(ctx, ev)
}

// Extend adds minutes to the course and moves the exit time accordingly.
// Negative minutes shorten it, but never below the booked course.
func (p *PickupUsecase) Extend(ctx context.Context, id int64, minutes int) (*domain.PickupEvent, error) {
	ev, err := p.pickupRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.ExtensionMinutes+minutes < 0 {
		return nil, domain.ErrNegativeMinutes
	}

	ev.ExtensionMinutes += minutes
	ev.ExitAt = ev.PlannedExit()
	if err := p.pickupRepo.UpdateSchedule(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Reassign changes the worker and staff on a pickup. A nil id clears the
// assignment.
func (p *PickupUsecase) Reassign(ctx context.Context, id int64, workerID, staffID *int64) (*domain.PickupEvent, error) {
	ev, err := p.pickupRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ev.WorkerID = workerID
	ev.StaffID = staffID
	if err := p.pickupRepo.UpdateSchedule(ctx, ev); err != nil {
		return nil, err
	}
	return p.pickupRepo.GetByID(ctx, id)
}
