package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// channelColumns names the columns one notification channel reads and writes.
// Values are fixed identifiers, never user input.
type channelColumns struct {
	sentFlag  string
	leadTime  string
	recipient string
}

var channelTable = map[domain.ChannelName]channelColumns{
	domain.ChannelWorkerCall: {
		sentFlag:  "worker_call_sent",
		leadTime:  "worker_lead_minutes",
		recipient: "w.phone",
	},
	domain.ChannelStaffMessage: {
		sentFlag:  "staff_message_sent",
		leadTime:  "staff_lead_minutes",
		recipient: "s.chat_id",
	},
}

func columnsFor(ch domain.ChannelName) (channelColumns, error) {
	cols, ok := channelTable[ch]
	if !ok {
		return channelColumns{}, fmt.Errorf("%w: %q", domain.ErrUnknownChannel, ch)
	}
	return cols, nil
}

const selectPickup = `SELECT e.id, e.store_id, e.worker_id, e.staff_id, e.hotel_id,
		e.start_at, e.course_minutes, e.extension_minutes, e.exit_at,
		e.worker_lead_minutes, e.staff_lead_minutes,
		e.worker_call_sent, e.staff_message_sent, e.worker_call_sid,
		e.created_at, e.updated_at,
		w.name, w.phone, s.name, s.chat_id, h.name
	FROM pickup_events e
	LEFT JOIN workers w ON w.id = e.worker_id
	LEFT JOIN staff s ON s.id = e.staff_id
	LEFT JOIN hotels h ON h.id = e.hotel_id`

type PickupRepository struct {
	db *pgxpool.Pool
}

func NewPickupRepository(db *pgxpool.Pool) *PickupRepository {
	return &PickupRepository{
		db: db,
	}
}

func (r *PickupRepository) Create(ctx context.Context, ev *domain.PickupEvent) error {
	query := `INSERT INTO pickup_events (store_id, worker_id, staff_id, hotel_id,
						start_at, course_minutes, extension_minutes, exit_at,
						worker_lead_minutes, staff_lead_minutes)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
						RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ev.StoreID, ev.WorkerID, ev.StaffID, ev.HotelID,
		ev.StartAt, ev.CourseMinutes, ev.ExtensionMinutes, ev.ExitAt,
		ev.WorkerLeadMinutes, ev.StaffLeadMinutes,
	).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *PickupRepository) GetByID(ctx context.Context, id int64) (*domain.PickupEvent, error) {
	ev, err := scanPickup(r.db.QueryRow(ctx, selectPickup+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPickupNotFound
		}
		return nil, err
	}
	return ev, nil
}

// UpdateSchedule rewrites assignment and timing. Sent flags are left alone.
func (r *PickupRepository) UpdateSchedule(ctx context.Context, ev *domain.PickupEvent) error {
	query := `UPDATE pickup_events
						SET worker_id = $2, staff_id = $3, hotel_id = $4,
								start_at = $5, course_minutes = $6, extension_minutes = $7, exit_at = $8,
								worker_lead_minutes = $9, staff_lead_minutes = $10,
								updated_at = now()
						WHERE id = $1
						RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ev.ID, ev.WorkerID, ev.StaffID, ev.HotelID,
		ev.StartAt, ev.CourseMinutes, ev.ExtensionMinutes, ev.ExitAt,
		ev.WorkerLeadMinutes, ev.StaffLeadMinutes,
	).Scan(&ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPickupNotFound
		}
		return mapWriteError(err)
	}
	return nil
}

// DueForChannel returns events whose due instant (exit_at minus the channel's
// lead time) lies in the window and whose channel flag is still false.
func (r *PickupRepository) DueForChannel(ctx context.Context, ch domain.ChannelName, w domain.Window) ([]*domain.PickupEvent, error) {
	cols, err := columnsFor(ch)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(selectPickup+`
	WHERE e.%[1]s = false
		AND NULLIF(btrim(%[2]s), '') IS NOT NULL
		AND e.exit_at - e.%[3]s * interval '1 minute' <= $1
		AND e.exit_at - e.%[3]s * interval '1 minute' > $2
	ORDER BY e.id`, cols.sentFlag, cols.recipient, cols.leadTime)

	rows, err := r.db.Query(ctx, query, w.To, w.From)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := make([]*domain.PickupEvent, 0, 10)
	for rows.Next() {
		ev, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, ev)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return due, nil
}

// MarkSent flips the channel flag from false to true. It never resets a flag.
func (r *PickupRepository) MarkSent(ctx context.Context, ch domain.ChannelName, id int64) error {
	cols, err := columnsFor(ch)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE pickup_events SET %[1]s = true, updated_at = now()
						WHERE id = $1 AND %[1]s = false`, cols.sentFlag)
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pickup_events WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrPickupNotFound
		}
		return domain.ErrAlreadySent
	}
	return nil
}

func (r *PickupRepository) SetCallSID(ctx context.Context, id int64, sid string) error {
	tag, err := r.db.Exec(ctx, `UPDATE pickup_events SET worker_call_sid = $2, updated_at = now() WHERE id = $1`, id, sid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPickupNotFound
	}
	return nil
}

func scanPickup(row pgx.Row) (*domain.PickupEvent, error) {
	ev := &domain.PickupEvent{}
	var (
		workerName, workerPhone *string
		staffName, staffChatID  *string
		hotelName               *string
	)
	err := row.Scan(
		&ev.ID, &ev.StoreID, &ev.WorkerID, &ev.StaffID, &ev.HotelID,
		&ev.StartAt, &ev.CourseMinutes, &ev.ExtensionMinutes, &ev.ExitAt,
		&ev.WorkerLeadMinutes, &ev.StaffLeadMinutes,
		&ev.WorkerCallSent, &ev.StaffMessageSent, &ev.WorkerCallSID,
		&ev.CreatedAt, &ev.UpdatedAt,
		&workerName, &workerPhone, &staffName, &staffChatID, &hotelName,
	)
	if err != nil {
		return nil, err
	}

	if ev.WorkerID != nil {
		ev.Worker = &domain.Worker{ID: *ev.WorkerID, Name: deref(workerName), Phone: deref(workerPhone)}
	}
	if ev.StaffID != nil {
		ev.Staff = &domain.Staff{ID: *ev.StaffID, Name: deref(staffName), ChatID: deref(staffChatID)}
	}
	ev.HotelName = deref(hotelName)

	return ev, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case domain.ErrUniqueViolation:
			return domain.ErrPickupExists
		case domain.ErrForeignKeyViolation:
			return fmt.Errorf("%w: %s", domain.ErrUnknownReference, pgErr.ConstraintName)
		}
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
