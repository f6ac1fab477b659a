package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interop/gateway/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const schedCols = `id, active, actor_ref, service_type,
	planning_horizon_start, planning_horizon_end, comment, created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.Active, &s.ActorRef, &s.ServiceType,
		&s.PlanningHorizonStart, &s.PlanningHorizonEnd, &s.Comment, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &s, nil
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	// The unique index on actor_ref makes concurrent resolve-or-create safe:
	// the loser's insert is a no-op and the follow-up GetByActor sees the
	// winner's row.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO schedule (id, active, actor_ref, service_type,
			planning_horizon_start, planning_horizon_end, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (actor_ref) DO NOTHING`,
		s.ID, s.Active, s.ActorRef, s.ServiceType,
		s.PlanningHorizonStart, s.PlanningHorizonEnd, s.Comment)
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+` FROM schedule WHERE id = $1`, id))
}

func (r *scheduleRepoPG) GetByActor(ctx context.Context, actorRef string) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+` FROM schedule WHERE actor_ref = $1`, actorRef))
}

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, schedule_id, status, start_time, end_time, overbooked, comment, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.ScheduleID, &sl.Status, &sl.StartTime, &sl.EndTime,
		&sl.Overbooked, &sl.Comment, &sl.CreatedAt, &sl.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &sl, nil
}

func (r *slotRepoPG) Create(ctx context.Context, sl *Slot) error {
	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO slot (id, schedule_id, status, start_time, end_time, overbooked, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sl.ID, sl.ScheduleID, sl.Status, sl.StartTime, sl.EndTime, sl.Overbooked, sl.Comment)
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
}

func (r *slotRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE slot SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *slotRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM slot WHERE id = $1`, id)
	return err
}

func (r *slotRepoPG) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM slot WHERE schedule_id = $1
		ORDER BY start_time LIMIT $2 OFFSET $3`, scheduleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sl)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, placer_appointment_id, filler_appointment_id, status, cancellation_reason,
	reason, start_time, end_time, slot_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PlacerAppointmentID, &a.FillerAppointmentID, &a.Status, &a.CancellationReason,
		&a.Reason, &a.StartTime, &a.EndTime, &a.SlotID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	// Unique index on placer_appointment_id: concurrent deliveries of the
	// same identifier produce one row, not two.
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (id, placer_appointment_id, filler_appointment_id, status,
			cancellation_reason, reason, start_time, end_time, slot_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (placer_appointment_id) DO NOTHING`,
		a.ID, a.PlacerAppointmentID, a.FillerAppointmentID, a.Status,
		a.CancellationReason, a.Reason, a.StartTime, a.EndTime, a.SlotID)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetByPlacerID(ctx context.Context, placerID string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE placer_appointment_id = $1`, placerID))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET filler_appointment_id=$2, status=$3, cancellation_reason=$4,
			reason=$5, start_time=$6, end_time=$7, slot_id=$8, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.FillerAppointmentID, a.Status, a.CancellationReason,
		a.Reason, a.StartTime, a.EndTime, a.SlotID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ReplaceParticipants(ctx context.Context, appointmentID uuid.UUID, parts []*AppointmentParticipant) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `DELETE FROM appointment_participant WHERE appointment_id = $1`, appointmentID); err != nil {
		return err
	}
	for _, p := range parts {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.AppointmentID = appointmentID
		if _, err := c.Exec(ctx, `
			INSERT INTO appointment_participant (id, appointment_id, role, actor_ref, display)
			VALUES ($1,$2,$3,$4,$5)`,
			p.ID, p.AppointmentID, p.Role, p.ActorRef, p.Display); err != nil {
			return err
		}
	}
	return nil
}

func (r *appointmentRepoPG) GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]*AppointmentParticipant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, role, actor_ref, display
		FROM appointment_participant WHERE appointment_id = $1 ORDER BY role, actor_ref`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*AppointmentParticipant
	for rows.Next() {
		var p AppointmentParticipant
		if err := rows.Scan(&p.ID, &p.AppointmentID, &p.Role, &p.ActorRef, &p.Display); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

// =========== Message Log Repository ===========

type messageLogRepoPG struct{ pool *pgxpool.Pool }

func NewMessageLogRepoPG(pool *pgxpool.Pool) MessageLogRepository {
	return &messageLogRepoPG{pool: pool}
}

func (r *messageLogRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const msgLogCols = `id, control_id, message_type, trigger_event, sending_app, sending_fac,
	classification, ack_code, diagnostic, raw_message, received_at`

func (r *messageLogRepoPG) Append(ctx context.Context, e *MessageLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO message_log (id, control_id, message_type, trigger_event, sending_app,
			sending_fac, classification, ack_code, diagnostic, raw_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.ControlID, e.MessageType, e.TriggerEvent, e.SendingApp,
		e.SendingFac, e.Classification, e.AckCode, e.Diagnostic, e.RawMessage)
	return err
}

func (r *messageLogRepoPG) ListRecent(ctx context.Context, limit int) ([]*MessageLogEntry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+msgLogCols+` FROM message_log ORDER BY received_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MessageLogEntry
	for rows.Next() {
		var e MessageLogEntry
		if err := rows.Scan(&e.ID, &e.ControlID, &e.MessageType, &e.TriggerEvent, &e.SendingApp,
			&e.SendingFac, &e.Classification, &e.AckCode, &e.Diagnostic, &e.RawMessage, &e.ReceivedAt); err != nil {
			return nil, err
		}
		items = append(items, &e)
	}
	return items, rows.Err()
}
