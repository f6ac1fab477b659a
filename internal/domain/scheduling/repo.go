package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// ScheduleRepository persists Schedule rows. Create is conflict-tolerant on
// actor_ref: a concurrent insert for the same actor leaves exactly one row,
// and the caller re-reads with GetByActor to pick up the winner.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetByActor(ctx context.Context, actorRef string) (*Schedule, error)
}

type SlotRepository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]*Slot, error)
}

// AppointmentRepository persists Appointment rows keyed by the placer
// appointment identifier. GetByPlacerID is an indexed exact-match lookup.
// Create is conflict-tolerant on placer_appointment_id, same contract as
// ScheduleRepository.Create.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByPlacerID(ctx context.Context, placerID string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ReplaceParticipants(ctx context.Context, appointmentID uuid.UUID, parts []*AppointmentParticipant) error
	GetParticipants(ctx context.Context, appointmentID uuid.UUID) ([]*AppointmentParticipant, error)
}

// MessageLogRepository is append-only.
type MessageLogRepository interface {
	Append(ctx context.Context, e *MessageLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*MessageLogEntry, error)
}
