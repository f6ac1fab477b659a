// Package scheduling holds the canonical resource model (Schedule, Slot,
// Appointment), the reconciliation engine that maps inbound SIU drafts onto
// it, and the HTTP intake surface.
package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound marks a lookup for an entity that does not exist.
var ErrNotFound = errors.New("scheduling: not found")

// Slot statuses.
const (
	SlotFree            = "free"
	SlotBusy            = "busy"
	SlotBusyUnavailable = "busy-unavailable"
	SlotBusyTentative   = "busy-tentative"
	SlotEnteredInError  = "entered-in-error"
)

// Message classifications recorded in the audit log.
const (
	ClassAccepted = "accepted"
	ClassRejected = "rejected"
	ClassError    = "error"
)

// Schedule maps to the schedule table. ActorRef is the normalized owning
// actor reference (e.g. "Practitioner/D42") and is the exact-match lookup key
// for the converter's resolve-or-create path; a unique index backs it.
type Schedule struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	Active               bool       `db:"active" json:"active"`
	ActorRef             string     `db:"actor_ref" json:"actor_ref"`
	ServiceType          *string    `db:"service_type" json:"service_type,omitempty"`
	PlanningHorizonStart *time.Time `db:"planning_horizon_start" json:"planning_horizon_start,omitempty"`
	PlanningHorizonEnd   *time.Time `db:"planning_horizon_end" json:"planning_horizon_end,omitempty"`
	Comment              *string    `db:"comment" json:"comment,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Slot maps to the slot table. Invariant: StartTime strictly precedes
// EndTime.
type Slot struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ScheduleID uuid.UUID `db:"schedule_id" json:"schedule_id"`
	Status     string    `db:"status" json:"status"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Overbooked bool      `db:"overbooked" json:"overbooked"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment maps to the appointment table. PlacerAppointmentID is the
// sender-assigned external identifier and the dedup key: a unique index
// guarantees at most one row carries any given value.
type Appointment struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PlacerAppointmentID string     `db:"placer_appointment_id" json:"placer_appointment_id"`
	FillerAppointmentID *string    `db:"filler_appointment_id" json:"filler_appointment_id,omitempty"`
	Status              string     `db:"status" json:"status"`
	CancellationReason  *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Reason              *string    `db:"reason" json:"reason,omitempty"`
	StartTime           time.Time  `db:"start_time" json:"start_time"`
	EndTime             time.Time  `db:"end_time" json:"end_time"`
	SlotID              *uuid.UUID `db:"slot_id" json:"slot_id,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// AppointmentParticipant maps to the appointment_participant table. ActorRef
// is a normalized reference column, never matched by substring.
type AppointmentParticipant struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	Role          string    `db:"role" json:"role"`
	ActorRef      string    `db:"actor_ref" json:"actor_ref"`
	Display       *string   `db:"display" json:"display,omitempty"`
}

// MessageLogEntry is the append-only audit record for every inbound message,
// including rejected ones. Rows are never updated or deleted.
type MessageLogEntry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ControlID      string    `db:"control_id" json:"control_id"`
	MessageType    string    `db:"message_type" json:"message_type"`
	TriggerEvent   string    `db:"trigger_event" json:"trigger_event"`
	SendingApp     string    `db:"sending_app" json:"sending_app"`
	SendingFac     string    `db:"sending_fac" json:"sending_fac"`
	Classification string    `db:"classification" json:"classification"`
	AckCode        string    `db:"ack_code" json:"ack_code"`
	Diagnostic     string    `db:"diagnostic" json:"diagnostic"`
	RawMessage     string    `db:"raw_message" json:"raw_message"`
	ReceivedAt     time.Time `db:"received_at" json:"received_at"`
}
