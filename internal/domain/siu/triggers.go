// Package siu routes, validates, and converts HL7v2 SIU scheduling messages
// into Schedule/Slot/Appointment drafts.
package siu

import (
	"errors"
	"fmt"
	"sort"

	"github.com/interop/gateway/internal/platform/hl7v2"
)

var (
	// ErrUnsupportedMessageType marks an inbound message whose MSH-9.1 is not
	// SIU. Classified as a rejection (AR), never an application error.
	ErrUnsupportedMessageType = errors.New("siu: unsupported message type")

	// ErrUnsupportedTrigger marks an SIU message whose trigger event has no
	// entry in the action table. Also a rejection.
	ErrUnsupportedTrigger = errors.New("siu: unsupported trigger event")

	// ErrValidation marks a structurally parseable message that is
	// semantically incomplete (missing SCH, missing placer ID, bad timing).
	ErrValidation = errors.New("siu: validation error")
)

// Appointment statuses assigned by the trigger action table.
const (
	StatusBooked         = "booked"
	StatusCancelled      = "cancelled"
	StatusNoShow         = "noshow"
	StatusEnteredInError = "entered-in-error"
)

// EventAction is the handling decision for one trigger event: the target
// appointment status and whether the event mints a new Slot. Cancellation-class
// events never mint one.
type EventAction struct {
	Trigger           string
	AppointmentStatus string
	MintsSlot         bool
	Description       string
}

// triggerActions is the single authoritative trigger-event table. Adding
// support for a new SIU event means adding a row here, nothing else.
var triggerActions = map[string]EventAction{
	"S12": {Trigger: "S12", AppointmentStatus: StatusBooked, MintsSlot: true, Description: "new appointment booking"},
	"S13": {Trigger: "S13", AppointmentStatus: StatusBooked, MintsSlot: true, Description: "appointment rescheduling"},
	"S14": {Trigger: "S14", AppointmentStatus: StatusBooked, MintsSlot: true, Description: "appointment modification"},
	"S15": {Trigger: "S15", AppointmentStatus: StatusCancelled, MintsSlot: false, Description: "appointment cancellation"},
	"S16": {Trigger: "S16", AppointmentStatus: StatusCancelled, MintsSlot: false, Description: "appointment discontinuation"},
	"S17": {Trigger: "S17", AppointmentStatus: StatusEnteredInError, MintsSlot: false, Description: "appointment deletion"},
	"S26": {Trigger: "S26", AppointmentStatus: StatusNoShow, MintsSlot: false, Description: "patient no-show"},
}

// Route checks the message type, trigger event, and presence of the SCH
// segment, and returns the action for the trigger. It performs no store
// access; rejection here guarantees zero side effects.
func Route(msg *hl7v2.Message) (EventAction, error) {
	if msg.Type != "SIU" {
		return EventAction{}, fmt.Errorf("%w: %q", ErrUnsupportedMessageType, msg.Type)
	}

	action, ok := triggerActions[msg.TriggerEvent]
	if !ok {
		return EventAction{}, fmt.Errorf("%w: %q", ErrUnsupportedTrigger, msg.TriggerEvent)
	}

	if msg.GetSegment("SCH") == nil {
		return EventAction{}, fmt.Errorf("%w: SIU message missing SCH segment", ErrValidation)
	}

	return action, nil
}

// SupportedEvents returns the supported message-type/trigger-event pairs in
// sorted order, e.g. "SIU^S12".
func SupportedEvents() []string {
	events := make([]string, 0, len(triggerActions))
	for trigger := range triggerActions {
		events = append(events, "SIU^"+trigger)
	}
	sort.Strings(events)
	return events
}
