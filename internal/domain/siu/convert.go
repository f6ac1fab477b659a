package siu

import "time"

// ScheduleDraft is the candidate Schedule for the owning actor. The
// reconciler reuses an existing Schedule for the same actor rather than
// creating a second one.
type ScheduleDraft struct {
	ActorRef string
	Comment  string
}

// SlotDraft is the candidate Slot. Only slot-minting trigger events produce
// one; it is created free and transitioned to busy once the appointment that
// references it lands.
type SlotDraft struct {
	Start      time.Time
	End        time.Time
	Status     string
	Overbooked bool
}

// ParticipantDraft is one appointment participant: a role plus a normalized
// actor reference.
type ParticipantDraft struct {
	Role     string
	ActorRef string
	Display  string
}

// AppointmentDraft is the candidate Appointment keyed by the placer
// appointment identifier for idempotent re-delivery.
type AppointmentDraft struct {
	PlacerAppointmentID string
	FillerAppointmentID string
	Status              string
	Start               time.Time
	End                 time.Time
	Reason              string
	CancellationReason  string
	Participants        []ParticipantDraft
}

// Drafts is the converter output handed to the reconciliation engine.
type Drafts struct {
	Action      EventAction
	Schedule    ScheduleDraft
	Slot        *SlotDraft
	Appointment AppointmentDraft
}

// Convert maps a structured message to candidate resource drafts per the
// trigger action. Pure: no store access, deterministic for a given input.
func Convert(sm *StructuredMessage, action EventAction) Drafts {
	d := Drafts{
		Action: action,
		Schedule: ScheduleDraft{
			ActorRef: owningActorRef(sm),
			Comment:  "auto-provisioned from scheduling feed",
		},
		Appointment: AppointmentDraft{
			PlacerAppointmentID: sm.PlacerAppointmentID,
			FillerAppointmentID: sm.FillerAppointmentID,
			Status:              action.AppointmentStatus,
			Start:               sm.Start,
			End:                 sm.End,
			Reason:              sm.AppointmentReason,
		},
	}

	if action.AppointmentStatus == StatusCancelled {
		d.Appointment.CancellationReason = sm.EventReason
	}

	if sm.Patient != nil && sm.Patient.Identifier != "" {
		d.Appointment.Participants = append(d.Appointment.Participants, ParticipantDraft{
			Role:     "patient",
			ActorRef: "Patient/" + sm.Patient.Identifier,
			Display:  displayName(sm.Patient.FamilyName, sm.Patient.GivenName),
		})
	}
	for _, p := range sm.Participants {
		role := p.Role
		if role == "" {
			role = "practitioner"
		}
		d.Appointment.Participants = append(d.Appointment.Participants, ParticipantDraft{
			Role:     role,
			ActorRef: "Practitioner/" + p.ActorID,
			Display:  displayName(p.FamilyName, p.GivenName),
		})
	}
	for _, l := range sm.Locations {
		d.Appointment.Participants = append(d.Appointment.Participants, ParticipantDraft{
			Role:     "location",
			ActorRef: "Location/" + l.ID,
			Display:  l.Description,
		})
	}

	if action.MintsSlot {
		d.Slot = &SlotDraft{
			Start:  sm.Start,
			End:    sm.End,
			Status: "free",
		}
	}

	return d
}

// owningActorRef picks the Schedule's owning actor: the first personnel
// participant, then the first location, then the sending facility.
func owningActorRef(sm *StructuredMessage) string {
	if len(sm.Participants) > 0 {
		return "Practitioner/" + sm.Participants[0].ActorID
	}
	if len(sm.Locations) > 0 {
		return "Location/" + sm.Locations[0].ID
	}
	return "Organization/" + sm.Header.SendingFac
}

func displayName(family, given string) string {
	switch {
	case family != "" && given != "":
		return given + " " + family
	case family != "":
		return family
	default:
		return given
	}
}
