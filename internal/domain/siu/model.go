package siu

import "time"

// Header carries the MSH metadata the pipeline needs downstream.
type Header struct {
	SendingApp   string
	SendingFac   string
	ReceivingApp string
	ReceivingFac string
	ControlID    string
	ProcessingID string
	Version      string
	TriggerEvent string
	Timestamp    time.Time
}

// Patient is the PID projection (identifier plus demographics used for the
// appointment participant list).
type Patient struct {
	Identifier string
	FamilyName string
	GivenName  string
	BirthDate  string
	Sex        string
}

// Participant is one AIP occurrence: a personnel resource attached to the
// appointment in a given role.
type Participant struct {
	ActorID    string
	FamilyName string
	GivenName  string
	Role       string
}

// Location is one AIL occurrence.
type Location struct {
	ID          string
	Description string
}

// StructuredMessage is the typed projection of a validated SIU message:
// header metadata, the SCH scheduling fields, and the repeating
// participant/location segments.
type StructuredMessage struct {
	Header Header

	PlacerAppointmentID string
	FillerAppointmentID string
	EventReason         string
	AppointmentReason   string
	Duration            string
	DurationUnits       string
	Start               time.Time
	End                 time.Time

	Patient      *Patient
	Participants []Participant
	Locations    []Location
}
