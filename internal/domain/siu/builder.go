package siu

import (
	"fmt"

	"github.com/interop/gateway/internal/platform/hl7v2"
)

// Build projects a routed message into a StructuredMessage, enforcing the
// field contracts the converter depends on: a placer appointment identifier
// and a start/end pair with start strictly before end. Failures are
// ErrValidation, distinguishable from grammar-level ErrMalformedMessage.
func Build(msg *hl7v2.Message) (*StructuredMessage, error) {
	sch := msg.GetSegment("SCH")
	if sch == nil {
		return nil, fmt.Errorf("%w: SCH segment not found", ErrValidation)
	}

	sm := &StructuredMessage{
		Header: Header{
			SendingApp:   msg.SendingApp,
			SendingFac:   msg.SendingFac,
			ReceivingApp: msg.ReceivingApp,
			ReceivingFac: msg.ReceivingFac,
			ControlID:    msg.ControlID,
			ProcessingID: msg.ProcessingID,
			Version:      msg.Version,
			TriggerEvent: msg.TriggerEvent,
			Timestamp:    msg.Timestamp,
		},
		PlacerAppointmentID: sch.GetComponent(1, 1),
		FillerAppointmentID: sch.GetComponent(2, 1),
		EventReason:         sch.GetComponent(6, 1),
		AppointmentReason:   sch.GetComponent(7, 1),
		Duration:            sch.GetField(9),
		DurationUnits:       sch.GetField(10),
	}

	if sm.PlacerAppointmentID == "" {
		return nil, fmt.Errorf("%w: SCH-1 placer appointment ID is required", ErrValidation)
	}

	// SCH-11 is a timing quantity: start in component 4, end in component 5.
	startRaw := sch.GetComponent(11, 4)
	endRaw := sch.GetComponent(11, 5)
	if startRaw == "" || endRaw == "" {
		return nil, fmt.Errorf("%w: SCH-11 must carry both start and end timestamps", ErrValidation)
	}

	start, err := hl7v2.ParseTimestamp(startRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start timestamp %q", ErrValidation, startRaw)
	}
	end, err := hl7v2.ParseTimestamp(endRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end timestamp %q", ErrValidation, endRaw)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: appointment start must precede end", ErrValidation)
	}
	sm.Start = start
	sm.End = end

	if pid := msg.GetSegment("PID"); pid != nil {
		sm.Patient = &Patient{
			Identifier: pid.GetComponent(3, 1),
			FamilyName: pid.GetComponent(5, 1),
			GivenName:  pid.GetComponent(5, 2),
			BirthDate:  pid.GetField(7),
			Sex:        pid.GetField(8),
		}
	}

	for _, aip := range msg.GetSegments("AIP") {
		p := Participant{
			ActorID:    aip.GetComponent(3, 1),
			FamilyName: aip.GetComponent(3, 2),
			GivenName:  aip.GetComponent(3, 3),
			Role:       aip.GetComponent(4, 1),
		}
		if p.ActorID == "" {
			continue
		}
		sm.Participants = append(sm.Participants, p)
	}

	for _, ail := range msg.GetSegments("AIL") {
		l := Location{
			ID:          ail.GetComponent(3, 1),
			Description: ail.GetComponent(3, 4),
		}
		if l.ID == "" {
			continue
		}
		sm.Locations = append(sm.Locations, l)
	}

	return sm, nil
}
