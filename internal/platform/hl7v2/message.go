package hl7v2

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedMessage marks grammar-level failures: a missing MSH segment,
// undeterminable delimiters, or an unparseable segment. Callers map it to a
// reject acknowledgement, never to a silent default.
var ErrMalformedMessage = errors.New("hl7v2: malformed message")

// Delimiters holds the separator characters a message declares for itself in
// MSH-1 (field) and MSH-2 (component, repetition, escape, subcomponent).
type Delimiters struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	Subcomponent byte
}

// Message represents a parsed HL7v2 message.
type Message struct {
	Type         string    // MSH-9.1 message code (e.g. "SIU")
	TriggerEvent string    // MSH-9.2 (e.g. "S12")
	ControlID    string    // MSH-10
	ProcessingID string    // MSH-11
	Version      string    // MSH-12 (e.g. "2.5.1")
	Timestamp    time.Time // MSH-7
	SendingApp   string    // MSH-3
	SendingFac   string    // MSH-4
	ReceivingApp string    // MSH-5
	ReceivingFac string    // MSH-6
	Delimiters   Delimiters
	Segments     []Segment
}

// Segment represents a single HL7v2 segment. Segments keep their original
// message order; repeated segment types appear once per occurrence.
type Segment struct {
	Name   string // e.g. "MSH", "SCH", "PID", "AIP"
	Fields []Field
}

// Field represents a field with its component and repetition splits.
type Field struct {
	Value      string
	Components []string   // first repetition, component-separated
	Repeats    [][]string // every repetition, each with components
}

// Parse parses raw HL7v2 bytes into a structured Message. Delimiters are
// taken from the MSH segment itself rather than assumed; a message whose
// header is absent or too short to declare them fails with
// ErrMalformedMessage. Segment separators may be \r, \n, or \r\n.
func Parse(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}

	text := string(raw)
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")

	var segmentLines []string
	for _, line := range strings.Split(text, "\r") {
		line = strings.TrimSpace(line)
		if line != "" {
			segmentLines = append(segmentLines, line)
		}
	}

	if len(segmentLines) == 0 {
		return nil, fmt.Errorf("%w: no segments found", ErrMalformedMessage)
	}

	if !strings.HasPrefix(segmentLines[0], "MSH") {
		return nil, fmt.Errorf("%w: first segment must be MSH, got %q",
			ErrMalformedMessage, segmentLines[0][:min(3, len(segmentLines[0]))])
	}

	delims, err := readDelimiters(segmentLines[0])
	if err != nil {
		return nil, err
	}

	msg := &Message{Delimiters: delims}

	for _, line := range segmentLines {
		seg, err := parseSegment(line, delims)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg.Segments = append(msg.Segments, seg)
	}

	if err := msg.extractMSHFields(); err != nil {
		return nil, err
	}

	return msg, nil
}

// readDelimiters extracts the declared separator set from a raw MSH line.
// The field separator is the byte immediately after "MSH"; MSH-2 carries the
// remaining four encoding characters in order.
func readDelimiters(mshLine string) (Delimiters, error) {
	if len(mshLine) < 8 {
		return Delimiters{}, fmt.Errorf("%w: MSH segment too short to declare delimiters", ErrMalformedMessage)
	}

	d := Delimiters{Field: mshLine[3]}

	// Encoding characters run from offset 4 up to the next field separator.
	enc := mshLine[4:]
	if idx := strings.IndexByte(enc, d.Field); idx >= 0 {
		enc = enc[:idx]
	}
	if len(enc) < 4 {
		return Delimiters{}, fmt.Errorf("%w: MSH-2 declares %d encoding characters, need 4", ErrMalformedMessage, len(enc))
	}

	d.Component = enc[0]
	d.Repetition = enc[1]
	d.Escape = enc[2]
	d.Subcomponent = enc[3]
	return d, nil
}

// parseSegment parses a single segment line into a Segment struct.
func parseSegment(line string, delims Delimiters) (Segment, error) {
	if len(line) < 3 {
		return Segment{}, fmt.Errorf("segment too short: %q", line)
	}

	seg := Segment{}
	fieldSep := string(delims.Field)

	// MSH is special: the field separator character is MSH-1 itself and the
	// encoding characters in MSH-2 must not be component-split. An MSH line
	// too short to carry its own separator cannot be sliced past it.
	if strings.HasPrefix(line, "MSH") {
		if len(line) < 4 {
			return Segment{}, fmt.Errorf("MSH segment too short: %q", line)
		}
		seg.Name = "MSH"

		rest := line[4:] // everything after "MSH|"
		parts := strings.Split(rest, fieldSep)

		// Fields[0] = MSH-1 (the separator), Fields[1] = MSH-2 (encoding
		// characters, stored verbatim), Fields[2] = MSH-3, ...
		seg.Fields = append(seg.Fields, Field{Value: fieldSep, Components: []string{fieldSep}})
		for i, part := range parts {
			if i == 0 {
				seg.Fields = append(seg.Fields, Field{Value: part, Components: []string{part}})
				continue
			}
			seg.Fields = append(seg.Fields, parseField(part, delims))
		}
		return seg, nil
	}

	parts := strings.SplitN(line, fieldSep, 2)
	seg.Name = parts[0]

	if len(parts) > 1 {
		for _, f := range strings.Split(parts[1], fieldSep) {
			seg.Fields = append(seg.Fields, parseField(f, delims))
		}
	}

	return seg, nil
}

// parseField splits a field into repetitions and components using the
// message's declared separators.
func parseField(raw string, delims Delimiters) Field {
	f := Field{Value: raw}

	for _, rep := range strings.Split(raw, string(delims.Repetition)) {
		f.Repeats = append(f.Repeats, strings.Split(rep, string(delims.Component)))
	}
	f.Components = f.Repeats[0]

	return f
}

// extractMSHFields extracts commonly used MSH fields into the Message struct.
func (m *Message) extractMSHFields() error {
	msh := m.GetSegment("MSH")
	if msh == nil {
		return fmt.Errorf("%w: MSH segment not found", ErrMalformedMessage)
	}

	m.SendingApp = msh.GetField(3)
	m.SendingFac = msh.GetField(4)
	m.ReceivingApp = msh.GetField(5)
	m.ReceivingFac = msh.GetField(6)

	if ts := msh.GetField(7); ts != "" {
		if t, err := parseTimestamp(ts); err == nil {
			m.Timestamp = t
		}
	}

	// MSH-9 is type^trigger (e.g. SIU^S12).
	m.Type = msh.GetComponent(9, 1)
	m.TriggerEvent = msh.GetComponent(9, 2)

	m.ControlID = msh.GetField(10)
	m.ProcessingID = msh.GetField(11)
	m.Version = msh.GetField(12)

	return nil
}

// parseTimestamp parses an HL7v2 timestamp (YYYYMMDDHHmmss, YYYYMMDDHHmm,
// or YYYYMMDD).
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 14:
		return time.Parse("20060102150405", s[:14])
	case len(s) >= 12:
		return time.Parse("200601021504", s[:12])
	case len(s) >= 8:
		return time.Parse("20060102", s[:8])
	default:
		return time.Time{}, fmt.Errorf("hl7v2: unrecognized timestamp format: %q", s)
	}
}

// FormatTimestamp renders t in the HL7v2 YYYYMMDDHHmmss form.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// ParseTimestamp parses an HL7v2 timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	return parseTimestamp(s)
}

// GetSegment returns the first segment with the given name, or nil.
func (m *Message) GetSegment(name string) *Segment {
	for i := range m.Segments {
		if m.Segments[i].Name == name {
			return &m.Segments[i]
		}
	}
	return nil
}

// GetSegments returns all segments with the given name, in message order.
func (m *Message) GetSegments(name string) []Segment {
	var result []Segment
	for _, seg := range m.Segments {
		if seg.Name == name {
			result = append(result, seg)
		}
	}
	return result
}

// GetField returns a field value by its 1-based HL7 index. For MSH,
// Fields[0] is MSH-1 (the separator); for every other segment Fields[0] is
// field 1.
func (s *Segment) GetField(index int) string {
	idx := index - 1
	if idx < 0 || idx >= len(s.Fields) {
		return ""
	}
	return s.Fields[idx].Value
}

// GetComponent returns a component value by 1-based field and component
// indices.
func (s *Segment) GetComponent(fieldIdx, compIdx int) string {
	idx := fieldIdx - 1
	if idx < 0 || idx >= len(s.Fields) {
		return ""
	}
	ci := compIdx - 1
	comps := s.Fields[idx].Components
	if ci < 0 || ci >= len(comps) {
		return ""
	}
	return comps[ci]
}

// Serialize converts a Message back into raw HL7v2 bytes using the message's
// own delimiters, with \r segment separators.
func Serialize(msg *Message) []byte {
	fieldSep := string(msg.Delimiters.Field)
	if msg.Delimiters.Field == 0 {
		fieldSep = "|"
	}

	var segments []string
	for _, seg := range msg.Segments {
		segments = append(segments, serializeSegment(seg, fieldSep))
	}
	return []byte(strings.Join(segments, "\r"))
}

func serializeSegment(seg Segment, fieldSep string) string {
	if seg.Name == "MSH" {
		// Fields[0] is the separator itself; rebuild as MSH|^~\&|...
		if len(seg.Fields) < 2 {
			return "MSH" + fieldSep
		}
		parts := make([]string, 0, len(seg.Fields)-1)
		for i := 1; i < len(seg.Fields); i++ {
			parts = append(parts, seg.Fields[i].Value)
		}
		return "MSH" + fieldSep + strings.Join(parts, fieldSep)
	}

	parts := make([]string, len(seg.Fields))
	for i, f := range seg.Fields {
		parts[i] = f.Value
	}
	return seg.Name + fieldSep + strings.Join(parts, fieldSep)
}

// NormalizeEscapes rewrites literal two-character escape sequences ("\r\n",
// "\r", "\n") into real control characters. Messages relayed through JSON or
// other channels that escape control bytes arrive in this form.
func NormalizeEscapes(s string) string {
	s = strings.ReplaceAll(s, `\r\n`, "\r")
	s = strings.ReplaceAll(s, `\r`, "\r")
	s = strings.ReplaceAll(s, `\n`, "\r")
	return s
}
