package ical

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/hearthlabs/hearth/internal/store"
)

// PartialEvent holds the fields recognized in one parsed VEVENT. Each
// option records whether the property was present in the wire text;
// downstream merge logic depends on that distinction.
type PartialEvent struct {
	UID            mo.Option[string]
	Summary        mo.Option[string]
	Description    mo.Option[string]
	Start          mo.Option[time.Time]
	End            mo.Option[time.Time]
	OrganizerEmail mo.Option[string]
	Transparency   mo.Option[string]
	RRule          mo.Option[string]
	Sequence       mo.Option[int]
	Attendees      []store.Attendee
	Alarms         []PartialAlarm
}

// PartialAlarm is one parsed VALARM block.
type PartialAlarm struct {
	Action       mo.Option[string]
	Description  mo.Option[string]
	Trigger      mo.Option[time.Time]
	UID          mo.Option[string]
	Acknowledged mo.Option[time.Time]

	// relativeTrigger holds a duration-style TRIGGER until the event start
	// is known; it is resolved when the enclosing VEVENT ends.
	relativeTrigger *time.Duration
}

// relativeTriggerRe matches duration triggers of the form [-]<n>H<n>M<n>S,
// with an optional PT prefix as emitted by some clients.
var relativeTriggerRe = regexp.MustCompile(`^(-)?P?T?(\d+)H(\d+)M(\d+)S$`)

// Parse decodes every VEVENT in the blob. Unknown property lines are
// ignored; nothing in the input is treated as a fatal error.
func Parse(text string) []store.Event {
	partials := ParsePartial(text)
	events := make([]store.Event, 0, len(partials))
	for _, p := range partials {
		events = append(events, p.Event())
	}
	return events
}

// ParsePartial decodes every VEVENT into a PartialEvent preserving
// present/absent semantics per field.
func ParsePartial(text string) []PartialEvent {
	var events []PartialEvent

	var (
		inCalendar bool
		inEvent    bool
		inAlarm    bool
		current    PartialEvent
		alarm      PartialAlarm
	)

	for _, line := range unfoldLines(text) {
		switch line {
		case "BEGIN:VCALENDAR":
			inCalendar = true
			continue
		case "END:VCALENDAR":
			inCalendar = false
			continue
		case "BEGIN:VEVENT":
			if inCalendar {
				inEvent = true
				current = PartialEvent{}
			}
			continue
		case "END:VEVENT":
			if inEvent {
				resolveAlarms(&current)
				events = append(events, current)
			}
			inEvent = false
			inAlarm = false
			continue
		case "BEGIN:VALARM":
			if inEvent {
				inAlarm = true
				alarm = PartialAlarm{}
			}
			continue
		case "END:VALARM":
			if inAlarm {
				current.Alarms = append(current.Alarms, alarm)
			}
			inAlarm = false
			continue
		}

		if !inEvent {
			continue
		}
		name, params, value, ok := splitContentLine(line)
		if !ok {
			continue
		}
		if inAlarm {
			parseAlarmProperty(&alarm, name, params, value)
		} else {
			parseEventProperty(&current, name, params, value)
		}
	}

	return events
}

func parseEventProperty(e *PartialEvent, name, params, value string) {
	switch name {
	case "UID":
		e.UID = mo.Some(value)
	case "SUMMARY":
		e.Summary = mo.Some(Unescape(value))
	case "DESCRIPTION":
		e.Description = mo.Some(Unescape(value))
	case "DTSTART":
		if t, ok := parseWireTime(value); ok {
			e.Start = mo.Some(t)
		}
	case "DTEND":
		if t, ok := parseWireTime(value); ok {
			e.End = mo.Some(t)
		}
	case "ORGANIZER":
		if email, ok := mailtoValue(value); ok {
			e.OrganizerEmail = mo.Some(email)
		}
	case "TRANSP":
		e.Transparency = mo.Some(strings.ToLower(value))
	case "ATTENDEE":
		if a, ok := parseAttendee(params, value); ok {
			e.Attendees = append(e.Attendees, a)
		}
	case "RRULE":
		e.RRule = mo.Some(value)
		if e.Sequence.IsAbsent() {
			e.Sequence = mo.Some(0)
		}
	case "SEQUENCE":
		// Zero and empty never override anything.
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n != 0 {
			e.Sequence = mo.Some(n)
		}
	}
}

func parseAlarmProperty(a *PartialAlarm, name, params, value string) {
	switch name {
	case "ACTION":
		a.Action = mo.Some(value)
	case "DESCRIPTION":
		a.Description = mo.Some(Unescape(value))
	case "UID":
		a.UID = mo.Some(value)
	case "ACKNOWLEDGED":
		if t, ok := parseWireTime(value); ok {
			a.Acknowledged = mo.Some(t)
		}
	case "TRIGGER":
		if t, ok := parseWireTime(value); ok {
			a.Trigger = mo.Some(t)
			return
		}
		if m := relativeTriggerRe.FindStringSubmatch(value); m != nil {
			hours, _ := strconv.Atoi(m[2])
			minutes, _ := strconv.Atoi(m[3])
			seconds, _ := strconv.Atoi(m[4])
			d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
			if m[1] == "-" {
				d = -d
			}
			a.relativeTrigger = &d
		}
		_ = params
	}
}

// resolveAlarms converts relative triggers into absolute instants against
// the event start.
func resolveAlarms(e *PartialEvent) {
	start, hasStart := e.Start.Get()
	for i := range e.Alarms {
		a := &e.Alarms[i]
		if a.relativeTrigger != nil && a.Trigger.IsAbsent() && hasStart {
			a.Trigger = mo.Some(start.Add(*a.relativeTrigger))
		}
		a.relativeTrigger = nil
	}
}

// Event converts the partial record into a store.Event, leaving absent
// fields at their zero values.
func (p PartialEvent) Event() store.Event {
	e := store.Event{
		UID:       p.UID.OrElse(""),
		Title:     p.Summary.OrElse(""),
		StartDate: p.Start.OrElse(time.Time{}),
		EndDate:   p.End.OrElse(time.Time{}),
		Status:    store.StatusScheduled,
	}
	e.Meta.OrganizerEmail = p.OrganizerEmail.OrElse("")
	e.Meta.Transparency = p.Transparency.OrElse("")
	e.Meta.Attendees = p.Attendees
	if rrule, ok := p.RRule.Get(); ok {
		e.Meta.IsRecurring = true
		e.Meta.RecurringRRule = rrule
	}
	e.Meta.RecurringSequence = p.Sequence.OrElse(0)
	for _, a := range p.Alarms {
		trigger, ok := a.Trigger.Get()
		if !ok {
			continue
		}
		r := store.Reminder{
			Trigger:     trigger,
			Action:      a.Action.OrElse("DISPLAY"),
			Description: a.Description.OrElse(""),
			UID:         a.UID.OrElse(""),
		}
		if ack, ok := a.Acknowledged.Get(); ok {
			r.AcknowledgedAt = &ack
		}
		e.Meta.Reminders = append(e.Meta.Reminders, r)
	}
	return e
}

// unfoldLines normalizes line endings and merges continuation lines the
// same way the vcard codec does.
func unfoldLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	raw := strings.Split(text, "\n")
	var lines []string
	for _, line := range raw {
		if len(lines) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// splitContentLine separates a logical line into property name, raw
// parameter text, and value.
func splitContentLine(line string) (name, params, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", "", "", false
	}
	head := line[:colon]
	value = line[colon+1:]
	if semi := strings.IndexByte(head, ';'); semi >= 0 {
		params = head[semi+1:]
		head = head[:semi]
	}
	name = strings.ToUpper(strings.TrimSpace(head))
	if name == "" {
		return "", "", "", false
	}
	return name, params, value, true
}

// parseWireTime accepts YYYYMMDD and YYYYMMDDTHHMMSS values, with or
// without a trailing Z, yielding a UTC instant.
func parseWireTime(value string) (time.Time, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "Z")
	for _, layout := range []string{wireTimeLayout, "20060102"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func mailtoValue(value string) (string, bool) {
	idx := strings.Index(strings.ToLower(value), "mailto:")
	if idx < 0 {
		return "", false
	}
	email := strings.TrimSpace(value[idx+len("mailto:"):])
	if email == "" {
		return "", false
	}
	return email, true
}

func parseAttendee(params, value string) (store.Attendee, bool) {
	email, ok := mailtoValue(value)
	if !ok {
		return store.Attendee{}, false
	}
	a := store.Attendee{Email: email, Status: store.AttendeeInvited}
	for _, param := range strings.Split(params, ";") {
		key, val, found := strings.Cut(param, "=")
		if !found {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "PARTSTAT":
			switch strings.ToUpper(strings.TrimSpace(val)) {
			case "ACCEPTED":
				a.Status = store.AttendeeAccepted
			case "DECLINED", "REJECTED":
				a.Status = store.AttendeeRejected
			default:
				a.Status = store.AttendeeInvited
			}
		case "CN":
			a.Name = Unescape(strings.Trim(val, "\""))
		}
	}
	return a, true
}
