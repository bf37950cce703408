// Package ical translates between iCalendar wire text and partial event
// records, and provides small pure calendar helpers used by clients of
// the sync layer.
package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/internal/store"
)

const wireTimeLayout = "20060102T150405"

// Render wraps one VEVENT block per event in a VCALENDAR envelope.
// Calendars are consulted to resolve the effective transparency of events
// carrying the "default" sentinel; fallbackTransparency applies when the
// owning calendar is unknown or carries no default of its own.
func Render(events []store.Event, calendars []store.Calendar, fallbackTransparency string) string {
	byID := make(map[int64]store.Calendar, len(calendars))
	for _, c := range calendars {
		byID[c.ID] = c
	}

	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("CALSCALE:GREGORIAN\r\n")
	sb.WriteString("PRODID:-//Hearth//EN\r\n")
	for i := range events {
		renderEvent(&sb, &events[i], byID, fallbackTransparency)
	}
	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

func renderEvent(sb *strings.Builder, e *store.Event, calendars map[int64]store.Calendar, fallbackTransparency string) {
	write := func(format string, args ...any) {
		sb.WriteString(fmt.Sprintf(format, args...))
		sb.WriteString("\r\n")
	}

	sb.WriteString("BEGIN:VEVENT\r\n")

	stamp := e.UpdatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	write("DTSTAMP:%s", stamp.UTC().Format(wireTimeLayout))
	if !e.StartDate.IsZero() {
		write("DTSTART:%s", e.StartDate.UTC().Format(wireTimeLayout))
	}
	if !e.EndDate.IsZero() {
		write("DTEND:%s", e.EndDate.UTC().Format(wireTimeLayout))
	}
	if !e.CreatedAt.IsZero() {
		write("CREATED:%s", e.CreatedAt.UTC().Format(wireTimeLayout))
	}
	if !e.UpdatedAt.IsZero() {
		write("LAST-MODIFIED:%s", e.UpdatedAt.UTC().Format(wireTimeLayout))
	}
	if e.Meta.OrganizerEmail != "" {
		write("ORGANIZER;CN=:mailto:%s", e.Meta.OrganizerEmail)
	}
	write("SUMMARY:%s", Escape(e.Title))
	write("TRANSP:%s", strings.ToUpper(resolveTransparency(e, calendars, fallbackTransparency)))
	if e.UID != "" {
		write("UID:%s", e.UID)
	}
	if e.Meta.RecurringRRule != "" {
		write("RRULE:%s", e.Meta.RecurringRRule)
	}
	write("SEQUENCE:%d", e.Meta.RecurringSequence)
	for _, a := range e.Meta.Attendees {
		write("ATTENDEE;PARTSTAT=%s;CN=%s:mailto:%s", partstat(a.Status), Escape(a.Name), a.Email)
	}
	for _, r := range e.Meta.Reminders {
		renderAlarm(sb, r)
	}
	sb.WriteString("END:VEVENT\r\n")
}

func renderAlarm(sb *strings.Builder, r store.Reminder) {
	write := func(format string, args ...any) {
		sb.WriteString(fmt.Sprintf(format, args...))
		sb.WriteString("\r\n")
	}
	write("BEGIN:VALARM")
	action := r.Action
	if action == "" {
		action = "DISPLAY"
	}
	write("ACTION:%s", strings.ToUpper(action))
	if r.Description != "" {
		write("DESCRIPTION:%s", Escape(r.Description))
	}
	write("TRIGGER;VALUE=DATE-TIME:%s", r.Trigger.UTC().Format(wireTimeLayout))
	if r.UID != "" {
		write("UID:%s", r.UID)
	}
	if r.AcknowledgedAt != nil {
		write("ACKNOWLEDGED:%s", r.AcknowledgedAt.UTC().Format(wireTimeLayout))
	}
	write("END:VALARM")
}

// resolveTransparency returns the event's own transparency unless it is
// the "default" sentinel (or unset), in which case the owning calendar's
// configured default applies.
func resolveTransparency(e *store.Event, calendars map[int64]store.Calendar, fallback string) string {
	transp := e.Meta.Transparency
	if transp != "" && transp != store.TranspDefault {
		return transp
	}
	if cal, ok := calendars[e.CalendarID]; ok && cal.DefaultTransparency != "" {
		return cal.DefaultTransparency
	}
	if fallback != "" {
		return fallback
	}
	return store.TranspOpaque
}

func partstat(s store.AttendeeStatus) string {
	switch s {
	case store.AttendeeAccepted:
		return "ACCEPTED"
	case store.AttendeeRejected:
		return "REJECTED"
	default:
		return "NEEDS-ACTION"
	}
}

// Escape escapes special characters for iCalendar text values.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Unescape decodes iCalendar escape sequences.
func Unescape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			sb.WriteByte('\n')
		case ',', ';', '\\':
			sb.WriteByte(s[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return strings.ReplaceAll(sb.String(), "\r", "")
}
