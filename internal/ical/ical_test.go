package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/hearthlabs/hearth/internal/store"
)

func TestRenderSingleEvent(t *testing.T) {
	updated := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	event := store.Event{
		ID:         1,
		CalendarID: 7,
		UID:        "evt-1",
		Title:      "Team lunch, pizza",
		StartDate:  time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC),
		UpdatedAt:  updated,
		Meta: store.EventMeta{
			OrganizerEmail: "ana@example.com",
			Transparency:   store.TranspOpaque,
		},
	}
	out := Render([]store.Event{event}, nil, "")

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"VERSION:2.0\r\n",
		"BEGIN:VEVENT\r\n",
		"DTSTART:20250312T120000\r\n",
		"DTEND:20250312T130000\r\n",
		"ORGANIZER;CN=:mailto:ana@example.com\r\n",
		"SUMMARY:Team lunch\\, pizza\r\n",
		"TRANSP:OPAQUE\r\n",
		"UID:evt-1\r\n",
		"SEQUENCE:0\r\n",
		"END:VEVENT\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestRenderTransparencyResolution(t *testing.T) {
	cal := store.Calendar{ID: 7, DefaultTransparency: store.TranspTransparent}
	cases := []struct {
		name   string
		transp string
		want   string
	}{
		{"own value wins", store.TranspOpaque, "TRANSP:OPAQUE"},
		{"default sentinel uses calendar", store.TranspDefault, "TRANSP:TRANSPARENT"},
		{"empty uses calendar", "", "TRANSP:TRANSPARENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := store.Event{CalendarID: 7, StartDate: time.Now(), EndDate: time.Now()}
			e.Meta.Transparency = tc.transp
			out := Render([]store.Event{e}, []store.Calendar{cal}, "")
			if !strings.Contains(out, tc.want+"\r\n") {
				t.Errorf("want %s in output\n%s", tc.want, out)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	original := store.Event{
		UID:       "round-1",
		Title:     "Dentist",
		StartDate: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Meta:      store.EventMeta{OrganizerEmail: "doc@example.com"},
	}
	parsed := Parse(Render([]store.Event{original}, nil, ""))
	if len(parsed) != 1 {
		t.Fatalf("expected 1 event, got %d", len(parsed))
	}
	got := parsed[0]
	if got.Title != original.Title {
		t.Errorf("title = %q, want %q", got.Title, original.Title)
	}
	if !got.StartDate.Equal(original.StartDate) {
		t.Errorf("start = %v, want %v", got.StartDate, original.StartDate)
	}
	if !got.EndDate.Equal(original.EndDate) {
		t.Errorf("end = %v, want %v", got.EndDate, original.EndDate)
	}
	if got.Meta.OrganizerEmail != original.Meta.OrganizerEmail {
		t.Errorf("organizer = %q, want %q", got.Meta.OrganizerEmail, original.Meta.OrganizerEmail)
	}
}

func TestParseAttendeesAndAlarms(t *testing.T) {
	blob := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:abc",
		"DTSTART:20250401T100000Z",
		"DTEND:20250401T110000Z",
		"SUMMARY:Planning",
		"ATTENDEE;PARTSTAT=ACCEPTED;CN=Bo:mailto:bo@example.com",
		"ATTENDEE;PARTSTAT=NEEDS-ACTION;CN=Cy:mailto:cy@example.com",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"TRIGGER:-1H0M0S",
		"END:VALARM",
		"BEGIN:VALARM",
		"ACTION:EMAIL",
		"TRIGGER;VALUE=DATE-TIME:20250401T093000Z",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	events := Parse(blob)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if len(e.Meta.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %d", len(e.Meta.Attendees))
	}
	if e.Meta.Attendees[0].Status != store.AttendeeAccepted {
		t.Errorf("attendee 0 status = %s", e.Meta.Attendees[0].Status)
	}
	if e.Meta.Attendees[1].Status != store.AttendeeInvited {
		t.Errorf("attendee 1 status = %s", e.Meta.Attendees[1].Status)
	}
	if len(e.Meta.Reminders) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(e.Meta.Reminders))
	}
	wantRelative := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	if !e.Meta.Reminders[0].Trigger.Equal(wantRelative) {
		t.Errorf("relative trigger = %v, want %v", e.Meta.Reminders[0].Trigger, wantRelative)
	}
	wantAbsolute := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	if !e.Meta.Reminders[1].Trigger.Equal(wantAbsolute) {
		t.Errorf("absolute trigger = %v, want %v", e.Meta.Reminders[1].Trigger, wantAbsolute)
	}
}

func TestParseSequenceRules(t *testing.T) {
	blob := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:seq",
		"RRULE:FREQ=DAILY",
		"SEQUENCE:0",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:seq2",
		"SEQUENCE:5",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	partials := ParsePartial(blob)
	if len(partials) != 2 {
		t.Fatalf("expected 2 events, got %d", len(partials))
	}
	// RRULE seeds sequence 0 and a literal SEQUENCE:0 never overrides.
	if seq, ok := partials[0].Sequence.Get(); !ok || seq != 0 {
		t.Errorf("recurring sequence = %v %v, want present 0", seq, ok)
	}
	if !partials[0].RRule.IsPresent() {
		t.Error("rrule should be present")
	}
	if seq, ok := partials[1].Sequence.Get(); !ok || seq != 5 {
		t.Errorf("sequence = %v %v, want present 5", seq, ok)
	}
}

func TestParseFoldedLines(t *testing.T) {
	blob := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:A very\r\n  long title\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	events := Parse(blob)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Title != "A very long title" {
		t.Errorf("title = %q", events[0].Title)
	}
}

func TestParseIgnoresUnknownLines(t *testing.T) {
	blob := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"X-WR-CALNAME:stuff",
		"BEGIN:VEVENT",
		"UID:u1",
		"X-CUSTOM-PROP;FOO=BAR:whatever",
		"garbage line without colon",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")
	events := Parse(blob)
	if len(events) != 1 || events[0].UID != "u1" {
		t.Fatalf("unexpected parse result: %+v", events)
	}
}

func TestRRuleToWords(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		rule string
		want string
	}{
		{"FREQ=DAILY", "Every day at 09:00"},
		{"FREQ=DAILY;BYHOUR=09;BYMINUTE=30", "Every day at 09:30"},
		{"FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4", "Every week on Monday,Wednesday for 4 times"},
		{"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,TU", "Every 2 weeks on Monday,Tuesday"},
		{"FREQ=MONTHLY;BYMONTHDAY=15;COUNT=3", "Every month on the 15th for 3 times"},
		{"FREQ=MONTHLY;BYMONTHDAY=2", "Every month on the 2nd"},
		{"FREQ=MONTHLY;BYMONTHDAY=11", "Every month on the 11th"},
		{"FREQ=MONTHLY;BYMONTHDAY=23", "Every month on the 23rd"},
		{"FREQ=YEARLY", "Every year"},
		{"FREQ=BOGUS", ""},
	}
	for _, tc := range cases {
		if got := RRuleToWords(tc.rule, start); got != tc.want {
			t.Errorf("RRuleToWords(%q) = %q, want %q", tc.rule, got, tc.want)
		}
	}
}

func TestWeeksForMonth(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	weeks := WeeksForMonth(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), now)

	// March 2025: Sat the 1st, so the grid opens on Monday Feb 24 and
	// closes on Sunday Apr 6.
	if len(weeks) != 6 {
		t.Fatalf("expected 6 weeks, got %d", len(weeks))
	}
	first := weeks[0][0]
	if first.Date.Weekday() != time.Monday {
		t.Errorf("grid starts on %s, want Monday", first.Date.Weekday())
	}
	if !first.Date.Equal(time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first cell = %v", first.Date)
	}
	if first.InMonth {
		t.Error("February cell flagged as in month")
	}
	var today int
	for _, week := range weeks {
		if len(week) != 7 {
			t.Fatalf("week has %d cells", len(week))
		}
		for _, cell := range week {
			if cell.IsToday {
				today++
				if cell.Date.Day() != 12 {
					t.Errorf("today cell is %v", cell.Date)
				}
			}
		}
	}
	if today != 1 {
		t.Errorf("expected exactly one today cell, got %d", today)
	}
}

func TestDaysForWeek(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC) // Wednesday
	days := DaysForWeek(now, now)
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Date.Weekday() != time.Monday {
		t.Errorf("week starts on %s", days[0].Date.Weekday())
	}
	if !days[2].IsToday {
		t.Error("Wednesday should be today")
	}
	if !days[2].Hours[15].IsNow {
		t.Error("hour 15 should be marked now")
	}
	if days[2].Hours[14].IsNow || days[3].Hours[15].IsNow {
		t.Error("only one hour cell may be now")
	}
}

func TestEscapeUnescape(t *testing.T) {
	in := "a,b;c\\d\ne"
	if got := Unescape(Escape(in)); got != in {
		t.Errorf("round trip = %q, want %q", got, in)
	}
	if got := Escape("a,b"); got != "a\\,b" {
		t.Errorf("Escape = %q", got)
	}
}
