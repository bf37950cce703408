package store

import "time"

// User is an account owning calendars, address books, and files.
type User struct {
	ID           int64
	Email        string
	DisplayName  string
	Timezone     string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Transparency values for calendars and events. An event set to
// TranspDefault inherits the owning calendar's configured default.
const (
	TranspOpaque      = "opaque"
	TranspTransparent = "transparent"
	TranspDefault     = "default"
)

// Calendar is a CalDAV calendar collection. Revision is an opaque token
// bumped on any change to the collection or any event inside it; DAV
// clients see it as the ctag.
type Calendar struct {
	ID                  int64
	UserID              int64
	Name                string
	Color               *string
	Visible             bool
	Revision            int64
	DefaultTransparency string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusPending   EventStatus = "pending"
	StatusCanceled  EventStatus = "canceled"
)

// AttendeeStatus is an attendee's participation answer.
type AttendeeStatus string

const (
	AttendeeInvited  AttendeeStatus = "invited"
	AttendeeAccepted AttendeeStatus = "accepted"
	AttendeeRejected AttendeeStatus = "rejected"
)

// Attendee is one invited participant on an event.
type Attendee struct {
	Email  string         `json:"email"`
	Name   string         `json:"name,omitempty"`
	Status AttendeeStatus `json:"status"`
}

// Reminder is a VALARM attached to an event.
type Reminder struct {
	Trigger        time.Time  `json:"trigger"`
	Action         string     `json:"action"`
	Description    string     `json:"description,omitempty"`
	UID            string     `json:"uid,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// EventMeta is the extensible metadata bag persisted alongside an event.
// Recurrence invariants: a template has IsRecurring set and RecurringID
// equal to its own event id; a materialized instance points RecurringID at
// the template and carries a strictly increasing RecurringSequence among
// its siblings. Non-recurring events leave all recurrence fields zero.
type EventMeta struct {
	OrganizerEmail    string     `json:"organizer_email,omitempty"`
	Transparency      string     `json:"transparency,omitempty"`
	Attendees         []Attendee `json:"attendees,omitempty"`
	Reminders         []Reminder `json:"reminders,omitempty"`
	IsRecurring       bool       `json:"is_recurring,omitempty"`
	RecurringID       int64      `json:"recurring_id,omitempty"`
	RecurringRRule    string     `json:"recurring_rrule,omitempty"`
	RecurringSequence int        `json:"recurring_sequence,omitempty"`
}

// Event is a calendar event. Revision is bumped per update and doubles as
// the DAV etag source.
type Event struct {
	ID         int64
	UserID     int64
	CalendarID int64
	Revision   int64
	UID        string
	Title      string
	StartDate  time.Time
	EndDate    time.Time
	AllDay     bool
	Status     EventStatus
	Meta       EventMeta
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTemplate reports whether the event is a recurring template rather than
// a materialized instance.
func (e *Event) IsTemplate() bool {
	return e.Meta.IsRecurring && e.Meta.RecurringID == e.ID
}

// AddressBook is a CardDAV collection.
type AddressBook struct {
	ID        int64
	UserID    int64
	Name      string
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LabeledValue is a contact field value with an optional label, e.g. a
// phone number tagged "home".
type LabeledValue struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Contact is an address book entry. The canonical persisted form may be
// either the structured fields or the RawVCard blob; both are kept in sync
// by the callers of the vcard codec.
type Contact struct {
	ID            int64
	UserID        int64
	AddressBookID int64
	Revision      int64
	UID           string
	FirstName     string
	LastName      string
	MiddleName    string
	Suffix        string
	DisplayName   string
	Emails        []LabeledValue
	Phones        []LabeledValue
	URLs          []LabeledValue
	Addresses     []LabeledValue
	Notes         *string
	Photo         string
	RawVCard      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
