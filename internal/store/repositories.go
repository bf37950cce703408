package store

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListActiveSince(ctx context.Context, since time.Time) ([]User, error)
	TouchLastActive(ctx context.Context, id int64) error
}

// CalendarRepository handles calendar collections. Metadata updates bump
// the collection revision.
type CalendarRepository interface {
	GetByID(ctx context.Context, id int64) (*Calendar, error)
	ListByUser(ctx context.Context, userID int64) ([]Calendar, error)
	Create(ctx context.Context, cal Calendar) (*Calendar, error)
	Update(ctx context.Context, userID, id int64, name string, color *string, visible bool, defaultTransparency string) error
	BumpRevision(ctx context.Context, id int64) error
	Delete(ctx context.Context, userID, id int64) error
}

// EventRepository handles event storage. Create and Update bump the parent
// calendar revision so collection ctags change with their contents.
type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*Event, error)
	ListByIDs(ctx context.Context, calendarID int64, ids []int64) ([]Event, error)
	ListForCalendar(ctx context.Context, calendarID int64) ([]Event, error)

	// ListTemplates returns recurring template events owned by the user
	// whose start is at or before the given instant.
	ListTemplates(ctx context.Context, userID int64, until time.Time) ([]Event, error)

	// LatestInstance returns the materialized instance of a template with
	// the highest sequence whose start is at or before the given instant,
	// or nil when none has been materialized yet.
	LatestInstance(ctx context.Context, recurringID int64, until time.Time) (*Event, error)

	// ExistsAt reports whether any event sharing the recurring id (the
	// template itself included) already starts at the exact instant.
	ExistsAt(ctx context.Context, recurringID int64, start time.Time) (bool, error)

	// MaxSequence returns the highest recurring sequence among events
	// sharing the recurring id, or 0 when only the template exists.
	MaxSequence(ctx context.Context, recurringID int64) (int, error)

	// ListOverlapping returns the user's events intersecting the window,
	// start ascending. The start side is inclusive (an event starting
	// exactly at winEnd is returned) and the end side is strict (one
	// ending exactly at winStart is not). An empty calendarIDs slice
	// means all of the user's calendars.
	ListOverlapping(ctx context.Context, userID int64, calendarIDs []int64, winStart, winEnd time.Time) ([]Event, error)

	Create(ctx context.Context, event Event) (*Event, error)
	Update(ctx context.Context, event Event) (*Event, error)

	// Delete removes an event. Deleting a recurring template cascades to
	// every instance sharing its recurring id.
	Delete(ctx context.Context, userID, id int64) error
}

// AddressBookRepository manages CardDAV collections.
type AddressBookRepository interface {
	GetByID(ctx context.Context, id int64) (*AddressBook, error)
	ListByUser(ctx context.Context, userID int64) ([]AddressBook, error)
	Create(ctx context.Context, book AddressBook) (*AddressBook, error)
	BumpRevision(ctx context.Context, id int64) error
	Delete(ctx context.Context, userID, id int64) error
}

// ContactRepository handles contact storage.
type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*Contact, error)
	ListByIDs(ctx context.Context, addressBookID int64, ids []int64) ([]Contact, error)
	ListForBook(ctx context.Context, addressBookID int64) ([]Contact, error)
	Create(ctx context.Context, contact Contact) (*Contact, error)
	Update(ctx context.Context, contact Contact) (*Contact, error)
	Delete(ctx context.Context, userID, id int64) error
}
