package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userRepo implements UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

const userColumns = "id, email, display_name, timezone, created_at, last_active_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Timezone, &u.CreatedAt, &u.LastActiveAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "users.get_by_id")()
	return scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	defer observeDB(ctx, "users.get_by_email")()
	return scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
}

func (r *userRepo) ListActiveSince(ctx context.Context, since time.Time) ([]User, error) {
	defer observeDB(ctx, "users.list_active_since")()
	rows, err := r.pool.Query(ctx,
		"SELECT "+userColumns+" FROM users WHERE last_active_at >= $1 ORDER BY id", since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *userRepo) TouchLastActive(ctx context.Context, id int64) error {
	defer observeDB(ctx, "users.touch_last_active")()
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_active_at = now() WHERE id = $1", id)
	return err
}

// calendarRepo implements CalendarRepository.
type calendarRepo struct {
	pool *pgxpool.Pool
}

const calendarColumns = "id, user_id, name, color, visible, revision, default_transparency, created_at, updated_at"

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Visible, &c.Revision, &c.DefaultTransparency, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *calendarRepo) GetByID(ctx context.Context, id int64) (*Calendar, error) {
	defer observeDB(ctx, "calendars.get_by_id")()
	return scanCalendar(r.pool.QueryRow(ctx,
		"SELECT "+calendarColumns+" FROM calendars WHERE id = $1", id))
}

func (r *calendarRepo) ListByUser(ctx context.Context, userID int64) ([]Calendar, error) {
	defer observeDB(ctx, "calendars.list_by_user")()
	rows, err := r.pool.Query(ctx,
		"SELECT "+calendarColumns+" FROM calendars WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cals []Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, *c)
	}
	return cals, rows.Err()
}

func (r *calendarRepo) Create(ctx context.Context, cal Calendar) (*Calendar, error) {
	defer observeDB(ctx, "calendars.create")()
	if cal.DefaultTransparency == "" {
		cal.DefaultTransparency = TranspOpaque
	}
	return scanCalendar(r.pool.QueryRow(ctx, `
		INSERT INTO calendars (user_id, name, color, visible, revision, default_transparency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, now(), now())
		RETURNING `+calendarColumns,
		cal.UserID, cal.Name, cal.Color, cal.Visible, cal.DefaultTransparency))
}

func (r *calendarRepo) Update(ctx context.Context, userID, id int64, name string, color *string, visible bool, defaultTransparency string) error {
	defer observeDB(ctx, "calendars.update")()
	tag, err := r.pool.Exec(ctx, `
		UPDATE calendars
		SET name = $3, color = $4, visible = $5, default_transparency = $6,
		    revision = revision + 1, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, name, color, visible, defaultTransparency)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *calendarRepo) BumpRevision(ctx context.Context, id int64) error {
	defer observeDB(ctx, "calendars.bump_revision")()
	_, err := r.pool.Exec(ctx,
		"UPDATE calendars SET revision = revision + 1, updated_at = now() WHERE id = $1", id)
	return err
}

func (r *calendarRepo) Delete(ctx context.Context, userID, id int64) error {
	defer observeDB(ctx, "calendars.delete")()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM calendars WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool *pgxpool.Pool
}

const eventColumns = "id, user_id, calendar_id, revision, uid, title, start_date, end_date, all_day, status, meta, created_at, updated_at"

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var meta []byte
	err := row.Scan(&e.ID, &e.UserID, &e.CalendarID, &e.Revision, &e.UID, &e.Title,
		&e.StartDate, &e.EndDate, &e.AllDay, &e.Status, &meta, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("decode event meta: %w", err)
		}
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *eventRepo) GetByID(ctx context.Context, id int64) (*Event, error) {
	defer observeDB(ctx, "events.get_by_id")()
	return scanEvent(r.pool.QueryRow(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = $1", id))
}

func (r *eventRepo) ListByIDs(ctx context.Context, calendarID int64, ids []int64) ([]Event, error) {
	defer observeDB(ctx, "events.list_by_ids")()
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE calendar_id = $1 AND id = ANY($2) ORDER BY start_date",
		calendarID, ids)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *eventRepo) ListForCalendar(ctx context.Context, calendarID int64) ([]Event, error) {
	defer observeDB(ctx, "events.list_for_calendar")()
	rows, err := r.pool.Query(ctx,
		"SELECT "+eventColumns+" FROM events WHERE calendar_id = $1 ORDER BY start_date", calendarID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *eventRepo) ListTemplates(ctx context.Context, userID int64, until time.Time) ([]Event, error) {
	defer observeDB(ctx, "events.list_templates")()
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE user_id = $1
		  AND (meta->>'is_recurring')::boolean IS TRUE
		  AND (meta->>'recurring_id')::bigint = id
		  AND start_date <= $2
		ORDER BY start_date`, userID, until)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *eventRepo) LatestInstance(ctx context.Context, recurringID int64, until time.Time) (*Event, error) {
	defer observeDB(ctx, "events.latest_instance")()
	ev, err := scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE (meta->>'recurring_id')::bigint = $1
		  AND id <> $1
		  AND start_date <= $2
		ORDER BY (meta->>'recurring_sequence')::int DESC
		LIMIT 1`, recurringID, until))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ev, err
}

func (r *eventRepo) ExistsAt(ctx context.Context, recurringID int64, start time.Time) (bool, error) {
	defer observeDB(ctx, "events.exists_at")()
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM events
			WHERE (meta->>'recurring_id')::bigint = $1 AND start_date = $2
		)`, recurringID, start).Scan(&exists)
	return exists, err
}

func (r *eventRepo) MaxSequence(ctx context.Context, recurringID int64) (int, error) {
	defer observeDB(ctx, "events.max_sequence")()
	var max int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX((meta->>'recurring_sequence')::int), 0) FROM events
		WHERE (meta->>'recurring_id')::bigint = $1`, recurringID).Scan(&max)
	return max, err
}

func (r *eventRepo) ListOverlapping(ctx context.Context, userID int64, calendarIDs []int64, winStart, winEnd time.Time) ([]Event, error) {
	defer observeDB(ctx, "events.list_overlapping")()
	// Start-side inclusive, end-side strict: an event starting exactly at
	// the window end is returned, one ending exactly at the window start
	// is not.
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE user_id = $1 AND start_date <= $2 AND end_date > $3`
	args := []any{userID, winEnd, winStart}
	if len(calendarIDs) > 0 {
		query += " AND calendar_id = ANY($4)"
		args = append(args, calendarIDs)
	}
	query += " ORDER BY start_date"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (r *eventRepo) Create(ctx context.Context, event Event) (*Event, error) {
	defer observeDB(ctx, "events.create")()
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return nil, fmt.Errorf("encode event meta: %w", err)
	}
	if event.Status == "" {
		event.Status = StatusScheduled
	}
	created, err := scanEvent(r.pool.QueryRow(ctx, `
		INSERT INTO events (user_id, calendar_id, revision, uid, title, start_date, end_date, all_day, status, meta, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+eventColumns,
		event.UserID, event.CalendarID, event.UID, event.Title,
		event.StartDate, event.EndDate, event.AllDay, event.Status, meta))
	if err != nil {
		return nil, err
	}
	if err := (&calendarRepo{pool: r.pool}).BumpRevision(ctx, created.CalendarID); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *eventRepo) Update(ctx context.Context, event Event) (*Event, error) {
	defer observeDB(ctx, "events.update")()
	meta, err := json.Marshal(event.Meta)
	if err != nil {
		return nil, fmt.Errorf("encode event meta: %w", err)
	}
	updated, err := scanEvent(r.pool.QueryRow(ctx, `
		UPDATE events
		SET title = $3, start_date = $4, end_date = $5, all_day = $6, status = $7,
		    meta = $8, revision = revision + 1, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+eventColumns,
		event.ID, event.UserID, event.Title, event.StartDate, event.EndDate,
		event.AllDay, event.Status, meta))
	if err != nil {
		return nil, err
	}
	if err := (&calendarRepo{pool: r.pool}).BumpRevision(ctx, updated.CalendarID); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *eventRepo) Delete(ctx context.Context, userID, id int64) error {
	defer observeDB(ctx, "events.delete")()
	ev, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ev.UserID != userID {
		return ErrNotFound
	}
	if ev.IsTemplate() {
		// Deleting a template cascades to every materialized instance.
		if _, err := r.pool.Exec(ctx,
			"DELETE FROM events WHERE (meta->>'recurring_id')::bigint = $1 AND id <> $1", id); err != nil {
			return err
		}
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id); err != nil {
		return err
	}
	return (&calendarRepo{pool: r.pool}).BumpRevision(ctx, ev.CalendarID)
}

// addressBookRepo implements AddressBookRepository.
type addressBookRepo struct {
	pool *pgxpool.Pool
}

const bookColumns = "id, user_id, name, revision, created_at, updated_at"

func scanBook(row pgx.Row) (*AddressBook, error) {
	var b AddressBook
	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *addressBookRepo) GetByID(ctx context.Context, id int64) (*AddressBook, error) {
	defer observeDB(ctx, "address_books.get_by_id")()
	return scanBook(r.pool.QueryRow(ctx,
		"SELECT "+bookColumns+" FROM address_books WHERE id = $1", id))
}

func (r *addressBookRepo) ListByUser(ctx context.Context, userID int64) ([]AddressBook, error) {
	defer observeDB(ctx, "address_books.list_by_user")()
	rows, err := r.pool.Query(ctx,
		"SELECT "+bookColumns+" FROM address_books WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []AddressBook
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

func (r *addressBookRepo) Create(ctx context.Context, book AddressBook) (*AddressBook, error) {
	defer observeDB(ctx, "address_books.create")()
	return scanBook(r.pool.QueryRow(ctx, `
		INSERT INTO address_books (user_id, name, revision, created_at, updated_at)
		VALUES ($1, $2, 1, now(), now())
		RETURNING `+bookColumns, book.UserID, book.Name))
}

func (r *addressBookRepo) BumpRevision(ctx context.Context, id int64) error {
	defer observeDB(ctx, "address_books.bump_revision")()
	_, err := r.pool.Exec(ctx,
		"UPDATE address_books SET revision = revision + 1, updated_at = now() WHERE id = $1", id)
	return err
}

func (r *addressBookRepo) Delete(ctx context.Context, userID, id int64) error {
	defer observeDB(ctx, "address_books.delete")()
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM address_books WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// contactRepo implements ContactRepository.
type contactRepo struct {
	pool *pgxpool.Pool
}

const contactColumns = "id, user_id, address_book_id, revision, uid, first_name, last_name, middle_name, suffix, display_name, fields, notes, photo, raw_vcard, created_at, updated_at"

// contactFields groups the labeled slices into a single jsonb column.
type contactFields struct {
	Emails    []LabeledValue `json:"emails,omitempty"`
	Phones    []LabeledValue `json:"phones,omitempty"`
	URLs      []LabeledValue `json:"urls,omitempty"`
	Addresses []LabeledValue `json:"addresses,omitempty"`
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	var fields []byte
	err := row.Scan(&c.ID, &c.UserID, &c.AddressBookID, &c.Revision, &c.UID,
		&c.FirstName, &c.LastName, &c.MiddleName, &c.Suffix, &c.DisplayName,
		&fields, &c.Notes, &c.Photo, &c.RawVCard, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		var f contactFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, fmt.Errorf("decode contact fields: %w", err)
		}
		c.Emails, c.Phones, c.URLs, c.Addresses = f.Emails, f.Phones, f.URLs, f.Addresses
	}
	return &c, nil
}

func encodeContactFields(c Contact) ([]byte, error) {
	return json.Marshal(contactFields{
		Emails:    c.Emails,
		Phones:    c.Phones,
		URLs:      c.URLs,
		Addresses: c.Addresses,
	})
}

func (r *contactRepo) GetByID(ctx context.Context, id int64) (*Contact, error) {
	defer observeDB(ctx, "contacts.get_by_id")()
	return scanContact(r.pool.QueryRow(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id = $1", id))
}

func (r *contactRepo) ListByIDs(ctx context.Context, addressBookID int64, ids []int64) ([]Contact, error) {
	defer observeDB(ctx, "contacts.list_by_ids")()
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE address_book_id = $1 AND id = ANY($2) ORDER BY id",
		addressBookID, ids)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

func (r *contactRepo) ListForBook(ctx context.Context, addressBookID int64) ([]Contact, error) {
	defer observeDB(ctx, "contacts.list_for_book")()
	rows, err := r.pool.Query(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE address_book_id = $1 ORDER BY id", addressBookID)
	if err != nil {
		return nil, err
	}
	return collectContacts(rows)
}

func collectContacts(rows pgx.Rows) ([]Contact, error) {
	defer rows.Close()
	var contacts []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

func (r *contactRepo) Create(ctx context.Context, contact Contact) (*Contact, error) {
	defer observeDB(ctx, "contacts.create")()
	fields, err := encodeContactFields(contact)
	if err != nil {
		return nil, fmt.Errorf("encode contact fields: %w", err)
	}
	created, err := scanContact(r.pool.QueryRow(ctx, `
		INSERT INTO contacts (user_id, address_book_id, revision, uid, first_name, last_name, middle_name, suffix, display_name, fields, notes, photo, raw_vcard, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+contactColumns,
		contact.UserID, contact.AddressBookID, contact.UID, contact.FirstName,
		contact.LastName, contact.MiddleName, contact.Suffix, contact.DisplayName,
		fields, contact.Notes, contact.Photo, contact.RawVCard))
	if err != nil {
		return nil, err
	}
	if err := (&addressBookRepo{pool: r.pool}).BumpRevision(ctx, created.AddressBookID); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *contactRepo) Update(ctx context.Context, contact Contact) (*Contact, error) {
	defer observeDB(ctx, "contacts.update")()
	fields, err := encodeContactFields(contact)
	if err != nil {
		return nil, fmt.Errorf("encode contact fields: %w", err)
	}
	updated, err := scanContact(r.pool.QueryRow(ctx, `
		UPDATE contacts
		SET first_name = $3, last_name = $4, middle_name = $5, suffix = $6,
		    display_name = $7, fields = $8, notes = $9, photo = $10, raw_vcard = $11,
		    revision = revision + 1, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+contactColumns,
		contact.ID, contact.UserID, contact.FirstName, contact.LastName,
		contact.MiddleName, contact.Suffix, contact.DisplayName, fields,
		contact.Notes, contact.Photo, contact.RawVCard))
	if err != nil {
		return nil, err
	}
	if err := (&addressBookRepo{pool: r.pool}).BumpRevision(ctx, updated.AddressBookID); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *contactRepo) Delete(ctx context.Context, userID, id int64) error {
	defer observeDB(ctx, "contacts.delete")()
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return ErrNotFound
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM contacts WHERE id = $1", id); err != nil {
		return err
	}
	return (&addressBookRepo{pool: r.pool}).BumpRevision(ctx, c.AddressBookID)
}
