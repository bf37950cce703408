package dav

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/hearthlabs/hearth/internal/auth"
	"github.com/hearthlabs/hearth/internal/ical"
	"github.com/hearthlabs/hearth/internal/store"
)

func (h *Handler) Head(w http.ResponseWriter, r *http.Request) {
	h.Get(w, r)
}

// Get serves a single event or contact resource.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	cleanPath := path.Clean(r.URL.Path)

	if strings.HasPrefix(cleanPath, "/dav/calendars") {
		calID, ok := parseCollectionPath(cleanPath, "/dav/calendars")
		eventID, isResource := resourceIDFromHref(cleanPath)
		if !ok || !isResource || !strings.HasSuffix(cleanPath, ".ics") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		cal, err := h.loadCalendar(r.Context(), user, calID)
		if err != nil {
			writeLookupError(w, err, "calendar")
			return
		}
		event, err := h.store.Events.GetByID(r.Context(), eventID)
		if err != nil || event.CalendarID != cal.ID {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		body := ical.Render([]store.Event{*event}, []store.Calendar{*cal}, h.cfg.DefaultTransparency)
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("ETag", fmt.Sprintf("\"%d-%d\"", event.ID, event.Revision))
		if !event.UpdatedAt.IsZero() {
			w.Header().Set("Last-Modified", event.UpdatedAt.UTC().Format(http.TimeFormat))
		}
		writeBody(w, r, body)
		return
	}

	if strings.HasPrefix(cleanPath, "/dav/addressbooks") {
		bookID, ok := parseCollectionPath(cleanPath, "/dav/addressbooks")
		contactID, isResource := resourceIDFromHref(cleanPath)
		if !ok || !isResource || !strings.HasSuffix(cleanPath, ".vcf") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		book, err := h.loadAddressBook(r.Context(), user, bookID)
		if err != nil {
			writeLookupError(w, err, "address book")
			return
		}
		contact, err := h.store.Contacts.GetByID(r.Context(), contactID)
		if err != nil || contact.AddressBookID != book.ID {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
		w.Header().Set("ETag", fmt.Sprintf("\"%d-%d\"", contact.ID, contact.Revision))
		if !contact.UpdatedAt.IsZero() {
			w.Header().Set("Last-Modified", contact.UpdatedAt.UTC().Format(http.TimeFormat))
		}
		writeBody(w, r, contactCard(*contact))
		return
	}

	w.Header().Set("DAV", "1, 2, calendar-access, addressbook")
	w.WriteHeader(http.StatusOK)
}

func writeBody(w http.ResponseWriter, r *http.Request, body string) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.WriteHeader(http.StatusOK)
		return
	}
	_, _ = w.Write([]byte(body))
}
