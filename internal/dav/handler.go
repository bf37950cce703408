// Package dav serves the WebDAV/CalDAV/CardDAV protocol surface: PROPFIND
// and REPORT multistatus responses over calendars, address books, and a
// shared file tree, plus plain GET access to individual resources.
package dav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/recurrence"
	"github.com/hearthlabs/hearth/internal/store"
)

// maxDAVBodyBytes caps DAV request bodies.
const maxDAVBodyBytes int64 = 10 * 1024 * 1024

// Handler serves DAV requests.
type Handler struct {
	cfg      *config.Config
	store    *store.Store
	expander *recurrence.Expander
}

func NewHandler(cfg *config.Config, store *store.Store, expander *recurrence.Expander) *Handler {
	return &Handler{cfg: cfg, store: store, expander: expander}
}

func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, HEAD, GET, PROPFIND, REPORT")
	w.Header().Set("DAV", "1, 2, calendar-access, addressbook")
	w.WriteHeader(http.StatusNoContent)
}

func readDAVBody(r *http.Request) ([]byte, error) {
	if r.ContentLength == 0 {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(r.Body, maxDAVBodyBytes))
}

// loadCalendar resolves a calendar by id and checks ownership.
func (h *Handler) loadCalendar(ctx context.Context, user *store.User, id int64) (*store.Calendar, error) {
	cal, err := h.store.Calendars.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cal.UserID != user.ID {
		return nil, store.ErrNotFound
	}
	return cal, nil
}

// loadAddressBook resolves an address book by id and checks ownership.
func (h *Handler) loadAddressBook(ctx context.Context, user *store.User, id int64) (*store.AddressBook, error) {
	book, err := h.store.AddressBooks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.UserID != user.ID {
		return nil, store.ErrNotFound
	}
	return book, nil
}

// parseCollectionPath splits /dav/<kind>/<id>[/...] and returns the
// collection id. ok is false on the bare home path.
func parseCollectionPath(cleanPath, prefix string) (int64, bool) {
	rel := strings.Trim(strings.TrimPrefix(cleanPath, prefix), "/")
	if rel == "" {
		return 0, false
	}
	seg := strings.SplitN(rel, "/", 2)[0]
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writeLookupError maps store lookup failures onto HTTP statuses.
func writeLookupError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	http.Error(w, "failed to load "+what, http.StatusInternalServerError)
}
