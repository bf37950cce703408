package dav

import (
	"bytes"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/hearthlabs/hearth/internal/auth"
	"github.com/hearthlabs/hearth/internal/store"
)

// PropertyNames extracts the requested property names from a PROPFIND
// body's <prop> children, lower-cased without namespace prefixes. A
// missing body, unparseable XML, an explicit <allprop/>, or an empty
// <prop> all yield ["allprop"], so malformed clients degrade to a full
// property listing instead of an error.
func PropertyNames(body []byte) []string {
	allprop := []string{"allprop"}
	if len(bytes.TrimSpace(body)) == 0 {
		return allprop
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return allprop
	}
	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "propfind") {
		return allprop
	}
	for _, child := range root.ChildElements() {
		switch strings.ToLower(child.Tag) {
		case "allprop":
			return allprop
		case "prop":
			var names []string
			for _, p := range child.ChildElements() {
				names = append(names, strings.ToLower(p.Tag))
			}
			if len(names) == 0 {
				return allprop
			}
			return names
		}
	}
	return allprop
}

func (h *Handler) Propfind(w http.ResponseWriter, r *http.Request) {
	depth := strings.TrimSpace(r.Header.Get("Depth"))
	if depth == "" {
		depth = "1"
	}

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	body, err := readDAVBody(r)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	requested := PropertyNames(body)

	cleanPath := path.Clean(r.URL.Path)
	switch {
	case strings.HasPrefix(cleanPath, "/dav/files"):
		h.filePropfind(w, r, requested, cleanPath, depth)
	case strings.HasPrefix(cleanPath, "/dav/calendars"):
		h.calendarPropfind(w, r, user, requested, cleanPath, depth)
	case strings.HasPrefix(cleanPath, "/dav/addressbooks"):
		h.addressBookPropfind(w, r, user, requested, cleanPath, depth)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) calendarPropfind(w http.ResponseWriter, r *http.Request, user *store.User, requested []string, cleanPath, depth string) {
	includePrivileges := wantsPrivileges(requested)

	calID, ok := parseCollectionPath(cleanPath, "/dav/calendars")
	if !ok {
		// Home path: one response per calendar collection.
		cals, err := h.store.Calendars.ListByUser(r.Context(), user.ID)
		if err != nil {
			writeLookupError(w, err, "calendars")
			return
		}
		var responses []response
		for _, cal := range cals {
			col := calendarCollection(cal.ID, cal.Name, cal.Revision)
			responses = append(responses, collectionResponse(col, requested, includePrivileges))
		}
		writeMultiStatus(w, newMultistatus(responses))
		return
	}

	cal, err := h.loadCalendar(r.Context(), user, calID)
	if err != nil {
		writeLookupError(w, err, "calendar")
		return
	}
	col := calendarCollection(cal.ID, cal.Name, cal.Revision)

	var items []Item
	if depth != "0" {
		events, err := h.store.Events.ListForCalendar(r.Context(), cal.ID)
		if err != nil {
			writeLookupError(w, err, "events")
			return
		}
		items = eventItems(events)
	}
	writeMultiStatus(w, BuildCollectionMultistatus(col, items, nil, requested, includePrivileges))
}

func (h *Handler) addressBookPropfind(w http.ResponseWriter, r *http.Request, user *store.User, requested []string, cleanPath, depth string) {
	includePrivileges := wantsPrivileges(requested)

	bookID, ok := parseCollectionPath(cleanPath, "/dav/addressbooks")
	if !ok {
		books, err := h.store.AddressBooks.ListByUser(r.Context(), user.ID)
		if err != nil {
			writeLookupError(w, err, "address books")
			return
		}
		var responses []response
		for _, book := range books {
			col := addressBookCollection(book.ID, book.Name, book.Revision)
			responses = append(responses, collectionResponse(col, requested, includePrivileges))
		}
		writeMultiStatus(w, newMultistatus(responses))
		return
	}

	book, err := h.loadAddressBook(r.Context(), user, bookID)
	if err != nil {
		writeLookupError(w, err, "address book")
		return
	}
	col := addressBookCollection(book.ID, book.Name, book.Revision)

	var items []Item
	if depth != "0" {
		contacts, err := h.store.Contacts.ListForBook(r.Context(), book.ID)
		if err != nil {
			writeLookupError(w, err, "contacts")
			return
		}
		items = contactItems(contacts)
	}
	writeMultiStatus(w, BuildCollectionMultistatus(col, items, nil, requested, includePrivileges))
}

func (h *Handler) filePropfind(w http.ResponseWriter, r *http.Request, requested []string, cleanPath, depth string) {
	rel := strings.Trim(strings.TrimPrefix(cleanPath, "/dav/files"), "/")
	doc, err := BuildFilePropfind(requested, h.cfg.FilesRoot, rel, depth)
	if err != nil {
		writeLookupError(w, err, "file")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = doc.WriteTo(w)
}

func wantsPrivileges(requested []string) bool {
	for _, name := range requested {
		if name == "current-user-privilege-set" {
			return true
		}
	}
	return false
}

func calendarCollection(id int64, name string, revision int64) Collection {
	return Collection{
		Href:     "/dav/calendars/" + strconv.FormatInt(id, 10) + "/",
		Name:     name,
		Revision: revision,
		Calendar: true,
	}
}

func addressBookCollection(id int64, name string, revision int64) Collection {
	return Collection{
		Href:     "/dav/addressbooks/" + strconv.FormatInt(id, 10) + "/",
		Name:     name,
		Revision: revision,
	}
}
