package dav

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/hearthlabs/hearth/internal/auth"
	"github.com/hearthlabs/hearth/internal/ical"
	"github.com/hearthlabs/hearth/internal/store"
	"github.com/hearthlabs/hearth/internal/vcard"
)

const icalWireLayout = "20060102T150405Z"

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
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
	// An unparseable body degrades to a full listing rather than a 4xx;
	// sync clients must always get a multistatus back.
	var report reportRequest
	_ = safeUnmarshalXML(body, &report)

	cleanPath := path.Clean(r.URL.Path)
	switch {
	case strings.HasPrefix(cleanPath, "/dav/calendars"):
		h.calendarReport(w, r, user, cleanPath, report)
	case strings.HasPrefix(cleanPath, "/dav/addressbooks"):
		h.addressBookReport(w, r, user, cleanPath, report)
	default:
		http.Error(w, "unsupported REPORT path", http.StatusBadRequest)
	}
}

func (h *Handler) calendarReport(w http.ResponseWriter, r *http.Request, user *store.User, cleanPath string, report reportRequest) {
	calID, ok := parseCollectionPath(cleanPath, "/dav/calendars")
	if !ok {
		http.Error(w, "calendar reports must target a calendar collection", http.StatusForbidden)
		return
	}
	cal, err := h.loadCalendar(r.Context(), user, calID)
	if err != nil {
		writeLookupError(w, err, "calendar")
		return
	}

	multiGet := report.XMLName.Local == "calendar-multiget"

	var events []store.Event
	if winStart, winEnd, hasRange := reportTimeRange(report.Filter); hasRange && !multiGet {
		// A time-range query materializes missing recurring instances
		// before answering.
		events, err = h.expander.EnsureWindow(r.Context(), user.ID, []int64{cal.ID}, winStart, winEnd)
	} else {
		events, err = h.store.Events.ListForCalendar(r.Context(), cal.ID)
	}
	if err != nil {
		writeLookupError(w, err, "events")
		return
	}

	items := h.eventItemsWithData(events, cal)
	col := calendarCollection(cal.ID, cal.Name, cal.Revision)

	var hrefs []string
	if multiGet {
		hrefs = report.Hrefs
	}
	writeMultiStatus(w, BuildCollectionMultistatus(col, items, hrefs, reportPropertyNames(report.Prop), wantsReportPrivileges(report.Prop)))
}

func (h *Handler) addressBookReport(w http.ResponseWriter, r *http.Request, user *store.User, cleanPath string, report reportRequest) {
	bookID, ok := parseCollectionPath(cleanPath, "/dav/addressbooks")
	if !ok {
		http.Error(w, "address book reports must target a collection", http.StatusForbidden)
		return
	}
	book, err := h.loadAddressBook(r.Context(), user, bookID)
	if err != nil {
		writeLookupError(w, err, "address book")
		return
	}

	contacts, err := h.store.Contacts.ListForBook(r.Context(), book.ID)
	if err != nil {
		writeLookupError(w, err, "contacts")
		return
	}

	items := contactItemsWithData(contacts)
	col := addressBookCollection(book.ID, book.Name, book.Revision)

	var hrefs []string
	if report.XMLName.Local == "addressbook-multiget" {
		hrefs = report.Hrefs
	}
	writeMultiStatus(w, BuildCollectionMultistatus(col, items, hrefs, reportPropertyNames(report.Prop), wantsReportPrivileges(report.Prop)))
}

// reportTimeRange digs the time-range out of a calendar-query filter.
func reportTimeRange(filter *calFilter) (time.Time, time.Time, bool) {
	if filter == nil {
		return time.Time{}, time.Time{}, false
	}
	tr := findTimeRange(&filter.CompFilter)
	if tr == nil {
		return time.Time{}, time.Time{}, false
	}
	start, err1 := time.Parse(icalWireLayout, tr.Start)
	end, err2 := time.Parse(icalWireLayout, tr.End)
	if err1 != nil || err2 != nil || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func findTimeRange(cf *compFilter) *timeRange {
	if cf.TimeRange != nil {
		return cf.TimeRange
	}
	for i := range cf.CompFilter {
		if tr := findTimeRange(&cf.CompFilter[i]); tr != nil {
			return tr
		}
	}
	return nil
}

func reportPropertyNames(p *reportProp) []string {
	if p == nil {
		return nil
	}
	var names []string
	if p.GetETag != nil {
		names = append(names, "getetag")
	}
	if p.CalendarData != nil {
		names = append(names, "calendar-data")
	}
	if p.AddressData != nil {
		names = append(names, "address-data")
	}
	if p.CurrentUserPrivilegeSet != nil {
		names = append(names, "current-user-privilege-set")
	}
	return names
}

func wantsReportPrivileges(p *reportProp) bool {
	return p != nil && p.CurrentUserPrivilegeSet != nil
}

// eventItems builds items without rendered bodies, for PROPFIND listings.
func eventItems(events []store.Event) []Item {
	items := make([]Item, 0, len(events))
	for _, e := range events {
		items = append(items, Item{ID: e.ID, Revision: e.Revision, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt})
	}
	return items
}

func (h *Handler) eventItemsWithData(events []store.Event, cal *store.Calendar) []Item {
	items := make([]Item, 0, len(events))
	for _, e := range events {
		items = append(items, Item{
			ID:        e.ID,
			Revision:  e.Revision,
			Data:      ical.Render([]store.Event{e}, []store.Calendar{*cal}, h.cfg.DefaultTransparency),
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return items
}

// contactItems builds items without rendered bodies, for PROPFIND listings.
func contactItems(contacts []store.Contact) []Item {
	items := make([]Item, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, Item{ID: c.ID, Revision: c.Revision, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
	}
	return items
}

func contactItemsWithData(contacts []store.Contact) []Item {
	items := make([]Item, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, Item{
			ID:        c.ID,
			Revision:  c.Revision,
			Data:      contactCard(c),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return items
}

// contactCard prefers the stored raw card and falls back to generating a
// minimal one from the structured fields.
func contactCard(c store.Contact) string {
	if c.RawVCard != "" {
		return c.RawVCard
	}
	uid := c.UID
	if uid == "" {
		uid = strconv.FormatInt(c.ID, 10)
	}
	return vcard.Generate(uid, c.FirstName, c.LastName)
}
