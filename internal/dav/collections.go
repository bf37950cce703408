package dav

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
)

// Collection describes a CalDAV calendar or CardDAV address book being
// answered for. Revision doubles as the ctag.
type Collection struct {
	Href     string
	Name     string
	Revision int64
	Calendar bool
}

// Item is one resource inside a collection. Data holds the rendered
// iCalendar/vCard body and may be empty outside multi-get responses.
type Item struct {
	ID        int64
	Revision  int64
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Collection) itemHref(id int64) string {
	ext := ".ics"
	if !c.Calendar {
		ext = ".vcf"
	}
	return path.Join(c.Href, strconv.FormatInt(id, 10)) + ext
}

func (c Collection) contentType() string {
	if c.Calendar {
		return "text/calendar; charset=utf-8"
	}
	return "text/vcard; charset=utf-8"
}

func itemETag(it Item) string {
	return fmt.Sprintf("%d-%d", it.ID, it.Revision)
}

// BuildCollectionMultistatus assembles the 207 payload for a collection.
// A non-empty includeHrefs marks a multi-get: items are filtered to
// exactly the ids those hrefs name, each response carries the rendered
// body, and the collection-level response is omitted. Otherwise a
// synthetic collection response precedes the per-item ones. requested
// lists lower-cased property names; empty or ["allprop"] resolves the
// full known set.
func BuildCollectionMultistatus(col Collection, items []Item, includeHrefs []string, requested []string, includePrivileges bool) multistatus {
	if len(requested) == 0 {
		requested = []string{"allprop"}
	}
	multiGet := len(includeHrefs) > 0

	var responses []response
	if multiGet {
		items = filterItemsByHrefs(items, includeHrefs)
	} else {
		responses = append(responses, collectionResponse(col, requested, includePrivileges))
	}
	for _, it := range items {
		responses = append(responses, itemResponse(col, it, requested, multiGet, includePrivileges))
	}
	return newMultistatus(responses)
}

// filterItemsByHrefs keeps the items whose ids appear in the multi-get
// href list, preserving href order.
func filterItemsByHrefs(items []Item, hrefs []string) []Item {
	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	var out []Item
	for _, href := range hrefs {
		id, ok := resourceIDFromHref(href)
		if !ok {
			continue
		}
		if it, found := byID[id]; found {
			out = append(out, it)
		}
	}
	return out
}

// resourceIDFromHref extracts the numeric id from hrefs shaped like
// /dav/addressbooks/<book>/<id>.vcf or the .ics calendar equivalent.
func resourceIDFromHref(href string) (int64, bool) {
	base := path.Base(strings.TrimSpace(href))
	// Only item hrefs qualify; a collection href must not match an id.
	switch {
	case strings.HasSuffix(base, ".vcf"):
		base = strings.TrimSuffix(base, ".vcf")
	case strings.HasSuffix(base, ".ics"):
		base = strings.TrimSuffix(base, ".ics")
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isAllProp(requested []string) bool {
	for _, name := range requested {
		if name == "allprop" {
			return true
		}
	}
	return false
}

func collectionResponse(col Collection, requested []string, includePrivileges bool) response {
	rtype := &resourceType{Collection: &struct{}{}}
	if col.Calendar {
		rtype.Calendar = &struct{}{}
	} else {
		rtype.AddressBook = &struct{}{}
	}

	found := prop{}
	var missing []missingProp

	resolve := func(name string) bool {
		switch name {
		case "displayname":
			found.DisplayName = col.Name
		case "resourcetype":
			found.ResourceType = rtype
		case "getctag":
			found.CTag = strconv.FormatInt(col.Revision, 10)
		case "supported-report-set":
			found.SupportedReportSet = supportedReports(col.Calendar)
		case "current-user-privilege-set":
			if !includePrivileges {
				return false
			}
			found.CurrentUserPrivilegeSet = fullPrivilegeSet()
		default:
			return false
		}
		return true
	}

	if isAllProp(requested) {
		for _, name := range []string{"displayname", "resourcetype", "getctag", "supported-report-set", "current-user-privilege-set"} {
			resolve(name)
		}
	} else {
		for _, name := range requested {
			if !resolve(name) {
				missing = append(missing, missingProp{XMLName: propElementName(name)})
			}
		}
	}
	if includePrivileges && found.CurrentUserPrivilegeSet == nil {
		found.CurrentUserPrivilegeSet = fullPrivilegeSet()
	}

	resp := response{
		Href:     ensureCollectionHref(col.Href),
		Propstat: []propstat{{Prop: found, Status: httpStatusOK}},
	}
	if len(missing) > 0 {
		resp.Propstat = append(resp.Propstat, propstat{Prop: prop{Missing: missing}, Status: httpStatusNotFound})
	}
	return resp
}

func itemResponse(col Collection, it Item, requested []string, multiGet, includePrivileges bool) response {
	found := prop{GetETag: "\"" + itemETag(it) + "\""}
	var missing []missingProp

	setData := func() {
		if col.Calendar {
			found.CalendarData = cdataString(it.Data)
		} else {
			found.AddressData = cdataString(it.Data)
		}
		found.GetContentType = col.contentType()
	}

	resolve := func(name string) bool {
		switch name {
		case "getetag", "resourcetype":
			// getetag is always present; leaf resourcetype is empty.
			if name == "resourcetype" {
				found.ResourceType = &resourceType{}
			}
		case "getcontenttype":
			found.GetContentType = col.contentType()
		case "getcontentlength":
			if it.Data == "" {
				return false
			}
			found.GetContentLength = strconv.Itoa(len(it.Data))
		case "calendar-data":
			if !multiGet || !col.Calendar {
				return false
			}
			setData()
		case "address-data":
			if !multiGet || col.Calendar {
				return false
			}
			setData()
		case "getlastmodified":
			if it.UpdatedAt.IsZero() {
				return false
			}
			found.GetLastModified = it.UpdatedAt.UTC().Format(http.TimeFormat)
		case "creationdate":
			if it.CreatedAt.IsZero() {
				return false
			}
			found.CreationDate = it.CreatedAt.UTC().Format(time.RFC3339)
		case "current-user-privilege-set":
			if !includePrivileges {
				return false
			}
			found.CurrentUserPrivilegeSet = fullPrivilegeSet()
		default:
			return false
		}
		return true
	}

	if isAllProp(requested) {
		for _, name := range []string{"getetag", "getcontenttype", "resourcetype", "getlastmodified", "creationdate", "current-user-privilege-set"} {
			resolve(name)
		}
	} else {
		for _, name := range requested {
			if !resolve(name) {
				missing = append(missing, missingProp{XMLName: propElementName(name)})
			}
		}
	}

	// Multi-get responses always carry the rendered body.
	if multiGet {
		setData()
	}
	if includePrivileges && found.CurrentUserPrivilegeSet == nil {
		found.CurrentUserPrivilegeSet = fullPrivilegeSet()
	}

	resp := response{
		Href:     col.itemHref(it.ID),
		Propstat: []propstat{{Prop: found, Status: httpStatusOK}},
	}
	if len(missing) > 0 {
		resp.Propstat = append(resp.Propstat, propstat{Prop: prop{Missing: missing}, Status: httpStatusNotFound})
	}
	return resp
}

func supportedReports(calendar bool) *supportedReportSet {
	if calendar {
		return &supportedReportSet{
			Reports: []supportedReport{
				{Report: reportType{CalendarMultiGet: &struct{}{}}},
				{Report: reportType{CalendarQuery: &struct{}{}}},
			},
		}
	}
	return &supportedReportSet{
		Reports: []supportedReport{
			{Report: reportType{AddressbookMultiGet: &struct{}{}}},
			{Report: reportType{AddressbookQuery: &struct{}{}}},
		},
	}
}

// propElementName maps a lower-cased property name onto a prefixed XML
// element name for 404 propstats.
func propElementName(name string) xml.Name {
	switch name {
	case "getctag":
		return xml.Name{Local: "cs:" + name}
	case "calendar-data":
		return xml.Name{Local: "cal:" + name}
	case "address-data":
		return xml.Name{Local: "card:" + name}
	default:
		return xml.Name{Local: "d:" + name}
	}
}

func ensureCollectionHref(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}
