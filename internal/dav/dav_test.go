package dav

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPropertyNames(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []string
	}{
		{"empty body", "", []string{"allprop"}},
		{"malformed xml", "<propfind><prop>", []string{"allprop"}},
		{"not a propfind", "<foo/>", []string{"allprop"}},
		{"explicit allprop", `<d:propfind xmlns:d="DAV:"><d:allprop/></d:propfind>`, []string{"allprop"}},
		{"empty prop", `<d:propfind xmlns:d="DAV:"><d:prop/></d:propfind>`, []string{"allprop"}},
		{
			"prop list",
			`<d:propfind xmlns:d="DAV:"><d:prop><d:displayname/><d:getcontentlength/></d:prop></d:propfind>`,
			[]string{"displayname", "getcontentlength"},
		},
		{
			"mixed namespaces",
			`<d:propfind xmlns:d="DAV:" xmlns:cs="http://calendarserver.org/ns/"><d:prop><cs:getctag/><d:getetag/></d:prop></d:propfind>`,
			[]string{"getctag", "getetag"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PropertyNames([]byte(tc.body))
			if len(got) != len(tc.want) {
				t.Fatalf("PropertyNames = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("PropertyNames[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBuildFilePropfindDepthZero(t *testing.T) {
	root := t.TempDir()
	payload := strings.Repeat("x", 42)
	if err := os.WriteFile(filepath.Join(root, "report.txt"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := BuildFilePropfind([]string{"displayname", "getcontentlength"}, root, "report.txt", "0")
	if err != nil {
		t.Fatal(err)
	}
	out, err := doc.WriteToString()
	if err != nil {
		t.Fatal(err)
	}

	responses := doc.FindElements("//d:response")
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d\n%s", len(responses), out)
	}
	propstats := responses[0].FindElements("d:propstat")
	if len(propstats) != 1 {
		t.Fatalf("expected a single 200 propstat, got %d\n%s", len(propstats), out)
	}
	if got := propstats[0].FindElement("d:status").Text(); got != httpStatusOK {
		t.Errorf("status = %q", got)
	}
	if got := propstats[0].FindElement("d:prop/d:displayname").Text(); got != "report.txt" {
		t.Errorf("displayname = %q", got)
	}
	if got := propstats[0].FindElement("d:prop/d:getcontentlength").Text(); got != "42" {
		t.Errorf("getcontentlength = %q", got)
	}
}

func TestBuildFilePropfindDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "a file.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := BuildFilePropfind([]string{"displayname", "getcontentlength", "resourcetype"}, root, "docs", "1")
	if err != nil {
		t.Fatal(err)
	}
	out, _ := doc.WriteToString()

	responses := doc.FindElements("//d:response")
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d\n%s", len(responses), out)
	}

	// Directory response: getcontentlength lands in the 404 propstat.
	dirPropstats := responses[0].FindElements("d:propstat")
	if len(dirPropstats) != 2 {
		t.Fatalf("expected 200 and 404 propstats for the directory\n%s", out)
	}
	if el := dirPropstats[1].FindElement("d:prop/d:getcontentlength"); el == nil {
		t.Errorf("directory should report getcontentlength as not found\n%s", out)
	}
	if el := dirPropstats[0].FindElement("d:prop/d:resourcetype/d:collection"); el == nil {
		t.Errorf("directory missing collection resourcetype\n%s", out)
	}

	// Child href keeps separators but escapes the space.
	href := responses[1].FindElement("d:href").Text()
	if href != "/dav/files/docs/a%20file.txt" {
		t.Errorf("child href = %q", href)
	}
}

func TestBuildFilePropfindMissingPath(t *testing.T) {
	if _, err := BuildFilePropfind(nil, t.TempDir(), "nope.txt", "0"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestBuildCollectionMultistatusMultiget(t *testing.T) {
	col := Collection{Href: "/dav/addressbooks/3/", Name: "Personal", Revision: 9}
	items := []Item{
		{ID: 1, Revision: 2, Data: "BEGIN:VCARD\r\nEND:VCARD\r\n"},
		{ID: 2, Revision: 1, Data: "BEGIN:VCARD\r\nEND:VCARD\r\n"},
	}

	ms := BuildCollectionMultistatus(col, items, []string{"/dav/addressbooks/3/2.vcf"}, []string{"getetag", "address-data"}, false)

	if len(ms.Response) != 1 {
		t.Fatalf("multiget must omit the collection response and filter to the requested ids, got %d responses", len(ms.Response))
	}
	resp := ms.Response[0]
	if resp.Href != "/dav/addressbooks/3/2.vcf" {
		t.Errorf("href = %q", resp.Href)
	}
	ok := resp.Propstat[0]
	if ok.Prop.GetETag != `"2-1"` {
		t.Errorf("etag = %q", ok.Prop.GetETag)
	}
	if ok.Prop.AddressData == "" {
		t.Error("multiget response must carry address-data")
	}
}

func TestBuildCollectionMultistatusListing(t *testing.T) {
	col := Collection{Href: "/dav/calendars/7/", Name: "Work", Revision: 4, Calendar: true}
	items := []Item{{ID: 11, Revision: 3}}

	ms := BuildCollectionMultistatus(col, items, nil, []string{"displayname", "getctag", "getetag", "bogusprop"}, true)

	if len(ms.Response) != 2 {
		t.Fatalf("expected collection + item responses, got %d", len(ms.Response))
	}
	colResp := ms.Response[0]
	if colResp.Href != "/dav/calendars/7/" {
		t.Errorf("collection href = %q", colResp.Href)
	}
	if colResp.Propstat[0].Prop.DisplayName != "Work" {
		t.Errorf("displayname = %q", colResp.Propstat[0].Prop.DisplayName)
	}
	if colResp.Propstat[0].Prop.CTag != "4" {
		t.Errorf("ctag = %q", colResp.Propstat[0].Prop.CTag)
	}
	if colResp.Propstat[0].Prop.CurrentUserPrivilegeSet == nil {
		t.Error("privileges requested but absent on collection")
	}
	if len(colResp.Propstat) != 2 {
		t.Fatalf("expected a 404 propstat for unresolved properties")
	}
	names := colResp.Propstat[1].Prop.Missing
	foundBogus := false
	for _, m := range names {
		if m.XMLName.Local == "d:bogusprop" {
			foundBogus = true
		}
	}
	if !foundBogus {
		t.Errorf("bogusprop missing from 404 propstat: %v", names)
	}

	itemResp := ms.Response[1]
	if itemResp.Href != "/dav/calendars/7/11.ics" {
		t.Errorf("item href = %q", itemResp.Href)
	}
	if itemResp.Propstat[0].Prop.GetETag != `"11-3"` {
		t.Errorf("item etag = %q", itemResp.Propstat[0].Prop.GetETag)
	}
	if itemResp.Propstat[0].Prop.CalendarData != "" {
		t.Error("listing responses must not carry calendar-data")
	}
	if itemResp.Propstat[0].Prop.CurrentUserPrivilegeSet == nil {
		t.Error("privileges requested but absent on item")
	}

	set := itemResp.Propstat[0].Prop.CurrentUserPrivilegeSet
	if len(set.Privileges) != 8 {
		t.Errorf("expected the full 8-privilege set, got %d", len(set.Privileges))
	}
}

func TestMultistatusMarshals(t *testing.T) {
	col := Collection{Href: "/dav/calendars/1/", Name: "Home", Revision: 1, Calendar: true}
	ms := BuildCollectionMultistatus(col, []Item{{ID: 5, Revision: 2, Data: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}},
		[]string{"/dav/calendars/1/5.ics"}, nil, false)

	out, err := xml.Marshal(ms)
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)
	for _, want := range []string{
		`xmlns:d="DAV:"`,
		`xmlns:cal="urn:ietf:params:xml:ns:caldav"`,
		"<d:href>/dav/calendars/1/5.ics</d:href>",
		"<cal:calendar-data>",
		"HTTP/1.1 200 OK",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("marshaled multistatus missing %q\n%s", want, s)
		}
	}
}

func TestResourceIDFromHref(t *testing.T) {
	cases := []struct {
		href string
		id   int64
		ok   bool
	}{
		{"/dav/addressbooks/3/42.vcf", 42, true},
		{"/dav/calendars/7/9.ics", 9, true},
		{"/dav/calendars/7/", 0, false},
		{"/dav/calendars/7/abc.ics", 0, false},
	}
	for _, tc := range cases {
		id, ok := resourceIDFromHref(tc.href)
		if id != tc.id || ok != tc.ok {
			t.Errorf("resourceIDFromHref(%q) = %d,%v want %d,%v", tc.href, id, ok, tc.id, tc.ok)
		}
	}
}
