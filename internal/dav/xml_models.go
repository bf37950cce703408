package dav

import "encoding/xml"

// XML response models for DAV PROPFIND/REPORT multistatus payloads. The
// typed models cover the property set collection responses actually use;
// file-tree PROPFIND responses are built dynamically instead because their
// requested property names are open-ended.

type multistatus struct {
	XMLName  xml.Name   `xml:"d:multistatus"`
	XmlnsD   string     `xml:"xmlns:d,attr"`
	XmlnsC   string     `xml:"xmlns:cal,attr"`
	XmlnsA   string     `xml:"xmlns:card,attr"`
	XmlnsCS  string     `xml:"xmlns:cs,attr,omitempty"`
	Response []response `xml:"d:response"`
}

type response struct {
	Href     string     `xml:"d:href"`
	Propstat []propstat `xml:"d:propstat,omitempty"`
	Status   string     `xml:"d:status,omitempty"`
}

type propstat struct {
	Prop   prop   `xml:"d:prop"`
	Status string `xml:"d:status"`
}

type prop struct {
	DisplayName             string                   `xml:"d:displayname,omitempty"`
	ResourceType            *resourceType            `xml:"d:resourcetype,omitempty"`
	GetETag                 string                   `xml:"d:getetag,omitempty"`
	GetContentType          string                   `xml:"d:getcontenttype,omitempty"`
	GetContentLength        string                   `xml:"d:getcontentlength,omitempty"`
	GetLastModified         string                   `xml:"d:getlastmodified,omitempty"`
	CreationDate            string                   `xml:"d:creationdate,omitempty"`
	CTag                    string                   `xml:"cs:getctag,omitempty"`
	CalendarData            cdataString              `xml:"cal:calendar-data,omitempty"`
	AddressData             cdataString              `xml:"card:address-data,omitempty"`
	CurrentUserPrincipal    *hrefProp                `xml:"d:current-user-principal,omitempty"`
	CalendarHomeSet         *hrefListProp            `xml:"cal:calendar-home-set,omitempty"`
	AddressbookHomeSet      *hrefListProp            `xml:"card:addressbook-home-set,omitempty"`
	SupportedReportSet      *supportedReportSet      `xml:"d:supported-report-set,omitempty"`
	CurrentUserPrivilegeSet *currentUserPrivilegeSet `xml:"d:current-user-privilege-set,omitempty"`

	// Missing carries empty elements named after unresolved properties in
	// 404 propstats.
	Missing []missingProp
}

// missingProp marshals as an empty element whose name is set per value.
type missingProp struct {
	XMLName xml.Name
}

// cdataString wraps string content in CDATA for raw wire-format output.
type cdataString string

func (c cdataString) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if c == "" {
		return nil
	}
	return e.EncodeElement(struct {
		S string `xml:",cdata"`
	}{S: string(c)}, start)
}

type resourceType struct {
	Collection  *struct{} `xml:"d:collection,omitempty"`
	Calendar    *struct{} `xml:"cal:calendar,omitempty"`
	AddressBook *struct{} `xml:"card:addressbook,omitempty"`
}

type hrefProp struct {
	Href string `xml:"d:href"`
}

type hrefListProp struct {
	Href []string `xml:"d:href"`
}

type supportedReportSet struct {
	Reports []supportedReport `xml:"d:supported-report"`
}

type supportedReport struct {
	Report reportType `xml:"d:report"`
}

type reportType struct {
	CalendarMultiGet    *struct{} `xml:"cal:calendar-multiget,omitempty"`
	CalendarQuery       *struct{} `xml:"cal:calendar-query,omitempty"`
	AddressbookMultiGet *struct{} `xml:"card:addressbook-multiget,omitempty"`
	AddressbookQuery    *struct{} `xml:"card:addressbook-query,omitempty"`
}

type currentUserPrivilegeSet struct {
	Privileges []privilege `xml:"d:privilege"`
}

type privilege struct {
	Write                       *struct{} `xml:"d:write,omitempty"`
	WriteContent                *struct{} `xml:"d:write-content,omitempty"`
	Bind                        *struct{} `xml:"d:bind,omitempty"`
	Unbind                      *struct{} `xml:"d:unbind,omitempty"`
	WriteACL                    *struct{} `xml:"d:write-acl,omitempty"`
	Read                        *struct{} `xml:"d:read,omitempty"`
	ReadACL                     *struct{} `xml:"d:read-acl,omitempty"`
	ReadCurrentUserPrivilegeSet *struct{} `xml:"d:read-current-user-privilege-set,omitempty"`
}

// fullPrivilegeSet is the fixed privilege set attached when a request asks
// for current-user-privilege-set.
func fullPrivilegeSet() *currentUserPrivilegeSet {
	return &currentUserPrivilegeSet{
		Privileges: []privilege{
			{Write: &struct{}{}},
			{WriteContent: &struct{}{}},
			{Bind: &struct{}{}},
			{Unbind: &struct{}{}},
			{WriteACL: &struct{}{}},
			{Read: &struct{}{}},
			{ReadACL: &struct{}{}},
			{ReadCurrentUserPrivilegeSet: &struct{}{}},
		},
	}
}

// reportRequest is the decoded body of a REPORT. XMLName distinguishes
// calendar-multiget, addressbook-multiget, calendar-query, and
// addressbook-query.
type reportRequest struct {
	XMLName xml.Name
	Hrefs   []string    `xml:"DAV: href"`
	Filter  *calFilter  `xml:"urn:ietf:params:xml:ns:caldav filter"`
	Prop    *reportProp `xml:"DAV: prop"`
}

type reportProp struct {
	CalendarData            *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
	AddressData             *struct{} `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	GetETag                 *struct{} `xml:"DAV: getetag"`
	CurrentUserPrivilegeSet *struct{} `xml:"DAV: current-user-privilege-set"`
}

type calFilter struct {
	CompFilter compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type compFilter struct {
	Name       string       `xml:"name,attr"`
	TimeRange  *timeRange   `xml:"urn:ietf:params:xml:ns:caldav time-range"`
	CompFilter []compFilter `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type timeRange struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}
