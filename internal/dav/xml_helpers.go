package dav

import (
	"bytes"
	"encoding/xml"
	"net/http"
)

// safeUnmarshalXML decodes XML with Entity pinned to xml.HTMLEntity so
// external entity references are never resolved.
func safeUnmarshalXML(data []byte, v interface{}) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = xml.HTMLEntity
	return decoder.Decode(v)
}

func writeMultiStatus(w http.ResponseWriter, payload multistatus) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_ = xml.NewEncoder(w).Encode(payload)
}

func newMultistatus(responses []response) multistatus {
	return multistatus{
		XMLName:  xml.Name{Space: "DAV:", Local: "multistatus"},
		XmlnsD:   "DAV:",
		XmlnsC:   "urn:ietf:params:xml:ns:caldav",
		XmlnsA:   "urn:ietf:params:xml:ns:carddav",
		XmlnsCS:  "http://calendarserver.org/ns/",
		Response: responses,
	}
}

const (
	httpStatusOK       = "HTTP/1.1 200 OK"
	httpStatusNotFound = "HTTP/1.1 404 Not Found"
)
