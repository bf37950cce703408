package dav

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"

	"github.com/hearthlabs/hearth/internal/store"
)

// fileKnownProps is the full property set allprop expands to on the file
// tree.
var fileKnownProps = []string{
	"displayname",
	"resourcetype",
	"getcontentlength",
	"getcontenttype",
	"getlastmodified",
	"creationdate",
	"getetag",
}

// BuildFilePropfind walks the file tree under rootPath/queryPath and
// produces a multistatus document. Depth "0" answers for the target only,
// "1" adds immediate children, anything else recurses fully. Each path
// gets a 200 propstat with the requested properties that resolve and,
// when any were requested that did not, a parallel 404 propstat naming
// them. Directories never resolve content-length or content-type.
func BuildFilePropfind(properties []string, rootPath, queryPath, depth string) (*etree.Document, error) {
	target := filepath.Join(rootPath, filepath.FromSlash(queryPath))
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", queryPath, err)
	}

	if isAllProp(properties) || len(properties) == 0 {
		properties = fileKnownProps
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	ms := doc.CreateElement("d:multistatus")
	ms.CreateAttr("xmlns:d", "DAV:")

	addFileResponse(ms, target, fileHref(queryPath, info.IsDir()), info, properties)
	if info.IsDir() && depth != "0" {
		if err := addChildResponses(ms, target, queryPath, depth == "1", properties); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func addChildResponses(ms *etree.Element, dir, rel string, shallow bool, properties []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", rel, err)
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		childFS := filepath.Join(dir, entry.Name())
		childRel := joinRel(rel, entry.Name())
		addFileResponse(ms, childFS, fileHref(childRel, info.IsDir()), info, properties)
		if info.IsDir() && !shallow {
			if err := addChildResponses(ms, childFS, childRel, false, properties); err != nil {
				return err
			}
		}
	}
	return nil
}

func addFileResponse(ms *etree.Element, fsPath, href string, info os.FileInfo, properties []string) {
	resp := ms.CreateElement("d:response")
	resp.CreateElement("d:href").SetText(href)

	found := resp.CreateElement("d:propstat")
	foundProp := found.CreateElement("d:prop")
	var missing []string

	for _, name := range properties {
		if !resolveFileProp(foundProp, fsPath, info, name) {
			missing = append(missing, name)
		}
	}

	found.CreateElement("d:status").SetText(httpStatusOK)

	if len(missing) > 0 {
		nf := resp.CreateElement("d:propstat")
		nfProp := nf.CreateElement("d:prop")
		for _, name := range missing {
			nfProp.CreateElement("d:" + name)
		}
		nf.CreateElement("d:status").SetText(httpStatusNotFound)
	}
}

func resolveFileProp(parent *etree.Element, fsPath string, info os.FileInfo, name string) bool {
	switch name {
	case "displayname":
		parent.CreateElement("d:displayname").SetText(info.Name())
	case "resourcetype":
		rt := parent.CreateElement("d:resourcetype")
		if info.IsDir() {
			rt.CreateElement("d:collection")
		}
	case "getcontentlength":
		if info.IsDir() {
			return false
		}
		parent.CreateElement("d:getcontentlength").SetText(strconv.FormatInt(info.Size(), 10))
	case "getcontenttype":
		if info.IsDir() {
			return false
		}
		parent.CreateElement("d:getcontenttype").SetText(detectContentType(fsPath))
	case "getlastmodified":
		parent.CreateElement("d:getlastmodified").SetText(info.ModTime().UTC().Format(http.TimeFormat))
	case "creationdate":
		parent.CreateElement("d:creationdate").SetText(info.ModTime().UTC().Format(time.RFC3339))
	case "getetag":
		etag := fmt.Sprintf("%x-%x", info.Size(), info.ModTime().UnixNano())
		parent.CreateElement("d:getetag").SetText("\"" + etag + "\"")
	default:
		return false
	}
	return true
}

func detectContentType(fsPath string) string {
	mime, err := mimetype.DetectFile(fsPath)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}

// fileHref builds the DAV href for a path under the file root, escaping
// every segment but keeping the separators.
func fileHref(rel string, isDir bool) string {
	href := "/dav/files"
	if rel != "" {
		segments := strings.Split(rel, "/")
		for i, seg := range segments {
			segments[i] = url.PathEscape(seg)
		}
		href += "/" + strings.Join(segments, "/")
	}
	if isDir && !strings.HasSuffix(href, "/") {
		href += "/"
	}
	return href
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
