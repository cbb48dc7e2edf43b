package webdav

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/openmined/davsync/internal/remote"
)

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:getlastmodified/>
    <D:getcontentlength/>
    <D:resourcetype/>
  </D:prop>
</D:propfind>`

var errEmptyMultistatus = errors.New("empty multistatus response")

type multistatus struct {
	Responses []propResponse `xml:"DAV: response"`
}

type propResponse struct {
	Href      string     `xml:"DAV: href"`
	Propstats []propstat `xml:"DAV: propstat"`
}

type propstat struct {
	Prop   prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

type prop struct {
	LastModified  string       `xml:"DAV: getlastmodified"`
	ContentLength string       `xml:"DAV: getcontentlength"`
	ResourceType  resourceType `xml:"DAV: resourcetype"`
}

type resourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
}

// parseStat reads the first response of a depth 0 multistatus body.
// Properties reported in a non-200 propstat are ignored.
func parseStat(body []byte) (*remote.FileInfo, error) {
	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}
	if len(ms.Responses) == 0 {
		return nil, errEmptyMultistatus
	}

	info := &remote.FileInfo{}
	for _, ps := range ms.Responses[0].Propstats {
		if ps.Status != "" && !strings.Contains(ps.Status, " 200 ") {
			continue
		}

		if ps.Prop.ResourceType.Collection != nil {
			info.IsDir = true
		}

		if v := strings.TrimSpace(ps.Prop.LastModified); v != "" {
			t, err := http.ParseTime(v)
			if err != nil {
				return nil, fmt.Errorf("parse getlastmodified %q: %w", v, err)
			}
			info.LastModified = t.UTC()
		}

		if v := strings.TrimSpace(ps.Prop.ContentLength); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse getcontentlength %q: %w", v, err)
			}
			info.Size = n
		}
	}

	return info, nil
}
