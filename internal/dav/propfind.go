package dav

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// propfindBody requests the three properties this client cares about.
// Servers return everything inside a multistatus envelope; parseMultistatus
// resolves that envelope exactly once into typed Info values, so no caller
// ever re-inspects response shape.
const propfindBody = xml.Header + `<d:propfind xmlns:d="DAV:">
<d:prop><d:resourcetype/><d:getcontentlength/><d:getlastmodified/></d:prop>
</d:propfind>`

// Info describes one remote node as reported by the server.
// Size is 0 and Modified is the zero time when the server omitted the
// property; callers apply their own defaulting policy.
type Info struct {
	// Path is the server-absolute path of the node with the client's
	// base path stripped, i.e. the same namespace callers pass in.
	Path     string
	IsDir    bool
	Size     int64
	Modified time.Time
}

type multistatus struct {
	XMLName   xml.Name      `xml:"DAV: multistatus"`
	Responses []msgResponse `xml:"response"`
}

type msgResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

type propstat struct {
	Status string  `xml:"status"`
	Prop   msgProp `xml:"prop"`
}

type msgProp struct {
	ResourceType  resourceType `xml:"resourcetype"`
	ContentLength string       `xml:"getcontentlength"`
	LastModified  string       `xml:"getlastmodified"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// parseMultistatus decodes a 207 Multi-Status body into Info values,
// one per response element, preserving server order.
func (c *Client) parseMultistatus(body io.Reader) ([]Info, error) {
	var ms multistatus
	if err := xml.NewDecoder(body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("dav: decoding multistatus response: %w", err)
	}

	infos := make([]Info, 0, len(ms.Responses))
	for i := range ms.Responses {
		info, err := c.toInfo(&ms.Responses[i])
		if err != nil {
			return nil, err
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// toInfo normalizes one multistatus response element into an Info.
// Properties are taken from propstat blocks with a 200-class status
// (or with no status at all, which some servers omit).
func (c *Client) toInfo(r *msgResponse) (Info, error) {
	p, err := c.hrefPath(r.Href)
	if err != nil {
		return Info{}, err
	}

	info := Info{Path: p}

	for i := range r.Propstats {
		ps := &r.Propstats[i]
		if ps.Status != "" && !strings.Contains(ps.Status, "200") {
			continue
		}

		if ps.Prop.ResourceType.Collection != nil {
			info.IsDir = true
		}

		if raw := strings.TrimSpace(ps.Prop.ContentLength); raw != "" {
			size, parseErr := strconv.ParseInt(raw, 10, 64)
			if parseErr != nil {
				c.logger.Warn("invalid getcontentlength, treating as absent",
					slog.String("path", p),
					slog.String("raw", raw),
				)
			} else {
				info.Size = size
			}
		}

		if raw := strings.TrimSpace(ps.Prop.LastModified); raw != "" {
			mod, parseErr := http.ParseTime(raw)
			if parseErr != nil {
				c.logger.Warn("invalid getlastmodified, treating as absent",
					slog.String("path", p),
					slog.String("raw", raw),
				)
			} else {
				info.Modified = mod
			}
		}
	}

	return info, nil
}

// hrefPath converts a multistatus href into a server path in the caller's
// namespace: percent-decoded, base path stripped, leading slash ensured.
// Hrefs may be absolute URLs or server-absolute paths depending on server.
func (c *Client) hrefPath(href string) (string, error) {
	raw := strings.TrimSpace(href)
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("dav: parsing href %q: %w", href, err)
		}

		raw = u.EscapedPath()
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("dav: decoding href %q: %w", href, err)
	}

	decoded = strings.TrimSuffix(decoded, "/")
	p := strings.TrimPrefix(decoded, c.base.Path)

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return p, nil
}
