package dav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const userAgent = "webdav-go/0.1"

// Client is an HTTP client for a WebDAV endpoint. It handles request
// construction, basic authentication, and error classification. Every
// request is a single attempt: the primitives here move whole files, and
// a partially-consumed body is not safe to replay.
type Client struct {
	base       *url.URL
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a WebDAV client for the given endpoint URL.
// baseURL is the server-side directory all remote paths are resolved
// against, e.g. "https://dav.example.com/remote.php/dav/files/alice".
func NewClient(baseURL, username, password string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("dav: parsing base URL: %w", err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("dav: base URL %q must be absolute", baseURL)
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		base:       base,
		username:   username,
		password:   password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into request URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// endpoint returns the full request URL for a remote path.
func (c *Client) endpoint(remotePath string) string {
	if !strings.HasPrefix(remotePath, "/") {
		remotePath = "/" + remotePath
	}

	return c.base.Scheme + "://" + c.base.Host + c.base.Path + encodePathSegments(remotePath)
}

// do executes a single request against the endpoint. header entries are
// copied onto the request. Any non-2xx status is returned as a
// *StatusError carrying the classified sentinel; the caller owns the
// response body on success.
func (c *Client) do(
	ctx context.Context, method, remotePath string, body io.Reader, header http.Header,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(remotePath), body)
	if err != nil {
		return nil, fmt.Errorf("dav: creating %s request: %w", method, err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("User-Agent", userAgent)

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dav: %s %s: %w", method, remotePath, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", remotePath),
			slog.Int("status", resp.StatusCode),
		)

		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", remotePath),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// drainAndClose consumes and closes a response body so the underlying
// connection can be reused.
func drainAndClose(resp *http.Response) error {
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("dav: draining response body: %w", err)
	}

	return nil
}
