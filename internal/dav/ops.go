package dav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// methodPropfind and friends: WebDAV verbs the net/http constants lack.
const (
	methodPropfind = "PROPFIND"
	methodMove     = "MOVE"
	methodCopy     = "COPY"
)

// Stat fetches the properties of a single remote node via a depth-0
// PROPFIND.
func (c *Client) Stat(ctx context.Context, remotePath string) (*Info, error) {
	c.logger.Debug("stat", slog.String("path", remotePath))

	infos, err := c.propfind(ctx, remotePath, "0")
	if err != nil {
		return nil, err
	}

	if len(infos) == 0 {
		return nil, fmt.Errorf("dav: stat %s: empty multistatus response", remotePath)
	}

	return &infos[0], nil
}

// List fetches a recursive listing of the subtree rooted at remotePath
// via a depth-infinity PROPFIND. Entries are returned in server order,
// the requested directory itself included.
func (c *Client) List(ctx context.Context, remotePath string) ([]Info, error) {
	c.logger.Info("listing subtree", slog.String("path", remotePath))

	infos, err := c.propfind(ctx, remotePath, "infinity")
	if err != nil {
		return nil, err
	}

	c.logger.Debug("listed subtree",
		slog.String("path", remotePath),
		slog.Int("entries", len(infos)),
	)

	return infos, nil
}

func (c *Client) propfind(ctx context.Context, remotePath, depth string) ([]Info, error) {
	header := http.Header{}
	header.Set("Depth", depth)
	header.Set("Content-Type", `application/xml; charset="utf-8"`)

	resp, err := c.do(ctx, methodPropfind, remotePath, strings.NewReader(propfindBody), header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.parseMultistatus(resp.Body)
}

// ReadStream opens the content of a remote file as a byte stream.
// When rangeHeader is non-empty it is sent as the Range header, e.g.
// "bytes=10-19" or "bytes=5-". The caller must close the returned stream.
func (c *Client) ReadStream(ctx context.Context, remotePath, rangeHeader string) (io.ReadCloser, error) {
	c.logger.Debug("read stream",
		slog.String("path", remotePath),
		slog.String("range", rangeHeader),
	)

	var header http.Header
	if rangeHeader != "" {
		header = http.Header{}
		header.Set("Range", rangeHeader)
	}

	resp, err := c.do(ctx, http.MethodGet, remotePath, nil, header)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// ReadAll fetches the entire content of a remote file into memory.
func (c *Client) ReadAll(ctx context.Context, remotePath string) ([]byte, error) {
	stream, err := c.ReadStream(ctx, remotePath, "")
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("dav: reading %s: %w", remotePath, err)
	}

	return data, nil
}

// Write replaces the entire content of a remote file with the contents of
// body, which is fully consumed before Write returns. The server decides
// the atomicity of the replacement.
func (c *Client) Write(ctx context.Context, remotePath string, body io.Reader) error {
	c.logger.Info("writing file", slog.String("path", remotePath))

	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(ctx, http.MethodPut, remotePath, body, header)
	if err != nil {
		return err
	}

	return drainAndClose(resp)
}

// Move moves a remote node, overwriting any existing destination.
func (c *Client) Move(ctx context.Context, src, dest string) error {
	c.logger.Info("moving file",
		slog.String("src", src),
		slog.String("dest", dest),
	)

	return c.destinationOp(ctx, methodMove, src, dest)
}

// Copy copies a remote node, overwriting any existing destination.
func (c *Client) Copy(ctx context.Context, src, dest string) error {
	c.logger.Info("copying file",
		slog.String("src", src),
		slog.String("dest", dest),
	)

	return c.destinationOp(ctx, methodCopy, src, dest)
}

// destinationOp issues a MOVE or COPY. The Destination header must carry
// the full destination URL per RFC 4918.
func (c *Client) destinationOp(ctx context.Context, method, src, dest string) error {
	header := http.Header{}
	header.Set("Destination", c.endpoint(dest))
	header.Set("Overwrite", "T")

	resp, err := c.do(ctx, method, src, nil, header)
	if err != nil {
		return err
	}

	return drainAndClose(resp)
}

// Delete removes a remote node. Deleting a directory removes its contents.
func (c *Client) Delete(ctx context.Context, remotePath string) error {
	c.logger.Info("deleting file", slog.String("path", remotePath))

	resp, err := c.do(ctx, http.MethodDelete, remotePath, nil, nil)
	if err != nil {
		return err
	}

	return drainAndClose(resp)
}
