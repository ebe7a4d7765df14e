package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrInvalidRange is returned by Read when a byte range sets End below
// Start. Open-ended ranges use a negative End, not the zero value.
var ErrInvalidRange = errors.New("driver: invalid byte range")

// Read opens a remote file as a byte stream. With a range option the
// request carries "bytes=start-end" (inclusive) or "bytes=start-" when
// End is open. The caller must close the returned stream.
func (d *WebDAV) Read(ctx context.Context, path string, opts *ReadOptions) (io.ReadCloser, error) {
	var rangeHeader string

	if opts != nil && opts.Range != nil {
		r := opts.Range

		switch {
		case r.End < 0:
			rangeHeader = fmt.Sprintf("bytes=%d-", r.Start)
		case r.End < r.Start:
			return nil, fmt.Errorf("%w: start %d, end %d", ErrInvalidRange, r.Start, r.End)
		default:
			rangeHeader = fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
		}
	}

	return d.fs.ReadStream(ctx, d.paths.Normalize(path), rangeHeader)
}

// Stat returns the metadata of a remote file. Missing size defaults to 0
// and missing last-modified to the current time.
func (d *WebDAV) Stat(ctx context.Context, path string) (FileMeta, error) {
	info, err := d.fs.Stat(ctx, d.paths.Normalize(path))
	if err != nil {
		return FileMeta{}, err
	}

	meta := FileMeta{Size: info.Size, Modified: info.Modified}

	if meta.Modified.IsZero() {
		d.logger.Warn("missing last-modified, defaulting to current time",
			slog.String("path", path),
		)

		meta.Modified = time.Now().UTC()
	}

	return meta, nil
}

// Exists reports whether a stat of path succeeds. Every stat failure,
// not-found or otherwise, collapses to false; callers needing to tell
// "missing" from "backend unreachable" should call Stat directly.
func (d *WebDAV) Exists(ctx context.Context, path string) bool {
	_, err := d.fs.Stat(ctx, d.paths.Normalize(path))
	if err != nil {
		d.logger.Debug("exists check failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return false
	}

	return true
}

// Write replaces the entire remote object with the contents of content,
// which is fully consumed before Write returns.
func (d *WebDAV) Write(ctx context.Context, path string, content io.Reader) error {
	return d.fs.Write(ctx, d.paths.Normalize(path), content)
}

// Move moves a remote file within the root subtree.
func (d *WebDAV) Move(ctx context.Context, src, dest string) error {
	return d.fs.Move(ctx, d.paths.Normalize(src), d.paths.Normalize(dest))
}

// Copy copies a remote file within the root subtree.
func (d *WebDAV) Copy(ctx context.Context, src, dest string) error {
	return d.fs.Copy(ctx, d.paths.Normalize(src), d.paths.Normalize(dest))
}

// Delete removes a remote file.
func (d *WebDAV) Delete(ctx context.Context, path string) error {
	return d.fs.Delete(ctx, d.paths.Normalize(path))
}

// List fetches one deep listing of the subtree under prefix and returns
// the file entries as root-relative paths, in the order the backend
// reported them. Directories are not surfaced.
func (d *WebDAV) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := d.fs.List(ctx, d.paths.Normalize(prefix))
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(infos))

	for i := range infos {
		if infos[i].IsDir {
			continue
		}

		paths = append(paths, d.paths.Denormalize(infos[i].Path))
	}

	d.logger.Debug("listed files",
		slog.String("prefix", prefix),
		slog.Int("count", len(paths)),
	)

	return paths, nil
}
