package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// ErrChunkContention is returned by WriteChunk when chunk locking is
// enabled and the per-path lock could not be acquired.
var ErrChunkContention = errors.New("driver: chunk write contention")

// tusExtensions are the resumable-protocol extensions this driver
// advertises. Expiration is advertised for the host to enforce; the
// driver keeps no upload state of its own to expire.
var tusExtensions = []string{"creation", "termination", "expiration"}

// TusExtensions returns the supported resumable-upload extensions.
func (d *WebDAV) TusExtensions() []string {
	return slices.Clone(tusExtensions)
}

// CreateChunkedUpload establishes the backing object for a chunked upload
// by writing a zero-length file at filepath. The host's token is returned
// unchanged. Afterwards Stat(filepath) reports size 0.
func (d *WebDAV) CreateChunkedUpload(ctx context.Context, filepath string, token any) (any, error) {
	d.logger.Info("creating chunked upload", slog.String("path", filepath))

	if err := d.fs.Write(ctx, d.paths.Normalize(filepath), bytes.NewReader(nil)); err != nil {
		return nil, err
	}

	return token, nil
}

// WriteChunk commits one chunk of a resumable upload at the given byte
// offset and returns the resulting total object size.
//
// The backend has no partial-write primitive, so every chunk costs a full
// read plus a full write: the current object is read whole, its bytes at
// and beyond offset are discarded, the chunk is appended, and the merged
// buffer replaces the object. An offset below the current size therefore
// truncates — trailing bytes are not restored. An offset beyond the
// current size appends to what exists; no zero padding is inserted.
//
// Concurrent WriteChunk calls against the same filepath race (last writer
// wins) unless the driver was built with WithChunkLocking, and even then
// only writers inside this process are serialized.
func (d *WebDAV) WriteChunk(
	ctx context.Context, filepath string, content io.Reader, offset int64, _ any,
) (int64, error) {
	remote := d.paths.Normalize(filepath)

	if d.locks != nil {
		if !d.locks.TryLock(remote) {
			return 0, ErrChunkContention
		}
		defer d.locks.Unlock(remote)
	}

	existing, err := d.fs.ReadAll(ctx, remote)
	if err != nil {
		return 0, err
	}

	chunk, err := io.ReadAll(content)
	if err != nil {
		return 0, fmt.Errorf("driver: draining chunk stream: %w", err)
	}

	keep := min(max(offset, 0), int64(len(existing)))

	merged := make([]byte, 0, keep+int64(len(chunk)))
	merged = append(merged, existing[:keep]...)
	merged = append(merged, chunk...)

	if err := d.fs.Write(ctx, remote, bytes.NewReader(merged)); err != nil {
		return 0, err
	}

	total := int64(len(merged))

	d.logger.Debug("chunk committed",
		slog.String("path", filepath),
		slog.Int64("offset", offset),
		slog.Int("chunk_bytes", len(chunk)),
		slog.Int64("total_bytes", total),
	)

	return total, nil
}

// FinishChunkedUpload completes a chunked upload. It is a no-op: every
// WriteChunk already commits the full object, so there is nothing left
// to finalize.
func (d *WebDAV) FinishChunkedUpload(_ context.Context, filepath string, _ any) error {
	d.logger.Debug("finished chunked upload", slog.String("path", filepath))

	return nil
}

// DeleteChunkedUpload aborts a chunked upload by deleting its backing
// object outright.
func (d *WebDAV) DeleteChunkedUpload(ctx context.Context, filepath string, _ any) error {
	d.logger.Info("deleting chunked upload", slog.String("path", filepath))

	return d.fs.Delete(ctx, d.paths.Normalize(filepath))
}
