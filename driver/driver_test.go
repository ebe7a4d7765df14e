package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storagekit/webdav-go/internal/dav"
)

// fakeFS is an in-memory remoteFS keyed by server-absolute path.
// It mimics the backend contract: whole-file reads and writes only.
type fakeFS struct {
	objects map[string][]byte
	mods    map[string]time.Time
	listing []dav.Info

	statErr error // forced failure for every Stat when non-nil

	lastRange string
	lastOps   []string
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		objects: make(map[string][]byte),
		mods:    make(map[string]time.Time),
	}
}

func (f *fakeFS) notFound(path string) error {
	return &dav.StatusError{StatusCode: 404, Message: path, Err: dav.ErrNotFound}
}

func (f *fakeFS) Stat(_ context.Context, path string) (*dav.Info, error) {
	if f.statErr != nil {
		return nil, f.statErr
	}

	data, ok := f.objects[path]
	if !ok {
		return nil, f.notFound(path)
	}

	return &dav.Info{Path: path, Size: int64(len(data)), Modified: f.mods[path]}, nil
}

func (f *fakeFS) List(_ context.Context, path string) ([]dav.Info, error) {
	f.lastOps = append(f.lastOps, "LIST "+path)

	return f.listing, nil
}

func (f *fakeFS) ReadStream(_ context.Context, path, rangeHeader string) (io.ReadCloser, error) {
	f.lastRange = rangeHeader

	data, ok := f.objects[path]
	if !ok {
		return nil, f.notFound(path)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFS) ReadAll(_ context.Context, path string) ([]byte, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, f.notFound(path)
	}

	return bytes.Clone(data), nil
}

func (f *fakeFS) Write(_ context.Context, path string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.objects[path] = data
	f.lastOps = append(f.lastOps, "PUT "+path)

	return nil
}

func (f *fakeFS) Move(_ context.Context, src, dest string) error {
	data, ok := f.objects[src]
	if !ok {
		return f.notFound(src)
	}

	f.objects[dest] = data
	delete(f.objects, src)
	f.lastOps = append(f.lastOps, "MOVE "+src+" "+dest)

	return nil
}

func (f *fakeFS) Copy(_ context.Context, src, dest string) error {
	data, ok := f.objects[src]
	if !ok {
		return f.notFound(src)
	}

	f.objects[dest] = bytes.Clone(data)
	f.lastOps = append(f.lastOps, "COPY "+src+" "+dest)

	return nil
}

func (f *fakeFS) Delete(_ context.Context, path string) error {
	if _, ok := f.objects[path]; !ok {
		return f.notFound(path)
	}

	delete(f.objects, path)
	f.lastOps = append(f.lastOps, "DELETE "+path)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestDriver(fs remoteFS, root string) *WebDAV {
	return newWithBackend(fs, Config{Root: root}, testLogger())
}

func TestStat_PassesThroughMetadata(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/team/docs/a.txt"] = []byte("hello")
	fs.mods["/team/docs/a.txt"] = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	d := newTestDriver(fs, "/team")

	meta, err := d.Stat(context.Background(), "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), meta.Modified)
}

func TestStat_DefaultsMissingModifiedToNow(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/f.bin"] = nil // zero Modified in fake

	d := newTestDriver(fs, "/")

	before := time.Now().UTC()
	meta, err := d.Stat(context.Background(), "f.bin")
	require.NoError(t, err)

	assert.Zero(t, meta.Size)
	assert.False(t, meta.Modified.Before(before))
	assert.False(t, meta.Modified.After(time.Now().UTC()))
}

func TestStat_ErrorPropagatesUnchanged(t *testing.T) {
	fs := newFakeFS()
	d := newTestDriver(fs, "/")

	_, err := d.Stat(context.Background(), "gone.txt")
	assert.ErrorIs(t, err, dav.ErrNotFound)
}

func TestExists(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/a.txt"] = []byte("x")

	d := newTestDriver(fs, "/")

	assert.True(t, d.Exists(context.Background(), "a.txt"))
	assert.False(t, d.Exists(context.Background(), "missing.txt"))

	// Any stat failure collapses to false, not just not-found.
	fs.statErr = errors.New("connection refused")
	assert.False(t, d.Exists(context.Background(), "a.txt"))
}

func TestRead_RangeHeaders(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/f.txt"] = []byte("0123456789abcdefghij")

	d := newTestDriver(fs, "/")

	tests := []struct {
		name string
		opts *ReadOptions
		want string
	}{
		{"no options", nil, ""},
		{"nil range", &ReadOptions{}, ""},
		{"bounded", &ReadOptions{Range: &ByteRange{Start: 10, End: 19}}, "bytes=10-19"},
		{"open ended", &ReadOptions{Range: &ByteRange{Start: 5, End: -1}}, "bytes=5-"},
		{"single byte", &ReadOptions{Range: &ByteRange{Start: 0, End: 0}}, "bytes=0-0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := d.Read(context.Background(), "f.txt", tt.opts)
			require.NoError(t, err)
			require.NoError(t, stream.Close())

			assert.Equal(t, tt.want, fs.lastRange)
		})
	}
}

func TestRead_RejectsEndBelowStart(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/f.txt"] = []byte("0123456789")

	d := newTestDriver(fs, "/")

	// A zero-valued End with a positive Start would encode as "bytes=5-0";
	// open-ended reads need End < 0.
	_, err := d.Read(context.Background(), "f.txt", &ReadOptions{Range: &ByteRange{Start: 5}})
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = d.Read(context.Background(), "f.txt", &ReadOptions{Range: &ByteRange{Start: 5, End: 3}})
	assert.ErrorIs(t, err, ErrInvalidRange)

	// Nothing reached the backend.
	assert.Empty(t, fs.lastRange)
}

func TestWrite_ConsumesWholeStream(t *testing.T) {
	fs := newFakeFS()
	d := newTestDriver(fs, "/team")

	err := d.Write(context.Background(), "docs/a.txt", bytes.NewReader([]byte("content")))
	require.NoError(t, err)

	assert.Equal(t, []byte("content"), fs.objects["/team/docs/a.txt"])
}

func TestMoveCopyDelete_NormalizePaths(t *testing.T) {
	fs := newFakeFS()
	fs.objects["/team/a.txt"] = []byte("x")

	d := newTestDriver(fs, "/team")

	require.NoError(t, d.Copy(context.Background(), "a.txt", "b.txt"))
	require.NoError(t, d.Move(context.Background(), "b.txt", "sub/c.txt"))
	require.NoError(t, d.Delete(context.Background(), "a.txt"))

	assert.Equal(t, []string{
		"COPY /team/a.txt /team/b.txt",
		"MOVE /team/b.txt /team/sub/c.txt",
		"DELETE /team/a.txt",
	}, fs.lastOps)

	assert.Contains(t, fs.objects, "/team/sub/c.txt")
	assert.NotContains(t, fs.objects, "/team/a.txt")
}

func TestList_FilesOnlyRootRelative(t *testing.T) {
	fs := newFakeFS()
	fs.listing = []dav.Info{
		{Path: "/team/docs", IsDir: true},
		{Path: "/team/docs/a.txt", Size: 1},
		{Path: "/team/docs/sub", IsDir: true},
		{Path: "/team/docs/sub/b.txt", Size: 2},
		{Path: "/team/docs/c.txt", Size: 3},
	}

	d := newTestDriver(fs, "/team")

	paths, err := d.List(context.Background(), "docs")
	require.NoError(t, err)

	// Only files, root-relative, backend order preserved.
	assert.Equal(t, []string{"docs/a.txt", "docs/sub/b.txt", "docs/c.txt"}, paths)
	assert.Equal(t, []string{"LIST /team/docs"}, fs.lastOps)
}

func TestList_EmptyPrefixListsRoot(t *testing.T) {
	fs := newFakeFS()
	fs.listing = []dav.Info{
		{Path: "/", IsDir: true},
		{Path: "/a.txt", Size: 1},
	}

	d := newTestDriver(fs, "/")

	paths, err := d.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths)
}
