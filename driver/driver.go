// Package driver adapts a WebDAV remote store, which only offers
// whole-file primitives, into a uniform storage-driver contract with
// byte-range reads, root-scoped path isolation, and chunked/resumable
// uploads emulated via read-modify-write.
package driver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/EagleChen/mapmutex"

	"github.com/storagekit/webdav-go/internal/dav"
	"github.com/storagekit/webdav-go/internal/davpath"
)

// Config holds the connection settings for a WebDAV endpoint.
// It is fixed at construction and never mutated afterwards.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// Root confines every operation to this server-side subtree.
	// Defaults to "/". Callers supply paths relative to it.
	Root string
}

// FileMeta is the metadata surfaced for a remote file. When the server
// omits a property, Size defaults to 0 and Modified to the current time;
// this is a lossy fallback, not an error.
type FileMeta struct {
	Size     int64
	Modified time.Time
}

// ByteRange selects an inclusive byte range of a file.
// End < 0 requests an open-ended range ("bytes=Start-"). Note that the
// zero value of End means byte 0, not "no end": Read rejects a range
// with 0 <= End < Start as ErrInvalidRange instead of sending an
// invalid request the server would silently ignore.
type ByteRange struct {
	Start int64
	End   int64
}

// ReadOptions carries per-read options. A nil *ReadOptions reads the
// whole file.
type ReadOptions struct {
	Range *ByteRange
}

// Driver is the base storage-driver contract exposed to the host.
// Backend errors propagate to callers unchanged: no wrapping, no retry.
type Driver interface {
	Read(ctx context.Context, path string, opts *ReadOptions) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (FileMeta, error)
	Exists(ctx context.Context, path string) bool
	Write(ctx context.Context, path string, content io.Reader) error
	Move(ctx context.Context, src, dest string) error
	Copy(ctx context.Context, src, dest string) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// TusDriver is the superset contract for hosts that speak a resumable
// upload protocol. The token argument is an opaque host-supplied value:
// it is returned where the contract requires it and never interpreted.
type TusDriver interface {
	Driver

	TusExtensions() []string
	CreateChunkedUpload(ctx context.Context, filepath string, token any) (any, error)
	WriteChunk(ctx context.Context, filepath string, content io.Reader, offset int64, token any) (int64, error)
	FinishChunkedUpload(ctx context.Context, filepath string, token any) error
	DeleteChunkedUpload(ctx context.Context, filepath string, token any) error
}

// remoteFS is the backend collaborator the adapter drives. *dav.Client is
// the production implementation; tests substitute fakes.
type remoteFS interface {
	Stat(ctx context.Context, path string) (*dav.Info, error)
	List(ctx context.Context, path string) ([]dav.Info, error)
	ReadStream(ctx context.Context, path, rangeHeader string) (io.ReadCloser, error)
	ReadAll(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, body io.Reader) error
	Move(ctx context.Context, src, dest string) error
	Copy(ctx context.Context, src, dest string) error
	Delete(ctx context.Context, path string) error
}

// WebDAV implements TusDriver on top of a WebDAV remote store. It holds
// only its configuration and collaborators; all other state lives in the
// remote objects themselves, so instances are safe for concurrent use to
// the extent the remote operations are (see WriteChunk).
type WebDAV struct {
	cfg    Config
	fs     remoteFS
	paths  *davpath.Mapper
	logger *slog.Logger

	// locks serializes chunk writes per remote path when chunk locking
	// is enabled. Nil by default: the host upload-session layer owns
	// write ordering.
	locks *mapmutex.Mutex
}

var _ TusDriver = (*WebDAV)(nil)

// New creates a WebDAV driver from cfg.
func New(cfg Config, opts ...Option) (*WebDAV, error) {
	o := applyOptions(opts)

	client, err := dav.NewClient(cfg.BaseURL, cfg.Username, cfg.Password, o.httpClient, o.logger)
	if err != nil {
		return nil, err
	}

	d := newWithBackend(client, cfg, o.logger)
	if o.chunkLocking {
		d.locks = mapmutex.NewMapMutex()
	}

	return d, nil
}

// newWithBackend wires a driver around an arbitrary backend. Tests use
// this to substitute fakes for the dav client.
func newWithBackend(fs remoteFS, cfg Config, logger *slog.Logger) *WebDAV {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebDAV{
		cfg:    cfg,
		fs:     fs,
		paths:  davpath.NewMapper(cfg.Root),
		logger: logger,
	}
}

// options collects functional-option state for New.
type options struct {
	logger       *slog.Logger
	httpClient   *http.Client
	chunkLocking bool
}

// Option configures a driver at construction.
type Option func(*options)

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient sets the HTTP client used for backend requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithChunkLocking serializes WriteChunk calls per remote path with a
// keyed mutex. Chunk writes are read-modify-write cycles, so concurrent
// writers to the same upload otherwise race and the last writer wins.
// Off by default: enabling it only protects writers within this process.
func WithChunkLocking() Option {
	return func(o *options) { o.chunkLocking = true }
}
