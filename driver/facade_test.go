package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// davServer is a minimal in-memory WebDAV endpoint covering the verbs the
// driver exercises: PROPFIND, GET, PUT, DELETE.
type davServer struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path

	switch r.Method {
	case "PROPFIND":
		data, ok := s.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprintf(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:"><d:response><d:href>%s</d:href>
<d:propstat><d:status>HTTP/1.1 200 OK</d:status>
<d:prop><d:resourcetype/><d:getcontentlength>%d</d:getcontentlength></d:prop>
</d:propstat></d:response></d:multistatus>`, path, len(data))

	case http.MethodGet:
		data, ok := s.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write(data)

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		s.objects[path] = body
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		if _, ok := s.objects[path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		delete(s.objects, path)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// End-to-end chunked upload through New() and the real dav client.
func TestChunkedUpload_EndToEnd(t *testing.T) {
	backend := &davServer{objects: make(map[string][]byte)}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	d, err := New(Config{
		BaseURL:  srv.URL + "/dav/files/alice",
		Username: "alice",
		Password: "secret",
		Root:     "/uploads",
	}, WithLogger(testLogger()), WithChunkLocking())
	require.NoError(t, err)

	ctx := context.Background()

	_, err = d.CreateChunkedUpload(ctx, "video.bin", "token-1")
	require.NoError(t, err)

	meta, err := d.Stat(ctx, "video.bin")
	require.NoError(t, err)
	assert.Zero(t, meta.Size)

	total, err := d.WriteChunk(ctx, "video.bin", bytes.NewReader([]byte("part-one;")), 0, "token-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)

	total, err = d.WriteChunk(ctx, "video.bin", bytes.NewReader([]byte("part-two")), 9, "token-1")
	require.NoError(t, err)
	assert.Equal(t, int64(17), total)

	require.NoError(t, d.FinishChunkedUpload(ctx, "video.bin", "token-1"))

	stream, err := d.Read(ctx, "video.bin", nil)
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, "part-one;part-two", string(data))

	// The backing object lives under root on the server side.
	assert.Contains(t, backend.objects, "/dav/files/alice/uploads/video.bin")

	require.NoError(t, d.DeleteChunkedUpload(ctx, "video.bin", "token-1"))
	assert.False(t, d.Exists(ctx, "video.bin"))
}
