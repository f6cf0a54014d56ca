package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out one chunk per Read call, then err (or io.EOF).
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

type fakeDoer struct {
	calls int
	do    func(req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.calls++
	return f.do(req)
}

func chunkedResponse(size int64, chunks ...[]byte) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			Status:        "200 OK",
			StatusCode:    http.StatusOK,
			ContentLength: size,
			Body:          io.NopCloser(&chunkReader{chunks: chunks}),
			Request:       req,
		}, nil
	}
}

func splitChunks(data []byte, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := min(size, len(data))
		chunks = append(chunks, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	return chunks
}

type recorder struct {
	events []Event
}

func (r *recorder) record(e Event) {
	r.events = append(r.events, e)
}

func (r *recorder) percents() []int {
	var out []int
	for _, e := range r.events {
		if e.Kind == EventPercent {
			out = append(out, e.Percent)
		}
	}
	return out
}

func TestPerformDownloadFourChunks(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1000)
	doer := &fakeDoer{do: chunkedResponse(1000, splitChunks(payload, 250)...)}
	outputPath := filepath.Join(t.TempDir(), "game.apk")
	rec := &recorder{}

	session, err := PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/game.apk", outputPath, Options{Progress: rec.record})
	require.NoError(t, err)

	assert.Equal(t, []int{25, 50, 75, 100}, rec.percents())
	require.Len(t, rec.events, 5)
	assert.Equal(t, EventComplete, rec.events[4].Kind)
	assert.Equal(t, StateCompleted, session.State)
	assert.Equal(t, int64(1000), session.Written)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Size())
}

func TestPerformDownloadHTTPServer(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 10_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "nested", "dir", "file.bin")
	rec := &recorder{}
	_, err := PerformDownload(context.Background(), &HTTPSource{Client: http.DefaultClient}, server.URL+"/file.bin", outputPath, Options{BufferSize: 4096, Progress: rec.record})
	require.NoError(t, err)

	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	percents := rec.percents()
	require.NotEmpty(t, percents)
	assert.IsNonDecreasing(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.Equal(t, EventComplete, rec.events[len(rec.events)-1].Kind)
	for _, e := range rec.events[:len(rec.events)-1] {
		assert.NotEqual(t, EventComplete, e.Kind)
	}
}

func TestPerformDownloadNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "missing.apk")
	rec := &recorder{}
	session, err := PerformDownload(context.Background(), &HTTPSource{Client: http.DefaultClient}, server.URL, outputPath, Options{Progress: rec.record})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Contains(t, err.Error(), "404")
	assert.Empty(t, rec.events)
	assert.Equal(t, StateFailed, session.State)
	assert.NoFileExists(t, outputPath)
}

func TestPerformDownloadExistingFileShortCircuits(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "game.apk")
	require.NoError(t, os.WriteFile(outputPath, []byte("partial"), 0644))
	doer := &fakeDoer{do: chunkedResponse(3, []byte("new"))}
	rec := &recorder{}

	session, err := PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/game.apk", outputPath, Options{Progress: rec.record})
	require.NoError(t, err)

	assert.Zero(t, doer.calls)
	assert.Empty(t, rec.events)
	assert.True(t, session.Skipped)
	assert.Equal(t, StateCompleted, session.State)
	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(got))
}

func TestPerformDownloadIsIdempotent(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "game.apk")
	doer := &fakeDoer{}
	doer.do = func(req *http.Request) (*http.Response, error) {
		return chunkedResponse(4, []byte("data"))(req)
	}
	src := &HTTPSource{Client: doer}

	_, err := PerformDownload(context.Background(), src, "https://example.com/game.apk", outputPath, Options{})
	require.NoError(t, err)
	_, err = PerformDownload(context.Background(), src, "https://example.com/game.apk", outputPath, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestPerformDownloadForceOverwrites(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "game.apk")
	require.NoError(t, os.WriteFile(outputPath, []byte("stale content"), 0644))
	doer := &fakeDoer{do: chunkedResponse(5, []byte("fresh"))}

	_, err := PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/game.apk", outputPath, Options{Force: true})
	require.NoError(t, err)
	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestPerformDownloadUnknownSize(t *testing.T) {
	doer := &fakeDoer{do: chunkedResponse(-1, []byte("abc"), []byte("defg"), []byte("h"))}
	outputPath := filepath.Join(t.TempDir(), "blob")
	rec := &recorder{}

	session, err := PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/blob", outputPath, Options{Progress: rec.record})
	require.NoError(t, err)

	require.Len(t, rec.events, 4)
	var written []int64
	for _, e := range rec.events[:3] {
		assert.Equal(t, EventBytes, e.Kind)
		assert.Equal(t, int64(-1), e.Total)
		written = append(written, e.Written)
	}
	assert.Equal(t, []int64{3, 7, 8}, written)
	assert.Equal(t, EventComplete, rec.events[3].Kind)
	assert.Equal(t, int64(-1), session.Total)
}

func TestPerformDownloadFailures(t *testing.T) {
	tests := []struct {
		name string
		do   func(req *http.Request) (*http.Response, error)
		kind error
	}{
		{
			name: "connection refused",
			do: func(req *http.Request) (*http.Response, error) {
				return nil, errors.New("dial tcp: connection refused")
			},
			kind: ErrTransport,
		},
		{
			name: "server error",
			do: func(req *http.Request) (*http.Response, error) {
				return &http.Response{Status: "503 Service Unavailable", StatusCode: 503, Body: io.NopCloser(bytes.NewReader(nil))}, nil
			},
			kind: ErrStatus,
		},
		{
			name: "body shorter than advertised",
			do:   chunkedResponse(10, []byte("short")),
			kind: ErrTransport,
		},
		{
			name: "body longer than advertised",
			do:   chunkedResponse(2, []byte("too long")),
			kind: ErrStatus,
		},
		{
			name: "read error mid stream",
			do: func(req *http.Request) (*http.Response, error) {
				body := &chunkReader{chunks: [][]byte{[]byte("abc")}, err: errors.New("connection reset by peer")}
				return &http.Response{StatusCode: 200, ContentLength: 6, Body: io.NopCloser(body)}, nil
			},
			kind: ErrTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			outputPath := filepath.Join(t.TempDir(), "out.bin")
			session, err := PerformDownload(context.Background(), &HTTPSource{Client: &fakeDoer{do: tt.do}}, "https://example.com/out.bin", outputPath, Options{Progress: rec.record})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, StateFailed, session.State)
			for _, e := range rec.events {
				assert.NotEqual(t, EventComplete, e.Kind)
			}
		})
	}
}

func TestPerformDownloadFilesystemFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	doer := &fakeDoer{do: chunkedResponse(4, []byte("data"))}

	_, err := PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/a", filepath.Join(blocker, "a.apk"), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFilesystem)

	_, err = PerformDownload(context.Background(), &HTTPSource{Client: doer}, "https://example.com/a", dir, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFilesystem)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "42%", Event{Kind: EventPercent, Percent: 42}.String())
	assert.Equal(t, "12 bytes", Event{Kind: EventBytes, Written: 12}.String())
	assert.Equal(t, "download complete", Event{Kind: EventComplete}.String())
}
