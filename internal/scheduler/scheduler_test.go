package scheduler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/droidup/internal/output"
	"github.com/tanq16/droidup/internal/utils"
)

type fakeDownloader struct {
	mu       sync.Mutex
	seen     []string
	failURLs map[string]bool
}

func (f *fakeDownloader) ValidateJob(job *utils.DroidJob) error {
	if job.URL == "" {
		return errors.New("empty URL")
	}
	return nil
}

func (f *fakeDownloader) BuildJob(job *utils.DroidJob) error {
	job.Metadata = map[string]any{}
	return nil
}

func (f *fakeDownloader) Download(ctx context.Context, job *utils.DroidJob) error {
	f.mu.Lock()
	f.seen = append(f.seen, job.URL)
	f.mu.Unlock()
	job.ProgressFunc(5, 10)
	job.ProgressFunc(10, 10)
	if f.failURLs[job.URL] {
		return errors.New("boom")
	}
	return nil
}

func TestSchedulerRunsAllJobs(t *testing.T) {
	fake := &fakeDownloader{failURLs: map[string]bool{"https://b": true}}
	var buf bytes.Buffer
	s := &Scheduler{
		Registry: map[string]utils.Downloader{"http": fake},
		Output:   output.NewManagerWithWriter(&buf, false),
	}
	jobs := []utils.DroidJob{
		{JobType: "http", URL: "https://a"},
		{JobType: "http", URL: "https://b"},
		{JobType: "http", URL: ""},
		{JobType: "ftp", URL: "ftp://c"},
		{JobType: "http", URL: "https://d"},
	}

	err := s.Run(context.Background(), jobs, 3)
	require.Error(t, err)
	assert.Equal(t, "3 of 5 jobs failed", err.Error())
	assert.ElementsMatch(t, []string{"https://a", "https://b", "https://d"}, fake.seen)
	assert.Contains(t, buf.String(), "unknown job type: ftp")
	assert.Contains(t, buf.String(), "Completed 2 of 5")
}

func TestSchedulerDownloadsOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	outputPath := filepath.Join(t.TempDir(), "app.apk")
	var buf bytes.Buffer
	s := &Scheduler{Registry: downloaderRegistry, Output: output.NewManagerWithWriter(&buf, false)}
	jobs := []utils.DroidJob{{JobType: "http", URL: server.URL + "/app.apk", OutputPath: outputPath}}

	require.NoError(t, s.Run(context.Background(), jobs, 1))
	got, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	// second run finds the file and skips the transfer
	buf.Reset()
	s.Output = output.NewManagerWithWriter(&buf, false)
	require.NoError(t, s.Run(context.Background(), jobs, 1))
	assert.Contains(t, buf.String(), "Already present")
}
