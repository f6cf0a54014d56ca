package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tanq16/droidup/internal/utils"
)

// Stream is an opened response body. Size is -1 when unknown.
type Stream struct {
	Body io.ReadCloser
	Size int64
}

// Source opens a remote resource. Open must fail without returning a body when
// the remote side does not report success.
type Source interface {
	Open(ctx context.Context, link string) (*Stream, error)
}

type HTTPSource struct {
	Client utils.HTTPDoer
}

func (s *HTTPSource) Open(ctx context.Context, link string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating GET request: %w", ErrTransport, err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error executing GET request: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status code: %s", ErrStatus, resp.Status)
	}
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	return &Stream{Body: resp.Body, Size: size}, nil
}

// SourceFor picks a source implementation from the link's scheme.
func SourceFor(ctx context.Context, link string, job *utils.DroidJob) (Source, error) {
	parsedURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	switch parsedURL.Scheme {
	case "http", "https":
		return &HTTPSource{Client: utils.NewDroidHTTPClient(job.HTTPClientConfig)}, nil
	case "s3":
		profile, _ := job.Metadata["profile"].(string)
		return NewS3Source(ctx, profile)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedScheme, parsedURL.Scheme)
	}
}
