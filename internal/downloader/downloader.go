package downloader

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/droidup/internal/utils"
)

type State int

const (
	StateInProgress State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in-progress"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session tracks a single transfer. It is owned by the call that created it.
type Session struct {
	URL        string
	OutputPath string
	Total      int64
	Written    int64
	State      State
	Skipped    bool
}

func (s *Session) finish(err error) error {
	if s.State != StateInProgress {
		return err
	}
	if err != nil {
		s.State = StateFailed
	} else {
		s.State = StateCompleted
	}
	return err
}

func (s *Session) progress() Event {
	if s.Total < 0 {
		return Event{Kind: EventBytes, Written: s.Written, Total: s.Total}
	}
	return Event{
		Kind:    EventPercent,
		Percent: int(math.Round(float64(s.Written) * 100 / float64(s.Total))),
		Written: s.Written,
		Total:   s.Total,
	}
}

type Options struct {
	// Force re-downloads even when the output path already exists.
	Force      bool
	BufferSize int
	Progress   ProgressFunc
}

// PerformDownload streams link into outputPath chunk by chunk, emitting one
// progress event per chunk and a final EventComplete on success.
//
// An existing file at outputPath is taken as a finished earlier download and
// returned as-is without contacting the source. Its size and content are not
// checked, so an interrupted earlier attempt is accepted too; use Force to
// bypass.
func PerformDownload(ctx context.Context, src Source, link, outputPath string, opts Options) (*Session, error) {
	session := &Session{URL: link, OutputPath: outputPath, Total: -1}
	emit := func(e Event) {
		if opts.Progress != nil {
			opts.Progress(e)
		}
	}

	if info, err := os.Stat(outputPath); err == nil {
		if info.IsDir() {
			return session, session.finish(fmt.Errorf("%w: output path %s is a directory", ErrFilesystem, outputPath))
		}
		if !opts.Force {
			log.Warn().Str("op", "downloader/perform").Msgf("%s already exists, skipping download (existing content is not verified)", outputPath)
			session.Skipped = true
			session.Written = info.Size()
			return session, session.finish(nil)
		}
	}

	stream, err := src.Open(ctx, link)
	if err != nil {
		log.Error().Str("op", "downloader/perform").Err(err).Msgf("Could not open %s", link)
		return session, session.finish(err)
	}
	defer stream.Body.Close()
	session.Total = stream.Size
	log.Debug().Str("op", "downloader/perform").Int64("total", session.Total).Msgf("Response accepted for %s", link)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return session, session.finish(fmt.Errorf("%w: error creating output directory: %w", ErrFilesystem, err))
	}
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return session, session.finish(fmt.Errorf("%w: error creating output file: %w", ErrFilesystem, err))
	}
	if err := copyChunks(stream.Body, outFile, session, opts.BufferSize, emit); err != nil {
		outFile.Close()
		log.Error().Str("op", "downloader/perform").Err(err).Int64("written", session.Written).Msgf("Download of %s failed", link)
		return session, session.finish(err)
	}
	if err := outFile.Sync(); err != nil {
		outFile.Close()
		return session, session.finish(fmt.Errorf("%w: error syncing output file: %w", ErrFilesystem, err))
	}
	if err := outFile.Close(); err != nil {
		return session, session.finish(fmt.Errorf("%w: error closing output file: %w", ErrFilesystem, err))
	}

	session.finish(nil)
	emit(Event{Kind: EventComplete, Percent: 100, Written: session.Written, Total: session.Total})
	log.Info().Str("op", "downloader/perform").Msgf("Downloaded %s (%s)", outputPath, utils.FormatBytes(uint64(session.Written)))
	return session, nil
}

// copyChunks writes each chunk fully before reading the next one.
func copyChunks(body io.Reader, out io.Writer, session *Session, bufferSize int, emit ProgressFunc) error {
	if bufferSize <= 0 {
		bufferSize = utils.DefaultBufferSize
	}
	buffer := make([]byte, bufferSize)
	for {
		bytesRead, readErr := body.Read(buffer)
		if bytesRead > 0 {
			if session.Total >= 0 && session.Written+int64(bytesRead) > session.Total {
				return fmt.Errorf("%w: response body exceeds advertised length of %d bytes", ErrStatus, session.Total)
			}
			if _, err := out.Write(buffer[:bytesRead]); err != nil {
				return fmt.Errorf("%w: error writing to output file: %w", ErrFilesystem, err)
			}
			session.Written += int64(bytesRead)
			emit(session.progress())
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("%w: error reading response body: %w", ErrTransport, readErr)
		}
	}
	if session.Total >= 0 && session.Written != session.Total {
		return fmt.Errorf("%w: response body ended after %d of %d bytes", ErrTransport, session.Written, session.Total)
	}
	return nil
}
