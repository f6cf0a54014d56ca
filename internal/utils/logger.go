package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	SetLogOutput(os.Stderr)
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
		NoColor:    w != os.Stderr,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// LogToFile routes the global logger into LogFile so a live terminal display
// is not interleaved with log lines. The returned func closes the file.
func LogToFile() (func(), error) {
	f, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return func() {}, err
	}
	SetLogOutput(f)
	return func() {
		SetLogOutput(os.Stderr)
		f.Close()
	}, nil
}
