package downloader

import "errors"

// Failure kinds. Every error returned by PerformDownload wraps exactly one.
var (
	ErrTransport  = errors.New("transport failure")
	ErrStatus     = errors.New("protocol failure")
	ErrFilesystem = errors.New("filesystem failure")
)
