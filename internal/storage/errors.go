package storage

import "errors"

var (
	ErrInvalidRunID = errors.New("invalid run id")
	ErrRunNotFound  = errors.New("run not found")
	ErrNoSamples    = errors.New("run has no logged samples")
	ErrCorruptRun   = errors.New("run files are corrupt")
)
