package declwatcher

import "errors"

var (
	ErrNoTarget = errors.New("declwatcher needs a declaration target")
	ErrBoot     = errors.New("failed to initialize declarations")
	ErrReload   = errors.New("failed to reload declarations")
)
