package stretch

import (
	"errors"
)

var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrNoEngine       = errors.New("no engine is available")
	ErrClosed         = errors.New("the stretcher is closed")
	ErrAlreadyClosed  = errors.New("the stretcher is already closed")
	ErrBufferTooShort = errors.New("the buffer is shorter than the requested amount of frames")
)
