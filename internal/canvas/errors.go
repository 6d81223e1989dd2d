package canvas

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a closed bitmap is read.
var ErrClosed = errors.New("bitmap is closed")

// TransferredError is returned when a canvas is used from a thread that does
// not control it.
type TransferredError struct {
	Canvas      uint32
	Owner       uint32
	Caller      uint32
	Transferred bool
}

func (e *TransferredError) Error() string {
	if e.Transferred {
		return fmt.Sprintf("canvas %d: control was transferred to thread %d and cannot be used from thread %d",
			e.Canvas, e.Owner, e.Caller)
	}
	return fmt.Sprintf("canvas %d is owned by thread %d and cannot be used from thread %d",
		e.Canvas, e.Owner, e.Caller)
}

// SizeError is returned for canvas dimensions outside [0, MaxDimension].
type SizeError struct {
	Width  int
	Height int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("canvas size %dx%d is outside 0..%d", e.Width, e.Height, MaxDimension)
}
