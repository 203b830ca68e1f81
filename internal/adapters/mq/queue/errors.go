package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrFull   = errors.New("update queue full")
	ErrClosed = errors.New("update queue closed")
)
