package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("state not found")
	ErrInvalidLimit = errors.New("invalid limit")
	ErrInvalidState = errors.New("invalid state")
	ErrMigrate      = errors.New("migrate store schema")
	ErrStale        = errors.New("state has a newer update")
)
