package service

import "errors"

// Sentinel kinds returned by Service. The HTTP layer maps them to status codes.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrNoRegions      = errors.New("no regions found for sector")
	ErrInvalidUpdate  = errors.New("invalid score update")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrBackpressure   = errors.New("update queue is full")
	ErrUpdateInFlight = errors.New("update with this event id is still being queued")
)
