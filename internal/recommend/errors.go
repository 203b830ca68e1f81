package recommend

import "errors"

var (
	// ErrRequest covers transport failures and unexpected status codes.
	ErrRequest = errors.New("recommendation request failed")
	// ErrMalformedResponse is returned when the reply is neither an error
	// object nor a list of records.
	ErrMalformedResponse = errors.New("malformed recommendation response")
	// ErrSuperseded is returned by a latest-only handler when a newer
	// submission started before this one resolved.
	ErrSuperseded = errors.New("submission superseded")
)
