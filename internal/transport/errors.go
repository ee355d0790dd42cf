package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBound is returned when a request is made before a base address is bound.
	ErrNotBound = errors.New("device base url is not bound")
	// ErrUnexpectedStatus marks non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrResponseTooLarge marks bodies over the 1 MiB response limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// TransportError describes a failed request against the device.
// Network faults and non-2xx responses both surface as TransportError.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %v %d", e.Op, e.URL, e.Err, e.StatusCode)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
