package backend

import (
	"errors"
	"fmt"
)

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ServerRejection is a non-success response from the backend. Message is the
// server's own explanation and is what users should see.
type ServerRejection struct {
	Status  int
	Message string
}

func (e *ServerRejection) Error() string {
	return e.Message
}

// TransportFailure means the backend could not be reached or its response
// could not be read.
type TransportFailure struct {
	Op  string
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsRejection returns the ServerRejection in err's chain, if any.
func AsRejection(err error) (*ServerRejection, bool) {
	var sr *ServerRejection
	if errors.As(err, &sr) {
		return sr, true
	}
	return nil, false
}

// IsTransport reports whether err is (or wraps) a TransportFailure.
func IsTransport(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}
