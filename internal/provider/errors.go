package provider

import (
	"errors"
	"fmt"
)

// TransportError covers network failures and non-2xx responses other than 404.
type TransportError struct {
	Resource   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Resource, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Resource, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError means the resource does not exist yet. Resolution treats it
// as "try the next tier", never as a failure.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("backend %s: not found", e.Resource)
}

// MalformedResponseError means the body was not JSON or lacked a required field.
type MalformedResponseError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: malformed response: %s: %v", e.Resource, e.Reason, e.Err)
	}
	return fmt.Sprintf("backend %s: malformed response: %s", e.Resource, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
