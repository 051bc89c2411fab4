package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure covers everything that kept a usable response from
	// arriving: transport errors, timeouts, non-2xx codes, undecodable bodies.
	ErrNetworkFailure = errors.New("upstream network failure")

	// ErrEmptyResult is a well-formed response that carried no data.
	ErrEmptyResult = errors.New("upstream returned no data")

	// ErrInvalidArgument is returned before any request is made.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StatusError is a non-2xx response. It unwraps to ErrNetworkFailure.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrNetworkFailure }

func networkFailure(op string, err error) error {
	return fmt.Errorf("upstream: %s: %w", op, errors.Join(ErrNetworkFailure, err))
}

func emptyResult(op string) error {
	return fmt.Errorf("upstream: %s: %w", op, ErrEmptyResult)
}
