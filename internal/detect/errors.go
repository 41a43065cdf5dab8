package detect

import "fmt"

type ErrorKind string

const (
	// KindUpstream: the detection service was unreachable or returned a
	// non-success response. Fatal for the run, nothing was persisted.
	KindUpstream ErrorKind = "upstream_failure"

	// KindMalformed: the service answered but the body failed schema
	// validation. Also fatal for the run.
	KindMalformed ErrorKind = "malformed_response"
)

type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("detection %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func upstreamErr(err error) *Error {
	return &Error{Kind: KindUpstream, Err: err}
}

func malformedErr(err error) *Error {
	return &Error{Kind: KindMalformed, Err: err}
}
