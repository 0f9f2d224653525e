package remote

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEvent   = errors.New("remote: invalid event")
	ErrLocalMode      = errors.New("remote: session is not in remote mode")
	ErrTerminated     = errors.New("remote: session terminated")
	ErrPollingRunning = errors.New("remote: polling already running")
	ErrClosed         = errors.New("remote: session closed")
)

// ApplyError is a LocalApplyFailure: replaying a response's events against
// the widget layer failed. The response still counts as received.
type ApplyError struct {
	Seq     uint64
	Channel Channel
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("remote: applying response #%d (%s): %v", e.Seq, e.Channel, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Failure reports a user request that did not succeed. The engine does not
// retry; Request.Events is what the caller may re-enqueue.
type Failure struct {
	Request *Request
	Kind    ResponseKind
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("remote: request %s failed (%s): %v", f.Request, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }
