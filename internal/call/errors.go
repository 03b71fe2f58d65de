package call

import "errors"

var (
	// ErrCallEnded is returned when operating on a call that already ended.
	ErrCallEnded = errors.New("call ended")
	// ErrAlreadyStarted is returned by Start on a call that is not idle.
	ErrAlreadyStarted = errors.New("call already started")
	// ErrCallActive is returned by StartCall while another call is live.
	ErrCallActive = errors.New("a call is already active")
	// ErrCallNotFound is returned for unknown or finished call ids.
	ErrCallNotFound = errors.New("call not found")
)
