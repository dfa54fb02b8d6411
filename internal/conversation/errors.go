package conversation

import "errors"

// Rejected operations leave the state untouched.
var (
	ErrBlankInput     = errors.New("input is blank")
	ErrBusy           = errors.New("a response is already streaming")
	ErrNoSession      = errors.New("no model session")
	ErrFinalized      = errors.New("specification process is finalized")
	ErrNotComplete    = errors.New("specification is not complete")
	ErrClosed         = errors.New("conversation closed")
	ErrInvalidAdvance = errors.New("phase cannot be advanced to")
)
