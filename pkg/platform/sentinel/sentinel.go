package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Adapters return these (optionally
// wrapped) and services translate them into coded domain errors.
//
// - ErrUnavailable: backend or device capability temporarily unavailable
// - ErrClosed: component has been shut down and accepts no more work
var (
	ErrUnavailable = errors.New("unavailable")
	ErrClosed      = errors.New("closed")
)
