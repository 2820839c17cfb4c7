package scheduler

import "errors"

// ErrBusy is returned by Trigger when a cycle is already in flight.
var ErrBusy = errors.New("a cycle is already running")
