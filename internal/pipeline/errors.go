package pipeline

import "errors"

// ErrStoreUnavailable aborts a run after too many consecutive batch writes
// have failed.
var ErrStoreUnavailable = errors.New("pipeline: store unavailable")

// ErrAlreadyRun is returned by Run on a Builder that has already run.
var ErrAlreadyRun = errors.New("pipeline: builder already run")
