package health

import "errors"

// ErrCheckTimeout is reported for a check that returned after the shared deadline.
var ErrCheckTimeout = errors.New("health: check timeout")
