package browser

import "errors"

// ErrLaunch marks a browser that could not be started at all. No partial
// result exists when it is returned, so callers treat it as fatal.
var ErrLaunch = errors.New("browser launch failed")
