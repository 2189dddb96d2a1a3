// Package recovery holds small panic-safety helpers for paths that
// negroni's recovery middleware doesn't reach, such as deferred
// resource cleanup during shutdown.
package recovery

import (
	"github.com/pion/logging"
)

// SafeCloser calls fn and logs, rather than panics, on failure or
// panic. Used for best-effort cleanup during shutdown where a failing
// close must not prevent the rest of teardown from running.
func SafeCloser(logger logging.LeveledLogger, fn func() error, name string) {
	defer func() {
		if err := recover(); err != nil {
			logger.Errorf("PANIC during %s close: %v", name, err)
		}
	}()

	if err := fn(); err != nil {
		logger.Errorf("error closing %s: %v", name, err)
	}
}
