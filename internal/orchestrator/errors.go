package orchestrator

import "fmt"

// ConfigurationError reports an inconsistency between container maps and
// client configurations, detected before any connection attempt for the
// offending client. It is fatal to the bootstrap.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
