package tail

import (
	"errors"
	"fmt"
)

// SourceError is a recoverable lookup failure (network, throttling, timeout).
// The loop reports it, keeps the cursor where it was and retries after the
// poll interval.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("source: %v", e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Temporary reports that the failure is worth retrying.
func (e *SourceError) Temporary() bool { return true }

// ConfigError is a failure no retry can fix: bad credentials, unknown
// profile, missing region, rejected parameters. Run returns it when the
// preflight check fails.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a SourceError.
func IsTemporary(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// classify maps a failure after startup onto a SourceError. A ConfigError
// is wrapped too: credentials can expire and be refreshed mid-session.
func classify(op string, err error) error {
	if IsTemporary(err) {
		return err
	}
	return &SourceError{Op: op, Err: err}
}
