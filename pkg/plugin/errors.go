package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is matched by errors for plugin types the registry has
	// no connector for. It does not go away until the configuration changes.
	ErrNotConfigured = errors.New("plugin not configured")

	// ErrConnectionUnavailable is matched when a connector could not
	// (re)establish its connection. The next call tries again.
	ErrConnectionUnavailable = errors.New("connection unavailable")

	// ErrRequestFailed is matched when a connected peer rejected or failed a
	// command or query.
	ErrRequestFailed = errors.New("request failed")

	// ErrMismatchedEnvelope is matched when a connector receives an envelope
	// meant for another plugin type.
	ErrMismatchedEnvelope = errors.New("mismatched action and plugin instance")

	// ErrUnknownName is returned when a display name or ID has no match on the
	// peer during resolution.
	ErrUnknownName = errors.New("not found")
)

// NotConfiguredError reports a dispatch to a plugin type with no connector.
type NotConfiguredError struct {
	Type Type
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("plugin %s not configured", e.Type)
}

func (e *NotConfiguredError) Is(target error) bool {
	return target == ErrNotConfigured
}

// ConnectionError reports a failed connection attempt.
type ConnectionError struct {
	Type Type
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to create %s connection: %v", e.Type, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionUnavailable
}

// RequestError reports a command or query that failed on a live connection.
type RequestError struct {
	Type Type
	Op   string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// MismatchError reports an envelope routed to the wrong connector.
type MismatchError struct {
	Connector Type
	Envelope  Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatched action and plugin instance: %s envelope sent to %s connector", e.Envelope, e.Connector)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatchedEnvelope
}
