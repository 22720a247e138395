package agent

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("agent not found")
	ErrDisabled = errors.New("agent disabled")
)

// ConfigurationError reports an invalid effective configuration. It is
// returned at construction and never from Execute.
type ConfigurationError struct {
	AgentID string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	id := e.AgentID
	if id == "" {
		id = "<unnamed>"
	}
	if e.Field == "" {
		return fmt.Sprintf("agent %q: %s", id, e.Reason)
	}
	return fmt.Sprintf("agent %q: %s: %s", id, e.Field, e.Reason)
}

// UnknownAgentTypeError is returned by Registry.Create for an unregistered tag.
type UnknownAgentTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownAgentTypeError) Error() string {
	return fmt.Sprintf("unknown agent type %q (available: %s)", e.Type, strings.Join(e.Available, ", "))
}

// ExternalCallError records which step of an execution failed.
type ExternalCallError struct {
	Step string
	Err  error
}

func (e *ExternalCallError) Error() string {
	if e.Err == nil {
		return e.Step + " failed"
	}
	return e.Step + " failed: " + e.Err.Error()
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

const (
	StepSearch       = "search"
	StepAnalysis     = "analysis"
	StepNotification = "notification"
)

func configErr(id, field, format string, args ...any) error {
	return &ConfigurationError{AgentID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}
