package models

import (
	"errors"
	"fmt"
	"strings"
)

// ParameterError reports required step parameters that were not supplied.
type ParameterError struct {
	Wanted []string
	Got    []string
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Reason != "" {
		return "invalid step parameters: " + e.Reason
	}
	got := "nothing"
	if len(e.Got) > 0 {
		got = strings.Join(e.Got, ", ")
	}
	return fmt.Sprintf("required parameter missing: wanted %s, got %s", strings.Join(e.Wanted, ", "), got)
}

func ErrMissingParams(wanted, got []string) error {
	return &ParameterError{Wanted: wanted, Got: got}
}

func ErrInvalidParam(format string, args ...any) error {
	return &ParameterError{Reason: fmt.Sprintf(format, args...)}
}

// ContextError reports a context reference that cannot be satisfied, or an
// attempt to publish the same id twice.
type ContextError struct {
	ID     string
	Reason string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context '%s': %s", e.ID, e.Reason)
}

func ErrContextUnavailable(id string) error {
	return &ContextError{ID: id, Reason: "required context is unavailable"}
}

func ErrContextDuplicate(id string) error {
	return &ContextError{ID: id, Reason: "already published by an earlier step"}
}

// CapabilityError reports a remote operation the session does not offer.
type CapabilityError struct {
	Operation string
}

func (e *CapabilityError) Error() string {
	return "operation not available for this session: " + e.Operation
}

func ErrCapability(operation string) error {
	return &CapabilityError{Operation: operation}
}

// LoadError reports a workflow that cannot be loaded: an unknown step type
// or a malformed document.
type LoadError struct {
	Type   string
	Index  int
	Reason string
}

func (e *LoadError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("cannot load step type '%s': %s", e.Type, e.Reason)
	}
	return "cannot load workflow: " + e.Reason
}

func ErrUnknownStepType(stepType string) error {
	return &LoadError{Type: stepType, Index: -1, Reason: "unknown step type"}
}

func ErrLoad(format string, args ...any) error {
	return &LoadError{Index: -1, Reason: fmt.Sprintf(format, args...)}
}

// DomainError is a fault reported by the remote service, or a business rule
// violated by its data (no match, ambiguous match, script failure).
type DomainError struct {
	Operation string
	Path      string
	Code      string
	Message   string
	Debug     string
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	return msg
}

func ErrDomain(operation, code, message string) error {
	return &DomainError{Operation: operation, Code: code, Message: message}
}

// Local domain error codes used when the fault is detected client side.
const (
	CodeNotFound    = "notfound"
	CodeAmbiguous   = "ambiguous"
	CodeNoSubmit    = "nosubmissions"
	CodeScriptError = "scripterror"
	CodeBadResponse = "badresponse"
)

// TransportError reports a failure below the protocol level: invalid
// request, network failure, non-success status, unparseable body.
type TransportError struct {
	Operation string
	URL       string
	Err       error
}

func (e *TransportError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("transport error calling %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func ErrTransport(operation, url string, err error) error {
	return &TransportError{Operation: operation, URL: url, Err: err}
}

// StepError annotates any failure with the step it happened in.
type StepError struct {
	Index int
	Type  string
	Name  string
	ID    string
	Err   error
}

func (e *StepError) Error() string {
	label := fmt.Sprintf("step %d (%s", e.Index+1, e.Type)
	if e.Name != "" && e.Name != e.Type {
		label += ": " + e.Name
	}
	if e.ID != "" {
		label += ", id " + e.ID
	}
	return label + "): " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func WrapStepError(index int, info StepInfo, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Index: index, Type: info.Type, Name: info.Name, ID: info.ID, Err: err}
}

// ErrorKind names the taxonomy class of err, or "internal".
func ErrorKind(err error) string {
	var (
		pe *ParameterError
		ce *ContextError
		ke *CapabilityError
		le *LoadError
		de *DomainError
		te *TransportError
	)
	switch {
	case errors.As(err, &pe):
		return "parameter"
	case errors.As(err, &ce):
		return "context"
	case errors.As(err, &ke):
		return "capability"
	case errors.As(err, &le):
		return "load"
	case errors.As(err, &de):
		return "domain"
	case errors.As(err, &te):
		return "transport"
	default:
		return "internal"
	}
}
