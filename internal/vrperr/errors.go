// Package vrperr defines the error taxonomy reported through the engine boundary.
package vrperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	Validation    Kind = "ValidationError"
	MatrixMissing Kind = "MatrixMissingEntry"
	EngineFault   Kind = "EngineFault"
	Serialization Kind = "SerializationError"
	Cancelled     Kind = "Cancelled"
)

// Detail is a single violation, coded after the pragmatic error registry.
type Detail struct {
	Code   string `json:"code"`
	Cause  string `json:"cause"`
	Action string `json:"action,omitempty"`
}

func (d Detail) String() string {
	return fmt.Sprintf("%s, cause: '%s', action: '%s'", d.Code, d.Cause, d.Action)
}

// Error is the structured error handed to error continuations.
type Error struct {
	Kind    Kind     `json:"code"`
	Message string   `json:"message"`
	Details []Detail `json:"details"`
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, len(e.Details))
	for i, d := range e.Details {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%s: %s [%s]", e.Kind, e.Message, strings.Join(parts, "; "))
}

// JSON renders the error payload. It never fails: the payload only holds strings.
func (e *Error) JSON() string {
	out := *e
	if out.Details == nil {
		out.Details = []Detail{}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"code":%q,"message":%q,"details":[]}`, e.Kind, e.Message)
	}
	return string(b)
}

// New creates an error of the given kind.
func New(kind Kind, message string, details ...Detail) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Newf creates an error with a formatted message and no details.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// D is a shorthand constructor for Detail.
func D(code, cause, action string) Detail {
	return Detail{Code: code, Cause: cause, Action: action}
}

// Is reports whether err carries a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// From converts any error into a *Error, defaulting to EngineFault.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: EngineFault, Message: err.Error()}
}

// Collector accumulates details so validation can report every violation at once.
type Collector struct {
	details []Detail
}

// Add records a violation.
func (c *Collector) Add(code, cause, action string) {
	c.details = append(c.details, D(code, cause, action))
}

// Len returns the number of recorded violations.
func (c *Collector) Len() int { return len(c.details) }

// Err returns nil when nothing was recorded.
func (c *Collector) Err(kind Kind, message string) error {
	if len(c.details) == 0 {
		return nil
	}
	return New(kind, message, c.details...)
}
