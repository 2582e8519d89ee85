// Package errs defines the error taxonomy shared by the reader, the engine and
// the configuration layer.
package errs

import (
	"errors"
	"fmt"
	"image"
)

// Kind classifies an error by the layer that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindRecognition covers capture and text-extraction failures. A countdown
	// that simply could not be parsed is not an error.
	KindRecognition
	// KindAutomation covers click/device failures and illegal engine transitions.
	KindAutomation
	// KindConfiguration covers shape-invalid or out-of-range settings.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindRecognition:
		return "recognition"
	case KindAutomation:
		return "automation"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error is the structured error used across the project.
type Error struct {
	Kind    Kind
	Op      string // operation or config key, e.g. "capture", "click buy button"
	Message string
	Region  *image.Rectangle // set for recognition errors
	Cause   error
}

func (e *Error) Error() string {
	s := e.Kind.String() + " error"
	if e.Op != "" {
		s += fmt.Sprintf(" during %q", e.Op)
	}
	if e.Region != nil {
		s += fmt.Sprintf(" in region %v", *e.Region)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Recognition wraps a capture or OCR primitive failure.
func Recognition(op string, region image.Rectangle, cause error) *Error {
	r := region
	return &Error{Kind: KindRecognition, Op: op, Region: &r, Cause: cause}
}

// Automation builds an automation error.
func Automation(op, msg string, cause error) *Error {
	return &Error{Kind: KindAutomation, Op: op, Message: msg, Cause: cause}
}

// Configuration builds a configuration error for the given key.
func Configuration(key, msg string) *Error {
	return &Error{Kind: KindConfiguration, Op: key, Message: msg}
}

// ErrAlreadyRunning is returned when a run is started while another is active.
var ErrAlreadyRunning = &Error{Kind: KindAutomation, Op: "start", Message: "engine is already running"}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}
