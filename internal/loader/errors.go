package loader

import (
	"fmt"
	"strings"
)

// Kind classifies a load failure.
type Kind string

const (
	KindFetch      Kind = "fetch"      // transport failure or non-2xx status
	KindParse      Kind = "parse"      // payload is neither JSON nor YAML
	KindValidation Kind = "validation" // payload does not match the index shape
)

// LoadError is the terminal error of an index load. Message carries the raw
// diagnostic: the response body, the parser message or the violation list.
type LoadError struct {
	Kind       Kind
	Message    string
	Violations []string
	Err        error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("index validation failed:\n%s", strings.Join(e.Violations, "\n"))
	default:
		return fmt.Sprintf("index %s failed: %s", e.Kind, e.Message)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

func fetchError(msg string, err error) *LoadError {
	return &LoadError{Kind: KindFetch, Message: msg, Err: err}
}

func parseError(err error) *LoadError {
	return &LoadError{Kind: KindParse, Message: err.Error(), Err: err}
}

func validationError(violations []string) *LoadError {
	return &LoadError{Kind: KindValidation, Message: strings.Join(violations, "; "), Violations: violations}
}
