package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolygon matches every InvalidPolygonError through errors.Is.
	ErrInvalidPolygon = errors.New("invalid polygon")

	// ErrLayerOutOfRange is returned when a horizon references a layer the
	// supplied interface-radii table does not describe.
	ErrLayerOutOfRange = errors.New("layer index out of range")
)

// InvalidPolygonError reports a polygon that cannot be constructed from the
// supplied inputs.
type InvalidPolygonError struct {
	Reason string
}

func (e *InvalidPolygonError) Error() string {
	return "invalid polygon: " + e.Reason
}

// Is lets errors.Is(err, ErrInvalidPolygon) match.
func (e *InvalidPolygonError) Is(target error) bool {
	return target == ErrInvalidPolygon
}

func invalidPolygon(format string, args ...any) error {
	return &InvalidPolygonError{Reason: fmt.Sprintf(format, args...)}
}

// ParseError wraps a failure to decode a region definition document. It is
// never an InvalidPolygonError: malformed input and impossible geometry are
// reported separately.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse region definitions: %v", e.Err)
	}
	return fmt.Sprintf("parse region definitions (%s): %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ContractError signals a violated precondition, such as a non-unit vector
// reaching the arc normal fallback chain. Code that detects one panics with
// it; the batch evaluator recovers the panic and returns it as an error.
type ContractError struct {
	Op     string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: contract violation: %s", e.Op, e.Detail)
}
