package graph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/pullgraph/internal/substrate"
)

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeMissingBinding indicates a wiring or evaluation step found a
	// vertex without the port binding its definition promised.
	ErrCodeMissingBinding ErrorCode = "MISSING_BINDING"

	// ErrCodeUnwiredInput indicates an input port was evaluated before
	// anything was wired to it.
	ErrCodeUnwiredInput ErrorCode = "UNWIRED_INPUT"

	// ErrCodeMissingState indicates a vertex lacks the state attachment its
	// compute function reads.
	ErrCodeMissingState ErrorCode = "MISSING_STATE"

	// ErrCodeAlreadyWired indicates a second arc targeted an input port.
	ErrCodeAlreadyWired ErrorCode = "ALREADY_WIRED"

	// ErrCodeCycleDetected indicates evaluation re-entered a port that was
	// already being evaluated, or static analysis found a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeUnknownPort indicates a wiring request named a port the vertex
	// kind never declared.
	ErrCodeUnknownPort ErrorCode = "UNKNOWN_PORT"

	// ErrCodeKindConflict indicates one kind name was registered with two
	// different port layouts.
	ErrCodeKindConflict ErrorCode = "KIND_CONFLICT"

	// ErrCodeInvalidDefinition indicates a malformed vertex definition.
	ErrCodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"
)

// GraphError is a configuration error: the graph was assembled wrongly.
//
// These are developer-facing invariant violations. During wiring and
// evaluation they are raised with panic and recovered only at the public
// boundaries (Builder.Apply, Evaluate, Driver passes), which return them.
type GraphError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Vertex is the vertex the error was detected on, if any.
	Vertex substrate.ID

	// Port is the port involved, if any.
	Port *PortSpec

	// Path is the evaluation path for cycle errors, outermost first.
	Path []Frame
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Vertex.Valid() {
		fmt.Fprintf(&b, " (vertex=%s", e.Vertex)
		if e.Port != nil {
			fmt.Fprintf(&b, ", port=%s", e.Port)
		}
		b.WriteString(")")
	}
	if len(e.Path) > 0 {
		parts := make([]string, len(e.Path))
		for i, f := range e.Path {
			parts[i] = f.String()
		}
		fmt.Fprintf(&b, " path=%s", strings.Join(parts, " -> "))
	}
	return b.String()
}

// TypeMismatchError is returned when a runtime wiring request connects
// ports of different value types. No arc is created.
type TypeMismatchError struct {
	From     Endpoint
	To       Endpoint
	FromType reflect.Type
	ToType   reflect.Type
}

// Error implements the error interface.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: cannot wire %s (%s) to %s (%s)",
		ErrCodeTypeMismatch, e.From, e.FromType, e.To, e.ToType)
}

// ErrCodeTypeMismatch is the code reported by TypeMismatchError.
const ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

// IsConfigError returns true if err is a GraphError of any code other than
// cycle detection. Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code != ErrCodeCycleDetected
	}
	return false
}

// IsCycleError returns true if err reports a cycle.
func IsCycleError(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == ErrCodeCycleDetected
	}
	return false
}

// IsTypeMismatch returns true if err is a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// CodeOf returns the error code carried by err, or "" if err is not a
// graph error.
func CodeOf(err error) ErrorCode {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code
	}
	if IsTypeMismatch(err) {
		return ErrCodeTypeMismatch
	}
	return ""
}

// fatal raises a configuration error inside wiring or evaluation.
func fatal(code ErrorCode, vertex substrate.ID, port *PortSpec, format string, args ...any) {
	panic(&GraphError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Vertex:  vertex,
		Port:    port,
	})
}

// recoverGraphError converts a recovered GraphError panic into *err.
// Any other panic value is re-raised.
func recoverGraphError(r any, err *error) {
	if r == nil {
		return
	}
	if ge, ok := r.(*GraphError); ok {
		*err = ge
		return
	}
	panic(r)
}
