package rules

import (
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
)

// Common sentinel errors.
var (
	// ErrNoModulesLoaded indicates the registry holds no compiled modules.
	ErrNoModulesLoaded = errors.New("no rule modules loaded")

	// ErrModuleNotFound indicates an unknown module path.
	ErrModuleNotFound = errors.New("rule module not found")
)

// CompileError is a structured syntax or semantic error from the rule
// compiler. Row and Col are 1-based and zero when the compiler gave no
// location.
type CompileError struct {
	Module  string
	Message string
	Row     int
	Col     int
	Cause   error
}

// Error returns the error message with a line/column hint when available.
func (e *CompileError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("module %s: %d:%d: %s", e.Module, e.Row, e.Col, e.Message)
	}
	return fmt.Sprintf("module %s: %s", e.Module, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// FaultError indicates a compiled rule failed during execution (for example
// a runtime type mismatch). The decision engine treats a fault as an
// implicit deny for the single event being evaluated; it is never fatal to
// the stream.
type FaultError struct {
	Module string
	Cause  error
}

// Error returns the error message.
func (e *FaultError) Error() string {
	return fmt.Sprintf("rule module %s: evaluation fault: %v", e.Module, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FaultError) Unwrap() error {
	return e.Cause
}

// newCompileError converts an OPA parse or compile error into a
// CompileError, extracting the first reported location.
func newCompileError(module string, err error) *CompileError {
	ce := &CompileError{Module: module, Message: err.Error(), Cause: err}

	var astErrs ast.Errors
	if errors.As(err, &astErrs) && len(astErrs) > 0 {
		first := astErrs[0]
		ce.Message = first.Message
		if first.Location != nil {
			ce.Row = first.Location.Row
			ce.Col = first.Location.Col
		}
	} else {
		var astErr *ast.Error
		if errors.As(err, &astErr) {
			ce.Message = astErr.Message
			if astErr.Location != nil {
				ce.Row = astErr.Location.Row
				ce.Col = astErr.Location.Col
			}
		}
	}
	return ce
}
