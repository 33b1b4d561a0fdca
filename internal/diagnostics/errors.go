package diagnostics

import (
	"fmt"
	"strings"

	"github.com/funvibe/jitclass/internal/typesystem"
)

// ConflictError reports an attribute redeclared by a subclass with a type
// incompatible with the one its parent fixed.
type ConflictError struct {
	Class      string
	Parent     string
	Attribute  string
	ParentType typesystem.Type
	ChildType  typesystem.Type
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("class %s: attribute %q redeclared as %s, but %s declares it as %s",
		e.Class, e.Attribute, e.ChildType, e.Parent, e.ParentType)
}

// SlotConflictError reports an override whose signature is incompatible
// with the parent's slot.
type SlotConflictError struct {
	Class     string
	Parent    string
	Method    string
	Slot      int
	ParentSig typesystem.Type
	ChildSig  typesystem.Type
	Reason    string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("class %s: override of %s (slot %d) has signature %s, incompatible with %s in %s: %s",
		e.Class, e.Method, e.Slot, e.ChildSig, e.ParentSig, e.Parent, e.Reason)
}

// BlockedMethod is a method whose inference is waiting on other items.
type BlockedMethod struct {
	Method    string
	WaitingOn []string
}

// InferenceStalledError reports that attribute/method inference did not
// reach a fixed point.
type InferenceStalledError struct {
	Class      string
	Passes     int
	CapReached bool
	Blocked    []BlockedMethod
}

func (e *InferenceStalledError) Error() string {
	var sb strings.Builder
	if e.CapReached {
		fmt.Fprintf(&sb, "class %s: type inference did not converge after %d passes", e.Class, e.Passes)
	} else {
		fmt.Fprintf(&sb, "class %s: type inference stalled after %d passes (circular dependency)", e.Class, e.Passes)
	}
	for _, b := range e.Blocked {
		fmt.Fprintf(&sb, "; %s waits on %s", b.Method, strings.Join(b.WaitingOn, ", "))
	}
	return sb.String()
}

// UnresolvedTypeError reports items still holding free type variables when
// the layout was finalized.
type UnresolvedTypeError struct {
	Class string
	Items []string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("class %s: unresolved types: %s", e.Class, strings.Join(e.Items, "; "))
}

// Violation is one failed validation rule.
type Violation struct {
	Rule    string
	Subject string
	Message string
}

func (v Violation) String() string {
	if v.Subject == "" {
		return fmt.Sprintf("%s: %s", v.Rule, v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", v.Rule, v.Subject, v.Message)
}

// ValidationError carries every violation found for a class.
type ValidationError struct {
	Class      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("class %s: %d validation error(s): %s", e.Class, len(e.Violations), strings.Join(parts, "; "))
}

// MethodCompilationError reports a method the compilation pipeline rejected.
type MethodCompilationError struct {
	Class  string
	Method string
	Line   int
	Column int
	Err    error
}

func (e *MethodCompilationError) Error() string {
	return fmt.Sprintf("class %s: compiling method %s (line %d): %v", e.Class, e.Method, e.Line, e.Err)
}

func (e *MethodCompilationError) Unwrap() error { return e.Err }

// InferenceError reports a type error in a method body.
type InferenceError struct {
	Class  string
	Method string
	Line   int
	Column int
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("class %s: method %s: %d:%d: %v", e.Class, e.Method, e.Line, e.Column, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// PhaseOrderError reports a compile phase invoked out of order.
type PhaseOrderError struct {
	Class string
	Phase string
	Want  string
}

func (e *PhaseOrderError) Error() string {
	return fmt.Sprintf("class %s: phase %s requires %s to run first", e.Class, e.Phase, e.Want)
}

// CompileError wraps any failure with the class and phase it aborted.
type CompileError struct {
	Class string
	Phase string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling %s: %s phase failed: %v", e.Class, e.Phase, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }
