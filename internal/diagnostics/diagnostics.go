package diagnostics

import (
	"fmt"
	"github.com/funvibe/jitclass/internal/token"
)

// ErrorCode identifies a class of front-end diagnostic.
type ErrorCode string

const (
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // illegal character or malformed literal
	ErrP003 ErrorCode = "P003" // malformed class or method header
	ErrP004 ErrorCode = "P004" // invalid assignment target
	ErrP005 ErrorCode = "P005" // duplicate class, method or parameter

	ErrC001 ErrorCode = "C001" // class failed to compile
	ErrC002 ErrorCode = "C002" // unknown parent class or inheritance cycle
)

// DiagnosticError is a positioned error produced by the front end.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	File    string
	Message string
	Cause   error
}

func (e *DiagnosticError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Token.Line, e.Token.Column)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	return fmt.Sprintf("%s: [%s] %s", loc, e.Code, e.Message)
}

func (e *DiagnosticError) Unwrap() error { return e.Cause }

// NewError creates a diagnostic at the position of tok.
func NewError(code ErrorCode, tok token.Token, message string) *DiagnosticError {
	return &DiagnosticError{Code: code, Token: tok, Message: message}
}

// Wrap creates a diagnostic carrying an underlying error.
func Wrap(code ErrorCode, tok token.Token, err error) *DiagnosticError {
	return &DiagnosticError{Code: code, Token: tok, Message: err.Error(), Cause: err}
}
