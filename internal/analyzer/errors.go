package analyzer

import (
	"fmt"
	"strings"

	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// TypeError is a type error at a position in the method body.
type TypeError struct {
	Token token.Token
	Msg   string
}

func (e *TypeError) Error() string {
	return e.Msg
}

func newTypeError(tok token.Token, format string, args ...interface{}) *TypeError {
	return &TypeError{Token: tok, Msg: fmt.Sprintf(format, args...)}
}

// AttributeTypeError reports an assignment whose value does not fit the
// attribute's established type.
type AttributeTypeError struct {
	Class    string
	Name     string
	Expected typesystem.Type
	Actual   typesystem.Type
	Token    token.Token
}

func (e *AttributeTypeError) Error() string {
	return fmt.Sprintf("cannot assign %s to attribute %s.%s of type %s", e.Actual, e.Class, e.Name, e.Expected)
}

// UnknownAttributeError reports a read of a receiver attribute that no
// method of the class ever assigns.
type UnknownAttributeError struct {
	Class string
	Name  string
	Known []string
	Token token.Token
}

func (e *UnknownAttributeError) Error() string {
	msg := fmt.Sprintf("%s has no attribute %s", e.Class, e.Name)
	if len(e.Known) > 0 {
		msg += fmt.Sprintf(" (known attributes: %s)", strings.Join(e.Known, ", "))
	}
	return msg
}
