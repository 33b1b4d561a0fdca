package typesystem

import "fmt"

// SymbolNotFoundError indicates a type name was not found
type SymbolNotFoundError struct {
	Name string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("unknown type: %s", e.Name)
}

func NewSymbolNotFoundError(name string) *SymbolNotFoundError {
	return &SymbolNotFoundError{Name: name}
}

// ClassResolver resolves a non-primitive type name to an extension type.
type ClassResolver interface {
	HasClass(name string) bool
}

// ParseTypeName turns a type annotation into a Type. Class names are
// accepted when the resolver knows them (or the name is in extra).
func ParseTypeName(name string, resolver ClassResolver, extra ...string) (Type, error) {
	if t, ok := LookupPrimitive(name); ok {
		return t, nil
	}
	for _, e := range extra {
		if e == name {
			return TExt{Name: name}, nil
		}
	}
	if resolver != nil && resolver.HasClass(name) {
		return TExt{Name: name}, nil
	}
	return nil, NewSymbolNotFoundError(name)
}
