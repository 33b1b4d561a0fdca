package typesystem

import (
	"fmt"
)

// Resolver lets unification ask about the extension type hierarchy
// (e.g. the environment's registry of finalized classes).
type Resolver interface {
	// SuperclassOf returns the direct parent of an extension type.
	SuperclassOf(name string) (string, bool)
}

// Unify attempts to find a substitution that makes t1 and t2 equal.
// It enforces strict equality (invariant).
func Unify(t1, t2 Type) (Subst, error) {
	return unifyInternal(t1, t2, nil, false)
}

// UnifyAssignable unifies an expected type with an actual one, allowing the
// actual type to be a subclass of the expected extension type and an int to
// widen into a double.
func UnifyAssignable(expected, actual Type, resolver Resolver) (Subst, error) {
	return unifyInternal(expected, actual, resolver, true)
}

func unifyInternal(t1, t2 Type, resolver Resolver, assignable bool) (Subst, error) {
	if Equal(t1, t2) {
		return Subst{}, nil
	}

	if tv, ok := t1.(TVar); ok {
		return bind(tv, t2)
	}
	if tv, ok := t2.(TVar); ok {
		return bind(tv, t1)
	}

	switch a := t1.(type) {
	case TCon:
		b, ok := t2.(TCon)
		if ok && assignable && a.Name == Double.Name && (b.Name == Int.Name || b.Name == Int32.Name) {
			return Subst{}, nil
		}
		if ok && assignable && a.Name == Int.Name && b.Name == Int32.Name {
			return Subst{}, nil
		}
	case TExt:
		if b, ok := t2.(TExt); ok && assignable && IsSubclass(b.Name, a.Name, resolver) {
			return Subst{}, nil
		}
	case TFunc:
		b, ok := t2.(TFunc)
		if !ok {
			break
		}
		if len(a.Params) != len(b.Params) {
			return nil, fmt.Errorf("arity mismatch: %d vs %d", len(a.Params), len(b.Params))
		}
		subst := Subst{}
		for i := range a.Params {
			s, err := unifyInternal(a.Params[i].Apply(subst), b.Params[i].Apply(subst), resolver, false)
			if err != nil {
				return nil, fmt.Errorf("parameter %d: %w", i+1, err)
			}
			subst = s.Compose(subst)
		}
		s, err := unifyInternal(a.ReturnType.Apply(subst), b.ReturnType.Apply(subst), resolver, assignable)
		if err != nil {
			return nil, fmt.Errorf("return type: %w", err)
		}
		return s.Compose(subst), nil
	}

	return nil, fmt.Errorf("type mismatch: expected %s, got %s", typeName(t1), typeName(t2))
}

func bind(tv TVar, t Type) (Subst, error) {
	if other, ok := t.(TVar); ok && other.Name == tv.Name {
		return Subst{}, nil
	}
	if occursCheck(tv, t) {
		return nil, fmt.Errorf("infinite type: %s occurs in %s", tv.Name, t)
	}
	return Subst{tv.Name: t}, nil
}

func occursCheck(tv TVar, t Type) bool {
	for _, v := range t.FreeTypeVariables() {
		if v.Name == tv.Name {
			return true
		}
	}
	return false
}

func typeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// IsSubclass reports whether sub is super or inherits from it.
func IsSubclass(sub, super string, resolver Resolver) bool {
	seen := make(map[string]bool)
	for name := sub; name != ""; {
		if name == super {
			return true
		}
		if resolver == nil || seen[name] {
			return false
		}
		seen[name] = true
		parent, ok := resolver.SuperclassOf(name)
		if !ok {
			return false
		}
		name = parent
	}
	return false
}

// IsSubtype reports whether a value of type sub may be used where super is
// expected without any conversion.
func IsSubtype(sub, super Type, resolver Resolver) bool {
	if Equal(sub, super) {
		return true
	}
	a, ok1 := sub.(TExt)
	b, ok2 := super.(TExt)
	return ok1 && ok2 && IsSubclass(a.Name, b.Name, resolver)
}
