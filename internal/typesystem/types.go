package typesystem

import (
	"fmt"
	"github.com/funvibe/jitclass/internal/config"
	"strings"
)

// Type is the interface for all types in our system.
type Type interface {
	String() string
	Apply(Subst) Type
	FreeTypeVariables() []TVar
}

// TVar represents a type variable (e.g. 't1'), a type not yet inferred.
type TVar struct {
	Name string
}

func (t TVar) String() string { return t.Name }

func (t TVar) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TVar) FreeTypeVariables() []TVar { return []TVar{t} }

// TCon is a native primitive type with a fixed size and alignment.
type TCon struct {
	Name  string
	Size  int
	Align int
}

func (t TCon) String() string            { return t.Name }
func (t TCon) Apply(Subst) Type          { return t }
func (t TCon) FreeTypeVariables() []TVar { return nil }

// TExt is a reference to an instance of an extension type.
// Natively it is a pointer, so it occupies one machine word.
type TExt struct {
	Name string
}

func (t TExt) String() string            { return t.Name }
func (t TExt) Apply(Subst) Type          { return t }
func (t TExt) FreeTypeVariables() []TVar { return nil }

// TFunc is a method signature. The receiver is not part of Params.
type TFunc struct {
	Params     []Type
	ReturnType Type
}

func (t TFunc) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	ret := "?"
	if t.ReturnType != nil {
		ret = t.ReturnType.String()
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), ret)
}

func (t TFunc) Apply(s Subst) Type {
	return ApplyWithCycleCheck(t, s, make(map[string]bool))
}

func (t TFunc) FreeTypeVariables() []TVar {
	var vars []TVar
	for _, p := range t.Params {
		vars = appendUniqueVars(vars, p.FreeTypeVariables())
	}
	if t.ReturnType != nil {
		vars = appendUniqueVars(vars, t.ReturnType.FreeTypeVariables())
	}
	return vars
}

func appendUniqueVars(dst []TVar, src []TVar) []TVar {
	for _, v := range src {
		found := false
		for _, d := range dst {
			if d.Name == v.Name {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// Native primitives. Sizes assume a 64-bit word; Text is a handle.
var (
	Int    = TCon{Name: config.IntTypeName, Size: 8, Align: 8}
	Int32  = TCon{Name: config.Int32TypeName, Size: 4, Align: 4}
	Double = TCon{Name: config.DoubleTypeName, Size: 8, Align: 8}
	Bool   = TCon{Name: config.BoolTypeName, Size: 1, Align: 1}
	Text   = TCon{Name: config.TextTypeName, Size: 8, Align: 8}
	Void   = TCon{Name: config.VoidTypeName, Size: 0, Align: 1}
)

var primitives = map[string]TCon{
	Int.Name:    Int,
	Int32.Name:  Int32,
	Double.Name: Double,
	Bool.Name:   Bool,
	Text.Name:   Text,
	Void.Name:   Void,
}

// LookupPrimitive returns the native primitive with the given name.
func LookupPrimitive(name string) (TCon, bool) {
	t, ok := primitives[name]
	return t, ok
}

// IsNumeric reports whether t is one of the arithmetic primitives.
func IsNumeric(t Type) bool {
	c, ok := t.(TCon)
	if !ok {
		return false
	}
	return c.Name == Int.Name || c.Name == Int32.Name || c.Name == Double.Name
}

// IsConcrete reports whether t contains no free type variables.
func IsConcrete(t Type) bool {
	return t != nil && len(t.FreeTypeVariables()) == 0
}

// SizeOf returns the native size of a concrete field type in bytes.
func SizeOf(t Type) int {
	switch typ := t.(type) {
	case TCon:
		return typ.Size
	case TExt:
		return config.WordSize
	}
	return 0
}

// AlignOf returns the native alignment of a concrete field type.
func AlignOf(t Type) int {
	switch typ := t.(type) {
	case TCon:
		if typ.Align == 0 {
			return 1
		}
		return typ.Align
	case TExt:
		return config.WordSize
	}
	return 1
}

// Equal compares two types structurally.
func Equal(a, b Type) bool {
	switch ta := a.(type) {
	case TVar:
		tb, ok := b.(TVar)
		return ok && ta.Name == tb.Name
	case TCon:
		tb, ok := b.(TCon)
		return ok && ta.Name == tb.Name
	case TExt:
		tb, ok := b.(TExt)
		return ok && ta.Name == tb.Name
	case TFunc:
		tb, ok := b.(TFunc)
		if !ok || len(ta.Params) != len(tb.Params) {
			return false
		}
		for i := range ta.Params {
			if !Equal(ta.Params[i], tb.Params[i]) {
				return false
			}
		}
		return Equal(ta.ReturnType, tb.ReturnType)
	case nil:
		return b == nil
	}
	return false
}

// Subst maps type variable names to types.
type Subst map[string]Type

// Compose returns s1 ∘ s2: apply s2 first, then s1.
func (s1 Subst) Compose(s2 Subst) Subst {
	out := make(Subst, len(s1)+len(s2))
	for k, v := range s2 {
		out[k] = v.Apply(s1)
	}
	for k, v := range s1 {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// ApplyWithCycleCheck applies substitution with cycle detection.
func ApplyWithCycleCheck(t Type, s Subst, visited map[string]bool) Type {
	if t == nil {
		return nil
	}

	switch typ := t.(type) {
	case TVar:
		if visited[typ.Name] {
			return typ
		}
		if replacement, ok := s[typ.Name]; ok {
			if tv, ok := replacement.(TVar); ok && tv.Name == typ.Name {
				return typ
			}
			newVisited := copyVisited(visited)
			newVisited[typ.Name] = true
			return ApplyWithCycleCheck(replacement, s, newVisited)
		}
		return typ

	case TFunc:
		newParams := make([]Type, len(typ.Params))
		for i, p := range typ.Params {
			newParams[i] = ApplyWithCycleCheck(p, s, visited)
		}
		return TFunc{
			Params:     newParams,
			ReturnType: ApplyWithCycleCheck(typ.ReturnType, s, visited),
		}
	}
	return t
}

func copyVisited(visited map[string]bool) map[string]bool {
	out := make(map[string]bool, len(visited)+1)
	for k, v := range visited {
		out[k] = v
	}
	return out
}

// VarSupply hands out fresh type variables for one inference run.
type VarSupply struct {
	prefix string
	next   int
}

func NewVarSupply(prefix string) *VarSupply {
	return &VarSupply{prefix: prefix}
}

// Fresh returns a new, unused type variable.
func (v *VarSupply) Fresh() TVar {
	v.next++
	return TVar{Name: fmt.Sprintf("%s%d", v.prefix, v.next)}
}
