// Package exttypes compiles annotated classes into extension types: native
// attribute records with fixed offsets, virtual method tables with stable
// slots, and compiled method bodies bound to both.
package exttypes

import (
	"fmt"
	"strings"

	"github.com/funvibe/jitclass/internal/annotate"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
	"github.com/funvibe/jitclass/internal/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jitclass.exttypes")

// AttributeOrigin records where an attribute was first introduced.
type AttributeOrigin int

const (
	OriginDeclared    AttributeOrigin = iota // class body declaration
	OriginInitializer                        // assignment in __init__
	OriginInferred                           // assignment in another method
	OriginInherited                          // copied from the parent layout
)

func (o AttributeOrigin) String() string {
	switch o {
	case OriginDeclared:
		return "declared"
	case OriginInitializer:
		return "initializer"
	case OriginInferred:
		return "inferred"
	case OriginInherited:
		return "inherited"
	}
	return "unknown"
}

// Attribute is one native field.
type Attribute struct {
	Name   string
	Type   typesystem.Type
	Offset int // -1 until the table is ordered
	Owner  string
	Origin AttributeOrigin
	Pos    token.Token
}

// Kind returns the native kind of a finalized attribute.
func (a *Attribute) Kind() vm.Kind {
	k, _ := vm.KindOf(a.Type)
	return k
}

// SlotOrigin records how a vtable slot was populated.
type SlotOrigin int

const (
	SlotNew SlotOrigin = iota
	SlotOverride
	SlotInherited
)

func (o SlotOrigin) String() string {
	switch o {
	case SlotNew:
		return "new"
	case SlotOverride:
		return "override"
	case SlotInherited:
		return "inherited"
	}
	return "unknown"
}

// FuncEnv is the compilation environment and result of one method.
type FuncEnv struct {
	Method      *Method
	Signature   typesystem.TFunc
	Function    *vm.Function
	Pointer     uintptr
	Annotations *annotate.SourceIntermediate
}

// Accessor reads and writes one field of an instance at a fixed offset.
type Accessor struct {
	Name   string
	Offset int
	Kind   vm.Kind
	Get    func(o *Object) (vm.Value, error)
	Set    func(o *Object, v vm.Value) error
}

// ExtensionType is the compiled descriptor of one class. It is immutable
// once finalized and shared by every instance and subclass.
type ExtensionType struct {
	ID     uuid.UUID
	Name   string
	Mode   string
	Parent *ExtensionType

	Attributes []*Attribute // in offset order
	Size       int
	Align      int

	VTableType *VTableType
	VTable     *VTable

	// Initializer is the compiled __init__, own or inherited; nil when the
	// chain defines none.
	Initializer *FuncEnv
	// Methods holds the methods compiled for this class (new and overrides).
	Methods map[string]*FuncEnv

	Accessors map[string]Accessor

	attrIndex map[string]*Attribute
	arena     *vm.CodeArena
	finalized bool
}

// ClassName implements symbols.Extension.
func (t *ExtensionType) ClassName() string { return t.Name }

// ParentName implements symbols.Extension.
func (t *ExtensionType) ParentName() string {
	if t.Parent == nil {
		return ""
	}
	return t.Parent.Name
}

// Finalized reports whether the type is safe to instantiate.
func (t *ExtensionType) Finalized() bool { return t.finalized }

// Attribute returns the field with the given name.
func (t *ExtensionType) Attribute(name string) (*Attribute, bool) {
	a, ok := t.attrIndex[name]
	return a, ok
}

// Slot returns the vtable slot of a method.
func (t *ExtensionType) Slot(name string) (SlotType, bool) {
	if t.VTableType == nil {
		return SlotType{}, false
	}
	return t.VTableType.Lookup(name)
}

// IsSubtypeOf reports whether t is other or inherits from it.
func (t *ExtensionType) IsSubtypeOf(other *ExtensionType) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Describe renders the layout for humans.
func (t *ExtensionType) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s", t.Name)
	if t.Parent != nil {
		fmt.Fprintf(&sb, "(%s)", t.Parent.Name)
	}
	fmt.Fprintf(&sb, " size=%d align=%d\n", t.Size, t.Align)
	for _, a := range t.Attributes {
		fmt.Fprintf(&sb, "  +%-4d %-16s %-8s %s\n", a.Offset, a.Name, a.Type, a.Origin)
	}
	if t.VTableType != nil {
		for _, s := range t.VTableType.Slots {
			ptr := uintptr(0)
			if t.VTable != nil && s.Index < len(t.VTable.Pointers) {
				ptr = t.VTable.Pointers[s.Index]
			}
			fmt.Fprintf(&sb, "  [%d] %-16s %-24s %#x\n", s.Index, s.Name, s.Signature, ptr)
		}
	}
	return sb.String()
}

// field returns the offset and kind of an ordered attribute.
func (t *ExtensionType) field(name string) (int, vm.Kind, bool) {
	a, ok := t.attrIndex[name]
	if !ok || a.Offset < 0 {
		return 0, 0, false
	}
	return a.Offset, a.Kind(), true
}
