package exttypes

import (
	"fmt"

	"github.com/funvibe/jitclass/internal/typesystem"
)

// SlotType is one entry of a vtable type.
type SlotType struct {
	Index     int
	Name      string
	Signature typesystem.TFunc
	Owner     string // class whose code fills the slot
}

// VTableType is the shape of a class's function-pointer table.
type VTableType struct {
	Class  string
	Slots  []SlotType
	Parent *VTableType
	byName map[string]int
}

// Lookup returns the slot for a method name.
func (vt *VTableType) Lookup(name string) (SlotType, bool) {
	i, ok := vt.byName[name]
	if !ok {
		return SlotType{}, false
	}
	return vt.Slots[i], true
}

// Len returns the number of slots.
func (vt *VTableType) Len() int { return len(vt.Slots) }

// VTable is a populated function-pointer table.
type VTable struct {
	Type     *VTableType
	Pointers []uintptr
}

// VTabBuilder synthesizes vtable types and instances.
type VTabBuilder interface {
	// BuildType derives the vtable type from the method table. The result
	// differs from the parent's only by appended slots.
	BuildType(class string, mt *MethodTable, parent *ExtensionType) (*VTableType, error)
	// Build populates a table from the method table's slot pointers.
	Build(vt *VTableType, mt *MethodTable) (*VTable, error)
	// InheritSlot returns the parent's pointer for index unchanged.
	InheritSlot(parent *VTable, index int) uintptr
}

type staticVTabBuilder struct{}

// NewVTabBuilder returns the builder for statically laid out tables.
func NewVTabBuilder() VTabBuilder {
	return staticVTabBuilder{}
}

func (staticVTabBuilder) BuildType(class string, mt *MethodTable, parent *ExtensionType) (*VTableType, error) {
	vt := &VTableType{Class: class, byName: make(map[string]int, len(mt.Slots))}
	for i, s := range mt.Slots {
		if s.Index != i {
			return nil, fmt.Errorf("slot %s has index %d at position %d", s.Name, s.Index, i)
		}
		vt.Slots = append(vt.Slots, SlotType{Index: i, Name: s.Name, Signature: s.Signature, Owner: s.Owner})
		vt.byName[s.Name] = i
	}

	if parent != nil && parent.VTableType != nil {
		vt.Parent = parent.VTableType
		if err := checkPrefix(vt, parent.VTableType); err != nil {
			return nil, err
		}
	}
	return vt, nil
}

// checkPrefix verifies that every parent slot survives at its index.
func checkPrefix(vt, parent *VTableType) error {
	if len(vt.Slots) < len(parent.Slots) {
		return fmt.Errorf("vtable of %s drops slots of %s", vt.Class, parent.Class)
	}
	for i, ps := range parent.Slots {
		if vt.Slots[i].Name != ps.Name {
			return fmt.Errorf("vtable of %s reorders slot %d: %s, parent has %s", vt.Class, i, vt.Slots[i].Name, ps.Name)
		}
	}
	return nil
}

func (staticVTabBuilder) Build(vt *VTableType, mt *MethodTable) (*VTable, error) {
	if len(mt.Slots) != len(vt.Slots) {
		return nil, fmt.Errorf("vtable of %s has %d slots, method table has %d", vt.Class, len(vt.Slots), len(mt.Slots))
	}
	table := &VTable{Type: vt, Pointers: make([]uintptr, len(vt.Slots))}
	for i, s := range mt.Slots {
		if s.Pointer == 0 {
			return nil, fmt.Errorf("slot %d (%s) of %s is not populated", i, s.Name, vt.Class)
		}
		table.Pointers[i] = s.Pointer
	}
	return table, nil
}

func (staticVTabBuilder) InheritSlot(parent *VTable, index int) uintptr {
	if parent == nil || index < 0 || index >= len(parent.Pointers) {
		return 0
	}
	return parent.Pointers[index]
}
