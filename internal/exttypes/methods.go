package exttypes

import (
	"fmt"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// Method is a method of the class under compilation.
type Method struct {
	Name      string
	Def       *ast.MethodDef
	Owner     string
	Signature typesystem.TFunc

	// Committed is set once inference settled the body.
	Committed bool
	// Types holds the expression types of the committed body.
	Types map[ast.Node]typesystem.Type
}

// Pos returns the position of the method definition.
func (m *Method) Pos() token.Token {
	if m.Def == nil {
		return token.Token{}
	}
	return m.Def.Token
}

// IsInitializer reports whether m is __init__.
func (m *Method) IsInitializer() bool {
	return m.Name == config.InitMethodName
}

// Slot is one entry of a method table.
type Slot struct {
	Index     int
	Name      string
	Signature typesystem.TFunc
	Origin    SlotOrigin
	Owner     string
	Method    *Method // nil for inherited slots
	Pointer   uintptr // set by the method compiler or inherited at compile time
}

// MethodTable is the ordered slot list of a class plus its initializer.
type MethodTable struct {
	Slots  []*Slot
	Init   *Method
	byName map[string]int
}

func newMethodTable() *MethodTable {
	return &MethodTable{byName: make(map[string]int)}
}

// Lookup returns the slot for a method name.
func (mt *MethodTable) Lookup(name string) (*Slot, bool) {
	i, ok := mt.byName[name]
	if !ok {
		return nil, false
	}
	return mt.Slots[i], true
}

func (mt *MethodTable) append(s *Slot) {
	s.Index = len(mt.Slots)
	mt.byName[s.Name] = s.Index
	mt.Slots = append(mt.Slots, s)
}

// MethodMaker collects method signatures and assigns vtable slots.
type MethodMaker interface {
	// CollectMethods returns the class's methods in declared order with
	// signatures taken from annotations; missing ones are type variables.
	CollectMethods(class *ast.ClassDef, classes typesystem.ClassResolver, supply *typesystem.VarSupply) ([]*Method, error)
	// AssignSlots keeps every parent slot index, replaces overridden
	// methods in place and appends new ones in declared order.
	// hierarchy answers subclass questions for covariant returns.
	AssignSlots(class string, own []*Method, parent *ExtensionType, hierarchy typesystem.Resolver) (*MethodTable, error)
}

type slotMethodMaker struct{}

// NewMethodMaker returns the default MethodMaker.
func NewMethodMaker() MethodMaker {
	return slotMethodMaker{}
}

func (slotMethodMaker) CollectMethods(class *ast.ClassDef, classes typesystem.ClassResolver, supply *typesystem.VarSupply) ([]*Method, error) {
	annotation := func(name string, tok token.Token) (typesystem.Type, error) {
		if name == "" {
			return supply.Fresh(), nil
		}
		t, err := typesystem.ParseTypeName(name, classes, class.Name)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: %w", tok.Line, tok.Column, err)
		}
		return t, nil
	}

	methods := make([]*Method, 0, len(class.Methods))
	seen := make(map[string]bool, len(class.Methods))
	for _, def := range class.Methods {
		if seen[def.Name] {
			return nil, fmt.Errorf("%d:%d: method %s defined twice", def.Token.Line, def.Token.Column, def.Name)
		}
		seen[def.Name] = true
		sig := typesystem.TFunc{Params: make([]typesystem.Type, len(def.Params))}
		for i, p := range def.Params {
			t, err := annotation(p.TypeName, p.Token)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", def.Name, err)
			}
			sig.Params[i] = t
		}
		ret, err := annotation(def.ReturnType, def.Token)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", def.Name, err)
		}
		sig.ReturnType = ret
		methods = append(methods, &Method{Name: def.Name, Def: def, Owner: class.Name, Signature: sig})
	}
	return methods, nil
}

func (slotMethodMaker) AssignSlots(class string, own []*Method, parent *ExtensionType, hierarchy typesystem.Resolver) (*MethodTable, error) {
	mt := newMethodTable()
	if parent != nil && parent.VTableType != nil {
		for _, ps := range parent.VTableType.Slots {
			mt.append(&Slot{
				Name:      ps.Name,
				Signature: ps.Signature,
				Origin:    SlotInherited,
				Owner:     ps.Owner,
			})
		}
	}

	for _, m := range own {
		if m.IsInitializer() {
			mt.Init = m
			continue
		}
		slot, overriding := mt.Lookup(m.Name)
		if !overriding {
			mt.append(&Slot{Name: m.Name, Signature: m.Signature, Origin: SlotNew, Owner: class, Method: m})
			continue
		}
		seedFromParent(m, slot.Signature)
		if err := checkOverride(class, slot, m.Signature, hierarchy); err != nil {
			return nil, err
		}
		slot.Method = m
		slot.Signature = m.Signature
		slot.Origin = SlotOverride
		slot.Owner = class
		slot.Pointer = 0
	}
	return mt, nil
}

// seedFromParent fills unannotated parameter and return types of an
// override with the overridden signature.
func seedFromParent(m *Method, parent typesystem.TFunc) {
	if len(m.Signature.Params) != len(parent.Params) {
		return
	}
	for i, p := range m.Signature.Params {
		if _, isVar := p.(typesystem.TVar); isVar {
			m.Signature.Params[i] = parent.Params[i]
		}
	}
	if _, isVar := m.Signature.ReturnType.(typesystem.TVar); isVar {
		m.Signature.ReturnType = parent.ReturnType
	}
}

// checkOverride rejects overrides that would change a slot's calling
// convention. Parameters must match exactly; a return type may narrow to a
// subclass.
func checkOverride(class string, slot *Slot, sig typesystem.TFunc, hierarchy typesystem.Resolver) error {
	conflict := func(reason string) error {
		return &diagnostics.SlotConflictError{
			Class:     class,
			Parent:    slot.Owner,
			Method:    slot.Name,
			Slot:      slot.Index,
			ParentSig: slot.Signature,
			ChildSig:  sig,
			Reason:    reason,
		}
	}
	if len(sig.Params) != len(slot.Signature.Params) {
		return conflict(fmt.Sprintf("takes %d parameter(s), parent takes %d", len(sig.Params), len(slot.Signature.Params)))
	}
	for i, p := range sig.Params {
		if !typesystem.Equal(p, slot.Signature.Params[i]) {
			return conflict(fmt.Sprintf("parameter %d is %s, parent expects %s", i+1, p, slot.Signature.Params[i]))
		}
	}
	if _, isVar := sig.ReturnType.(typesystem.TVar); isVar {
		return nil
	}
	if !returnCompatible(sig.ReturnType, slot.Signature.ReturnType, hierarchy) {
		return conflict(fmt.Sprintf("returns %s, parent returns %s", sig.ReturnType, slot.Signature.ReturnType))
	}
	return nil
}

// returnCompatible allows covariant extension-type returns.
func returnCompatible(child, parent typesystem.Type, hierarchy typesystem.Resolver) bool {
	if typesystem.Equal(child, parent) {
		return true
	}
	c, ok1 := child.(typesystem.TExt)
	p, ok2 := parent.(typesystem.TExt)
	if !ok1 || !ok2 {
		return false
	}
	return typesystem.IsSubclass(c.Name, p.Name, hierarchy)
}
