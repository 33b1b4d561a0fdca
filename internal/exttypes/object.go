package exttypes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/funvibe/jitclass/internal/vm"
)

// Instance is what callers outside compiled code may do with an object.
// Attribute names are resolved once, through the type's accessors.
type Instance interface {
	Type() *ExtensionType
	GetAttribute(name string) (vm.Value, error)
	SetAttribute(name string, v vm.Value) error
	Invoke(method string, args ...vm.Value) (vm.Value, error)
}

// Object is an instance of an extension type: a native record laid out by
// the type plus a side table for text and reference fields.
type Object struct {
	typ    *ExtensionType
	record []byte
	refs   map[int]vm.Value
}

var (
	_ Instance    = (*Object)(nil)
	_ vm.Receiver = (*Object)(nil)
)

// New allocates an instance of ext and runs its initializer with args.
func New(ext *ExtensionType, args ...vm.Value) (*Object, error) {
	if !ext.Finalized() {
		return nil, fmt.Errorf("extension type %s is not finalized", ext.Name)
	}
	o := &Object{typ: ext, record: make([]byte, ext.Size), refs: make(map[int]vm.Value)}
	if ext.Initializer == nil {
		if len(args) > 0 {
			return nil, fmt.Errorf("%s takes no constructor arguments, got %d", ext.Name, len(args))
		}
		return o, nil
	}
	if _, err := vm.New(ext.arena).Invoke(ext.Initializer.Pointer, o, args); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Object) Type() *ExtensionType { return o.typ }

func (o *Object) GetAttribute(name string) (vm.Value, error) {
	acc, ok := o.typ.Accessors[name]
	if !ok {
		return vm.NilVal(), fmt.Errorf("%s has no attribute %s", o.typ.Name, name)
	}
	return acc.Get(o)
}

func (o *Object) SetAttribute(name string, v vm.Value) error {
	acc, ok := o.typ.Accessors[name]
	if !ok {
		return fmt.Errorf("%s has no attribute %s", o.typ.Name, name)
	}
	return acc.Set(o, v)
}

// Invoke calls a method through the vtable.
func (o *Object) Invoke(method string, args ...vm.Value) (vm.Value, error) {
	slot, ok := o.typ.Slot(method)
	if !ok {
		return vm.NilVal(), fmt.Errorf("%s has no method %s", o.typ.Name, method)
	}
	ptr, err := o.MethodPointer(slot.Index)
	if err != nil {
		return vm.NilVal(), err
	}
	return vm.New(o.typ.arena).Invoke(ptr, o, args)
}

func (o *Object) span(offset int, kind vm.Kind) error {
	if offset < 0 || offset+kindSize(kind) > len(o.record) {
		return fmt.Errorf("offset %d out of range for %s (%d bytes)", offset, o.typ.Name, len(o.record))
	}
	return nil
}

func kindSize(k vm.Kind) int {
	switch k {
	case vm.KindBool:
		return 1
	case vm.KindInt32:
		return 4
	case vm.KindVoid:
		return 0
	}
	return 8
}

// LoadField implements vm.Receiver.
func (o *Object) LoadField(offset int, kind vm.Kind) (vm.Value, error) {
	if err := o.span(offset, kind); err != nil {
		return vm.NilVal(), err
	}
	b := o.record[offset:]
	switch kind {
	case vm.KindInt:
		return vm.IntVal(int64(binary.LittleEndian.Uint64(b))), nil
	case vm.KindInt32:
		return vm.IntVal(int64(int32(binary.LittleEndian.Uint32(b)))), nil
	case vm.KindDouble:
		return vm.FloatVal(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case vm.KindBool:
		return vm.BoolVal(b[0] != 0), nil
	case vm.KindText:
		if v, ok := o.refs[offset]; ok {
			return v, nil
		}
		return vm.TextVal(""), nil
	case vm.KindRef:
		if v, ok := o.refs[offset]; ok {
			return v, nil
		}
		return vm.NilVal(), nil
	}
	return vm.NilVal(), fmt.Errorf("cannot load a %s field", kind)
}

// StoreField implements vm.Receiver.
func (o *Object) StoreField(offset int, kind vm.Kind, v vm.Value) error {
	if err := o.span(offset, kind); err != nil {
		return err
	}
	v, err := vm.Coerce(v, kind)
	if err != nil {
		return err
	}
	b := o.record[offset:]
	switch kind {
	case vm.KindInt:
		binary.LittleEndian.PutUint64(b, uint64(v.AsInt()))
	case vm.KindInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v.AsInt())))
	case vm.KindDouble:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.AsFloat()))
	case vm.KindBool:
		b[0] = 0
		if v.AsBool() {
			b[0] = 1
		}
	case vm.KindText, vm.KindRef:
		o.refs[offset] = v
	default:
		return fmt.Errorf("cannot store a %s field", kind)
	}
	return nil
}

// MethodPointer implements vm.Receiver.
func (o *Object) MethodPointer(slot int) (uintptr, error) {
	vt := o.typ.VTable
	if vt == nil || slot < 0 || slot >= len(vt.Pointers) {
		return 0, fmt.Errorf("%s has no vtable slot %d", o.typ.Name, slot)
	}
	return vt.Pointers[slot], nil
}

// Record returns a copy of the native attribute record.
func (o *Object) Record() []byte {
	return append([]byte(nil), o.record...)
}

// generateAccessors builds a getter/setter pair per field of ext. Each pair
// is bound to the field's offset; it accepts instances of ext or of any
// subclass, whose records share the prefix.
func generateAccessors(ext *ExtensionType) map[string]Accessor {
	out := make(map[string]Accessor, len(ext.Attributes))
	for _, a := range ext.Attributes {
		offset, kind, name := a.Offset, a.Kind(), a.Name
		check := func(o *Object) error {
			if !o.typ.IsSubtypeOf(ext) {
				return fmt.Errorf("accessor %s.%s used on an instance of %s", ext.Name, name, o.typ.Name)
			}
			return nil
		}
		out[name] = Accessor{
			Name:   name,
			Offset: offset,
			Kind:   kind,
			Get: func(o *Object) (vm.Value, error) {
				if err := check(o); err != nil {
					return vm.NilVal(), err
				}
				return o.LoadField(offset, kind)
			},
			Set: func(o *Object, v vm.Value) error {
				if err := check(o); err != nil {
					return err
				}
				return o.StoreField(offset, kind, v)
			},
		}
	}
	return out
}
