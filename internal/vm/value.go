package vm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/funvibe/jitclass/internal/typesystem"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNil ValueType = iota
	ValInt
	ValFloat
	ValBool
	ValText
	ValRef // Reference to an extension instance
)

// Value is a stack-allocated tagged union.
// Primitives live in Data; text and references live in Obj.
type Value struct {
	Type ValueType
	Data uint64
	Obj  interface{}
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func TextVal(s string) Value {
	return Value{Type: ValText, Obj: s}
}

func RefVal(r Receiver) Value {
	if r == nil {
		return NilVal()
	}
	return Value{Type: ValRef, Obj: r}
}

// Accessors

func (v Value) AsInt() int64 {
	if v.Type == ValFloat {
		return int64(v.AsFloat())
	}
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	switch v.Type {
	case ValInt, ValBool:
		return float64(int64(v.Data))
	case ValFloat:
		return math.Float64frombits(v.Data)
	}
	return 0
}

func (v Value) AsBool() bool {
	return v.Data != 0
}

func (v Value) AsText() string {
	s, _ := v.Obj.(string)
	return s
}

func (v Value) AsRef() Receiver {
	r, _ := v.Obj.(Receiver)
	return r
}

func (v Value) IsNil() bool {
	return v.Type == ValNil
}

func (v Value) String() string {
	switch v.Type {
	case ValNil:
		return "None"
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case ValBool:
		if v.AsBool() {
			return "True"
		}
		return "False"
	case ValText:
		return v.AsText()
	case ValRef:
		return fmt.Sprintf("<%v>", v.Obj)
	}
	return "?"
}

// Kind is the native representation of a field, parameter or return value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindInt
	KindInt32
	KindDouble
	KindBool
	KindText
	KindRef
)

var kindNames = [...]string{"void", "int", "int32", "double", "bool", "text", "ref"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindOf maps a concrete type to its native kind.
func KindOf(t typesystem.Type) (Kind, error) {
	switch typ := t.(type) {
	case typesystem.TExt:
		return KindRef, nil
	case typesystem.TCon:
		switch typ.Name {
		case typesystem.Int.Name:
			return KindInt, nil
		case typesystem.Int32.Name:
			return KindInt32, nil
		case typesystem.Double.Name:
			return KindDouble, nil
		case typesystem.Bool.Name:
			return KindBool, nil
		case typesystem.Text.Name:
			return KindText, nil
		case typesystem.Void.Name:
			return KindVoid, nil
		}
	}
	return KindVoid, fmt.Errorf("type %v has no native representation", t)
}

// Coerce converts v to the representation of kind. Integers widen to
// double, int32 wraps, and any scalar converts to text.
func Coerce(v Value, kind Kind) (Value, error) {
	switch kind {
	case KindVoid:
		return NilVal(), nil
	case KindInt:
		switch v.Type {
		case ValInt, ValFloat, ValBool:
			return IntVal(v.AsInt()), nil
		}
	case KindInt32:
		switch v.Type {
		case ValInt, ValFloat, ValBool:
			return IntVal(int64(int32(v.AsInt()))), nil
		}
	case KindDouble:
		switch v.Type {
		case ValInt, ValFloat, ValBool:
			return FloatVal(v.AsFloat()), nil
		}
	case KindBool:
		switch v.Type {
		case ValBool:
			return v, nil
		case ValInt:
			return BoolVal(v.AsInt() != 0), nil
		case ValFloat:
			return BoolVal(v.AsFloat() != 0), nil
		}
	case KindText:
		if v.Type == ValRef {
			break
		}
		return TextVal(v.String()), nil
	case KindRef:
		if v.Type == ValRef || v.Type == ValNil {
			return v, nil
		}
	}
	return NilVal(), fmt.Errorf("cannot convert %s to %s", v, kind)
}
