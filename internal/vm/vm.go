package vm

import (
	"fmt"
	"strings"
)

// DefaultMaxDepth bounds nested method calls.
const DefaultMaxDepth = 1024

// RuntimeError is an error raised while executing compiled code.
type RuntimeError struct {
	Function string
	Line     int
	Msg      string
	Trace    []string
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%d: %s", e.Function, e.Line, e.Msg)
	for _, frame := range e.Trace {
		sb.WriteString("\n  called from ")
		sb.WriteString(frame)
	}
	return sb.String()
}

// VM executes functions installed in a code arena.
type VM struct {
	arena    *CodeArena
	maxDepth int
	depth    int
}

// New creates a machine over arena; a nil arena means the process arena.
func New(arena *CodeArena) *VM {
	if arena == nil {
		arena = Arena()
	}
	return &VM{arena: arena, maxDepth: DefaultMaxDepth}
}

// Invoke calls the function at entry with recv as the receiver.
func (vm *VM) Invoke(entry uintptr, recv Receiver, args []Value) (Value, error) {
	fn, ok := vm.arena.Lookup(entry)
	if !ok {
		return NilVal(), fmt.Errorf("no code installed at %#x", entry)
	}
	return vm.Run(fn, recv, args)
}

// Run executes fn with recv as local 0 and args as the following locals.
func (vm *VM) Run(fn *Function, recv Receiver, args []Value) (Value, error) {
	if len(args) != fn.Arity {
		return NilVal(), fmt.Errorf("%s takes %d argument(s), got %d", fn.Name, fn.Arity, len(args))
	}
	if vm.depth >= vm.maxDepth {
		return NilVal(), &RuntimeError{Function: fn.Name, Msg: "maximum call depth exceeded"}
	}
	vm.depth++
	defer func() { vm.depth-- }()

	locals := make([]Value, fn.NumLocals)
	locals[0] = RefVal(recv)
	for i, a := range args {
		v, err := Coerce(a, fn.ParamKinds[i])
		if err != nil {
			return NilVal(), fmt.Errorf("%s: argument %d: %w", fn.Name, i+1, err)
		}
		locals[i+1] = v
	}
	return vm.execute(fn, locals)
}

func (vm *VM) execute(fn *Function, locals []Value) (Value, error) {
	chunk := fn.Chunk
	stack := make([]Value, 0, 16)
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	ip := 0
	for ip < len(chunk.Code) {
		start := ip
		ins, next := chunk.Decode(ip)
		ip = next

		fail := func(format string, args ...interface{}) (Value, error) {
			return NilVal(), &RuntimeError{Function: fn.Name, Line: chunk.Lines[start], Msg: fmt.Sprintf(format, args...)}
		}

		switch ins.Op {
		case OP_CONST:
			stack = append(stack, chunk.Constants[ins.Operands[0]])
		case OP_NIL:
			stack = append(stack, NilVal())
		case OP_POP:
			pop()

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV,
			OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE,
			OP_AND, OP_OR:
			b := pop()
			a := pop()
			v, err := binary(ins.Op, a, b)
			if err != nil {
				return fail("%v", err)
			}
			stack = append(stack, v)

		case OP_NEG:
			a := pop()
			switch a.Type {
			case ValInt:
				stack = append(stack, IntVal(-a.AsInt()))
			case ValFloat:
				stack = append(stack, FloatVal(-a.AsFloat()))
			default:
				return fail("cannot negate %s", a)
			}
		case OP_NOT:
			stack = append(stack, BoolVal(!truthy(pop())))

		case OP_GET_LOCAL:
			stack = append(stack, locals[ins.Operands[0]])
		case OP_SET_LOCAL:
			locals[ins.Operands[0]] = pop()

		case OP_GET_FIELD:
			recv := pop()
			if recv.Type != ValRef {
				return fail("attribute access on %s", recv)
			}
			v, err := recv.AsRef().LoadField(ins.Operands[0], Kind(ins.Operands[1]))
			if err != nil {
				return fail("%v", err)
			}
			stack = append(stack, v)
		case OP_SET_FIELD:
			v := pop()
			recv := pop()
			if recv.Type != ValRef {
				return fail("attribute assignment on %s", recv)
			}
			if err := recv.AsRef().StoreField(ins.Operands[0], Kind(ins.Operands[1]), v); err != nil {
				return fail("%v", err)
			}

		case OP_CAST:
			v, err := Coerce(pop(), Kind(ins.Operands[0]))
			if err != nil {
				return fail("%v", err)
			}
			stack = append(stack, v)

		case OP_CALL_METHOD:
			argc := ins.Operands[1]
			args := make([]Value, argc)
			copy(args, stack[len(stack)-argc:])
			stack = stack[:len(stack)-argc]
			recv := pop()
			if recv.Type != ValRef {
				return fail("method call on %s", recv)
			}
			ptr, err := recv.AsRef().MethodPointer(ins.Operands[0])
			if err != nil {
				return fail("%v", err)
			}
			callee, ok := vm.arena.Lookup(ptr)
			if !ok {
				return fail("no code installed at %#x", ptr)
			}
			result, err := vm.Run(callee, recv.AsRef(), args)
			if err != nil {
				if re, ok := err.(*RuntimeError); ok {
					re.Trace = append(re.Trace, fmt.Sprintf("%s:%d", fn.Name, chunk.Lines[start]))
					return NilVal(), re
				}
				return NilVal(), err
			}
			stack = append(stack, result)

		case OP_RETURN:
			result, err := Coerce(pop(), fn.ReturnKind)
			if err != nil {
				return fail("return value: %v", err)
			}
			return result, nil

		default:
			return fail("unknown opcode %d", ins.Op)
		}
	}
	return NilVal(), nil
}

func truthy(v Value) bool {
	switch v.Type {
	case ValNil:
		return false
	case ValInt, ValBool:
		return v.Data != 0
	case ValFloat:
		return v.AsFloat() != 0
	case ValText:
		return v.AsText() != ""
	}
	return true
}

func binary(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OP_AND:
		return BoolVal(truthy(a) && truthy(b)), nil
	case OP_OR:
		return BoolVal(truthy(a) || truthy(b)), nil
	case OP_EQ:
		return BoolVal(equal(a, b)), nil
	case OP_NE:
		return BoolVal(!equal(a, b)), nil
	}

	if a.Type == ValText && b.Type == ValText {
		switch op {
		case OP_ADD:
			return TextVal(a.AsText() + b.AsText()), nil
		}
		return NilVal(), fmt.Errorf("operator %s is not defined for text", op)
	}
	if !numeric(a) || !numeric(b) {
		return NilVal(), fmt.Errorf("operator %s on %s and %s", op, a, b)
	}

	if a.Type == ValFloat || b.Type == ValFloat {
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case OP_ADD:
			return FloatVal(x + y), nil
		case OP_SUB:
			return FloatVal(x - y), nil
		case OP_MUL:
			return FloatVal(x * y), nil
		case OP_DIV:
			if y == 0 {
				return NilVal(), fmt.Errorf("division by zero")
			}
			return FloatVal(x / y), nil
		case OP_LT:
			return BoolVal(x < y), nil
		case OP_LE:
			return BoolVal(x <= y), nil
		case OP_GT:
			return BoolVal(x > y), nil
		case OP_GE:
			return BoolVal(x >= y), nil
		}
	}

	x, y := a.AsInt(), b.AsInt()
	switch op {
	case OP_ADD:
		return IntVal(x + y), nil
	case OP_SUB:
		return IntVal(x - y), nil
	case OP_MUL:
		return IntVal(x * y), nil
	case OP_DIV:
		if y == 0 {
			return NilVal(), fmt.Errorf("division by zero")
		}
		return IntVal(x / y), nil
	case OP_LT:
		return BoolVal(x < y), nil
	case OP_LE:
		return BoolVal(x <= y), nil
	case OP_GT:
		return BoolVal(x > y), nil
	case OP_GE:
		return BoolVal(x >= y), nil
	}
	return NilVal(), fmt.Errorf("unknown operator %s", op)
}

func numeric(v Value) bool {
	return v.Type == ValInt || v.Type == ValFloat || v.Type == ValBool
}

func equal(a, b Value) bool {
	if numeric(a) && numeric(b) {
		if a.Type == ValFloat || b.Type == ValFloat {
			return a.AsFloat() == b.AsFloat()
		}
		return a.AsInt() == b.AsInt()
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ValNil:
		return true
	case ValText:
		return a.AsText() == b.AsText()
	case ValRef:
		return a.Obj == b.Obj
	}
	return false
}
