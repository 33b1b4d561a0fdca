// Package vm implements the native code target of the extension compiler:
// a small register-free bytecode, a process-wide code arena that hands out
// entry-point addresses, and the machine that executes compiled methods
// against an instance's native record.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST Opcode = iota // Push constant from pool
	OP_NIL                 // Push nil
	OP_POP                 // Discard top of stack

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Logic
	OP_NOT // not
	OP_AND // and
	OP_OR  // or

	// Variables
	OP_GET_LOCAL // Get local variable by index; local 0 is the receiver
	OP_SET_LOCAL // Set local variable by index

	// Native records
	OP_GET_FIELD // Pop receiver, push the field at a fixed offset
	OP_SET_FIELD // Pop value and receiver, store the field at a fixed offset
	OP_CAST      // Convert top of stack to a native kind

	// Calls
	OP_CALL_METHOD // Dispatch through the receiver's vtable slot
	OP_RETURN      // Return top of stack
)

// Operand widths per opcode, in bytes. Operands are big endian.
var operandWidths = map[Opcode][]int{
	OP_CONST:       {2},
	OP_GET_LOCAL:   {1},
	OP_SET_LOCAL:   {1},
	OP_GET_FIELD:   {2, 1},
	OP_SET_FIELD:   {2, 1},
	OP_CAST:        {1},
	OP_CALL_METHOD: {2, 1},
}

var opcodeNames = map[Opcode]string{
	OP_CONST:       "CONST",
	OP_NIL:         "NIL",
	OP_POP:         "POP",
	OP_ADD:         "ADD",
	OP_SUB:         "SUB",
	OP_MUL:         "MUL",
	OP_DIV:         "DIV",
	OP_NEG:         "NEG",
	OP_EQ:          "EQ",
	OP_NE:          "NE",
	OP_LT:          "LT",
	OP_LE:          "LE",
	OP_GT:          "GT",
	OP_GE:          "GE",
	OP_NOT:         "NOT",
	OP_AND:         "AND",
	OP_OR:          "OR",
	OP_GET_LOCAL:   "GET_LOCAL",
	OP_SET_LOCAL:   "SET_LOCAL",
	OP_GET_FIELD:   "GET_FIELD",
	OP_SET_FIELD:   "SET_FIELD",
	OP_CAST:        "CAST",
	OP_CALL_METHOD: "CALL_METHOD",
	OP_RETURN:      "RETURN",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
