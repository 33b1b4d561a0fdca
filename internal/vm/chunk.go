package vm

import (
	"fmt"
	"strings"
)

// Chunk represents a sequence of bytecode instructions
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Constants pool - literals
	Constants []Value

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int

	// Columns maps bytecode offset to source column number (for errors)
	Columns []int

	// File is the source file name
	File string
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
		Lines:     make([]int, 0, 64),
		Columns:   make([]int, 0, 64),
	}
}

// WriteWithCol adds a byte to the chunk with line and column info
func (c *Chunk) WriteWithCol(b byte, line, col int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, col)
}

// AddConstant adds a constant to the pool and returns its index
func (c *Chunk) AddConstant(value Value) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// ReadOperand reads a big-endian operand of the given width at offset
func (c *Chunk) ReadOperand(offset, width int) int {
	n := 0
	for i := 0; i < width; i++ {
		n = n<<8 | int(c.Code[offset+i])
	}
	return n
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Instruction is one decoded or about-to-be-encoded instruction.
type Instruction struct {
	Op       Opcode
	Operands []int
	Line     int
	Column   int
	Comment  string // e.g. the constant a CONST loads
}

func (ins Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(ins.Op.String())
	for _, o := range ins.Operands {
		fmt.Fprintf(&sb, " %d", o)
	}
	if ins.Comment != "" {
		sb.WriteString(" ; ")
		sb.WriteString(ins.Comment)
	}
	return sb.String()
}

// Emitter receives instructions as the compiler produces them.
type Emitter interface {
	// UpdatePos tells the emitter which source line the following
	// instructions belong to.
	UpdatePos(line int)
	// Emit encodes the instruction and returns its offset.
	Emit(ins Instruction) int
}

// ChunkEmitter encodes instructions into a chunk.
type ChunkEmitter struct {
	Chunk *Chunk
}

func (e *ChunkEmitter) UpdatePos(int) {}

func (e *ChunkEmitter) Emit(ins Instruction) int {
	offset := e.Chunk.Len()
	e.Chunk.WriteWithCol(byte(ins.Op), ins.Line, ins.Column)
	widths := operandWidths[ins.Op]
	for i, w := range widths {
		v := 0
		if i < len(ins.Operands) {
			v = ins.Operands[i]
		}
		for shift := (w - 1) * 8; shift >= 0; shift -= 8 {
			e.Chunk.WriteWithCol(byte(v>>shift), ins.Line, ins.Column)
		}
	}
	return offset
}

// Decode reads the instruction at offset and returns it with the offset of
// the next one.
func (c *Chunk) Decode(offset int) (Instruction, int) {
	op := Opcode(c.Code[offset])
	ins := Instruction{Op: op, Line: c.Lines[offset], Column: c.Columns[offset]}
	next := offset + 1
	for _, w := range operandWidths[op] {
		ins.Operands = append(ins.Operands, c.ReadOperand(next, w))
		next += w
	}
	if op == OP_CONST && len(ins.Operands) == 1 && ins.Operands[0] < len(c.Constants) {
		ins.Comment = c.Constants[ins.Operands[0]].String()
	}
	if (op == OP_GET_FIELD || op == OP_SET_FIELD) && len(ins.Operands) == 2 {
		ins.Comment = Kind(ins.Operands[1]).String()
	}
	return ins, next
}
