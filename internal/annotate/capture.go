// Package annotate captures the instructions emitted for each source
// position so that compiled methods can be shown next to their source.
package annotate

import (
	"sort"

	"github.com/funvibe/jitclass/internal/vm"
)

// Capture interposes on an emitter and records every instruction under
// the source line current at the time it was emitted.
type Capture struct {
	inner    vm.Emitter
	pos      int
	captured map[int][]vm.Instruction
}

// NewCapture wraps inner.
func NewCapture(inner vm.Emitter) *Capture {
	return &Capture{inner: inner, captured: make(map[int][]vm.Instruction)}
}

func (c *Capture) UpdatePos(line int) {
	c.pos = line
	c.inner.UpdatePos(line)
}

func (c *Capture) Emit(ins vm.Instruction) int {
	offset := c.inner.Emit(ins)
	c.captured[c.pos] = append(c.captured[c.pos], ins)
	return offset
}

// SourceIntermediate maps source lines to the instruction listing.
type SourceIntermediate struct {
	// LineNoMap maps a source line to the listing lines emitted for it.
	LineNoMap map[int][]int
	// LineMap maps a listing line (from 1) to its instruction text.
	LineMap map[int]string
}

// Annotations numbers the captured instructions, visiting source
// positions in ascending order so the listing is stable.
func (c *Capture) Annotations() *SourceIntermediate {
	si := &SourceIntermediate{
		LineNoMap: make(map[int][]int),
		LineMap:   make(map[int]string),
	}

	positions := make([]int, 0, len(c.captured))
	for pos := range c.captured {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	line := 1
	for _, pos := range positions {
		for _, ins := range c.captured[pos] {
			si.LineNoMap[pos] = append(si.LineNoMap[pos], line)
			si.LineMap[line] = ins.String()
			line++
		}
	}
	return si
}

// Lines returns the listing in order.
func (si *SourceIntermediate) Lines() []string {
	out := make([]string, len(si.LineMap))
	for n, text := range si.LineMap {
		out[n-1] = text
	}
	return out
}

// Wrapper returns a function suitable for vm.CompileRequest.WrapEmitter
// that stores the capture in *dst.
func Wrapper(dst **Capture) func(vm.Emitter) vm.Emitter {
	return func(inner vm.Emitter) vm.Emitter {
		c := NewCapture(inner)
		*dst = c
		return c
	}
}
