package vm_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/typesystem"
	"github.com/funvibe/jitclass/internal/vm"
)

// counter is a hand-laid-out record: count int @0, scale double @8.
type counter struct {
	record []byte
	vtable []uintptr
}

func (c *counter) LoadField(offset int, kind vm.Kind) (vm.Value, error) {
	bits := binary.LittleEndian.Uint64(c.record[offset:])
	switch kind {
	case vm.KindInt:
		return vm.IntVal(int64(bits)), nil
	case vm.KindDouble:
		return vm.FloatVal(math.Float64frombits(bits)), nil
	}
	return vm.NilVal(), fmt.Errorf("unexpected kind %s", kind)
}

func (c *counter) StoreField(offset int, kind vm.Kind, v vm.Value) error {
	v, err := vm.Coerce(v, kind)
	if err != nil {
		return err
	}
	bits := v.Data
	binary.LittleEndian.PutUint64(c.record[offset:], bits)
	return nil
}

func (c *counter) MethodPointer(slot int) (uintptr, error) {
	if slot >= len(c.vtable) {
		return 0, fmt.Errorf("slot %d out of range", slot)
	}
	return c.vtable[slot], nil
}

type layout struct{}

func (layout) Field(class, name string) (int, vm.Kind, bool) {
	switch name {
	case "count":
		return 0, vm.KindInt, true
	case "scale":
		return 8, vm.KindDouble, true
	}
	return 0, 0, false
}

func (layout) Slot(class, name string) (int, bool) {
	switch name {
	case "bump":
		return 0, true
	case "scaled":
		return 1, true
	}
	return 0, false
}

const counterSrc = `
class Counter:
    count: int
    scale: double

    def bump(self, by: int) -> int:
        self.count = self.count + by
        return self.count

    def scaled(self) -> double:
        total = self.bump(1) * self.scale
        return total
`

func compileMethod(t *testing.T, arena *vm.CodeArena, class *ast.ClassDef, name string, sig typesystem.TFunc) uintptr {
	t.Helper()
	fn, err := vm.NewCompiler().Compile(&vm.CompileRequest{
		Class:     class.Name,
		Method:    class.Method(name),
		Signature: sig,
		Layout:    layout{},
	})
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return arena.Install(fn)
}

func TestCompileAndRun(t *testing.T) {
	program, errs := parser.ParseSource(counterSrc)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	class := program.Classes[0]
	arena := vm.NewCodeArena()

	bump := compileMethod(t, arena, class, "bump", typesystem.TFunc{
		Params: []typesystem.Type{typesystem.Int}, ReturnType: typesystem.Int,
	})
	scaled := compileMethod(t, arena, class, "scaled", typesystem.TFunc{ReturnType: typesystem.Double})

	obj := &counter{record: make([]byte, 16), vtable: []uintptr{bump, scaled}}
	if err := obj.StoreField(8, vm.KindDouble, vm.FloatVal(1.5)); err != nil {
		t.Fatal(err)
	}

	machine := vm.New(arena)
	got, err := machine.Invoke(bump, obj, []vm.Value{vm.IntVal(3)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != vm.ValInt || got.AsInt() != 3 {
		t.Errorf("bump(3) = %s, want 3", got)
	}

	got, err = machine.Invoke(scaled, obj, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != vm.ValFloat || got.AsFloat() != 6 {
		t.Errorf("scaled() = %s, want 6", got)
	}
}

func TestRuntimeErrors(t *testing.T) {
	src := `
class Counter:
    def div(self, n: int) -> int:
        return 10 / n

    def loop(self) -> int:
        return self.loop()
`
	program, errs := parser.ParseSource(src)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	class := program.Classes[0]
	arena := vm.NewCodeArena()
	div := compileMethod(t, arena, class, "div", typesystem.TFunc{
		Params: []typesystem.Type{typesystem.Int}, ReturnType: typesystem.Int,
	})

	machine := vm.New(arena)
	_, err := machine.Invoke(div, &counter{record: make([]byte, 16)}, []vm.Value{vm.IntVal(0)})
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("expected division by zero, got %v", err)
	}

	if _, err := machine.Invoke(0xdead, &counter{}, nil); err == nil {
		t.Errorf("expected an error for an unknown entry point")
	}
}

func TestDisassemble(t *testing.T) {
	program, _ := parser.ParseSource(counterSrc)
	fn, err := vm.NewCompiler().Compile(&vm.CompileRequest{
		Class:     "Counter",
		Method:    program.Classes[0].Method("bump"),
		Signature: typesystem.TFunc{Params: []typesystem.Type{typesystem.Int}, ReturnType: typesystem.Int},
		Layout:    layout{},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := vm.Disassemble(fn.Chunk, fn.Name)
	for _, want := range []string{"== Counter.bump ==", "GET_FIELD 0 1 ; int", "SET_FIELD 0 1 ; int", "RETURN"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   vm.Value
		kind vm.Kind
		want string
		ok   bool
	}{
		{vm.IntVal(2), vm.KindDouble, "2", true},
		{vm.FloatVal(2.9), vm.KindInt, "2", true},
		{vm.IntVal(1 << 40), vm.KindInt32, "0", true},
		{vm.IntVal(0), vm.KindBool, "False", true},
		{vm.FloatVal(1.5), vm.KindText, "1.5", true},
		{vm.TextVal("x"), vm.KindInt, "", false},
	}
	for _, tt := range tests {
		got, err := vm.Coerce(tt.in, tt.kind)
		if (err == nil) != tt.ok {
			t.Errorf("Coerce(%s, %s) error = %v", tt.in, tt.kind, err)
			continue
		}
		if tt.ok && got.String() != tt.want {
			t.Errorf("Coerce(%s, %s) = %s, want %s", tt.in, tt.kind, got, tt.want)
		}
	}
}
