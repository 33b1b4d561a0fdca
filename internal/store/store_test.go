package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/vm"
)

const src = `
class Point:
    x: double
    y: double

    def norm1(self) -> double:
        return self.x + self.y

class Labeled(Point):
    label: text
    visible: bool

    def norm1(self) -> double:
        return 0.0
`

func compile(t *testing.T) map[string]*exttypes.ExtensionType {
	t.Helper()
	program, perrs := parser.ParseSource(src)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	opts := exttypes.DefaultOptions()
	opts.Arena = vm.NewCodeArena()
	exts, err := exttypes.CompileAll(context.Background(), symbols.NewEnv(), program.Classes, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out := make(map[string]*exttypes.ExtensionType)
	for _, ext := range exts {
		out[ext.Name] = ext
	}
	return out
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "layouts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	exts := compile(t)
	s := openStore(t)
	for _, ext := range exts {
		if err := s.Save(ext); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Load("Labeled")
	if err != nil {
		t.Fatal(err)
	}
	want := LayoutOf(exts["Labeled"])
	if got.ID != want.ID || got.Parent != "Point" || got.Size != want.Size || got.Align != want.Align {
		t.Errorf("header = %+v, want %+v", got, want)
	}
	if len(got.Fields) != len(want.Fields) {
		t.Fatalf("got %d fields, want %d", len(got.Fields), len(want.Fields))
	}
	for i, f := range want.Fields {
		if got.Fields[i] != f {
			t.Errorf("field %d = %+v, want %+v", i, got.Fields[i], f)
		}
	}
	if len(got.Slots) != 1 || got.Slots[0].Name != "norm1" || got.Slots[0].Owner != "Labeled" {
		t.Errorf("slots = %+v", got.Slots)
	}
	if got.Fields[0].Origin != "inherited" || got.Fields[0].Offset != 0 {
		t.Errorf("first field = %+v, want inherited x at 0", got.Fields[0])
	}

	names, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Labeled" || names[1] != "Point" {
		t.Errorf("List() = %v", names)
	}
}

func TestSaveReplaces(t *testing.T) {
	exts := compile(t)
	s := openStore(t)
	if err := s.Save(exts["Point"]); err != nil {
		t.Fatal(err)
	}
	l := LayoutOf(exts["Point"])
	l.Fields = l.Fields[:1]
	l.Slots = nil
	if err := s.SaveLayout(l); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load("Point")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Fields) != 1 || len(got.Slots) != 0 {
		t.Errorf("stale rows survived: %d fields, %d slots", len(got.Fields), len(got.Slots))
	}
}

func TestLoadMissingAndDelete(t *testing.T) {
	s := openStore(t)
	if _, err := s.Load("Nope"); !errors.Is(err, ErrLayoutNotFound) {
		t.Errorf("Load(Nope) = %v, want ErrLayoutNotFound", err)
	}

	if err := s.Save(compile(t)["Point"]); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("Point"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load("Point"); !errors.Is(err, ErrLayoutNotFound) {
		t.Errorf("deleted layout still loads: %v", err)
	}
	if err := s.Delete("Point"); err != nil {
		t.Errorf("deleting twice: %v", err)
	}
}
