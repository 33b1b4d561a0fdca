package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/funvibe/jitclass/internal/store"
	"github.com/funvibe/jitclass/internal/vm"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const shapes = `
class Shape:
    sides: int

    def describe(self) -> int:
        return self.sides
`

const squares = `
class Square(Shape):
    side: double

    def __init__(self, side: double):
        self.sides = 4
        self.side = side

    def area(self) -> double:
        return self.side * self.side
`

func TestRunPrintsLayoutsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "shapes.jc", shapes)
	b := writeFile(t, dir, "squares.jc", squares)
	db := filepath.Join(dir, "layouts.db")

	installed := vm.Arena().Len()
	var stdout, stderr bytes.Buffer
	code := run([]string{"-store", db, "-proto", "demo", "-annotate", a, b}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"class Shape size=8", "class Square(Shape)", "Square.area:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	// prototext randomizes its spacing.
	if !regexp.MustCompile(`name:\s*"Square"`).MatchString(out) {
		t.Errorf("output lacks the Square message:\n%s", out)
	}
	if n := vm.Arena().Len(); n != installed {
		t.Errorf("%d function(s) left in the process arena, want %d", n, installed)
	}

	s, err := store.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	names, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("stored %v, want Shape and Square", names)
	}
}

func TestRunReportsErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.jc", `
class A:
    def f(self) -> int:
        return self.missing()
`)
	var stdout, stderr bytes.Buffer
	if code := run([]string{bad}, &stdout, &stderr); code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "bad.jc:4") || !strings.Contains(stderr.String(), "[C001]") {
		t.Errorf("diagnostic not positioned:\n%s", stderr.String())
	}
}

func TestRunUsesConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "jitclass.yaml", "mode: packed\n")
	src := writeFile(t, dir, "p.jc", `
class P:
    flag: bool
    n: int
`)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-sequential", src}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, stderr.String())
	}
	// Packed mode puts the wider field first.
	if !strings.Contains(stdout.String(), "+0    n") {
		t.Errorf("packed layout not applied:\n%s", stdout.String())
	}
}

func TestRunWithoutFiles(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("exit %d, want 2", code)
	}
}
