package analyzer_test

import (
	"errors"
	"testing"

	"github.com/funvibe/jitclass/internal/analyzer"
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/typesystem"
)

type methodInfo struct {
	sig     typesystem.TFunc
	settled bool
}

type fakeClass struct {
	attrs   map[string]typesystem.Type
	methods map[string]methodInfo
}

func (f *fakeClass) Attribute(name string) (typesystem.Type, bool) {
	t, ok := f.attrs[name]
	return t, ok
}

func (f *fakeClass) Method(name string) (typesystem.TFunc, bool, bool) {
	m, ok := f.methods[name]
	return m.sig, m.settled, ok
}

func parseMethod(t *testing.T, src, method string) *ast.MethodDef {
	t.Helper()
	program, errs := parser.ParseSource(src)
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	m := program.Classes[0].Method(method)
	if m == nil {
		t.Fatalf("method %s not found", method)
	}
	return m
}

func run(t *testing.T, src, method string, sig typesystem.TFunc, self *fakeClass) *analyzer.Result {
	t.Helper()
	return analyzer.InferMethod(&analyzer.Request{
		Class:     "Point",
		Method:    parseMethod(t, src, method),
		Signature: sig,
		Self:      self,
		Supply:    typesystem.NewVarSupply("t"),
	})
}

func expectType(t *testing.T, got, want typesystem.Type) {
	t.Helper()
	if !typesystem.Equal(got, want) {
		t.Errorf("got type %s, want %s", got, want)
	}
}

func TestInferReturnFromAttributes(t *testing.T) {
	src := `
class Point:
    def norm(self):
        return self.x * self.x + double(self.y)
`
	self := &fakeClass{attrs: map[string]typesystem.Type{"x": typesystem.Int, "y": typesystem.Int32}}
	res := run(t, src, "norm", typesystem.TFunc{ReturnType: typesystem.TVar{Name: "r"}}, self)
	if !res.Settled() {
		t.Fatalf("expected settled result, blocked=%v err=%v", res.Blocked, res.Err)
	}
	expectType(t, res.Signature.ReturnType, typesystem.Double)
}

func TestInferParamFromArithmetic(t *testing.T) {
	src := `
class Point:
    def scale(self, k):
        self.x = self.x * k
`
	self := &fakeClass{attrs: map[string]typesystem.Type{"x": typesystem.Double}}
	sig := typesystem.TFunc{Params: []typesystem.Type{typesystem.TVar{Name: "p1"}}, ReturnType: typesystem.TVar{Name: "r"}}
	res := run(t, src, "scale", sig, self)
	if !res.Settled() {
		t.Fatalf("blocked=%v err=%v", res.Blocked, res.Err)
	}
	expectType(t, res.Signature.Params[0], typesystem.Double)
	expectType(t, res.Signature.ReturnType, typesystem.Void)
	if len(res.AttrWrites) != 1 || res.AttrWrites[0].New {
		t.Errorf("AttrWrites = %+v", res.AttrWrites)
	}
}

func TestInferDiscoversAttributes(t *testing.T) {
	src := `
class Point:
    def reset(self):
        self.total = 0
        self.label = "origin"
        return self.total
`
	res := run(t, src, "reset", typesystem.TFunc{ReturnType: typesystem.TVar{Name: "r"}}, &fakeClass{})
	if !res.Settled() {
		t.Fatalf("blocked=%v err=%v", res.Blocked, res.Err)
	}
	if len(res.AttrWrites) != 2 {
		t.Fatalf("AttrWrites = %+v", res.AttrWrites)
	}
	if w := res.AttrWrites[0]; w.Name != "total" || !w.New {
		t.Errorf("first write = %+v", w)
	}
	expectType(t, res.AttrWrites[1].Type, typesystem.Text)
	expectType(t, res.Signature.ReturnType, typesystem.Int)
}

func TestInferBlocks(t *testing.T) {
	src := `
class Point:
    def area(self):
        return self.width * self.height()
`
	self := &fakeClass{methods: map[string]methodInfo{
		"height": {sig: typesystem.TFunc{ReturnType: typesystem.TVar{Name: "h"}}},
	}}
	res := run(t, src, "area", typesystem.TFunc{ReturnType: typesystem.TVar{Name: "r"}}, self)
	if res.Settled() {
		t.Fatal("expected the run to be blocked")
	}
	want := []string{"attribute width", "method height"}
	if len(res.Blocked) != len(want) {
		t.Fatalf("Blocked = %v, want %v", res.Blocked, want)
	}
	for i := range want {
		if res.Blocked[i] != want[i] {
			t.Errorf("Blocked[%d] = %q, want %q", i, res.Blocked[i], want[i])
		}
	}
}

func TestInferRecursionUsesOwnSignature(t *testing.T) {
	src := `
class Point:
    def fact(self, n: int) -> int:
        return n * self.fact(n - 1)
`
	sig := typesystem.TFunc{Params: []typesystem.Type{typesystem.Int}, ReturnType: typesystem.Int}
	res := run(t, src, "fact", sig, &fakeClass{})
	if !res.Settled() {
		t.Fatalf("blocked=%v err=%v", res.Blocked, res.Err)
	}
}

func TestInferErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"undefined name", "return missing"},
		{"text arithmetic", `return "a" * 2`},
		{"bad condition", "return 1 and True"},
		{"arity", "return self.twice(1, 2)"},
		{"unknown method", "return self.nothing()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class Point:\n    def m(self):\n        " + tt.body + "\n"
			self := &fakeClass{methods: map[string]methodInfo{
				"twice": {sig: typesystem.TFunc{Params: []typesystem.Type{typesystem.Int}, ReturnType: typesystem.Int}, settled: true},
			}}
			res := run(t, src, "m", typesystem.TFunc{ReturnType: typesystem.TVar{Name: "r"}}, self)
			var te *analyzer.TypeError
			if !errors.As(res.Err, &te) {
				t.Fatalf("expected TypeError, got %v", res.Err)
			}
		})
	}
}

func TestInferAttributeMismatch(t *testing.T) {
	src := `
class Point:
    def rename(self):
        self.count = "many"
`
	self := &fakeClass{attrs: map[string]typesystem.Type{"count": typesystem.Int}}
	res := run(t, src, "rename", typesystem.TFunc{ReturnType: typesystem.TVar{Name: "r"}}, self)
	var ae *analyzer.AttributeTypeError
	if !errors.As(res.Err, &ae) {
		t.Fatalf("expected AttributeTypeError, got %v", res.Err)
	}
	if ae.Name != "count" {
		t.Errorf("attribute = %q", ae.Name)
	}
}

func TestInferMissingReturn(t *testing.T) {
	src := `
class Point:
    def f(self) -> int:
        pass
`
	res := run(t, src, "f", typesystem.TFunc{ReturnType: typesystem.Int}, &fakeClass{})
	var te *analyzer.TypeError
	if !errors.As(res.Err, &te) {
		t.Fatalf("expected TypeError, got %v", res.Err)
	}
	if te.Token.Line != 3 {
		t.Errorf("error at line %d, want the def on line 3", te.Token.Line)
	}

	res = run(t, src, "f", typesystem.TFunc{ReturnType: typesystem.Void}, &fakeClass{})
	if !res.Settled() {
		t.Errorf("void method without return: blocked=%v err=%v", res.Blocked, res.Err)
	}
}

func TestInferRecordsUnknownReads(t *testing.T) {
	src := `
class Point:
    def f(self) -> int:
        self.n = self.y
        return self.xx
`
	self := &fakeClass{attrs: map[string]typesystem.Type{"y": typesystem.Int}}
	res := run(t, src, "f", typesystem.TFunc{ReturnType: typesystem.Int}, self)
	if len(res.Unknown) != 1 || res.Unknown[0].Name != "xx" || res.Unknown[0].Token.Line != 5 {
		t.Fatalf("Unknown = %+v, want one read of xx on line 5", res.Unknown)
	}
	if len(res.Blocked) != 1 || res.Blocked[0] != "attribute xx" {
		t.Errorf("Blocked = %v", res.Blocked)
	}
}
