package parser_test

import (
	"strings"
	"testing"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/parser"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, errs := parser.ParseSource(src)
	if len(errs) > 0 {
		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		t.Fatalf("unexpected parse errors:\n%s\ninput:\n%s", strings.Join(msgs, "\n"), src)
	}
	return program
}

func expectParseError(t *testing.T, src string, code diagnostics.ErrorCode) {
	t.Helper()
	_, errs := parser.ParseSource(src)
	for _, e := range errs {
		if e.Code == code {
			return
		}
	}
	t.Fatalf("expected error %s, got %v\ninput:\n%s", code, errs, src)
}

func TestParseClassHierarchy(t *testing.T) {
	src := `
@jit
class Base(object):
    count: int
    ratio = double

    def __init__(self, n: int):
        self.count = n
        self.label = text(n)

    def greet(self) -> int:
        # comment lines are skipped
        return self.count + 1

class Derived(Base):
    name: text

    def greet(self) -> int:
        x = self.count * 2
        return x

    def wave(self, times):
        pass
`
	program := parseOK(t, src)
	if len(program.Classes) != 2 {
		t.Fatalf("got %d classes, want 2", len(program.Classes))
	}

	base := program.Class("Base")
	if base == nil || base.Parent != "" {
		t.Fatalf("Base = %+v, want class without parent", base)
	}
	if len(base.Attrs) != 2 || base.Attrs[0].Name != "count" || base.Attrs[1].TypeName != "double" {
		t.Errorf("Base attrs = %+v", base.Attrs)
	}
	if len(base.Methods) != 2 {
		t.Fatalf("Base methods = %d, want 2", len(base.Methods))
	}
	init := base.Method("__init__")
	if init == nil || len(init.Params) != 1 || init.Params[0].TypeName != "int" {
		t.Fatalf("__init__ = %+v", init)
	}
	if len(init.Body) != 2 {
		t.Fatalf("__init__ body has %d statements, want 2", len(init.Body))
	}
	assign, ok := init.Body[1].(*ast.AttrAssignStatement)
	if !ok || assign.Target.Name != "label" || !assign.Target.OnSelf() {
		t.Fatalf("second statement = %#v, want self.label assignment", init.Body[1])
	}
	if cast, ok := assign.Value.(*ast.CastExpression); !ok || cast.TypeName != "text" {
		t.Errorf("value = %#v, want text cast", assign.Value)
	}

	derived := program.Class("Derived")
	if derived.Parent != "Base" {
		t.Errorf("Derived.Parent = %q", derived.Parent)
	}
	wave := derived.Method("wave")
	if wave == nil || wave.ReturnType != "" || wave.Params[0].TypeName != "" {
		t.Errorf("wave = %+v, want unannotated method", wave)
	}
	if _, ok := wave.Body[0].(*ast.PassStatement); !ok {
		t.Errorf("wave body = %#v", wave.Body)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `
class A:
    def f(self, a: int, b: int) -> bool:
        return not a + b * 2 > self.g(a, (b - 1)) and True
`
	program := parseOK(t, src)
	ret := program.Classes[0].Methods[0].Body[0].(*ast.ReturnStatement)

	and, ok := ret.Value.(*ast.InfixExpression)
	if !ok || and.Operator != "and" {
		t.Fatalf("top = %#v, want and", ret.Value)
	}
	not, ok := and.Left.(*ast.PrefixExpression)
	if !ok || not.Operator != "not" {
		t.Fatalf("left of and = %#v, want not", and.Left)
	}
	cmp, ok := not.Right.(*ast.InfixExpression)
	if !ok || cmp.Operator != ">" {
		t.Fatalf("operand of not = %#v, want >", not.Right)
	}
	sum := cmp.Left.(*ast.InfixExpression)
	if sum.Operator != "+" {
		t.Errorf("left of > = %s, want +", sum.Operator)
	}
	if mul := sum.Right.(*ast.InfixExpression); mul.Operator != "*" {
		t.Errorf("right of + = %s, want *", mul.Operator)
	}
	call, ok := cmp.Right.(*ast.MethodCallExpression)
	if !ok || call.Name != "g" || len(call.Arguments) != 2 {
		t.Fatalf("right of > = %#v, want self.g(a, b - 1)", cmp.Right)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diagnostics.ErrorCode
	}{
		{"missing self", "class A:\n    def f(x):\n        pass\n", diagnostics.ErrP003},
		{"bad target", "class A:\n    def f(self):\n        1 = 2\n", diagnostics.ErrP004},
		{"duplicate method", "class A:\n    def f(self):\n        pass\n    def f(self):\n        pass\n", diagnostics.ErrP005},
		{"duplicate class", "class A:\n    pass\nclass A:\n    pass\n", diagnostics.ErrP005},
		{"free call", "class A:\n    def f(self):\n        g(1)\n", diagnostics.ErrP001},
		{"illegal char", "class A:\n    def f(self):\n        return 1 $ 2\n", diagnostics.ErrP002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectParseError(t, tt.src, tt.code)
		})
	}
}

func TestParseRecoversAfterError(t *testing.T) {
	src := "class A:\n    def f(self):\n        1 = 2\n    def g(self) -> int:\n        return 1\n"
	program, errs := parser.ParseSource(src)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	if program.Class("A").Method("g") == nil {
		t.Errorf("method g should still be parsed after the error in f")
	}
}
