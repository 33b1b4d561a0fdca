package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/pipeline"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/vm"
)

func options() exttypes.Options {
	opts := exttypes.DefaultOptions()
	opts.Arena = vm.NewCodeArena()
	return opts
}

func run(t *testing.T, b Backend, src string) *pipeline.PipelineContext {
	t.Helper()
	ctx := pipeline.NewPipelineContext("test.jc", src, symbols.NewEnv())
	return pipeline.New(
		&parser.LexerProcessor{},
		&parser.ParserProcessor{},
		NewCompileProcessor(b),
	).Run(ctx)
}

const hierarchy = `
class Shape:
    sides: int

    def describe(self) -> int:
        return self.sides

class Square(Shape):
    def __init__(self):
        self.sides = 4
`

func TestBackendsCompileHierarchy(t *testing.T) {
	for _, b := range []Backend{NewConcurrent(options()), NewSequential(options())} {
		t.Run(b.Name(), func(t *testing.T) {
			ctx := run(t, b, hierarchy)
			if ctx.Failed() {
				t.Fatalf("unexpected errors: %v", ctx.Errors)
			}
			if len(ctx.Extensions) != 2 {
				t.Fatalf("got %d extensions, want 2", len(ctx.Extensions))
			}
			if ctx.Extensions[0].Name != "Shape" || ctx.Extensions[1].Name != "Square" {
				t.Errorf("extensions out of source order: %s, %s", ctx.Extensions[0].Name, ctx.Extensions[1].Name)
			}
			if _, ok := ctx.Env.LookupExtension("Square"); !ok {
				t.Errorf("Square not registered")
			}
		})
	}
}

func TestCompileErrorsArePositioned(t *testing.T) {
	src := `
class A:
    def f(self) -> int:
        return self.nope()

class B(A):
    extra: int
`
	for _, b := range []Backend{NewConcurrent(options()), NewSequential(options())} {
		t.Run(b.Name(), func(t *testing.T) {
			ctx := run(t, b, src)
			if len(ctx.Errors) != 2 {
				t.Fatalf("got %d errors, want 2: %v", len(ctx.Errors), ctx.Errors)
			}
			var inA, inB *diagnostics.DiagnosticError
			for _, e := range ctx.Errors {
				var ce *diagnostics.CompileError
				if !errors.As(e, &ce) {
					t.Fatalf("%v does not wrap a CompileError", e)
				}
				switch ce.Class {
				case "A":
					inA = e
				case "B":
					inB = e
				}
			}
			if inA == nil || inB == nil {
				t.Fatalf("missing class errors: %v", ctx.Errors)
			}
			if inA.Code != diagnostics.ErrC001 || inA.Token.Line != 4 || inA.File != "test.jc" {
				t.Errorf("error in A = %v, want C001 at test.jc:4", inA)
			}
			if !errors.Is(inB, exttypes.ErrParentFailed) || inB.Token.Line != 6 {
				t.Errorf("error in B = %v, want parent failure at line 6", inB)
			}
			if len(ctx.Extensions) != 0 {
				t.Errorf("failed classes produced extensions")
			}
		})
	}
}

func TestHierarchyErrorCode(t *testing.T) {
	ctx := run(t, NewConcurrent(options()), `
class A(Missing):
    x: int
`)
	if len(ctx.Errors) != 1 || ctx.Errors[0].Code != diagnostics.ErrC002 {
		t.Fatalf("got %v, want one C002", ctx.Errors)
	}
}

func TestCancelledContext(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewCompileProcessor(NewSequential(options()))
	p.Context = cancelled
	ctx := pipeline.NewPipelineContext("", hierarchy, symbols.NewEnv())
	ctx = pipeline.New(&parser.LexerProcessor{}, &parser.ParserProcessor{}, p).Run(ctx)

	if len(ctx.Errors) != 1 || !errors.Is(ctx.Errors[0], context.Canceled) {
		t.Fatalf("got %v, want a cancellation error", ctx.Errors)
	}
	if ctx.Errors[0].Code != diagnostics.ErrC001 {
		t.Errorf("code = %s, want C001", ctx.Errors[0].Code)
	}
	if ctx.Env.HasClass("Shape") {
		t.Errorf("cancelled class left declared")
	}
}

func TestSkipsAfterParseErrors(t *testing.T) {
	ctx := pipeline.NewPipelineContext("", "", symbols.NewEnv())
	ctx.Errors = append(ctx.Errors, diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "boom"))
	NewCompileProcessor(NewConcurrent(options())).Process(ctx)
	if len(ctx.Extensions) != 0 || len(ctx.Errors) != 1 {
		t.Errorf("compile stage ran after a failed stage")
	}
}

func TestFailedDeclarationRollsBack(t *testing.T) {
	env := symbols.NewEnv()
	compile := func(src string) *pipeline.PipelineContext {
		ctx := pipeline.NewPipelineContext("", src, env)
		return pipeline.New(
			&parser.LexerProcessor{},
			&parser.ParserProcessor{},
			NewCompileProcessor(NewSequential(options())),
		).Run(ctx)
	}
	if ctx := compile(hierarchy); ctx.Failed() {
		t.Fatalf("unexpected errors: %v", ctx.Errors)
	}

	ctx := compile(`
class Circle:
    radius: int

class Shape:
    sides: int
`)
	if !ctx.Failed() {
		t.Fatal("redefining Shape should fail")
	}
	if env.HasClass("Circle") {
		t.Errorf("Circle left declared after the batch failed")
	}
	if _, ok := env.LookupExtension("Shape"); !ok {
		t.Errorf("the registered Shape was lost")
	}
}
