package backend

import (
	"context"
	"errors"

	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/pipeline"
	"github.com/funvibe/jitclass/internal/token"
)

// CompileProcessor implements pipeline.Processor to run a Backend over the
// classes of ctx.Program.
type CompileProcessor struct {
	Backend Backend
	Context context.Context
}

// NewCompileProcessor creates a new pipeline stage for the given backend.
func NewCompileProcessor(b Backend) *CompileProcessor {
	return &CompileProcessor{Backend: b, Context: context.Background()}
}

func (p *CompileProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous stages failed, don't compile
	if ctx.Program == nil || ctx.Failed() {
		return ctx
	}
	run := p.Context
	if run == nil {
		run = context.Background()
	}

	exts, err := p.Backend.Compile(run, ctx.Env, ctx.Program.Classes)
	ctx.Extensions = append(ctx.Extensions, exts...)
	if err != nil {
		for _, e := range flatten(err) {
			ctx.Errors = append(ctx.Errors, p.diagnostic(ctx, e))
		}
	}
	return ctx
}

// diagnostic positions err at the most precise location it carries: the
// failing statement when known, otherwise the class header.
func (p *CompileProcessor) diagnostic(ctx *pipeline.PipelineContext, err error) *diagnostics.DiagnosticError {
	code := diagnostics.ErrC001
	var tok token.Token

	var ce *diagnostics.CompileError
	if errors.As(err, &ce) {
		if class := ctx.Program.Class(ce.Class); class != nil {
			tok = class.Token
		}
	} else if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		code = diagnostics.ErrC002
	}

	var ie *diagnostics.InferenceError
	var me *diagnostics.MethodCompilationError
	switch {
	case errors.As(err, &ie) && ie.Line > 0:
		tok.Line, tok.Column = ie.Line, ie.Column
	case errors.As(err, &me) && me.Line > 0:
		tok.Line, tok.Column = me.Line, me.Column
	}

	d := diagnostics.Wrap(code, tok, err)
	d.File = ctx.FilePath
	return d
}

// flatten splits an errors.Join result into its parts.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
