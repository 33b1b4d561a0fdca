package pipeline

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/token"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx *PipelineContext) *PipelineContext

func (f ProcessorFunc) Process(ctx *PipelineContext) *PipelineContext { return f(ctx) }

// PipelineContext carries one source file through the stages.
type PipelineContext struct {
	FilePath    string
	Source      string
	TokenStream []token.Token
	Program     *ast.Program
	Env         *symbols.Env

	// Extensions holds every class finalized by this run, in compile order.
	Extensions []*exttypes.ExtensionType

	Errors []*diagnostics.DiagnosticError
}

func NewPipelineContext(filePath, source string, env *symbols.Env) *PipelineContext {
	return &PipelineContext{FilePath: filePath, Source: source, Env: env}
}

// Failed reports whether any stage recorded an error.
func (c *PipelineContext) Failed() bool {
	return len(c.Errors) > 0
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. A stage that records errors stops the run:
// later stages depend on complete output of earlier ones.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		if ctx.Failed() {
			break
		}
	}
	return ctx
}
