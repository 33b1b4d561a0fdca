package parser

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/lexer"
	"github.com/funvibe/jitclass/internal/pipeline"
	"github.com/funvibe/jitclass/internal/token"
)

// LexerProcessor tokenizes ctx.Source.
type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	ctx.TokenStream = lexer.New(ctx.Source).Tokenize()
	return ctx
}

// ParserProcessor builds ctx.Program from ctx.TokenStream.
type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.TokenStream == nil {
		err := diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "parser: token stream is nil")
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}

	parser := New(ctx.TokenStream)
	program := parser.ParseProgram()
	program.File = ctx.FilePath
	ctx.Program = program

	for _, err := range parser.Errors() {
		if err.File == "" {
			err.File = ctx.FilePath
		}
		ctx.Errors = append(ctx.Errors, err)
	}
	return ctx
}

// ParseSource is a convenience for tests and tools: lex and parse src.
func ParseSource(src string) (*ast.Program, []*diagnostics.DiagnosticError) {
	p := New(lexer.New(src).Tokenize())
	return p.ParseProgram(), p.Errors()
}
