package backend

import (
	"context"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/symbols"
)

// Backend turns the classes of a parsed program into extension types
// registered in env.
type Backend interface {
	Compile(ctx context.Context, env *symbols.Env, classes []*ast.ClassDef) ([]*exttypes.ExtensionType, error)
	Name() string
}

// ConcurrentBackend compiles independent classes in parallel.
type ConcurrentBackend struct {
	Options exttypes.Options
}

// NewConcurrent creates a backend compiling with opts.
func NewConcurrent(opts exttypes.Options) *ConcurrentBackend {
	return &ConcurrentBackend{Options: opts}
}

func (b *ConcurrentBackend) Name() string { return "concurrent" }

func (b *ConcurrentBackend) Compile(ctx context.Context, env *symbols.Env, classes []*ast.ClassDef) ([]*exttypes.ExtensionType, error) {
	return exttypes.CompileAll(ctx, env, classes, b.Options)
}
