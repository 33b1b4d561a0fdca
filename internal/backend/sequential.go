package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/symbols"
)

// SequentialBackend compiles classes one at a time in source order. A
// parent must appear before its subclasses. Output is deterministic, which
// makes it the backend of choice for annotated dumps.
type SequentialBackend struct {
	Options exttypes.Options
}

// NewSequential creates a backend compiling with opts.
func NewSequential(opts exttypes.Options) *SequentialBackend {
	return &SequentialBackend{Options: opts}
}

func (b *SequentialBackend) Name() string { return "sequential" }

func (b *SequentialBackend) Compile(ctx context.Context, env *symbols.Env, classes []*ast.ClassDef) ([]*exttypes.ExtensionType, error) {
	// Declare up front so annotations may name later classes.
	if err := exttypes.DeclareAll(env, classes); err != nil {
		return nil, err
	}

	var (
		out    []*exttypes.ExtensionType
		errs   []error
		failed = make(map[string]bool)
	)
	for i, class := range classes {
		if err := ctx.Err(); err != nil {
			for _, rest := range classes[i:] {
				env.Undeclare(rest.Name)
			}
			errs = append(errs, err)
			break
		}
		if failed[class.Parent] {
			env.Undeclare(class.Name)
			failed[class.Name] = true
			errs = append(errs, &diagnostics.CompileError{
				Class: class.Name,
				Phase: config.PhaseInfer,
				Err:   fmt.Errorf("%s: %w", class.Parent, exttypes.ErrParentFailed),
			})
			continue
		}
		ext, err := exttypes.CreateExtension(env, class, b.Options)
		if err != nil {
			failed[class.Name] = true
			errs = append(errs, err)
			continue
		}
		out = append(out, ext)
	}
	return out, errors.Join(errs...)
}
