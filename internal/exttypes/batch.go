package exttypes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/typesystem"
	"golang.org/x/sync/errgroup"
)

// ErrParentFailed marks a class skipped because a class it depends on did
// not compile.
var ErrParentFailed = errors.New("a class it depends on failed to compile")

// CompileAll compiles a batch of classes. Parents compile before their
// children; a class whose annotations name another class of the batch is
// compiled after it unless that would close a cycle. Classes of the same
// level compile concurrently. Every failure is reported; descendants of a
// failed class are skipped. The compiled types are returned in input order.
func CompileAll(ctx context.Context, env *symbols.Env, classes []*ast.ClassDef, opts Options) ([]*ExtensionType, error) {
	levels, err := dependencyLevels(env, classes)
	if err != nil {
		return nil, err
	}
	if err := DeclareAll(env, classes); err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		compiled = make(map[string]*ExtensionType, len(classes))
		failed   = make(map[string]bool)
		errs     []error
	)
	record := func(class string, ext *ExtensionType, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed[class] = true
			errs = append(errs, err)
			return
		}
		compiled[class] = ext
	}

	for depth, level := range levels {
		if err := ctx.Err(); err != nil {
			for _, remaining := range levels[depth:] {
				for _, class := range remaining {
					env.Undeclare(class.Name)
				}
			}
			errs = append(errs, err)
			break
		}

		var ready []*ast.ClassDef
		for _, class := range level {
			if dep := failedDependency(class, failed); dep != "" {
				env.Undeclare(class.Name)
				failed[class.Name] = true
				errs = append(errs, &diagnostics.CompileError{
					Class: class.Name,
					Phase: config.PhaseInfer,
					Err:   fmt.Errorf("%s: %w", dep, ErrParentFailed),
				})
				continue
			}
			ready = append(ready, class)
		}

		g, _ := errgroup.WithContext(ctx)
		for _, class := range ready {
			class := class
			g.Go(func() error {
				ext, err := CreateExtension(env, class, opts)
				record(class.Name, ext, err)
				return nil
			})
		}
		_ = g.Wait()
		log.Debugf("compiled level %d: %d class(es)", depth, len(level))
	}

	out := make([]*ExtensionType, 0, len(compiled))
	for _, class := range classes {
		if ext, ok := compiled[class.Name]; ok {
			out = append(out, ext)
		}
	}
	return out, errors.Join(errs...)
}

// failedDependency returns the name of a failed class that class inherits
// from or names in an annotation, or "".
func failedDependency(class *ast.ClassDef, failed map[string]bool) string {
	if failed[class.Parent] {
		return class.Parent
	}
	for _, name := range annotationRefs(class) {
		if failed[name] {
			return name
		}
	}
	return ""
}

// annotationRefs lists the non-primitive type names class mentions, in
// source order.
func annotationRefs(class *ast.ClassDef) []string {
	var out []string
	seen := map[string]bool{class.Name: true}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		if _, ok := typesystem.LookupPrimitive(name); ok {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, a := range class.Attrs {
		add(a.TypeName)
	}
	for _, m := range class.Methods {
		for _, p := range m.Params {
			add(p.TypeName)
		}
		add(m.ReturnType)
	}
	return out
}

// dependencyLevels groups classes so that each one comes after its parent
// and, where no cycle results, after the classes its annotations name.
// Unknown parents and inheritance cycles are errors.
// DeclareAll declares every class of a batch as pending. When one
// declaration fails, the classes declared before it are undeclared again.
func DeclareAll(env *symbols.Env, classes []*ast.ClassDef) error {
	for i, class := range classes {
		if err := env.DeclareClass(class); err != nil {
			for _, prev := range classes[:i] {
				env.Undeclare(prev.Name)
			}
			return &diagnostics.CompileError{Class: class.Name, Phase: config.PhaseInfer, Err: err}
		}
	}
	return nil
}

func dependencyLevels(env *symbols.Env, classes []*ast.ClassDef) ([][]*ast.ClassDef, error) {
	byName := make(map[string]*ast.ClassDef, len(classes))
	for _, c := range classes {
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("class %s is defined twice", c.Name)
		}
		byName[c.Name] = c
	}
	if err := checkInheritance(env, classes, byName); err != nil {
		return nil, err
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(classes))
	depth := make(map[string]int, len(classes))

	// reachesVisiting reports whether c or one of its ancestors in the batch
	// is on the current path.
	reachesVisiting := func(c *ast.ClassDef) bool {
		for cur := c; cur != nil; cur = byName[cur.Parent] {
			if state[cur.Name] == visiting {
				return true
			}
		}
		return false
	}

	var visit func(c *ast.ClassDef)
	visit = func(c *ast.ClassDef) {
		if state[c.Name] != unvisited {
			return
		}
		state[c.Name] = visiting

		d := 0
		if parent, inBatch := byName[c.Parent]; inBatch {
			visit(parent)
			d = depth[parent.Name] + 1
		}
		for _, name := range annotationRefs(c) {
			ref, inBatch := byName[name]
			if !inBatch || reachesVisiting(ref) {
				continue
			}
			visit(ref)
			if depth[name]+1 > d {
				d = depth[name] + 1
			}
		}

		depth[c.Name] = d
		state[c.Name] = done
	}

	maxDepth := 0
	for _, c := range classes {
		visit(c)
		if depth[c.Name] > maxDepth {
			maxDepth = depth[c.Name]
		}
	}

	levels := make([][]*ast.ClassDef, maxDepth+1)
	for _, c := range classes {
		levels[depth[c.Name]] = append(levels[depth[c.Name]], c)
	}
	return levels, nil
}

// checkInheritance rejects parents that are neither in the batch nor
// compiled, and inheritance cycles.
func checkInheritance(env *symbols.Env, classes []*ast.ClassDef, byName map[string]*ast.ClassDef) error {
	for _, c := range classes {
		seen := map[string]bool{}
		chain := []string{}
		for cur := c; cur != nil; cur = byName[cur.Parent] {
			if seen[cur.Name] {
				return fmt.Errorf("inheritance cycle: %s", strings.Join(append(chain, cur.Name), " -> "))
			}
			seen[cur.Name] = true
			chain = append(chain, cur.Name)
			if cur.Parent == "" {
				break
			}
			if _, inBatch := byName[cur.Parent]; inBatch {
				continue
			}
			if _, ok := env.LookupExtension(cur.Parent); !ok {
				return fmt.Errorf("class %s: unknown parent class %s", cur.Name, cur.Parent)
			}
		}
	}
	return nil
}
