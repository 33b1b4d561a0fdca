package symbols

import (
	"fmt"
	"sort"
	"sync"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// Extension is what the environment knows about a finalized extension
// type. The concrete descriptor lives in the exttypes package.
type Extension interface {
	ClassName() string
	ParentName() string
}

// Env is the compilation environment: global class names and the registry
// of finalized extension types. Every method locks, so independent classes
// may be compiled from several goroutines against one Env.
type Env struct {
	mu         sync.RWMutex
	globals    *SymbolTable
	extensions map[string]Extension
}

func NewEnv() *Env {
	return &Env{
		globals:    NewEmptySymbolTable(),
		extensions: make(map[string]Extension),
	}
}

// DeclareClass records a class that is about to be compiled, so other
// classes may name it in annotations before it is finalized.
func (e *Env) DeclareClass(class *ast.ClassDef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sym, ok := e.globals.Find(class.Name); ok && !sym.IsPending {
		return fmt.Errorf("class %s is already defined", class.Name)
	}
	e.globals.put(Symbol{
		Name:           class.Name,
		Type:           typesystem.TExt{Name: class.Name},
		Kind:           ClassSymbol,
		IsPending:      true,
		Owner:          class.Name,
		Parent:         class.Parent,
		DefinitionNode: class,
	})
	return nil
}

// Register publishes a finalized extension type. Its class symbol stops
// being pending.
func (e *Env) Register(ext Extension) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := ext.ClassName()
	if _, ok := e.extensions[name]; ok {
		return fmt.Errorf("extension type %s is already registered", name)
	}
	e.extensions[name] = ext
	e.globals.put(Symbol{
		Name:   name,
		Type:   typesystem.TExt{Name: name},
		Kind:   ClassSymbol,
		Owner:  name,
		Parent: ext.ParentName(),
	})
	return nil
}

// Undeclare drops a pending class declaration, e.g. after its compilation
// failed. Finalized classes are not affected.
func (e *Env) Undeclare(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.globals.store[name]
	if !ok || !sym.IsPending {
		return false
	}
	e.globals.remove(name)
	return true
}

// Unload removes a finalized type. Types that still inherit from it are
// left untouched; callers unload leaves first.
func (e *Env) Unload(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.extensions[name]; !ok {
		return false
	}
	delete(e.extensions, name)
	e.globals.remove(name)
	return true
}

// LookupExtension returns the finalized extension type for name.
func (e *Env) LookupExtension(name string) (Extension, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ext, ok := e.extensions[name]
	return ext, ok
}

// Extensions returns the names of all finalized types, sorted.
func (e *Env) Extensions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.extensions))
	for name := range e.extensions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupClass returns the class symbol, pending or finalized.
func (e *Env) LookupClass(name string) (Symbol, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	sym, ok := e.globals.Find(name)
	if !ok || sym.Kind != ClassSymbol {
		return Symbol{}, false
	}
	return sym, true
}

// HasClass implements typesystem.ClassResolver.
func (e *Env) HasClass(name string) bool {
	_, ok := e.LookupClass(name)
	return ok
}

// SuperclassOf implements typesystem.Resolver.
func (e *Env) SuperclassOf(name string) (string, bool) {
	sym, ok := e.LookupClass(name)
	if !ok || sym.Parent == "" {
		return "", false
	}
	return sym.Parent, true
}

// NewClassScope returns a fresh scope for one class with self bound to it.
// The scope is owned by the caller and not shared.
func (e *Env) NewClassScope(className string) *SymbolTable {
	scope := NewEmptySymbolTable()
	scope.Define(config.SelfName, typesystem.TExt{Name: className}, ParamSymbol, className)
	return scope
}
