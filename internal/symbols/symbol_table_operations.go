package symbols

import (
	"github.com/funvibe/jitclass/internal/typesystem"
	"sort"
)

// SymbolTable is one flat scope. It is not safe for concurrent use;
// the shared global scope is only reached through Env.
type SymbolTable struct {
	store map[string]Symbol
	order []string
}

func NewEmptySymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]Symbol)}
}

// Define adds or replaces a symbol in this scope.
func (s *SymbolTable) Define(name string, t typesystem.Type, kind SymbolKind, owner string) {
	s.put(Symbol{Name: name, Type: t, Kind: kind, Owner: owner})
}

// DefinePending adds a symbol whose type is still being inferred.
func (s *SymbolTable) DefinePending(name string, t typesystem.Type, kind SymbolKind, owner string) {
	s.put(Symbol{Name: name, Type: t, Kind: kind, Owner: owner, IsPending: true})
}

func (s *SymbolTable) put(sym Symbol) {
	if _, exists := s.store[sym.Name]; !exists {
		s.order = append(s.order, sym.Name)
	}
	s.store[sym.Name] = sym
}

func (s *SymbolTable) remove(name string) {
	if _, ok := s.store[name]; !ok {
		return
	}
	delete(s.store, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Find looks the name up in this scope.
func (s *SymbolTable) Find(name string) (Symbol, bool) {
	sym, ok := s.store[name]
	return sym, ok
}

// Update updates the type of an existing symbol.
// Returns error if symbol not found.
func (s *SymbolTable) Update(name string, t typesystem.Type) error {
	sym, ok := s.store[name]
	if !ok {
		return typesystem.NewSymbolNotFoundError(name)
	}
	sym.Type = t
	sym.IsPending = !typesystem.IsConcrete(t)
	s.store[name] = sym
	return nil
}

// Apply rewrites every symbol type in this scope with subst.
func (s *SymbolTable) Apply(subst typesystem.Subst) {
	for name, sym := range s.store {
		if sym.Type == nil {
			continue
		}
		sym.Type = sym.Type.Apply(subst)
		sym.IsPending = !typesystem.IsConcrete(sym.Type)
		s.store[name] = sym
	}
}

// Symbols returns this scope's symbols in definition order.
func (s *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.store[name])
	}
	return out
}

// GetAllNames returns the sorted names of kind in this scope, for
// error suggestions.
func (s *SymbolTable) GetAllNames(kind SymbolKind) []string {
	var names []string
	for _, name := range s.order {
		if s.store[name].Kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
