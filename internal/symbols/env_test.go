package symbols

import (
	"sync"
	"testing"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/typesystem"
)

type fakeExt struct{ name, parent string }

func (f fakeExt) ClassName() string  { return f.name }
func (f fakeExt) ParentName() string { return f.parent }

func TestSymbolTableScopes(t *testing.T) {
	class := NewEnv().NewClassScope("Base")
	class.DefinePending("count", typesystem.TVar{Name: "t1"}, AttributeSymbol, "Base")
	class.Define("total", typesystem.Int, AttributeSymbol, "Base")
	class.DefinePending("get", typesystem.TVar{Name: "t2"}, MethodSymbol, "Base")

	sym, ok := class.Find("count")
	if !ok || !sym.IsPending {
		t.Fatalf("count lookup = %+v, %v", sym, ok)
	}

	class.Apply(typesystem.Subst{"t1": typesystem.Int})
	sym, _ = class.Find("count")
	if sym.IsPending || !typesystem.Equal(sym.Type, typesystem.Int) {
		t.Errorf("after Apply count = %+v, want concrete int", sym)
	}

	if err := class.Update("missing", typesystem.Int); err == nil {
		t.Errorf("Update of unknown symbol should fail")
	}
	names := class.GetAllNames(AttributeSymbol)
	if len(names) != 2 || names[0] != "count" || names[1] != "total" {
		t.Errorf("GetAllNames(attribute) = %v", names)
	}
	if self, ok := class.Find("self"); !ok || self.Kind != ParamSymbol {
		t.Errorf("self = %+v, %v; want a parameter", self, ok)
	}
}

func TestEnvRegistry(t *testing.T) {
	env := NewEnv()
	if err := env.DeclareClass(&ast.ClassDef{Name: "Derived", Parent: "Base"}); err != nil {
		t.Fatal(err)
	}
	sym, ok := env.LookupClass("Derived")
	if !ok || !sym.IsPending {
		t.Fatalf("declared class should be pending, got %+v", sym)
	}
	if parent, ok := env.SuperclassOf("Derived"); !ok || parent != "Base" {
		t.Errorf("SuperclassOf(Derived) = %q, %v", parent, ok)
	}

	if err := env.Register(fakeExt{name: "Base"}); err != nil {
		t.Fatal(err)
	}
	if err := env.Register(fakeExt{name: "Base"}); err == nil {
		t.Errorf("registering Base twice should fail")
	}
	if err := env.DeclareClass(&ast.ClassDef{Name: "Base"}); err == nil {
		t.Errorf("redeclaring a finalized class should fail")
	}
	if !typesystem.IsSubclass("Derived", "Base", env) {
		t.Errorf("Derived should be a subclass of Base")
	}

	if !env.Unload("Base") || env.HasClass("Base") {
		t.Errorf("Unload(Base) did not remove the class")
	}
}

func TestEnvConcurrentRegister(t *testing.T) {
	env := NewEnv()
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = env.DeclareClass(&ast.ClassDef{Name: name})
			_ = env.Register(fakeExt{name: name})
			env.HasClass(name)
		}(n)
	}
	wg.Wait()

	if got := env.Extensions(); len(got) != len(names) {
		t.Errorf("Extensions = %v, want %d entries", got, len(names))
	}
}
