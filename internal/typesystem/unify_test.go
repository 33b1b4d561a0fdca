package typesystem

import (
	"testing"
)

type mapResolver map[string]string

func (m mapResolver) SuperclassOf(name string) (string, bool) {
	p, ok := m[name]
	return p, ok
}

func TestUnify(t *testing.T) {
	a := TVar{Name: "a"}
	b := TVar{Name: "b"}

	tests := []struct {
		name    string
		t1, t2  Type
		wantErr bool
		check   func(t *testing.T, s Subst)
	}{
		{
			name: "identical primitives",
			t1:   Int, t2: Int,
		},
		{
			name: "var binds to primitive",
			t1:   a, t2: Double,
			check: func(t *testing.T, s Subst) {
				if got := a.Apply(s); !Equal(got, Double) {
					t.Errorf("a = %s, want double", got)
				}
			},
		},
		{
			name: "function params and return",
			t1:   TFunc{Params: []Type{a}, ReturnType: b},
			t2:   TFunc{Params: []Type{Int}, ReturnType: Text},
			check: func(t *testing.T, s Subst) {
				if got := a.Apply(s); !Equal(got, Int) {
					t.Errorf("a = %s, want int", got)
				}
				if got := b.Apply(s); !Equal(got, Text) {
					t.Errorf("b = %s, want text", got)
				}
			},
		},
		{
			name: "primitive mismatch", t1: Int, t2: Text, wantErr: true,
		},
		{
			name:    "arity mismatch",
			t1:      TFunc{Params: []Type{Int}, ReturnType: Void},
			t2:      TFunc{Params: nil, ReturnType: Void},
			wantErr: true,
		},
		{
			name: "occurs check",
			t1:   a, t2: TFunc{Params: []Type{a}, ReturnType: Int},
			wantErr: true,
		},
		{
			name: "strict unify does not widen", t1: Double, t2: Int, wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Unify(tt.t1, tt.t2)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error unifying %s and %s", tt.t1, tt.t2)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestUnifyAssignable(t *testing.T) {
	r := mapResolver{"Derived": "Base", "Leaf": "Derived"}

	if _, err := UnifyAssignable(Double, Int, r); err != nil {
		t.Errorf("int should widen to double: %v", err)
	}
	if _, err := UnifyAssignable(Int, Double, r); err == nil {
		t.Errorf("double must not narrow to int")
	}
	if _, err := UnifyAssignable(TExt{Name: "Base"}, TExt{Name: "Leaf"}, r); err != nil {
		t.Errorf("Leaf should be assignable to Base: %v", err)
	}
	if _, err := UnifyAssignable(TExt{Name: "Leaf"}, TExt{Name: "Base"}, r); err == nil {
		t.Errorf("Base must not be assignable to Leaf")
	}
}

func TestSubstComposeAndFreeVars(t *testing.T) {
	s1 := Subst{"b": Int}
	s2 := Subst{"a": TVar{Name: "b"}}
	s := s1.Compose(s2)

	fn := TFunc{Params: []Type{TVar{Name: "a"}}, ReturnType: TVar{Name: "c"}}
	applied := fn.Apply(s).(TFunc)
	if !Equal(applied.Params[0], Int) {
		t.Errorf("param = %s, want int", applied.Params[0])
	}
	free := applied.FreeTypeVariables()
	if len(free) != 1 || free[0].Name != "c" {
		t.Errorf("free vars = %v, want [c]", free)
	}
	if IsConcrete(applied) {
		t.Errorf("signature with free return type reported concrete")
	}
}

func TestLayoutSizes(t *testing.T) {
	tests := []struct {
		typ         Type
		size, align int
	}{
		{Int, 8, 8},
		{Int32, 4, 4},
		{Double, 8, 8},
		{Bool, 1, 1},
		{Text, 8, 8},
		{TExt{Name: "Node"}, 8, 8},
	}
	for _, tt := range tests {
		if got := SizeOf(tt.typ); got != tt.size {
			t.Errorf("SizeOf(%s) = %d, want %d", tt.typ, got, tt.size)
		}
		if got := AlignOf(tt.typ); got != tt.align {
			t.Errorf("AlignOf(%s) = %d, want %d", tt.typ, got, tt.align)
		}
	}
}

func TestParseTypeName(t *testing.T) {
	if typ, err := ParseTypeName("double", nil); err != nil || !Equal(typ, Double) {
		t.Errorf("ParseTypeName(double) = %v, %v", typ, err)
	}
	if typ, err := ParseTypeName("Point", nil, "Point"); err != nil || !Equal(typ, TExt{Name: "Point"}) {
		t.Errorf("ParseTypeName(Point) = %v, %v", typ, err)
	}
	if _, err := ParseTypeName("Missing", nil); err == nil {
		t.Errorf("expected error for unknown type")
	}
}
