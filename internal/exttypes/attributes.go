package exttypes

import (
	"fmt"
	"sort"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// AttributeTable maps attribute names to fields. Insertion order is the
// declared/inferred order until an ordering policy fixes offsets.
type AttributeTable struct {
	attrs map[string]*Attribute
	order []string
	Size  int
	Align int
}

func NewAttributeTable() *AttributeTable {
	return &AttributeTable{attrs: make(map[string]*Attribute), Align: 1}
}

// Lookup returns the attribute with the given name.
func (t *AttributeTable) Lookup(name string) (*Attribute, bool) {
	a, ok := t.attrs[name]
	return a, ok
}

// Add appends a new attribute.
func (t *AttributeTable) Add(a *Attribute) error {
	if _, exists := t.attrs[a.Name]; exists {
		return fmt.Errorf("attribute %s is already defined", a.Name)
	}
	t.attrs[a.Name] = a
	t.order = append(t.order, a.Name)
	return nil
}

// Attributes returns the attributes in table order.
func (t *AttributeTable) Attributes() []*Attribute {
	out := make([]*Attribute, len(t.order))
	for i, name := range t.order {
		out[i] = t.attrs[name]
	}
	return out
}

func (t *AttributeTable) Len() int { return len(t.order) }

// AttributeBuilder collects native attributes and fixes their layout.
type AttributeBuilder interface {
	// CollectFromClassBody returns the attributes declared in the class body.
	CollectFromClassBody(class *ast.ClassDef, classes typesystem.ClassResolver) ([]*Attribute, error)
	// CollectFromInitializer scans `self.x = value` in the initializer.
	CollectFromInitializer(class string, init *Method, supply *typesystem.VarSupply) []*Attribute
	// MergeWithParent seeds a table with the parent's fields at their
	// offsets, then appends the pending attributes in declared order.
	MergeWithParent(class string, parent *ExtensionType, pending []*Attribute) (*AttributeTable, typesystem.Subst, error)
	// Order assigns offsets to every attribute that has none.
	Order(table *AttributeTable, parent *ExtensionType)
}

// OrderingPolicy decides where new attributes go after the parent prefix.
type OrderingPolicy interface {
	Name() string
	Arrange(own []*Attribute) []*Attribute
}

// ExtendingOrder keeps new attributes in declared order.
type ExtendingOrder struct{}

func (ExtendingOrder) Name() string { return config.OrderingExtending }

func (ExtendingOrder) Arrange(own []*Attribute) []*Attribute { return own }

// ExtendingBySizeOrder sorts new attributes by decreasing alignment, which
// removes interior padding. Ties keep declared order.
type ExtendingBySizeOrder struct{}

func (ExtendingBySizeOrder) Name() string { return config.OrderingExtendingBySize }

func (ExtendingBySizeOrder) Arrange(own []*Attribute) []*Attribute {
	out := append([]*Attribute(nil), own...)
	sort.SliceStable(out, func(i, j int) bool {
		return typesystem.AlignOf(out[i].Type) > typesystem.AlignOf(out[j].Type)
	})
	return out
}

// OrderingFor returns the policy with the given name.
func OrderingFor(name string) (OrderingPolicy, error) {
	switch name {
	case config.OrderingExtending, "":
		return ExtendingOrder{}, nil
	case config.OrderingExtendingBySize:
		return ExtendingBySizeOrder{}, nil
	}
	return nil, fmt.Errorf("unknown attribute ordering %q", name)
}

// attributeBuilder is the default AttributeBuilder.
type attributeBuilder struct {
	ordering OrderingPolicy
}

// NewAttributeBuilder returns a builder laying out new fields with ordering.
func NewAttributeBuilder(ordering OrderingPolicy) AttributeBuilder {
	if ordering == nil {
		ordering = ExtendingOrder{}
	}
	return &attributeBuilder{ordering: ordering}
}

func (b *attributeBuilder) CollectFromClassBody(class *ast.ClassDef, classes typesystem.ClassResolver) ([]*Attribute, error) {
	var out []*Attribute
	seen := make(map[string]bool)
	for _, decl := range class.Attrs {
		if seen[decl.Name] {
			return nil, fmt.Errorf("%d:%d: attribute %s declared twice", decl.Token.Line, decl.Token.Column, decl.Name)
		}
		seen[decl.Name] = true
		t, err := typesystem.ParseTypeName(decl.TypeName, classes, class.Name)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: attribute %s: %w", decl.Token.Line, decl.Token.Column, decl.Name, err)
		}
		out = append(out, &Attribute{
			Name:   decl.Name,
			Type:   t,
			Offset: -1,
			Owner:  class.Name,
			Origin: OriginDeclared,
			Pos:    decl.Token,
		})
	}
	return out, nil
}

func (b *attributeBuilder) CollectFromInitializer(class string, init *Method, supply *typesystem.VarSupply) []*Attribute {
	if init == nil || init.Def == nil {
		return nil
	}
	params := make(map[string]typesystem.Type)
	for i, p := range init.Def.Params {
		if i < len(init.Signature.Params) && typesystem.IsConcrete(init.Signature.Params[i]) {
			params[p.Name] = init.Signature.Params[i]
		}
	}

	var out []*Attribute
	seen := make(map[string]bool)
	for _, stmt := range init.Def.Body {
		assign, ok := stmt.(*ast.AttrAssignStatement)
		if !ok || !assign.Target.OnSelf() || seen[assign.Target.Name] {
			continue
		}
		seen[assign.Target.Name] = true
		t := staticType(assign.Value, params)
		if t == nil {
			t = supply.Fresh()
		}
		out = append(out, &Attribute{
			Name:   assign.Target.Name,
			Type:   t,
			Offset: -1,
			Owner:  class,
			Origin: OriginInitializer,
			Pos:    assign.Token,
		})
	}
	return out
}

// staticType is the type of expr when it is evident without inference:
// literals, casts and annotated parameters.
func staticType(expr ast.Expression, params map[string]typesystem.Type) typesystem.Type {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return typesystem.Int
	case *ast.FloatLiteral:
		return typesystem.Double
	case *ast.BooleanLiteral:
		return typesystem.Bool
	case *ast.StringLiteral:
		return typesystem.Text
	case *ast.CastExpression:
		if t, ok := typesystem.LookupPrimitive(e.TypeName); ok {
			return t
		}
	case *ast.Identifier:
		return params[e.Value]
	}
	return nil
}

func (b *attributeBuilder) MergeWithParent(class string, parent *ExtensionType, pending []*Attribute) (*AttributeTable, typesystem.Subst, error) {
	table := NewAttributeTable()
	subst := typesystem.Subst{}

	if parent != nil {
		for _, pa := range parent.Attributes {
			inherited := *pa
			inherited.Origin = OriginInherited
			if err := table.Add(&inherited); err != nil {
				return nil, nil, err
			}
		}
		table.Size = parent.Size
		table.Align = parent.Align
	}

	for _, a := range pending {
		existing, ok := table.Lookup(a.Name)
		if !ok {
			if err := table.Add(a); err != nil {
				return nil, nil, err
			}
			continue
		}
		if existing.Origin != OriginInherited {
			// Declared in the body and assigned in __init__: the declaration
			// fixes the position; inference reconciles the types.
			continue
		}
		childType := a.Type.Apply(subst)
		if tv, isVar := childType.(typesystem.TVar); isVar {
			subst = typesystem.Subst{tv.Name: existing.Type}.Compose(subst)
			continue
		}
		if !typesystem.Equal(childType, existing.Type) {
			return nil, nil, &diagnostics.ConflictError{
				Class:      class,
				Parent:     existing.Owner,
				Attribute:  a.Name,
				ParentType: existing.Type,
				ChildType:  childType,
			}
		}
	}
	return table, subst, nil
}

func (b *attributeBuilder) Order(table *AttributeTable, parent *ExtensionType) {
	var prefix, own []*Attribute
	for _, a := range table.Attributes() {
		if a.Origin == OriginInherited {
			prefix = append(prefix, a)
		} else {
			own = append(own, a)
		}
	}

	offset, align := 0, 1
	if parent != nil {
		offset, align = parent.Size, parent.Align
	}
	own = b.ordering.Arrange(own)
	for _, a := range own {
		fa := typesystem.AlignOf(a.Type)
		offset = alignUp(offset, fa)
		a.Offset = offset
		offset += typesystem.SizeOf(a.Type)
		if fa > align {
			align = fa
		}
	}

	table.order = table.order[:0]
	for _, a := range append(prefix, own...) {
		table.order = append(table.order, a.Name)
	}
	table.Align = align
	table.Size = alignUp(offset, align)
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
