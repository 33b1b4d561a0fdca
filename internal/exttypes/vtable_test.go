package exttypes

import (
	"testing"

	"github.com/funvibe/jitclass/internal/typesystem"
)

func slotTable(names ...string) *MethodTable {
	mt := newMethodTable()
	for _, n := range names {
		mt.append(&Slot{Name: n, Signature: typesystem.TFunc{ReturnType: typesystem.Int}, Owner: "P", Pointer: 0x100})
	}
	return mt
}

func TestVTabBuilderPrefix(t *testing.T) {
	b := NewVTabBuilder()
	parentType, err := b.BuildType("P", slotTable("a", "b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	parent := &ExtensionType{Name: "P", VTableType: parentType}

	if _, err := b.BuildType("C", slotTable("a", "b", "c"), parent); err != nil {
		t.Errorf("appending a slot: %v", err)
	}
	if _, err := b.BuildType("C", slotTable("b", "a"), parent); err == nil {
		t.Errorf("reordered slots accepted")
	}
	if _, err := b.BuildType("C", slotTable("a"), parent); err == nil {
		t.Errorf("dropped slot accepted")
	}
}

func TestVTabBuilderPopulate(t *testing.T) {
	b := NewVTabBuilder()
	mt := slotTable("a", "b")
	vt, err := b.BuildType("P", mt, nil)
	if err != nil {
		t.Fatal(err)
	}

	mt.Slots[1].Pointer = 0
	if _, err := b.Build(vt, mt); err == nil {
		t.Fatal("empty slot accepted")
	}
	mt.Slots[1].Pointer = 0x200
	table, err := b.Build(vt, mt)
	if err != nil {
		t.Fatal(err)
	}
	if got := b.InheritSlot(table, 1); got != 0x200 {
		t.Errorf("InheritSlot(1) = %#x, want 0x200", got)
	}
	if got := b.InheritSlot(table, 5); got != 0 {
		t.Errorf("InheritSlot out of range = %#x, want 0", got)
	}
}

func TestOrderKeepsParentPrefix(t *testing.T) {
	parent := &ExtensionType{
		Name:  "P",
		Size:  9,
		Align: 8,
		Attributes: []*Attribute{
			{Name: "n", Type: typesystem.Int, Offset: 0, Owner: "P"},
			{Name: "ok", Type: typesystem.Bool, Offset: 8, Owner: "P"},
		},
	}
	pending := []*Attribute{
		{Name: "flag", Type: typesystem.Bool, Offset: -1, Owner: "C"},
		{Name: "x", Type: typesystem.Double, Offset: -1, Owner: "C"},
	}

	for _, policy := range []OrderingPolicy{ExtendingOrder{}, ExtendingBySizeOrder{}} {
		t.Run(policy.Name(), func(t *testing.T) {
			own := make([]*Attribute, len(pending))
			for i, a := range pending {
				c := *a
				own[i] = &c
			}
			b := NewAttributeBuilder(policy)
			table, _, err := b.MergeWithParent("C", parent, own)
			if err != nil {
				t.Fatal(err)
			}
			b.Order(table, parent)

			attrs := table.Attributes()
			if attrs[0].Name != "n" || attrs[0].Offset != 0 || attrs[1].Name != "ok" || attrs[1].Offset != 8 {
				t.Errorf("parent prefix moved: %s@%d %s@%d", attrs[0].Name, attrs[0].Offset, attrs[1].Name, attrs[1].Offset)
			}
			for _, a := range attrs[2:] {
				if a.Offset < parent.Size || a.Offset%typesystem.AlignOf(a.Type) != 0 {
					t.Errorf("%s at misplaced offset %d", a.Name, a.Offset)
				}
			}
			if table.Size%table.Align != 0 {
				t.Errorf("size %d not a multiple of alignment %d", table.Size, table.Align)
			}
		})
	}
}
