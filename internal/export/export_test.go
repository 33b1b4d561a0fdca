package export

import (
	"context"
	"testing"

	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/parser"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/vm"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

func compile(t *testing.T, src string) []*exttypes.ExtensionType {
	t.Helper()
	program, perrs := parser.ParseSource(src)
	if len(perrs) > 0 {
		t.Fatalf("parse errors: %v", perrs)
	}
	opts := exttypes.DefaultOptions()
	opts.Arena = vm.NewCodeArena()
	exts, err := exttypes.CompileAll(context.Background(), symbols.NewEnv(), program.Classes, opts)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return exts
}

const nodes = `
class Node:
    value: int
    weight: double
    live: bool
    tag: text
    next: Node

class Counted(Node):
    hits: int32
`

func TestFileDescribesRecords(t *testing.T) {
	exts := compile(t, nodes)
	fd, fdp, err := File("demo.layouts", exts)
	if err != nil {
		t.Fatal(err)
	}
	if fd.Path() != "demo/layouts.proto" || fd.Package() != "demo.layouts" {
		t.Errorf("file %s package %s", fd.Path(), fd.Package())
	}

	node := fd.Messages().ByName("Node")
	if node == nil {
		t.Fatal("no Node message")
	}
	tests := []struct {
		name string
		kind protoreflect.Kind
	}{
		{"value", protoreflect.Int64Kind},
		{"weight", protoreflect.DoubleKind},
		{"live", protoreflect.BoolKind},
		{"tag", protoreflect.StringKind},
		{"next", protoreflect.MessageKind},
	}
	for _, tt := range tests {
		f := node.Fields().ByName(protoreflect.Name(tt.name))
		if f == nil {
			t.Errorf("Node has no field %s", tt.name)
			continue
		}
		if f.Kind() != tt.kind {
			t.Errorf("Node.%s kind = %s, want %s", tt.name, f.Kind(), tt.kind)
		}
	}
	if next := node.Fields().ByName("next"); next.Message().FullName() != "demo.layouts.Node" {
		t.Errorf("next refers to %s", next.Message().FullName())
	}

	// Field numbers follow the native offset order.
	ext := exts[0]
	for i, a := range ext.Attributes {
		f := node.Fields().ByNumber(protoreflect.FieldNumber(i + 1))
		if f == nil || string(f.Name()) != a.Name {
			t.Errorf("field %d is not %s", i+1, a.Name)
		}
	}

	counted := fd.Messages().ByName("Counted")
	if counted == nil || counted.Fields().Len() != 6 {
		t.Fatalf("Counted should carry the 5 inherited fields plus hits")
	}
	if f := counted.Fields().ByName("hits"); f == nil || f.Kind() != protoreflect.Int32Kind {
		t.Errorf("Counted.hits missing or mistyped")
	}

	text, err := Text(fdp)
	if err != nil {
		t.Fatal(err)
	}
	var parsed descriptorpb.FileDescriptorProto
	if err := prototext.Unmarshal([]byte(text), &parsed); err != nil {
		t.Fatalf("text form does not parse back: %v\n%s", err, text)
	}
	if !proto.Equal(&parsed, fdp) {
		t.Errorf("text form lost information:\n%s", text)
	}
}

func TestFileRejectsDanglingReference(t *testing.T) {
	exts := compile(t, nodes)
	// Counted alone still references Node through the inherited next field.
	if _, _, err := File("demo", exts[1:]); err == nil {
		t.Error("dangling message reference accepted")
	}
}

func TestFileNameWithoutPackage(t *testing.T) {
	if got := FileName(""); got != "jitclass.proto" {
		t.Errorf("FileName(\"\") = %s", got)
	}
}
