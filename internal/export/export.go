// Package export describes extension-type records as protobuf messages,
// so the native layouts can be exchanged with other tools.
package export

import (
	"fmt"
	"strings"

	"github.com/funvibe/jitclass/internal/exttypes"
	"github.com/funvibe/jitclass/internal/typesystem"
	"github.com/funvibe/jitclass/internal/vm"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Record describes the record of ext as a message. Fields follow the
// native offset order and are numbered from 1; inherited fields are
// included since proto has no inheritance.
func Record(ext *exttypes.ExtensionType, pkg string) (*descriptorpb.DescriptorProto, error) {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(ext.Name)}
	for i, a := range ext.Attributes {
		field := &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(a.Name),
			JsonName: proto.String(a.Name),
			Number:   proto.Int32(int32(i + 1)),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		}
		switch a.Kind() {
		case vm.KindInt:
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum()
		case vm.KindInt32:
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()
		case vm.KindDouble:
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum()
		case vm.KindBool:
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_BOOL.Enum()
		case vm.KindText:
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
		case vm.KindRef:
			ref, ok := a.Type.(typesystem.TExt)
			if !ok {
				return nil, fmt.Errorf("%s.%s: reference field of type %s", ext.Name, a.Name, a.Type)
			}
			field.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			field.TypeName = proto.String(qualify(pkg, ref.Name))
		default:
			return nil, fmt.Errorf("%s.%s: no protobuf type for %s", ext.Name, a.Name, a.Type)
		}
		msg.Field = append(msg.Field, field)
	}
	return msg, nil
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return "." + name
	}
	return "." + pkg + "." + name
}

// FileName is the .proto path of pkg.
func FileName(pkg string) string {
	if pkg == "" {
		return "jitclass.proto"
	}
	return strings.ReplaceAll(pkg, ".", "/") + ".proto"
}

// File describes exts as one proto3 file and checks it: every message a
// field references must be part of exts.
func File(pkg string, exts []*exttypes.ExtensionType) (protoreflect.FileDescriptor, *descriptorpb.FileDescriptorProto, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:   proto.String(FileName(pkg)),
		Syntax: proto.String("proto3"),
	}
	if pkg != "" {
		fdp.Package = proto.String(pkg)
	}
	for _, ext := range exts {
		msg, err := Record(ext, pkg)
		if err != nil {
			return nil, nil, err
		}
		fdp.MessageType = append(fdp.MessageType, msg)
	}
	fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		return nil, nil, fmt.Errorf("building %s: %w", fdp.GetName(), err)
	}
	return fd, fdp, nil
}

// Text renders a file descriptor in protobuf text format.
func Text(fdp *descriptorpb.FileDescriptorProto) (string, error) {
	b, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(fdp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
