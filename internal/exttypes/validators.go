package exttypes

import (
	"fmt"

	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// TypeValidator checks a finalized layout. It returns every violation it
// finds; an empty result means the layout passes.
type TypeValidator func(ext *ExtensionType) []diagnostics.Violation

// MethodValidator checks one inferred method of the class.
type MethodValidator func(m *Method) []diagnostics.Violation

// Rule names used in violations.
const (
	RuleMaxRecordSize  = "max_record_size"
	RuleForbiddenName  = "forbidden_attribute_name"
	RuleVoidAttribute  = "void_attribute"
	RuleParentPrefix   = "parent_prefix"
	RuleInitReturnType = "init_return_type"
)

// MaxRecordSize rejects records larger than limit bytes.
func MaxRecordSize(limit int) TypeValidator {
	return func(ext *ExtensionType) []diagnostics.Violation {
		if limit <= 0 || ext.Size <= limit {
			return nil
		}
		return []diagnostics.Violation{{
			Rule:    RuleMaxRecordSize,
			Subject: ext.Name,
			Message: fmt.Sprintf("record is %d bytes, limit is %d", ext.Size, limit),
		}}
	}
}

// ForbiddenAttributeNames rejects attributes introduced under any of names.
// Inherited attributes were checked with their own class.
func ForbiddenAttributeNames(names ...string) TypeValidator {
	forbidden := make(map[string]bool, len(names))
	for _, n := range names {
		forbidden[n] = true
	}
	return func(ext *ExtensionType) []diagnostics.Violation {
		var out []diagnostics.Violation
		for _, a := range ext.Attributes {
			if a.Origin != OriginInherited && forbidden[a.Name] {
				out = append(out, diagnostics.Violation{
					Rule:    RuleForbiddenName,
					Subject: a.Name,
					Message: "attribute name is not allowed",
				})
			}
		}
		return out
	}
}

// NoVoidAttributes rejects fields that would hold no value.
func NoVoidAttributes(ext *ExtensionType) []diagnostics.Violation {
	var out []diagnostics.Violation
	for _, a := range ext.Attributes {
		if typesystem.Equal(a.Type, typesystem.Void) {
			out = append(out, diagnostics.Violation{
				Rule:    RuleVoidAttribute,
				Subject: a.Name,
				Message: "attribute has type void",
			})
		}
	}
	return out
}

// ParentPrefix re-checks that the parent's fields and slots are a prefix of
// the child's layout.
func ParentPrefix(ext *ExtensionType) []diagnostics.Violation {
	parent := ext.Parent
	if parent == nil {
		return nil
	}
	var out []diagnostics.Violation
	for _, pa := range parent.Attributes {
		a, ok := ext.Attribute(pa.Name)
		if !ok || a.Offset != pa.Offset || !typesystem.Equal(a.Type, pa.Type) {
			out = append(out, diagnostics.Violation{
				Rule:    RuleParentPrefix,
				Subject: pa.Name,
				Message: fmt.Sprintf("must stay at offset %d with type %s as in %s", pa.Offset, pa.Type, parent.Name),
			})
		}
	}
	if parent.VTableType != nil && ext.VTableType != nil {
		for _, ps := range parent.VTableType.Slots {
			s, ok := ext.VTableType.Lookup(ps.Name)
			if !ok || s.Index != ps.Index {
				out = append(out, diagnostics.Violation{
					Rule:    RuleParentPrefix,
					Subject: ps.Name,
					Message: fmt.Sprintf("must stay in slot %d as in %s", ps.Index, parent.Name),
				})
			}
		}
	}
	if ext.Size < parent.Size {
		out = append(out, diagnostics.Violation{
			Rule:    RuleParentPrefix,
			Subject: ext.Name,
			Message: fmt.Sprintf("record of %d bytes is smaller than the parent's %d", ext.Size, parent.Size),
		})
	}
	return out
}

// InitializerReturnsVoid rejects an __init__ that returns a value.
func InitializerReturnsVoid(m *Method) []diagnostics.Violation {
	if !m.IsInitializer() || typesystem.Equal(m.Signature.ReturnType, typesystem.Void) {
		return nil
	}
	return []diagnostics.Violation{{
		Rule:    RuleInitReturnType,
		Subject: m.Name,
		Message: fmt.Sprintf("returns %s, must return void", m.Signature.ReturnType),
	}}
}

// DefaultValidators returns the built-in hooks configured by cfg.
func DefaultValidators(cfg config.Validation) ([]TypeValidator, []MethodValidator) {
	types := []TypeValidator{
		MaxRecordSize(cfg.MaxRecordSize),
		NoVoidAttributes,
		ParentPrefix,
	}
	if len(cfg.ForbiddenAttributeNames) > 0 {
		types = append(types, ForbiddenAttributeNames(cfg.ForbiddenAttributeNames...))
	}
	return types, []MethodValidator{InitializerReturnsVoid}
}
