package symbols

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/typesystem"
)

type SymbolKind int

const (
	ClassSymbol SymbolKind = iota
	AttributeSymbol
	MethodSymbol
	ParamSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case ClassSymbol:
		return "class"
	case AttributeSymbol:
		return "attribute"
	case MethodSymbol:
		return "method"
	case ParamSymbol:
		return "parameter"
	}
	return "unknown"
}

type Symbol struct {
	Name           string
	Type           typesystem.Type
	Kind           SymbolKind
	IsPending      bool     // Declared but not finalized (classes) or not yet inferred
	Owner          string   // Class that introduced the symbol
	Parent         string   // For classes: the direct base class, if any
	DefinitionNode ast.Node // The AST node where this symbol was defined
}
