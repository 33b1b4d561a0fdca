package ast

import (
	"github.com/funvibe/jitclass/internal/token"
)

// TokenProvider is an interface for any AST node that can provide its primary token.
// This is useful for error reporting.
type TokenProvider interface {
	GetToken() token.Token
}

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root of a parsed source file: a sequence of classes.
type Program struct {
	File    string
	Classes []*ClassDef
}

// Class returns the class with the given name, or nil.
func (p *Program) Class(name string) *ClassDef {
	for _, c := range p.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ClassDef is a class declaration.
//
//	class Name(Parent):
//	    attr: type
//	    def method(self, ...) -> type:
//	        ...
type ClassDef struct {
	Token   token.Token // The 'class' token
	Name    string
	Parent  string // empty when the class has no base
	Attrs   []*AttrDecl
	Methods []*MethodDef
}

func (c *ClassDef) TokenLiteral() string  { return c.Token.Lexeme }
func (c *ClassDef) GetToken() token.Token { return c.Token }
func (c *ClassDef) statementNode()        {}

// Method returns the method with the given name defined directly on c.
func (c *ClassDef) Method(name string) *MethodDef {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// AttrDecl declares a native attribute in the class body:
// `attr: double` or `attr = double`.
type AttrDecl struct {
	Token    token.Token // The attribute name token
	Name     string
	TypeName string
}

func (a *AttrDecl) TokenLiteral() string  { return a.Token.Lexeme }
func (a *AttrDecl) GetToken() token.Token { return a.Token }
func (a *AttrDecl) statementNode()        {}

// Param is a method parameter; TypeName is empty when unannotated.
type Param struct {
	Token    token.Token
	Name     string
	TypeName string
}

// MethodDef is a method declaration. The receiver (self) is not part of Params.
type MethodDef struct {
	Token      token.Token // The 'def' token
	Name       string
	Params     []*Param
	ReturnType string // empty when unannotated
	Body       []Statement
}

func (m *MethodDef) TokenLiteral() string  { return m.Token.Lexeme }
func (m *MethodDef) GetToken() token.Token { return m.Token }
func (m *MethodDef) statementNode()        {}
