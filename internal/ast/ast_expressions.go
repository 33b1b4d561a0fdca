package ast

import (
	"github.com/funvibe/jitclass/internal/token"
)

// AttrAssignStatement sets an attribute: self.x = value
type AttrAssignStatement struct {
	Token  token.Token // The '=' token
	Target *AttributeExpression
	Value  Expression
}

func (s *AttrAssignStatement) TokenLiteral() string  { return s.Token.Lexeme }
func (s *AttrAssignStatement) GetToken() token.Token { return s.Token }
func (s *AttrAssignStatement) statementNode()        {}

// AssignStatement binds a local variable: x = value
type AssignStatement struct {
	Token token.Token // The identifier token
	Name  string
	Value Expression
}

func (s *AssignStatement) TokenLiteral() string  { return s.Token.Lexeme }
func (s *AssignStatement) GetToken() token.Token { return s.Token }
func (s *AssignStatement) statementNode()        {}

// ReturnStatement returns from a method; Value is nil for a bare return.
type ReturnStatement struct {
	Token token.Token
	Value Expression
}

func (s *ReturnStatement) TokenLiteral() string  { return s.Token.Lexeme }
func (s *ReturnStatement) GetToken() token.Token { return s.Token }
func (s *ReturnStatement) statementNode()        {}

// ExpressionStatement evaluates an expression for its effect.
type ExpressionStatement struct {
	Token      token.Token
	Expression Expression
}

func (s *ExpressionStatement) TokenLiteral() string  { return s.Token.Lexeme }
func (s *ExpressionStatement) GetToken() token.Token { return s.Token }
func (s *ExpressionStatement) statementNode()        {}

// PassStatement does nothing.
type PassStatement struct {
	Token token.Token
}

func (s *PassStatement) TokenLiteral() string  { return s.Token.Lexeme }
func (s *PassStatement) GetToken() token.Token { return s.Token }
func (s *PassStatement) statementNode()        {}

type Identifier struct {
	Token token.Token
	Value string
}

func (e *Identifier) TokenLiteral() string  { return e.Token.Lexeme }
func (e *Identifier) GetToken() token.Token { return e.Token }
func (e *Identifier) expressionNode()       {}

// IsSelf reports whether the identifier names the receiver.
func (e *Identifier) IsSelf() bool { return e.Value == "self" }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (e *IntegerLiteral) TokenLiteral() string  { return e.Token.Lexeme }
func (e *IntegerLiteral) GetToken() token.Token { return e.Token }
func (e *IntegerLiteral) expressionNode()       {}

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (e *FloatLiteral) TokenLiteral() string  { return e.Token.Lexeme }
func (e *FloatLiteral) GetToken() token.Token { return e.Token }
func (e *FloatLiteral) expressionNode()       {}

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (e *BooleanLiteral) TokenLiteral() string  { return e.Token.Lexeme }
func (e *BooleanLiteral) GetToken() token.Token { return e.Token }
func (e *BooleanLiteral) expressionNode()       {}

type StringLiteral struct {
	Token token.Token
	Value string
}

func (e *StringLiteral) TokenLiteral() string  { return e.Token.Lexeme }
func (e *StringLiteral) GetToken() token.Token { return e.Token }
func (e *StringLiteral) expressionNode()       {}

// AttributeExpression reads an attribute: obj.name
type AttributeExpression struct {
	Token  token.Token // The '.' token
	Object Expression
	Name   string
}

func (e *AttributeExpression) TokenLiteral() string  { return e.Token.Lexeme }
func (e *AttributeExpression) GetToken() token.Token { return e.Token }
func (e *AttributeExpression) expressionNode()       {}

// OnSelf reports whether the attribute is read from the receiver.
func (e *AttributeExpression) OnSelf() bool {
	id, ok := e.Object.(*Identifier)
	return ok && id.IsSelf()
}

// MethodCallExpression calls a method: obj.name(args)
type MethodCallExpression struct {
	Token     token.Token // The '(' token
	Receiver  Expression
	Name      string
	Arguments []Expression
}

func (e *MethodCallExpression) TokenLiteral() string  { return e.Token.Lexeme }
func (e *MethodCallExpression) GetToken() token.Token { return e.Token }
func (e *MethodCallExpression) expressionNode()       {}

// CastExpression converts a value to a native type: double(x)
type CastExpression struct {
	Token    token.Token
	TypeName string
	Value    Expression
}

func (e *CastExpression) TokenLiteral() string  { return e.Token.Lexeme }
func (e *CastExpression) GetToken() token.Token { return e.Token }
func (e *CastExpression) expressionNode()       {}

type PrefixExpression struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (e *PrefixExpression) TokenLiteral() string  { return e.Token.Lexeme }
func (e *PrefixExpression) GetToken() token.Token { return e.Token }
func (e *PrefixExpression) expressionNode()       {}

type InfixExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (e *InfixExpression) TokenLiteral() string  { return e.Token.Lexeme }
func (e *InfixExpression) GetToken() token.Token { return e.Token }
func (e *InfixExpression) expressionNode()       {}
