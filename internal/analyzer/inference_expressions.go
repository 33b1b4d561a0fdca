package analyzer

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// inferExpression infers expr and records its type for the code generator.
func (c *inferCtx) inferExpression(expr ast.Expression) typesystem.Type {
	t := c.inferExpressionType(expr)
	c.types[expr] = t
	return t
}

func (c *inferCtx) inferExpressionType(expr ast.Expression) typesystem.Type {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return typesystem.Int
	case *ast.FloatLiteral:
		return typesystem.Double
	case *ast.BooleanLiteral:
		return typesystem.Bool
	case *ast.StringLiteral:
		return typesystem.Text

	case *ast.Identifier:
		if e.IsSelf() {
			return typesystem.TExt{Name: c.req.Class}
		}
		if t, ok := c.locals[e.Value]; ok {
			return c.resolve(t)
		}
		c.fail(newTypeError(e.Token, "undefined name %s", e.Value))
		return c.supply.Fresh()

	case *ast.AttributeExpression:
		return c.inferAttributeRead(e)

	case *ast.MethodCallExpression:
		return c.inferCall(e)

	case *ast.CastExpression:
		return c.inferCast(e)

	case *ast.PrefixExpression:
		right := c.resolve(c.inferExpression(e.Right))
		switch e.Operator {
		case "not":
			c.unify(typesystem.Bool, right, e.Token)
			return typesystem.Bool
		case "-":
			if _, isVar := right.(typesystem.TVar); !isVar && !typesystem.IsNumeric(right) {
				c.fail(newTypeError(e.Token, "unary - needs a number, got %s", right))
			}
			return right
		}
		c.fail(newTypeError(e.Token, "unknown operator %s", e.Operator))
		return c.supply.Fresh()

	case *ast.InfixExpression:
		return c.inferInfix(e)
	}
	c.fail(newTypeError(expr.GetToken(), "unsupported expression %T", expr))
	return c.supply.Fresh()
}

func (c *inferCtx) inferAttributeRead(e *ast.AttributeExpression) typesystem.Type {
	obj := c.resolve(c.inferExpression(e.Object))
	switch t := obj.(type) {
	case typesystem.TExt:
		if t.Name != c.req.Class {
			attrType, err := c.foreignAttribute(t.Name, e.Name, e.Token)
			if err != nil {
				c.fail(err)
				return c.supply.Fresh()
			}
			return attrType
		}
		if attrType, ok := c.attribute(e.Name); ok {
			return c.resolve(attrType)
		}
		c.unknown = append(c.unknown, AttrRead{Name: e.Name, Token: e.Token})
		c.block("attribute " + e.Name)
		return c.supply.Fresh()
	case typesystem.TVar:
		c.fail(newTypeError(e.Token, "cannot read attribute %s of a value of unknown type; annotate it", e.Name))
	default:
		c.fail(newTypeError(e.Token, "%s has no attribute %s", obj, e.Name))
	}
	return c.supply.Fresh()
}

func (c *inferCtx) inferCall(e *ast.MethodCallExpression) typesystem.Type {
	obj := c.resolve(c.inferExpression(e.Receiver))
	args := make([]typesystem.Type, len(e.Arguments))
	for i, a := range e.Arguments {
		args[i] = c.inferExpression(a)
	}

	var sig typesystem.TFunc
	switch t := obj.(type) {
	case typesystem.TExt:
		if t.Name == c.req.Class {
			var ok bool
			sig, ok = c.ownMethod(e.Name, e.Token)
			if !ok {
				return c.supply.Fresh()
			}
			break
		}
		if c.req.Others == nil || !c.req.Others.Finalized(t.Name) {
			c.fail(newTypeError(e.Token, "class %s has no finalized layout yet", t.Name))
			return c.supply.Fresh()
		}
		found, ok := c.req.Others.Method(t.Name, e.Name)
		if !ok {
			c.fail(newTypeError(e.Token, "class %s has no method %s", t.Name, e.Name))
			return c.supply.Fresh()
		}
		sig = found
	case typesystem.TVar:
		c.fail(newTypeError(e.Token, "cannot call %s on a value of unknown type; annotate it", e.Name))
		return c.supply.Fresh()
	default:
		c.fail(newTypeError(e.Token, "%s has no method %s", obj, e.Name))
		return c.supply.Fresh()
	}

	if len(args) != len(sig.Params) {
		c.fail(newTypeError(e.Token, "%s takes %d argument(s), got %d", e.Name, len(sig.Params), len(args)))
		return c.resolve(sig.ReturnType)
	}
	for i, arg := range args {
		c.unify(sig.Params[i], arg, e.Arguments[i].GetToken())
	}
	return c.resolve(sig.ReturnType)
}

// ownMethod resolves a call on the class under compilation. A recursive
// call sees the signature being inferred; a call to a method whose return
// type is not settled blocks the run.
func (c *inferCtx) ownMethod(name string, tok token.Token) (typesystem.TFunc, bool) {
	if name == c.req.Method.Name {
		return c.req.Signature, true
	}
	if c.req.Self == nil {
		c.fail(newTypeError(tok, "unknown method %s", name))
		return typesystem.TFunc{}, false
	}
	sig, settled, ok := c.req.Self.Method(name)
	if !ok {
		c.fail(newTypeError(tok, "class %s has no method %s", c.req.Class, name))
		return typesystem.TFunc{}, false
	}
	if !settled {
		c.block("method " + name)
		return typesystem.TFunc{}, false
	}
	return sig, true
}

func (c *inferCtx) inferCast(e *ast.CastExpression) typesystem.Type {
	target, ok := typesystem.LookupPrimitive(e.TypeName)
	if !ok || target.Name == typesystem.Void.Name {
		c.fail(newTypeError(e.Token, "cannot cast to %s", e.TypeName))
		return c.supply.Fresh()
	}
	value := c.resolve(c.inferExpression(e.Value))
	if _, isVar := value.(typesystem.TVar); isVar {
		c.unify(target, value, e.Token)
		return target
	}
	if !castable(value, target) {
		c.fail(newTypeError(e.Token, "cannot cast %s to %s", value, target))
	}
	return target
}

func castable(from typesystem.Type, to typesystem.TCon) bool {
	if typesystem.Equal(from, to) {
		return true
	}
	scalar := func(t typesystem.Type) bool {
		return typesystem.IsNumeric(t) || typesystem.Equal(t, typesystem.Bool)
	}
	if to.Name == typesystem.Text.Name {
		return scalar(from)
	}
	return scalar(from) && scalar(to)
}

func (c *inferCtx) inferInfix(e *ast.InfixExpression) typesystem.Type {
	left := c.resolve(c.inferExpression(e.Left))
	right := c.resolve(c.inferExpression(e.Right))

	switch e.Operator {
	case "and", "or":
		c.unify(typesystem.Bool, left, e.Left.GetToken())
		c.unify(typesystem.Bool, right, e.Right.GetToken())
		return typesystem.Bool

	case "==", "!=":
		if !c.sameOperandTypes(left, right, e.Token) {
			return typesystem.Bool
		}
		l, r := c.resolve(left), c.resolve(right)
		if typesystem.IsNumeric(l) && typesystem.IsNumeric(r) {
			return typesystem.Bool
		}
		if !typesystem.IsSubtype(l, r, c.req.Hierarchy) && !typesystem.IsSubtype(r, l, c.req.Hierarchy) {
			c.fail(newTypeError(e.Token, "cannot compare %s with %s", l, r))
		}
		return typesystem.Bool

	case "<", "<=", ">", ">=":
		if !c.sameOperandTypes(left, right, e.Token) {
			return typesystem.Bool
		}
		l, r := c.resolve(left), c.resolve(right)
		if !typesystem.IsNumeric(l) || !typesystem.IsNumeric(r) {
			if _, lv := l.(typesystem.TVar); !lv {
				c.fail(newTypeError(e.Token, "cannot order %s and %s", l, r))
			}
		}
		return typesystem.Bool

	case "+", "-", "*", "/":
		if !c.sameOperandTypes(left, right, e.Token) {
			return c.supply.Fresh()
		}
		l, r := c.resolve(left), c.resolve(right)
		if e.Operator == "+" && typesystem.Equal(l, typesystem.Text) && typesystem.Equal(r, typesystem.Text) {
			return typesystem.Text
		}
		if _, lv := l.(typesystem.TVar); lv {
			return l
		}
		if !typesystem.IsNumeric(l) || !typesystem.IsNumeric(r) {
			c.fail(newTypeError(e.Token, "operator %s is not defined for %s and %s", e.Operator, l, r))
			return c.supply.Fresh()
		}
		return wider(l, r)
	}

	c.fail(newTypeError(e.Token, "unknown operator %s", e.Operator))
	return c.supply.Fresh()
}

// sameOperandTypes binds an unknown operand to the other side's type so
// that arithmetic on unannotated parameters still resolves.
func (c *inferCtx) sameOperandTypes(left, right typesystem.Type, tok token.Token) bool {
	_, lv := left.(typesystem.TVar)
	_, rv := right.(typesystem.TVar)
	if lv || rv {
		return c.unify(left, right, tok)
	}
	return true
}

// wider returns the result type of mixed numeric arithmetic.
func wider(a, b typesystem.Type) typesystem.Type {
	rank := func(t typesystem.Type) int {
		switch c, _ := t.(typesystem.TCon); c.Name {
		case typesystem.Double.Name:
			return 3
		case typesystem.Int.Name:
			return 2
		}
		return 1
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}
