package analyzer

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// inferCtx holds the state of one run over one method body.
type inferCtx struct {
	req    *Request
	supply *typesystem.VarSupply
	subst  typesystem.Subst
	locals map[string]typesystem.Type
	types  map[ast.Node]typesystem.Type

	writes  []AttrWrite
	written map[string]int // attribute name -> index in writes

	blocked      map[string]bool
	blockedOrder []string
	unknown      []AttrRead

	sawValueReturn bool
	err            error // first error; later ones are dropped
}

func (c *inferCtx) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *inferCtx) block(what string) {
	if !c.blocked[what] {
		c.blocked[what] = true
		c.blockedOrder = append(c.blockedOrder, what)
	}
}

func (c *inferCtx) resolve(t typesystem.Type) typesystem.Type {
	return t.Apply(c.subst)
}

// unify makes actual fit where expected is required and records the
// substitution. It reports whether unification succeeded.
func (c *inferCtx) unify(expected, actual typesystem.Type, tok token.Token) bool {
	s, err := typesystem.UnifyAssignable(c.resolve(expected), c.resolve(actual), c.req.Hierarchy)
	if err != nil {
		c.fail(newTypeError(tok, "%v", err))
		return false
	}
	c.subst = s.Compose(c.subst)
	return true
}

func (c *inferCtx) inferBody(body []ast.Statement) {
	for _, stmt := range body {
		c.inferStatement(stmt)
	}
}

func (c *inferCtx) inferStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.AttrAssignStatement:
		value := c.inferExpression(s.Value)
		c.assignAttribute(s.Target, value, s.Token)

	case *ast.AssignStatement:
		value := c.inferExpression(s.Value)
		if s.Name == config.SelfName {
			c.fail(newTypeError(s.Token, "cannot rebind %s", config.SelfName))
			return
		}
		if existing, ok := c.locals[s.Name]; ok {
			c.unify(existing, value, s.Token)
			return
		}
		c.locals[s.Name] = value

	case *ast.ReturnStatement:
		if s.Value == nil {
			c.unify(c.req.Signature.ReturnType, typesystem.Void, s.Token)
			return
		}
		value := c.inferExpression(s.Value)
		c.sawValueReturn = true
		c.unify(c.req.Signature.ReturnType, value, s.Token)

	case *ast.ExpressionStatement:
		c.inferExpression(s.Expression)

	case *ast.PassStatement:
		// nothing

	default:
		c.fail(newTypeError(stmt.GetToken(), "unsupported statement %T", stmt))
	}
}

// attribute returns the type of an attribute of the class under
// compilation, including attributes first written earlier in this run.
func (c *inferCtx) attribute(name string) (typesystem.Type, bool) {
	if i, ok := c.written[name]; ok && c.writes[i].New {
		return c.writes[i].Type, true
	}
	if c.req.Self == nil {
		return nil, false
	}
	return c.req.Self.Attribute(name)
}

func (c *inferCtx) assignAttribute(target *ast.AttributeExpression, value typesystem.Type, tok token.Token) {
	obj := c.resolve(c.inferExpression(target.Object))
	ext, ok := obj.(typesystem.TExt)
	if !ok {
		c.fail(newTypeError(tok, "cannot set attribute %s on a value of type %s", target.Name, obj))
		return
	}

	if ext.Name != c.req.Class {
		attrType, err := c.foreignAttribute(ext.Name, target.Name, tok)
		if err != nil {
			c.fail(err)
			return
		}
		c.unify(attrType, value, tok)
		return
	}

	attrType, known := c.attribute(target.Name)
	if !known {
		c.written[target.Name] = len(c.writes)
		c.writes = append(c.writes, AttrWrite{Name: target.Name, Type: value, New: true, Token: tok})
		return
	}

	s, err := typesystem.UnifyAssignable(c.resolve(attrType), c.resolve(value), c.req.Hierarchy)
	if err != nil {
		c.fail(&AttributeTypeError{
			Class:    c.req.Class,
			Name:     target.Name,
			Expected: c.resolve(attrType),
			Actual:   c.resolve(value),
			Token:    tok,
		})
		return
	}
	c.subst = s.Compose(c.subst)
	if _, seen := c.written[target.Name]; !seen {
		c.written[target.Name] = len(c.writes)
		c.writes = append(c.writes, AttrWrite{Name: target.Name, Type: attrType, Token: tok})
	}
}

func (c *inferCtx) foreignAttribute(class, name string, tok token.Token) (typesystem.Type, error) {
	if c.req.Others == nil || !c.req.Others.Finalized(class) {
		return nil, newTypeError(tok, "class %s has no finalized layout yet", class)
	}
	t, ok := c.req.Others.Attribute(class, name)
	if !ok {
		return nil, newTypeError(tok, "class %s has no attribute %s", class, name)
	}
	return t, nil
}
