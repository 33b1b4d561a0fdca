package parser

import (
	"fmt"
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

const (
	_ int = iota
	LOWEST
	OR_PREC
	AND_PREC
	NOT_PREC
	EQUALS
	LESSGREATER
	SUM
	PRODUCT
	PREFIX
	CALL
)

var precedences = map[token.TokenType]int{
	token.OR:     OR_PREC,
	token.AND:    AND_PREC,
	token.EQ:     EQUALS,
	token.NOT_EQ: EQUALS,
	token.LT:     LESSGREATER,
	token.LTE:    LESSGREATER,
	token.GT:     LESSGREATER,
	token.GTE:    LESSGREATER,
	token.PLUS:   SUM,
	token.MINUS:  SUM,
	token.STAR:   PRODUCT,
	token.SLASH:  PRODUCT,
	token.DOT:    CALL,
}

// Parser builds class definitions from a token stream.
type Parser struct {
	tokens []token.Token
	pos    int
	errors []*diagnostics.DiagnosticError
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Errors returns every diagnostic recorded while parsing.
func (p *Parser) Errors() []*diagnostics.DiagnosticError {
	return p.errors
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() token.Token {
	if p.pos+1 >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) next() token.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) curIs(t token.TokenType) bool { return p.cur().Type == t }

func (p *Parser) expect(t token.TokenType, what string) (token.Token, bool) {
	tok := p.cur()
	if tok.Type != t {
		p.errorf(diagnostics.ErrP001, tok, "expected %s, got %s", what, describe(tok))
		return tok, false
	}
	p.next()
	return tok, true
}

func (p *Parser) errorf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	if tok.Type == token.ILLEGAL {
		code = diagnostics.ErrP002
	}
	p.errors = append(p.errors, diagnostics.NewError(code, tok, fmt.Sprintf(format, args...)))
}

// synchronize skips the rest of the current logical line.
func (p *Parser) synchronize() {
	for !p.curIs(token.NEWLINE) && !p.curIs(token.EOF) && !p.curIs(token.DEDENT) {
		p.next()
	}
	if p.curIs(token.NEWLINE) {
		p.next()
	}
}

// skipBlock skips an indented block after a failed header.
func (p *Parser) skipBlock() {
	p.synchronize()
	if !p.curIs(token.INDENT) {
		return
	}
	depth := 0
	for !p.curIs(token.EOF) {
		switch p.next().Type {
		case token.INDENT:
			depth++
		case token.DEDENT:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func describe(tok token.Token) string {
	switch tok.Type {
	case token.NEWLINE:
		return "end of line"
	case token.EOF:
		return "end of file"
	case token.INDENT:
		return "indent"
	case token.DEDENT:
		return "dedent"
	case token.ILLEGAL:
		return fmt.Sprintf("illegal input %q", tok.Lexeme)
	}
	return fmt.Sprintf("%q", tok.Lexeme)
}

// ParseProgram parses every class in the token stream.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	seen := make(map[string]bool)

	for !p.curIs(token.EOF) {
		switch p.cur().Type {
		case token.NEWLINE:
			p.next()
		case token.AT:
			p.parseDecorator()
		case token.CLASS:
			class := p.parseClass()
			if class == nil {
				continue
			}
			if seen[class.Name] {
				p.errorf(diagnostics.ErrP005, class.Token, "class %s defined twice", class.Name)
				continue
			}
			seen[class.Name] = true
			program.Classes = append(program.Classes, class)
		default:
			p.errorf(diagnostics.ErrP001, p.cur(), "expected class definition, got %s", describe(p.cur()))
			p.skipBlock()
		}
	}
	return program
}

// parseDecorator accepts and discards `@name` or `@name(...)` lines; the
// class is compiled the same way regardless.
func (p *Parser) parseDecorator() {
	p.next()
	if _, ok := p.expect(token.IDENT_LOWER, "decorator name"); !ok {
		p.synchronize()
		return
	}
	p.synchronize()
}

func (p *Parser) parseClass() *ast.ClassDef {
	class := &ast.ClassDef{Token: p.next()}

	nameTok, ok := p.expect(token.IDENT_LOWER, "class name")
	if !ok {
		p.skipBlock()
		return nil
	}
	class.Name = nameTok.Lexeme

	if p.curIs(token.LPAREN) {
		p.next()
		parentTok, ok := p.expect(token.IDENT_LOWER, "parent class name")
		if !ok {
			p.skipBlock()
			return nil
		}
		if parentTok.Lexeme != "object" {
			class.Parent = parentTok.Lexeme
		}
		if _, ok := p.expect(token.RPAREN, "')'"); !ok {
			p.skipBlock()
			return nil
		}
	}

	if !p.blockHeader() {
		p.skipBlock()
		return nil
	}

	methods := make(map[string]bool)
	for !p.curIs(token.DEDENT) && !p.curIs(token.EOF) {
		switch p.cur().Type {
		case token.NEWLINE:
			p.next()
		case token.PASS:
			p.next()
			p.expect(token.NEWLINE, "end of line")
		case token.AT:
			p.parseDecorator()
		case token.DEF:
			method := p.parseMethod()
			if method == nil {
				continue
			}
			if methods[method.Name] {
				p.errorf(diagnostics.ErrP005, method.Token, "method %s defined twice in class %s", method.Name, class.Name)
				continue
			}
			methods[method.Name] = true
			class.Methods = append(class.Methods, method)
		case token.IDENT_LOWER:
			if attr := p.parseAttrDecl(); attr != nil {
				class.Attrs = append(class.Attrs, attr)
			}
		default:
			p.errorf(diagnostics.ErrP001, p.cur(), "unexpected %s in class body", describe(p.cur()))
			p.synchronize()
		}
	}
	if p.curIs(token.DEDENT) {
		p.next()
	}
	return class
}

// blockHeader consumes `: NEWLINE INDENT`.
func (p *Parser) blockHeader() bool {
	if _, ok := p.expect(token.COLON, "':'"); !ok {
		return false
	}
	if _, ok := p.expect(token.NEWLINE, "end of line"); !ok {
		return false
	}
	_, ok := p.expect(token.INDENT, "indented block")
	return ok
}

func (p *Parser) parseAttrDecl() *ast.AttrDecl {
	nameTok := p.next()
	if !p.curIs(token.COLON) && !p.curIs(token.ASSIGN) {
		p.errorf(diagnostics.ErrP001, p.cur(), "expected ':' or '=' after attribute %s", nameTok.Lexeme)
		p.synchronize()
		return nil
	}
	p.next()
	typeTok, ok := p.expect(token.IDENT_LOWER, "attribute type")
	if !ok {
		p.synchronize()
		return nil
	}
	if _, ok := p.expect(token.NEWLINE, "end of line"); !ok {
		p.synchronize()
	}
	return &ast.AttrDecl{Token: nameTok, Name: nameTok.Lexeme, TypeName: typeTok.Lexeme}
}

func (p *Parser) parseMethod() *ast.MethodDef {
	method := &ast.MethodDef{Token: p.next()}

	nameTok, ok := p.expect(token.IDENT_LOWER, "method name")
	if !ok {
		p.skipBlock()
		return nil
	}
	method.Name = nameTok.Lexeme

	if _, ok := p.expect(token.LPAREN, "'('"); !ok {
		p.skipBlock()
		return nil
	}
	selfTok := p.cur()
	if selfTok.Type != token.IDENT_LOWER || selfTok.Lexeme != "self" {
		p.errorf(diagnostics.ErrP003, selfTok, "method %s must take self as its first parameter", method.Name)
		p.skipBlock()
		return nil
	}
	p.next()

	seen := map[string]bool{"self": true}
	for p.curIs(token.COMMA) {
		p.next()
		paramTok, ok := p.expect(token.IDENT_LOWER, "parameter name")
		if !ok {
			p.skipBlock()
			return nil
		}
		if seen[paramTok.Lexeme] {
			p.errorf(diagnostics.ErrP005, paramTok, "duplicate parameter %s", paramTok.Lexeme)
		}
		seen[paramTok.Lexeme] = true
		param := &ast.Param{Token: paramTok, Name: paramTok.Lexeme}
		if p.curIs(token.COLON) {
			p.next()
			typeTok, ok := p.expect(token.IDENT_LOWER, "parameter type")
			if !ok {
				p.skipBlock()
				return nil
			}
			param.TypeName = typeTok.Lexeme
		}
		method.Params = append(method.Params, param)
	}
	if _, ok := p.expect(token.RPAREN, "')'"); !ok {
		p.skipBlock()
		return nil
	}

	if p.curIs(token.ARROW) {
		p.next()
		retTok, ok := p.expect(token.IDENT_LOWER, "return type")
		if !ok {
			p.skipBlock()
			return nil
		}
		method.ReturnType = retTok.Lexeme
	}

	if !p.blockHeader() {
		p.skipBlock()
		return nil
	}

	for !p.curIs(token.DEDENT) && !p.curIs(token.EOF) {
		if p.curIs(token.NEWLINE) {
			p.next()
			continue
		}
		if stmt := p.parseStatement(); stmt != nil {
			method.Body = append(method.Body, stmt)
		}
	}
	if p.curIs(token.DEDENT) {
		p.next()
	}
	return method
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur().Type {
	case token.PASS:
		stmt := &ast.PassStatement{Token: p.next()}
		p.endOfStatement()
		return stmt
	case token.RETURN:
		stmt := &ast.ReturnStatement{Token: p.next()}
		if !p.curIs(token.NEWLINE) {
			stmt.Value = p.parseExpression(LOWEST)
			if stmt.Value == nil {
				p.synchronize()
				return nil
			}
		}
		p.endOfStatement()
		return stmt
	}

	start := p.cur()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		p.synchronize()
		return nil
	}

	if p.curIs(token.ASSIGN) {
		assignTok := p.next()
		value := p.parseExpression(LOWEST)
		if value == nil {
			p.synchronize()
			return nil
		}
		p.endOfStatement()
		switch target := expr.(type) {
		case *ast.Identifier:
			if target.IsSelf() {
				p.errorf(diagnostics.ErrP004, target.Token, "cannot assign to self")
				return nil
			}
			return &ast.AssignStatement{Token: target.Token, Name: target.Value, Value: value}
		case *ast.AttributeExpression:
			return &ast.AttrAssignStatement{Token: assignTok, Target: target, Value: value}
		default:
			p.errorf(diagnostics.ErrP004, start, "invalid assignment target")
			return nil
		}
	}

	p.endOfStatement()
	return &ast.ExpressionStatement{Token: start, Expression: expr}
}

func (p *Parser) endOfStatement() {
	if _, ok := p.expect(token.NEWLINE, "end of line"); !ok {
		p.synchronize()
	}
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for precedence < p.curPrecedence() {
		tok := p.cur()
		if tok.Type == token.DOT {
			left = p.parseAccess(left)
		} else {
			left = p.parseInfix(left)
		}
		if left == nil {
			return nil
		}
	}
	return left
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.cur().Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parsePrefix() ast.Expression {
	tok := p.cur()
	switch tok.Type {
	case token.INT:
		p.next()
		return &ast.IntegerLiteral{Token: tok, Value: tok.Literal.(int64)}
	case token.FLOAT:
		p.next()
		return &ast.FloatLiteral{Token: tok, Value: tok.Literal.(float64)}
	case token.STRING:
		p.next()
		return &ast.StringLiteral{Token: tok, Value: tok.Literal.(string)}
	case token.TRUE, token.FALSE:
		p.next()
		return &ast.BooleanLiteral{Token: tok, Value: tok.Type == token.TRUE}
	case token.MINUS:
		p.next()
		right := p.parseExpression(PREFIX)
		if right == nil {
			return nil
		}
		return &ast.PrefixExpression{Token: tok, Operator: "-", Right: right}
	case token.NOT:
		p.next()
		right := p.parseExpression(NOT_PREC)
		if right == nil {
			return nil
		}
		return &ast.PrefixExpression{Token: tok, Operator: "not", Right: right}
	case token.LPAREN:
		p.next()
		expr := p.parseExpression(LOWEST)
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(token.RPAREN, "')'"); !ok {
			return nil
		}
		return expr
	case token.IDENT_LOWER:
		p.next()
		if p.curIs(token.LPAREN) {
			return p.parseCast(tok)
		}
		return &ast.Identifier{Token: tok, Value: tok.Lexeme}
	}
	p.errorf(diagnostics.ErrP001, tok, "unexpected %s in expression", describe(tok))
	return nil
}

// parseCast parses `type(expr)`. Only native type names are callable
// without a receiver.
func (p *Parser) parseCast(nameTok token.Token) ast.Expression {
	if _, ok := typesystem.LookupPrimitive(nameTok.Lexeme); !ok {
		p.errorf(diagnostics.ErrP001, nameTok, "%s is not a native type; only methods and casts can be called", nameTok.Lexeme)
		return nil
	}
	p.next()
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}
	if _, ok := p.expect(token.RPAREN, "')'"); !ok {
		return nil
	}
	return &ast.CastExpression{Token: nameTok, TypeName: nameTok.Lexeme, Value: value}
}

func (p *Parser) parseAccess(object ast.Expression) ast.Expression {
	dotTok := p.next()
	nameTok, ok := p.expect(token.IDENT_LOWER, "attribute name")
	if !ok {
		return nil
	}
	if !p.curIs(token.LPAREN) {
		return &ast.AttributeExpression{Token: dotTok, Object: object, Name: nameTok.Lexeme}
	}

	call := &ast.MethodCallExpression{Token: p.next(), Receiver: object, Name: nameTok.Lexeme}
	if p.curIs(token.RPAREN) {
		p.next()
		return call
	}
	for {
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		call.Arguments = append(call.Arguments, arg)
		if !p.curIs(token.COMMA) {
			break
		}
		p.next()
	}
	if _, ok := p.expect(token.RPAREN, "')'"); !ok {
		return nil
	}
	return call
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	tok := p.next()
	prec := precedences[tok.Type]
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	op := tok.Lexeme
	return &ast.InfixExpression{Token: tok, Left: left, Operator: op, Right: right}
}
