package vm

import (
	"fmt"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// Layout answers where fields and vtable slots live. Offsets and slots are
// final by the time a method is compiled.
type Layout interface {
	Field(class, name string) (offset int, kind Kind, ok bool)
	Slot(class, name string) (int, bool)
}

// CompileRequest is everything needed to compile one method body.
type CompileRequest struct {
	Class     string
	Method    *ast.MethodDef
	Signature typesystem.TFunc // concrete
	Types     map[ast.Node]typesystem.Type
	Layout    Layout
	File      string

	// WrapEmitter, when set, may interpose on the instruction stream
	// (e.g. to capture it for annotation).
	WrapEmitter func(Emitter) Emitter
}

// CompileError reports a method body that cannot be lowered.
type CompileError struct {
	Line   int
	Column int
	Msg    string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

const maxLocals = 256

// Compiler lowers typed method bodies to bytecode.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// funcCompiler is the state for one method.
type funcCompiler struct {
	req     *CompileRequest
	chunk   *Chunk
	emitter Emitter
	locals  map[string]int
	nlocals int
}

// Compile compiles req.Method into a Function.
func (c *Compiler) Compile(req *CompileRequest) (fn *Function, err error) {
	chunk := NewChunk()
	chunk.File = req.File
	var emitter Emitter = &ChunkEmitter{Chunk: chunk}
	if req.WrapEmitter != nil {
		emitter = req.WrapEmitter(emitter)
	}

	fc := &funcCompiler{
		req:     req,
		chunk:   chunk,
		emitter: emitter,
		locals:  map[string]int{config.SelfName: 0},
		nlocals: 1,
	}

	fn = &Function{
		Name:   req.Class + "." + req.Method.Name,
		Class:  req.Class,
		Method: req.Method.Name,
		Arity:  len(req.Method.Params),
		Chunk:  chunk,
	}
	if fn.ReturnKind, err = KindOf(req.Signature.ReturnType); err != nil {
		return nil, &CompileError{Line: req.Method.Token.Line, Column: req.Method.Token.Column, Msg: err.Error()}
	}
	for i, p := range req.Method.Params {
		if i >= len(req.Signature.Params) {
			return nil, &CompileError{Line: p.Token.Line, Column: p.Token.Column, Msg: "signature does not cover parameter " + p.Name}
		}
		kind, err := KindOf(req.Signature.Params[i])
		if err != nil {
			return nil, &CompileError{Line: p.Token.Line, Column: p.Token.Column, Msg: err.Error()}
		}
		fn.ParamKinds = append(fn.ParamKinds, kind)
		fc.locals[p.Name] = fc.nlocals
		fc.nlocals++
	}

	for _, stmt := range req.Method.Body {
		if err := fc.statement(stmt); err != nil {
			return nil, err
		}
	}
	end := req.Method.Token
	if n := len(req.Method.Body); n > 0 {
		end = req.Method.Body[n-1].GetToken()
	}
	fc.emit(OP_NIL, end)
	fc.emit(OP_RETURN, end)

	fn.NumLocals = fc.nlocals
	return fn, nil
}

func (fc *funcCompiler) emit(op Opcode, tok token.Token, operands ...int) int {
	return fc.emitter.Emit(Instruction{Op: op, Operands: operands, Line: tok.Line, Column: tok.Column})
}

func errorAt(tok token.Token, format string, args ...interface{}) error {
	return &CompileError{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, args...)}
}

func (fc *funcCompiler) statement(stmt ast.Statement) error {
	fc.emitter.UpdatePos(stmt.GetToken().Line)

	switch s := stmt.(type) {
	case *ast.AttrAssignStatement:
		if err := fc.expression(s.Target.Object); err != nil {
			return err
		}
		if err := fc.expression(s.Value); err != nil {
			return err
		}
		offset, kind, err := fc.field(s.Target)
		if err != nil {
			return err
		}
		fc.emit(OP_SET_FIELD, s.Token, offset, int(kind))

	case *ast.AssignStatement:
		if err := fc.expression(s.Value); err != nil {
			return err
		}
		idx, ok := fc.locals[s.Name]
		if !ok {
			if fc.nlocals >= maxLocals {
				return errorAt(s.Token, "too many local variables")
			}
			idx = fc.nlocals
			fc.locals[s.Name] = idx
			fc.nlocals++
		}
		fc.emit(OP_SET_LOCAL, s.Token, idx)

	case *ast.ReturnStatement:
		if s.Value == nil {
			fc.emit(OP_NIL, s.Token)
		} else if err := fc.expression(s.Value); err != nil {
			return err
		}
		fc.emit(OP_RETURN, s.Token)

	case *ast.ExpressionStatement:
		if err := fc.expression(s.Expression); err != nil {
			return err
		}
		fc.emit(OP_POP, s.Token)

	case *ast.PassStatement:

	default:
		return errorAt(stmt.GetToken(), "unsupported statement %T", stmt)
	}
	return nil
}

// receiverClass returns the extension type an expression evaluates to.
func (fc *funcCompiler) receiverClass(expr ast.Expression) (string, error) {
	if id, ok := expr.(*ast.Identifier); ok && id.IsSelf() {
		return fc.req.Class, nil
	}
	if t, ok := fc.req.Types[expr]; ok {
		if ext, ok := t.(typesystem.TExt); ok {
			return ext.Name, nil
		}
		return "", errorAt(expr.GetToken(), "%s is not an extension type", t)
	}
	return "", errorAt(expr.GetToken(), "no type recorded for receiver")
}

func (fc *funcCompiler) field(attr *ast.AttributeExpression) (int, Kind, error) {
	class, err := fc.receiverClass(attr.Object)
	if err != nil {
		return 0, 0, err
	}
	offset, kind, ok := fc.req.Layout.Field(class, attr.Name)
	if !ok {
		return 0, 0, errorAt(attr.Token, "class %s has no native attribute %s", class, attr.Name)
	}
	return offset, kind, nil
}

func (fc *funcCompiler) constant(v Value, tok token.Token) error {
	idx := fc.chunk.AddConstant(v)
	if idx > 0xFFFF {
		return errorAt(tok, "too many constants")
	}
	ins := Instruction{Op: OP_CONST, Operands: []int{idx}, Line: tok.Line, Column: tok.Column, Comment: v.String()}
	fc.emitter.Emit(ins)
	return nil
}

var binaryOps = map[string]Opcode{
	"+":   OP_ADD,
	"-":   OP_SUB,
	"*":   OP_MUL,
	"/":   OP_DIV,
	"==":  OP_EQ,
	"!=":  OP_NE,
	"<":   OP_LT,
	"<=":  OP_LE,
	">":   OP_GT,
	">=":  OP_GE,
	"and": OP_AND,
	"or":  OP_OR,
}

func (fc *funcCompiler) expression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return fc.constant(IntVal(e.Value), e.Token)
	case *ast.FloatLiteral:
		return fc.constant(FloatVal(e.Value), e.Token)
	case *ast.BooleanLiteral:
		return fc.constant(BoolVal(e.Value), e.Token)
	case *ast.StringLiteral:
		return fc.constant(TextVal(e.Value), e.Token)

	case *ast.Identifier:
		idx, ok := fc.locals[e.Value]
		if !ok {
			return errorAt(e.Token, "undefined name %s", e.Value)
		}
		fc.emit(OP_GET_LOCAL, e.Token, idx)

	case *ast.AttributeExpression:
		if err := fc.expression(e.Object); err != nil {
			return err
		}
		offset, kind, err := fc.field(e)
		if err != nil {
			return err
		}
		fc.emit(OP_GET_FIELD, e.Token, offset, int(kind))

	case *ast.MethodCallExpression:
		if err := fc.expression(e.Receiver); err != nil {
			return err
		}
		for _, arg := range e.Arguments {
			if err := fc.expression(arg); err != nil {
				return err
			}
		}
		class, err := fc.receiverClass(e.Receiver)
		if err != nil {
			return err
		}
		slot, ok := fc.req.Layout.Slot(class, e.Name)
		if !ok {
			return errorAt(e.Token, "class %s has no virtual method %s", class, e.Name)
		}
		fc.emit(OP_CALL_METHOD, e.Token, slot, len(e.Arguments))

	case *ast.CastExpression:
		if err := fc.expression(e.Value); err != nil {
			return err
		}
		target, ok := typesystem.LookupPrimitive(e.TypeName)
		if !ok {
			return errorAt(e.Token, "unknown native type %s", e.TypeName)
		}
		kind, err := KindOf(target)
		if err != nil {
			return errorAt(e.Token, "%v", err)
		}
		fc.emit(OP_CAST, e.Token, int(kind))

	case *ast.PrefixExpression:
		if err := fc.expression(e.Right); err != nil {
			return err
		}
		switch e.Operator {
		case "-":
			fc.emit(OP_NEG, e.Token)
		case "not":
			fc.emit(OP_NOT, e.Token)
		default:
			return errorAt(e.Token, "unknown operator %s", e.Operator)
		}

	case *ast.InfixExpression:
		op, ok := binaryOps[e.Operator]
		if !ok {
			return errorAt(e.Token, "unknown operator %s", e.Operator)
		}
		if err := fc.expression(e.Left); err != nil {
			return err
		}
		if err := fc.expression(e.Right); err != nil {
			return err
		}
		fc.emit(op, e.Token)

	default:
		return errorAt(expr.GetToken(), "unsupported expression %T", expr)
	}
	return nil
}
