// Package analyzer infers the types of one method body against the
// current view of its class. It is the inference engine the extension
// compiler drives pass by pass: a run either settles the method or reports
// what it is blocked on, and never mutates the class itself.
package analyzer

import (
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jitclass.analyzer")

// ClassView is the class under compilation as seen by one inference run.
// Types are already resolved with everything committed so far.
type ClassView interface {
	// Attribute returns the type of a known attribute (own or inherited).
	Attribute(name string) (typesystem.Type, bool)
	// Method returns a method signature. settled is false while the
	// method's return type may still change.
	Method(name string) (sig typesystem.TFunc, settled bool, ok bool)
}

// ClassLookup resolves members of other, already finalized classes.
type ClassLookup interface {
	Finalized(class string) bool
	Attribute(class, name string) (typesystem.Type, bool)
	Method(class, name string) (typesystem.TFunc, bool)
}

// Request describes one inference run.
type Request struct {
	Class     string
	Method    *ast.MethodDef
	Signature typesystem.TFunc // seeded signature; unannotated parts are type variables
	Self      ClassView
	Others    ClassLookup         // may be nil
	Hierarchy typesystem.Resolver // may be nil
	Supply    *typesystem.VarSupply
}

// AttrWrite is an assignment to an attribute of the receiver.
type AttrWrite struct {
	Name  string
	Type  typesystem.Type
	New   bool // the attribute was not known to the class view
	Token token.Token
}

// AttrRead is a read of a receiver attribute the class view did not know.
type AttrRead struct {
	Name  string
	Token token.Token
}

// Result is the outcome of one run. When Blocked is non-empty the other
// fields are provisional and must not be committed.
type Result struct {
	Signature  typesystem.TFunc
	AttrWrites []AttrWrite
	Blocked    []string
	Unknown    []AttrRead // reads behind the "attribute" entries of Blocked
	Subst      typesystem.Subst
	Types      map[ast.Node]typesystem.Type // expression types, resolved with Subst
	Err        error
}

// Settled reports whether the run may be committed.
func (r *Result) Settled() bool {
	return len(r.Blocked) == 0 && r.Err == nil
}

// InferMethod runs inference over one method body.
func InferMethod(req *Request) *Result {
	supply := req.Supply
	if supply == nil {
		supply = typesystem.NewVarSupply("m")
	}
	ctx := &inferCtx{
		req:     req,
		supply:  supply,
		subst:   typesystem.Subst{},
		locals:  make(map[string]typesystem.Type),
		types:   make(map[ast.Node]typesystem.Type),
		written: make(map[string]int),
		blocked: make(map[string]bool),
	}
	for i, p := range req.Method.Params {
		if i < len(req.Signature.Params) {
			ctx.locals[p.Name] = req.Signature.Params[i]
		}
	}

	ctx.inferBody(req.Method.Body)

	ret := req.Signature.ReturnType.Apply(ctx.subst)
	if tv, ok := ret.(typesystem.TVar); ok && !ctx.sawValueReturn && ctx.err == nil {
		// No value is ever returned: the method returns void.
		ctx.unify(tv, typesystem.Void, req.Method.Token)
		ret = ret.Apply(ctx.subst)
	} else if !ctx.sawValueReturn && typesystem.IsConcrete(ret) && !typesystem.Equal(ret, typesystem.Void) {
		ctx.fail(newTypeError(req.Method.Token, "missing return: %s declares %s but never returns a value", req.Method.Name, ret))
	}
	params := make([]typesystem.Type, len(req.Signature.Params))
	for i, p := range req.Signature.Params {
		params[i] = p.Apply(ctx.subst)
	}

	res := &Result{
		Signature: typesystem.TFunc{Params: params, ReturnType: ret},
		Subst:     ctx.subst,
		Blocked:   ctx.blockedOrder,
		Unknown:   ctx.unknown,
		Err:       ctx.err,
	}
	res.Types = make(map[ast.Node]typesystem.Type, len(ctx.types))
	for node, t := range ctx.types {
		res.Types[node] = t.Apply(ctx.subst)
	}
	for _, w := range ctx.writes {
		w.Type = w.Type.Apply(ctx.subst)
		res.AttrWrites = append(res.AttrWrites, w)
	}

	if len(res.Blocked) > 0 {
		log.Debugf("%s.%s blocked on %v", req.Class, req.Method.Name, res.Blocked)
	} else if res.Err == nil {
		log.Debugf("%s.%s: %s", req.Class, req.Method.Name, res.Signature)
	}
	return res
}
