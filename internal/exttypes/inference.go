package exttypes

import (
	"errors"
	"fmt"

	"github.com/funvibe/jitclass/internal/analyzer"
	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/token"
	"github.com/funvibe/jitclass/internal/typesystem"
)

// classEnv is the symbol environment of one class under compilation. It is
// owned by a single ExtensionCompiler and never shared.
type classEnv struct {
	name    string
	def     *ast.ClassDef
	env     *symbols.Env
	parent  *ExtensionType
	scope   *symbols.SymbolTable
	attrs   *AttributeTable
	methods *MethodTable
	own     []*Method // declared order, __init__ included
	subst   typesystem.Subst
	supply  *typesystem.VarSupply
}

func newClassEnv(env *symbols.Env, def *ast.ClassDef, parent *ExtensionType, supply *typesystem.VarSupply) *classEnv {
	return &classEnv{
		name:   def.Name,
		def:    def,
		env:    env,
		parent: parent,
		scope:  env.NewClassScope(def.Name),
		subst:  typesystem.Subst{},
		supply: supply,
	}
}

func (c *classEnv) resolve(t typesystem.Type) typesystem.Type {
	return t.Apply(c.subst)
}

func (c *classEnv) resolveSig(sig typesystem.TFunc) typesystem.TFunc {
	return c.resolve(sig).(typesystem.TFunc)
}

func (c *classEnv) define(name string, t typesystem.Type, kind symbols.SymbolKind, owner string) {
	if typesystem.IsConcrete(t) {
		c.scope.Define(name, t, kind, owner)
	} else {
		c.scope.DefinePending(name, t, kind, owner)
	}
}

// bind installs the collected tables and mirrors their members into the
// class scope.
func (c *classEnv) bind(attrs *AttributeTable, mt *MethodTable, own []*Method) {
	c.attrs, c.methods, c.own = attrs, mt, own
	for _, a := range attrs.Attributes() {
		c.define(a.Name, a.Type, symbols.AttributeSymbol, a.Owner)
	}
	for _, s := range mt.Slots {
		c.define(s.Name, s.Signature, symbols.MethodSymbol, s.Owner)
	}
	if mt.Init != nil {
		c.define(mt.Init.Name, mt.Init.Signature, symbols.MethodSymbol, c.name)
	}
	c.applySubst()
}

func (c *classEnv) addAttribute(a *Attribute) error {
	if err := c.attrs.Add(a); err != nil {
		return err
	}
	c.define(a.Name, a.Type, symbols.AttributeSymbol, a.Owner)
	return nil
}

// initSettled reports whether the initializer, if any, has been committed.
func (c *classEnv) initSettled() bool {
	return c.methods.Init == nil || c.methods.Init.Committed
}

// applySubst rewrites every type owned by the class with the class-wide
// substitution.
func (c *classEnv) applySubst() {
	c.scope.Apply(c.subst)
	for _, a := range c.attrs.Attributes() {
		if a.Origin != OriginInherited {
			a.Type = c.resolve(a.Type)
		}
	}
	for _, m := range c.own {
		m.Signature = c.resolveSig(m.Signature)
		for node, t := range m.Types {
			m.Types[node] = c.resolve(t)
		}
	}
	for _, s := range c.methods.Slots {
		if s.Method != nil {
			s.Signature = s.Method.Signature
		}
	}
}

// pending returns the uncommitted methods: __init__ first, then the rest
// in declared order.
func (c *classEnv) pending() []*Method {
	var out []*Method
	if init := c.methods.Init; init != nil && !init.Committed {
		out = append(out, init)
	}
	for _, m := range c.own {
		if !m.Committed && !m.IsInitializer() {
			out = append(out, m)
		}
	}
	return out
}

// unresolved lists every member whose type still has free variables.
func (c *classEnv) unresolved() []string {
	var items []string
	for _, sym := range c.scope.Symbols() {
		if !sym.IsPending {
			continue
		}
		items = append(items, fmt.Sprintf("%s %s: %s", sym.Kind, sym.Name, sym.Type))
	}
	return items
}

// classView is the class as seen by the inference run of one method.
type classView struct {
	cls    *classEnv
	method *Method
}

func (v classView) Attribute(name string) (typesystem.Type, bool) {
	sym, ok := v.cls.scope.Find(name)
	if !ok || sym.Kind != symbols.AttributeSymbol {
		return nil, false
	}
	t := v.cls.resolve(sym.Type)
	// Until __init__ has run, a variable-typed attribute is treated as not
	// yet known by other methods.
	if !typesystem.IsConcrete(t) && !v.method.IsInitializer() && !v.cls.initSettled() {
		return nil, false
	}
	return t, true
}

func (v classView) Method(name string) (typesystem.TFunc, bool, bool) {
	slot, ok := v.cls.methods.Lookup(name)
	if !ok {
		return typesystem.TFunc{}, false, false
	}
	if slot.Method == nil {
		return slot.Signature, true, true
	}
	sig := v.cls.resolveSig(slot.Method.Signature)
	return sig, slot.Method.Committed || typesystem.IsConcrete(sig.ReturnType), true
}

// envLookup resolves members of finalized classes in the environment.
type envLookup struct {
	env *symbols.Env
}

func (l envLookup) extension(class string) (*ExtensionType, bool) {
	e, ok := l.env.LookupExtension(class)
	if !ok {
		return nil, false
	}
	t, ok := e.(*ExtensionType)
	return t, ok && t.Finalized()
}

func (l envLookup) Finalized(class string) bool {
	_, ok := l.extension(class)
	return ok
}

func (l envLookup) Attribute(class, name string) (typesystem.Type, bool) {
	t, ok := l.extension(class)
	if !ok {
		return nil, false
	}
	a, ok := t.Attribute(name)
	if !ok {
		return nil, false
	}
	return a.Type, true
}

func (l envLookup) Method(class, name string) (typesystem.TFunc, bool) {
	t, ok := l.extension(class)
	if !ok {
		return typesystem.TFunc{}, false
	}
	s, ok := t.Slot(name)
	return s.Signature, ok
}

// Inferencer drives the inference engine over one class in passes until
// every method body is settled.
type Inferencer struct {
	// MaxPasses bounds the pass loop of InferMethodTypes.
	MaxPasses int
}

func (inf *Inferencer) run(cls *classEnv, m *Method) *analyzer.Result {
	return analyzer.InferMethod(&analyzer.Request{
		Class:     cls.name,
		Method:    m.Def,
		Signature: cls.resolveSig(m.Signature),
		Self:      classView{cls: cls, method: m},
		Others:    envLookup{env: cls.env},
		Hierarchy: cls.env,
		Supply:    cls.supply,
	})
}

// InferAttributeTypes runs the initializer once so that attribute types it
// establishes are known before other methods are inferred. A blocked
// initializer is left for InferMethodTypes.
func (inf *Inferencer) InferAttributeTypes(cls *classEnv) error {
	init := cls.methods.Init
	if init == nil || init.Committed {
		return nil
	}
	res := inf.run(cls, init)
	if res.Err != nil {
		return cls.inferenceError(init, res.Err)
	}
	if len(res.Blocked) > 0 {
		log.Debugf("%s.%s deferred: waits on %v", cls.name, init.Name, res.Blocked)
		return nil
	}
	return cls.commit(init, res)
}

// InferMethodTypes infers every uncommitted method. Each pass visits the
// pending methods in order and commits the ones that settle. A pass that
// commits nothing while methods are still blocked is a stall; so is
// reaching MaxPasses.
func (inf *Inferencer) InferMethodTypes(cls *classEnv) error {
	maxPasses := inf.MaxPasses
	if maxPasses < 1 {
		maxPasses = 1
	}

	for pass := 1; ; pass++ {
		pending := cls.pending()
		if len(pending) == 0 {
			return nil
		}

		progress := false
		var blocked []diagnostics.BlockedMethod
		stuck := make(map[*Method]*analyzer.Result)
		for _, m := range pending {
			res := inf.run(cls, m)
			if res.Err != nil {
				return cls.inferenceError(m, res.Err)
			}
			if len(res.Blocked) > 0 {
				blocked = append(blocked, diagnostics.BlockedMethod{Method: m.Name, WaitingOn: res.Blocked})
				stuck[m] = res
				continue
			}
			if err := cls.commit(m, res); err != nil {
				return err
			}
			progress = true
		}
		log.Debugf("%s: inference pass %d, %d blocked", cls.name, pass, len(blocked))

		if len(blocked) == 0 {
			return nil
		}
		if !progress {
			if err := cls.unknownAttribute(pending, stuck); err != nil {
				return err
			}
		}
		if !progress || pass >= maxPasses {
			return &diagnostics.InferenceStalledError{
				Class:      cls.name,
				Passes:     pass,
				CapReached: progress,
				Blocked:    blocked,
			}
		}
	}
}

// unknownAttribute reports the first read of an attribute that is neither
// in the class nor assigned by any method still pending. Such a read can
// never be satisfied by another pass.
func (c *classEnv) unknownAttribute(pending []*Method, stuck map[*Method]*analyzer.Result) error {
	assigned := make(map[string]bool)
	for _, m := range pending {
		for _, name := range selfAssignments(m.Def) {
			assigned[name] = true
		}
	}
	for _, m := range pending {
		res, ok := stuck[m]
		if !ok {
			continue
		}
		for _, r := range res.Unknown {
			if _, ok := c.attrs.Lookup(r.Name); ok || assigned[r.Name] {
				continue
			}
			return newInferenceError(c.name, m.Name, r.Token, &analyzer.UnknownAttributeError{
				Class: c.name,
				Name:  r.Name,
				Known: c.scope.GetAllNames(symbols.AttributeSymbol),
				Token: r.Token,
			})
		}
	}
	return nil
}

// selfAssignments lists the attributes a method body assigns on self.
func selfAssignments(def *ast.MethodDef) []string {
	var names []string
	for _, stmt := range def.Body {
		if s, ok := stmt.(*ast.AttrAssignStatement); ok && s.Target.OnSelf() {
			names = append(names, s.Target.Name)
		}
	}
	return names
}

// commit folds a settled run into the class: the substitution, the final
// signature, and attributes first assigned by the method.
func (c *classEnv) commit(m *Method, res *analyzer.Result) error {
	c.subst = res.Subst.Compose(c.subst)
	m.Signature = res.Signature
	m.Types = res.Types
	m.Committed = true
	if err := c.scope.Update(m.Name, m.Signature); err != nil {
		return err
	}

	origin := OriginInferred
	if m.IsInitializer() {
		origin = OriginInitializer
	}
	for _, w := range res.AttrWrites {
		if !w.New {
			continue
		}
		// __init__ collected the attribute with a variable type that this
		// method could not see yet.
		if existing, ok := c.attrs.Lookup(w.Name); ok {
			if err := c.unifyAttribute(m, existing, w); err != nil {
				return err
			}
			continue
		}
		a := &Attribute{Name: w.Name, Type: w.Type, Offset: -1, Owner: c.name, Origin: origin, Pos: w.Token}
		if err := c.addAttribute(a); err != nil {
			return err
		}
		log.Debugf("%s.%s: %s attribute %s: %s", c.name, m.Name, origin, a.Name, a.Type)
	}
	c.applySubst()
	return nil
}

func (c *classEnv) unifyAttribute(m *Method, a *Attribute, w analyzer.AttrWrite) error {
	expected, actual := c.resolve(a.Type), c.resolve(w.Type)
	s, err := typesystem.UnifyAssignable(expected, actual, c.env)
	if err != nil {
		return c.inferenceError(m, &analyzer.AttributeTypeError{
			Class:    c.name,
			Name:     a.Name,
			Expected: expected,
			Actual:   actual,
			Token:    w.Token,
		})
	}
	c.subst = s.Compose(c.subst)
	return nil
}

// inferenceError converts an engine error into the compile error taxonomy.
func (c *classEnv) inferenceError(m *Method, err error) error {
	tok := m.Pos()
	var ate *analyzer.AttributeTypeError
	var te *analyzer.TypeError
	switch {
	case errors.As(err, &ate):
		if a, ok := c.attrs.Lookup(ate.Name); ok && a.Origin == OriginInherited {
			return &diagnostics.ConflictError{
				Class:      c.name,
				Parent:     a.Owner,
				Attribute:  ate.Name,
				ParentType: a.Type,
				ChildType:  ate.Actual,
			}
		}
		tok = ate.Token
	case errors.As(err, &te):
		tok = te.Token
	}
	return newInferenceError(c.name, m.Name, tok, err)
}

func newInferenceError(class, method string, tok token.Token, err error) *diagnostics.InferenceError {
	return &diagnostics.InferenceError{Class: class, Method: method, Line: tok.Line, Column: tok.Column, Err: err}
}
