package exttypes

import (
	"errors"
	"fmt"

	"github.com/funvibe/jitclass/internal/ast"
	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/typesystem"
	"github.com/funvibe/jitclass/internal/vm"
	"github.com/google/uuid"
)

// ErrAborted is returned by a phase called after an earlier phase failed.
var ErrAborted = errors.New("compilation aborted by an earlier failure")

type phase int

const (
	phaseNew phase = iota
	phaseInferred
	phaseFinalized
	phaseValidated
	phaseCompiled
	phaseFailed
)

var phaseNames = map[phase]string{
	phaseNew:       "start",
	phaseInferred:  config.PhaseInfer,
	phaseFinalized: config.PhaseFinalize,
	phaseValidated: config.PhaseValidate,
	phaseCompiled:  config.PhaseCompile,
}

// ExtensionCompiler turns one class into an ExtensionType. Its phases must
// run in order: Infer, FinalizeTables, Validate, Compile. A failing phase
// aborts the rest; the parent type is only read.
type ExtensionCompiler struct {
	opts Options
	env  *symbols.Env
	def  *ast.ClassDef

	cls   *classEnv
	ext   *ExtensionType
	phase phase
}

// NewExtensionCompiler prepares the compilation of class against env.
func NewExtensionCompiler(env *symbols.Env, class *ast.ClassDef, opts Options) *ExtensionCompiler {
	return &ExtensionCompiler{opts: opts.withDefaults(), env: env, def: class}
}

func (c *ExtensionCompiler) enter(name string, want phase) error {
	if c.phase == phaseFailed {
		return ErrAborted
	}
	if c.phase != want {
		return &diagnostics.PhaseOrderError{Class: c.def.Name, Phase: name, Want: phaseNames[want]}
	}
	return nil
}

func (c *ExtensionCompiler) fail(err error) error {
	c.phase = phaseFailed
	return err
}

func (c *ExtensionCompiler) resolveParent() (*ExtensionType, error) {
	if c.def.Parent == "" {
		return nil, nil
	}
	if c.def.Parent == c.def.Name {
		return nil, fmt.Errorf("class %s inherits from itself", c.def.Name)
	}
	parent, ok := envLookup{env: c.env}.extension(c.def.Parent)
	if !ok {
		return nil, fmt.Errorf("parent class %s of %s is not compiled", c.def.Parent, c.def.Name)
	}
	return parent, nil
}

// Infer collects attributes and methods, merges them with the parent's
// tables and runs inference until every method settles.
func (c *ExtensionCompiler) Infer() error {
	if err := c.enter(config.PhaseInfer, phaseNew); err != nil {
		return err
	}
	parent, err := c.resolveParent()
	if err != nil {
		return c.fail(err)
	}

	mode := c.opts.Mode
	supply := typesystem.NewVarSupply("t")
	c.ext = &ExtensionType{
		ID:      uuid.New(),
		Name:    c.def.Name,
		Mode:    mode.Name,
		Parent:  parent,
		Methods: make(map[string]*FuncEnv),
		arena:   c.opts.Arena,
	}

	declared, err := mode.Attributes.CollectFromClassBody(c.def, c.env)
	if err != nil {
		return c.fail(err)
	}
	methods, err := mode.Methods.CollectMethods(c.def, c.env, supply)
	if err != nil {
		return c.fail(err)
	}
	var init *Method
	for _, m := range methods {
		if m.IsInitializer() {
			init = m
		}
	}
	pending := append(declared, mode.Attributes.CollectFromInitializer(c.def.Name, init, supply)...)

	table, subst, err := mode.Attributes.MergeWithParent(c.def.Name, parent, pending)
	if err != nil {
		return c.fail(err)
	}
	mt, err := mode.Methods.AssignSlots(c.def.Name, methods, parent, c.env)
	if err != nil {
		return c.fail(err)
	}
	for _, a := range table.Attributes() {
		if _, clash := mt.Lookup(a.Name); clash {
			return c.fail(fmt.Errorf("class %s: %s is both an attribute and a method", c.def.Name, a.Name))
		}
	}

	c.cls = newClassEnv(c.env, c.def, parent, supply)
	c.cls.subst = subst
	c.cls.bind(table, mt, methods)

	inf := &Inferencer{MaxPasses: c.opts.MaxPasses}
	if err := inf.InferAttributeTypes(c.cls); err != nil {
		return c.fail(err)
	}
	if err := inf.InferMethodTypes(c.cls); err != nil {
		return c.fail(err)
	}

	c.phase = phaseInferred
	log.Infof("%s: inferred %d attribute(s), %d method(s)", c.def.Name, table.Len(), len(methods))
	return nil
}

// FinalizeTables fixes attribute offsets and the vtable type, and
// generates field accessors. Every type must be concrete by now.
func (c *ExtensionCompiler) FinalizeTables() error {
	if err := c.enter(config.PhaseFinalize, phaseInferred); err != nil {
		return err
	}
	cls, ext := c.cls, c.ext
	cls.applySubst()
	if items := cls.unresolved(); len(items) > 0 {
		return c.fail(&diagnostics.UnresolvedTypeError{Class: cls.name, Items: items})
	}

	if cls.parent != nil {
		for _, slot := range cls.methods.Slots {
			if slot.Origin != SlotOverride {
				continue
			}
			ps := cls.parent.VTableType.Slots[slot.Index]
			inherited := &Slot{Index: ps.Index, Name: ps.Name, Signature: ps.Signature, Owner: ps.Owner}
			if err := checkOverride(cls.name, inherited, slot.Signature, c.env); err != nil {
				return c.fail(err)
			}
		}
	}

	mode := c.opts.Mode
	mode.Attributes.Order(cls.attrs, cls.parent)
	vt, err := mode.VTables.BuildType(cls.name, cls.methods, cls.parent)
	if err != nil {
		return c.fail(err)
	}

	ext.Attributes = cls.attrs.Attributes()
	ext.Size = cls.attrs.Size
	ext.Align = cls.attrs.Align
	ext.attrIndex = make(map[string]*Attribute, len(ext.Attributes))
	for _, a := range ext.Attributes {
		ext.attrIndex[a.Name] = a
	}
	ext.VTableType = vt
	ext.Accessors = generateAccessors(ext)

	c.phase = phaseFinalized
	log.Debugf("%s: size %d, %d slot(s)", ext.Name, ext.Size, vt.Len())
	return nil
}

// Validate runs every validator hook and reports all violations at once.
func (c *ExtensionCompiler) Validate() error {
	if err := c.enter(config.PhaseValidate, phaseFinalized); err != nil {
		return err
	}
	if violations := c.opts.violations(c.ext, c.cls.own); len(violations) > 0 {
		return c.fail(&diagnostics.ValidationError{Class: c.ext.Name, Violations: violations})
	}
	c.phase = phaseValidated
	return nil
}

// Compile compiles every method the class defines, inherits the parent's
// pointers for the rest and populates the vtable. On failure every entry
// point installed for the class is released.
func (c *ExtensionCompiler) Compile() (*ExtensionType, error) {
	if err := c.enter(config.PhaseCompile, phaseValidated); err != nil {
		return nil, err
	}
	cls, ext := c.cls, c.ext
	mc := &MethodCompiler{Backend: c.opts.Backend, Arena: c.opts.Arena, Annotate: c.opts.Annotate, File: c.opts.File}
	layout := layoutResolver{self: ext, env: c.env}

	for _, m := range cls.own {
		fe, err := mc.Compile(m, cls, layout)
		if err != nil {
			c.release()
			return nil, c.fail(err)
		}
		if m.IsInitializer() {
			ext.Initializer = fe
		} else {
			ext.Methods[m.Name] = fe
		}
	}
	if ext.Initializer == nil && cls.parent != nil {
		ext.Initializer = cls.parent.Initializer
	}

	vtabs := c.opts.Mode.VTables
	for _, slot := range cls.methods.Slots {
		if slot.Origin == SlotInherited {
			slot.Pointer = vtabs.InheritSlot(cls.parent.VTable, slot.Index)
		}
	}
	table, err := vtabs.Build(ext.VTableType, cls.methods)
	if err != nil {
		c.release()
		return nil, c.fail(err)
	}
	ext.VTable = table
	ext.finalized = true

	c.phase = phaseCompiled
	log.Infof("%s: compiled %d method(s)", ext.Name, len(ext.Methods))
	return ext, nil
}

// release frees the code compiled for this class.
func (c *ExtensionCompiler) release() {
	releaseCode(c.opts.Arena, c.ext)
}

// releaseCode frees the functions compiled for ext. An inherited
// initializer belongs to the parent and is left installed.
func releaseCode(arena *vm.CodeArena, ext *ExtensionType) {
	for _, fe := range ext.Methods {
		arena.Release(fe.Pointer)
	}
	if init := ext.Initializer; init != nil && init.Method != nil && init.Method.Owner == ext.Name {
		arena.Release(init.Pointer)
	}
	ext.Methods = make(map[string]*FuncEnv)
	ext.Initializer = nil
	ext.finalized = false
}

// run runs the four phases in order and names the one that failed.
func (c *ExtensionCompiler) run() (*ExtensionType, string, error) {
	if err := c.Infer(); err != nil {
		return nil, config.PhaseInfer, err
	}
	if err := c.FinalizeTables(); err != nil {
		return nil, config.PhaseFinalize, err
	}
	if err := c.Validate(); err != nil {
		return nil, config.PhaseValidate, err
	}
	ext, err := c.Compile()
	if err != nil {
		return nil, config.PhaseCompile, err
	}
	return ext, "", nil
}

// CreateExtension compiles class and registers the result in env. Any
// failure is reported as a *diagnostics.CompileError naming the phase;
// nothing is registered in that case.
func CreateExtension(env *symbols.Env, class *ast.ClassDef, opts Options) (*ExtensionType, error) {
	if err := env.DeclareClass(class); err != nil {
		return nil, &diagnostics.CompileError{Class: class.Name, Phase: config.PhaseInfer, Err: err}
	}

	c := NewExtensionCompiler(env, class, opts)
	ext, phase, err := c.run()
	if err != nil {
		env.Undeclare(class.Name)
		log.Errorf("%s: %s phase failed: %s", class.Name, phase, err)
		return nil, &diagnostics.CompileError{Class: class.Name, Phase: phase, Err: err}
	}
	if err := env.Register(ext); err != nil {
		c.release()
		return nil, &diagnostics.CompileError{Class: class.Name, Phase: config.PhaseCompile, Err: err}
	}
	return ext, nil
}

// Unload removes a registered type from env and releases its compiled
// code. A type that registered subclasses still inherit from cannot be
// unloaded; existing instances must not be used afterwards.
func Unload(env *symbols.Env, ext *ExtensionType) error {
	for _, name := range env.Extensions() {
		other, ok := env.LookupExtension(name)
		if ok && other.ParentName() == ext.Name {
			return fmt.Errorf("cannot unload %s: %s inherits from it", ext.Name, name)
		}
	}
	if !env.Unload(ext.Name) {
		return fmt.Errorf("extension type %s is not registered", ext.Name)
	}
	releaseCode(ext.arena, ext)
	log.Infof("unloaded %s", ext.Name)
	return nil
}

// UnloadAll unloads exts, subclasses before their parents. Types that
// other registered types still inherit from are left in place and
// reported.
func UnloadAll(env *symbols.Env, exts []*ExtensionType) error {
	pending := exts
	for len(pending) > 0 {
		var rest []*ExtensionType
		var errs []error
		for _, ext := range pending {
			if err := Unload(env, ext); err != nil {
				rest = append(rest, ext)
				errs = append(errs, err)
			}
		}
		if len(rest) == len(pending) {
			return errors.Join(errs...)
		}
		pending = rest
	}
	return nil
}
