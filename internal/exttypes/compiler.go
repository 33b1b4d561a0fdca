package exttypes

import (
	"errors"

	"github.com/funvibe/jitclass/internal/annotate"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/symbols"
	"github.com/funvibe/jitclass/internal/vm"
)

// Backend is the compilation pipeline a method body is handed to once the
// layout is fixed.
type Backend interface {
	Compile(req *vm.CompileRequest) (*vm.Function, error)
}

// MethodCompiler compiles method bodies and binds their entry points.
type MethodCompiler struct {
	Backend  Backend
	Arena    *vm.CodeArena
	Annotate bool
	File     string
}

// Compile lowers m against layout, installs the result in the arena and
// writes the entry point into m's slot, if it has one.
func (mc *MethodCompiler) Compile(m *Method, cls *classEnv, layout vm.Layout) (*FuncEnv, error) {
	req := &vm.CompileRequest{
		Class:     cls.name,
		Method:    m.Def,
		Signature: m.Signature,
		Types:     m.Types,
		Layout:    layout,
		File:      mc.File,
	}
	var capture *annotate.Capture
	if mc.Annotate {
		req.WrapEmitter = annotate.Wrapper(&capture)
	}

	fn, err := mc.Backend.Compile(req)
	if err != nil {
		pos := m.Pos()
		line, col := pos.Line, pos.Column
		var ce *vm.CompileError
		if errors.As(err, &ce) {
			line, col = ce.Line, ce.Column
		}
		return nil, &diagnostics.MethodCompilationError{Class: cls.name, Method: m.Name, Line: line, Column: col, Err: err}
	}

	env := &FuncEnv{
		Method:    m,
		Signature: m.Signature,
		Function:  fn,
		Pointer:   mc.Arena.Install(fn),
	}
	if capture != nil {
		env.Annotations = capture.Annotations()
	}
	if slot, ok := cls.methods.Lookup(m.Name); ok && slot.Method == m {
		slot.Pointer = env.Pointer
	}
	log.Debugf("compiled %s.%s at %#x", cls.name, m.Name, env.Pointer)
	return env, nil
}

// layoutResolver answers field and slot questions for the class being
// compiled and every finalized class in the environment.
type layoutResolver struct {
	self *ExtensionType
	env  *symbols.Env
}

func (l layoutResolver) target(class string) (*ExtensionType, bool) {
	if class == l.self.Name {
		return l.self, true
	}
	return envLookup{env: l.env}.extension(class)
}

func (l layoutResolver) Field(class, name string) (int, vm.Kind, bool) {
	t, ok := l.target(class)
	if !ok {
		return 0, 0, false
	}
	return t.field(name)
}

func (l layoutResolver) Slot(class, name string) (int, bool) {
	t, ok := l.target(class)
	if !ok {
		return 0, false
	}
	s, ok := t.Slot(name)
	return s.Index, ok
}
