package exttypes

import (
	"fmt"

	"github.com/funvibe/jitclass/internal/config"
	"github.com/funvibe/jitclass/internal/diagnostics"
	"github.com/funvibe/jitclass/internal/vm"
)

// Mode is the set of strategies one compilation variant uses.
type Mode struct {
	Name       string
	Methods    MethodMaker
	Attributes AttributeBuilder
	VTables    VTabBuilder
}

// JITMode lays out new fields in declared order behind the parent prefix.
func JITMode() Mode {
	return Mode{
		Name:       config.ModeJIT,
		Methods:    NewMethodMaker(),
		Attributes: NewAttributeBuilder(ExtendingOrder{}),
		VTables:    NewVTabBuilder(),
	}
}

// PackedMode sorts new fields by alignment to avoid padding.
func PackedMode() Mode {
	return Mode{
		Name:       config.ModePacked,
		Methods:    NewMethodMaker(),
		Attributes: NewAttributeBuilder(ExtendingBySizeOrder{}),
		VTables:    NewVTabBuilder(),
	}
}

// ModeFor returns the named mode.
func ModeFor(name string) (Mode, error) {
	switch name {
	case config.ModeJIT, "":
		return JITMode(), nil
	case config.ModePacked:
		return PackedMode(), nil
	}
	return Mode{}, fmt.Errorf("unknown compilation mode %q", name)
}

// WithOrdering returns m with its attribute builder replaced by one using p.
func (m Mode) WithOrdering(p OrderingPolicy) Mode {
	m.Attributes = NewAttributeBuilder(p)
	return m
}

// Options configures an ExtensionCompiler.
type Options struct {
	Mode      Mode
	MaxPasses int
	Annotate  bool
	File      string

	TypeValidators   []TypeValidator
	MethodValidators []MethodValidator

	// Backend compiles method bodies; nil means vm.NewCompiler().
	Backend Backend
	// Arena receives compiled code; nil means the process arena.
	Arena *vm.CodeArena
}

// DefaultOptions returns the jit mode with the default validators.
func DefaultOptions() Options {
	return mustOptions(config.Default())
}

func mustOptions(cfg *config.Config) Options {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		panic(err)
	}
	return opts
}

// OptionsFromConfig builds options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := ModeFor(cfg.Mode)
	if err != nil {
		return Options{}, err
	}
	if cfg.Ordering != "" {
		ordering, err := OrderingFor(cfg.Ordering)
		if err != nil {
			return Options{}, err
		}
		mode = mode.WithOrdering(ordering)
	}
	typeValidators, methodValidators := DefaultValidators(cfg.Validation)
	return Options{
		Mode:             mode,
		MaxPasses:        cfg.MaxInferencePasses,
		Annotate:         cfg.Annotate,
		TypeValidators:   typeValidators,
		MethodValidators: methodValidators,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Mode.Methods == nil || o.Mode.Attributes == nil || o.Mode.VTables == nil {
		def := JITMode()
		if o.Mode.Name == "" {
			o.Mode.Name = def.Name
		}
		if o.Mode.Methods == nil {
			o.Mode.Methods = def.Methods
		}
		if o.Mode.Attributes == nil {
			o.Mode.Attributes = def.Attributes
		}
		if o.Mode.VTables == nil {
			o.Mode.VTables = def.VTables
		}
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = config.DefaultMaxInferencePasses
	}
	if o.Backend == nil {
		o.Backend = vm.NewCompiler()
	}
	if o.Arena == nil {
		o.Arena = vm.Arena()
	}
	return o
}

// violations runs every validator hook and collects all results.
func (o Options) violations(ext *ExtensionType, methods []*Method) []diagnostics.Violation {
	var out []diagnostics.Violation
	for _, v := range o.TypeValidators {
		out = append(out, v(ext)...)
	}
	for _, m := range methods {
		for _, v := range o.MethodValidators {
			out = append(out, v(m)...)
		}
	}
	return out
}
