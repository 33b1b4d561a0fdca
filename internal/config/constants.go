package config

const SourceFileExt = ".jc"

// SourceFileExtensions are all recognized class source file extensions
var SourceFileExtensions = []string{".jc", ".py"}

// WordSize is the native pointer size in bytes.
const WordSize = 8

// Native primitive type names
const (
	IntTypeName    = "int"
	Int32TypeName  = "int32"
	DoubleTypeName = "double"
	BoolTypeName   = "bool"
	TextTypeName   = "text"
	VoidTypeName   = "void"
)

// Special method and receiver names
const (
	InitMethodName = "__init__"
	SelfName       = "self"
)

// Compilation defaults
const (
	DefaultMaxInferencePasses = 8
	DefaultMaxRecordSize      = 4096
	DefaultMode               = "jit"
	DefaultOrdering           = OrderingExtending
)

// Attribute ordering policy names
const (
	OrderingExtending       = "extending"
	OrderingExtendingBySize = "extending_by_size"
)

// Compilation mode names
const (
	ModeJIT    = "jit"
	ModePacked = "packed"
)

// Compile phase names, as reported in errors
const (
	PhaseInfer    = "infer"
	PhaseFinalize = "finalize"
	PhaseValidate = "validate"
	PhaseCompile  = "compile"
)

// ConfigFileName is looked up next to the sources when no -config is given.
const ConfigFileName = "jitclass.yaml"
