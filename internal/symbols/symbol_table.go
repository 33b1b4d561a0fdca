// symbols/symbol_table.go - Main symbol table entry point
//
// The package is split into focused files:
// - symbol_table_core.go: Symbol kinds, scopes and the Symbol struct
// - symbol_table_operations.go: SymbolTable definition and scoped operations
// - env.go: the compilation environment shared by every class compile

package symbols
