package vm

import (
	"sync"
)

// Receiver is a native instance as the machine sees it: a record addressed
// by offset and a vtable addressed by slot.
type Receiver interface {
	LoadField(offset int, kind Kind) (Value, error)
	StoreField(offset int, kind Kind, v Value) error
	MethodPointer(slot int) (uintptr, error)
}

// Function is a compiled method body.
type Function struct {
	Name       string // Class.method, for traces
	Class      string
	Method     string
	Arity      int
	NumLocals  int // including the receiver and parameters
	ParamKinds []Kind
	ReturnKind Kind
	Chunk      *Chunk
}

const (
	arenaBase  uintptr = 0x10000
	entryAlign uintptr = 16
)

// CodeArena owns installed functions and hands out their entry points.
// Addresses are never reused while the process lives, so a stale pointer
// fails lookup instead of running the wrong code.
type CodeArena struct {
	mu   sync.RWMutex
	next uintptr
	code map[uintptr]*Function
}

func NewCodeArena() *CodeArena {
	return &CodeArena{next: arenaBase, code: make(map[uintptr]*Function)}
}

var processArena = NewCodeArena()

// Arena returns the process-wide code arena.
func Arena() *CodeArena {
	return processArena
}

// Install makes fn callable and returns its entry point.
func (a *CodeArena) Install(fn *Function) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	ptr := a.next
	a.next += entryAlign
	a.code[ptr] = fn
	return ptr
}

// Lookup returns the function installed at ptr.
func (a *CodeArena) Lookup(ptr uintptr) (*Function, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn, ok := a.code[ptr]
	return fn, ok
}

// Release removes the function at ptr, e.g. when its class is unloaded.
func (a *CodeArena) Release(ptr uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.code, ptr)
}

// Len returns the number of installed functions.
func (a *CodeArena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.code)
}
