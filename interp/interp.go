// Package interp implements the PointerScript core: the value model,
// the lexical scope/frame stack, the struct engine, the operator
// engine, the statement/call engines, the FFI bridge, and the import
// resolver. The lexer/parser, CLI driver, inline-assembly statement,
// debugger, and JIT backend are external collaborators and are not
// part of this package.
package interp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/singleflight"
)

// Options configures an Interpreter, parsed from environment
// variables the way the teacher's own Options/opt struct is (yaegi's
// interp.go: YAEGI_AST_DOT, YAEGI_NO_RUN, etc., via os.Getenv +
// strconv).
type Options struct {
	// StackLimit is the maximum number of Var slots one Scope may
	// declare (default 8 << 20); it is a slot count, not a byte count,
	// and it applies to each Scope separately rather than to the
	// process as a whole. Overridable via PTRS_STACK_SIZE.
	StackLimit int

	// Safety turns on the bounds/type assertions of spec.md §4.6
	// ("when safety mode is on..."). Overridable via PTRS_SAFETY.
	Safety bool

	// Unrestricted mirrors the teacher's Options.Unrestricted; PTRS
	// has no sandboxing (spec.md §1 Non-goals), so this only gates
	// whether native imports are permitted at all.
	Unrestricted bool
}

const defaultStackLimit = 8 << 20 // Var slots per Scope

// optionsFromEnv reads the environment in the teacher's own
// env-var-driven option style: a zero StackLimit is filled from
// PTRS_STACK_SIZE (or the default), and a valid PTRS_SAFETY overrides
// Safety whatever its current value. Unrestricted is not read from the
// environment.
func optionsFromEnv(o Options) Options {
	if o.StackLimit == 0 {
		o.StackLimit = defaultStackLimit
		if v := os.Getenv("PTRS_STACK_SIZE"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				o.StackLimit = n
			}
		}
	}
	if v := os.Getenv("PTRS_SAFETY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			o.Safety = b
		}
	}
	return o
}

// Interpreter is one independent PointerScript execution context.
// Per spec.md §5, a process may host multiple instances with no
// shared mutable state between them.
type Interpreter struct {
	opt Options

	mutex       sync.Mutex
	structTypes map[string]*StructType

	// currentCallAST records the call-site node of the call currently
	// being set up, threaded into the new Scope's callAST the way
	// original_source/interpreter/lib/call.c's ptrs_callfunc takes a
	// callAst parameter.
	currentCallAST Node

	// sf collapses concurrent resolutions of the same canonical import
	// path into one evaluation (Testable Property 7), grounded on the
	// teacher's own transitive golang.org/x/sync dependency.
	sf          singleflight.Group
	importCache map[string]*importedModule

	root *Scope
}

// New constructs an Interpreter, mirroring the teacher's New(Options)
// *Interpreter constructor.
func New(opt Options) *Interpreter {
	opt = optionsFromEnv(opt)
	it := &Interpreter{
		opt:         opt,
		structTypes: make(map[string]*StructType),
		importCache: make(map[string]*importedModule),
	}
	it.root = newScope(nil, it)
	return it
}

func (it *Interpreter) registerStructType(st *StructType) {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	it.structTypes[st.Name] = st
}

func (it *Interpreter) lookupStructType(name string) (*StructType, bool) {
	it.mutex.Lock()
	defer it.mutex.Unlock()
	st, ok := it.structTypes[name]
	return st, ok
}

// Run drives evaluation of a top-level body, spec.md §6.1's
// `run(ast, result)`: the body is evaluated in the interpreter's root
// Scope, so top-level declarations go through the same Scope.declare
// path a function-call frame uses rather than being a special case.
func (it *Interpreter) Run(prog Node) (Var, error) {
	return prog.Eval(it.root)
}

// EvalWithContext runs prog to completion or until ctx is cancelled,
// mirroring the teacher's EvalWithContext: a goroutine plus a
// recover()-to-Fault mapping, so an internal Go panic surfaces as a
// catchable-shaped error rather than crashing the host process.
func (it *Interpreter) EvalWithContext(ctx context.Context, prog Node) (Var, error) {
	type outcome struct {
		v   Var
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{Undefined, &Fault{
					Kind:    KindSignal,
					Message: fmt.Sprintf("internal fault: %v", r),
					GoStack: captureGoStack(),
				}}
			}
		}()
		v, err := it.Run(prog)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		return Undefined, &Fault{Kind: KindSignal, Message: "evaluation cancelled"}
	}
}

// RunWithSignals wraps EvalWithContext with POSIX signal handling per
// spec.md §5 "Cancellation": SIGINT/SIGTERM cancel the running
// evaluation and the call returns a Signal Fault. Choosing the
// process exit code is left to the caller; cmd/ptrs does not call this
// function.
func (it *Interpreter) RunWithSignals(prog Node) (Var, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return it.EvalWithContext(ctx, prog)
}
