package interp

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind enumerates the catchable fault kinds of spec.md §7.
type ErrorKind uint8

const (
	KindTypeError ErrorKind = iota
	KindArityError
	KindNotAnLValue
	KindOutOfRange
	KindAccessDenied
	KindImportError
	KindNativeCallFailure
	KindStackOverflow
	KindUserError
	KindSignal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindArityError:
		return "ArityError"
	case KindNotAnLValue:
		return "NotAnLValue"
	case KindOutOfRange:
		return "OutOfRange"
	case KindAccessDenied:
		return "AccessDenied"
	case KindImportError:
		return "ImportError"
	case KindNativeCallFailure:
		return "NativeCallFailure"
	case KindStackOverflow:
		return "StackOverflow"
	case KindUserError:
		return "UserError"
	case KindSignal:
		return "Signal"
	default:
		return "UnknownError"
	}
}

// traceFrame is one entry of a Fault's call-chain trace, modeled on
// original_source/interpreter/lib/error.c's ptrs_printstack, which
// walks scope->callScope/scope->callAst pairs printing calleeName and
// position.
type traceFrame struct {
	calleeName string
	pos        Position
}

// Fault is PTRS's catchable runtime error, modeled on the teacher's
// Panic struct (interp.go) but propagated as an ordinary Go error
// return value rather than a panic, and carrying PTRS's own
// kind/message/backtrace fields per spec.md §7.
type Fault struct {
	Kind    ErrorKind
	Message string
	Pos     Position
	Trace   []traceFrame

	// GoStack is populated only for Signal faults, recovered from
	// original_source/jit/lib/error.c's ptrs_backtrace behavior of
	// attaching the interception-time stack (§4.8 "Signal-derived
	// backtraces").
	GoStack string

	cause error
}

func (f *Fault) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", f.Kind, f.Message)
	if f.Pos.File != "" {
		fmt.Fprintf(&b, " (%s:%d:%d)", f.Pos.File, f.Pos.Line, f.Pos.Column)
	}
	return b.String()
}

func (f *Fault) Unwrap() error { return f.cause }

// newFault builds a Fault with no position/trace attached yet; Trace
// is filled in one frame at a time as the Fault unwinds through each
// enclosing call.go's callFunction (see Fault.Trace). Message text
// goes through formatFault so a Kind or Var argument renders as a
// PTRS type name or value instead of a Go struct dump.
func newFault(kind ErrorKind, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Message: formatFault(format, args...)}
}

// formatFault implements the §4.8 type-aware message formatter
// recovered from jit/lib/error.c's ptrs_formatErrorMsg: %t substitutes
// a type name for a Kind argument, %v substitutes a Var's to_string
// for a Var argument. Any other verb (%s, %d, %q, ...) falls back to
// plain fmt formatting of that one argument, so existing call sites
// that don't touch a Kind/Var keep working unchanged.
func formatFault(format string, args ...interface{}) string {
	var b strings.Builder
	i := 0
	ai := 0
	for i < len(format) {
		c := format[i]
		if c == '%' && i+1 < len(format) {
			verb := format[i+1]
			if verb == '%' {
				b.WriteByte('%')
				i += 2
				continue
			}
			if ai < len(args) {
				arg := args[ai]
				switch {
				case verb == 't':
					if k, ok := arg.(Kind); ok {
						b.WriteString(TypeName(k))
					} else {
						fmt.Fprintf(&b, "%v", arg)
					}
				case verb == 'v':
					if v, ok := arg.(Var); ok {
						b.WriteString(ToString(v))
					} else {
						fmt.Fprintf(&b, "%v", arg)
					}
				default:
					fmt.Fprintf(&b, "%"+string(verb), arg)
				}
				ai++
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// wrapExternal wraps an error with context and a captured stack via
// pkg/errors. No code in this package calls it: import failures are
// wrapped by importer.go's wrapFault, which keeps the cause but
// captures no stack.
func wrapExternal(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// captureGoStack records the current goroutine stack for a Signal
// fault. Only the lines naming runtime/debug.Stack are dropped; all
// other frames, interpreter-internal ones included, are kept.
func captureGoStack() string {
	raw := string(debug.Stack())
	lines := strings.Split(raw, "\n")
	var kept []string
	for _, l := range lines {
		if strings.Contains(l, "runtime/debug.Stack") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// Position is a source location, recovered from
// original_source/interpreter/lib/error.c's codepos_t.
type Position struct {
	File   string
	Line   int
	Column int
}
