package interp

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// This file is the FFI Bridge (spec.md §4.3), reimplemented atop
// github.com/ebitengine/purego (SPEC_FULL.md §2 DOMAIN STACK) in
// place of original_source/interpreter/lib/call.c's libffi-based
// ptrs_callnative/ptrs_callcallback.

// nativeSymbolVar wraps a raw resolved address (from dlsym) as a
// read-only Native Var with no backing Go allocation — the "raw byte
// pointer" of spec.md §3.1 when the pointee lives outside Go's heap.
func nativeSymbolVar(addr uintptr) Var {
	return Var{Kind: KindNative, ival: int64(addr), readOnly: true}
}

// callNative implements Script→Native (spec.md §4.3): builds a
// platform call frame from the argument vector and issues the call
// through purego.SyscallN, which accepts up to 9 uintptr-sized
// arguments on every purego-supported platform.
func (it *Interpreter) callNative(fn Var, args []Var) (Var, error) {
	addr := uintptr(fn.address())
	if addr == 0 {
		return Undefined, newFault(KindNativeCallFailure, "cannot call null native function")
	}

	callArgs := make([]uintptr, len(args))
	for i, a := range args {
		slot, err := it.marshalArg(a)
		if err != nil {
			return Undefined, err
		}
		callArgs[i] = slot
	}

	ret, _, _ := purego.SyscallN(addr, callArgs...)
	return IntVar(int64(ret)), nil
}

// marshalArg implements spec.md §4.3's Script→Native argument
// marshaling table.
func (it *Interpreter) marshalArg(a Var) (uintptr, error) {
	switch a.Kind {
	case KindInt:
		return uintptr(a.Int()), nil
	case KindFloat:
		// purego.SyscallN takes uintptr slots only: the IEEE bit
		// pattern is passed in an integer slot, not in a floating-point
		// register, so a callee declared with a double parameter does
		// not receive this value.
		return uintptr(a.ival), nil
	case KindNative:
		nm := a.Native()
		if nm == nil {
			return uintptr(a.address()), nil
		}
		if int(a.offset) >= len(nm.bytes) {
			return 0, nil
		}
		return uintptr(unsafe.Pointer(&nm.bytes[a.offset])), nil
	case KindPointer, KindStruct:
		return uintptr(a.address()), nil
	case KindFunction:
		fn := a.Function()
		if fn == nil {
			return 0, nil
		}
		return it.trampolineFor(fn)
	default:
		return 0, nil
	}
}

// trampolineFor implements spec.md §4.3's "cached callback
// trampoline": a heap-allocated thunk built once per Function and
// reused, grounded on
// original_source/interpreter/lib/call.c's ptrs_callnative caching
// func->nativeCb for non-closure (top-level) functions. A closure (a
// Function whose captured Scope has an outer Scope) is rejected with a
// NativeCallFailure fault. purego's NewCallback plays the role of
// libffi's alloc_callback.
func (it *Interpreter) trampolineFor(fn *Function) (uintptr, error) {
	if fn.Scope != nil && fn.Scope.outer != nil {
		return 0, newFault(KindNativeCallFailure, "cannot pass a closure as a native callback")
	}
	if fn.hasCb {
		return fn.nativeCb, nil
	}
	cb := purego.NewCallback(func(a0, a1, a2, a3, a4, a5, a6, a7, a8 uintptr) uintptr {
		return it.invokeCallback(fn, []uintptr{a0, a1, a2, a3, a4, a5, a6, a7, a8})
	})
	fn.nativeCb = cb
	fn.hasCb = true
	return cb, nil
}

// invokeCallback is the Native→Script half of spec.md §4.3: every
// incoming argument is coerced to Int (no C type metadata survives),
// the script function is invoked, and the result is mapped back per
// the Undefined/Int/Float/other table.
func (it *Interpreter) invokeCallback(fn *Function, raw []uintptr) uintptr {
	args := make([]Var, len(fn.Params))
	for i := range args {
		if i < len(raw) {
			args[i] = IntVar(int64(raw[i]))
		} else {
			args[i] = Undefined
		}
	}

	result, err := it.callFunction(fn, args, nil)
	if err != nil {
		// A panicking Go callback would unwind across the C caller's
		// stack frame, corrupting it; the fault is dropped and zero is
		// returned to the native caller instead.
		return 0
	}

	switch result.Kind {
	case KindUndefined:
		return 0
	case KindInt:
		return uintptr(result.Int())
	case KindFloat:
		return uintptr(int64(result.Float()))
	default:
		return uintptr(result.address())
	}
}
