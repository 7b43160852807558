package interp

// Param is one formal parameter: a slot offset in the callee's new
// scope, and an optional lazy default-value expression (spec.md §3.3,
// §4.5). See DESIGN.md's Open Question decision on default-argument
// evaluation: the surviving original_source/interpreter/lib/call.c
// binds a missing argument straight to Undefined with no default-AST
// evaluation shown; this implementation adds that evaluation back in
// as spec.md §4.5 step 2 requires, falling back to Undefined only
// when no Default is declared.
type Param struct {
	Name    string
	Default Node
}

// Function is a PTRS function value: formal parameters, a body, the
// lexically enclosing Scope captured for closures, and a lazily
// allocated native-callback trampoline (populated by interp/ffi.go
// the first time this Function is passed to native code).
type Function struct {
	Name      string
	Params    []Param
	Body      Node
	Scope     *Scope
	BoundThis *StructVal

	// GoFunc, when non-nil, is a host-synthesized continuation
	// (spec.md §9's for-in "yielder" closure) invoked directly instead
	// of evaluating Body against a fresh Scope. This is how this
	// implementation expresses "the engine synthesizes a continuation
	// closure from the loop body" without real coroutines.
	GoFunc func(args []Var) (Var, error)

	nativeCb uintptr
	hasCb    bool
}

// callFunction implements spec.md §4.5's call(funcVar, args):
//  1. new Scope, outer = func's captured parent scope.
//  2. bind formals: args[i], else evaluate Default lazily in the new
//     scope, else Undefined.
//  3. bind `this` if method-bound.
//  4. bind `arguments` to a Pointer Var over the arg vector.
//  5. invoke the body; if scope.exit != Return the result is
//     Undefined, else it is the last evaluated value.
func (it *Interpreter) callFunction(fn *Function, args []Var, this *StructVal) (Var, error) {
	if fn == nil {
		return Undefined, newFault(KindTypeError, "cannot call undefined function")
	}
	if fn.GoFunc != nil {
		return fn.GoFunc(args)
	}
	scope := newScope(fn.Scope, it)
	scope.callAST = it.currentCallAST
	scope.calleeName = fn.Name
	if scope.calleeName == "" {
		scope.calleeName = "(anonymous)"
	}

	for i, p := range fn.Params {
		var v Var
		if i < len(args) {
			v = args[i]
		} else if p.Default != nil {
			dv, err := p.Default.Eval(scope)
			if err != nil {
				return Undefined, err
			}
			v = dv
		} else {
			v = Undefined
		}
		if _, err := scope.declare(v); err != nil {
			return Undefined, err
		}
	}

	boundThis := this
	if boundThis == nil {
		boundThis = fn.BoundThis
	}
	if boundThis != nil {
		if _, err := scope.declare(StructVar(boundThis)); err != nil {
			return Undefined, err
		}
	}

	if _, err := scope.declare(PointerVar(args, int64(len(args)))); err != nil {
		return Undefined, err
	}

	if fn.Body == nil {
		return Undefined, nil
	}
	result, err := fn.Body.Eval(scope)
	if err != nil {
		if f, ok := err.(*Fault); ok {
			pos := f.Pos
			if scope.callAST != nil {
				pos = scope.callAST.Pos()
			}
			f.Trace = append(f.Trace, traceFrame{calleeName: scope.calleeName, pos: pos})
		}
		return Undefined, err
	}
	if scope.exit != ExitReturn {
		return Undefined, nil
	}
	return result, nil
}

// Call is the generic entry point for an arbitrary callee Var
// (Function or Native), matching original_source/interpreter/lib/
// call.c's ptrs_call dispatch. The Struct-with-"()" case (spec.md
// §4.5 "the struct becomes the receiver of its () overload") is
// handled by the caller (interp/nodes_expr.go's CallExpr), which has
// access to the struct's overload table.
func (it *Interpreter) Call(callee Var, args []Var) (Var, error) {
	switch callee.Kind {
	case KindFunction:
		return it.callFunction(callee.Function(), args, nil)
	case KindNative:
		return it.callNative(callee, args)
	default:
		return Undefined, newFault(KindTypeError, "cannot call value of type %t", callee.Kind)
	}
}
