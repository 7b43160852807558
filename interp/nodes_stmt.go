package interp

import "fmt"

// This file is the Statement Engine (spec.md §4.7), grounded on
// original_source/interpreter/statements.c.

// BodyStmt is a sequential block: aborts on the first child whose
// evaluation sets scope.exit != 0 (original_source's
// ptrs_handle_body).
type BodyStmt struct {
	NodeBase
	Stmts []Node
}

func (n *BodyStmt) Eval(s *Scope) (Var, error) {
	result := Undefined
	for _, stmt := range n.Stmts {
		v, err := stmt.Eval(s)
		if err != nil {
			return Undefined, err
		}
		result = v
		if s.exit != ExitNormal {
			break
		}
	}
	return result, nil
}

// VarDeclStmt declares a scalar local, evaluating its initializer (if
// any) and storing at a freshly declared slot.
type VarDeclStmt struct {
	NodeBase
	Name string
	Init Node
}

func (n *VarDeclStmt) Eval(s *Scope) (Var, error) {
	v := Undefined
	if n.Init != nil {
		var err error
		v, err = n.Init.Eval(s)
		if err != nil {
			return Undefined, err
		}
	}
	if _, err := s.declare(v); err != nil {
		return Undefined, err
	}
	return v, nil
}

// ArrayDeclStmt is `var x[n] = ...` (byte array) or `var x{n} = ...`
// (var-array), with tail-fill semantics recovered from
// original_source/interpreter/statements.c's ptrs_handle_array /
// ptrs_handle_vararray (SPEC_FULL.md §4.8): a short initializer
// replicates its last element to fill the remaining declared size.
type ArrayDeclStmt struct {
	NodeBase
	Name string
	Size Node
	Init []Node
	IsVar bool
}

func (n *ArrayDeclStmt) Eval(s *Scope) (Var, error) {
	sizeV, err := n.Size.Eval(s)
	if err != nil {
		return Undefined, err
	}
	size := ToInt(sizeV)
	if size < int64(len(n.Init)) {
		size = int64(len(n.Init))
	}

	if n.IsVar {
		vars := make([]Var, size)
		var last Var
		for i := int64(0); i < size; i++ {
			if i < int64(len(n.Init)) {
				v, err := n.Init[i].Eval(s)
				if err != nil {
					return Undefined, err
				}
				vars[i] = v
				last = v
			} else {
				vars[i] = last
			}
		}
		result := PointerVar(vars, size)
		if _, err := s.declare(result); err != nil {
			return Undefined, err
		}
		return result, nil
	}

	buf := make([]byte, size)
	var last byte
	for i := int64(0); i < size; i++ {
		if i < int64(len(n.Init)) {
			v, err := n.Init[i].Eval(s)
			if err != nil {
				return Undefined, err
			}
			last = byte(ToInt(v))
		}
		buf[i] = last
	}
	result := NativeVar(buf, size, false)
	if _, err := s.declare(result); err != nil {
		return Undefined, err
	}
	return result, nil
}

// StructDeclStmt registers a struct type and runs its static data
// initializers in declaration order (spec.md §4.7 "Struct
// declaration").
type StructDeclStmt struct {
	NodeBase
	Type            *StructType
	StaticInitExprs []func(s *Scope) error
}

func (n *StructDeclStmt) Eval(s *Scope) (Var, error) {
	n.Type.ParentScope = s
	s.interp.registerStructType(n.Type)
	for _, init := range n.StaticInitExprs {
		if err := init(s); err != nil {
			return Undefined, err
		}
	}
	return Undefined, nil
}

// IfStmt.
type IfStmt struct {
	NodeBase
	Cond       Node
	Then, Else Node
}

func (n *IfStmt) Eval(s *Scope) (Var, error) {
	cv, err := n.Cond.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if ToBool(cv) {
		return n.Then.Eval(s)
	}
	if n.Else != nil {
		return n.Else.Eval(s)
	}
	return Undefined, nil
}

// resetLoopExit implements the identical break/continue/return
// handling shared by While/DoWhile/For per
// original_source/interpreter/statements.c: break resets exit to 0
// and exits the loop, continue resets exit to 0 and continues,
// return propagates unchanged.
func resetLoopExit(s *Scope) (stop bool) {
	switch s.exit {
	case ExitBreak:
		s.exit = ExitNormal
		return true
	case ExitReturn:
		return true
	case ExitContinue:
		s.exit = ExitNormal
		return false
	default:
		return false
	}
}

// WhileStmt.
type WhileStmt struct {
	NodeBase
	Cond Node
	Body Node
}

func (n *WhileStmt) Eval(s *Scope) (Var, error) {
	result := Undefined
	for {
		cv, err := n.Cond.Eval(s)
		if err != nil {
			return Undefined, err
		}
		if !ToBool(cv) {
			break
		}
		v, err := n.Body.Eval(s)
		if err != nil {
			return Undefined, err
		}
		result = v
		if resetLoopExit(s) {
			break
		}
	}
	return result, nil
}

// DoWhileStmt.
type DoWhileStmt struct {
	NodeBase
	Cond Node
	Body Node
}

func (n *DoWhileStmt) Eval(s *Scope) (Var, error) {
	result := Undefined
	for {
		v, err := n.Body.Eval(s)
		if err != nil {
			return Undefined, err
		}
		result = v
		if resetLoopExit(s) {
			break
		}
		cv, err := n.Cond.Eval(s)
		if err != nil {
			return Undefined, err
		}
		if !ToBool(cv) {
			break
		}
	}
	return result, nil
}

// ForStmt.
type ForStmt struct {
	NodeBase
	Init, Cond, Step Node
	Body             Node
}

func (n *ForStmt) Eval(s *Scope) (Var, error) {
	if n.Init != nil {
		if _, err := n.Init.Eval(s); err != nil {
			return Undefined, err
		}
	}
	result := Undefined
	for {
		if n.Cond != nil {
			cv, err := n.Cond.Eval(s)
			if err != nil {
				return Undefined, err
			}
			if !ToBool(cv) {
				break
			}
		}
		v, err := n.Body.Eval(s)
		if err != nil {
			return Undefined, err
		}
		result = v
		if resetLoopExit(s) {
			break
		}
		if n.Step != nil {
			if _, err := n.Step.Eval(s); err != nil {
				return Undefined, err
			}
		}
	}
	return result, nil
}

// ForInStmt dispatches by source type per spec.md §4.7 "For-in":
// Native → (index, byte); Pointer → (index, Var-by-value); Struct →
// either named-member iteration or the `for in` overload's
// yield-based coroutine (see SPEC_FULL.md §6/Function.GoFunc).
type ForInStmt struct {
	NodeBase
	KeyName, ValName string // ValName == "" when only one binding var declared
	Source           Node
	Body             Node
}

func (n *ForInStmt) bindAndRun(s *Scope, key, val Var, hasVal bool) error {
	if _, err := s.declare(key); err != nil {
		return err
	}
	if hasVal {
		if _, err := s.declare(val); err != nil {
			return err
		}
	}
	_, err := n.Body.Eval(s)
	return err
}

func (n *ForInStmt) Eval(s *Scope) (Var, error) {
	sv, err := n.Source.Eval(s)
	if err != nil {
		return Undefined, err
	}
	hasVal := n.ValName != ""

	switch sv.Kind {
	case KindNative:
		nm := sv.Native()
		for i := int64(0); i < sv.size; i++ {
			loopScope := newScope(s, s.interp)
			key := IntVar(i)
			val := Undefined
			if hasVal && nm != nil && int(sv.offset+i) < len(nm.bytes) {
				val = IntVar(int64(nm.bytes[sv.offset+i]))
			}
			if err := n.bindAndRun(loopScope, key, val, hasVal); err != nil {
				return Undefined, err
			}
			if loopScope.exit == ExitReturn {
				s.exit = ExitReturn
				return Undefined, nil
			}
			if loopScope.exit == ExitBreak {
				break
			}
		}
		return Undefined, nil
	case KindPointer:
		pm := sv.Pointer()
		for i := int64(0); i < sv.size; i++ {
			loopScope := newScope(s, s.interp)
			key := IntVar(i)
			val := Undefined
			if hasVal && pm != nil && int(sv.offset+i) < len(pm.vars) {
				val = pm.vars[sv.offset+i]
			}
			if err := n.bindAndRun(loopScope, key, val, hasVal); err != nil {
				return Undefined, err
			}
			if loopScope.exit == ExitReturn {
				s.exit = ExitReturn
				return Undefined, nil
			}
			if loopScope.exit == ExitBreak {
				break
			}
		}
		return Undefined, nil
	case KindStruct:
		return n.evalStruct(s, sv)
	default:
		return Undefined, newFault(KindTypeError, "cannot iterate value of type %t", sv.Kind)
	}
}

func (n *ForInStmt) evalStruct(s *Scope, sv Var) (Var, error) {
	st := sv.Struct()
	if st == nil {
		return Undefined, newFault(KindTypeError, "cannot iterate undefined struct")
	}
	if ov := st.Type.getOverload(OpForIn, st.Data == nil); ov != nil {
		// The overload calls our yielder repeatedly; each call binds
		// (name/index, value) into a fresh loop scope, runs the body,
		// and reports the body's exit token back as the yielder's
		// return value (0 keep going, also after `continue`; nonzero
		// stop) — the re-entrant
		// call modeling of spec.md §9's "for-in as coroutine".
		yielder := &Function{
			Name: "(for in loop)",
			GoFunc: func(args []Var) (Var, error) {
				loopScope := newScope(s, s.interp)
				var key, val Var
				if len(args) > 0 {
					key = args[0]
				}
				if len(args) > 1 {
					val = args[1]
				}
				if err := n.bindAndRun(loopScope, key, val, hasVal(n)); err != nil {
					return Undefined, err
				}
				if loopScope.exit == ExitReturn {
					s.exit = ExitReturn
				}
				if loopScope.exit == ExitContinue {
					return IntVar(ExitNormal), nil
				}
				return IntVar(int64(loopScope.exit)), nil
			},
		}
		_, err := s.interp.callFunction(ov.Fn, []Var{FunctionVar(yielder)}, st)
		return Undefined, err
	}

	if st.Data == nil {
		return Undefined, newFault(KindTypeError, "cannot iterate struct type %s without a for-in overload", st.Type.Name)
	}
	for i := range st.Type.Members {
		m := &st.Type.Members[i]
		if m.Name == "" {
			continue
		}
		if !canAccess(m, st.Type, n.P.File) {
			continue
		}
		loopScope := newScope(s, s.interp)
		mv, err := getMember(st, m, s.interp)
		if err != nil {
			return Undefined, err
		}
		nameVar := NativeVar([]byte(m.Name), int64(len(m.Name)), true)
		if err := n.bindAndRun(loopScope, nameVar, mv, true); err != nil {
			return Undefined, err
		}
		if loopScope.exit == ExitReturn {
			s.exit = ExitReturn
			return Undefined, nil
		}
		if loopScope.exit == ExitBreak {
			break
		}
	}
	return Undefined, nil
}

func hasVal(n *ForInStmt) bool { return n.ValName != "" }

// SwitchStmt: integer-equality match with default fallback (spec.md
// §4.7).
type SwitchCase struct {
	Value Node // nil for default
	Body  Node
}

type SwitchStmt struct {
	NodeBase
	Subject Node
	Cases   []SwitchCase
}

func (n *SwitchStmt) Eval(s *Scope) (Var, error) {
	sv, err := n.Subject.Eval(s)
	if err != nil {
		return Undefined, err
	}
	subj := ToInt(sv)
	var def *SwitchCase
	for i := range n.Cases {
		c := &n.Cases[i]
		if c.Value == nil {
			def = c
			continue
		}
		cv, err := c.Value.Eval(s)
		if err != nil {
			return Undefined, err
		}
		if ToInt(cv) == subj {
			return c.Body.Eval(s)
		}
	}
	if def != nil {
		return def.Body.Eval(s)
	}
	return Undefined, nil
}

// ReturnStmt.
type ReturnStmt struct {
	NodeBase
	Value Node
}

func (n *ReturnStmt) Eval(s *Scope) (Var, error) {
	v := Undefined
	if n.Value != nil {
		var err error
		v, err = n.Value.Eval(s)
		if err != nil {
			return Undefined, err
		}
	}
	s.exit = ExitReturn
	return v, nil
}

// BreakStmt.
type BreakStmt struct{ NodeBase }

func (n *BreakStmt) Eval(s *Scope) (Var, error) {
	s.exit = ExitBreak
	return Undefined, nil
}

// ContinueStmt.
type ContinueStmt struct{ NodeBase }

func (n *ContinueStmt) Eval(s *Scope) (Var, error) {
	s.exit = ExitContinue
	return Undefined, nil
}

// ThrowStmt stringifies its expression and raises a catchable
// UserError (spec.md §4.7 "Throw").
type ThrowStmt struct {
	NodeBase
	Value Node
}

func (n *ThrowStmt) Eval(s *Scope) (Var, error) {
	v, err := n.Value.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return Undefined, &Fault{Kind: KindUserError, Message: ToString(v), Pos: n.P}
}

// DeleteStmt (spec.md §4.7 "Delete").
type DeleteStmt struct {
	NodeBase
	Target Node
}

func (n *DeleteStmt) Eval(s *Scope) (Var, error) {
	v, err := n.Target.Eval(s)
	if err != nil {
		return Undefined, err
	}
	switch v.Kind {
	case KindStruct:
		sv := v.Struct()
		if sv == nil {
			return Undefined, nil
		}
		if ov := sv.Type.getOverload(OpDelete, sv.Data == nil); ov != nil {
			if _, err := s.interp.callFunction(ov.Fn, nil, sv); err != nil {
				return Undefined, err
			}
		}
		sv.Data = nil
		return Undefined, nil
	case KindNative:
		if v.readOnly {
			return Undefined, newFault(KindTypeError, "cannot delete read-only native value")
		}
		if nm := v.Native(); nm != nil {
			nm.bytes = nil
		}
		return Undefined, nil
	case KindPointer:
		if pm := v.Pointer(); pm != nil {
			pm.vars = nil
		}
		return Undefined, nil
	default:
		return Undefined, newFault(KindTypeError, "cannot delete value of type %t", v.Kind)
	}
}

// CatchClause binds (message, backtrace, file, line, column)
// positionally; unbound formal parameters are simply not set (spec.md
// §7).
type CatchClause struct {
	Params []string // up to 5: message, backtrace, file, line, column
	Body   Node
}

// TryStmt (spec.md §7 Try/Catch/Finally).
type TryStmt struct {
	NodeBase
	Body    Node
	Catch   *CatchClause
	Finally Node
}

func (n *TryStmt) Eval(s *Scope) (Var, error) {
	savedSP := s.sp
	result, err := n.Body.Eval(s)

	var fault *Fault
	if err != nil {
		f, ok := err.(*Fault)
		if !ok {
			f = &Fault{Kind: KindUserError, Message: err.Error()}
		}
		fault = f
		s.sp = savedSP // spec.md §4.2: restore bump pointer on catch.
	}

	if fault != nil && n.Catch != nil {
		s.exit = ExitNormal
		if bindErr := bindCatchParams(s, n.Catch, fault); bindErr != nil {
			return Undefined, bindErr
		}
		var catchErr error
		result, catchErr = n.Catch.Body.Eval(s)
		if catchErr != nil {
			if f, ok := catchErr.(*Fault); ok {
				fault = f
			} else {
				fault = &Fault{Kind: KindUserError, Message: catchErr.Error()}
			}
		} else {
			fault = nil
		}
	}

	if n.Finally != nil {
		if _, ferr := n.Finally.Eval(s); ferr != nil {
			return Undefined, ferr
		}
	}

	if fault != nil {
		return Undefined, fault
	}
	return result, nil
}

func bindCatchParams(s *Scope, c *CatchClause, f *Fault) error {
	msg := NativeVar([]byte(f.Message), int64(len(f.Message)), true)
	backtrace := NativeVar([]byte(formatBacktrace(f)), int64(len(formatBacktrace(f))), true)
	file := NativeVar([]byte(f.Pos.File), int64(len(f.Pos.File)), true)
	vals := []Var{msg, backtrace, file, IntVar(int64(f.Pos.Line)), IntVar(int64(f.Pos.Column))}
	for i := 0; i < len(c.Params); i++ {
		v := Undefined
		if i < len(vals) {
			v = vals[i]
		}
		if _, err := s.declare(v); err != nil {
			return err
		}
	}
	return nil
}

func formatBacktrace(f *Fault) string {
	s := ""
	for _, fr := range f.Trace {
		s += "    at " + fr.calleeName
		if fr.pos.File != "" {
			s += fmt.Sprintf(" (%s:%d:%d)", fr.pos.File, fr.pos.Line, fr.pos.Column)
		}
		s += "\n"
	}
	return s
}

// ImportStmt resolves either a .ptrs script or a native shared
// library, per spec.md §6.4. Implemented in interp/importer.go.
type ImportStmt struct {
	NodeBase
	Path    string
	Symbols []string
}

func (n *ImportStmt) Eval(s *Scope) (Var, error) {
	return Undefined, s.interp.importPath(s, n.Path, n.Symbols)
}
