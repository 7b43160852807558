package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// ConstantExpr is a literal Int/Float/Undefined value baked into the
// AST by the parser.
type ConstantExpr struct {
	NodeBase
	Value Var
}

func (n *ConstantExpr) Eval(s *Scope) (Var, error) { return n.Value, nil }

// IdentifierExpr addresses a symbol by (depth, offset), the depth-0
// fast path and the general outer-chain walk both handled uniformly
// by Scope.get/set (spec.md §4.2), collapsing
// original_source/interpreter/specialexpr.c's separate depth-0 fast
// path into one implementation.
type IdentifierExpr struct {
	NodeBase
	Name   string
	Depth  int
	Offset int
}

func (n *IdentifierExpr) Eval(s *Scope) (Var, error) { return s.get(n.Depth, n.Offset), nil }

func (n *IdentifierExpr) Assign(s *Scope, v Var) (Var, error) {
	s.set(n.Depth, n.Offset, v)
	return v, nil
}

func (n *IdentifierExpr) Address(s *Scope) (Var, error) {
	sc := s
	for i := 0; i < n.Depth; i++ {
		if sc.outer == nil {
			return Undefined, newFault(KindNotAnLValue, "cannot take address of %s", n.Name)
		}
		sc = sc.outer
	}
	for n.Offset >= len(sc.vars) {
		sc.vars = append(sc.vars, Undefined)
	}
	return pointerVarAt(&ptrMem{vars: sc.vars}, int64(n.Offset), 1), nil
}

// MemberExpr is `base.name`, supporting Get/Set/Address/Call exactly
// as original_source/interpreter/specialexpr.c's
// ptrs_handle_member/assign_member/call_member, with struct-overload
// fallback for non-struct-member access.
type MemberExpr struct {
	NodeBase
	Base Node
	Name string
}

func (n *MemberExpr) resolve(s *Scope) (*StructVal, *StructMember, error) {
	bv, err := n.Base.Eval(s)
	if err != nil {
		return nil, nil, err
	}
	if bv.Kind != KindStruct {
		return nil, nil, newFault(KindTypeError, "cannot access member %q of type %t", n.Name, bv.Kind)
	}
	sv := bv.Struct()
	if sv == nil {
		return nil, nil, newFault(KindTypeError, "cannot access member %q of undefined struct", n.Name)
	}
	m := sv.Type.find(n.Name, 0, false)
	if m == nil {
		return sv, nil, nil
	}
	if !canAccess(m, sv.Type, n.P.File) {
		return nil, nil, newFault(KindAccessDenied, "member %q of %s is not accessible", n.Name, sv.Type.Name)
	}
	return sv, m, nil
}

func (n *MemberExpr) Eval(s *Scope) (Var, error) {
	sv, m, err := n.resolve(s)
	if err != nil {
		return Undefined, err
	}
	if m == nil {
		if ov := sv.Type.getOverload(OpMember, sv.Data == nil); ov != nil {
			return s.interp.callFunction(ov.Fn, []Var{NativeVar([]byte(n.Name), int64(len(n.Name)), true)}, sv)
		}
		return Undefined, newFault(KindTypeError, "no member %q on %s", n.Name, sv.Type.Name)
	}
	return getMember(sv, m, s.interp)
}

func (n *MemberExpr) Assign(s *Scope, v Var) (Var, error) {
	sv, m, err := n.resolve(s)
	if err != nil {
		return Undefined, err
	}
	if m == nil {
		return Undefined, newFault(KindTypeError, "no member %q on %s", n.Name, sv.Type.Name)
	}
	if err := setMember(sv, m, v, s.interp); err != nil {
		return Undefined, err
	}
	return v, nil
}

func (n *MemberExpr) Address(s *Scope) (Var, error) {
	sv, m, err := n.resolve(s)
	if err != nil {
		return Undefined, err
	}
	if m == nil || m.Kind != MemberVariable {
		return Undefined, newFault(KindNotAnLValue, "cannot take address of member %q", n.Name)
	}
	storage := sv.Data
	if storage == nil {
		storage = sv.Type.StaticData
	}
	return pointerVarAt(&ptrMem{vars: storage}, int64(m.Offset), 1), nil
}

func (n *MemberExpr) CallNode(s *Scope, args []Var) (Var, error) {
	sv, m, err := n.resolve(s)
	if err != nil {
		return Undefined, err
	}
	if m != nil && (m.Kind == MemberFunction || m.Kind == MemberGetter) {
		fv, err := getMember(sv, m, s.interp)
		if err != nil {
			return Undefined, err
		}
		return s.interp.Call(fv, args)
	}
	return Undefined, newFault(KindTypeError, "member %q is not callable", n.Name)
}

// IndexExpr is `base[i]` over Pointer/Native/Struct (spec.md §4.6).
type IndexExpr struct {
	NodeBase
	Base  Node
	Index Node
}

func (n *IndexExpr) eval2(s *Scope) (Var, int64, error) {
	bv, err := n.Base.Eval(s)
	if err != nil {
		return Undefined, 0, err
	}
	iv, err := n.Index.Eval(s)
	if err != nil {
		return Undefined, 0, err
	}
	return bv, ToInt(iv), nil
}

func (n *IndexExpr) Eval(s *Scope) (Var, error) {
	bv, idx, err := n.eval2(s)
	if err != nil {
		return Undefined, err
	}
	switch bv.Kind {
	case KindPointer:
		if s.interp.opt.Safety {
			if idx < 0 || idx >= bv.size {
				return Undefined, newFault(KindOutOfRange, "index %d out of range [0,%d)", idx, bv.size)
			}
		}
		w := pointerIntArith(bv, idx, OpAdd)
		return derefRead(w)
	case KindNative:
		if s.interp.opt.Safety {
			if idx < 0 || idx >= bv.size {
				return Undefined, newFault(KindOutOfRange, "index %d out of range [0,%d)", idx, bv.size)
			}
		}
		w := nativeIntArith(bv, idx, OpAdd)
		return derefRead(w)
	case KindStruct:
		sv := bv.Struct()
		if sv == nil {
			return Undefined, newFault(KindTypeError, "cannot index undefined struct")
		}
		if ov := sv.Type.getOverload(OpIndex, sv.Data == nil); ov != nil {
			return s.interp.callFunction(ov.Fn, []Var{IntVar(idx)}, sv)
		}
		m := sv.Type.find(strconv.FormatInt(idx, 10), 0, false)
		if m == nil {
			return Undefined, newFault(KindTypeError, "no member %d on %s", idx, sv.Type.Name)
		}
		return getMember(sv, m, s.interp)
	default:
		return Undefined, newFault(KindTypeError, "cannot index value of type %t", bv.Kind)
	}
}

func (n *IndexExpr) Assign(s *Scope, v Var) (Var, error) {
	bv, idx, err := n.eval2(s)
	if err != nil {
		return Undefined, err
	}
	switch bv.Kind {
	case KindPointer:
		w := pointerIntArith(bv, idx, OpAdd)
		cell := w.cell()
		if cell == nil {
			return Undefined, newFault(KindOutOfRange, "index %d out of range", idx)
		}
		*cell = v
		return v, nil
	case KindNative:
		w := nativeIntArith(bv, idx, OpAdd)
		b := w.byteAt()
		if b == nil {
			return Undefined, newFault(KindOutOfRange, "index %d out of range", idx)
		}
		*b = byte(ToInt(v))
		return v, nil
	case KindStruct:
		sv := bv.Struct()
		m := sv.Type.find(strconv.FormatInt(idx, 10), 0, false)
		if m == nil {
			return Undefined, newFault(KindTypeError, "no member %d on %s", idx, sv.Type.Name)
		}
		return v, setMember(sv, m, v, s.interp)
	default:
		return Undefined, newFault(KindTypeError, "cannot index-assign value of type %t", bv.Kind)
	}
}

func (n *IndexExpr) Address(s *Scope) (Var, error) {
	bv, idx, err := n.eval2(s)
	if err != nil {
		return Undefined, err
	}
	switch bv.Kind {
	case KindPointer:
		return pointerIntArith(bv, idx, OpAdd), nil
	case KindNative:
		return nativeIntArith(bv, idx, OpAdd), nil
	default:
		return Undefined, newFault(KindNotAnLValue, "cannot take address of indexed value of type %t", bv.Kind)
	}
}

func (n *IndexExpr) CallNode(s *Scope, args []Var) (Var, error) {
	v, err := n.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return s.interp.Call(v, args)
}

// SliceExpr is `a[s:e]` (spec.md §4.6). Start/End are nil when
// omitted; End defaults per DESIGN.md's Open Question decision to the
// base's element count (a half-open [start,end) range).
type SliceExpr struct {
	NodeBase
	Base       Node
	Start, End Node
}

func (n *SliceExpr) Eval(s *Scope) (Var, error) {
	bv, err := n.Base.Eval(s)
	if err != nil {
		return Undefined, err
	}
	start := int64(0)
	if n.Start != nil {
		sv, err := n.Start.Eval(s)
		if err != nil {
			return Undefined, err
		}
		start = ToInt(sv)
	}
	end := bv.size
	if n.End != nil {
		ev, err := n.End.Eval(s)
		if err != nil {
			return Undefined, err
		}
		end = ToInt(ev)
	}
	size := end - start
	if size < 0 {
		size = 0
	}
	switch bv.Kind {
	case KindPointer:
		return pointerVarAt(bv.Pointer(), bv.offset+start, size), nil
	case KindNative:
		return nativeVarAt(bv.Native(), bv.offset+start, size, bv.readOnly), nil
	default:
		return Undefined, newFault(KindTypeError, "cannot slice value of type %t", bv.Kind)
	}
}

// CastExpr is the converting `cast<type>` operator (spec.md §4.1).
type CastExpr struct {
	NodeBase
	Target  Kind
	Operand Node
}

func (n *CastExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	switch n.Target {
	case KindInt:
		return IntVar(ToInt(v)), nil
	case KindFloat:
		return FloatVar(ToFloat(v)), nil
	case KindPointer:
		// A Pointer or Native operand keeps its backing window (and so
		// its arithmetic) intact; converting a scalar yields a bare,
		// unbacked address the way `as<type>` would.
		if v.Kind == KindPointer || v.Kind == KindNative {
			return v, nil
		}
		return Var{Kind: KindPointer, ival: ToInt(v)}, nil
	default:
		return Undefined, newFault(KindTypeError, "unsupported cast target %t", n.Target)
	}
}

// AsExpr is the non-converting `as<type>` reinterpret cast recovered
// from original_source/interpreter/specialexpr.c's ptrs_handle_as
// (SPEC_FULL.md §4.8): it reinterprets the raw bit pattern without
// running to_int/to_float/to_string and clears size/readOnly
// metadata.
type AsExpr struct {
	NodeBase
	Target  Kind
	Operand Node
}

func (n *AsExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return Var{Kind: n.Target, ival: v.address(), aux: v.aux, offset: v.offset}, nil
}

// SizeofExpr yields a Native/Pointer operand's element count as an Int
// (spec.md S1 scenario's `sizeof p`).
type SizeofExpr struct {
	NodeBase
	Operand Node
}

func (n *SizeofExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return IntVar(SizeOf(v)), nil
}

// TypeofExpr yields the operand's type name as a Native string
// (original_source/interpreter/specialexpr.c's
// ptrs_handle_prefix_typeof).
type TypeofExpr struct {
	NodeBase
	Operand Node
}

func (n *TypeofExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	name := TypeName(v.Kind)
	return NativeVar([]byte(name), int64(len(name)), true), nil
}

// TernaryExpr is `cond ? a : b`.
type TernaryExpr struct {
	NodeBase
	Cond, Then, Else Node
}

func (n *TernaryExpr) Eval(s *Scope) (Var, error) {
	cv, err := n.Cond.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if ToBool(cv) {
		return n.Then.Eval(s)
	}
	return n.Else.Eval(s)
}

// InstanceofExpr recovers original_source/interpreter/specialexpr.c's
// ptrs_handle_op_instanceof (SPEC_FULL.md §4.8/§8): true iff the left
// operand is a struct instance (non-nil Data) and the right operand is
// a Struct Var of the same declared type (member table identity). The
// right operand may be the struct type itself or an instance; its
// Data is not checked.
type InstanceofExpr struct {
	NodeBase
	Left, Right Node
}

func (n *InstanceofExpr) Eval(s *Scope) (Var, error) {
	lv, err := n.Left.Eval(s)
	if err != nil {
		return Undefined, err
	}
	rv, err := n.Right.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if lv.Kind != KindStruct || rv.Kind != KindStruct {
		return IntVar(0), nil
	}
	ls, rs := lv.Struct(), rv.Struct()
	if ls == nil || rs == nil || ls.Data == nil {
		return IntVar(0), nil
	}
	return IntVar(boolToInt(ls.Type == rs.Type)), nil
}

// NewExpr constructs a struct instance (spec.md §4.4 construct()).
type NewExpr struct {
	NodeBase
	TypeName string
	Args     []Node
	OnStack  bool
}

func (n *NewExpr) Eval(s *Scope) (Var, error) {
	st, ok := s.interp.lookupStructType(n.TypeName)
	if !ok {
		return Undefined, newFault(KindTypeError, "unknown struct type %q", n.TypeName)
	}
	args := make([]Var, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Eval(s)
		if err != nil {
			return Undefined, err
		}
		args[i] = v
	}
	return s.interp.construct(st, args)
}

// ArrayLiteralExpr is a `[a, b, c]` / `{a, b, c}` array literal.
type ArrayLiteralExpr struct {
	NodeBase
	Elements []Node
	IsVar    bool // {..} var-array vs [..] byte array
}

func (n *ArrayLiteralExpr) Eval(s *Scope) (Var, error) {
	if n.IsVar {
		vars := make([]Var, len(n.Elements))
		for i, e := range n.Elements {
			v, err := e.Eval(s)
			if err != nil {
				return Undefined, err
			}
			vars[i] = v
		}
		return PointerVar(vars, int64(len(vars))), nil
	}
	buf := make([]byte, len(n.Elements))
	for i, e := range n.Elements {
		v, err := e.Eval(s)
		if err != nil {
			return Undefined, err
		}
		buf[i] = byte(ToInt(v))
	}
	return NativeVar(buf, int64(len(buf)), false), nil
}

// StringFormatExpr implements spec.md §6.5's "text $expr more $expr"
// format strings, supplemented per SPEC_FULL.md §4.8 with the %v
// insertion recovered from jit/lib/error.c's ptrs_formatErrorMsg.
type StringFormatExpr struct {
	NodeBase
	Literals []string // len == len(Inserts)+1
	Inserts  []Node
}

func (n *StringFormatExpr) Eval(s *Scope) (Var, error) {
	var b strings.Builder
	for i, lit := range n.Literals {
		b.WriteString(lit)
		if i < len(n.Inserts) {
			v, err := n.Inserts[i].Eval(s)
			if err != nil {
				return Undefined, err
			}
			switch v.Kind {
			case KindInt:
				fmt.Fprintf(&b, "%d", v.Int())
			case KindFloat:
				fmt.Fprintf(&b, "%g", v.Float())
			default:
				b.WriteString(ToString(v))
			}
		}
	}
	str := b.String()
	return NativeVar([]byte(str), int64(len(str)), false), nil
}

// CallExpr is a function call `callee(args...)`. If callee is an
// Invocable node (struct member/index access), the fast path in
// CallNode is used so the overload lookup sees the receiver struct
// directly, matching original_source/interpreter/specialexpr.c's
// ptrs_handle_call dispatch between a generic ptrs_call and the
// member/index "call_*" fast paths. A bare Struct callee dispatches
// to its "()" overload per spec.md §4.5.
type CallExpr struct {
	NodeBase
	Callee Node
	Args   []Node
}

func (n *CallExpr) evalArgs(s *Scope) ([]Var, error) {
	args := make([]Var, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Eval(s)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (n *CallExpr) Eval(s *Scope) (Var, error) {
	args, err := n.evalArgs(s)
	if err != nil {
		return Undefined, err
	}
	if inv, ok := n.Callee.(Invocable); ok {
		return inv.CallNode(s, args)
	}
	cv, err := n.Callee.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if cv.Kind == KindStruct {
		sv := cv.Struct()
		if sv != nil {
			if ov := sv.Type.getOverload(OpCall, sv.Data == nil); ov != nil {
				return s.interp.callFunction(ov.Fn, args, sv)
			}
		}
	}
	s.interp.currentCallAST = n
	return s.interp.Call(cv, args)
}

// FunctionLiteralExpr produces a Function Var capturing the current
// scope (closures, spec.md §3.3/§9).
type FunctionLiteralExpr struct {
	NodeBase
	Name   string
	Params []Param
	Body   Node
}

func (n *FunctionLiteralExpr) Eval(s *Scope) (Var, error) {
	s.promote()
	fn := &Function{Name: n.Name, Params: n.Params, Body: n.Body, Scope: s}
	return FunctionVar(fn), nil
}
