package interp

// This file is the Operator Engine (spec.md §4.6), grounded verbatim
// on original_source/interpreter/ops.c's dispatch order: struct
// overload check first, then native type dispatch, then a to_int
// fallback.

// BinaryExpr is a binary operator application (+ - * / % & | ^ << >>
// == != < <= > >=). Short-circuit && and || are a separate node kind,
// LogicalExpr, below.
type BinaryExpr struct {
	NodeBase
	Op          OperatorTag
	Left, Right Node
}

func (n *BinaryExpr) Eval(s *Scope) (Var, error) {
	l, err := n.Left.Eval(s)
	if err != nil {
		return Undefined, err
	}
	r, err := n.Right.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return s.interp.binaryOp(n.Op, l, r)
}

// binaryOp implements spec.md §4.6 step 2-4.
func (it *Interpreter) binaryOp(op OperatorTag, l, r Var) (Var, error) {
	if l.Kind == KindStruct {
		if sv := l.Struct(); sv != nil {
			if ov := sv.Type.getOverload(op, sv.Data == nil); ov != nil {
				return it.callFunction(ov.Fn, []Var{r}, sv)
			}
		}
	}

	switch {
	case l.Kind == KindInt && r.Kind == KindInt:
		return intBinary(op, l.Int(), r.Int())
	case (l.Kind == KindFloat || r.Kind == KindFloat) && isArith(op):
		return FloatVar(floatBinaryArith(op, ToFloat(l), ToFloat(r))), nil
	case l.Kind == KindFloat || r.Kind == KindFloat:
		return boolCompare(op, ToFloat(l), ToFloat(r))
	case l.Kind == KindPointer && r.Kind == KindInt && (op == OpAdd || op == OpSub):
		return pointerIntArith(l, r.Int(), op), nil
	case l.Kind == KindInt && r.Kind == KindPointer && op == OpAdd:
		return pointerIntArith(r, l.Int(), op), nil
	case l.Kind == KindPointer && r.Kind == KindPointer && op == OpSub:
		lp, rp := l.Pointer(), r.Pointer()
		if lp != nil && rp != nil && samePointerBase(lp, rp) {
			return IntVar(l.offset - r.offset), nil
		}
		return IntVar(l.address() - r.address()), nil
	case l.Kind == KindNative && r.Kind == KindInt && (op == OpAdd || op == OpSub):
		return nativeIntArith(l, r.Int(), op), nil
	case l.Kind == KindInt && r.Kind == KindNative && op == OpAdd:
		return nativeIntArith(r, l.Int(), op), nil
	case isComparison(op) && (l.Kind == KindPointer || l.Kind == KindNative || l.Kind == KindFunction || l.Kind == KindStruct || r.Kind == KindPointer || r.Kind == KindNative || r.Kind == KindFunction || r.Kind == KindStruct):
		return boolCompare(op, float64(l.address()), float64(r.address()))
	default:
		li, ri := ToInt(l), ToInt(r)
		return intBinary(op, li, ri)
	}
}

func isArith(op OperatorTag) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	default:
		return false
	}
}

func isComparison(op OperatorTag) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	default:
		return false
	}
}

func floatBinaryArith(op OperatorTag, l, r float64) float64 {
	switch op {
	case OpAdd:
		return l + r
	case OpSub:
		return l - r
	case OpMul:
		return l * r
	case OpDiv:
		return l / r
	case OpMod:
		li, ri := int64(l), int64(r)
		if ri == 0 {
			return 0
		}
		return float64(li % ri)
	default:
		return 0
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func boolCompare(op OperatorTag, l, r float64) (Var, error) {
	switch op {
	case OpEqual:
		return IntVar(boolToInt(l == r)), nil
	case OpNotEqual:
		return IntVar(boolToInt(l != r)), nil
	case OpLess:
		return IntVar(boolToInt(l < r)), nil
	case OpLessEqual:
		return IntVar(boolToInt(l <= r)), nil
	case OpGreater:
		return IntVar(boolToInt(l > r)), nil
	case OpGreaterEqual:
		return IntVar(boolToInt(l >= r)), nil
	default:
		return Undefined, newFault(KindTypeError, "operator not applicable to float operands")
	}
}

func intBinary(op OperatorTag, l, r int64) (Var, error) {
	switch op {
	case OpAdd:
		return IntVar(l + r), nil
	case OpSub:
		return IntVar(l - r), nil
	case OpMul:
		return IntVar(l * r), nil
	case OpDiv:
		if r == 0 {
			return Undefined, newFault(KindTypeError, "integer division by zero")
		}
		return IntVar(l / r), nil
	case OpMod:
		if r == 0 {
			return Undefined, newFault(KindTypeError, "integer division by zero")
		}
		return IntVar(l % r), nil
	case OpAnd:
		return IntVar(l & r), nil
	case OpOr:
		return IntVar(l | r), nil
	case OpXor:
		return IntVar(l ^ r), nil
	case OpShl:
		return IntVar(l << uint(r)), nil
	case OpShr:
		return IntVar(l >> uint(r)), nil
	case OpEqual:
		return IntVar(boolToInt(l == r)), nil
	case OpNotEqual:
		return IntVar(boolToInt(l != r)), nil
	case OpLess:
		return IntVar(boolToInt(l < r)), nil
	case OpLessEqual:
		return IntVar(boolToInt(l <= r)), nil
	case OpGreater:
		return IntVar(boolToInt(l > r)), nil
	case OpGreaterEqual:
		return IntVar(boolToInt(l >= r)), nil
	default:
		return Undefined, newFault(KindTypeError, "unsupported operator on int operands")
	}
}

func samePointerBase(l, r *ptrMem) bool {
	return l == r
}

// pointerIntArith implements Ptr+Int/Ptr-Int by re-anchoring the
// Pointer's offset into its shared backing array, so that
// (p+i)-p == i and (p+i)+j == p+(i+j) hold exactly (spec.md §8
// invariant 2) regardless of how many times the window has moved.
func pointerIntArith(p Var, i int64, op OperatorTag) Var {
	pm := p.Pointer()
	if pm == nil {
		return p
	}
	delta := i
	if op == OpSub {
		delta = -i
	}
	return pointerVarAt(pm, p.offset+delta, p.size-delta)
}

func nativeIntArith(n Var, i int64, op OperatorTag) Var {
	nm := n.Native()
	if nm == nil {
		return n
	}
	delta := i
	if op == OpSub {
		delta = -i
	}
	return nativeVarAt(nm, n.offset+delta, n.size-delta, n.readOnly)
}

// LogicalExpr is && / || with short-circuit evaluation (spec.md §4.6).
type LogicalExpr struct {
	NodeBase
	IsOr        bool
	Left, Right Node
}

func (n *LogicalExpr) Eval(s *Scope) (Var, error) {
	l, err := n.Left.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if n.IsOr && ToBool(l) {
		return l, nil
	}
	if !n.IsOr && !ToBool(l) {
		return l, nil
	}
	return n.Right.Eval(s)
}

// AssignExpr is `x = y`.
type AssignExpr struct {
	NodeBase
	Target Node
	Value  Node
}

func (n *AssignExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Value.Eval(s)
	if err != nil {
		return Undefined, err
	}
	lv, err := asLValue(n.Target)
	if err != nil {
		return Undefined, err
	}
	return lv.Assign(s, v)
}

// CompoundAssignExpr is `x ⊙= y` (spec.md §4.6).
type CompoundAssignExpr struct {
	NodeBase
	Op     OperatorTag
	Target Node
	Value  Node
}

func (n *CompoundAssignExpr) Eval(s *Scope) (Var, error) {
	lv, err := asLValue(n.Target)
	if err != nil {
		return Undefined, err
	}
	cur, err := n.Target.Eval(s)
	if err != nil {
		return Undefined, err
	}
	rhs, err := n.Value.Eval(s)
	if err != nil {
		return Undefined, err
	}
	res, err := s.interp.binaryOp(n.Op, cur, rhs)
	if err != nil {
		return Undefined, err
	}
	return lv.Assign(s, res)
}

// PrefixExpr is prefix ++/--/!/+/-. ++/-- require an addressable
// operand; struct operands dispatch to the corresponding overload
// with an isSuffixed=false marker per spec.md §4.6.
type PrefixExpr struct {
	NodeBase
	Op      OperatorTag
	IsNot   bool
	IsPlus  bool
	IsMinus bool
	Operand Node
}

func (n *PrefixExpr) Eval(s *Scope) (Var, error) {
	if n.IsNot {
		v, err := n.Operand.Eval(s)
		if err != nil {
			return Undefined, err
		}
		return IntVar(boolToInt(!ToBool(v))), nil
	}
	if n.IsPlus || n.IsMinus {
		v, err := n.Operand.Eval(s)
		if err != nil {
			return Undefined, err
		}
		if v.Kind == KindFloat {
			f := v.Float()
			if n.IsMinus {
				f = -f
			}
			return FloatVar(f), nil
		}
		i := ToInt(v)
		if n.IsMinus {
			i = -i
		}
		return IntVar(i), nil
	}

	// ++ / --
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if v.Kind == KindStruct {
		if sv := v.Struct(); sv != nil {
			if ov := sv.Type.getOverload(n.Op, sv.Data == nil); ov != nil {
				return s.interp.callFunction(ov.Fn, []Var{IntVar(0)}, sv)
			}
		}
	}
	lv, err := asLValue(n.Operand)
	if err != nil {
		return Undefined, err
	}
	next, err := stepValue(v, n.Op)
	if err != nil {
		return Undefined, err
	}
	return lv.Assign(s, next)
}

// SuffixExpr is suffix ++/--: returns the pre-increment value.
type SuffixExpr struct {
	NodeBase
	Op      OperatorTag
	Operand Node
}

func (n *SuffixExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	if v.Kind == KindStruct {
		if sv := v.Struct(); sv != nil {
			if ov := sv.Type.getOverload(n.Op, sv.Data == nil); ov != nil {
				if _, err := s.interp.callFunction(ov.Fn, []Var{IntVar(1)}, sv); err != nil {
					return Undefined, err
				}
				return v, nil
			}
		}
	}
	lv, err := asLValue(n.Operand)
	if err != nil {
		return Undefined, err
	}
	next, err := stepValue(v, n.Op)
	if err != nil {
		return Undefined, err
	}
	if _, err := lv.Assign(s, next); err != nil {
		return Undefined, err
	}
	return v, nil
}

func stepValue(v Var, op OperatorTag) (Var, error) {
	delta := int64(1)
	if op == OpDec {
		delta = -1
	}
	switch v.Kind {
	case KindPointer:
		return pointerIntArith(v, delta, OpAdd), nil
	case KindNative:
		return nativeIntArith(v, delta, OpAdd), nil
	case KindFloat:
		return FloatVar(v.Float() + float64(delta)), nil
	default:
		return IntVar(ToInt(v) + delta), nil
	}
}

// AddressExpr is `&x`: yields a size-1 Pointer to the storage cell
// (spec.md §4.6). Taking the address of a non-addressable expression
// is a NotAnLValue fault (static-expression case of
// original_source/interpreter/specialexpr.c's ptrs_handle_prefix_address).
type AddressExpr struct {
	NodeBase
	Operand Node
}

func (n *AddressExpr) Eval(s *Scope) (Var, error) {
	lv, err := asLValue(n.Operand)
	if err != nil {
		return Undefined, err
	}
	return lv.Address(s)
}

// DereferenceExpr is `*p`: Pointer reads the target cell, Native
// reads one byte (spec.md §4.6).
type DereferenceExpr struct {
	NodeBase
	Operand Node
}

func (n *DereferenceExpr) Eval(s *Scope) (Var, error) {
	v, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	return derefRead(v)
}

func derefRead(v Var) (Var, error) {
	switch v.Kind {
	case KindPointer:
		cell := v.cell()
		if cell == nil {
			return Undefined, newFault(KindOutOfRange, "dereference out of range")
		}
		return *cell, nil
	case KindNative:
		b := v.byteAt()
		if b == nil {
			return Undefined, newFault(KindOutOfRange, "dereference out of range")
		}
		return IntVar(int64(*b)), nil
	default:
		return Undefined, newFault(KindTypeError, "cannot dereference value of type %t", v.Kind)
	}
}

func (n *DereferenceExpr) Assign(s *Scope, v Var) (Var, error) {
	base, err := n.Operand.Eval(s)
	if err != nil {
		return Undefined, err
	}
	switch base.Kind {
	case KindPointer:
		cell := base.cell()
		if cell == nil {
			return Undefined, newFault(KindOutOfRange, "dereference assignment out of range")
		}
		*cell = v
		return v, nil
	case KindNative:
		b := base.byteAt()
		if b == nil {
			return Undefined, newFault(KindOutOfRange, "dereference assignment out of range")
		}
		*b = byte(ToInt(v))
		return v, nil
	default:
		return Undefined, newFault(KindTypeError, "cannot assign through dereference of type %t", base.Kind)
	}
}

func (n *DereferenceExpr) Address(s *Scope) (Var, error) {
	return n.Operand.Eval(s)
}
