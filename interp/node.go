package interp

// Node is an AST node as consumed (not authored) by this package: the
// parser is an external collaborator (spec.md §1) that produces trees
// of these. Every node implements Eval; node kinds that can appear as
// an assignment target additionally implement LValue, and node kinds
// that can appear in call position additionally implement Invocable.
// This realizes spec.md §9's "four distinct polymorphic operations"
// as Go interfaces instead of the source's per-node function
// pointers.
type Node interface {
	Pos() Position
	Eval(s *Scope) (Var, error)
}

// LValue is implemented by node kinds that are addressable:
// identifiers, struct member/index access, and dereference.
type LValue interface {
	Node
	Assign(s *Scope, v Var) (Var, error)
	Address(s *Scope) (Var, error)
}

// Invocable is implemented by node kinds that can appear in call
// position with a pre-resolved fast path (struct member/index access,
// where the overload lookup differs from a plain Eval-then-call);
// everything else falls back to Eval followed by the generic Call
// Engine (interp/call.go).
type Invocable interface {
	Node
	CallNode(s *Scope, args []Var) (Var, error)
}

// NodeBase carries source position, embedded by every concrete node.
type NodeBase struct {
	P Position
}

func (n NodeBase) Pos() Position { return n.P }

// asLValue returns n as an LValue, or a NotAnLValue fault if it isn't
// one — spec.md §4.6 "Assignment fails with NotAnLValue if x is not
// addressable."
func asLValue(n Node) (LValue, error) {
	lv, ok := n.(LValue)
	if !ok {
		return nil, newFault(KindNotAnLValue, "expression is not assignable")
	}
	return lv, nil
}
