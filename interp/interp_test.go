package interp

import "testing"

// These tests hand-build the AST that a real PointerScript lexer/
// parser would produce for spec.md §8's end-to-end scenarios S1-S3,
// S5-S6 (S4 needs a real native qsort symbol and so is exercised at
// the unit level in ffi_test.go instead).

func intLit(v int64) Node { return &constNode{v: IntVar(v)} }

// TestScenarioS1PointerArithmetic: var buf[8] = [1..8]; var p =
// cast<pointer>(&buf[0]); var q = p + 3; (*q) == 4; sizeof p - sizeof
// q == 3.
func TestScenarioS1PointerArithmetic(t *testing.T) {
	it := New(Options{})
	s := newScope(nil, it)

	bufInit := make([]Node, 8)
	for i := range bufInit {
		bufInit[i] = intLit(int64(i + 1))
	}
	if _, err := (&ArrayDeclStmt{Size: intLit(8), Init: bufInit}).Eval(s); err != nil {
		t.Fatalf("buf decl: %v", err)
	}
	bufOff := 0

	pInit := &CastExpr{
		Target: KindPointer,
		Operand: &AddressExpr{Operand: &IndexExpr{
			Base: &identNode{depth: 0, offset: bufOff}, Index: intLit(0),
		}},
	}
	if _, err := (&VarDeclStmt{Name: "p", Init: pInit}).Eval(s); err != nil {
		t.Fatalf("p decl: %v", err)
	}
	pOff := 1

	qInit := &BinaryExpr{Op: OpAdd, Left: &identNode{depth: 0, offset: pOff}, Right: intLit(3)}
	if _, err := (&VarDeclStmt{Name: "q", Init: qInit}).Eval(s); err != nil {
		t.Fatalf("q decl: %v", err)
	}
	qOff := 2

	deref, err := (&DereferenceExpr{Operand: &identNode{depth: 0, offset: qOff}}).Eval(s)
	if err != nil {
		t.Fatalf("*q: %v", err)
	}
	if deref.Int() != 4 {
		t.Errorf("*q = %v, want 4", deref)
	}

	sizeDiff, err := (&BinaryExpr{
		Op:   OpSub,
		Left: &SizeofExpr{Operand: &identNode{depth: 0, offset: pOff}},
		Right: &SizeofExpr{Operand: &identNode{depth: 0, offset: qOff}},
	}).Eval(s)
	if err != nil {
		t.Fatalf("sizeof p - sizeof q: %v", err)
	}
	if sizeDiff.Int() != 3 {
		t.Errorf("sizeof p - sizeof q = %v, want 3", sizeDiff)
	}
}

// TestScenarioS2OverloadOnAdd: struct Vec with operator+; (a+b).x == 11.
func TestScenarioS2OverloadOnAdd(t *testing.T) {
	it := New(Options{})
	s := newScope(nil, it)

	st := &StructType{Name: "Vec", InstanceSize: 2, Members: []StructMember{
		{Name: "x", Kind: MemberVariable, Offset: 0},
		{Name: "y", Kind: MemberVariable, Offset: 1},
	}, MemberCount: 2}
	st.Overloads = []Overload{{
		Op: OpAdd,
		Fn: &Function{
			Params: []Param{{Name: "o"}},
			Body: &BodyStmt{Stmts: []Node{
				// scope layout after callFunction's setup: 0=o (param),
				// 1=this (bound receiver), 2=arguments; "var r" is the
				// first slot the body itself declares, landing at 3.
				&VarDeclStmt{Name: "r", Init: &NewExpr{TypeName: "Vec"}},
				&AssignExpr{
					Target: &MemberExpr{Base: &identNode{depth: 0, offset: 3}, Name: "x"},
					Value: &BinaryExpr{
						Op:   OpAdd,
						Left: &MemberExpr{Base: &identNode{depth: 0, offset: 1}, Name: "x"},
						Right: &MemberExpr{Base: &identNode{depth: 0, offset: 0}, Name: "x"},
					},
				},
				&ReturnStmt{Value: &identNode{depth: 0, offset: 3}},
			}},
			Scope: it.root,
		},
	}}
	it.registerStructType(st)

	aV, err := (&NewExpr{TypeName: "Vec"}).Eval(s)
	if err != nil {
		t.Fatalf("new Vec: %v", err)
	}
	mustDeclare(t, s, aV)
	aOff := 0
	if _, err := (&MemberExpr{Base: &identNode{depth: 0, offset: aOff}, Name: "x"}).Assign(s, IntVar(1)); err != nil {
		t.Fatalf("a.x=1: %v", err)
	}
	if _, err := (&MemberExpr{Base: &identNode{depth: 0, offset: aOff}, Name: "y"}).Assign(s, IntVar(2)); err != nil {
		t.Fatalf("a.y=2: %v", err)
	}

	bV, err := (&NewExpr{TypeName: "Vec"}).Eval(s)
	if err != nil {
		t.Fatalf("new Vec: %v", err)
	}
	mustDeclare(t, s, bV)
	bOff := 1
	if _, err := (&MemberExpr{Base: &identNode{depth: 0, offset: bOff}, Name: "x"}).Assign(s, IntVar(10)); err != nil {
		t.Fatalf("b.x=10: %v", err)
	}
	if _, err := (&MemberExpr{Base: &identNode{depth: 0, offset: bOff}, Name: "y"}).Assign(s, IntVar(20)); err != nil {
		t.Fatalf("b.y=20: %v", err)
	}

	sum, err := (&BinaryExpr{Op: OpAdd, Left: &identNode{depth: 0, offset: aOff}, Right: &identNode{depth: 0, offset: bOff}}).Eval(s)
	if err != nil {
		t.Fatalf("a+b: %v", err)
	}
	sv := sum.Struct()
	x, err := getMember(sv, sv.Type.find("x", 0, false), it)
	if err != nil {
		t.Fatalf("(a+b).x: %v", err)
	}
	if x.Int() != 11 {
		t.Errorf("(a+b).x = %v, want 11", x)
	}
}

// TestScenarioS3TryCatchFinallyOrdering: out builds "AC:oopsD".
func TestScenarioS3TryCatchFinallyOrdering(t *testing.T) {
	it := New(Options{})
	s := newScope(nil, it)
	outOff := mustDeclare(t, s, NativeVar([]byte(""), 0, false))

	appendOut := func(s2 *Scope, text string) {
		cur := s2.get(0, outOff)
		next := ToString(cur) + text
		s2.set(0, outOff, NativeVar([]byte(next), int64(len(next)), false))
	}

	n := &TryStmt{
		Body: &BodyStmt{Stmts: []Node{
			&fakeNode{fn: func(s2 *Scope) (Var, error) { appendOut(s2, "A"); return Undefined, nil }},
			&ThrowStmt{Value: &constNode{v: NativeVar([]byte("oops"), 4, true)}},
			&fakeNode{fn: func(s2 *Scope) (Var, error) { appendOut(s2, "B"); return Undefined, nil }},
		}},
		Catch: &CatchClause{
			Params: []string{"m"},
			Body: &fakeNode{fn: func(s2 *Scope) (Var, error) {
				msg := s2.get(0, s2.sp-1)
				appendOut(s2, "C:"+ToString(msg))
				return Undefined, nil
			}},
		},
		Finally: &fakeNode{fn: func(s2 *Scope) (Var, error) { appendOut(s2, "D"); return Undefined, nil }},
	}

	if _, err := n.Eval(s); err != nil {
		t.Fatalf("try/catch/finally: %v", err)
	}
	if got, want := ToString(s.get(0, outOff)), "AC:oopsD"; got != want {
		t.Errorf("out = %q, want %q", got, want)
	}
}

// TestScenarioS5ForInOverStructOverload: sum == 3 via a Range struct's
// `for in` overload.
func TestScenarioS5ForInOverStructOverload(t *testing.T) {
	it := New(Options{})
	s := newScope(nil, it)

	st := &StructType{Name: "Range", InstanceSize: 1, Members: []StructMember{
		{Name: "n", Kind: MemberVariable, Offset: 0},
	}, MemberCount: 1}
	st.Overloads = []Overload{{
		Op: OpForIn,
		Fn: &Function{
			Params: []Param{{Name: "yielder"}},
			// scope layout after callFunction's setup: 0=yielder (param),
			// 1=this (bound Range instance), 2=arguments; "var i" is the
			// first slot the loop's Init declares, landing at 3.
			Body: &BodyStmt{Stmts: []Node{
				&ForStmt{
					Init: &VarDeclStmt{Name: "i", Init: intLit(0)},
					Cond: &BinaryExpr{
						Op:   OpLess,
						Left: &identNode{depth: 0, offset: 3},
						Right: &MemberExpr{Base: &identNode{depth: 0, offset: 1}, Name: "n"},
					},
					Step: &SuffixExpr{Op: OpInc, Operand: &identNode{depth: 0, offset: 3}},
					Body: &CallExpr{
						Callee: &identNode{depth: 0, offset: 0},
						Args:   []Node{&identNode{depth: 0, offset: 3}},
					},
				},
			}},
			Scope: it.root,
		},
	}}
	it.registerStructType(st)

	rV, err := (&NewExpr{TypeName: "Range"}).Eval(s)
	if err != nil {
		t.Fatalf("new Range: %v", err)
	}
	mustDeclare(t, s, rV)
	rOff := 0
	if _, err := (&MemberExpr{Base: &identNode{depth: 0, offset: rOff}, Name: "n"}).Assign(s, IntVar(3)); err != nil {
		t.Fatalf("r.n=3: %v", err)
	}

	sumOff := mustDeclare(t, s, IntVar(0))
	forIn := &ForInStmt{
		KeyName: "i",
		Source:  &identNode{depth: 0, offset: rOff},
		Body: &fakeNode{fn: func(s2 *Scope) (Var, error) {
			i := s2.get(0, 0)
			cur := s2.get(1, sumOff)
			s2.set(1, sumOff, IntVar(cur.Int()+i.Int()))
			return Undefined, nil
		}},
	}
	if _, err := forIn.Eval(s); err != nil {
		t.Fatalf("for in r: %v", err)
	}
	if got := s.get(0, sumOff).Int(); got != 3 {
		t.Errorf("sum = %d, want 3", got)
	}
}

// TestScenarioS6ClosureCapture: make() returns a closure over x that
// post-increments it across three calls: 10, 11, 12.
func TestScenarioS6ClosureCapture(t *testing.T) {
	it := New(Options{})

	// make()'s own scope always gets an "arguments" slot at offset 0
	// (callFunction declares it unconditionally), so the body's "var
	// x=10" lands at offset 1.
	makeFn := &Function{
		Name: "make",
		Body: &BodyStmt{Stmts: []Node{
			&VarDeclStmt{Name: "x", Init: intLit(10)},
			&ReturnStmt{Value: &FunctionLiteralExpr{
				Body: &BodyStmt{Stmts: []Node{
					&ReturnStmt{Value: &SuffixExpr{Op: OpInc, Operand: &identNode{depth: 1, offset: 1}}},
				}},
			}},
		}},
		Scope: it.root,
	}

	fV, err := it.callFunction(makeFn, nil, nil)
	if err != nil {
		t.Fatalf("make(): %v", err)
	}
	f := fV.Function()

	want := []int64{10, 11, 12}
	for i, w := range want {
		result, err := it.callFunction(f, nil, nil)
		if err != nil {
			t.Fatalf("f() call %d: %v", i, err)
		}
		if result.Int() != w {
			t.Errorf("f() call %d = %d, want %d", i, result.Int(), w)
		}
	}
}
