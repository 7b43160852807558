package interp

import "testing"

// TestHashNameSingleChar exercises spec.md §6.3's canonical test
// vector. The spec's prose illustrates "a" via its first term alone
// ('A'-'0' = 17); original_source/jit/lib/struct.c's actual routine
// always adds an uncorrected trailing toupper(*--key) term, giving 82
// for a one-character key (see DESIGN.md's Open Question decision).
func TestHashNameSingleChar(t *testing.T) {
	if got, want := hashName("a"), uint64(82); got != want {
		t.Errorf("hashName(%q) = %d, want %d", "a", got, want)
	}
}

func TestHashNameDeterministic(t *testing.T) {
	if hashName("constructor") != hashName("constructor") {
		t.Error("hashName must be a pure function of its input")
	}
	if hashName("foo") == hashName("bar") {
		t.Error("distinct short keys happened to collide in this assertion (unexpected but not itself a bug); re-check the fixture")
	}
}

// TestHashNameCaseFolded: every term uses the upper-cased character, so
// the case of the first and last characters does not matter; whether a
// later character adds a loop term depends on its own case, so an
// all-upper key hashes differently from a lower-case one.
func TestHashNameCaseFolded(t *testing.T) {
	if got, want := hashName("Foo"), uint64(101); got != want {
		t.Errorf("hashName(Foo) = %d, want %d", got, want)
	}
	if hashName("foo") != hashName("Foo") {
		t.Errorf("hashName should fold case of the first character: hashName(foo)=%d hashName(Foo)=%d", hashName("foo"), hashName("Foo"))
	}
	if got, want := hashName("FOO"), uint64(1863); got != want {
		t.Errorf("hashName(FOO) = %d, want %d", got, want)
	}
}

func buildStructType(names ...string) *StructType {
	count := len(names) * 2 // generous slack to avoid forcing collisions in tests that don't want them
	if count == 0 {
		count = 1
	}
	st := &StructType{Name: "T", MemberCount: count, Members: make([]StructMember, count)}
	for _, name := range names {
		idx := int(hashName(name) % uint64(count))
		for i := 0; i < count; i++ {
			slot := (idx + i) % count
			if st.Members[slot].Name == "" {
				st.Members[slot] = StructMember{Name: name, Kind: MemberVariable, Offset: len(names)}
				break
			}
		}
	}
	return st
}

func TestStructTypeFindLinearProbing(t *testing.T) {
	st := buildStructType("a", "b", "c", "constructor")
	for _, name := range []string{"a", "b", "c", "constructor"} {
		if m := st.find(name, 0, false); m == nil {
			t.Errorf("find(%q) = nil, want a match", name)
		} else if m.Name != name {
			t.Errorf("find(%q).Name = %q", name, m.Name)
		}
	}
	if m := st.find("nonexistent", 0, false); m != nil {
		t.Errorf("find(nonexistent) = %+v, want nil", m)
	}
}

func TestStructTypeFindExcludeKind(t *testing.T) {
	st := &StructType{Name: "T", MemberCount: 4, Members: make([]StructMember, 4)}
	idx := int(hashName("x") % 4)
	st.Members[idx] = StructMember{Name: "x", Kind: MemberSetter}
	if m := st.find("x", MemberSetter, true); m != nil {
		t.Errorf("find with excludeKind=Setter should skip a Setter-kind match, got %+v", m)
	}
	if m := st.find("x", MemberGetter, true); m == nil {
		t.Error("find with excludeKind=Getter should still return the Setter-kind match")
	}
}

func TestCanAccess(t *testing.T) {
	st := &StructType{Name: "T", DeclFile: "a.ptrs"}
	pub := &StructMember{Protection: ProtPublic}
	priv := &StructMember{Protection: ProtPrivate}

	if !canAccess(pub, st, "b.ptrs") {
		t.Error("public members must be accessible from any file")
	}
	if canAccess(priv, st, "b.ptrs") {
		t.Error("private members must not be accessible from a different file")
	}
	if !canAccess(priv, st, "a.ptrs") {
		t.Error("private members must be accessible from the declaring file")
	}
}

func TestGetSetMemberVariable(t *testing.T) {
	st := &StructType{Name: "Point", InstanceSize: 2, Members: []StructMember{
		{Name: "x", Kind: MemberVariable, Offset: 0},
		{Name: "y", Kind: MemberVariable, Offset: 1},
	}, MemberCount: 2}
	it := New(Options{})
	v, err := it.construct(st, nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	sv := v.Struct()

	if err := setMember(sv, &st.Members[0], IntVar(3), it); err != nil {
		t.Fatalf("setMember: %v", err)
	}
	got, err := getMember(sv, &st.Members[0], it)
	if err != nil {
		t.Fatalf("getMember: %v", err)
	}
	if got.Int() != 3 {
		t.Errorf("getMember(x) = %v, want 3", got)
	}
}

func TestGetMemberArrayIsByteView(t *testing.T) {
	st := &StructType{Name: "Buf", InstanceSize: 4, Members: []StructMember{
		{Name: "data", Kind: MemberArray, Offset: 0, Size: 4},
	}, MemberCount: 1}
	it := New(Options{})
	v, _ := it.construct(st, nil)
	sv := v.Struct()
	for i, b := range []byte{1, 2, 3, 4} {
		sv.Data[i] = IntVar(int64(b))
	}
	got, err := getMember(sv, &st.Members[0], it)
	if err != nil {
		t.Fatalf("getMember: %v", err)
	}
	if got.Kind != KindNative {
		t.Fatalf("Array member should read back as Native, got %v", got.Kind)
	}
	if SizeOf(got) != 4 {
		t.Errorf("Array member size = %d, want 4", SizeOf(got))
	}
}

func TestConstructRunsNewOverload(t *testing.T) {
	called := false
	st := &StructType{Name: "Widget", InstanceSize: 0}
	st.Overloads = []Overload{{
		Op: OpNew,
		Fn: &Function{GoFunc: func(args []Var) (Var, error) {
			called = true
			return Undefined, nil
		}},
	}}
	it := New(Options{})
	if _, err := it.construct(st, nil); err != nil {
		t.Fatalf("construct: %v", err)
	}
	if !called {
		t.Error("construct() should invoke the `new` overload when present")
	}
}
