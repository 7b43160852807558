package interp

import "unicode"

// MemberKind tags a StructMember's storage discipline, per spec.md
// §3.4/§4.4.
type MemberKind uint8

const (
	MemberVariable MemberKind = iota
	MemberArray
	MemberVarArray
	MemberTyped
	MemberFunction
	MemberGetter
	MemberSetter
)

// Protection is a struct member's access-control level, recovered
// from original_source/jit/lib/struct.c's ptrs_struct_canAccess (0 =
// public, 1 = private-to-declaring-file).
type Protection uint8

const (
	ProtPublic Protection = iota
	ProtPrivate
)

// NativeType describes the native scalar behind a Typed member.
type NativeType uint8

const (
	NativeInt8 NativeType = iota
	NativeInt16
	NativeInt32
	NativeInt64
	NativeFloat32
	NativeFloat64
)

// StructMember is one open-addressed slot of a struct's member table
// (spec.md §3.4). An empty slot has Name == "".
type StructMember struct {
	Name       string
	Kind       MemberKind
	Offset     int // slot offset for Variable/Array/VarArray/Typed
	Size       int64
	Native     NativeType
	Fn         *Function
	Protection Protection
}

// OperatorTag enumerates the overloadable operators of spec.md §4.4.
type OperatorTag uint8

const (
	OpAdd OperatorTag = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpInc
	OpDec
	OpCall
	OpIndex
	OpMember
	OpNew
	OpDelete
	OpForIn
)

// Overload is one entry of a struct's overload list (spec.md §3.4).
type Overload struct {
	Op       OperatorTag
	IsStatic bool
	Fn       *Function
}

// StructType is a declared struct (the type, shared by all
// instances), holding the member hash table, overload list, and
// static storage (spec.md §3.4).
type StructType struct {
	Name        string
	InstanceSize int
	ParentScope *Scope
	DeclFile    string

	Members     []StructMember // length == MemberCount, open-addressed
	MemberCount int

	Overloads  []Overload
	StaticData []Var
}

// StructVal is a Var's Struct payload: a reference to the type, and
// (for instances) the instance storage. Data == nil means this Var
// refers to the struct type itself, not an instance (spec.md §3.4).
type StructVal struct {
	Type *StructType
	Data []Var
}

// hashName is the canonical struct-member hash function, preserved
// bit-for-bit from original_source/jit/lib/struct.c's
// ptrs_struct_hashName per spec.md §4.4/§6.3's binary-compatibility
// requirement.
func hashName(key string) uint64 {
	if key == "" {
		return 0
	}
	up := func(b byte) byte {
		return byte(unicode.ToUpper(rune(b)))
	}
	isUpperOrDigit := func(b byte) bool {
		r := rune(b)
		return unicode.IsUpper(r) || unicode.IsDigit(r)
	}

	k := []byte(key)
	hash := uint64(up(k[0])) - '0'
	for i := 1; i < len(k); i++ {
		if isUpperOrDigit(k[i]) {
			hash <<= 3
			hash += uint64(up(k[i-1])) - '0'
			hash ^= uint64(up(k[i])) - '0'
		}
	}
	// Preserved verbatim from the C source's `hash += toupper(*--key)`:
	// the final term is NOT offset by '0' the way the per-character
	// loop terms are (see DESIGN.md's Open Question decision on the
	// single-character test vector).
	hash += uint64(up(k[len(k)-1]))
	return hash
}

// find is spec.md §4.4's find(struct, key, excludeKind): walks from
// the hashed slot via linear probing until a matching name is found
// or an empty slot is hit.
func (st *StructType) find(key string, excludeKind MemberKind, hasExclude bool) *StructMember {
	if st.MemberCount == 0 {
		return nil
	}
	idx := int(hashName(key) % uint64(st.MemberCount))
	for i := 0; i < st.MemberCount; i++ {
		slot := &st.Members[(idx+i)%st.MemberCount]
		if slot.Name == "" {
			return nil
		}
		if slot.Name == key {
			if hasExclude && slot.Kind == excludeKind {
				return nil
			}
			return slot
		}
	}
	return nil
}

// canAccess implements the protection check of
// original_source/jit/lib/struct.c's ptrs_struct_canAccess.
func canAccess(m *StructMember, st *StructType, accessingFile string) bool {
	if m.Protection == ProtPublic {
		return true
	}
	return accessingFile == st.DeclFile
}

// getOverload implements spec.md §4.4's overload dispatch lookup,
// matching the teacher-sibling original_source C's identity-based
// lookup (here by OperatorTag instead of handler-function-pointer
// identity, since Go has no equivalent function-pointer tag).
func (st *StructType) getOverload(op OperatorTag, isStatic bool) *Overload {
	for i := range st.Overloads {
		o := &st.Overloads[i]
		if o.Op == op && o.IsStatic == isStatic {
			return o
		}
	}
	return nil
}

// getMember implements spec.md §4.4's Get semantics table.
func getMember(sv *StructVal, m *StructMember, it *Interpreter) (Var, error) {
	storage := sv.Data
	if m.Kind != MemberFunction && m.Kind != MemberGetter && m.Kind != MemberSetter && storage == nil {
		storage = sv.Type.StaticData
	}
	switch m.Kind {
	case MemberVariable:
		if m.Offset < len(storage) {
			return storage[m.Offset], nil
		}
		return Undefined, nil
	case MemberArray:
		if m.Offset >= len(storage) {
			return Undefined, nil
		}
		// Represent the byte array as a Native view over a
		// synthesized buffer of the member's declared size.
		buf := make([]byte, m.Size)
		for i := int64(0); i < m.Size && m.Offset+int(i) < len(storage); i++ {
			buf[i] = byte(ToInt(storage[m.Offset+int(i)]))
		}
		return NativeVar(buf, m.Size, false), nil
	case MemberVarArray:
		if m.Offset+int(m.Size) > len(storage) {
			return Undefined, nil
		}
		return PointerVar(storage[m.Offset:m.Offset+int(m.Size)], m.Size), nil
	case MemberTyped:
		if m.Offset >= len(storage) {
			return Undefined, nil
		}
		v := storage[m.Offset]
		switch m.Native {
		case NativeFloat32, NativeFloat64:
			return FloatVar(ToFloat(v)), nil
		default:
			return IntVar(ToInt(v)), nil
		}
	case MemberGetter:
		if it == nil {
			return Undefined, nil
		}
		return it.callFunction(m.Fn, nil, StructVar(sv))
	case MemberFunction:
		bound := &Function{
			Name:    m.Fn.Name,
			Params:  m.Fn.Params,
			Body:    m.Fn.Body,
			Scope:   m.Fn.Scope,
			BoundThis: sv,
		}
		return FunctionVar(bound), nil
	default:
		return Undefined, newFault(KindTypeError, "cannot read member of kind %d", m.Kind)
	}
}

// setMember implements spec.md §4.4's Set semantics table.
func setMember(sv *StructVal, m *StructMember, v Var, it *Interpreter) error {
	storage := sv.Data
	if storage == nil {
		storage = sv.Type.StaticData
	}
	switch m.Kind {
	case MemberVariable, MemberTyped:
		for m.Offset >= len(storage) {
			storage = append(storage, Undefined)
		}
		storage[m.Offset] = v
		if sv.Data != nil {
			sv.Data = storage
		} else {
			sv.Type.StaticData = storage
		}
		return nil
	case MemberSetter:
		if it == nil {
			return newFault(KindTypeError, "no interpreter bound for setter invocation")
		}
		_, err := it.callFunction(m.Fn, []Var{v}, StructVar(sv))
		return err
	default:
		return newFault(KindTypeError, "cannot assign to member of kind %d", m.Kind)
	}
}

// construct implements spec.md §4.4's construct(structType, args,
// onStack): allocate, zero-initialize, run static-data order (already
// run at declaration time for StaticData; instance Data here starts
// zeroed), then invoke the `new` overload if present.
func (it *Interpreter) construct(st *StructType, args []Var) (Var, error) {
	data := make([]Var, st.InstanceSize)
	sv := &StructVal{Type: st, Data: data}
	v := StructVar(sv)
	if ov := st.getOverload(OpNew, false); ov != nil {
		if _, err := it.callFunction(ov.Fn, args, sv); err != nil {
			return Undefined, err
		}
	}
	return v, nil
}
