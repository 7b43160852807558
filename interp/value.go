package interp

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Kind tags the discriminated union that a Var represents.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindInt
	KindFloat
	KindNative
	KindPointer
	KindFunction
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindNative:
		return "native"
	case KindPointer:
		return "pointer"
	case KindFunction:
		return "function"
	case KindStruct:
		return "struct"
	default:
		return "invalid"
	}
}

// Var is the runtime value cell: a tagged union over Undefined, Int,
// Float, Native, Pointer, Function and Struct, carrying 64 bits of
// value and an auxiliary metadata payload per spec.md §3.1.
type Var struct {
	Kind Kind

	// ival holds Int and the raw bit pattern of Float (via
	// math.Float64bits/frombits); it also holds a raw address for
	// Native/Pointer when the aux slot below doesn't carry the real
	// backing storage (e.g. a value produced by `as<type>`).
	ival int64

	// aux carries the kind-specific backing reference: *nativeMem for
	// Native, *ptrMem for Pointer, *Function for Function, *StructVal
	// for Struct. nil for Int/Float/Undefined.
	aux interface{}

	// offset is the current element offset into aux's backing array,
	// kept separate from the backing array itself so that pointer
	// arithmetic ((p+i)-p == i, associativity) holds exactly per
	// spec.md §8 invariant 2 without needing to re-slice storage.
	offset int64

	// size is the element count for Native/Pointer Vars.
	size int64
	// readOnly applies to Native Vars produced by native imports.
	readOnly bool
}

// nativeMem is the backing store for a Native Var: the full
// underlying byte buffer, shared by every Var windowing into it.
type nativeMem struct {
	bytes []byte
}

// ptrMem is the backing store for a Pointer Var: the full underlying
// Var array, shared by every Var windowing into it.
type ptrMem struct {
	vars []Var
}

// Undefined is the zero Var.
var Undefined = Var{Kind: KindUndefined}

func IntVar(v int64) Var     { return Var{Kind: KindInt, ival: v} }
func FloatVar(v float64) Var { return Var{Kind: KindFloat, ival: int64(math.Float64bits(v))} }

// NativeVar wraps a byte slice as a Native Var of the given size,
// starting at offset 0 within mem (the full underlying allocation).
func NativeVar(mem []byte, size int64, readOnly bool) Var {
	return Var{Kind: KindNative, aux: &nativeMem{bytes: mem}, size: size, readOnly: readOnly}
}

// nativeVarAt builds a Native Var windowing into an existing
// nativeMem at the given offset, used by pointer arithmetic.
func nativeVarAt(nm *nativeMem, offset, size int64, readOnly bool) Var {
	return Var{Kind: KindNative, aux: nm, offset: offset, size: size, readOnly: readOnly}
}

// PointerVar wraps a Var slice as a Pointer Var of the given size.
func PointerVar(vars []Var, size int64) Var {
	return Var{Kind: KindPointer, aux: &ptrMem{vars: vars}, size: size}
}

// pointerVarAt builds a Pointer Var windowing into an existing ptrMem
// at the given offset, used by pointer arithmetic.
func pointerVarAt(pm *ptrMem, offset, size int64) Var {
	return Var{Kind: KindPointer, aux: pm, offset: offset, size: size}
}

// cell returns the backing Var slot this Pointer Var currently
// addresses, or nil if the window is empty/out of range.
func (v Var) cell() *Var {
	pm := v.Pointer()
	if pm == nil {
		return nil
	}
	i := v.offset
	if i < 0 || int(i) >= len(pm.vars) {
		return nil
	}
	return &pm.vars[i]
}

// byteAt returns a pointer to the backing byte this Native Var
// currently addresses, or nil if the window is empty/out of range.
func (v Var) byteAt() *byte {
	nm := v.Native()
	if nm == nil {
		return nil
	}
	i := v.offset
	if i < 0 || int(i) >= len(nm.bytes) {
		return nil
	}
	return &nm.bytes[i]
}

func FunctionVar(fn *Function) Var {
	return Var{Kind: KindFunction, aux: fn}
}

func StructVar(sv *StructVal) Var {
	return Var{Kind: KindStruct, aux: sv}
}

// Float returns the float64 this Var's ival represents (only valid
// when Kind == KindFloat).
func (v Var) Float() float64 { return math.Float64frombits(uint64(v.ival)) }

// Int returns the raw int64 slot (only valid when Kind == KindInt).
func (v Var) Int() int64 { return v.ival }

func (v Var) Native() *nativeMem {
	if nm, ok := v.aux.(*nativeMem); ok {
		return nm
	}
	return nil
}

func (v Var) Pointer() *ptrMem {
	if pm, ok := v.aux.(*ptrMem); ok {
		return pm
	}
	return nil
}

func (v Var) Function() *Function {
	if fn, ok := v.aux.(*Function); ok {
		return fn
	}
	return nil
}

func (v Var) Struct() *StructVal {
	if sv, ok := v.aux.(*StructVal); ok {
		return sv
	}
	return nil
}

// address returns a pseudo-address for to_int/to_string purposes:
// the identity of the backing aux value, or 0 for a nil/zero backing.
func (v Var) address() int64 {
	switch v.Kind {
	case KindNative, KindPointer, KindFunction, KindStruct:
		if v.aux == nil {
			// A bare address (e.g. a dlsym'd native symbol that has no
			// Go-side backing allocation) is carried directly in ival.
			return v.ival
		}
		return ptrAddress(v.aux)
	default:
		return v.ival
	}
}

// ptrAddress returns a stable pseudo-address for any backing pointer
// value, used to give Native/Pointer/Function/Struct Vars an
// identity for to_int/to_string/comparison purposes.
func ptrAddress(x interface{}) int64 {
	if x == nil {
		return 0
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Ptr {
		return int64(rv.Pointer())
	}
	return 0
}

// TypeOf is spec.md §4.1's type_of(v).
func TypeOf(v Var) Kind { return v.Kind }

// TypeName is spec.md §4.1's type_name(t), reused by the §4.8 %t
// format verb.
func TypeName(k Kind) string { return k.String() }

// ToInt implements spec.md §4.1's to_int conversion rules.
func ToInt(v Var) int64 {
	switch v.Kind {
	case KindInt:
		return v.ival
	case KindFloat:
		return int64(v.Float())
	case KindUndefined:
		return 0
	default:
		return v.address()
	}
}

// ToFloat implements spec.md §4.1's to_float conversion rules.
func ToFloat(v Var) float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.ival)
	case KindFloat:
		return v.Float()
	default:
		return float64(ToInt(v))
	}
}

// ToBool implements spec.md §4.1's to_bool conversion rules.
func ToBool(v Var) bool {
	switch v.Kind {
	case KindInt:
		return v.ival != 0
	case KindFloat:
		return v.Float() != 0
	case KindUndefined:
		return false
	default:
		return v.address() != 0
	}
}

// ToString implements spec.md §4.1's to_string conversion rules.
func ToString(v Var) string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.ival, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', 6, 64)
	case KindNative:
		nm := v.Native()
		if nm == nil {
			return ""
		}
		base := v.offset
		n := v.size
		for i := int64(0); i < n && int(base+i) < len(nm.bytes); i++ {
			if nm.bytes[base+i] == 0 {
				n = i
				break
			}
		}
		end := base + n
		if end > int64(len(nm.bytes)) {
			end = int64(len(nm.bytes))
		}
		if base > end {
			base = end
		}
		return string(nm.bytes[base:end])
	case KindPointer:
		return fmt.Sprintf("pointer:%#x", v.address())
	case KindStruct:
		sv := v.Struct()
		if sv == nil {
			return "undefined"
		}
		return fmt.Sprintf("%s:%#x", sv.Type.Name, ptrAddress(sv))
	case KindFunction:
		return fmt.Sprintf("pointer:%#x", v.address())
	default:
		return "undefined"
	}
}

// SizeOf returns the element-count metadata of a Var, used by the
// `sizeof` operator (spec.md S1 scenario).
func SizeOf(v Var) int64 {
	switch v.Kind {
	case KindNative, KindPointer:
		return v.size
	default:
		return 0
	}
}
