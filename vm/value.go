package vm

import (
	"fmt"
	"math"
)

// ObjectType discriminates the runtime kind of a Value. Every value carries
// exactly one tag for its whole lifetime.
type ObjectType uint8

const (
	TUndefined ObjectType = iota
	TNull
	TBoolean
	TInteger
	TUInteger
	TNumber
	TString
	TNamespace
	TFunction
	TClass
	TArray
	TObject
	TQName
	TVector
)

// String returns a short tag name for diagnostics.
func (t ObjectType) String() string {
	switch t {
	case TUndefined:
		return "Undefined"
	case TNull:
		return "Null"
	case TBoolean:
		return "Boolean"
	case TInteger:
		return "Integer"
	case TUInteger:
		return "UInteger"
	case TNumber:
		return "Number"
	case TString:
		return "String"
	case TNamespace:
		return "Namespace"
	case TFunction:
		return "Function"
	case TClass:
		return "Class"
	case TArray:
		return "Array"
	case TObject:
		return "Object"
	case TQName:
		return "QName"
	case TVector:
		return "Vector"
	}
	return fmt.Sprintf("ObjectType(%d)", uint8(t))
}

// Value is the polymorphic runtime cell. Every value exposes its tag, the
// ECMA conversions, and a mutable reference count. The interpreter threads
// the counting discipline through every stack, local, and scope operation:
// pushing a peeked value increments, popping transfers, replacement drops.
//
// Counting is bookkeeping only; reclamation is the host collector's job.
// The counts exist so that cycle detection over live roots has accurate
// liveness data and so executions conserve references.
type Value interface {
	Type() ObjectType

	ToNumber() float64
	ToInt() int32
	ToUInt() uint32
	ToInt64() int64
	ToBoolean() bool
	ToStr() string
	ToDebugString() string

	IncRef()
	DecRef()
	RefCount() int32
}

// valueBase supplies the reference count. Plain int32: one interpretation
// thread owns a context at a time, so no atomics.
type valueBase struct {
	refs int32
}

func (b *valueBase) IncRef()         { b.refs++ }
func (b *valueBase) DecRef()         { b.refs-- }
func (b *valueBase) RefCount() int32 { return b.refs }

// ---------------------------------------------------------------------------
// Undefined and Null
// ---------------------------------------------------------------------------

// UndefinedValue is the unique undefined singleton, owned by SystemState.
type UndefinedValue struct {
	valueBase
}

func (*UndefinedValue) Type() ObjectType      { return TUndefined }
func (*UndefinedValue) ToNumber() float64     { return math.NaN() }
func (*UndefinedValue) ToInt() int32          { return 0 }
func (*UndefinedValue) ToUInt() uint32        { return 0 }
func (*UndefinedValue) ToInt64() int64        { return 0 }
func (*UndefinedValue) ToBoolean() bool       { return false }
func (*UndefinedValue) ToStr() string         { return "undefined" }
func (*UndefinedValue) ToDebugString() string { return "undefined" }

// NullValue is the unique null singleton, owned by SystemState.
type NullValue struct {
	valueBase
}

func (*NullValue) Type() ObjectType      { return TNull }
func (*NullValue) ToNumber() float64     { return 0 }
func (*NullValue) ToInt() int32          { return 0 }
func (*NullValue) ToUInt() uint32        { return 0 }
func (*NullValue) ToInt64() int64        { return 0 }
func (*NullValue) ToBoolean() bool       { return false }
func (*NullValue) ToStr() string         { return "null" }
func (*NullValue) ToDebugString() string { return "null" }

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// Boolean wraps a native bool. The two instances are interned by SystemState.
type Boolean struct {
	valueBase
	Val bool
}

func (*Boolean) Type() ObjectType { return TBoolean }

func (b *Boolean) ToNumber() float64 {
	if b.Val {
		return 1
	}
	return 0
}

func (b *Boolean) ToInt() int32 {
	if b.Val {
		return 1
	}
	return 0
}

func (b *Boolean) ToUInt() uint32 {
	if b.Val {
		return 1
	}
	return 0
}

func (b *Boolean) ToInt64() int64 {
	if b.Val {
		return 1
	}
	return 0
}

func (b *Boolean) ToBoolean() bool { return b.Val }

func (b *Boolean) ToStr() string {
	if b.Val {
		return "true"
	}
	return "false"
}

func (b *Boolean) ToDebugString() string { return b.ToStr() }

// ---------------------------------------------------------------------------
// Integer and UInteger
// ---------------------------------------------------------------------------

// Integer is a boxed 32-bit signed integer.
type Integer struct {
	valueBase
	Val int32
}

func (*Integer) Type() ObjectType        { return TInteger }
func (i *Integer) ToNumber() float64     { return float64(i.Val) }
func (i *Integer) ToInt() int32          { return i.Val }
func (i *Integer) ToUInt() uint32        { return uint32(i.Val) }
func (i *Integer) ToInt64() int64        { return int64(i.Val) }
func (i *Integer) ToBoolean() bool       { return i.Val != 0 }
func (i *Integer) ToStr() string         { return fmt.Sprintf("%d", i.Val) }
func (i *Integer) ToDebugString() string { return i.ToStr() }

// UInteger is a boxed 32-bit unsigned integer.
type UInteger struct {
	valueBase
	Val uint32
}

func (*UInteger) Type() ObjectType        { return TUInteger }
func (u *UInteger) ToNumber() float64     { return float64(u.Val) }
func (u *UInteger) ToInt() int32          { return int32(u.Val) }
func (u *UInteger) ToUInt() uint32        { return u.Val }
func (u *UInteger) ToInt64() int64        { return int64(u.Val) }
func (u *UInteger) ToBoolean() bool       { return u.Val != 0 }
func (u *UInteger) ToStr() string         { return fmt.Sprintf("%d", u.Val) }
func (u *UInteger) ToDebugString() string { return u.ToStr() }

// ---------------------------------------------------------------------------
// Number
// ---------------------------------------------------------------------------

// Number is a boxed IEEE-754 double. IsFloat distinguishes non-integral
// doubles from integral ones: arithmetic may stay in 64-bit signed integers
// while both inputs report IsFloat false. BoxIntegralNumber is the only
// producer of IsFloat=false Numbers.
type Number struct {
	valueBase
	Val     float64
	IsFloat bool
}

func (*Number) Type() ObjectType    { return TNumber }
func (n *Number) ToNumber() float64 { return n.Val }
func (n *Number) ToInt() int32      { return toInt32(n.Val) }
func (n *Number) ToUInt() uint32    { return toUInt32(n.Val) }

func (n *Number) ToInt64() int64 {
	if math.IsNaN(n.Val) || math.IsInf(n.Val, 0) {
		return 0
	}
	return int64(math.Trunc(n.Val))
}

func (n *Number) ToBoolean() bool {
	return n.Val != 0 && !math.IsNaN(n.Val)
}

func (n *Number) ToStr() string         { return numberToString(n.Val) }
func (n *Number) ToDebugString() string { return n.ToStr() }

// ---------------------------------------------------------------------------
// String
// ---------------------------------------------------------------------------

// ASString is a boxed immutable string.
type ASString struct {
	valueBase
	Val string
}

func (*ASString) Type() ObjectType    { return TString }
func (s *ASString) ToNumber() float64 { return stringToNumber(s.Val) }
func (s *ASString) ToInt() int32      { return toInt32(s.ToNumber()) }
func (s *ASString) ToUInt() uint32    { return toUInt32(s.ToNumber()) }

func (s *ASString) ToInt64() int64 {
	f := s.ToNumber()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Trunc(f))
}

func (s *ASString) ToBoolean() bool       { return s.Val != "" }
func (s *ASString) ToStr() string         { return s.Val }
func (s *ASString) ToDebugString() string { return fmt.Sprintf("%q", s.Val) }

// ---------------------------------------------------------------------------
// Namespace
// ---------------------------------------------------------------------------

// NamespaceKind mirrors the ABC namespace kind byte.
type NamespaceKind uint8

const (
	NsPackage NamespaceKind = iota
	NsPackageInternal
	NsProtected
	NsExplicit
	NsStaticProtected
	NsPrivate
)

// ASNamespace is a boxed namespace value. Equality is by URI, per AS3.
type ASNamespace struct {
	valueBase
	Prefix string
	URI    string
	Kind   NamespaceKind
}

func (*ASNamespace) Type() ObjectType       { return TNamespace }
func (*ASNamespace) ToNumber() float64      { return math.NaN() }
func (*ASNamespace) ToInt() int32           { return 0 }
func (*ASNamespace) ToUInt() uint32         { return 0 }
func (*ASNamespace) ToInt64() int64         { return 0 }
func (*ASNamespace) ToBoolean() bool        { return true }
func (ns *ASNamespace) ToStr() string       { return ns.URI }
func (ns *ASNamespace) ToDebugString() string {
	return fmt.Sprintf("Namespace(%q)", ns.URI)
}

// ---------------------------------------------------------------------------
// Tag predicates
// ---------------------------------------------------------------------------

// isNumeric reports whether v carries a numeric tag.
func isNumeric(v Value) bool {
	switch v.Type() {
	case TInteger, TUInteger, TNumber:
		return true
	}
	return false
}

// isIntegral reports whether v may take the integer fast path: Integer,
// UInteger, or a Number whose IsFloat flag is clear.
func isIntegral(v Value) bool {
	switch v.Type() {
	case TInteger, TUInteger:
		return true
	case TNumber:
		return !v.(*Number).IsFloat
	}
	return false
}

// isNullish reports whether v is Undefined or Null.
func isNullish(v Value) bool {
	t := v.Type()
	return t == TUndefined || t == TNull
}
