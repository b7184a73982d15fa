package vm

import (
	"strconv"
	"strings"
)

// Array is the dense AS3 array. Holes read as Undefined. Elements are
// counted like slots: the array owns one reference per element.
type Array struct {
	valueBase
	elems []Value
}

// NewArray builds an array from elems, taking ownership of one reference
// per element.
func NewArray(elems []Value) *Array {
	return &Array{valueBase: valueBase{refs: 1}, elems: elems}
}

func (*Array) Type() ObjectType    { return TArray }
func (a *Array) ToNumber() float64 { return stringToNumber(a.ToStr()) }
func (a *Array) ToInt() int32      { return toInt32(a.ToNumber()) }
func (a *Array) ToUInt() uint32    { return toUInt32(a.ToNumber()) }
func (a *Array) ToInt64() int64    { return int64(a.ToInt()) }
func (a *Array) ToBoolean() bool   { return true }

// ToStr joins elements with commas; nullish elements contribute nothing,
// matching Array.prototype.join.
func (a *Array) ToStr() string {
	var b strings.Builder
	for i, v := range a.elems {
		if i > 0 {
			b.WriteByte(',')
		}
		if v == nil || isNullish(v) {
			continue
		}
		b.WriteString(v.ToStr())
	}
	return b.String()
}

func (a *Array) ToDebugString() string { return "[" + a.ToStr() + "]" }

// Len returns the element count.
func (a *Array) Len() int { return len(a.elems) }

// getIndex reads element i with a fresh reference; out of range reads as
// Undefined.
func (a *Array) getIndex(sys *SystemState, i int) Value {
	if i < 0 || i >= len(a.elems) || a.elems[i] == nil {
		return sys.Undefined()
	}
	v := a.elems[i]
	v.IncRef()
	return v
}

// setIndex stores v at i, growing the array as needed and consuming the
// caller's reference.
func (a *Array) setIndex(i int, v Value) {
	if i < 0 {
		v.DecRef()
		return
	}
	for len(a.elems) <= i {
		a.elems = append(a.elems, nil)
	}
	if old := a.elems[i]; old != nil {
		old.DecRef()
	}
	a.elems[i] = v
}

// Append pushes v onto the end, taking ownership.
func (a *Array) Append(v Value) { a.elems = append(a.elems, v) }

// getProperty resolves a named property: numeric indices address elements,
// "length" reports the count, anything else reads as Undefined.
func (a *Array) getProperty(sys *SystemState, name string) Value {
	if name == "length" {
		return sys.BoxInt(int32(len(a.elems)))
	}
	if i, ok := arrayIndex(name); ok {
		return a.getIndex(sys, i)
	}
	return sys.Undefined()
}

// setProperty stores under a named property, consuming the caller's
// reference. Only numeric indices are writable.
func (a *Array) setProperty(name string, v Value) {
	if i, ok := arrayIndex(name); ok {
		a.setIndex(i, v)
		return
	}
	v.DecRef()
}

func arrayIndex(name string) (int, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// teardown drops every element reference.
func (a *Array) teardown() {
	for i, v := range a.elems {
		if v != nil {
			v.DecRef()
			a.elems[i] = nil
		}
	}
	a.elems = a.elems[:0]
}
