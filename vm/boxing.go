package vm

import (
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("kestrel.vm")

// smallIntMin/Max bound the interned Integer cache.
const (
	smallIntMin = -256
	smallIntMax = 1024
)

// SystemState owns the interning tables and the builtin class table shared
// by every context in a VM instance. The surrounding VM serializes access;
// nothing here is synchronized.
type SystemState struct {
	undefined *UndefinedValue
	null      *NullValue
	boolTrue  *Boolean
	boolFalse *Boolean

	smallInts [smallIntMax - smallIntMin + 1]*Integer
	strings   map[string]*ASString

	// Builtin classes, installed by NewSystemState.
	ObjectClass    *Class
	ClassClass     *Class
	FunctionClass  *Class
	IntClass       *Class
	UIntClass      *Class
	NumberClass    *Class
	BooleanClass   *Class
	StringClass    *Class
	ArrayClass     *Class
	NamespaceClass *Class

	errorClasses map[ErrorClass]*Class

	// Profiler, when non-nil, receives every method invocation and enables
	// per-opcode counting in the dispatch loop.
	Profiler *Profiler
}

// NewSystemState builds a fresh system state with the builtin class table
// and empty intern caches.
func NewSystemState() *SystemState {
	sys := &SystemState{
		undefined: &UndefinedValue{valueBase{refs: 1}},
		null:      &NullValue{valueBase{refs: 1}},
		boolTrue:  &Boolean{valueBase{refs: 1}, true},
		boolFalse: &Boolean{valueBase{refs: 1}, false},
		strings:   make(map[string]*ASString),
	}

	sys.ObjectClass = newBuiltinClass(sys, "Object", nil)
	sys.ClassClass = newBuiltinClass(sys, "Class", sys.ObjectClass)
	sys.FunctionClass = newBuiltinClass(sys, "Function", sys.ObjectClass)
	sys.IntClass = newBuiltinClass(sys, "int", sys.ObjectClass)
	sys.UIntClass = newBuiltinClass(sys, "uint", sys.ObjectClass)
	sys.NumberClass = newBuiltinClass(sys, "Number", sys.ObjectClass)
	sys.BooleanClass = newBuiltinClass(sys, "Boolean", sys.ObjectClass)
	sys.StringClass = newBuiltinClass(sys, "String", sys.ObjectClass)
	sys.ArrayClass = newBuiltinClass(sys, "Array", sys.ObjectClass)
	sys.NamespaceClass = newBuiltinClass(sys, "Namespace", sys.ObjectClass)

	errBase := newBuiltinClass(sys, "Error", sys.ObjectClass)
	sys.errorClasses = map[ErrorClass]*Class{
		ErrTypeError:      newBuiltinClass(sys, "TypeError", errBase),
		ErrReferenceError: newBuiltinClass(sys, "ReferenceError", errBase),
		ErrArgumentError:  newBuiltinClass(sys, "ArgumentError", errBase),
		ErrRangeError:     newBuiltinClass(sys, "RangeError", errBase),
		ErrVerifyError:    newBuiltinClass(sys, "VerifyError", errBase),
		ErrEvalError:      newBuiltinClass(sys, "EvalError", errBase),
	}
	return sys
}

// ErrorClassFor returns the builtin class used to box errors of class c.
func (sys *SystemState) ErrorClassFor(c ErrorClass) *Class {
	return sys.errorClasses[c]
}

// ---------------------------------------------------------------------------
// Singletons
// ---------------------------------------------------------------------------

// Undefined returns the undefined singleton with a fresh reference.
func (sys *SystemState) Undefined() Value {
	sys.undefined.IncRef()
	return sys.undefined
}

// Null returns the null singleton with a fresh reference.
func (sys *SystemState) Null() Value {
	sys.null.IncRef()
	return sys.null
}

// ---------------------------------------------------------------------------
// Boxing factories
//
// Every factory returns a value already carrying one reference owned by the
// caller. Interned values hand out an extra count on the shared instance.
// ---------------------------------------------------------------------------

// BoxBool returns the interned Boolean for b.
func (sys *SystemState) BoxBool(b bool) Value {
	v := sys.boolFalse
	if b {
		v = sys.boolTrue
	}
	v.IncRef()
	return v
}

// BoxInt boxes a 32-bit signed integer, interning small values.
func (sys *SystemState) BoxInt(i int32) Value {
	if i >= smallIntMin && i <= smallIntMax {
		v := sys.smallInts[i-smallIntMin]
		if v == nil {
			v = &Integer{valueBase{refs: 1}, i}
			sys.smallInts[i-smallIntMin] = v
		}
		v.IncRef()
		return v
	}
	return &Integer{valueBase{refs: 1}, i}
}

// BoxUInt boxes a 32-bit unsigned integer.
func (sys *SystemState) BoxUInt(u uint32) Value {
	return &UInteger{valueBase{refs: 1}, u}
}

// BoxNumber boxes a double. The result is flagged non-integral; arithmetic
// that wants the integer fast path must go through BoxIntegralNumber.
func (sys *SystemState) BoxNumber(f float64) Value {
	return &Number{valueBase{refs: 1}, f, true}
}

// BoxIntegralNumber boxes a 64-bit integer as a Number whose IsFloat flag is
// clear, keeping it eligible for integer fast paths downstream.
func (sys *SystemState) BoxIntegralNumber(i int64) Value {
	return &Number{valueBase{refs: 1}, float64(i), false}
}

// BoxString boxes a string, interning it.
func (sys *SystemState) BoxString(s string) Value {
	v := sys.strings[s]
	if v == nil {
		v = &ASString{valueBase{refs: 1}, s}
		sys.strings[s] = v
	}
	v.IncRef()
	return v
}

// BoxNamespace boxes a namespace with the given kind and URI.
func (sys *SystemState) BoxNamespace(kind NamespaceKind, prefix, uri string) Value {
	return &ASNamespace{valueBase{refs: 1}, prefix, uri, kind}
}
