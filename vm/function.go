package vm

import "math"

// SyntheticFunction is a closure over a bytecode method: the method info
// plus the scope chain captured where newfunction executed.
type SyntheticFunction struct {
	valueBase
	Method  *MethodInfo
	Closure *ScopeChain
}

// NewSyntheticFunction closes mi over the given captured scope, retaining
// the chain.
func NewSyntheticFunction(mi *MethodInfo, closure *ScopeChain) *SyntheticFunction {
	closure.retain()
	return &SyntheticFunction{valueBase: valueBase{refs: 1}, Method: mi, Closure: closure}
}

func (*SyntheticFunction) Type() ObjectType    { return TFunction }
func (*SyntheticFunction) ToNumber() float64   { return math.NaN() }
func (*SyntheticFunction) ToInt() int32        { return 0 }
func (*SyntheticFunction) ToUInt() uint32      { return 0 }
func (*SyntheticFunction) ToInt64() int64      { return 0 }
func (*SyntheticFunction) ToBoolean() bool     { return true }
func (f *SyntheticFunction) ToStr() string     { return "function Function() {}" }

func (f *SyntheticFunction) ToDebugString() string {
	name := f.Method.Name
	if name == "" {
		name = "<anonymous>"
	}
	return "function " + name + "()"
}

// NativeFunction wraps a host Go function as a callable value.
type NativeFunction struct {
	valueBase
	Name string
	Fn   func(sys *SystemState, this Value, args []Value) (Value, error)
}

// NewNativeFunction wraps fn.
func NewNativeFunction(name string, fn func(sys *SystemState, this Value, args []Value) (Value, error)) *NativeFunction {
	return &NativeFunction{valueBase: valueBase{refs: 1}, Name: name, Fn: fn}
}

func (*NativeFunction) Type() ObjectType    { return TFunction }
func (*NativeFunction) ToNumber() float64   { return math.NaN() }
func (*NativeFunction) ToInt() int32        { return 0 }
func (*NativeFunction) ToUInt() uint32      { return 0 }
func (*NativeFunction) ToInt64() int64      { return 0 }
func (*NativeFunction) ToBoolean() bool     { return true }
func (f *NativeFunction) ToStr() string     { return "function " + f.Name + "() {}" }

func (f *NativeFunction) ToDebugString() string { return "native " + f.Name + "()" }
