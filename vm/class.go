package vm

import "fmt"

// Type is anything a coerce target can resolve to. Class is the only
// implementation; the indirection keeps the rewrite cache free of class
// internals.
type Type interface {
	TypeName() string
	// Coerce converts v to this type, returning a value with its own
	// reference. The input is borrowed, never consumed.
	Coerce(sys *SystemState, v Value) (Value, error)
}

// Trait declares a fixed, typed property on instances of a class. SlotID is
// 1-based; 0 means the trait is name-addressed only.
type Trait struct {
	Name   string
	SlotID uint32
	Type   *Class // nil means untyped (any)
}

// Class is both a runtime value (the class object pushed by getlex and
// friends) and the Type implementation used by coerce.
type Class struct {
	valueBase
	Name  string
	Super *Class

	InstanceTraits []Trait
	Constructor    *MethodInfo

	// construct builds an instance for builtin classes with no Constructor
	// method. Either Constructor or construct may be nil.
	construct func(sys *SystemState, args []Value) (Value, error)

	prototype *Object
	sys       *SystemState
}

func newBuiltinClass(sys *SystemState, name string, super *Class) *Class {
	c := &Class{valueBase: valueBase{refs: 1}, Name: name, Super: super, sys: sys}
	c.prototype = &Object{valueBase: valueBase{refs: 1}, class: c, dynamic: map[string]Value{}}
	return c
}

// NewClass creates a script-defined class with the given instance traits.
func NewClass(sys *SystemState, name string, super *Class, traits []Trait, ctor *MethodInfo) *Class {
	c := newBuiltinClass(sys, name, super)
	c.InstanceTraits = traits
	c.Constructor = ctor
	return c
}

func (*Class) Type() ObjectType      { return TClass }
func (c *Class) ToNumber() float64   { return stringToNumber(c.ToStr()) }
func (c *Class) ToInt() int32        { return 0 }
func (c *Class) ToUInt() uint32      { return 0 }
func (c *Class) ToInt64() int64      { return 0 }
func (c *Class) ToBoolean() bool     { return true }
func (c *Class) ToStr() string       { return "[class " + c.Name + "]" }
func (c *Class) ToDebugString() string { return c.ToStr() }

func (c *Class) TypeName() string { return c.Name }

// Prototype returns the class prototype object used by with-scope and
// dynamic lookup.
func (c *Class) Prototype() *Object { return c.prototype }

// isSubclassOf walks the superclass chain.
func (c *Class) isSubclassOf(target *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == target {
			return true
		}
	}
	return false
}

// classOf maps a value to its runtime class.
func (sys *SystemState) classOf(v Value) *Class {
	switch v.Type() {
	case TBoolean:
		return sys.BooleanClass
	case TInteger:
		return sys.IntClass
	case TUInteger:
		return sys.UIntClass
	case TNumber:
		return sys.NumberClass
	case TString:
		return sys.StringClass
	case TNamespace:
		return sys.NamespaceClass
	case TFunction:
		return sys.FunctionClass
	case TClass:
		return sys.ClassClass
	case TArray:
		return sys.ArrayClass
	case TObject:
		return v.(*Object).class
	}
	return nil
}

// BuiltinClass returns the builtin class with the given AS3 name, or nil
// when the name is not a builtin. Error subclasses are included.
func (sys *SystemState) BuiltinClass(name string) *Class {
	switch name {
	case "Object":
		return sys.ObjectClass
	case "Class":
		return sys.ClassClass
	case "Function":
		return sys.FunctionClass
	case "int":
		return sys.IntClass
	case "uint":
		return sys.UIntClass
	case "Number":
		return sys.NumberClass
	case "Boolean":
		return sys.BooleanClass
	case "String":
		return sys.StringClass
	case "Array":
		return sys.ArrayClass
	case "Namespace":
		return sys.NamespaceClass
	}
	for _, cls := range sys.errorClasses {
		if cls.Name == name {
			return cls
		}
		if cls.Super != nil && cls.Super.Name == name {
			return cls.Super
		}
	}
	return nil
}

// isKindOf reports whether v is an instance of target or a subclass.
func (sys *SystemState) isKindOf(v Value, target *Class) bool {
	c := sys.classOf(v)
	return c != nil && c.isSubclassOf(target)
}

// Coerce implements the AS3 implicit conversion to this class. Primitive
// targets convert; object targets check the class chain and fail with
// TypeError #1034 on mismatch. Nullish inputs become Null for all
// non-primitive targets.
func (c *Class) Coerce(sys *SystemState, v Value) (Value, error) {
	switch c {
	case sys.IntClass:
		return sys.BoxInt(v.ToInt()), nil
	case sys.UIntClass:
		return sys.BoxUInt(v.ToUInt()), nil
	case sys.NumberClass:
		if isIntegral(v) {
			return sys.BoxIntegralNumber(v.ToInt64()), nil
		}
		return sys.BoxNumber(v.ToNumber()), nil
	case sys.BooleanClass:
		return sys.BoxBool(v.ToBoolean()), nil
	case sys.StringClass:
		if isNullish(v) {
			return sys.Null(), nil
		}
		return sys.BoxString(v.ToStr()), nil
	case sys.ObjectClass:
		if v.Type() == TUndefined {
			return sys.Null(), nil
		}
		v.IncRef()
		return v, nil
	}
	if isNullish(v) {
		return sys.Null(), nil
	}
	if sys.isKindOf(v, c) {
		v.IncRef()
		return v, nil
	}
	return nil, &ASError{
		Class:   ErrTypeError,
		Kind:    KCheckTypeFailedError,
		Message: fmt.Sprintf("cannot convert %s to %s", v.ToDebugString(), c.Name),
	}
}

// traitFor finds the instance trait declaring name, walking superclasses.
func (c *Class) traitFor(name string) *Trait {
	for k := c; k != nil; k = k.Super {
		for i := range k.InstanceTraits {
			if k.InstanceTraits[i].Name == name {
				return &k.InstanceTraits[i]
			}
		}
	}
	return nil
}

// slotCount returns the number of declared slots including superclasses.
func (c *Class) slotCount() int {
	n := uint32(0)
	for k := c; k != nil; k = k.Super {
		for i := range k.InstanceTraits {
			if id := k.InstanceTraits[i].SlotID; id > n {
				n = id
			}
		}
	}
	return int(n)
}

// traitBySlot finds the trait with the given 1-based slot id.
func (c *Class) traitBySlot(id uint32) *Trait {
	for k := c; k != nil; k = k.Super {
		for i := range k.InstanceTraits {
			if k.InstanceTraits[i].SlotID == id {
				return &k.InstanceTraits[i]
			}
		}
	}
	return nil
}
