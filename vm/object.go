package vm

import "fmt"

// Object is the general AS3 instance: fixed typed slots declared by the
// class's traits plus a dynamic property map. Reference counts flow through
// the accessors: getters hand out a fresh count, setters consume the
// caller's count on the stored value.
type Object struct {
	valueBase
	class   *Class
	slots   []Value
	dynamic map[string]Value
}

// NewObject creates an instance of class with empty slots and no dynamic
// properties.
func NewObject(class *Class) *Object {
	return &Object{
		valueBase: valueBase{refs: 1},
		class:     class,
		slots:     make([]Value, class.slotCount()),
		dynamic:   map[string]Value{},
	}
}

func (*Object) Type() ObjectType    { return TObject }
func (o *Object) ToNumber() float64 { return stringToNumber(o.ToStr()) }
func (o *Object) ToInt() int32      { return toInt32(o.ToNumber()) }
func (o *Object) ToUInt() uint32    { return toUInt32(o.ToNumber()) }
func (o *Object) ToInt64() int64    { return int64(o.ToInt()) }
func (o *Object) ToBoolean() bool   { return true }
func (o *Object) ToStr() string     { return "[object " + o.class.Name + "]" }

func (o *Object) ToDebugString() string {
	return fmt.Sprintf("[object %s]#%d", o.class.Name, o.refs)
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// ---------------------------------------------------------------------------
// Named property access
// ---------------------------------------------------------------------------

// getProperty resolves name on o: declared trait slot first, then the
// dynamic map, then the class prototype chain. Missing properties read as
// Undefined. The result carries a fresh reference.
func (o *Object) getProperty(sys *SystemState, name string) Value {
	if t := o.class.traitFor(name); t != nil && t.SlotID > 0 {
		return o.getSlot(sys, t.SlotID)
	}
	if v, ok := o.dynamic[name]; ok {
		v.IncRef()
		return v
	}
	for c := o.class; c != nil; c = c.Super {
		if c.prototype == nil || c.prototype == o {
			continue
		}
		if v, ok := c.prototype.dynamic[name]; ok {
			v.IncRef()
			return v
		}
	}
	return sys.Undefined()
}

// setProperty stores v under name, consuming the caller's reference. A
// declared trait routes through the slot (with type coercion); anything
// else lands in the dynamic map.
func (o *Object) setProperty(sys *SystemState, name string, v Value) error {
	if t := o.class.traitFor(name); t != nil && t.SlotID > 0 {
		return o.setSlot(sys, t.SlotID, v)
	}
	o.setDynamicVar(name, v)
	return nil
}

// setDynamicVar stores v in the dynamic map, consuming the caller's
// reference and dropping any previous occupant.
func (o *Object) setDynamicVar(name string, v Value) {
	if old, ok := o.dynamic[name]; ok {
		old.DecRef()
	}
	o.dynamic[name] = v
}

// deleteProperty removes a dynamic property. Declared traits are not
// deletable; the result reports whether anything was removed.
func (o *Object) deleteProperty(name string) bool {
	if v, ok := o.dynamic[name]; ok {
		v.DecRef()
		delete(o.dynamic, name)
		return true
	}
	return false
}

// hasProperty reports whether name resolves on o. Lexical scope entries
// consult declared traits only; with-scopes and the global pass
// considerDynamic to include the dynamic map and prototype chain.
func (o *Object) hasProperty(name string, considerDynamic bool) bool {
	if t := o.class.traitFor(name); t != nil {
		return true
	}
	if !considerDynamic {
		return false
	}
	if _, ok := o.dynamic[name]; ok {
		return true
	}
	for c := o.class; c != nil; c = c.Super {
		if c.prototype == nil || c.prototype == o {
			continue
		}
		if _, ok := c.prototype.dynamic[name]; ok {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Slot access (1-based indices)
// ---------------------------------------------------------------------------

// getSlot reads slot id, returning Undefined for never-written slots. The
// result carries a fresh reference.
func (o *Object) getSlot(sys *SystemState, id uint32) Value {
	if id == 0 || int(id) > len(o.slots) || o.slots[id-1] == nil {
		return sys.Undefined()
	}
	v := o.slots[id-1]
	v.IncRef()
	return v
}

// setSlot writes slot id, coercing to the declared trait type and
// consuming the caller's reference.
func (o *Object) setSlot(sys *SystemState, id uint32, v Value) error {
	if t := o.class.traitBySlot(id); t != nil && t.Type != nil {
		coerced, err := t.Type.Coerce(sys, v)
		v.DecRef()
		if err != nil {
			return err
		}
		v = coerced
	}
	return o.storeSlot(id, v)
}

// setSlotNoCoerce writes slot id without running the declared type's
// coercion. The loader uses this for pre-typed literals.
func (o *Object) setSlotNoCoerce(id uint32, v Value) error {
	return o.storeSlot(id, v)
}

func (o *Object) storeSlot(id uint32, v Value) error {
	if id == 0 || int(id) > len(o.slots) {
		v.DecRef()
		return throwRangeError(KOutOfRangeError, fmt.Sprintf("slot %d out of range", id))
	}
	if old := o.slots[id-1]; old != nil {
		old.DecRef()
	}
	o.slots[id-1] = v
	return nil
}

// teardown drops every reference the object holds. Called by the cycle
// collector, not by DecRef.
func (o *Object) teardown() {
	for i, v := range o.slots {
		if v != nil {
			v.DecRef()
			o.slots[i] = nil
		}
	}
	for k, v := range o.dynamic {
		v.DecRef()
		delete(o.dynamic, k)
	}
}
