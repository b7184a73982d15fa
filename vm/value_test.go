package vm

import (
	"math"
	"testing"
)

func TestBoxIntInternsSmallValues(t *testing.T) {
	sys := NewSystemState()

	a := sys.BoxInt(42)
	b := sys.BoxInt(42)
	if a != b {
		t.Errorf("small ints should intern to the same instance")
	}
	a.DecRef()
	b.DecRef()

	lo := sys.BoxInt(smallIntMin)
	hi := sys.BoxInt(smallIntMax)
	if lo.(*Integer).Val != smallIntMin || hi.(*Integer).Val != smallIntMax {
		t.Errorf("cache boundary values boxed wrong: %d, %d", lo.ToInt(), hi.ToInt())
	}
	lo.DecRef()
	hi.DecRef()

	big1 := sys.BoxInt(100000)
	big2 := sys.BoxInt(100000)
	if big1 == big2 {
		t.Errorf("values outside the cache should not intern")
	}
	big1.DecRef()
	big2.DecRef()
}

func TestBoxStringInterns(t *testing.T) {
	sys := NewSystemState()

	a := sys.BoxString("hello")
	b := sys.BoxString("hello")
	if a != b {
		t.Errorf("equal strings should intern to the same instance")
	}
	if a.RefCount() != 3 {
		t.Errorf("interned string refcount = %d, want 3", a.RefCount())
	}
	a.DecRef()
	b.DecRef()
}

func TestBoxBoolReturnsSingletons(t *testing.T) {
	sys := NewSystemState()

	a := sys.BoxBool(true)
	b := sys.BoxBool(true)
	f := sys.BoxBool(false)
	if a != b {
		t.Errorf("true should be a singleton")
	}
	if a == f {
		t.Errorf("true and false must be distinct")
	}
	a.DecRef()
	b.DecRef()
	f.DecRef()
}

func TestBoxNumberFloatFlag(t *testing.T) {
	sys := NewSystemState()

	f := sys.BoxNumber(3.0)
	if !f.(*Number).IsFloat {
		t.Errorf("BoxNumber must flag the result non-integral")
	}
	n := sys.BoxIntegralNumber(3)
	if n.(*Number).IsFloat {
		t.Errorf("BoxIntegralNumber must leave the integral flag clear")
	}
	if !isIntegral(n) || isIntegral(f) {
		t.Errorf("isIntegral: integral Number %v, float Number %v", isIntegral(n), isIntegral(f))
	}
	f.DecRef()
	n.DecRef()
}

func TestIsIntegralPredicates(t *testing.T) {
	sys := NewSystemState()

	i := sys.BoxInt(1)
	u := sys.BoxUInt(1)
	s := sys.BoxString("1")
	bt := sys.BoxBool(true)
	defer func() {
		for _, v := range []Value{i, u, s, bt} {
			v.DecRef()
		}
	}()

	if !isIntegral(i) || !isIntegral(u) {
		t.Errorf("Integer and UInteger are always integral")
	}
	if isIntegral(s) || isIntegral(bt) {
		t.Errorf("strings and booleans are never integral")
	}
	if !isNumeric(i) || !isNumeric(u) || isNumeric(s) {
		t.Errorf("isNumeric tags wrong")
	}
}

func TestNullishPredicates(t *testing.T) {
	sys := NewSystemState()

	undef := sys.Undefined()
	null := sys.Null()
	zero := sys.BoxInt(0)
	defer undef.DecRef()
	defer null.DecRef()
	defer zero.DecRef()

	if !isNullish(undef) || !isNullish(null) {
		t.Errorf("undefined and null are nullish")
	}
	if isNullish(zero) {
		t.Errorf("0 is not nullish")
	}
}

func TestPrimitiveConversions(t *testing.T) {
	sys := NewSystemState()

	cases := []struct {
		name    string
		v       Value
		num     float64
		boolean bool
		str     string
	}{
		{"undefined", sys.Undefined(), math.NaN(), false, "undefined"},
		{"null", sys.Null(), 0, false, "null"},
		{"true", sys.BoxBool(true), 1, true, "true"},
		{"int -3", sys.BoxInt(-3), -3, true, "-3"},
		{"uint 7", sys.BoxUInt(7), 7, true, "7"},
		{"number 2.5", sys.BoxNumber(2.5), 2.5, true, "2.5"},
		{"empty string", sys.BoxString(""), 0, false, ""},
		{"string 1e2", sys.BoxString("1e2"), 100, true, "1e2"},
	}
	for _, c := range cases {
		got := c.v.ToNumber()
		if math.IsNaN(c.num) {
			if !math.IsNaN(got) {
				t.Errorf("%s: ToNumber = %v, want NaN", c.name, got)
			}
		} else if got != c.num {
			t.Errorf("%s: ToNumber = %v, want %v", c.name, got, c.num)
		}
		if b := c.v.ToBoolean(); b != c.boolean {
			t.Errorf("%s: ToBoolean = %v, want %v", c.name, b, c.boolean)
		}
		if s := c.v.ToStr(); s != c.str {
			t.Errorf("%s: ToStr = %q, want %q", c.name, s, c.str)
		}
		c.v.DecRef()
	}
}

func TestNaNIsFalsy(t *testing.T) {
	sys := NewSystemState()

	nan := sys.BoxNumber(math.NaN())
	defer nan.DecRef()
	if nan.ToBoolean() {
		t.Errorf("NaN must convert to false")
	}
	if nan.ToInt() != 0 || nan.ToUInt() != 0 || nan.ToInt64() != 0 {
		t.Errorf("NaN must convert to zero integers")
	}
}

func TestArrayToStrJoins(t *testing.T) {
	sys := NewSystemState()

	arr := NewArray(nil)
	arr.Append(sys.BoxInt(1))
	arr.Append(sys.Null())
	arr.Append(sys.BoxString("x"))
	defer arr.DecRef()

	if got := arr.ToStr(); got != "1,,x" {
		t.Errorf("ToStr = %q, want %q", got, "1,,x")
	}
	if got := arr.ToDebugString(); got != "[1,,x]" {
		t.Errorf("ToDebugString = %q, want %q", got, "[1,,x]")
	}
}

func TestArrayPropertyAccess(t *testing.T) {
	sys := NewSystemState()

	arr := NewArray(nil)
	arr.Append(sys.BoxInt(10))
	defer arr.DecRef()

	length := arr.getProperty(sys, "length")
	if length.ToInt() != 1 {
		t.Errorf("length = %d, want 1", length.ToInt())
	}
	length.DecRef()

	arr.setProperty("3", sys.BoxInt(40))
	if arr.Len() != 4 {
		t.Errorf("sparse write should grow the array to 4, got %d", arr.Len())
	}
	hole := arr.getIndex(sys, 2)
	if hole.Type() != TUndefined {
		t.Errorf("hole should read as undefined, got %s", hole.Type())
	}
	hole.DecRef()

	oob := arr.getProperty(sys, "notanindex")
	if oob.Type() != TUndefined {
		t.Errorf("non-index property should read as undefined")
	}
	oob.DecRef()
}

func TestObjectDynamicProperties(t *testing.T) {
	sys := NewSystemState()

	obj := NewObject(sys.ObjectClass)
	defer obj.DecRef()

	if err := obj.setProperty(sys, "x", sys.BoxInt(5)); err != nil {
		t.Fatalf("setProperty: %v", err)
	}
	v := obj.getProperty(sys, "x")
	if v.ToInt() != 5 {
		t.Errorf("x = %d, want 5", v.ToInt())
	}
	v.DecRef()

	if !obj.deleteProperty("x") {
		t.Errorf("delete of a dynamic property should report true")
	}
	if obj.deleteProperty("x") {
		t.Errorf("second delete should report false")
	}
	v = obj.getProperty(sys, "x")
	if v.Type() != TUndefined {
		t.Errorf("deleted property should read as undefined")
	}
	v.DecRef()
}

func TestObjectToStrUsesClassName(t *testing.T) {
	sys := NewSystemState()

	obj := NewObject(sys.ObjectClass)
	defer obj.DecRef()
	if got := obj.ToStr(); got != "[object Object]" {
		t.Errorf("ToStr = %q, want %q", got, "[object Object]")
	}
}
