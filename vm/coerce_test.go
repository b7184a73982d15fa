package vm

import (
	"math"
	"testing"
)

func TestStringToNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"   ", 0},
		{"\t\n 42 \r", 42},
		{"3.25", 3.25},
		{"-7", -7},
		{"+7", 7},
		{"1e3", 1000},
		{"2.5E-1", 0.25},
		{"0x10", 16},
		{"0XFF", 255},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
		{"  Infinity  ", math.Inf(1)},
	}
	for _, c := range cases {
		got := stringToNumber(c.in)
		if got != c.want {
			t.Errorf("stringToNumber(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStringToNumberRejectsStrconvExtensions(t *testing.T) {
	// These parse under strconv.ParseFloat but are not ECMA number literals.
	bad := []string{
		"inf",
		"INF",
		"NaN",
		"nan",
		"0x1p4",
		"1_000",
		"12abc",
		"1.2.3",
		"e5",
		"1e",
		"+",
		"-0x10", // hex takes no sign
		"0x",
	}
	for _, s := range bad {
		if got := stringToNumber(s); !math.IsNaN(got) {
			t.Errorf("stringToNumber(%q) = %v, want NaN", s, got)
		}
	}
}

func TestNumberToString(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1, "-1"},
		{3.5, "3.5"},
		{100, "100"},
		{0.125, "0.125"},
		{1e21, "1e+21"},
		{1e20, "100000000000000000000"},
		{1e-6, "0.000001"},
		{1e-7, "1e-7"},
		{1.5e22, "1.5e+22"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, c := range cases {
		got := numberToString(c.in)
		if got != c.want {
			t.Errorf("numberToString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestToInt32Wraps(t *testing.T) {
	cases := []struct {
		in   float64
		want int32
	}{
		{0, 0},
		{3.9, 3},
		{-3.9, -3},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{2147483648, -2147483648},
		{4294967296, 0},
		{-1, -1},
	}
	for _, c := range cases {
		if got := toInt32(c.in); got != c.want {
			t.Errorf("toInt32(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestToUInt32Wraps(t *testing.T) {
	cases := []struct {
		in   float64
		want uint32
	}{
		{-1, 4294967295},
		{4294967296, 0},
		{4294967297, 1},
		{math.NaN(), 0},
	}
	for _, c := range cases {
		if got := toUInt32(c.in); got != c.want {
			t.Errorf("toUInt32(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestAbstractEqualsAcrossTags(t *testing.T) {
	sys := NewSystemState()

	i := sys.BoxInt(5)
	n := sys.BoxNumber(5)
	s := sys.BoxString("5")
	bt := sys.BoxBool(true)
	one := sys.BoxInt(1)
	null := sys.Null()
	undef := sys.Undefined()
	defer func() {
		for _, v := range []Value{i, n, s, bt, one, null, undef} {
			v.DecRef()
		}
	}()

	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int==number", i, n, true},
		{"int==string", i, s, true},
		{"string==int", s, i, true},
		{"bool==int", bt, one, true},
		{"null==undefined", null, undef, true},
		{"null==int", null, i, false},
		{"undefined==string", undef, s, false},
	}
	for _, c := range cases {
		if got := sys.abstractEquals(c.a, c.b); got != c.want {
			t.Errorf("%s: abstractEquals = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAbstractEqualsObjectToPrimitive(t *testing.T) {
	sys := NewSystemState()

	arr := NewArray(nil)
	arr.Append(sys.BoxInt(1))
	s := sys.BoxString("1")
	defer arr.DecRef()
	defer s.DecRef()

	if !sys.abstractEquals(arr, s) {
		t.Errorf("[1] == \"1\" should hold via toPrimitive")
	}
	if !sys.abstractEquals(s, arr) {
		t.Errorf("\"1\" == [1] should hold via toPrimitive")
	}
}

func TestAbstractEqualsNamespaceByURI(t *testing.T) {
	sys := NewSystemState()

	a := sys.BoxNamespace(NsPackage, "", "http://example.com")
	b := sys.BoxNamespace(NsExplicit, "ex", "http://example.com")
	c := sys.BoxNamespace(NsPackage, "", "http://other.com")
	defer a.DecRef()
	defer b.DecRef()
	defer c.DecRef()

	if !sys.abstractEquals(a, b) {
		t.Errorf("namespaces with equal URIs should compare equal")
	}
	if sys.abstractEquals(a, c) {
		t.Errorf("namespaces with different URIs should not compare equal")
	}
}

func TestStrictEquals(t *testing.T) {
	sys := NewSystemState()

	i := sys.BoxInt(5)
	n := sys.BoxIntegralNumber(5)
	s := sys.BoxString("5")
	null := sys.Null()
	undef := sys.Undefined()
	nan := sys.BoxNumber(math.NaN())
	defer func() {
		for _, v := range []Value{i, n, s, null, undef, nan} {
			v.DecRef()
		}
	}()

	if !strictEquals(i, n) {
		t.Errorf("int 5 === Number 5 should hold, numeric tags unify")
	}
	if strictEquals(i, s) {
		t.Errorf("int 5 === \"5\" should not hold")
	}
	if strictEquals(null, undef) {
		t.Errorf("null === undefined should not hold")
	}
	if strictEquals(nan, nan) {
		t.Errorf("NaN === NaN should not hold")
	}
}

func TestAbstractLess(t *testing.T) {
	sys := NewSystemState()

	box := func(f float64) Value { return sys.BoxNumber(f) }

	cases := []struct {
		name string
		a, b Value
		want int
	}{
		{"1<2", box(1), box(2), cmpTrue},
		{"2<1", box(2), box(1), cmpFalse},
		{"1<1", box(1), box(1), cmpFalse},
		{"NaN<1", box(math.NaN()), box(1), cmpUndefined},
		{"1<NaN", box(1), box(math.NaN()), cmpUndefined},
		{"a<b", sys.BoxString("a"), sys.BoxString("b"), cmpTrue},
		{"b<a", sys.BoxString("b"), sys.BoxString("a"), cmpFalse},
		{"10<9 lexical", sys.BoxString("10"), sys.BoxString("9"), cmpTrue},
		{"string vs number", sys.BoxString("10"), box(9), cmpFalse},
	}
	for _, c := range cases {
		got := sys.abstractLess(c.a, c.b)
		if got != c.want {
			t.Errorf("%s: abstractLess = %d, want %d", c.name, got, c.want)
		}
		c.a.DecRef()
		c.b.DecRef()
	}
}

func TestAddConcatVsNumeric(t *testing.T) {
	sys := NewSystemState()

	a := sys.BoxInt(1)
	b := sys.BoxString("2")
	r := sys.add(a, b)
	if r.Type() != TString || r.ToStr() != "12" {
		t.Errorf("1 + \"2\" = %s, want \"12\"", r.ToDebugString())
	}
	r.DecRef()

	c := sys.BoxNumber(1.5)
	d := sys.BoxNumber(2.5)
	r = sys.add(c, d)
	if r.Type() != TNumber || r.ToNumber() != 4 {
		t.Errorf("1.5 + 2.5 = %s, want 4", r.ToDebugString())
	}
	r.DecRef()

	arr := NewArray(nil)
	arr.Append(sys.BoxInt(7))
	r = sys.add(arr, a)
	if r.Type() != TString || r.ToStr() != "71" {
		t.Errorf("[7] + 1 = %s, want \"71\"", r.ToDebugString())
	}
	r.DecRef()
	arr.DecRef()

	a.DecRef()
	b.DecRef()
	c.DecRef()
	d.DecRef()
}

func TestModuloHelper(t *testing.T) {
	cases := []struct {
		x, y float64
		want float64
	}{
		{7, 3, 1},
		{-7, 3, -1},
		{7.5, 2, 1.5},
		{7, math.Inf(1), 7},
		{-7, math.Inf(-1), -7},
	}
	for _, c := range cases {
		if got := modulo(c.x, c.y); got != c.want {
			t.Errorf("modulo(%v, %v) = %v, want %v", c.x, c.y, got, c.want)
		}
	}

	nanCases := []struct{ x, y float64 }{
		{7, 0},
		{7, math.Copysign(0, -1)},
		{math.NaN(), 3},
		{7, math.NaN()},
		{math.Inf(1), 3},
	}
	for _, c := range nanCases {
		if got := modulo(c.x, c.y); !math.IsNaN(got) {
			t.Errorf("modulo(%v, %v) = %v, want NaN", c.x, c.y, got)
		}
	}
}

func TestTypeofStrings(t *testing.T) {
	sys := NewSystemState()

	undef := sys.Undefined()
	null := sys.Null()
	bt := sys.BoxBool(true)
	i := sys.BoxInt(1)
	n := sys.BoxNumber(1.5)
	s := sys.BoxString("x")
	obj := NewObject(sys.ObjectClass)
	defer func() {
		for _, v := range []Value{undef, null, bt, i, n, s, obj} {
			v.DecRef()
		}
	}()

	cases := []struct {
		v    Value
		want string
	}{
		{undef, "undefined"},
		{null, "object"},
		{bt, "boolean"},
		{i, "number"},
		{n, "number"},
		{s, "string"},
		{obj, "object"},
	}
	for _, c := range cases {
		if got := typeofString(c.v); got != c.want {
			t.Errorf("typeof %s = %q, want %q", c.v.Type(), got, c.want)
		}
	}
}
