package vm

import (
	"strings"
	"testing"
)

func TestDisassembleListing(t *testing.T) {
	pool := testPool("answer")
	var a asm
	a.op(OpPushByte).u8(2)
	a.op(OpPushByte).u8(3)
	a.op(OpAdd)
	a.op(OpReturnValue)

	mi := testMethod(pool, a.buf)
	mi.Name = "sum"
	mi.ParamCount = 2

	listing := Disassemble(mi)
	for _, want := range []string{
		"; === sum ===",
		"; params=2",
		"0000  pushbyte 2",
		"0002  pushbyte 3",
		"0004  add",
		"0005  returnvalue",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestDisassembleMultinameComment(t *testing.T) {
	pool := testPool("greeting")
	var a asm
	a.op(OpGetLex).u32(1)
	a.op(OpReturnValue)

	listing := Disassemble(testMethod(pool, a.buf))
	if !strings.Contains(listing, "getlex 1 ; greeting") {
		t.Errorf("getlex line should carry the pool name:\n%s", listing)
	}
}

func TestDisassembleBranchTarget(t *testing.T) {
	pool := testPool()
	var a asm
	a.op(OpPushTrue)
	a.op(OpIfTrue).u32(10)
	a.op(OpReturnVoid)
	a.pad(3)
	a.op(OpReturnVoid)

	listing := Disassemble(testMethod(pool, a.buf))
	if !strings.Contains(listing, "iftrue -> 000A") {
		t.Errorf("branch should print an absolute hex target:\n%s", listing)
	}
}

func TestDisassembleHandlerHeader(t *testing.T) {
	pool := testPool()
	var a asm
	a.op(OpReturnVoid)

	mi := testMethod(pool, a.buf)
	mi.Body.Exceptions = []ExceptionHandler{
		{From: 0, To: 1, Target: 0, TypeName: "TypeError"},
		{From: 0, To: 1, Target: 0},
	}

	listing := Disassemble(mi)
	if !strings.Contains(listing, "; handler[0] [0000,0001) -> 0000 type=TypeError") {
		t.Errorf("typed handler row missing:\n%s", listing)
	}
	if !strings.Contains(listing, "; handler[1] [0000,0001) -> 0000 type=*") {
		t.Errorf("catch-all handler row should show type=*:\n%s", listing)
	}
}

func TestDisassembleLookupSwitch(t *testing.T) {
	pool := testPool()
	var a asm
	a.op(OpPushByte).u8(0)
	a.op(OpLookupSwitch).u32(18).u32(0).u32(15)
	a.op(OpPushByte).u8(1) // 15: case 0
	a.op(OpReturnValue)
	a.op(OpPushByte).u8(2) // 18: default
	a.op(OpReturnValue)

	listing := Disassemble(testMethod(pool, a.buf))
	if !strings.Contains(listing, "lookupswitch default=0012 [000F]") {
		t.Errorf("lookupswitch should list default and case targets:\n%s", listing)
	}
}

func TestDisassembleShowsRewrittenOpcodes(t *testing.T) {
	var a asm
	a.op(OpPushByte).u8(7)
	a.op(OpCoerce).u32(1).pad(4)
	a.op(OpReturnValue)

	mi := testMethod(testPool("int"), a.buf)
	before := Disassemble(mi)
	if !strings.Contains(before, "coerce") {
		t.Errorf("fresh body should list coerce:\n%s", before)
	}

	runMethod(t, mi).DecRef()

	after := Disassemble(mi)
	if !strings.Contains(after, "coerceearly") {
		t.Errorf("executed body should list the rewritten opcode:\n%s", after)
	}
	if !strings.Contains(after, "; int") {
		t.Errorf("coerceearly line should name the cached type:\n%s", after)
	}
}
