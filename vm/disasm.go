package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Disassemble returns a human-readable listing of the method body. The
// listing reflects the code array as it is now, so bodies that have already
// run may show coerceearly/pushearly where the loader emitted coerce and
// getlexonce.
func Disassemble(mi *MethodInfo) string {
	var sb strings.Builder

	name := mi.Name
	if name == "" {
		name = "<anonymous>"
	}
	sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	body := mi.Body
	sb.WriteString(fmt.Sprintf("; max_stack=%d local_count=%d scope_depth=%d..%d\n",
		body.MaxStack, body.LocalCount, body.InitScopeDepth, body.MaxScopeDepth))
	if mi.ParamCount > 0 || mi.NeedsRest {
		rest := ""
		if mi.NeedsRest {
			rest = " +rest"
		}
		sb.WriteString(fmt.Sprintf("; params=%d%s\n", mi.ParamCount, rest))
	}
	for i, h := range body.Exceptions {
		typeName := h.TypeName
		if typeName == "" {
			typeName = "*"
		}
		sb.WriteString(fmt.Sprintf("; handler[%d] [%04X,%04X) -> %04X type=%s\n",
			i, h.From, h.To, h.Target, typeName))
	}
	sb.WriteString("\n")

	offset := 0
	for offset < len(body.Code) {
		line, instrLen := disassembleInstruction(mi, offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		if instrLen <= 0 {
			break
		}
		offset += instrLen
	}
	return sb.String()
}

// disassembleInstruction formats one instruction and reports its length.
func disassembleInstruction(mi *MethodInfo, offset int) (string, int) {
	body := mi.Body
	code := body.Code
	op := Opcode(code[offset])
	width := op.OperandWidth()
	if offset+1+width > len(code) {
		return fmt.Sprintf("%s <truncated>", op), len(code) - offset
	}
	operands := code[offset+1:]

	switch op {
	case OpPushByte:
		return fmt.Sprintf("%s %d", op, int8(operands[0])), 1 + width

	case OpPushDouble:
		f := math.Float64frombits(binary.LittleEndian.Uint64(operands))
		return fmt.Sprintf("%s %v", op, f), 1 + width

	case OpPushString:
		idx := binary.LittleEndian.Uint32(operands)
		return fmt.Sprintf("%s %d ; %q", op, idx, clipString(mi.Context.Pool.StringAt(idx))), 1 + width

	case OpPushInt:
		idx := binary.LittleEndian.Uint32(operands)
		return fmt.Sprintf("%s %d ; %d", op, idx, mi.Context.Pool.IntAt(idx)), 1 + width

	case OpPushUInt:
		idx := binary.LittleEndian.Uint32(operands)
		return fmt.Sprintf("%s %d ; %d", op, idx, mi.Context.Pool.UIntAt(idx)), 1 + width

	case OpPushNamespace, OpFindPropStrict, OpFindProperty, OpFindDef,
		OpGetLex, OpGetProperty, OpSetProperty, OpInitProperty,
		OpDeleteProperty, OpGetSuper, OpSetSuper, OpGetDescendants,
		OpCoerce, OpAsType, OpIsType, OpNewCatch:
		idx := binary.LittleEndian.Uint32(operands)
		return fmt.Sprintf("%s %d ; %s", op, idx, multinameLabel(mi, idx)), 1 + width

	case OpCallProperty, OpCallPropLex, OpCallPropVoid, OpCallSuper,
		OpCallSuperVoid, OpConstructProp:
		idx := binary.LittleEndian.Uint32(operands)
		argc := binary.LittleEndian.Uint32(operands[4:])
		return fmt.Sprintf("%s %d argc=%d ; %s", op, idx, argc, multinameLabel(mi, idx)), 1 + width

	case OpCallStatic:
		midx := binary.LittleEndian.Uint32(operands)
		argc := binary.LittleEndian.Uint32(operands[4:])
		return fmt.Sprintf("%s method=%d argc=%d", op, midx, argc), 1 + width

	case OpHasNext2:
		objReg := binary.LittleEndian.Uint32(operands)
		idxReg := binary.LittleEndian.Uint32(operands[4:])
		return fmt.Sprintf("%s obj=r%d index=r%d", op, objReg, idxReg), 1 + width

	case OpJump, OpIfTrue, OpIfFalse, OpIfEq, OpIfNe, OpIfLt, OpIfLe,
		OpIfGt, OpIfGe, OpIfStrictEq, OpIfStrictNe, OpIfNlt, OpIfNle,
		OpIfNgt, OpIfNge:
		target := binary.LittleEndian.Uint32(operands)
		return fmt.Sprintf("%s -> %04X", op, target), 1 + width

	case OpLookupSwitch:
		def := binary.LittleEndian.Uint32(operands)
		count := binary.LittleEndian.Uint32(operands[4:])
		cases := int(count) + 1
		total := 1 + 8 + 4*cases
		if offset+total > len(code) {
			return fmt.Sprintf("%s default=%04X cases=%d <truncated>", op, def, cases), len(code) - offset
		}
		var targets []string
		for i := 0; i < cases; i++ {
			t := binary.LittleEndian.Uint32(code[offset+9+4*i:])
			targets = append(targets, fmt.Sprintf("%04X", t))
		}
		return fmt.Sprintf("%s default=%04X [%s]", op, def, strings.Join(targets, " ")), total

	case OpCoerceEarly:
		key := binary.LittleEndian.Uint32(operands)
		label := "*"
		if t := body.cachedType(key); t != nil {
			label = t.TypeName()
		}
		return fmt.Sprintf("%s %d ; %s", op, key, label), 1 + width

	case OpPushEarly:
		key := binary.LittleEndian.Uint32(operands)
		label := "?"
		if v := body.cachedValue(key); v != nil {
			label = v.ToDebugString()
		}
		return fmt.Sprintf("%s %d ; %s", op, key, clipString(label)), 1 + width
	}

	switch width {
	case 0:
		return op.String(), 1
	case 4:
		return fmt.Sprintf("%s %d", op, binary.LittleEndian.Uint32(operands)), 1 + width
	default:
		parts := make([]string, 0, width)
		for i := 0; i < width; i++ {
			parts = append(parts, fmt.Sprintf("0x%02X", operands[i]))
		}
		return fmt.Sprintf("%s %s", op, strings.Join(parts, " ")), 1 + width
	}
}

// multinameLabel renders a pool multiname for listing comments.
func multinameLabel(mi *MethodInfo, idx uint32) string {
	e, ok := mi.Context.Pool.MultinameAt(idx)
	if !ok {
		return "<invalid>"
	}
	if e.Kind.hasRuntimeName() {
		return "<runtime name>"
	}
	return mi.Context.Pool.StringAt(e.NameIndex)
}

func clipString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
