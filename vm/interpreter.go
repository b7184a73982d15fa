package vm

import (
	"encoding/binary"
	"math"
)

// run executes the method body from pc until a return opcode, the end of
// the code array, or a failure. The caller (Execute) owns handler dispatch:
// on error the context's execPos still addresses the faulting instruction.
func (c *CallContext) run(pc uint32) (Value, error) {
	body := c.mi.Body
	code := body.Code
	sys := c.sys
	profiling := sys.Profiler != nil

	for {
		if int(pc) >= len(code) {
			// Ran off the end of the body: whatever is on top is the result.
			if c.stackDepth() > 0 {
				return c.pop()
			}
			return nil, nil
		}
		c.execPos = pc
		op := Opcode(code[pc])
		pc++
		width := uint32(op.OperandWidth())
		if int(pc+width) > len(code) {
			return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
		}
		if profiling {
			body.countOp(op)
		}
		log.Debugf("%06d %s", c.execPos, op)
		next := pc + width

		switch op {

		// -------------------------------------------------------------------
		// Debug and no-ops
		// -------------------------------------------------------------------

		case OpBkpt, OpNop, OpLabel, OpBkptLine, OpTimestamp:
			// nothing

		case OpDxns:
			log.Debugf("dxns ignored (no XML support)")

		case OpDxnsLate:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			v.DecRef()

		// -------------------------------------------------------------------
		// Stack manipulation and constants
		// -------------------------------------------------------------------

		case OpPushNull:
			if err := c.push(sys.Null()); err != nil {
				return nil, err
			}
		case OpPushUndefined:
			if err := c.push(sys.Undefined()); err != nil {
				return nil, err
			}
		case OpPushTrue:
			if err := c.push(sys.BoxBool(true)); err != nil {
				return nil, err
			}
		case OpPushFalse:
			if err := c.push(sys.BoxBool(false)); err != nil {
				return nil, err
			}
		case OpPushNaN:
			if err := c.push(sys.BoxNumber(math.NaN())); err != nil {
				return nil, err
			}
		case OpPushByte:
			if err := c.push(sys.BoxInt(int32(int8(code[pc])))); err != nil {
				return nil, err
			}
		case OpPushShort:
			// Reads a full u32, not a u30 (Adobe bug ASC-4181); kept.
			if err := c.push(sys.BoxInt(int32(u32At(code, pc)))); err != nil {
				return nil, err
			}
		case OpPushString:
			if err := c.push(sys.BoxString(c.abc.Pool.StringAt(u32At(code, pc)))); err != nil {
				return nil, err
			}
		case OpPushInt:
			if err := c.push(sys.BoxInt(c.abc.Pool.IntAt(u32At(code, pc)))); err != nil {
				return nil, err
			}
		case OpPushUInt:
			if err := c.push(sys.BoxUInt(c.abc.Pool.UIntAt(u32At(code, pc)))); err != nil {
				return nil, err
			}
		case OpPushDouble:
			if err := c.push(sys.BoxNumber(f64At(code, pc))); err != nil {
				return nil, err
			}
		case OpPushNamespace:
			ns := c.abc.Pool.NamespaceAt(u32At(code, pc))
			if err := c.push(sys.BoxNamespace(ns.Kind, "", ns.URI)); err != nil {
				return nil, err
			}

		case OpPop:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			v.DecRef()

		case OpDup:
			v, err := c.peek()
			if err != nil {
				return nil, err
			}
			v.IncRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpSwap:
			v2, v1, err := c.popPair()
			if err != nil {
				return nil, err
			}
			if err := c.push(v2); err != nil {
				v1.DecRef()
				return nil, err
			}
			if err := c.push(v1); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Locals
		// -------------------------------------------------------------------

		case OpGetLocal:
			if err := c.push(c.getLocal(int(u32At(code, pc)))); err != nil {
				return nil, err
			}
		case OpGetLocal0, OpGetLocal1, OpGetLocal2, OpGetLocal3:
			if err := c.push(c.getLocal(int(op & 3))); err != nil {
				return nil, err
			}

		case OpSetLocal, OpSetLocal0, OpSetLocal1, OpSetLocal2, OpSetLocal3:
			i := int(op & 3)
			if op == OpSetLocal {
				i = int(u32At(code, pc))
			}
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			// The rest-argument slot only accepts arrays, preserving the
			// rest-arguments contract.
			if i != c.argArrayPos || v.Type() == TArray {
				c.setLocal(i, v)
			} else {
				v.DecRef()
			}

		case OpKill:
			c.setLocal(int(u32At(code, pc)), sys.Undefined())

		case OpIncLocal, OpDecLocal:
			i := int(u32At(code, pc))
			v := c.getLocal(i)
			n := v.ToNumber()
			v.DecRef()
			if op == OpIncLocal {
				n++
			} else {
				n--
			}
			c.setLocal(i, sys.BoxNumber(n))

		case OpIncLocalI, OpDecLocalI:
			i := int(u32At(code, pc))
			v := c.getLocal(i)
			n := v.ToInt()
			v.DecRef()
			if op == OpIncLocalI {
				n++
			} else {
				n--
			}
			c.setLocal(i, sys.BoxInt(n))

		// -------------------------------------------------------------------
		// Control flow
		// -------------------------------------------------------------------

		case OpJump:
			next = u32At(code, pc)

		case OpIfTrue, OpIfFalse:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			cond := v.ToBoolean()
			v.DecRef()
			if cond == (op == OpIfTrue) {
				next = u32At(code, pc)
			}

		case OpIfEq, OpIfNe, OpIfStrictEq, OpIfStrictNe,
			OpIfLt, OpIfNlt, OpIfLe, OpIfNle,
			OpIfGt, OpIfNgt, OpIfGe, OpIfNge:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			taken := c.binaryBranchTaken(op, lhs, rhs)
			lhs.DecRef()
			rhs.DecRef()
			if taken {
				next = u32At(code, pc)
			}

		case OpLookupSwitch:
			defTarget := u32At(code, pc)
			count := u32At(code, pc+4)
			vec := pc + 8
			if int64(vec)+int64(count+1)*4 > int64(len(code)) {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			idx := v.ToInt()
			v.DecRef()
			if idx >= 0 && uint32(idx) <= count {
				next = u32At(code, vec+uint32(idx)*4)
			} else {
				next = defTarget
			}

		case OpReturnVoid:
			return nil, nil

		case OpReturnValue:
			return c.pop()

		// -------------------------------------------------------------------
		// Scope
		// -------------------------------------------------------------------

		case OpPushScope, OpPushWith:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if isNullish(v) {
				kind := KConvertNullToObjectError
				if v.Type() == TUndefined {
					kind = KConvertUndefinedToObjectError
				}
				v.DecRef()
				return nil, throwTypeError(kind, "cannot push a null or undefined scope")
			}
			if err := c.pushScopeEntry(v, op == OpPushWith); err != nil {
				return nil, err
			}

		case OpPopScope:
			if err := c.popScopeEntry(); err != nil {
				return nil, err
			}

		case OpGetScopeObject:
			if err := c.push(c.currentScopeAt(int(u32At(code, pc)))); err != nil {
				return nil, err
			}

		case OpGetScopeAtIndex:
			if err := c.push(c.scopeAtIndex(int(u32At(code, pc)))); err != nil {
				return nil, err
			}

		case OpGetGlobalScope:
			if err := c.push(c.globalScope()); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Naming
		// -------------------------------------------------------------------

		case OpFindPropStrict, OpFindProperty:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			target, found := c.findProperty(m)
			if !found && op == OpFindPropStrict {
				name := m.Name
				m.resetNameIfObject()
				target.DecRef()
				return nil, throwReferenceError(KUndefinedVarError,
					"variable "+name+" is not defined")
			}
			m.resetNameIfObject()
			if err := c.push(target); err != nil {
				return nil, err
			}

		case OpFindDef:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			log.Infof("finddef %s not implemented, pushing null", m.Name)
			m.resetNameIfObject()
			if err := c.push(sys.Null()); err != nil {
				return nil, err
			}

		case OpGetLex:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			target, found := c.findProperty(m)
			if !found {
				name := m.Name
				m.resetNameIfObject()
				target.DecRef()
				return nil, throwReferenceError(KUndefinedVarError,
					"variable "+name+" is not defined")
			}
			v, err := c.getPropertyOn(target, m)
			target.DecRef()
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}
			if err := c.push(v); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Property and slot access
		// -------------------------------------------------------------------

		case OpGetProperty:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				m.resetNameIfObject()
				return nil, err
			}
			v, err := c.getPropertyOn(obj, m)
			obj.DecRef()
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpSetProperty, OpInitProperty:
			value, err := c.pop()
			if err != nil {
				return nil, err
			}
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				value.DecRef()
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				value.DecRef()
				m.resetNameIfObject()
				return nil, err
			}
			err = c.setPropertyOn(obj, m, value)
			obj.DecRef()
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}

		case OpDeleteProperty:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				m.resetNameIfObject()
				return nil, err
			}
			deleted := false
			if o, ok := obj.(*Object); ok {
				deleted = o.deleteProperty(m.Name)
			}
			obj.DecRef()
			m.resetNameIfObject()
			if err := c.push(sys.BoxBool(deleted)); err != nil {
				return nil, err
			}

		case OpGetSlot:
			id := u32At(code, pc)
			obj, err := c.pop()
			if err != nil {
				return nil, err
			}
			o, err := slotReceiver(obj)
			if err != nil {
				obj.DecRef()
				return nil, err
			}
			v := o.getSlot(sys, id)
			obj.DecRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpSetSlot, OpSetSlotNoCoerce:
			id := u32At(code, pc)
			value, obj, err := c.popPair()
			if err != nil {
				return nil, err
			}
			o, err := slotReceiver(obj)
			if err != nil {
				value.DecRef()
				obj.DecRef()
				return nil, err
			}
			if op == OpSetSlot {
				err = o.setSlot(sys, id, value)
			} else {
				err = o.setSlotNoCoerce(id, value)
			}
			obj.DecRef()
			if err != nil {
				return nil, err
			}

		case OpGetGlobalSlot:
			id := u32At(code, pc)
			g := c.globalScope()
			o, err := slotReceiver(g)
			if err != nil {
				g.DecRef()
				return nil, err
			}
			v := o.getSlot(sys, id)
			g.DecRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpSetGlobalSlot:
			id := u32At(code, pc)
			value, err := c.pop()
			if err != nil {
				return nil, err
			}
			g := c.globalScope()
			o, err := slotReceiver(g)
			if err != nil {
				value.DecRef()
				g.DecRef()
				return nil, err
			}
			err = o.setSlot(sys, id, value)
			g.DecRef()
			if err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Object creation
		// -------------------------------------------------------------------

		case OpNewObject:
			n := int(u32At(code, pc))
			obj := NewObject(sys.ObjectClass)
			for i := 0; i < n; i++ {
				value, name, err := c.popPair()
				if err != nil {
					obj.DecRef()
					return nil, err
				}
				obj.setDynamicVar(name.ToStr(), value)
				name.DecRef()
			}
			if err := c.push(obj); err != nil {
				return nil, err
			}

		case OpNewArray:
			n := int(u32At(code, pc))
			elems, err := c.popN(n)
			if err != nil {
				return nil, err
			}
			if err := c.push(NewArray(elems)); err != nil {
				return nil, err
			}

		case OpNewActivation:
			if err := c.push(NewObject(sys.ObjectClass)); err != nil {
				return nil, err
			}

		case OpNewCatch:
			idx := int(u32At(code, pc))
			if idx < 0 || idx >= len(body.Exceptions) {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			if err := c.push(NewObject(sys.ObjectClass)); err != nil {
				return nil, err
			}

		case OpNewClass:
			idx := int(u32At(code, pc))
			if idx < 0 || idx >= len(c.abc.Classes) {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			base, err := c.pop()
			if err != nil {
				return nil, err
			}
			base.DecRef()
			cls := c.abc.Classes[idx]
			cls.IncRef()
			if err := c.push(cls); err != nil {
				return nil, err
			}

		case OpNewFunction:
			idx := int(u32At(code, pc))
			if idx < 0 || idx >= len(c.abc.Methods) {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			closure := c.captureScope()
			fn := NewSyntheticFunction(c.abc.Methods[idx], closure)
			closure.release()
			if err := c.push(fn); err != nil {
				return nil, err
			}

		case OpGetDescendants:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			log.Infof("getdescendants %s not implemented, pushing undefined", m.Name)
			m.resetNameIfObject()
			obj, err := c.pop()
			if err != nil {
				return nil, err
			}
			obj.DecRef()
			if err := c.push(sys.Undefined()); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Calls and construction
		// -------------------------------------------------------------------

		case OpCall:
			argc := int(u32At(code, pc))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			this, fn, err := c.popPair()
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			ret, err := c.callValue(fn, this, args)
			fn.DecRef()
			this.DecRef()
			if err != nil {
				return nil, err
			}
			if err := c.pushResult(ret); err != nil {
				return nil, err
			}

		case OpCallProperty, OpCallPropLex, OpCallPropVoid:
			argc := int(u32At(code, pc+4))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				decRefAll(args)
				m.resetNameIfObject()
				return nil, err
			}
			fn, err := c.getPropertyOn(obj, m)
			m.resetNameIfObject()
			if err != nil {
				decRefAll(args)
				obj.DecRef()
				return nil, err
			}
			ret, err := c.callValue(fn, obj, args)
			fn.DecRef()
			obj.DecRef()
			if err != nil {
				return nil, err
			}
			if op == OpCallPropVoid {
				if ret != nil {
					ret.DecRef()
				}
			} else if err := c.pushResult(ret); err != nil {
				return nil, err
			}

		case OpCallSuper, OpCallSuperVoid:
			argc := int(u32At(code, pc+4))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				decRefAll(args)
				m.resetNameIfObject()
				return nil, err
			}
			fn := c.superProperty(obj, m.Name)
			m.resetNameIfObject()
			ret, err := c.callValue(fn, obj, args)
			fn.DecRef()
			obj.DecRef()
			if err != nil {
				return nil, err
			}
			if op == OpCallSuperVoid {
				if ret != nil {
					ret.DecRef()
				}
			} else if err := c.pushResult(ret); err != nil {
				return nil, err
			}

		case OpCallStatic:
			midx := int(u32At(code, pc))
			argc := int(u32At(code, pc+4))
			if midx < 0 || midx >= len(c.abc.Methods) {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			ret, err := Execute(c.abc.Methods[midx], obj, args)
			obj.DecRef()
			if err != nil {
				return nil, err
			}
			if err := c.pushResult(ret); err != nil {
				return nil, err
			}

		case OpConstruct:
			argc := int(u32At(code, pc))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			t, err := c.pop()
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			ret, err := c.constructValue(t, args)
			t.DecRef()
			if err != nil {
				return nil, err
			}
			if err := c.push(ret); err != nil {
				return nil, err
			}

		case OpConstructProp:
			argc := int(u32At(code, pc+4))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				decRefAll(args)
				m.resetNameIfObject()
				return nil, err
			}
			t, err := c.getPropertyOn(obj, m)
			m.resetNameIfObject()
			obj.DecRef()
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			ret, err := c.constructValue(t, args)
			t.DecRef()
			if err != nil {
				return nil, err
			}
			if err := c.push(ret); err != nil {
				return nil, err
			}

		case OpConstructSuper:
			argc := int(u32At(code, pc))
			args, err := c.popN(argc)
			if err != nil {
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				decRefAll(args)
				return nil, err
			}
			cls := sys.classOf(obj)
			if cls != nil && cls.Super != nil && cls.Super.Constructor != nil {
				ret, err := executeWithScope(cls.Super.Constructor, obj, args, nil)
				if err != nil {
					obj.DecRef()
					return nil, err
				}
				if ret != nil {
					ret.DecRef()
				}
			} else {
				decRefAll(args)
			}
			obj.DecRef()

		case OpConstructGenericType:
			n := int(u32At(code, pc))
			params, err := c.popN(n)
			if err != nil {
				return nil, err
			}
			decRefAll(params)
			// Parameterized types collapse to their base type here; Vector
			// is outside the supported class set.
			baseType, err := c.pop()
			if err != nil {
				return nil, err
			}
			if err := c.push(baseType); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Arithmetic
		// -------------------------------------------------------------------

		case OpAdd, OpSubtract, OpMultiply:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			var res Value
			if isIntegral(lhs) && isIntegral(rhs) {
				a, b := lhs.ToInt64(), rhs.ToInt64()
				switch op {
				case OpAdd:
					res = sys.BoxIntegralNumber(a + b)
				case OpSubtract:
					res = sys.BoxIntegralNumber(a - b)
				default:
					res = sys.BoxIntegralNumber(a * b)
				}
			} else if op == OpAdd {
				res = sys.add(lhs, rhs)
			} else if op == OpSubtract {
				res = sys.BoxNumber(lhs.ToNumber() - rhs.ToNumber())
			} else {
				res = sys.BoxNumber(lhs.ToNumber() * rhs.ToNumber())
			}
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpDivide:
			// Division always widens to double.
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			res := sys.BoxNumber(lhs.ToNumber() / rhs.ToNumber())
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpModulo:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			var res Value
			if isIntegral(lhs) && isIntegral(rhs) {
				b := rhs.ToInt64()
				if b == 0 {
					res = sys.BoxNumber(math.NaN())
				} else {
					res = sys.BoxIntegralNumber(lhs.ToInt64() % b)
				}
			} else {
				// Operand order on the double path is reversed relative to
				// the integral path; kept as is.
				res = sys.BoxNumber(modulo(rhs.ToNumber(), lhs.ToNumber()))
			}
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpAddI, OpSubtractI, OpMultiplyI:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			a, b := lhs.ToInt(), rhs.ToInt()
			lhs.DecRef()
			rhs.DecRef()
			var r int32
			switch op {
			case OpAddI:
				r = a + b
			case OpSubtractI:
				r = a - b
			default:
				r = a * b
			}
			if err := c.push(sys.BoxInt(r)); err != nil {
				return nil, err
			}

		case OpNegate:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			var res Value
			if v.ToInt64() != 0 && v.ToInt64() == int64(v.ToInt()) {
				res = sys.BoxIntegralNumber(-v.ToInt64())
			} else {
				res = sys.BoxNumber(-v.ToNumber())
			}
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpNegateI:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			res := sys.BoxInt(-v.ToInt())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpIncrement, OpDecrement:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			delta := int64(1)
			if op == OpDecrement {
				delta = -1
			}
			// increment keeps UInteger off the fast path, decrement does not.
			fast := isIntegral(v)
			if op == OpIncrement && v.Type() == TUInteger {
				fast = false
			}
			var res Value
			if fast {
				res = sys.BoxIntegralNumber(v.ToInt64() + delta)
			} else {
				res = sys.BoxNumber(v.ToNumber() + float64(delta))
			}
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpIncrementI, OpDecrementI:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			n := v.ToInt()
			v.DecRef()
			if op == OpIncrementI {
				n++
			} else {
				n--
			}
			if err := c.push(sys.BoxInt(n)); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Bit operations and logic
		// -------------------------------------------------------------------

		case OpBitAnd, OpBitOr, OpBitXor:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			a, b := lhs.ToInt(), rhs.ToInt()
			lhs.DecRef()
			rhs.DecRef()
			var r int32
			switch op {
			case OpBitAnd:
				r = a & b
			case OpBitOr:
				r = a | b
			default:
				r = a ^ b
			}
			if err := c.push(sys.BoxInt(r)); err != nil {
				return nil, err
			}

		case OpLshift, OpRshift:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			shift := rhs.ToUInt() & 0x1f
			val := lhs.ToInt()
			lhs.DecRef()
			rhs.DecRef()
			var r int32
			if op == OpLshift {
				r = val << shift
			} else {
				r = val >> shift
			}
			if err := c.push(sys.BoxInt(r)); err != nil {
				return nil, err
			}

		case OpUrshift:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			r := lhs.ToUInt() >> (rhs.ToUInt() & 0x1f)
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(sys.BoxUInt(r)); err != nil {
				return nil, err
			}

		case OpBitNot:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			res := sys.BoxInt(^v.ToInt())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpNot:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			res := sys.BoxBool(!v.ToBoolean())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpTypeOf:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			res := sys.BoxString(typeofString(v))
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Comparisons
		// -------------------------------------------------------------------

		case OpEquals, OpStrictEquals:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			var eq bool
			if op == OpEquals {
				eq = sys.abstractEquals(lhs, rhs)
			} else {
				eq = strictEquals(lhs, rhs)
			}
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(sys.BoxBool(eq)); err != nil {
				return nil, err
			}

		case OpLessThan, OpLessEquals, OpGreaterThan, OpGreaterEquals:
			rhs, lhs, err := c.popPair()
			if err != nil {
				return nil, err
			}
			var b bool
			switch op {
			case OpLessThan:
				b = sys.abstractLess(lhs, rhs) == cmpTrue
			case OpLessEquals:
				b = sys.abstractLess(rhs, lhs) == cmpFalse
			case OpGreaterThan:
				b = sys.abstractLess(rhs, lhs) == cmpTrue
			default:
				b = sys.abstractLess(lhs, rhs) == cmpFalse
			}
			lhs.DecRef()
			rhs.DecRef()
			if err := c.push(sys.BoxBool(b)); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Type tests
		// -------------------------------------------------------------------

		case OpAsType, OpIsType:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			t, err := c.resolveType(m)
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			cls, _ := t.(*Class)
			match := t == nil || (cls != nil && sys.isKindOf(v, cls))
			if op == OpIsType {
				v.DecRef()
				if err := c.push(sys.BoxBool(match)); err != nil {
					return nil, err
				}
			} else if match {
				if err := c.push(v); err != nil {
					return nil, err
				}
			} else {
				v.DecRef()
				if err := c.push(sys.Null()); err != nil {
					return nil, err
				}
			}

		case OpAsTypeLate, OpIsTypeLate:
			t, v, err := c.popPair()
			if err != nil {
				return nil, err
			}
			cls, ok := t.(*Class)
			if !ok {
				t.DecRef()
				v.DecRef()
				return nil, throwTypeError(KCheckTypeFailedError, "type argument is not a class")
			}
			match := sys.isKindOf(v, cls)
			t.DecRef()
			if op == OpIsTypeLate {
				v.DecRef()
				if err := c.push(sys.BoxBool(match)); err != nil {
					return nil, err
				}
			} else if match {
				if err := c.push(v); err != nil {
					return nil, err
				}
			} else {
				v.DecRef()
				if err := c.push(sys.Null()); err != nil {
					return nil, err
				}
			}

		case OpInstanceOf:
			t, v, err := c.popPair()
			if err != nil {
				return nil, err
			}
			cls, ok := t.(*Class)
			if !ok && t.Type() != TFunction {
				t.DecRef()
				v.DecRef()
				return nil, throwTypeError(KCantUseInstanceofOnNonObjectError,
					"instanceof requires a class or function")
			}
			match := ok && sys.isKindOf(v, cls)
			t.DecRef()
			v.DecRef()
			if err := c.push(sys.BoxBool(match)); err != nil {
				return nil, err
			}

		case OpIn:
			obj, name, err := c.popPair()
			if err != nil {
				return nil, err
			}
			has := hasPropertyOn(obj, name.ToStr(), true)
			obj.DecRef()
			name.DecRef()
			if err := c.push(sys.BoxBool(has)); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Conversions
		// -------------------------------------------------------------------

		case OpConvertS:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TString {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			res := sys.BoxString(v.ToStr())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpEscXElem, OpEscXAttr:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			res := sys.BoxString(v.ToStr())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpConvertI:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TInteger {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			res := sys.BoxInt(v.ToInt())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpConvertU:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TUInteger {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			res := sys.BoxUInt(v.ToUInt())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpConvertD:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TNumber {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			var res Value
			switch v.Type() {
			case TInteger, TUInteger, TBoolean:
				res = sys.BoxIntegralNumber(v.ToInt64())
			default:
				res = sys.BoxNumber(v.ToNumber())
			}
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpConvertB:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TBoolean {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			res := sys.BoxBool(v.ToBoolean())
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpConvertO:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TNull {
				v.DecRef()
				return nil, throwTypeError(KConvertNullToObjectError,
					"cannot convert null to an object")
			}
			if v.Type() == TUndefined {
				v.DecRef()
				return nil, throwTypeError(KConvertUndefinedToObjectError,
					"cannot convert undefined to an object")
			}
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpCheckFilter:
			return nil, throwTypeError(KFilterError,
				"filter operator is only supported on XML values")

		case OpCoerceA:
			// to-any is the identity

		case OpCoerceS:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			if v.Type() == TString {
				if err := c.push(v); err != nil {
					return nil, err
				}
				break
			}
			var res Value
			if isNullish(v) {
				res = sys.Null()
			} else {
				res = sys.BoxString(v.ToStr())
			}
			v.DecRef()
			if err := c.push(res); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// coerce and its one-shot rewrite
		// -------------------------------------------------------------------

		case OpCoerce:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			t, err := c.resolveType(m)
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}
			key := body.cacheType(t)
			body.rewrite(c.execPos, OpCoerceEarly, key)
			if err := c.coerceTop(t); err != nil {
				return nil, err
			}

		case OpCoerceEarly:
			t := body.cachedType(u32At(code, pc))
			if err := c.coerceTop(t); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// getlexonce and its one-shot rewrite
		// -------------------------------------------------------------------

		case OpGetLexOnce:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			v, ok := c.abc.Domain.getDefinition(m.Name)
			if !ok {
				name := m.Name
				m.resetNameIfObject()
				return nil, throwReferenceError(KUndefinedVarError,
					"variable "+name+" is not defined")
			}
			m.resetNameIfObject()
			key := body.cacheValue(v)
			body.rewrite(c.execPos, OpPushEarly, key)
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpPushEarly:
			v := body.cachedValue(u32At(code, pc))
			if v == nil {
				return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
			}
			v.IncRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// super access
		// -------------------------------------------------------------------

		case OpGetSuper:
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				m.resetNameIfObject()
				return nil, err
			}
			v := c.superProperty(obj, m.Name)
			obj.DecRef()
			m.resetNameIfObject()
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpSetSuper:
			value, err := c.pop()
			if err != nil {
				return nil, err
			}
			m, err := c.getMultiname(u32At(code, pc))
			if err != nil {
				value.DecRef()
				return nil, err
			}
			obj, err := c.pop()
			if err != nil {
				value.DecRef()
				m.resetNameIfObject()
				return nil, err
			}
			err = c.setPropertyOn(obj, m, value)
			obj.DecRef()
			m.resetNameIfObject()
			if err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Iteration
		// -------------------------------------------------------------------

		case OpHasNext:
			cur, obj, err := c.popPair()
			if err != nil {
				return nil, err
			}
			idx := nextNameIndex(obj, cur.ToUInt())
			cur.DecRef()
			obj.DecRef()
			if err := c.push(sys.BoxInt(int32(idx))); err != nil {
				return nil, err
			}

		case OpHasNext2:
			objLocal := int(u32At(code, pc))
			idxLocal := int(u32At(code, pc+4))
			obj := c.getLocal(objLocal)
			curV := c.getLocal(idxLocal)
			idx := nextNameIndex(obj, curV.ToUInt())
			curV.DecRef()
			c.setLocal(idxLocal, sys.BoxInt(int32(idx)))
			if idx == 0 {
				c.setLocal(objLocal, sys.Null())
			}
			obj.DecRef()
			if err := c.push(sys.BoxBool(idx != 0)); err != nil {
				return nil, err
			}

		case OpNextName:
			idxV, obj, err := c.popPair()
			if err != nil {
				return nil, err
			}
			v := nextName(sys, obj, idxV.ToUInt())
			idxV.DecRef()
			obj.DecRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		case OpNextValue:
			idxV, obj, err := c.popPair()
			if err != nil {
				return nil, err
			}
			v := nextValue(sys, obj, idxV.ToUInt())
			idxV.DecRef()
			obj.DecRef()
			if err := c.push(v); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Alchemy memory access
		// -------------------------------------------------------------------

		case OpLi8, OpLi16, OpLi32, OpLf32, OpLf64:
			addrV, err := c.pop()
			if err != nil {
				return nil, err
			}
			addr := addrV.ToUInt()
			addrV.DecRef()
			dom := c.abc.Domain
			var res Value
			switch op {
			case OpLi8:
				u, lerr := dom.loadU8(addr)
				if lerr != nil {
					return nil, lerr
				}
				res = sys.BoxInt(int32(u))
			case OpLi16:
				u, lerr := dom.loadU16(addr)
				if lerr != nil {
					return nil, lerr
				}
				res = sys.BoxInt(int32(u))
			case OpLi32:
				u, lerr := dom.loadU32(addr)
				if lerr != nil {
					return nil, lerr
				}
				res = sys.BoxInt(int32(u))
			case OpLf32:
				f, lerr := dom.loadF32(addr)
				if lerr != nil {
					return nil, lerr
				}
				res = sys.BoxNumber(float64(f))
			default:
				f, lerr := dom.loadF64(addr)
				if lerr != nil {
					return nil, lerr
				}
				res = sys.BoxNumber(f)
			}
			if err := c.push(res); err != nil {
				return nil, err
			}

		case OpSi8, OpSi16, OpSi32, OpSf32, OpSf64:
			addrV, valV, err := c.popPair()
			if err != nil {
				return nil, err
			}
			addr := addrV.ToUInt()
			addrV.DecRef()
			dom := c.abc.Domain
			var serr error
			switch op {
			case OpSi8:
				serr = dom.storeU8(addr, uint8(valV.ToInt()))
			case OpSi16:
				serr = dom.storeU16(addr, uint16(valV.ToInt()))
			case OpSi32:
				serr = dom.storeU32(addr, uint32(valV.ToInt()))
			case OpSf32:
				serr = dom.storeF32(addr, float32(valV.ToNumber()))
			default:
				serr = dom.storeF64(addr, valV.ToNumber())
			}
			valV.DecRef()
			if serr != nil {
				return nil, serr
			}

		case OpSxi1, OpSxi8, OpSxi16:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			u := v.ToUInt()
			v.DecRef()
			var r int32
			switch op {
			case OpSxi1:
				r = int32(u<<31) >> 31
			case OpSxi8:
				r = int32(int8(u))
			default:
				r = int32(int16(u))
			}
			if err := c.push(sys.BoxInt(r)); err != nil {
				return nil, err
			}

		// -------------------------------------------------------------------
		// Exceptions
		// -------------------------------------------------------------------

		case OpThrow:
			v, err := c.pop()
			if err != nil {
				return nil, err
			}
			return nil, &ThrownValue{Val: v}

		default:
			return nil, &ParseError{Opcode: byte(op), Offset: c.execPos}
		}

		pc = next
	}
}

// coerceTop replaces the top of stack with its coercion to t. A nil type is
// the any-type and leaves the value untouched.
func (c *CallContext) coerceTop(t Type) error {
	if t == nil {
		return nil
	}
	v, err := c.pop()
	if err != nil {
		return err
	}
	coerced, err := t.Coerce(c.sys, v)
	v.DecRef()
	if err != nil {
		return err
	}
	return c.push(coerced)
}

// binaryBranchTaken evaluates the condition of a two-operand branch.
func (c *CallContext) binaryBranchTaken(op Opcode, lhs, rhs Value) bool {
	sys := c.sys
	switch op {
	case OpIfEq:
		return sys.abstractEquals(lhs, rhs)
	case OpIfNe:
		return !sys.abstractEquals(lhs, rhs)
	case OpIfStrictEq:
		return strictEquals(lhs, rhs)
	case OpIfStrictNe:
		return !strictEquals(lhs, rhs)
	case OpIfLt:
		return sys.abstractLess(lhs, rhs) == cmpTrue
	case OpIfNlt:
		return sys.abstractLess(lhs, rhs) != cmpTrue
	case OpIfGt:
		return sys.abstractLess(rhs, lhs) == cmpTrue
	case OpIfNgt:
		return sys.abstractLess(rhs, lhs) != cmpTrue
	case OpIfLe:
		return sys.abstractLess(rhs, lhs) == cmpFalse
	case OpIfNle:
		return sys.abstractLess(rhs, lhs) != cmpFalse
	case OpIfGe:
		return sys.abstractLess(lhs, rhs) == cmpFalse
	case OpIfNge:
		return sys.abstractLess(lhs, rhs) != cmpFalse
	}
	return false
}

// resolveType maps a multiname to its Type: builtins by name, everything
// else through the application domain. A nil result with nil error is the
// any-type.
func (c *CallContext) resolveType(m *Multiname) (Type, error) {
	sys := c.sys
	switch m.Name {
	case "", "*":
		return nil, nil
	case "int":
		return sys.IntClass, nil
	case "uint":
		return sys.UIntClass, nil
	case "Number":
		return sys.NumberClass, nil
	case "Boolean":
		return sys.BooleanClass, nil
	case "String":
		return sys.StringClass, nil
	case "Object":
		return sys.ObjectClass, nil
	case "Array":
		return sys.ArrayClass, nil
	case "Function":
		return sys.FunctionClass, nil
	case "Class":
		return sys.ClassClass, nil
	case "Namespace":
		return sys.NamespaceClass, nil
	}
	if v, ok := c.abc.Domain.getDefinition(m.Name); ok {
		if cls, isClass := v.(*Class); isClass {
			cls.DecRef()
			return cls, nil
		}
		v.DecRef()
	}
	return nil, &ASError{
		Class:   ErrVerifyError,
		Kind:    KClassNotFoundError,
		Message: "class " + m.Name + " could not be found",
	}
}

// superProperty resolves name against the superclass chain of obj's class.
// The result carries a fresh reference; misses read as Undefined.
func (c *CallContext) superProperty(obj Value, name string) Value {
	cls := c.sys.classOf(obj)
	if cls == nil || cls.Super == nil {
		return c.sys.Undefined()
	}
	for k := cls.Super; k != nil; k = k.Super {
		if v, ok := k.prototype.dynamic[name]; ok {
			v.IncRef()
			return v
		}
	}
	// Fall back to the regular lookup so inherited slots still resolve.
	if o, ok := obj.(*Object); ok {
		return o.getProperty(c.sys, name)
	}
	return c.sys.Undefined()
}

// pushResult pushes a call's return value, substituting Undefined for void.
func (c *CallContext) pushResult(ret Value) error {
	if ret == nil {
		ret = c.sys.Undefined()
	}
	return c.push(ret)
}

// popPair pops the top two values: first the top of stack, then the one
// beneath it.
func (c *CallContext) popPair() (top, under Value, err error) {
	top, err = c.pop()
	if err != nil {
		return nil, nil, err
	}
	under, err = c.pop()
	if err != nil {
		top.DecRef()
		return nil, nil, err
	}
	return top, under, nil
}

// slotReceiver narrows a value to an Object for slot access.
func slotReceiver(v Value) (*Object, error) {
	switch v.Type() {
	case TObject:
		return v.(*Object), nil
	case TNull:
		return nil, throwTypeError(KConvertNullToObjectError,
			"cannot access a slot of a null object reference")
	case TUndefined:
		return nil, throwTypeError(KConvertUndefinedToObjectError,
			"cannot access a slot of an undefined object reference")
	}
	return nil, throwTypeError(KCheckTypeFailedError, "value has no slots")
}

func decRefAll(vs []Value) {
	for _, v := range vs {
		v.DecRef()
	}
}

func u32At(code []byte, pos uint32) uint32 {
	return binary.LittleEndian.Uint32(code[pos:])
}

func f64At(code []byte, pos uint32) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[pos:]))
}
