package vm

import "errors"

// Execute runs mi with the given receiver and arguments. Ownership of one
// reference per argument transfers to the callee; the returned value carries
// one reference owned by the caller. A nil return with a nil error means the
// method returned void.
func Execute(mi *MethodInfo, this Value, args []Value) (Value, error) {
	return executeWithScope(mi, this, args, nil)
}

// executeWithScope is Execute plus an explicit captured scope chain, used
// when invoking closures and super constructors. It owns exception handler
// dispatch: catchable failures from the dispatch loop are matched against
// the method's handler table and resumed in the same context.
func executeWithScope(mi *MethodInfo, this Value, args []Value, parentScope *ScopeChain) (Value, error) {
	if mi == nil || mi.Body == nil {
		decRefAll(args)
		return nil, throwTypeError(KCallOfNonFunctionError, "value is not a function")
	}
	body := mi.Body
	body.CallCount++
	sys := mi.Context.Sys
	if sys.Profiler != nil {
		sys.Profiler.observe(mi)
	}

	c := newCallContext(mi, this, args, parentScope)
	defer c.teardown()

	pc := uint32(0)
	for {
		ret, err := c.run(pc)
		if err == nil {
			return ret, nil
		}
		h, boxed := c.matchHandler(err)
		if h == nil {
			return nil, err
		}
		log.Debugf("handler at %06d catches %v", h.Target, err)
		c.clearStack()
		if perr := c.push(boxed); perr != nil {
			return nil, perr
		}
		pc = h.Target
	}
}

// matchHandler scans the handler table for one that covers the faulting
// instruction and accepts the thrown value's type. On a match it returns the
// handler and the value to push, carrying one reference for the stack.
// ParseError and StackError never match.
func (c *CallContext) matchHandler(err error) (*ExceptionHandler, Value) {
	var as *ASError
	var tv *ThrownValue
	var cls *Class
	switch {
	case errors.As(err, &as):
		cls = c.sys.ErrorClassFor(as.Class)
	case errors.As(err, &tv):
		cls = c.sys.classOf(tv.Val)
	default:
		return nil, nil
	}
	for i := range c.mi.Body.Exceptions {
		h := &c.mi.Body.Exceptions[i]
		if !h.covers(c.execPos) || !handlerAccepts(h.TypeName, cls) {
			continue
		}
		if as != nil {
			return h, as.Value(c.sys)
		}
		// The thrown value's reference transfers to the stack.
		return h, tv.Val
	}
	return nil, nil
}

// handlerAccepts reports whether a handler typed typeName catches a value of
// class cls. The empty name and "*" are catch-alls.
func handlerAccepts(typeName string, cls *Class) bool {
	if typeName == "" || typeName == "*" {
		return true
	}
	for k := cls; k != nil; k = k.Super {
		if k.Name == typeName {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Value invocation
// ---------------------------------------------------------------------------

// callValue invokes fn with the given receiver. Argument references transfer
// to the invocation; fn and this stay owned by the caller. Calling a Class
// performs the explicit coercion form Class(x).
func (c *CallContext) callValue(fn, this Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case *SyntheticFunction:
		return executeWithScope(f.Method, this, args, f.Closure)
	case *NativeFunction:
		ret, err := f.Fn(c.sys, this, args)
		decRefAll(args)
		return ret, err
	case *Class:
		if len(args) != 1 {
			decRefAll(args)
			return nil, throwTypeError(KWrongArgumentCountError,
				"coercion to "+f.Name+" takes exactly one argument")
		}
		out, err := f.Coerce(c.sys, args[0])
		args[0].DecRef()
		return out, err
	}
	decRefAll(args)
	return nil, throwTypeError(KCallOfNonFunctionError,
		"value is not a function")
}

// constructValue instantiates t with args. Argument references transfer to
// the constructor; t stays owned by the caller. The result carries one
// reference.
func (c *CallContext) constructValue(t Value, args []Value) (Value, error) {
	switch k := t.(type) {
	case *Class:
		if k.construct != nil {
			ret, err := k.construct(c.sys, args)
			decRefAll(args)
			return ret, err
		}
		obj := NewObject(k)
		if k.Constructor != nil {
			ret, err := executeWithScope(k.Constructor, obj, args, nil)
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
		return obj, nil
	case *SyntheticFunction:
		obj := NewObject(c.sys.ObjectClass)
		ret, err := executeWithScope(k.Method, obj, args, k.Closure)
		if err != nil {
			obj.DecRef()
			return nil, err
		}
		if ret != nil {
			ret.DecRef()
		}
		return obj, nil
	case *NativeFunction:
		u := c.sys.Undefined()
		ret, err := k.Fn(c.sys, u, args)
		u.DecRef()
		decRefAll(args)
		if err != nil {
			return nil, err
		}
		if ret == nil {
			return NewObject(c.sys.ObjectClass), nil
		}
		return ret, nil
	}
	decRefAll(args)
	return nil, throwTypeError(KConstructOfNonFunctionError,
		"cannot construct a non-function value")
}
