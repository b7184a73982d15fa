package vm

// CallContext is the per-invocation execution state: operand stack, local
// registers, scope stack, and the instruction pointer. One context is owned
// by exactly one invocation and torn down when it returns.
type CallContext struct {
	sys *SystemState
	abc *ABCContext
	mi  *MethodInfo

	stack  []Value
	locals []Value

	scope       []ScopeEntry
	parentScope *ScopeChain

	// execPos is stored before each opcode executes so handler dispatch can
	// locate the faulting instruction.
	execPos uint32

	// argArrayPos is the local index holding the rest-argument array, or -1.
	argArrayPos int

	scratchName Multiname
}

// newCallContext builds the register file for invoking mi: locals[0] is
// this, then the declared parameters, then the rest array when the method
// wants one. One reference per argument transfers into the locals.
func newCallContext(mi *MethodInfo, this Value, args []Value, parentScope *ScopeChain) *CallContext {
	body := mi.Body
	c := &CallContext{
		sys:         mi.Context.Sys,
		abc:         mi.Context,
		mi:          mi,
		stack:       make([]Value, 0, body.MaxStack),
		locals:      make([]Value, body.LocalCount),
		scope:       make([]ScopeEntry, 0, body.MaxScopeDepth),
		parentScope: parentScope,
		argArrayPos: -1,
	}
	this.IncRef()
	c.locals[0] = this

	n := mi.ParamCount
	if n > len(args) {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		if i+1 < len(c.locals) {
			c.locals[i+1] = args[i]
		} else {
			args[i].DecRef()
		}
	}
	rest := args[n:]
	if mi.NeedsRest {
		c.argArrayPos = mi.ParamCount + 1
		restCopy := make([]Value, len(rest))
		copy(restCopy, rest)
		arr := NewArray(restCopy)
		if c.argArrayPos < len(c.locals) {
			c.locals[c.argArrayPos] = arr
		} else {
			arr.DecRef()
		}
	} else {
		for _, v := range rest {
			v.DecRef()
		}
	}
	return c
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func (c *CallContext) push(v Value) error {
	if len(c.stack) >= c.mi.Body.MaxStack {
		v.DecRef()
		return &StackError{Overflow: true, Depth: len(c.stack) + 1, Limit: c.mi.Body.MaxStack}
	}
	c.stack = append(c.stack, v)
	return nil
}

func (c *CallContext) pop() (Value, error) {
	if len(c.stack) == 0 {
		return nil, &StackError{Depth: 0, Limit: c.mi.Body.MaxStack}
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v, nil
}

func (c *CallContext) peek() (Value, error) {
	if len(c.stack) == 0 {
		return nil, &StackError{Depth: 0, Limit: c.mi.Body.MaxStack}
	}
	return c.stack[len(c.stack)-1], nil
}

// popN pops n values, first-pushed first in the result. One reference per
// value transfers to the caller.
func (c *CallContext) popN(n int) ([]Value, error) {
	if n > len(c.stack) {
		return nil, &StackError{Depth: len(c.stack) - n, Limit: c.mi.Body.MaxStack}
	}
	out := make([]Value, n)
	copy(out, c.stack[len(c.stack)-n:])
	c.stack = c.stack[:len(c.stack)-n]
	return out, nil
}

// clearStack drops every operand, as handler dispatch requires.
func (c *CallContext) clearStack() {
	for _, v := range c.stack {
		v.DecRef()
	}
	c.stack = c.stack[:0]
}

// stackDepth reports the current operand count.
func (c *CallContext) stackDepth() int { return len(c.stack) }

// ---------------------------------------------------------------------------
// Locals
// ---------------------------------------------------------------------------

// getLocal reads register i with a fresh reference; uninitialized registers
// read as Undefined.
func (c *CallContext) getLocal(i int) Value {
	if i < 0 || i >= len(c.locals) || c.locals[i] == nil {
		return c.sys.Undefined()
	}
	v := c.locals[i]
	v.IncRef()
	return v
}

// setLocal stores v in register i, consuming the caller's reference and
// dropping the previous occupant. Out-of-range stores release v.
func (c *CallContext) setLocal(i int, v Value) {
	if i < 0 || i >= len(c.locals) {
		v.DecRef()
		return
	}
	if old := c.locals[i]; old != nil {
		old.DecRef()
	}
	c.locals[i] = v
}

// ---------------------------------------------------------------------------
// Scope stack
// ---------------------------------------------------------------------------

func (c *CallContext) pushScopeEntry(v Value, isWith bool) error {
	if len(c.scope) >= c.mi.Body.MaxScopeDepth {
		v.DecRef()
		return &StackError{Overflow: true, Depth: len(c.scope) + 1, Limit: c.mi.Body.MaxScopeDepth}
	}
	c.scope = append(c.scope, ScopeEntry{Obj: v, IsWith: isWith})
	return nil
}

func (c *CallContext) popScopeEntry() error {
	if len(c.scope) == 0 {
		return &StackError{Depth: 0, Limit: c.mi.Body.MaxScopeDepth}
	}
	c.scope[len(c.scope)-1].Obj.DecRef()
	c.scope = c.scope[:len(c.scope)-1]
	return nil
}

// scopeAtIndex indexes the effective chain for getscopeatindex: parent
// entries first, then the current stack. The result carries a fresh
// reference; out of range reads as Undefined.
func (c *CallContext) scopeAtIndex(i int) Value {
	pl := c.parentScope.Len()
	if i < pl {
		v := c.parentScope.At(i).Obj
		v.IncRef()
		return v
	}
	i -= pl
	if i < len(c.scope) {
		v := c.scope[i].Obj
		v.IncRef()
		return v
	}
	return c.sys.Undefined()
}

// currentScopeAt indexes only the current stack, for getscopeobject.
func (c *CallContext) currentScopeAt(i int) Value {
	if i < 0 || i >= len(c.scope) {
		return c.sys.Undefined()
	}
	v := c.scope[i].Obj
	v.IncRef()
	return v
}

// globalScope returns the first entry of the effective chain, falling back
// to the domain global when nothing is pushed.
func (c *CallContext) globalScope() Value {
	if c.parentScope.Len() > 0 {
		v := c.parentScope.At(0).Obj
		v.IncRef()
		return v
	}
	if len(c.scope) > 0 {
		v := c.scope[0].Obj
		v.IncRef()
		return v
	}
	g := c.abc.Domain.Global()
	g.IncRef()
	return g
}

// captureScope snapshots the effective chain for a closure created here.
func (c *CallContext) captureScope() *ScopeChain {
	entries := make([]ScopeEntry, 0, c.parentScope.Len()+len(c.scope))
	for i := 0; i < c.parentScope.Len(); i++ {
		entries = append(entries, c.parentScope.At(i))
	}
	entries = append(entries, c.scope...)
	return NewScopeChain(entries)
}

// ---------------------------------------------------------------------------
// Property search
// ---------------------------------------------------------------------------

// hasPropertyOn probes one scope object for name. Lexical entries expose
// declared traits only; with-scopes and the global include dynamic state.
func hasPropertyOn(v Value, name string, considerDynamic bool) bool {
	switch v.Type() {
	case TObject:
		return v.(*Object).hasProperty(name, considerDynamic)
	case TArray:
		if !considerDynamic {
			return false
		}
		if name == "length" {
			return true
		}
		i, ok := arrayIndex(name)
		return ok && i < v.(*Array).Len()
	case TClass:
		cls := v.(*Class)
		if _, ok := cls.prototype.dynamic[name]; ok {
			return true
		}
		return cls.traitFor(name) != nil
	}
	return false
}

// findProperty walks the effective scope chain top to bottom and then the
// domain global, returning the first object that binds m with a fresh
// reference. The bool reports whether a binding was found; on false the
// returned value is the global object, which findproperty falls back to.
func (c *CallContext) findProperty(m *Multiname) (Value, bool) {
	for i := len(c.scope) - 1; i >= 0; i-- {
		e := c.scope[i]
		if hasPropertyOn(e.Obj, m.Name, e.IsWith) {
			e.Obj.IncRef()
			return e.Obj, true
		}
	}
	for i := c.parentScope.Len() - 1; i >= 0; i-- {
		e := c.parentScope.At(i)
		if hasPropertyOn(e.Obj, m.Name, e.IsWith) {
			e.Obj.IncRef()
			return e.Obj, true
		}
	}
	g := c.abc.Domain.Global()
	if hasPropertyOn(g, m.Name, true) {
		g.IncRef()
		return g, true
	}
	if v, ok := c.abc.Domain.getDefinition(m.Name); ok {
		return v, true
	}
	g.IncRef()
	return g, false
}

// teardown drops every reference the context still holds.
func (c *CallContext) teardown() {
	c.clearStack()
	for i, v := range c.locals {
		if v != nil {
			v.DecRef()
			c.locals[i] = nil
		}
	}
	for len(c.scope) > 0 {
		_ = c.popScopeEntry()
	}
	c.scratchName.resetNameIfObject()
}
