package vm

// Multiname is the resolved form of a constant-pool name record at one use
// site. When the name component came off the operand stack as an object,
// NameValue holds the transient reference; every opcode that consumed the
// multiname must call resetNameIfObject afterwards to release it.
type Multiname struct {
	Kind       MultinameKind
	Name       string
	NameValue  Value
	Namespaces []string
	Attribute  bool
}

// resetNameIfObject releases the runtime name component, if any.
func (m *Multiname) resetNameIfObject() {
	if m.NameValue != nil {
		m.NameValue.DecRef()
		m.NameValue = nil
	}
}

// getMultiname materializes pool entry index into the context's scratch
// multiname, popping runtime name/namespace components off the operand
// stack as the entry's kind demands.
func (c *CallContext) getMultiname(index uint32) (*Multiname, error) {
	entry, ok := c.abc.Pool.MultinameAt(index)
	if !ok {
		return nil, throwReferenceError(KUndefinedVarError, "invalid multiname index")
	}
	m := &c.scratchName
	m.Kind = entry.Kind
	m.Name = ""
	m.NameValue = nil
	m.Namespaces = m.Namespaces[:0]
	m.Attribute = false

	switch entry.Kind {
	case MKQNameA, MKMultinameA, MKRTQNameA, MKRTQNameLA, MKMultinameLA:
		m.Attribute = true
	}

	// The name comes before the namespace on the stack for the L kinds.
	if entry.Kind.hasRuntimeName() {
		v, err := c.pop()
		if err != nil {
			return nil, err
		}
		m.Name = v.ToStr()
		if isObjectLike(v) {
			m.NameValue = v
		} else {
			v.DecRef()
		}
	} else {
		m.Name = c.abc.Pool.StringAt(entry.NameIndex)
	}

	if entry.Kind.hasRuntimeNamespace() {
		v, err := c.pop()
		if err != nil {
			return nil, err
		}
		m.Namespaces = append(m.Namespaces, v.ToStr())
		v.DecRef()
	} else {
		switch entry.Kind {
		case MKQName, MKQNameA:
			m.Namespaces = append(m.Namespaces, c.abc.Pool.NamespaceAt(entry.NsIndex).URI)
		case MKMultiname, MKMultinameA, MKMultinameL, MKMultinameLA:
			if int(entry.NsSetIndex) < len(c.abc.Pool.NsSets) {
				for _, nsi := range c.abc.Pool.NsSets[entry.NsSetIndex] {
					m.Namespaces = append(m.Namespaces, c.abc.Pool.NamespaceAt(nsi).URI)
				}
			}
		}
	}
	return m, nil
}

// getPropertyOn resolves m on any receiver kind, routing to the tagged
// accessor. Missing properties read as Undefined; nullish receivers fail
// with the convert errors the property opcodes surface.
func (c *CallContext) getPropertyOn(obj Value, m *Multiname) (Value, error) {
	switch obj.Type() {
	case TNull:
		return nil, throwTypeError(KConvertNullToObjectError,
			"cannot access a property or method of a null object reference")
	case TUndefined:
		return nil, throwTypeError(KConvertUndefinedToObjectError,
			"cannot access a property or method of an undefined object reference")
	case TObject:
		return obj.(*Object).getProperty(c.sys, m.Name), nil
	case TArray:
		return obj.(*Array).getProperty(c.sys, m.Name), nil
	case TClass:
		cls := obj.(*Class)
		if v, ok := cls.prototype.dynamic[m.Name]; ok {
			v.IncRef()
			return v, nil
		}
		if m.Name == "prototype" {
			cls.prototype.IncRef()
			return cls.prototype, nil
		}
		return c.sys.Undefined(), nil
	case TString:
		if m.Name == "length" {
			return c.sys.BoxInt(int32(len(obj.ToStr()))), nil
		}
	}
	return c.sys.Undefined(), nil
}

// setPropertyOn stores v under m on any receiver kind, consuming the
// caller's reference to v.
func (c *CallContext) setPropertyOn(obj Value, m *Multiname, v Value) error {
	switch obj.Type() {
	case TNull:
		v.DecRef()
		return throwTypeError(KConvertNullToObjectError,
			"cannot access a property or method of a null object reference")
	case TUndefined:
		v.DecRef()
		return throwTypeError(KConvertUndefinedToObjectError,
			"cannot access a property or method of an undefined object reference")
	case TObject:
		return obj.(*Object).setProperty(c.sys, m.Name, v)
	case TArray:
		obj.(*Array).setProperty(m.Name, v)
		return nil
	case TClass:
		obj.(*Class).prototype.setDynamicVar(m.Name, v)
		return nil
	}
	v.DecRef()
	return nil
}
