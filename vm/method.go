package vm

import "encoding/binary"

// ExceptionHandler is one row of a method's handler table. From/To bound
// the covered byte range as [From, To); Target is the absolute resume
// offset. An empty TypeName catches everything.
type ExceptionHandler struct {
	From     uint32
	To       uint32
	Target   uint32
	TypeName string
	VarName  string
}

// covers reports whether the handler's range includes pos.
func (h *ExceptionHandler) covers(pos uint32) bool {
	return pos >= h.From && pos < h.To
}

// MethodInfo is the static descriptor of one method.
type MethodInfo struct {
	Name       string
	ParamCount int
	NeedsRest  bool
	Context    *ABCContext
	Body       *MethodBody
}

// MethodBody holds the mutable code array and execution limits. Code is
// rewritten in place by the one-shot specializing opcodes; the resolved
// pointers live in the side tables below, keyed by the u32 written into the
// operand bytes.
type MethodBody struct {
	Code           []byte
	MaxStack       int
	LocalCount     int
	InitScopeDepth int
	MaxScopeDepth  int
	Exceptions     []ExceptionHandler

	cachedTypes  []Type
	cachedValues []Value

	// Profiling counters. CallCount is bumped on every invocation; OpCounts
	// is maintained only while a Profiler is attached to the system state.
	CallCount uint64
	OpCounts  map[Opcode]uint64
}

// cacheType interns t and returns its side-table key.
func (b *MethodBody) cacheType(t Type) uint32 {
	b.cachedTypes = append(b.cachedTypes, t)
	return uint32(len(b.cachedTypes) - 1)
}

// cachedType returns the interned Type for key.
func (b *MethodBody) cachedType(key uint32) Type {
	if int(key) >= len(b.cachedTypes) {
		return nil
	}
	return b.cachedTypes[key]
}

// cacheValue interns v, taking one reference, and returns its key.
func (b *MethodBody) cacheValue(v Value) uint32 {
	v.IncRef()
	b.cachedValues = append(b.cachedValues, v)
	return uint32(len(b.cachedValues) - 1)
}

// cachedValue returns the interned Value for key, without a new reference.
func (b *MethodBody) cachedValue(key uint32) Value {
	if int(key) >= len(b.cachedValues) {
		return nil
	}
	return b.cachedValues[key]
}

// rewrite replaces the opcode byte at offset and stores key into the first
// four operand bytes. The remaining four of the reserved eight are cleared
// so a later disassembly is unambiguous.
func (b *MethodBody) rewrite(offset uint32, op Opcode, key uint32) {
	b.Code[offset] = byte(op)
	binary.LittleEndian.PutUint32(b.Code[offset+1:], key)
	binary.LittleEndian.PutUint32(b.Code[offset+5:], 0)
}

// countOp bumps the per-opcode profile counter.
func (b *MethodBody) countOp(op Opcode) {
	if b.OpCounts == nil {
		b.OpCounts = make(map[Opcode]uint64)
	}
	b.OpCounts[op]++
}

// ABCContext binds a constant pool, its methods and classes, and the
// application domain they resolve against.
type ABCContext struct {
	Sys     *SystemState
	Pool    *ConstantPool
	Methods []*MethodInfo
	Classes []*Class
	Domain  *ApplicationDomain
}

// NewABCContext wires an empty context for the given domain.
func NewABCContext(sys *SystemState, pool *ConstantPool, domain *ApplicationDomain) *ABCContext {
	if pool == nil {
		pool = &ConstantPool{}
	}
	return &ABCContext{Sys: sys, Pool: pool, Domain: domain}
}
