package vm

import (
	"encoding/binary"
	"math"
)

// MinDomainMemory is the smallest alchemy buffer a domain carries; the
// loads and stores assume at least this much is addressable.
const MinDomainMemory = 1024

// ApplicationDomain holds the global definitions visible to a set of ABC
// contexts plus the flat byte buffer addressed by the alchemy opcodes.
// Definition lookup delegates to the parent domain first, mirroring the
// player's domain hierarchy.
type ApplicationDomain struct {
	sys    *SystemState
	parent *ApplicationDomain
	global *Object
	memory []byte
}

// NewApplicationDomain creates a domain with an alchemy buffer of at least
// MinDomainMemory bytes.
func NewApplicationDomain(sys *SystemState, parent *ApplicationDomain, memSize int) *ApplicationDomain {
	if memSize < MinDomainMemory {
		memSize = MinDomainMemory
	}
	return &ApplicationDomain{
		sys:    sys,
		parent: parent,
		global: NewObject(sys.ObjectClass),
		memory: make([]byte, memSize),
	}
}

// Global returns the domain's global object.
func (d *ApplicationDomain) Global() *Object { return d.global }

// RegisterGlobal installs a definition on the global object, consuming the
// caller's reference.
func (d *ApplicationDomain) RegisterGlobal(name string, v Value) {
	d.global.setDynamicVar(name, v)
}

// getDefinition resolves name in this domain chain, parent first. The
// result carries a fresh reference.
func (d *ApplicationDomain) getDefinition(name string) (Value, bool) {
	if d.parent != nil {
		if v, ok := d.parent.getDefinition(name); ok {
			return v, true
		}
	}
	if v, ok := d.global.dynamic[name]; ok {
		v.IncRef()
		return v, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Alchemy memory access
// ---------------------------------------------------------------------------

func (d *ApplicationDomain) checkRange(addr uint32, width int) error {
	if int64(addr)+int64(width) > int64(len(d.memory)) {
		return throwRangeError(KInvalidRangeError, "memory access out of range")
	}
	return nil
}

func (d *ApplicationDomain) loadU8(addr uint32) (uint8, error) {
	if err := d.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return d.memory[addr], nil
}

func (d *ApplicationDomain) loadU16(addr uint32) (uint16, error) {
	if err := d.checkRange(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.memory[addr:]), nil
}

func (d *ApplicationDomain) loadU32(addr uint32) (uint32, error) {
	if err := d.checkRange(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.memory[addr:]), nil
}

func (d *ApplicationDomain) loadF32(addr uint32) (float32, error) {
	u, err := d.loadU32(addr)
	return math.Float32frombits(u), err
}

func (d *ApplicationDomain) loadF64(addr uint32) (float64, error) {
	if err := d.checkRange(addr, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(d.memory[addr:])), nil
}

func (d *ApplicationDomain) storeU8(addr uint32, v uint8) error {
	if err := d.checkRange(addr, 1); err != nil {
		return err
	}
	d.memory[addr] = v
	return nil
}

func (d *ApplicationDomain) storeU16(addr uint32, v uint16) error {
	if err := d.checkRange(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(d.memory[addr:], v)
	return nil
}

func (d *ApplicationDomain) storeU32(addr uint32, v uint32) error {
	if err := d.checkRange(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(d.memory[addr:], v)
	return nil
}

func (d *ApplicationDomain) storeF32(addr uint32, v float32) error {
	return d.storeU32(addr, math.Float32bits(v))
}

func (d *ApplicationDomain) storeF64(addr uint32, v float64) error {
	if err := d.checkRange(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(d.memory[addr:], math.Float64bits(v))
	return nil
}
