package vm

// MultinameKind mirrors the ABC constant kind byte for name entries.
type MultinameKind uint8

const (
	MKQName       MultinameKind = 0x07
	MKMultiname   MultinameKind = 0x09
	MKQNameA      MultinameKind = 0x0D
	MKMultinameA  MultinameKind = 0x0E
	MKRTQName     MultinameKind = 0x0F
	MKRTQNameA    MultinameKind = 0x10
	MKRTQNameL    MultinameKind = 0x11
	MKRTQNameLA   MultinameKind = 0x12
	MKMultinameL  MultinameKind = 0x1B
	MKMultinameLA MultinameKind = 0x1C
)

// hasRuntimeName reports whether the name component comes off the operand
// stack at each use site.
func (k MultinameKind) hasRuntimeName() bool {
	switch k {
	case MKRTQNameL, MKRTQNameLA, MKMultinameL, MKMultinameLA:
		return true
	}
	return false
}

// hasRuntimeNamespace reports whether the namespace component comes off the
// operand stack.
func (k MultinameKind) hasRuntimeNamespace() bool {
	switch k {
	case MKRTQName, MKRTQNameA, MKRTQNameL, MKRTQNameLA:
		return true
	}
	return false
}

// NamespaceEntry is a constant-pool namespace.
type NamespaceEntry struct {
	Kind NamespaceKind
	URI  string
}

// MultinameEntry is a constant-pool name record. Which index fields are
// meaningful depends on Kind; index 0 means "absent" throughout, per ABC.
type MultinameEntry struct {
	Kind       MultinameKind
	NameIndex  uint32
	NsIndex    uint32
	NsSetIndex uint32
}

// ConstantPool holds the per-ABC literal tables. Index 0 of every table is
// the ABC "empty" entry and reads as the zero value.
type ConstantPool struct {
	Ints       []int32
	UInts      []uint32
	Doubles    []float64
	Strings    []string
	Namespaces []NamespaceEntry
	NsSets     [][]uint32
	Multinames []MultinameEntry
}

func (p *ConstantPool) IntAt(i uint32) int32 {
	if int(i) >= len(p.Ints) {
		return 0
	}
	return p.Ints[i]
}

func (p *ConstantPool) UIntAt(i uint32) uint32 {
	if int(i) >= len(p.UInts) {
		return 0
	}
	return p.UInts[i]
}

func (p *ConstantPool) DoubleAt(i uint32) float64 {
	if int(i) >= len(p.Doubles) {
		return 0
	}
	return p.Doubles[i]
}

func (p *ConstantPool) StringAt(i uint32) string {
	if int(i) >= len(p.Strings) {
		return ""
	}
	return p.Strings[i]
}

func (p *ConstantPool) NamespaceAt(i uint32) NamespaceEntry {
	if int(i) >= len(p.Namespaces) {
		return NamespaceEntry{}
	}
	return p.Namespaces[i]
}

func (p *ConstantPool) MultinameAt(i uint32) (MultinameEntry, bool) {
	if i == 0 || int(i) >= len(p.Multinames) {
		return MultinameEntry{}, false
	}
	return p.Multinames[i], true
}
