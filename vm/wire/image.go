// Package wire implements the serialized program image a VM instance loads
// before executing anything: constant pool, method bodies, and class
// definitions, encoded as canonical CBOR.
package wire

import (
	"fmt"

	"github.com/kestrelvm/kestrel/vm"
)

// ImageVersion is the current wire format version. Loaders reject anything
// newer.
const ImageVersion = 1

// Image is a complete serialized program.
type Image struct {
	Version uint32     `cbor:"1,keyasint"`
	Pool    Pool       `cbor:"2,keyasint"`
	Methods []Method   `cbor:"3,keyasint"`
	Classes []ClassDef `cbor:"4,keyasint,omitempty"`

	// Entry indexes Methods; the entry method runs with the global object
	// as its receiver.
	Entry uint32 `cbor:"5,keyasint"`
}

// Pool mirrors the constant pool tables. Index 0 of every table is the
// empty entry.
type Pool struct {
	Ints       []int32     `cbor:"1,keyasint,omitempty"`
	UInts      []uint32    `cbor:"2,keyasint,omitempty"`
	Doubles    []float64   `cbor:"3,keyasint,omitempty"`
	Strings    []string    `cbor:"4,keyasint,omitempty"`
	Namespaces []Namespace `cbor:"5,keyasint,omitempty"`
	NsSets     [][]uint32  `cbor:"6,keyasint,omitempty"`
	Multinames []Multiname `cbor:"7,keyasint,omitempty"`
}

// Namespace is one constant-pool namespace record.
type Namespace struct {
	Kind uint8  `cbor:"1,keyasint"`
	URI  string `cbor:"2,keyasint,omitempty"`
}

// Multiname is one constant-pool name record.
type Multiname struct {
	Kind       uint8  `cbor:"1,keyasint"`
	NameIndex  uint32 `cbor:"2,keyasint,omitempty"`
	NsIndex    uint32 `cbor:"3,keyasint,omitempty"`
	NsSetIndex uint32 `cbor:"4,keyasint,omitempty"`
}

// Handler is one exception handler row.
type Handler struct {
	From     uint32 `cbor:"1,keyasint"`
	To       uint32 `cbor:"2,keyasint"`
	Target   uint32 `cbor:"3,keyasint"`
	TypeName string `cbor:"4,keyasint,omitempty"`
	VarName  string `cbor:"5,keyasint,omitempty"`
}

// Method is one serialized method body.
type Method struct {
	Name           string    `cbor:"1,keyasint,omitempty"`
	ParamCount     uint32    `cbor:"2,keyasint"`
	NeedsRest      bool      `cbor:"3,keyasint,omitempty"`
	Code           []byte    `cbor:"4,keyasint"`
	MaxStack       uint32    `cbor:"5,keyasint"`
	LocalCount     uint32    `cbor:"6,keyasint"`
	InitScopeDepth uint32    `cbor:"7,keyasint"`
	MaxScopeDepth  uint32    `cbor:"8,keyasint"`
	Handlers       []Handler `cbor:"9,keyasint,omitempty"`
}

// TraitDef declares one typed instance slot.
type TraitDef struct {
	Name     string `cbor:"1,keyasint"`
	SlotID   uint32 `cbor:"2,keyasint,omitempty"`
	TypeName string `cbor:"3,keyasint,omitempty"`
}

// ClassDef is one serialized class. SuperName resolves against classes
// defined earlier in the image first, then builtins.
type ClassDef struct {
	Name        string     `cbor:"1,keyasint"`
	SuperName   string     `cbor:"2,keyasint,omitempty"`
	Traits      []TraitDef `cbor:"3,keyasint,omitempty"`
	Constructor int32      `cbor:"4,keyasint"` // Methods index, -1 for none
}

// Build materializes the image into an execution context on the given
// domain. Classes are registered as domain definitions so getlex and
// findpropstrict resolve them.
func Build(sys *vm.SystemState, domain *vm.ApplicationDomain, img *Image) (*vm.ABCContext, error) {
	if img.Version > ImageVersion {
		return nil, fmt.Errorf("wire: unsupported image version %d", img.Version)
	}

	pool := &vm.ConstantPool{
		Ints:    img.Pool.Ints,
		UInts:   img.Pool.UInts,
		Doubles: img.Pool.Doubles,
		Strings: img.Pool.Strings,
		NsSets:  img.Pool.NsSets,
	}
	for _, ns := range img.Pool.Namespaces {
		pool.Namespaces = append(pool.Namespaces, vm.NamespaceEntry{
			Kind: vm.NamespaceKind(ns.Kind),
			URI:  ns.URI,
		})
	}
	for _, m := range img.Pool.Multinames {
		pool.Multinames = append(pool.Multinames, vm.MultinameEntry{
			Kind:       vm.MultinameKind(m.Kind),
			NameIndex:  m.NameIndex,
			NsIndex:    m.NsIndex,
			NsSetIndex: m.NsSetIndex,
		})
	}

	ctx := vm.NewABCContext(sys, pool, domain)

	for i, m := range img.Methods {
		if len(m.Code) == 0 {
			return nil, fmt.Errorf("wire: method %d (%s) has no code", i, m.Name)
		}
		body := &vm.MethodBody{
			Code:           m.Code,
			MaxStack:       int(m.MaxStack),
			LocalCount:     int(m.LocalCount),
			InitScopeDepth: int(m.InitScopeDepth),
			MaxScopeDepth:  int(m.MaxScopeDepth),
		}
		if body.LocalCount < int(m.ParamCount)+1 {
			body.LocalCount = int(m.ParamCount) + 1
		}
		for _, h := range m.Handlers {
			body.Exceptions = append(body.Exceptions, vm.ExceptionHandler{
				From:     h.From,
				To:       h.To,
				Target:   h.Target,
				TypeName: h.TypeName,
				VarName:  h.VarName,
			})
		}
		ctx.Methods = append(ctx.Methods, &vm.MethodInfo{
			Name:       m.Name,
			ParamCount: int(m.ParamCount),
			NeedsRest:  m.NeedsRest,
			Context:    ctx,
			Body:       body,
		})
	}

	byName := make(map[string]*vm.Class, len(img.Classes))
	resolve := func(name string) *vm.Class {
		if name == "" {
			return nil
		}
		if cls, ok := byName[name]; ok {
			return cls
		}
		return sys.BuiltinClass(name)
	}

	for _, cd := range img.Classes {
		super := resolve(cd.SuperName)
		if cd.SuperName != "" && super == nil {
			return nil, fmt.Errorf("wire: class %s extends unknown class %s", cd.Name, cd.SuperName)
		}
		if super == nil {
			super = sys.ObjectClass
		}
		var traits []vm.Trait
		for _, t := range cd.Traits {
			tt := resolve(t.TypeName)
			if t.TypeName != "" && t.TypeName != "*" && tt == nil {
				return nil, fmt.Errorf("wire: class %s trait %s has unknown type %s", cd.Name, t.Name, t.TypeName)
			}
			traits = append(traits, vm.Trait{Name: t.Name, SlotID: t.SlotID, Type: tt})
		}
		var ctor *vm.MethodInfo
		if cd.Constructor >= 0 {
			if int(cd.Constructor) >= len(ctx.Methods) {
				return nil, fmt.Errorf("wire: class %s constructor index %d out of range", cd.Name, cd.Constructor)
			}
			ctor = ctx.Methods[cd.Constructor]
		}
		cls := vm.NewClass(sys, cd.Name, super, traits, ctor)
		byName[cd.Name] = cls
		ctx.Classes = append(ctx.Classes, cls)
		cls.IncRef()
		domain.RegisterGlobal(cd.Name, cls)
	}

	if int(img.Entry) >= len(ctx.Methods) {
		return nil, fmt.Errorf("wire: entry index %d out of range", img.Entry)
	}
	return ctx, nil
}

// EntryMethod returns the method the image designates as its entry point.
func EntryMethod(ctx *vm.ABCContext, img *Image) *vm.MethodInfo {
	return ctx.Methods[img.Entry]
}
