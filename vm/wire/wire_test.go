package wire

import (
	"testing"

	"github.com/kestrelvm/kestrel/vm"
)

// testImage builds a minimal runnable image: one method that pushes two
// bytes, adds them, and returns.
func testImage() *Image {
	return &Image{
		Version: ImageVersion,
		Pool: Pool{
			Strings:    []string{""},
			Namespaces: []Namespace{{}},
			Multinames: []Multiname{{}},
		},
		Methods: []Method{{
			Name: "main",
			Code: []byte{
				byte(vm.OpPushByte), 2,
				byte(vm.OpPushByte), 3,
				byte(vm.OpAddI),
				byte(vm.OpReturnValue),
			},
			MaxStack:      4,
			LocalCount:    2,
			MaxScopeDepth: 2,
		}},
		Entry: 0,
	}
}

func buildAndRun(t *testing.T, img *Image) vm.Value {
	t.Helper()
	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	ctx, err := Build(sys, domain, img)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	ret, err := vm.Execute(EntryMethod(ctx, img), domain.Global(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return ret
}

func TestImageRoundTrip(t *testing.T) {
	img := testImage()

	data, err := MarshalImage(img)
	if err != nil {
		t.Fatalf("MarshalImage failed: %v", err)
	}
	got, err := UnmarshalImage(data)
	if err != nil {
		t.Fatalf("UnmarshalImage failed: %v", err)
	}

	if got.Version != img.Version {
		t.Errorf("Version = %d, want %d", got.Version, img.Version)
	}
	if len(got.Methods) != 1 || got.Methods[0].Name != "main" {
		t.Fatalf("methods did not survive the round trip: %+v", got.Methods)
	}
	if string(got.Methods[0].Code) != string(img.Methods[0].Code) {
		t.Errorf("method code changed across the round trip")
	}

	ret := buildAndRun(t, got)
	if ret.ToInt() != 5 {
		t.Errorf("round-tripped program returned %d, want 5", ret.ToInt())
	}
	ret.DecRef()
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := MarshalImage(testImage())
	if err != nil {
		t.Fatalf("MarshalImage failed: %v", err)
	}
	b, err := MarshalImage(testImage())
	if err != nil {
		t.Fatalf("MarshalImage failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("canonical encoding should be byte-stable")
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalImage([]byte("not cbor at all")); err == nil {
		t.Errorf("garbage input should fail to unmarshal")
	}
}

func TestBuildRejectsNewerVersion(t *testing.T) {
	img := testImage()
	img.Version = ImageVersion + 1

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	if _, err := Build(sys, domain, img); err == nil {
		t.Errorf("Build should reject a newer image version")
	}
}

func TestBuildRejectsEmptyMethod(t *testing.T) {
	img := testImage()
	img.Methods[0].Code = nil

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	if _, err := Build(sys, domain, img); err == nil {
		t.Errorf("Build should reject a method with no code")
	}
}

func TestBuildRejectsEntryOutOfRange(t *testing.T) {
	img := testImage()
	img.Entry = 7

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	if _, err := Build(sys, domain, img); err == nil {
		t.Errorf("Build should reject an out-of-range entry index")
	}
}

func TestBuildRaisesLocalCountForParams(t *testing.T) {
	img := testImage()
	img.Methods[0].ParamCount = 5
	img.Methods[0].LocalCount = 2

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	ctx, err := Build(sys, domain, img)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := ctx.Methods[0].Body.LocalCount; got != 6 {
		t.Errorf("LocalCount = %d, want 6 (params + receiver)", got)
	}
}

func TestBuildRegistersClasses(t *testing.T) {
	img := testImage()
	img.Classes = []ClassDef{{
		Name:        "Point",
		Traits:      []TraitDef{{Name: "x", SlotID: 1, TypeName: "int"}},
		Constructor: -1,
	}}

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	ctx, err := Build(sys, domain, img)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(ctx.Classes) != 1 || ctx.Classes[0].Name != "Point" {
		t.Fatalf("class did not register: %+v", ctx.Classes)
	}
	if ctx.Classes[0].Super != sys.ObjectClass {
		t.Errorf("defaulted superclass should be Object")
	}
}

func TestBuildResolvesSuperAcrossImage(t *testing.T) {
	img := testImage()
	img.Classes = []ClassDef{
		{Name: "Base", Constructor: -1},
		{Name: "Derived", SuperName: "Base", Constructor: -1},
	}

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	ctx, err := Build(sys, domain, img)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if ctx.Classes[1].Super != ctx.Classes[0] {
		t.Errorf("Derived should extend the image-defined Base")
	}
}

func TestBuildRejectsUnknownSuper(t *testing.T) {
	img := testImage()
	img.Classes = []ClassDef{{Name: "Orphan", SuperName: "NoSuchClass", Constructor: -1}}

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	if _, err := Build(sys, domain, img); err == nil {
		t.Errorf("Build should reject an unknown superclass")
	}
}

func TestBuildRejectsConstructorOutOfRange(t *testing.T) {
	img := testImage()
	img.Classes = []ClassDef{{Name: "Broken", Constructor: 9}}

	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	if _, err := Build(sys, domain, img); err == nil {
		t.Errorf("Build should reject an out-of-range constructor index")
	}
}
