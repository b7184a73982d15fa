// Kestrel CLI - runs and inspects serialized program images.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/kestrelvm/kestrel/manifest"
	"github.com/kestrelvm/kestrel/vm"
	"github.com/kestrelvm/kestrel/vm/wire"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	imagePath := flag.String("image", "", "Program image path (overrides kestrel.toml)")
	disasm := flag.Bool("disasm", false, "Print a listing of the image instead of running it")
	memSize := flag.Int("memory", 0, "Application domain memory size in bytes")
	verbosity := flag.Int("v", 0, "Log verbosity")
	profileDB := flag.String("profile-db", "", "Record profiling data to this SQLite database")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kestrel [options]\n\n")
		fmt.Fprintf(os.Stderr, "Executes a program image, resolving the image path from the -image\n")
		fmt.Fprintf(os.Stderr, "flag or the nearest kestrel.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kestrel -image program.kimg            # Run an image\n")
		fmt.Fprintf(os.Stderr, "  kestrel                                # Image path from kestrel.toml\n")
		fmt.Fprintf(os.Stderr, "  kestrel -disasm -image program.kimg    # Print a listing\n")
		fmt.Fprintf(os.Stderr, "  kestrel -profile-db runs.db            # Record a profiling run\n")
	}
	flag.Parse()

	m, path, code := locateImage(*imagePath)
	if code != 0 {
		os.Exit(code)
	}
	if m != nil {
		if *memSize == 0 {
			*memSize = m.Runtime.MemorySize
		}
		if *verbosity == 0 {
			*verbosity = m.Runtime.Verbosity
		}
		if *profileDB == "" {
			*profileDB = m.ProfileDBPath()
		}
	}
	commonlog.Configure(*verbosity, nil)

	img, code := loadImage(path)
	if code != 0 {
		os.Exit(code)
	}

	if *disasm {
		os.Exit(runDisasm(img))
	}
	os.Exit(runImage(img, *memSize, *profileDB, path))
}

func runImage(img *wire.Image, memSize int, profileDB, path string) int {
	sys := vm.NewSystemState()
	if profileDB != "" {
		sys.Profiler = vm.NewProfiler()
	}
	domain := vm.NewApplicationDomain(sys, nil, memSize)

	ctx, err := wire.Build(sys, domain, img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}

	ret, err := vm.Execute(wire.EntryMethod(ctx, img), domain.Global(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}
	if ret != nil {
		fmt.Println(ret.ToStr())
		ret.DecRef()
	}

	if profileDB != "" {
		if err := saveProfile(profileDB, path, sys.Profiler); err != nil {
			fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
			return 1
		}
	}
	return 0
}

func runDisasm(img *wire.Image) int {
	sys := vm.NewSystemState()
	domain := vm.NewApplicationDomain(sys, nil, 0)
	ctx, err := wire.Build(sys, domain, img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return 1
	}

	for _, mi := range ctx.Methods {
		fmt.Print(vm.Disassemble(mi))
		fmt.Println()
	}
	return 0
}

// locateImage resolves the image path from the -image flag or the nearest
// kestrel.toml. The manifest is nil when the flag was explicit.
func locateImage(flagPath string) (*manifest.Manifest, string, int) {
	if flagPath != "" {
		return nil, flagPath, 0
	}
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return nil, "", 1
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return nil, "", 1
	}
	if m == nil {
		fmt.Fprintf(os.Stderr, "kestrel: no -image given and no kestrel.toml found\n")
		return nil, "", 2
	}
	return m, m.ImagePath(), 0
}

func loadImage(path string) (*wire.Image, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return nil, 1
	}
	img, err := wire.UnmarshalImage(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		return nil, 1
	}
	return img, 0
}

func saveProfile(dbPath, program string, p *vm.Profiler) error {
	store, err := vm.OpenProfileStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.SaveRun(program, p.Report())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "profile saved as %s\n", runID)
	return nil
}
