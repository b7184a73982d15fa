package vm

import (
	"path/filepath"
	"strings"
	"testing"
)

func testStore(t *testing.T) *ProfileStore {
	t.Helper()
	store, err := OpenProfileStore(filepath.Join(t.TempDir(), "profile.db"))
	if err != nil {
		t.Fatalf("OpenProfileStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveRunAssignsID(t *testing.T) {
	store := testStore(t)

	report := []MethodProfile{
		{Name: "main", CallCount: 1, OpCounts: map[Opcode]uint64{OpAddI: 3}},
	}
	runID, err := store.SaveRun("demo.kimg", report)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if !strings.HasPrefix(runID, "run_") {
		t.Errorf("run id %q should carry the run_ prefix", runID)
	}

	other, err := store.SaveRun("demo.kimg", report)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if other == runID {
		t.Errorf("successive runs must get distinct ids")
	}
}

func TestHotMethodsOrdering(t *testing.T) {
	store := testStore(t)

	report := []MethodProfile{
		{Name: "cold", CallCount: 1},
		{Name: "hot", CallCount: 100, OpCounts: map[Opcode]uint64{OpAdd: 500, OpGetLocal: 900}},
		{Name: "warm", CallCount: 10},
	}
	runID, err := store.SaveRun("demo.kimg", report)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	hot, err := store.HotMethods(runID, 2)
	if err != nil {
		t.Fatalf("HotMethods failed: %v", err)
	}
	if len(hot) != 2 {
		t.Fatalf("HotMethods returned %d rows, want 2", len(hot))
	}
	if hot[0].Name != "hot" || hot[0].CallCount != 100 {
		t.Errorf("hottest = %+v, want hot/100", hot[0])
	}
	if hot[1].Name != "warm" {
		t.Errorf("second = %+v, want warm", hot[1])
	}
}

func TestHotMethodsScopedToRun(t *testing.T) {
	store := testStore(t)

	first, err := store.SaveRun("a.kimg", []MethodProfile{{Name: "alpha", CallCount: 5}})
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := store.SaveRun("b.kimg", []MethodProfile{{Name: "beta", CallCount: 50}}); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	hot, err := store.HotMethods(first, 10)
	if err != nil {
		t.Fatalf("HotMethods failed: %v", err)
	}
	if len(hot) != 1 || hot[0].Name != "alpha" {
		t.Errorf("run scoping broken: %+v", hot)
	}
}

func TestProfilerReportOrdering(t *testing.T) {
	p := NewProfiler()
	pool := testPool()

	mk := func(name string, calls uint64) *MethodInfo {
		mi := testMethod(pool, []byte{byte(OpReturnVoid)})
		mi.Name = name
		mi.Body.CallCount = calls
		return mi
	}
	p.observe(mk("b", 3))
	p.observe(mk("a", 3))
	p.observe(mk("z", 9))

	report := p.Report()
	if len(report) != 3 {
		t.Fatalf("report rows = %d, want 3", len(report))
	}
	got := []string{report[0].Name, report[1].Name, report[2].Name}
	want := []string{"z", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("report order = %v, want %v", got, want)
		}
	}
}

func TestProfilerObserveDedups(t *testing.T) {
	p := NewProfiler()
	mi := testMethod(testPool(), []byte{byte(OpReturnVoid)})
	p.observe(mi)
	p.observe(mi)
	if len(p.Report()) != 1 {
		t.Errorf("observing the same method twice should keep one row")
	}
}
