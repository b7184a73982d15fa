package vm

import "sort"

// Profiler tracks which methods have run. Per-method call and opcode counts
// live on the MethodBody; the profiler keeps the set of bodies seen so a
// report can be cut without walking every loaded context.
type Profiler struct {
	seen    map[*MethodInfo]struct{}
	methods []*MethodInfo
}

// NewProfiler returns an empty profiler. Attach it to SystemState.Profiler
// before executing anything.
func NewProfiler() *Profiler {
	return &Profiler{seen: make(map[*MethodInfo]struct{})}
}

func (p *Profiler) observe(mi *MethodInfo) {
	if _, ok := p.seen[mi]; ok {
		return
	}
	p.seen[mi] = struct{}{}
	p.methods = append(p.methods, mi)
}

// MethodProfile is one row of a profiling report.
type MethodProfile struct {
	Name      string
	CallCount uint64
	OpCounts  map[Opcode]uint64
}

// Report snapshots the counters of every observed method, most-called first.
func (p *Profiler) Report() []MethodProfile {
	out := make([]MethodProfile, 0, len(p.methods))
	for _, mi := range p.methods {
		row := MethodProfile{
			Name:      mi.Name,
			CallCount: mi.Body.CallCount,
		}
		if len(mi.Body.OpCounts) > 0 {
			row.OpCounts = make(map[Opcode]uint64, len(mi.Body.OpCounts))
			for op, n := range mi.Body.OpCounts {
				row.OpCounts[op] = n
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CallCount != out[j].CallCount {
			return out[i].CallCount > out[j].CallCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TotalOps sums every opcode counter across observed methods.
func (p *Profiler) TotalOps() uint64 {
	var total uint64
	for _, mi := range p.methods {
		for _, n := range mi.Body.OpCounts {
			total += n
		}
	}
	return total
}
