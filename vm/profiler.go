package vm

import (
	"sort"
)

// MethodProfile holds profiling data for a single method.
type MethodProfile struct {
	Method          *Method
	InvocationCount uint64
	Native          bool // host-implemented method
	IsHot           bool // true once the threshold is reached
}

// Profiler counts method invocations and flags methods whose count crosses
// HotThreshold. Attach one to VM.Profiler before running guest code; a nil
// profiler costs nothing.
type Profiler struct {
	profiles map[*Method]*MethodProfile

	// HotThreshold is the invocation count at which a method becomes hot.
	HotThreshold uint64

	// OnHot is called once per method when it becomes hot.
	OnHot func(profile *MethodProfile)

	hotCount uint64
	total    uint64
}

// NewProfiler creates a new profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		profiles:     make(map[*Method]*MethodProfile),
		HotThreshold: 1000,
	}
}

// RecordInvocation increments the invocation count for a method.
// Returns true if this invocation caused the method to become hot.
func (p *Profiler) RecordInvocation(m *Method) bool {
	if m == nil {
		return false
	}
	profile, ok := p.profiles[m]
	if !ok {
		profile = &MethodProfile{Method: m, Native: m.IsNative()}
		p.profiles[m] = profile
	}
	profile.InvocationCount++
	p.total++

	if !profile.IsHot && profile.InvocationCount >= p.HotThreshold {
		profile.IsHot = true
		p.hotCount++
		if p.OnHot != nil {
			p.OnHot(profile)
		}
		return true
	}
	return false
}

// Profile returns the profile for a method, or nil if it never ran.
func (p *Profiler) Profile(m *Method) *MethodProfile {
	return p.profiles[m]
}

// IsHot reports whether the method has reached the hot threshold.
func (p *Profiler) IsHot(m *Method) bool {
	profile := p.profiles[m]
	return profile != nil && profile.IsHot
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	TotalMethods     int    // Number of methods profiled
	HotMethods       int    // Number of hot methods
	NativeMethods    int    // Number of native methods profiled
	TotalInvocations uint64 // Sum of all invocation counts
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	stats := ProfilerStats{
		TotalMethods:     len(p.profiles),
		HotMethods:       int(p.hotCount),
		TotalInvocations: p.total,
	}
	for _, profile := range p.profiles {
		if profile.Native {
			stats.NativeMethods++
		}
	}
	return stats
}

// Top returns up to n profiles ordered by descending invocation count, ties
// broken by method name. n <= 0 returns every profile.
func (p *Profiler) Top(n int) []*MethodProfile {
	all := make([]*MethodProfile, 0, len(p.profiles))
	for _, profile := range p.profiles {
		all = append(all, profile)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].InvocationCount != all[j].InvocationCount {
			return all[i].InvocationCount > all[j].InvocationCount
		}
		return all[i].Method.String() < all[j].Method.String()
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.profiles = make(map[*Method]*MethodProfile)
	p.hotCount = 0
	p.total = 0
}
