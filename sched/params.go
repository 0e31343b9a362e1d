// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sched derives the fiber runtime's scheduling parameters —
// group count, workers per group, and whether NUMA affinity should be
// enabled — from a workload profile, the machine's NUMA topology, and
// the caller's desired concurrency.
package sched

import "fmt"

// Profile classifies the workload the runtime is tuned for.
type Profile int

const (
	ComputeHeavy Profile = iota
	Compute
	Neutral
	Io
	IoHeavy
)

func (p Profile) String() string {
	switch p {
	case ComputeHeavy:
		return "compute-heavy"
	case Compute:
		return "compute"
	case Neutral:
		return "neutral"
	case Io:
		return "io"
	case IoHeavy:
		return "io-heavy"
	default:
		return fmt.Sprintf("sched.Profile(%d)", int(p))
	}
}

// maxGroupSize is the hard cap spec.md §3 names for any group.
const maxGroupSize = 64

// groupSizeRange returns the profile's half-open [low, high) group-size
// range. ComputeHeavy and Compute are handled by their own dedicated
// algorithms and never consult this table.
func groupSizeRange(p Profile) (low, high int) {
	switch p {
	case Neutral:
		return 16, 32
	case Io:
		return 12, 24
	case IoHeavy:
		return 8, 16
	default:
		panic("sched: groupSizeRange called for a profile with no range")
	}
}

// Params is the triple (groups, workers_per_group, numa_affinity)
// spec.md §3 describes, computed once per runtime instance.
type Params struct {
	Groups          int
	WorkersPerGroup int
	NUMAAffinity    bool
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// Compute derives scheduling parameters for profile p given a NUMA
// domain count numaDomains, an available processor count procs, and a
// desired concurrency concurrency, per the algorithm tables in
// spec.md §4.F.
func Compute(p Profile, numaDomains, procs, concurrency int) Params {
	if concurrency <= 0 {
		concurrency = 1
	}
	if numaDomains <= 0 {
		numaDomains = 1
	}

	switch p {
	case ComputeHeavy:
		return computeHeavy(concurrency)
	case Compute:
		if numaDomains == 1 || 2*concurrency < procs {
			return computeHeavy(concurrency)
		}
		return computeNUMA(concurrency, numaDomains)
	default:
		return searchRanged(p, concurrency, numaDomains)
	}
}

func computeHeavy(concurrency int) Params {
	groups := ceilDiv(concurrency, maxGroupSize)
	if groups < 1 {
		groups = 1
	}
	return Params{
		Groups:          groups,
		WorkersPerGroup: ceilDiv(concurrency, groups),
		NUMAAffinity:    false,
	}
}

func computeNUMA(concurrency, numaDomains int) Params {
	perNode := ceilDiv(concurrency, numaDomains)
	groupsPerNode := ceilDiv(perNode, maxGroupSize)
	if groupsPerNode < 1 {
		groupsPerNode = 1
	}
	return Params{
		Groups:          groupsPerNode * numaDomains,
		WorkersPerGroup: ceilDiv(perNode, groupsPerNode),
		NUMAAffinity:    true,
	}
}

// searchRanged implements the Neutral/Io/IoHeavy algorithm: search the
// profile's half-open group-size range for the size minimizing waste
// `⌈C/g⌉×g − C`, restricted first to sizes whose resulting group count
// divides evenly by numaDomains; that NUMA-aware candidate is kept only
// if its waste is within 10% of concurrency, otherwise the search is
// redone over the full range with no NUMA constraint.
func searchRanged(p Profile, concurrency, numaDomains int) Params {
	low, high := groupSizeRange(p)
	if concurrency <= low {
		return Params{Groups: 1, WorkersPerGroup: concurrency, NUMAAffinity: false}
	}

	numaAware := false
	bestSize := 0
	if numaDomains > 1 {
		var bestWaste int
		bestSize, bestWaste = bestInRange(concurrency, low, high, func(groups int) bool {
			return groups%numaDomains == 0
		})
		numaAware = bestSize != 0 && bestWaste <= concurrency/10
	}
	if !numaAware {
		bestSize, _ = bestInRange(concurrency, low, high, nil)
	}

	return Params{
		Groups:          ceilDiv(concurrency, bestSize),
		WorkersPerGroup: bestSize,
		NUMAAffinity:    numaAware,
	}
}

// bestInRange searches [low, high) for the group size minimizing waste,
// considering only sizes whose resulting group count satisfies accept
// (nil accepts everything). Ties keep the first (smallest) size found.
func bestInRange(concurrency, low, high int, accept func(groups int) bool) (size, w int) {
	bestSize, bestWaste := 0, 1<<31-1
	for g := low; g < high; g++ {
		groups := ceilDiv(concurrency, g)
		if accept != nil && !accept(groups) {
			continue
		}
		extra := groups*g - concurrency
		if extra < bestWaste {
			bestWaste, bestSize = extra, g
		}
	}
	return bestSize, bestWaste
}
