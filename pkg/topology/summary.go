package topology

import (
	"github.com/samber/lo"

	"oci-gpu-toolkit/pkg/oci"
)

// Counts splits a collection by lifecycle state. Active+Inactive+Other always equals Total.
type Counts struct {
	Total    int `json:"total"    yaml:"total"`
	Active   int `json:"active"   yaml:"active"`
	Inactive int `json:"inactive" yaml:"inactive"`
	Other    int `json:"other"    yaml:"other"`
}

// ShapeCount is the number of hosts of one instance shape.
type ShapeCount struct {
	Shape string `json:"shape" yaml:"shape"`
	Count int    `json:"count" yaml:"count"`
}

// Summary aggregates a Model.
type Summary struct {
	Topology        oci.CapacityTopology       `json:"topology"          yaml:"topology"`
	Islands         Counts                     `json:"hpcIslands"        yaml:"hpcIslands"`
	Blocks          Counts                     `json:"networkBlocks"     yaml:"networkBlocks"`
	Hosts           Counts                     `json:"bareMetalHosts"    yaml:"bareMetalHosts"`
	HostsByState    map[oci.LifecycleState]int `json:"hostsByState"      yaml:"hostsByState"`
	UnassignedHosts int                        `json:"unassignedHosts"   yaml:"unassignedHosts"`
	OrphanBlocks    int                        `json:"orphanBlocks"      yaml:"orphanBlocks"`
	OrphanHosts     int                        `json:"orphanHosts"       yaml:"orphanHosts"`
	HostsInUse      int                        `json:"hostsWithInstance" yaml:"hostsWithInstance"`
	Shapes          []ShapeCount               `json:"shapes"            yaml:"shapes"`
}

// Summary counts every level of the model.
func (m *Model) Summary() Summary {
	hosts := m.snapshot.Hosts
	states := hostStates(hosts)

	islandStates := lo.Map(m.snapshot.Islands, func(island oci.HPCIsland, _ int) oci.LifecycleState {
		return island.LifecycleState
	})
	blockStates := lo.Map(m.snapshot.Blocks, func(block oci.NetworkBlock, _ int) oci.LifecycleState {
		return block.LifecycleState
	})

	shapeCounts := lo.CountValuesBy(hosts, func(host oci.BareMetalHost) string { return host.InstanceShape })
	shapeOrder := lo.Uniq(lo.Map(hosts, func(host oci.BareMetalHost, _ int) string { return host.InstanceShape }))
	shapes := lo.Map(shapeOrder, func(shape string, _ int) ShapeCount {
		return ShapeCount{Shape: shape, Count: shapeCounts[shape]}
	})

	inUse := lo.CountBy(hosts, func(host oci.BareMetalHost) bool {
		return host.InstanceID != nil && *host.InstanceID != ""
	})

	return Summary{
		Topology:        m.snapshot.Topology,
		Islands:         countStates(islandStates),
		Blocks:          countStates(blockStates),
		Hosts:           countStates(states),
		HostsByState:    lo.CountValues(states),
		UnassignedHosts: len(m.unassigned),
		OrphanBlocks:    len(m.orphanBlocks),
		OrphanHosts:     len(m.orphanHosts),
		HostsInUse:      inUse,
		Shapes:          shapes,
	}
}

// Percent returns count*100/total, or 0 when total is 0.
func Percent(count, total int) int {
	if total <= 0 {
		return 0
	}

	return count * 100 / total
}

func hostStates(hosts []oci.BareMetalHost) []oci.LifecycleState {
	return lo.Map(hosts, func(host oci.BareMetalHost, _ int) oci.LifecycleState { return host.LifecycleState })
}

func countStates(states []oci.LifecycleState) Counts {
	counts := Counts{Total: len(states)}

	for _, state := range states {
		switch {
		case state.IsActive():
			counts.Active++
		case state.IsInactive():
			counts.Inactive++
		default:
			counts.Other++
		}
	}

	return counts
}
