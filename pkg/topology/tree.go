package topology

import (
	"github.com/samber/lo"

	"oci-gpu-toolkit/pkg/oci"
)

// Depth levels accepted by TreeOptions.Depth.
const (
	DepthIslands = 1
	DepthBlocks  = 2
	DepthHosts   = 3
)

// TreeOptions selects what a Tree contains.
type TreeOptions struct {
	// ShowHosts lists hosts under their blocks. Unassigned and orphan hosts are always listed.
	ShowHosts bool
	// State keeps only hosts in this lifecycle state when set.
	State *oci.LifecycleState
	// Depth cuts the island subtree: 1 islands, 2 blocks, 3 hosts. Zero means no limit.
	Depth int
}

// Tree is a rendered-ready view of a Model. Every level keeps source order.
type Tree struct {
	Topology     oci.CapacityTopology `json:"topology"        yaml:"topology"`
	Islands      []IslandNode         `json:"hpcIslands"      yaml:"hpcIslands"`
	OrphanBlocks []BlockNode          `json:"orphanBlocks"    yaml:"orphanBlocks"`
	OrphanHosts  []oci.BareMetalHost  `json:"orphanHosts"     yaml:"orphanHosts"`
	Unassigned   []oci.BareMetalHost  `json:"unassignedHosts" yaml:"unassignedHosts"`
}

// IslandNode is an island with its blocks. HostCount counts every host under the island,
// regardless of filters.
type IslandNode struct {
	Island    oci.HPCIsland `json:"island"        yaml:"island"`
	Blocks    []BlockNode   `json:"networkBlocks" yaml:"networkBlocks"`
	HostCount int           `json:"hostCount"     yaml:"hostCount"`
}

// BlockNode is a network block with its hosts.
type BlockNode struct {
	Block     oci.NetworkBlock    `json:"block"          yaml:"block"`
	Hosts     []oci.BareMetalHost `json:"bareMetalHosts" yaml:"bareMetalHosts"`
	HostCount int                 `json:"hostCount"      yaml:"hostCount"`
}

// Tree builds the island → block → host hierarchy.
func (m *Model) Tree(opts TreeOptions) Tree {
	keep := func(host oci.BareMetalHost, _ int) bool {
		return opts.State == nil || host.LifecycleState == *opts.State
	}

	showBlocks := opts.Depth == 0 || opts.Depth >= DepthBlocks
	showHosts := opts.ShowHosts && (opts.Depth == 0 || opts.Depth >= DepthHosts)

	blockNode := func(block oci.NetworkBlock) BlockNode {
		hosts := m.hostsBy[block.ID]
		node := BlockNode{Block: block, HostCount: len(hosts)}

		if showHosts {
			node.Hosts = lo.Filter(hosts, keep)
		}

		return node
	}

	tree := Tree{
		Topology:     m.snapshot.Topology,
		Islands:      make([]IslandNode, 0, len(m.snapshot.Islands)),
		OrphanBlocks: make([]BlockNode, 0, len(m.orphanBlocks)),
		OrphanHosts:  lo.Filter(m.orphanHosts, keep),
		Unassigned:   lo.Filter(m.unassigned, keep),
	}

	for _, island := range m.snapshot.Islands {
		node := IslandNode{Island: island}

		for _, block := range m.blocksBy[island.ID] {
			child := blockNode(block)
			node.HostCount += child.HostCount

			if showBlocks {
				node.Blocks = append(node.Blocks, child)
			}
		}

		tree.Islands = append(tree.Islands, node)
	}

	for _, block := range m.orphanBlocks {
		tree.OrphanBlocks = append(tree.OrphanBlocks, blockNode(block))
	}

	return tree
}
