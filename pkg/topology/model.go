// Package topology joins the flat capacity topology listings into a tree and answers
// membership, lookup and count queries over it.
package topology

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"oci-gpu-toolkit/pkg/oci"
)

// ErrDanglingReference is returned by Build in strict mode when a block or host refers to a
// parent that is not in the snapshot.
var ErrDanglingReference = errors.New("topology: dangling parent reference")

// ErrNotFound is returned by FindInstance when no host is bound to the instance.
var ErrNotFound = errors.New("topology: instance not found on any bare metal host")

// Snapshot is the raw input of the join: one topology and its three flat listings, in the
// order the API returned them.
type Snapshot struct {
	Topology oci.CapacityTopology
	Islands  []oci.HPCIsland
	Blocks   []oci.NetworkBlock
	Hosts    []oci.BareMetalHost
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// Strict turns dangling parent references into ErrDanglingReference.
	Strict bool
}

// Model is the joined, read-only view of a Snapshot.
type Model struct {
	snapshot Snapshot

	islands      map[string]oci.HPCIsland
	blocks       map[string]oci.NetworkBlock
	blocksBy     map[string][]oci.NetworkBlock
	hostsBy      map[string][]oci.BareMetalHost
	orphanBlocks []oci.NetworkBlock
	orphanHosts  []oci.BareMetalHost
	unassigned   []oci.BareMetalHost
}

// Build joins the snapshot. Records repeated across pages are kept once, in first-seen order.
// Blocks whose island is unknown and hosts whose block is unknown are kept aside as orphans.
func Build(snapshot Snapshot, opts BuildOptions) (*Model, error) {
	snapshot.Islands = lo.UniqBy(snapshot.Islands, func(island oci.HPCIsland) string { return island.ID })
	snapshot.Blocks = lo.UniqBy(snapshot.Blocks, func(block oci.NetworkBlock) string { return block.ID })
	snapshot.Hosts = lo.UniqBy(snapshot.Hosts, func(host oci.BareMetalHost) string { return host.ID })

	model := &Model{
		snapshot: snapshot,
		islands:  lo.KeyBy(snapshot.Islands, func(island oci.HPCIsland) string { return island.ID }),
		blocks:   lo.KeyBy(snapshot.Blocks, func(block oci.NetworkBlock) string { return block.ID }),
	}

	attachedBlocks, orphanBlocks := lo.FilterReject(snapshot.Blocks, func(block oci.NetworkBlock, _ int) bool {
		_, ok := model.islands[block.IslandID]

		return ok
	})

	model.blocksBy = lo.GroupBy(attachedBlocks, func(block oci.NetworkBlock) string { return block.IslandID })
	model.orphanBlocks = orphanBlocks

	unassigned, referencing := lo.FilterReject(snapshot.Hosts, func(host oci.BareMetalHost, _ int) bool {
		return host.NetworkBlockID == nil
	})

	attachedHosts, orphanHosts := lo.FilterReject(referencing, func(host oci.BareMetalHost, _ int) bool {
		_, ok := model.blocks[*host.NetworkBlockID]

		return ok
	})

	model.hostsBy = lo.GroupBy(attachedHosts, func(host oci.BareMetalHost) string { return *host.NetworkBlockID })
	model.orphanHosts = orphanHosts
	model.unassigned = unassigned

	if opts.Strict && (len(model.orphanBlocks) > 0 || len(model.orphanHosts) > 0) {
		return nil, fmt.Errorf(
			"%w: %d network block(s) with unknown island, %d host(s) with unknown block",
			ErrDanglingReference,
			len(model.orphanBlocks),
			len(model.orphanHosts),
		)
	}

	return model, nil
}

// Snapshot returns the de-duplicated input the model was built from.
func (m *Model) Snapshot() Snapshot {
	return m.snapshot
}

// Topology returns the root record.
func (m *Model) Topology() oci.CapacityTopology {
	return m.snapshot.Topology
}

// UnassignedHosts returns the hosts without a network block, in source order.
func (m *Model) UnassignedHosts() []oci.BareMetalHost {
	return append([]oci.BareMetalHost{}, m.unassigned...)
}

// Location is where an instance sits in the topology. Elements whose record is missing from
// the snapshot are left empty and Orphan is set.
type Location struct {
	TopologyID string            `json:"topologyId"      yaml:"topologyId"`
	IslandID   string            `json:"hpcIslandId"     yaml:"hpcIslandId"`
	BlockID    string            `json:"networkBlockId"  yaml:"networkBlockId"`
	HostID     string            `json:"bareMetalHostId" yaml:"bareMetalHostId"`
	Host       oci.BareMetalHost `json:"host"            yaml:"host"`
	Orphan     bool              `json:"orphan"          yaml:"orphan"`
	Unassigned bool              `json:"unassigned"      yaml:"unassigned"`
}

// FindInstance scans the hosts for the one bound to instanceID and walks its parent chain.
func (m *Model) FindInstance(instanceID string) (Location, error) {
	host, found := lo.Find(m.snapshot.Hosts, func(host oci.BareMetalHost) bool {
		return host.InstanceID != nil && *host.InstanceID == instanceID
	})
	if !found {
		return Location{}, fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}

	location := Location{HostID: host.ID, Host: host}

	if host.NetworkBlockID == nil {
		location.Unassigned = true
		location.TopologyID = m.snapshot.Topology.ID

		return location, nil
	}

	block, ok := m.blocks[*host.NetworkBlockID]
	if !ok {
		location.Orphan = true

		return location, nil
	}

	location.BlockID = block.ID

	island, ok := m.islands[block.IslandID]
	if !ok {
		location.Orphan = true

		return location, nil
	}

	location.IslandID = island.ID
	location.TopologyID = island.TopologyID

	if location.TopologyID == "" {
		location.TopologyID = m.snapshot.Topology.ID
	}

	return location, nil
}
