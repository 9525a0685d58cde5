package topology

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-gpu-toolkit/pkg/oci"
)

func ptr(value string) *string {
	return &value
}

func host(id string, block *string, instance *string, state oci.LifecycleState) oci.BareMetalHost {
	return oci.BareMetalHost{
		ID:             id,
		NetworkBlockID: block,
		InstanceID:     instance,
		InstanceShape:  "BM.GPU.H100.8",
		LifecycleState: state,
	}
}

// scenarioSnapshot has one island, one block under it, one block pointing at an unknown
// island and three hosts: one per block and one without a block.
func scenarioSnapshot() Snapshot {
	return Snapshot{
		Topology: oci.CapacityTopology{ID: "topo-1", DisplayName: "capacity"},
		Islands: []oci.HPCIsland{
			{ID: "island-1", TopologyID: "topo-1", LifecycleState: oci.StateActive},
		},
		Blocks: []oci.NetworkBlock{
			{ID: "block-1", IslandID: "island-1", LifecycleState: oci.StateActive},
			{ID: "block-2", IslandID: "island-missing", LifecycleState: oci.StateActive},
		},
		Hosts: []oci.BareMetalHost{
			host("host-1", ptr("block-1"), ptr("ocid1.instance.oc1..a"), oci.StateActive),
			host("host-2", ptr("block-2"), nil, oci.StateInactive),
			host("host-3", nil, nil, oci.StateCreating),
		},
	}
}

func TestScenarioTreeAndSummary(t *testing.T) {
	model, err := Build(scenarioSnapshot(), BuildOptions{})
	require.NoError(t, err)

	tree := model.Tree(TreeOptions{ShowHosts: true})

	require.Len(t, tree.Islands, 1)
	require.Len(t, tree.Islands[0].Blocks, 1)
	assert.Equal(t, "block-1", tree.Islands[0].Blocks[0].Block.ID)
	require.Len(t, tree.OrphanBlocks, 1)
	assert.Equal(t, "block-2", tree.OrphanBlocks[0].Block.ID)
	require.Len(t, tree.Unassigned, 1)
	assert.Equal(t, "host-3", tree.Unassigned[0].ID)

	summary := model.Summary()
	assert.Equal(t, 3, summary.Hosts.Total)
	assert.Equal(t, 1, summary.UnassignedHosts)
	assert.Equal(t, 1, summary.OrphanBlocks)
	assert.Equal(t, 0, summary.OrphanHosts)
	assert.Equal(t, 1, summary.HostsInUse)
}

func TestEveryAssignedHostAppearsExactlyOnce(t *testing.T) {
	model, err := Build(scenarioSnapshot(), BuildOptions{})
	require.NoError(t, err)

	tree := model.Tree(TreeOptions{ShowHosts: true})

	seen := map[string]int{}
	where := map[string]string{}

	visit := func(blockID string, hosts []oci.BareMetalHost) {
		for _, h := range hosts {
			seen[h.ID]++
			where[h.ID] = blockID
		}
	}

	for _, island := range tree.Islands {
		for _, block := range island.Blocks {
			visit(block.Block.ID, block.Hosts)
		}
	}

	for _, block := range tree.OrphanBlocks {
		visit(block.Block.ID, block.Hosts)
	}

	visit("unassigned", tree.Unassigned)

	for _, h := range scenarioSnapshot().Hosts {
		assert.Equal(t, 1, seen[h.ID], "host %s", h.ID)

		if h.NetworkBlockID == nil {
			assert.Equal(t, "unassigned", where[h.ID])
		} else {
			assert.Equal(t, *h.NetworkBlockID, where[h.ID])
		}
	}
}

func TestOrphanHostsAreKeptAside(t *testing.T) {
	snapshot := scenarioSnapshot()
	snapshot.Hosts = append(snapshot.Hosts, host("host-4", ptr("block-gone"), nil, oci.StateActive))

	model, err := Build(snapshot, BuildOptions{})
	require.NoError(t, err)

	tree := model.Tree(TreeOptions{})
	require.Len(t, tree.OrphanHosts, 1)
	assert.Equal(t, "host-4", tree.OrphanHosts[0].ID)
	assert.Empty(t, tree.Islands[0].Blocks[0].Hosts, "hosts hidden without ShowHosts")
	assert.Equal(t, 1, tree.Islands[0].HostCount)
}

func TestStrictRejectsDanglingReferences(t *testing.T) {
	_, err := Build(scenarioSnapshot(), BuildOptions{Strict: true})
	require.ErrorIs(t, err, ErrDanglingReference)

	clean := scenarioSnapshot()
	clean.Blocks = clean.Blocks[:1]
	clean.Hosts = []oci.BareMetalHost{clean.Hosts[0], clean.Hosts[2]}

	_, err = Build(clean, BuildOptions{Strict: true})
	require.NoError(t, err)
}

func TestTreeStateFilterAndDepth(t *testing.T) {
	model, err := Build(scenarioSnapshot(), BuildOptions{})
	require.NoError(t, err)

	inactive := oci.StateInactive
	tree := model.Tree(TreeOptions{ShowHosts: true, State: &inactive})

	assert.Empty(t, tree.Islands[0].Blocks[0].Hosts)
	require.Len(t, tree.OrphanBlocks[0].Hosts, 1)
	assert.Equal(t, "host-2", tree.OrphanBlocks[0].Hosts[0].ID)
	assert.Empty(t, tree.Unassigned)

	shallow := model.Tree(TreeOptions{ShowHosts: true, Depth: DepthIslands})
	assert.Empty(t, shallow.Islands[0].Blocks)
	assert.Equal(t, 1, shallow.Islands[0].HostCount)

	blocksOnly := model.Tree(TreeOptions{ShowHosts: true, Depth: DepthBlocks})
	require.Len(t, blocksOnly.Islands[0].Blocks, 1)
	assert.Empty(t, blocksOnly.Islands[0].Blocks[0].Hosts)
}

func TestTreeKeepsSourceOrder(t *testing.T) {
	snapshot := Snapshot{
		Islands: []oci.HPCIsland{{ID: "z"}, {ID: "a"}, {ID: "m"}},
		Blocks: []oci.NetworkBlock{
			{ID: "b3", IslandID: "a"},
			{ID: "b1", IslandID: "z"},
			{ID: "b2", IslandID: "a"},
		},
	}

	model, err := Build(snapshot, BuildOptions{})
	require.NoError(t, err)

	tree := model.Tree(TreeOptions{})
	islandIDs := lo.Map(tree.Islands, func(node IslandNode, _ int) string { return node.Island.ID })
	assert.Equal(t, []string{"z", "a", "m"}, islandIDs)

	blockIDs := lo.Map(tree.Islands[1].Blocks, func(node BlockNode, _ int) string { return node.Block.ID })
	assert.Equal(t, []string{"b3", "b2"}, blockIDs)
}

func TestDuplicateRecordsAreJoinedOnce(t *testing.T) {
	snapshot := scenarioSnapshot()
	snapshot.Hosts = append(snapshot.Hosts, snapshot.Hosts[0])

	model, err := Build(snapshot, BuildOptions{})
	require.NoError(t, err)

	tree := model.Tree(TreeOptions{ShowHosts: true})
	assert.Len(t, tree.Islands[0].Blocks[0].Hosts, 1)
	assert.Equal(t, 3, model.Summary().Hosts.Total)
}

func TestFindInstance(t *testing.T) {
	model, err := Build(scenarioSnapshot(), BuildOptions{})
	require.NoError(t, err)

	location, err := model.FindInstance("ocid1.instance.oc1..a")
	require.NoError(t, err)
	assert.Equal(t, Location{
		TopologyID: "topo-1",
		IslandID:   "island-1",
		BlockID:    "block-1",
		HostID:     "host-1",
		Host:       scenarioSnapshot().Hosts[0],
	}, location)

	_, err = model.FindInstance("ocid1.instance.oc1..nowhere")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindInstanceOnOrphanAndUnassignedHosts(t *testing.T) {
	snapshot := scenarioSnapshot()
	snapshot.Hosts[1].InstanceID = ptr("ocid1.instance.oc1..orphan")
	snapshot.Hosts[2].InstanceID = ptr("ocid1.instance.oc1..loose")

	model, err := Build(snapshot, BuildOptions{})
	require.NoError(t, err)

	orphan, err := model.FindInstance("ocid1.instance.oc1..orphan")
	require.NoError(t, err)
	assert.True(t, orphan.Orphan)
	assert.Equal(t, "block-2", orphan.BlockID)
	assert.Empty(t, orphan.IslandID)

	loose, err := model.FindInstance("ocid1.instance.oc1..loose")
	require.NoError(t, err)
	assert.True(t, loose.Unassigned)
	assert.Empty(t, loose.BlockID)
	assert.Equal(t, "host-3", loose.HostID)
}
