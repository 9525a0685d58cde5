package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/topology"
)

func ptr(value string) *string {
	return &value
}

func scenarioModel(t *testing.T) *topology.Model {
	t.Helper()

	model, err := topology.Build(topology.Snapshot{
		Topology: oci.CapacityTopology{ID: "topo-1", DisplayName: "capacity"},
		Islands:  []oci.HPCIsland{{ID: "island-1", LifecycleState: oci.StateActive, TotalHostCount: 1}},
		Blocks: []oci.NetworkBlock{
			{ID: "block-1", IslandID: "island-1", LifecycleState: oci.StateActive},
			{ID: "block-2", IslandID: "island-missing", LifecycleState: oci.StateActive},
		},
		Hosts: []oci.BareMetalHost{
			{ID: "host-1", NetworkBlockID: ptr("block-1"), InstanceID: ptr("ocid1.instance.oc1..a"), LifecycleState: oci.StateActive},
			{ID: "host-2", NetworkBlockID: ptr("block-2"), LifecycleState: oci.StateInactive},
			{ID: "host-3", LifecycleState: oci.StateActive},
		},
	}, topology.BuildOptions{})
	require.NoError(t, err)

	return model
}

func TestExportJSONWritesEmptyArrays(t *testing.T) {
	var out bytes.Buffer

	now := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	require.NoError(t, ExportJSON(&out, topology.Snapshot{}, now))

	var document map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out.Bytes(), &document))

	for _, key := range []string{"hpc_islands", "network_blocks", "bare_metal_hosts"} {
		assert.JSONEq(t, "[]", string(document[key]), key)
	}

	assert.JSONEq(t, `"2025-05-04T03:02:01Z"`, string(document["exported_at"]))
	assert.Contains(t, document, "topology")
}

func TestExportJSONKeepsNullBlockReference(t *testing.T) {
	var out bytes.Buffer

	snapshot := scenarioModel(t).Snapshot()
	require.NoError(t, ExportJSON(&out, snapshot, time.Unix(0, 0)))

	var document struct {
		Hosts []map[string]any `json:"bare_metal_hosts"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &document))
	require.Len(t, document.Hosts, 3)
	assert.Nil(t, document.Hosts[2]["computeNetworkBlockId"])
	assert.Equal(t, "block-1", document.Hosts[0]["computeNetworkBlockId"])
}

func TestTopologyTreeShowsOrphanAndUnassignedSections(t *testing.T) {
	var out bytes.Buffer

	tree := scenarioModel(t).Tree(topology.TreeOptions{ShowHosts: true})
	require.NoError(t, TopologyTree(&out, tree, Options{}))

	rendered := out.String()
	assert.Contains(t, rendered, "HPC island island-1 ACTIVE hosts=1/1")
	assert.Contains(t, rendered, "Network block block-1")
	assert.Contains(t, rendered, "Network blocks with unknown island (1)")
	assert.Contains(t, rendered, "Unassigned hosts (1)")
	assert.Contains(t, rendered, "host-3")
	assert.Equal(t, 1, strings.Count(rendered, "host-1 "))
	assert.NotContains(t, rendered, "\x1b[", "no colour codes without Color")
}

func TestTopologySummaryGuardsEmptyTotals(t *testing.T) {
	model, err := topology.Build(topology.Snapshot{}, topology.BuildOptions{})
	require.NoError(t, err)

	var out bytes.Buffer

	TopologySummary(&out, model.Summary(), Options{})

	assert.Contains(t, out.String(), "Bare metal hosts")
	assert.Contains(t, out.String(), "0%")
}

func TestTopologySummaryCounts(t *testing.T) {
	var out bytes.Buffer

	TopologySummary(&out, scenarioModel(t).Summary(), Options{})

	rendered := out.String()
	assert.Contains(t, rendered, "66%")
	assert.Contains(t, rendered, "Unassigned hosts")
	assert.Contains(t, rendered, "Hosts with instance")
	assert.Contains(t, rendered, "Orphan network blocks")
	assert.Contains(t, rendered, "Orphan hosts")
	assert.NotContains(t, rendered, "UNASSIGNED HOSTS")
	assert.Contains(t, rendered, "LEVEL", "headers keep the table style")
}

func TestTopologyTreeShowsRawHostState(t *testing.T) {
	model, err := topology.Build(topology.Snapshot{
		Topology: oci.CapacityTopology{ID: "topo-1"},
		Hosts: []oci.BareMetalHost{
			{ID: "host-9", LifecycleState: oci.StateUnknown, RawState: "MAINTENANCE"},
		},
	}, topology.BuildOptions{})
	require.NoError(t, err)

	var out bytes.Buffer

	require.NoError(t, TopologyTree(&out, model.Tree(topology.TreeOptions{ShowHosts: true}), Options{}))
	assert.Contains(t, out.String(), "host-9 UNKNOWN (MAINTENANCE)")
}

func TestNSGNamesFallBackToID(t *testing.T) {
	names := NewNSGNames([]oci.NSG{{ID: "ocid1.networksecuritygroup.oc1..a", DisplayName: "workers"}})

	assert.Equal(t, "workers", names.Name("ocid1.networksecuritygroup.oc1..a"))
	assert.Equal(t, "ocid1.networksecuritygroup.oc1..b", names.Name("ocid1.networksecuritygroup.oc1..b"))
}

func TestNSGRulesResolvePeerNames(t *testing.T) {
	groups := []oci.NSG{
		{ID: "ocid1.networksecuritygroup.oc1..a", DisplayName: "workers"},
		{ID: "ocid1.networksecuritygroup.oc1..b", DisplayName: "control-plane"},
	}
	names := NewNSGNames(groups)

	var out bytes.Buffer

	NSGRules(&out, []NSGRuleSet{
		{
			NSG: groups[0],
			Rules: []oci.SecurityRule{
				{
					Direction:  "INGRESS",
					Protocol:   "TCP",
					Source:     "ocid1.networksecuritygroup.oc1..b",
					SourceType: "NETWORK_SECURITY_GROUP",
					PortMin:    6443,
					PortMax:    6443,
				},
				{Direction: "EGRESS", Protocol: "ALL", Destination: "0.0.0.0/0", Stateless: true},
			},
		},
		{NSG: groups[1]},
	}, names, Options{})

	rendered := out.String()
	assert.Contains(t, rendered, "workers (ocid1.networksecuritygroup.oc1..a)")
	assert.Contains(t, rendered, "control-plane")
	assert.Contains(t, rendered, "6443")
	assert.Contains(t, rendered, "0.0.0.0/0")
	assert.Contains(t, rendered, "stateless")
	assert.Contains(t, rendered, "no rules")
}

func TestPeerFollowsRuleDirection(t *testing.T) {
	names := NSGNames{"nsg-b": "control-plane"}

	egressToGroup := oci.SecurityRule{
		Direction:       "EGRESS",
		Source:          "10.0.0.0/16",
		SourceType:      "CIDR_BLOCK",
		Destination:     "nsg-b",
		DestinationType: "NETWORK_SECURITY_GROUP",
	}
	assert.Equal(t, "control-plane", peer(egressToGroup, names))

	egressToCIDR := oci.SecurityRule{
		Direction:       "EGRESS",
		Source:          "nsg-b",
		SourceType:      "NETWORK_SECURITY_GROUP",
		Destination:     "nsg-b",
		DestinationType: "CIDR_BLOCK",
	}
	assert.Equal(t, "nsg-b", peer(egressToCIDR, names))

	ingressFromGroup := oci.SecurityRule{
		Direction:       "INGRESS",
		Source:          "nsg-b",
		SourceType:      "NETWORK_SECURITY_GROUP",
		DestinationType: "CIDR_BLOCK",
	}
	assert.Equal(t, "control-plane", peer(ingressFromGroup, names))
}

func TestStateShowsRawUnknownValue(t *testing.T) {
	opts := Options{}

	assert.Equal(t, "UNKNOWN (RUNNING)", opts.State(oci.StateUnknown, "RUNNING"))
	assert.Equal(t, "ACTIVE", opts.State(oci.StateActive, "ACTIVE"))
}

func TestYAML(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, YAML(&out, []oci.Group{{ID: "g1", Name: "admins"}}))
	assert.Equal(t, "- id: g1\n  name: admins\n", out.String())
}

func TestCompartmentTree(t *testing.T) {
	tree := topology.BuildCompartmentTree("tenancy", []oci.Compartment{
		{ID: "c1", Name: "ml", ParentID: "tenancy", LifecycleState: oci.StateActive},
		{ID: "c2", Name: "stray", ParentID: "gone"},
	})

	var out bytes.Buffer

	require.NoError(t, CompartmentTree(&out, tree, Options{}))
	assert.Contains(t, out.String(), "root tenancy ACTIVE")
	assert.Contains(t, out.String(), "ml c1 ACTIVE")
	assert.Contains(t, out.String(), "Unreachable compartments (1)")
}

func directoryReport() DirectoryReport {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return DirectoryReport{
		Filter: "a",
		Directories: []Directory{
			{
				Name:  "Root",
				Type:  DirectoryTypeLegacy,
				ID:    "ocid1.tenancy.oc1..root",
				State: oci.StateActive,
				Users: []oci.DirectoryUser{
					{ID: "u-1", UserName: "alice", DisplayName: "Smith, Alice", Active: true, TimeCreated: &created},
				},
			},
			{Name: "Empty", Type: "SECONDARY", ID: "ocid1.domain.oc1..empty", State: oci.StateActive},
		},
	}
}

func TestDirectoriesHidesDirectoriesWithoutMatches(t *testing.T) {
	var buf bytes.Buffer

	Directories(&buf, directoryReport(), false, Options{})

	out := buf.String()
	assert.Contains(t, out, "Total users: 1 in 1 directories")
	assert.Contains(t, out, "Root (1 users)")
	assert.Contains(t, out, "2024-03-01 10:00:00")
	assert.NotContains(t, out, "Empty")
}

func TestDirectoriesCSVQuotesFields(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, DirectoriesCSV(&buf, directoryReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`Root,LEGACY,ocid1.tenancy.oc1..root,alice,"Smith, Alice",,ACTIVE,2024-03-01 10:00:00,u-1`,
		lines[1])
}
