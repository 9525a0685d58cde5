package topology

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-gpu-toolkit/pkg/oci"
)

func TestSummaryCountsAlwaysAddUp(t *testing.T) {
	states := oci.LifecycleStates()

	for size := 0; size <= 2*len(states); size++ {
		t.Run(fmt.Sprintf("hosts=%d", size), func(t *testing.T) {
			hosts := make([]oci.BareMetalHost, 0, size)
			for i := range size {
				hosts = append(hosts, host(fmt.Sprintf("host-%d", i), nil, nil, states[i%len(states)]))
			}

			model, err := Build(Snapshot{Hosts: hosts}, BuildOptions{})
			require.NoError(t, err)

			counts := model.Summary().Hosts
			assert.Equal(t, size, counts.Total)
			assert.Equal(t, counts.Total, counts.Active+counts.Inactive+counts.Other)
		})
	}
}

func TestEmptySummary(t *testing.T) {
	model, err := Build(Snapshot{}, BuildOptions{})
	require.NoError(t, err)

	summary := model.Summary()
	assert.Zero(t, summary.Hosts.Total)
	assert.Zero(t, Percent(summary.Hosts.Active, summary.Hosts.Total))
	assert.Empty(t, summary.Shapes)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 0, Percent(5, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 100, Percent(4, 4))
}

func TestSummaryShapesInFirstSeenOrder(t *testing.T) {
	hosts := []oci.BareMetalHost{
		{ID: "a", InstanceShape: "BM.GPU.H100.8", LifecycleState: oci.StateActive},
		{ID: "b", InstanceShape: "BM.GPU.A100-v2.8", LifecycleState: oci.StateAvailable},
		{ID: "c", InstanceShape: "BM.GPU.H100.8", LifecycleState: oci.StateDeleting},
	}

	model, err := Build(Snapshot{Hosts: hosts}, BuildOptions{})
	require.NoError(t, err)

	summary := model.Summary()
	assert.Equal(t, []ShapeCount{
		{Shape: "BM.GPU.H100.8", Count: 2},
		{Shape: "BM.GPU.A100-v2.8", Count: 1},
	}, summary.Shapes)
	assert.Equal(t, Counts{Total: 3, Active: 2, Inactive: 0, Other: 1}, summary.Hosts)
	assert.Equal(t, 1, summary.HostsByState[oci.StateDeleting])
}
