package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-gpu-toolkit/pkg/metrics"
	"oci-gpu-toolkit/pkg/oci"
)

func TestObserveRequestClassifiesResults(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewRecorder()
	recorder.ObserveRequest("ListVcns", nil)
	recorder.ObserveRequest("ListVcns", nil)
	recorder.ObserveRequest("GetInstance", &oci.RequestError{Operation: "GetInstance", StatusCode: 404})
	recorder.ObserveRequest("GetInstance", &oci.RequestError{Operation: "GetInstance", StatusCode: 429})
	recorder.ObserveRequest("GetUser", &oci.RequestError{Operation: "GetUser", StatusCode: 401})
	recorder.ObserveRequest("GetUser", errors.New("dial tcp: timeout"))

	expected := `
# HELP gpuctl_api_requests_total Cloud API calls issued, by operation and result.
# TYPE gpuctl_api_requests_total counter
gpuctl_api_requests_total{operation="GetInstance",result="not_found"} 1
gpuctl_api_requests_total{operation="GetInstance",result="throttled"} 1
gpuctl_api_requests_total{operation="GetUser",result="auth"} 1
gpuctl_api_requests_total{operation="GetUser",result="error"} 1
gpuctl_api_requests_total{operation="ListVcns",result="success"} 2
`

	err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "gpuctl_api_requests_total")
	require.NoError(t, err)
}

func TestObserveLookupCountsHitsAndMisses(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewRecorder()
	recorder.ObserveLookup(true)
	recorder.ObserveLookup(false)
	recorder.ObserveLookup(true)

	expected := `
# HELP gpuctl_cache_lookups_total Local cache lookups, by hit or miss.
# TYPE gpuctl_cache_lookups_total counter
gpuctl_cache_lookups_total{result="hit"} 2
gpuctl_cache_lookups_total{result="miss"} 1
`

	err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "gpuctl_cache_lookups_total")
	require.NoError(t, err)
}

func TestSetTopologyHostsReplacesPreviousValues(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewRecorder()
	recorder.SetTopologyHosts(map[oci.LifecycleState]int{oci.StateActive: 3, oci.StateInactive: 1})
	recorder.SetTopologyHosts(map[oci.LifecycleState]int{oci.StateActive: 5})

	expected := `
# HELP gpuctl_topology_hosts Bare metal hosts of the last joined capacity topology, by lifecycle state.
# TYPE gpuctl_topology_hosts gauge
gpuctl_topology_hosts{state="active"} 5
`

	err := testutil.GatherAndCompare(recorder.Registry(), strings.NewReader(expected), "gpuctl_topology_hosts")
	require.NoError(t, err)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	recorder := metrics.NewRecorder()
	recorder.ObserveRequest("ListComputeCapacityTopologyComputeBareMetalHosts", nil)

	path := filepath.Join(t.TempDir(), "gpuctl.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data),
		`gpuctl_api_requests_total{operation="ListComputeCapacityTopologyComputeBareMetalHosts",result="success"} 1`)
}

func TestWriteTextfileRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	require.Error(t, metrics.NewRecorder().WriteTextfile("  "))
}
