// Package metrics records run statistics of a gpuctl invocation and writes them in the
// Prometheus text format for the node exporter textfile collector.
package metrics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"oci-gpu-toolkit/pkg/oci"
)

const namespace = "gpuctl"

// Request results used as the result label.
const (
	ResultSuccess   = "success"
	ResultNotFound  = "not_found"
	ResultThrottled = "throttled"
	ResultAuth      = "auth"
	ResultError     = "error"
)

var errEmptyPath = errors.New("metrics: textfile path is empty")

// Recorder owns a private registry. It satisfies oci.Observer and cache.Observer.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	lookups  *prometheus.CounterVec
	hosts    *prometheus.GaugeVec
}

// NewRecorder registers the gpuctl collectors on a fresh registry.
func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Cloud API calls issued, by operation and result.",
		}, []string{"operation", "result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Local cache lookups, by hit or miss.",
		}, []string{"result"}),
		hosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_hosts",
			Help:      "Bare metal hosts of the last joined capacity topology, by lifecycle state.",
		}, []string{"state"}),
	}

	recorder.registry.MustRegister(recorder.requests, recorder.lookups, recorder.hosts)

	return recorder
}

// Registry exposes the underlying gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRequest counts one API call.
func (r *Recorder) ObserveRequest(operation string, err error) {
	r.requests.WithLabelValues(operation, classify(err)).Inc()
}

// ObserveLookup counts one cache lookup.
func (r *Recorder) ObserveLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	r.lookups.WithLabelValues(result).Inc()
}

// SetTopologyHosts replaces the per-state host gauge.
func (r *Recorder) SetTopologyHosts(byState map[oci.LifecycleState]int) {
	r.hosts.Reset()

	for state, count := range byState {
		r.hosts.WithLabelValues(strings.ToLower(string(state))).Set(float64(count))
	}
}

// WriteTextfile writes every collected metric to path. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return errEmptyPath
	}

	err := prometheus.WriteToTextfile(path, r.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}

func classify(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case oci.IsNotFound(err):
		return ResultNotFound
	case oci.IsThrottled(err):
		return ResultThrottled
	case oci.IsAuth(err):
		return ResultAuth
	default:
		return ResultError
	}
}
