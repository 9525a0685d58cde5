package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/imds"
)

// stubEnv replaces the process environment seen by the resolver. Tests using it must not
// run in parallel.
func stubEnv(t *testing.T, values map[string]string) {
	t.Helper()

	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		value, ok := values[key]

		return value, ok
	}

	t.Cleanup(func() { lookupEnv = original })
}

func missingConfigPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "absent.sh")
}

func regionFlags(t *testing.T, value string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("region", "", "")
	flags.String("tenancy", "", "")

	if value != "" {
		err := flags.Set("region", value)
		requireNoError(t, err)
	}

	return flags
}

type fakeMetadata struct {
	instance imds.Instance
	err      error
}

func (f fakeMetadata) Instance(context.Context) (imds.Instance, error) {
	return f.instance, f.err
}

func (f fakeMetadata) InstanceID(context.Context) (string, error) {
	return f.instance.ID, f.err
}

func TestResolveContextDefaultsWhenConfigMissing(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{configPath: missingConfigPath(t)})
	requireNoError(t, err)

	requireEqual(t, "auth", cfg.Auth, "api_key")
	requireEqual(t, "profile", cfg.Profile, defaultProfile)
	requireEqual(t, "cacheDir", cfg.CacheDir, defaultCacheDir)
	requireEqual(t, "cacheTTL", cfg.CacheTTL, cache.DefaultTTL)
	requireEqual(t, "concurrency", cfg.Concurrency, fanout.DefaultLimit)
	requireEqual(t, "requestsPerSecond", cfg.RequestsPerSecond, float64(defaultRequestsPerSecond))
	requireEqual(t, "tenancy", cfg.TenancyID, "")
}

func TestResolveContextReadsVariablesScript(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{configPath: "testdata/variables.sh"})
	requireNoError(t, err)

	requireEqual(t, "tenancy", cfg.TenancyID, "ocid1.tenancy.oc1..aaaatenancy")
	requireEqual(t, "compartment", cfg.CompartmentID, "ocid1.compartment.oc1..aaaacompartment")
	requireEqual(t, "region", cfg.Region, "us-ashburn-1")
	requireEqual(t, "ad", cfg.AvailabilityDomain, "kWVD:US-ASHBURN-AD-2")
	requireEqual(t, "shape", cfg.ShapeName, "BM.GPU.H100.8")
	requireEqual(t, "clusterSize", cfg.ClusterSize, int64(4))
}

func TestResolveContextReadsYAML(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{configPath: "testdata/config.yaml"})
	requireNoError(t, err)

	requireEqual(t, "tenancy", cfg.TenancyID, "ocid1.tenancy.oc1..yamltenancy")
	requireEqual(t, "region", cfg.Region, "eu-frankfurt-1")
	requireEqual(t, "computeCluster", cfg.ComputeClusterID, "ocid1.computecluster.oc1..yamlcluster")
	requireEqual(t, "clusterSize", cfg.ClusterSize, int64(2))
	requireEqual(t, "cacheTTL", cfg.CacheTTL, 90*time.Second)
	requireEqual(t, "concurrency", cfg.Concurrency, 3)
}

func TestResolveContextCompartmentDefaultsToTenancy(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{configPath: "testdata/config.yaml"})
	requireNoError(t, err)

	requireEqual(t, "compartment", cfg.CompartmentID, "ocid1.tenancy.oc1..yamltenancy")
}

func TestResolveContextRejectsMalformedFile(t *testing.T) {
	stubEnv(t, nil)

	_, err := resolveContext(context.Background(), resolveInput{configPath: "testdata/malformed.yaml"})
	if err == nil {
		t.Fatal("expected error for malformed configuration file")
	}
}

func TestResolveContextPrecedence(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		flag string
		want string
	}{
		{name: "file", want: "eu-frankfurt-1"},
		{name: "legacy env over file", env: map[string]string{"REGION": "uk-london-1"}, want: "uk-london-1"},
		{
			name: "prefixed env over legacy env",
			env:  map[string]string{"REGION": "uk-london-1", "GPUCTL_REGION": "ap-tokyo-1"},
			want: "ap-tokyo-1",
		},
		{
			name: "flag over env",
			env:  map[string]string{"GPUCTL_REGION": "ap-tokyo-1"},
			flag: "sa-saopaulo-1",
			want: "sa-saopaulo-1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubEnv(t, tc.env)

			cfg, err := resolveContext(context.Background(), resolveInput{
				configPath: "testdata/config.yaml",
				flags:      regionFlags(t, tc.flag),
			})
			requireNoError(t, err)

			requireEqual(t, "region", cfg.Region, tc.want)
		})
	}
}

func TestResolveContextIgnoresUnchangedFlags(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{
		configPath: "testdata/config.yaml",
		flags:      regionFlags(t, ""),
	})
	requireNoError(t, err)

	requireEqual(t, "tenancy", cfg.TenancyID, "ocid1.tenancy.oc1..yamltenancy")
	requireEqual(t, "region", cfg.Region, "eu-frankfurt-1")
}

func TestResolveContextConfigPathFromEnvironment(t *testing.T) {
	stubEnv(t, map[string]string{"GPUCTL_CONFIG": "testdata/variables.sh"})

	cfg, err := resolveContext(context.Background(), resolveInput{})
	requireNoError(t, err)

	requireEqual(t, "tenancy", cfg.TenancyID, "ocid1.tenancy.oc1..aaaatenancy")
}

func TestResolveContextAppliesInstanceMetadataBelowFile(t *testing.T) {
	stubEnv(t, nil)

	metadata := fakeMetadata{instance: imds.Instance{
		ID:                  "ocid1.instance.oc1..self",
		CompartmentID:       "ocid1.compartment.oc1..imds",
		TenancyID:           "ocid1.tenancy.oc1..imds",
		Region:              "iad",
		CanonicalRegionName: "us-ashburn-1",
		AvailabilityDomain:  "kWVD:US-ASHBURN-AD-1",
	}}

	cfg, err := resolveContext(context.Background(), resolveInput{
		configPath: missingConfigPath(t),
		useIMDS:    true,
		metadata:   metadata,
	})
	requireNoError(t, err)

	requireEqual(t, "region", cfg.Region, "us-ashburn-1")
	requireEqual(t, "compartment", cfg.CompartmentID, "ocid1.compartment.oc1..imds")
	requireEqual(t, "tenancy", cfg.TenancyID, "ocid1.tenancy.oc1..imds")
	requireEqual(t, "ad", cfg.AvailabilityDomain, "kWVD:US-ASHBURN-AD-1")

	cfg, err = resolveContext(context.Background(), resolveInput{
		configPath: "testdata/config.yaml",
		useIMDS:    true,
		metadata:   metadata,
	})
	requireNoError(t, err)

	requireEqual(t, "file region", cfg.Region, "eu-frankfurt-1")
	requireEqual(t, "metadata compartment", cfg.CompartmentID, "ocid1.compartment.oc1..imds")
}

func TestResolveContextToleratesMetadataFailure(t *testing.T) {
	stubEnv(t, nil)

	cfg, err := resolveContext(context.Background(), resolveInput{
		configPath: "testdata/variables.sh",
		useIMDS:    true,
		metadata:   fakeMetadata{err: errors.New("link-local address unreachable")},
	})
	requireNoError(t, err)

	requireEqual(t, "region", cfg.Region, "us-ashburn-1")
}

func TestRequireNamesFirstMissingKey(t *testing.T) {
	t.Parallel()

	cfg := Context{TenancyID: "ocid1.tenancy.oc1..x", CompartmentID: "ocid1.compartment.oc1..y"}

	requireNoError(t, cfg.Require(keyTenancyID, keyCompartmentID))

	err := cfg.Require(keyTenancyID, keyAvailabilityDomain, keyComputeClusterID, keyClusterSize)
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}

	var missing *MissingConfigurationError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingConfigurationError, got %T", err)
	}

	requireEqual(t, "key", missing.Key, keyAvailabilityDomain)
}

func TestRequireTreatsNonPositiveSizeAsMissing(t *testing.T) {
	t.Parallel()

	var missing *MissingConfigurationError
	if !errors.As(Context{}.Require(keyClusterSize), &missing) {
		t.Fatal("expected a zero cluster size to be reported missing")
	}

	requireNoError(t, Context{ClusterSize: 1}.Require(keyClusterSize))
}

func TestParseTTL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Duration
	}{
		{in: "", want: time.Hour},
		{in: "120", want: 2 * time.Minute},
		{in: "15m", want: 15 * time.Minute},
		{in: "soon", want: time.Hour},
	}

	for _, tc := range cases {
		requireEqual(t, "ttl "+tc.in, parseTTL(tc.in, time.Hour), tc.want)
	}
}

func TestEnvBool(t *testing.T) {
	stubEnv(t, map[string]string{"ON": "1", "YES": "true", "OFF": "0", "NO": "False"})

	requireEqual(t, "ON", envBool("ON"), true)
	requireEqual(t, "YES", envBool("YES"), true)
	requireEqual(t, "OFF", envBool("OFF"), false)
	requireEqual(t, "NO", envBool("NO"), false)
	requireEqual(t, "UNSET", envBool("UNSET"), false)
}

func requireEqual[T comparable](t *testing.T, field string, got, want T) {
	t.Helper()

	if got != want {
		t.Fatalf("%s: got %v, want %v", field, got, want)
	}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
