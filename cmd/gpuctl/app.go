package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/metrics"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/policy"
	"oci-gpu-toolkit/pkg/render"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// cloudAPI is every cloud call the commands issue. *oci.Client implements it.
type cloudAPI interface {
	policy.API

	ListCapacityTopologies(ctx context.Context, compartmentID string) (oci.Page[oci.CapacityTopology], error)
	FirstCapacityTopology(ctx context.Context, compartmentID string) (oci.CapacityTopology, error)
	ListHPCIslands(ctx context.Context, scope oci.TopologyScope) (oci.Page[oci.HPCIsland], error)
	ListNetworkBlocks(ctx context.Context, scope oci.TopologyScope) (oci.Page[oci.NetworkBlock], error)
	ListBareMetalHosts(ctx context.Context, scope oci.TopologyScope) (oci.Page[oci.BareMetalHost], error)

	ListComputeClusters(ctx context.Context, compartmentID, ad string) (oci.Page[oci.ComputeCluster], error)
	CreateComputeCluster(ctx context.Context, input oci.CreateComputeClusterInput) (oci.ComputeCluster, error)
	ListGPUMemoryFabrics(ctx context.Context, compartmentID, ad string) (oci.Page[oci.GPUMemoryFabric], error)
	ListGPUMemoryClusters(ctx context.Context, compartmentID, ad string) (oci.Page[oci.GPUMemoryCluster], error)
	CreateGPUMemoryCluster(ctx context.Context, input oci.CreateGPUMemoryClusterInput) (oci.GPUMemoryCluster, error)

	ListVCNs(ctx context.Context, compartmentID string) (oci.Page[oci.VCN], error)
	ListSubnets(ctx context.Context, compartmentID, vcnID string) (oci.Page[oci.Subnet], error)
	ListNSGs(ctx context.Context, compartmentID, vcnID string) (oci.Page[oci.NSG], error)
	ListNSGRules(ctx context.Context, nsgID string) (oci.Page[oci.SecurityRule], error)

	ListOKEClusters(ctx context.Context, compartmentID string) (oci.Page[oci.OKECluster], error)
	ListImageShapeCompatibility(ctx context.Context, imageID string) (oci.Page[oci.ImageShapeCompatibility], error)
	AddImageShapeCompatibility(ctx context.Context, imageID, shape string) (oci.ImageShapeCompatibility, error)

	ListAnnouncements(ctx context.Context, tenancyID string) (oci.Page[oci.Announcement], error)
	GetAnnouncement(ctx context.Context, announcementID string) (oci.AnnouncementDetail, error)

	GetInstance(ctx context.Context, instanceID string) (oci.Instance, error)
	GetBootVolume(ctx context.Context, instance oci.Instance) (oci.BootVolume, error)

	ListDomains(ctx context.Context, tenancyID string) (oci.Page[oci.IdentityDomain], error)
	ListLegacyUsers(ctx context.Context, tenancyID string) (oci.Page[oci.DirectoryUser], error)
	ListDomainUsers(ctx context.Context, domainURL, filter string) (oci.Page[oci.DirectoryUser], error)
}

type globalOptions struct {
	configPath  string
	logLevel    string
	logFile     string
	output      string
	metricsFile string
	jsonOutput  bool
	refresh     bool
	noColor     bool
	useIMDS     bool
	strict      bool
	debug       bool
}

// app is the state of one invocation, shared by every command.
type app struct {
	deps   runDeps
	stdout io.Writer
	stderr io.Writer
	opts   globalOptions

	started  bool
	logger   *zap.Logger
	closeLog func()
	cfg      Context
	metadata metadataSource
	cache    *cache.Store
	metrics  *metrics.Recorder
	client   cloudAPI
}

func newApp(deps runDeps, stdout, stderr io.Writer) *app {
	return &app{deps: deps, stdout: stdout, stderr: stderr, metrics: metrics.NewRecorder()}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gpuctl",
		Short:         "Inspect and provision OCI GPU cluster resources",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "configuration file: YAML, or a variables.sh style KEY=value script")
	flags.StringVar(&a.opts.logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&a.opts.logFile, "log-file", "", "also append logs to this rotated file, e.g. logs/gpuctl.log")
	flags.StringVarP(&a.opts.output, "output", "o", outputTable, "output format (table, json, yaml)")
	flags.BoolVar(&a.opts.jsonOutput, "json", false, "shorthand for --output json")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	flags.BoolVar(&a.opts.refresh, "refresh", false, "bypass cached listings and fetch again")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "disable coloured output")
	flags.BoolVar(&a.opts.useIMDS, "imds", false, "read region, compartment and AD from instance metadata")
	flags.BoolVar(&a.opts.strict, "strict", false, "fail on dangling parent references instead of listing orphans")
	flags.BoolVar(&a.opts.debug, "debug", false, "shorthand for --log-level debug")
	flags.String("tenancy", "", "tenancy OCID")
	flags.String("compartment", "", "compartment OCID (defaults to the tenancy)")
	flags.String("region", "", "region identifier")
	flags.String("ad", "", "availability domain")
	flags.String("profile", "", "OCI config file profile")
	flags.String("oci-config", "", "OCI config file path")
	flags.String("auth", "", "authentication (api_key, instance_principal)")
	flags.String("cache-dir", "", "cache directory")
	flags.Int("concurrency", 0, "parallel detail fetches")

	root.AddCommand(
		newTopologyCommand(a),
		newComputeClustersCommand(a),
		newGPUMemoryCommand(a),
		newNetworkCommand(a),
		newCompartmentsCommand(a),
		newOKECommand(a),
		newImagesCommand(a),
		newAnnouncementsCommand(a),
		newInstanceCommand(a),
		newPoliciesCommand(a),
		newUsersCommand(a),
		newCacheCommand(a),
		newVersionCommand(a),
	)

	return root
}

// setup runs once flags are parsed: it builds the logger, resolves the configuration and
// prepares the cache. The cloud client is built on first use.
func (a *app) setup(cmd *cobra.Command) error {
	a.started = true

	output, err := a.outputFormat()
	if err != nil {
		return err
	}

	a.opts.output = output

	logger, closeLog, err := a.deps.newLogger(logLevelFor(a.opts.logLevel, a.opts.debug), a.opts.logFile)
	if err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}

	a.logger = logger
	a.closeLog = closeLog

	if a.opts.useIMDS || envBool(envUseIMDS) {
		a.metadata = a.deps.newMetadata(logger)
	}

	cfg, err := resolveContext(commandContext(cmd), resolveInput{
		configPath: a.opts.configPath,
		useIMDS:    a.opts.useIMDS,
		metadata:   a.metadata,
		flags:      cmd.Flags(),
		logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a.cfg = cfg
	a.cache = cache.New(cache.Config{
		Dir:      cfg.CacheDir,
		TTL:      cfg.CacheTTL,
		Refresh:  a.opts.refresh,
		Now:      a.deps.now,
		Observer: a.metrics,
		Logger:   logger,
	})

	info := a.deps.currentBuildInfo()
	logger.Debug("starting gpuctl",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.String("command", cmd.CommandPath()),
		zap.String("region", cfg.Region),
		zap.String("cacheDir", cfg.CacheDir),
	)

	return nil
}

func (a *app) outputFormat() (string, error) {
	if a.opts.jsonOutput {
		return outputJSON, nil
	}

	format := strings.ToLower(strings.TrimSpace(a.opts.output))
	switch format {
	case "", outputTable:
		return outputTable, nil
	case outputJSON, outputYAML:
		return format, nil
	default:
		return "", usagef("unsupported output format %q (supported: %s, %s, %s)",
			a.opts.output, outputTable, outputJSON, outputYAML)
	}
}

// api returns the process-wide cloud client, building it on first use.
//
//nolint:ireturn // returns the command-layer interface
func (a *app) api() (cloudAPI, error) {
	if a.client != nil {
		return a.client, nil
	}

	client, err := a.deps.newAPI(a.cfg, a.logger, a.metrics)
	if err != nil {
		return nil, err
	}

	a.client = client

	return client, nil
}

func (a *app) renderOptions() render.Options {
	color := !a.opts.noColor && envString("NO_COLOR", "") == ""
	if color && a.deps.isTerminal != nil {
		color = a.deps.isTerminal(a.stdout)
	}

	return render.Options{Color: color}
}

// emit writes v as JSON or YAML, or calls table for the human format.
func (a *app) emit(v any, table func(w io.Writer, opts render.Options) error) error {
	switch a.opts.output {
	case outputJSON:
		return render.JSON(a.stdout, v)
	case outputYAML:
		return render.YAML(a.stdout, v)
	default:
		return table(a.stdout, a.renderOptions())
	}
}

func (a *app) close() {
	if a.opts.metricsFile != "" && a.started {
		err := a.metrics.WriteTextfile(a.opts.metricsFile)
		if err != nil {
			_, _ = fmt.Fprintf(a.stderr, "WARNING: %v\n", err)
		}
	}

	if a.closeLog != nil {
		a.closeLog()
	}
}

// notice writes a status line to stderr so stdout stays machine readable.
func (a *app) notice(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, format+"\n", args...)
}

// instanceMetadata returns the metadata client, creating it when --imds was not given.
//
//nolint:ireturn // substitutable in tests
func (a *app) instanceMetadata() metadataSource {
	if a.metadata == nil {
		a.metadata = a.deps.newMetadata(a.logger)
	}

	return a.metadata
}
