package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/render"
	"oci-gpu-toolkit/pkg/topology"
)

const instanceSelf = "self"

type treeFlags struct {
	hosts bool
	state string
	depth int
}

func (f *treeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.hosts, "hosts", false, "list bare metal hosts under their network blocks")
	cmd.Flags().StringVar(&f.state, "state", "", "only show hosts in this lifecycle state")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "tree depth: 1 islands, 2 blocks, 3 hosts")
}

func (f *treeFlags) options() (topology.TreeOptions, error) {
	opts := topology.TreeOptions{ShowHosts: f.hosts, Depth: f.depth}

	if f.depth < 0 || f.depth > topology.DepthHosts {
		return opts, usagef("--depth must be between 0 and %d", topology.DepthHosts)
	}

	if strings.TrimSpace(f.state) != "" {
		state, err := oci.ParseLifecycleState(f.state)
		if err != nil {
			return opts, &usageError{err: err}
		}

		opts.State = &state
	}

	return opts, nil
}

func newTopologyCommand(a *app) *cobra.Command {
	var (
		tree     treeFlags
		summary  bool
		instance string
		export   string
	)

	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Show the capacity topology: HPC islands, network blocks and bare metal hosts",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			switch {
			case export != "":
				return a.exportTopology(ctx, export)
			case instance != "":
				return a.findInstance(ctx, instance)
			case summary:
				return a.topologySummary(ctx)
			default:
				return a.topologyTree(ctx, tree)
			}
		},
	}

	tree.register(cmd)
	cmd.Flags().BoolVar(&summary, "summary", false, "print counts instead of the tree")
	cmd.Flags().StringVar(&instance, "instance", "", "locate an instance OCID, or \"self\"")
	cmd.Flags().StringVar(&export, "export", "", "write the raw listings as JSON to this file (- for stdout)")

	cmd.AddCommand(
		newTopologyTreeCommand(a),
		&cobra.Command{
			Use:   "summary",
			Short: "Count islands, blocks and hosts by lifecycle state",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.topologySummary(commandContext(cmd))
			},
		},
		newTopologyFindCommand(a),
		newTopologyExportCommand(a),
		&cobra.Command{
			Use:   "unassigned",
			Short: "List hosts that belong to no network block",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.unassignedHosts(commandContext(cmd))
			},
		},
	)

	return cmd
}

func newTopologyTreeCommand(a *app) *cobra.Command {
	var tree treeFlags

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render the island, block and host hierarchy",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.topologyTree(commandContext(cmd), tree)
		},
	}

	tree.register(cmd)

	return cmd
}

func newTopologyFindCommand(a *app) *cobra.Command {
	var instance string

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Locate the host, block and island running an instance",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(instance) == "" {
				return usagef("--instance is required")
			}

			return a.findInstance(commandContext(cmd), instance)
		},
	}

	cmd.Flags().StringVar(&instance, "instance", "", "instance OCID, or \"self\" for this machine")

	return cmd
}

func newTopologyExportCommand(a *app) *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the raw topology listings as one JSON document",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.exportTopology(commandContext(cmd), export)
		},
	}

	cmd.Flags().StringVar(&export, "export", "-", "destination file (- for stdout)")

	return cmd
}

// loadTopology fetches, through the cache, the first capacity topology of the compartment and
// its three listings, then joins them.
func (a *app) loadTopology(ctx context.Context) (*topology.Model, error) {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return nil, err
	}

	api, err := a.api()
	if err != nil {
		return nil, err
	}

	compartmentID := a.cfg.CompartmentID
	ad := a.cfg.AvailabilityDomain

	capacity, err := cache.Fetch(ctx, a.cache, cache.Key("capacity-topology", compartmentID),
		func(ctx context.Context) (oci.CapacityTopology, error) {
			return api.FirstCapacityTopology(ctx, compartmentID)
		})
	if err != nil {
		return nil, err
	}

	scope := oci.TopologyScope{CompartmentID: compartmentID, AvailabilityDomain: ad, TopologyID: capacity.ID}

	islands, err := cache.Fetch(ctx, a.cache, cache.Key("hpc-islands", compartmentID, capacity.ID, ad),
		func(ctx context.Context) (oci.Page[oci.HPCIsland], error) {
			return api.ListHPCIslands(ctx, scope)
		})
	if err != nil {
		return nil, err
	}

	blocks, err := cache.Fetch(ctx, a.cache, cache.Key("network-blocks", compartmentID, capacity.ID, ad),
		func(ctx context.Context) (oci.Page[oci.NetworkBlock], error) {
			return api.ListNetworkBlocks(ctx, scope)
		})
	if err != nil {
		return nil, err
	}

	hosts, err := cache.Fetch(ctx, a.cache, cache.Key("bare-metal-hosts", compartmentID, capacity.ID, ad),
		func(ctx context.Context) (oci.Page[oci.BareMetalHost], error) {
			return api.ListBareMetalHosts(ctx, scope)
		})
	if err != nil {
		return nil, err
	}

	model, err := topology.Build(topology.Snapshot{
		Topology: capacity,
		Islands:  islands.Items(),
		Blocks:   blocks.Items(),
		Hosts:    hosts.Items(),
	}, topology.BuildOptions{Strict: a.opts.strict})
	if err != nil {
		return nil, err
	}

	summary := model.Summary()
	a.metrics.SetTopologyHosts(summary.HostsByState)
	a.logger.Debug("joined capacity topology",
		zap.String("topology", capacity.ID),
		zap.Int("islands", summary.Islands.Total),
		zap.Int("blocks", summary.Blocks.Total),
		zap.Int("hosts", summary.Hosts.Total),
		zap.Int("orphanBlocks", summary.OrphanBlocks),
		zap.Int("orphanHosts", summary.OrphanHosts),
	)

	return model, nil
}

func (a *app) topologyTree(ctx context.Context, flags treeFlags) error {
	opts, err := flags.options()
	if err != nil {
		return err
	}

	model, err := a.loadTopology(ctx)
	if err != nil {
		return err
	}

	tree := model.Tree(opts)

	return a.emit(tree, func(w io.Writer, ropts render.Options) error {
		return render.TopologyTree(w, tree, ropts)
	})
}

func (a *app) topologySummary(ctx context.Context) error {
	model, err := a.loadTopology(ctx)
	if err != nil {
		return err
	}

	summary := model.Summary()

	return a.emit(summary, func(w io.Writer, opts render.Options) error {
		render.TopologySummary(w, summary, opts)

		return nil
	})
}

func (a *app) findInstance(ctx context.Context, instanceID string) error {
	if strings.EqualFold(strings.TrimSpace(instanceID), instanceSelf) {
		resolved, err := a.instanceMetadata().InstanceID(ctx)
		if err != nil {
			return fmt.Errorf("resolve local instance OCID: %w", err)
		}

		instanceID = resolved
	}

	model, err := a.loadTopology(ctx)
	if err != nil {
		return err
	}

	location, err := model.FindInstance(instanceID)
	if err != nil {
		return err
	}

	return a.emit(location, func(w io.Writer, opts render.Options) error {
		render.Location(w, instanceID, location, opts)

		return nil
	})
}

func (a *app) exportTopology(ctx context.Context, destination string) error {
	model, err := a.loadTopology(ctx)
	if err != nil {
		return err
	}

	if destination == "" || destination == "-" {
		return render.ExportJSON(a.stdout, model.Snapshot(), a.deps.now())
	}

	file, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	err = render.ExportJSON(file, model.Snapshot(), a.deps.now())

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close export file: %w", closeErr)
	}

	if err != nil {
		return err
	}

	a.notice("exported capacity topology to %s", destination)

	return nil
}

func (a *app) unassignedHosts(ctx context.Context) error {
	model, err := a.loadTopology(ctx)
	if err != nil {
		return err
	}

	hosts := model.UnassignedHosts()

	return a.emit(oci.Page[oci.BareMetalHost]{Data: hosts}, func(w io.Writer, opts render.Options) error {
		rows := make([][]string, 0, len(hosts))
		for _, host := range hosts {
			rows = append(rows, []string{
				host.ID,
				opts.State(host.LifecycleState, host.RawState),
				host.InstanceShape,
				derefOr(host.InstanceID, "-"),
				derefOr(host.LifecycleDetails, ""),
			})
		}

		render.Table(w, []string{"Host", "State", "Shape", "Instance", "Details"}, rows, opts)

		return nil
	})
}

func derefOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}

	return *value
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usagef("%s takes no arguments, got %q", cmd.CommandPath(), args)
	}

	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}

		return nil
	}
}
