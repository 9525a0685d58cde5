package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/render"
)

var errDuplicateName = errors.New("a resource with this display name already exists")

func newComputeClustersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compute-clusters",
		Aliases: []string{"compute-cluster"},
		Short:   "List or create compute clusters",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List compute clusters of the compartment",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listComputeClusters(commandContext(cmd))
			},
		},
		newCreateComputeClusterCommand(a),
	)

	return cmd
}

func (a *app) computeClusters(ctx context.Context, api cloudAPI) ([]oci.ComputeCluster, error) {
	compartmentID, ad := a.cfg.CompartmentID, a.cfg.AvailabilityDomain

	page, err := cache.Fetch(ctx, a.cache, cache.Key("compute-clusters", compartmentID, ad),
		func(ctx context.Context) (oci.Page[oci.ComputeCluster], error) {
			return api.ListComputeClusters(ctx, compartmentID, ad)
		})
	if err != nil {
		return nil, err
	}

	return page.Items(), nil
}

func (a *app) listComputeClusters(ctx context.Context) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	clusters, err := a.computeClusters(ctx, api)
	if err != nil {
		return err
	}

	return a.emit(oci.Page[oci.ComputeCluster]{Data: clusters}, func(w io.Writer, opts render.Options) error {
		rows := lo.Map(clusters, func(cluster oci.ComputeCluster, _ int) []string {
			return []string{
				cluster.DisplayName,
				opts.State(cluster.LifecycleState, cluster.RawState),
				cluster.AvailabilityDomain,
				formatTime(cluster.TimeCreated),
				cluster.ID,
			}
		})
		render.Table(w, []string{"Name", "State", "Availability Domain", "Created", "OCID"}, rows, opts)

		return nil
	})
}

func newCreateComputeClusterCommand(a *app) *cobra.Command {
	var (
		name           string
		allowDuplicate bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a compute cluster in the configured availability domain",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyCompartmentID, keyAvailabilityDomain)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			if name != "" && !allowDuplicate {
				err = a.ensureUniqueClusterName(ctx, api, name)
				if err != nil {
					return err
				}
			}

			created, err := api.CreateComputeCluster(ctx, oci.CreateComputeClusterInput{
				CompartmentID:      a.cfg.CompartmentID,
				AvailabilityDomain: a.cfg.AvailabilityDomain,
				DisplayName:        name,
			})
			if err != nil {
				return err
			}

			a.invalidate(cache.Key("compute-clusters", a.cfg.CompartmentID, a.cfg.AvailabilityDomain))
			a.logger.Info("created compute cluster", zap.String("id", created.ID))

			return a.emit(created, func(w io.Writer, opts render.Options) error {
				return describe(w, opts, [][2]string{
					{"Name", created.DisplayName},
					{"State", opts.State(created.LifecycleState, created.RawState)},
					{"Availability Domain", created.AvailabilityDomain},
					{"OCID", created.ID},
				})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "create even if a cluster with this name exists")

	return cmd
}

// ensureUniqueClusterName reads the live listing so a create repeated after an ambiguous
// failure does not provision a second cluster.
func (a *app) ensureUniqueClusterName(ctx context.Context, api cloudAPI, name string) error {
	page, err := api.ListComputeClusters(ctx, a.cfg.CompartmentID, a.cfg.AvailabilityDomain)
	if err != nil {
		return err
	}

	existing, found := lo.Find(page.Items(), func(cluster oci.ComputeCluster) bool {
		return cluster.DisplayName == name && cluster.LifecycleState != oci.StateDeleted
	})
	if found {
		return fmt.Errorf("%w: compute cluster %q is %s (%s); pass --allow-duplicate to create another",
			errDuplicateName, name, existing.LifecycleState, existing.ID)
	}

	return nil
}

func newGPUMemoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpu-memory",
		Short: "Inspect GPU memory fabrics and clusters, or create a cluster",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "fabrics",
			Short: "List GPU memory fabrics",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listGPUMemoryFabrics(commandContext(cmd))
			},
		},
		&cobra.Command{
			Use:   "clusters",
			Short: "List GPU memory clusters",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listGPUMemoryClusters(commandContext(cmd))
			},
		},
		newCreateGPUMemoryClusterCommand(a),
	)

	return cmd
}

func (a *app) listGPUMemoryFabrics(ctx context.Context) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	compartmentID, ad := a.cfg.CompartmentID, a.cfg.AvailabilityDomain

	page, err := cache.Fetch(ctx, a.cache, cache.Key("gpu-memory-fabrics", compartmentID, ad),
		func(ctx context.Context) (oci.Page[oci.GPUMemoryFabric], error) {
			return api.ListGPUMemoryFabrics(ctx, compartmentID, ad)
		})
	if err != nil {
		return err
	}

	return a.emit(page, func(w io.Writer, opts render.Options) error {
		rows := lo.Map(page.Items(), func(fabric oci.GPUMemoryFabric, _ int) []string {
			return []string{
				fabric.DisplayName,
				opts.State(fabric.LifecycleState, fabric.RawState),
				fabric.FabricHealth,
				fmt.Sprintf("%d/%d", fabric.HealthyHostCount, fabric.TotalHostCount),
				strconv.FormatInt(fabric.AvailableHostCount, 10),
				fabric.ID,
			}
		})
		render.Table(w, []string{"Name", "State", "Health", "Healthy/Total", "Available", "OCID"}, rows, opts)

		return nil
	})
}

func (a *app) listGPUMemoryClusters(ctx context.Context) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	compartmentID, ad := a.cfg.CompartmentID, a.cfg.AvailabilityDomain

	page, err := cache.Fetch(ctx, a.cache, cache.Key("gpu-memory-clusters", compartmentID, ad),
		func(ctx context.Context) (oci.Page[oci.GPUMemoryCluster], error) {
			return api.ListGPUMemoryClusters(ctx, compartmentID, ad)
		})
	if err != nil {
		return err
	}

	return a.emit(page, func(w io.Writer, opts render.Options) error {
		rows := lo.Map(page.Items(), func(cluster oci.GPUMemoryCluster, _ int) []string {
			return []string{
				cluster.DisplayName,
				opts.State(cluster.LifecycleState, cluster.RawState),
				strconv.FormatInt(cluster.Size, 10),
				cluster.GPUMemoryFabricID,
				cluster.ID,
			}
		})
		render.Table(w, []string{"Name", "State", "Size", "Fabric", "OCID"}, rows, opts)

		return nil
	})
}

func newCreateGPUMemoryClusterCommand(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create-cluster",
		Short: "Create a GPU memory cluster from an instance configuration",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(
				keyCompartmentID, keyAvailabilityDomain, keyComputeClusterID, keyInstanceConfigID, keyClusterSize,
			)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			created, err := api.CreateGPUMemoryCluster(ctx, oci.CreateGPUMemoryClusterInput{
				CompartmentID:           a.cfg.CompartmentID,
				AvailabilityDomain:      a.cfg.AvailabilityDomain,
				DisplayName:             name,
				ComputeClusterID:        a.cfg.ComputeClusterID,
				InstanceConfigurationID: a.cfg.InstanceConfigurationID,
				GPUMemoryFabricID:       a.cfg.GPUMemoryFabricID,
				Size:                    a.cfg.ClusterSize,
			})
			if err != nil {
				return err
			}

			a.invalidate(cache.Key("gpu-memory-clusters", a.cfg.CompartmentID, a.cfg.AvailabilityDomain))
			a.logger.Info("created GPU memory cluster", zap.String("id", created.ID))

			return a.emit(created, func(w io.Writer, opts render.Options) error {
				return describe(w, opts, [][2]string{
					{"Name", created.DisplayName},
					{"State", opts.State(created.LifecycleState, created.RawState)},
					{"Size", strconv.FormatInt(created.Size, 10)},
					{"Compute Cluster", created.ComputeClusterID},
					{"OCID", created.ID},
				})
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().String("compute-cluster", "", "compute cluster OCID")
	cmd.Flags().String("instance-config", "", "instance configuration OCID")
	cmd.Flags().String("fabric", "", "GPU memory fabric OCID")
	cmd.Flags().Int64("size", 0, "number of instances")

	return cmd
}

func newImagesCommand(a *app) *cobra.Command {
	compat := &cobra.Command{
		Use:   "compat",
		Short: "Image to shape compatibility entries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the shapes an image may run on",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyImageID)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			imageID := a.cfg.ImageID

			page, err := cache.Fetch(ctx, a.cache, cache.Key("image-shape-compatibility", imageID),
				func(ctx context.Context) (oci.Page[oci.ImageShapeCompatibility], error) {
					return api.ListImageShapeCompatibility(ctx, imageID)
				})
			if err != nil {
				return err
			}

			return a.emit(page, func(w io.Writer, opts render.Options) error {
				rows := lo.Map(page.Items(), func(entry oci.ImageShapeCompatibility, _ int) []string {
					return []string{entry.Shape}
				})
				render.Table(w, []string{"Shape"}, rows, opts)

				return nil
			})
		},
	}
	list.Flags().String("image", "", "image OCID")

	add := &cobra.Command{
		Use:   "add",
		Short: "Allow an image to run on a shape",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyImageID, keyShapeName)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			entry, err := api.AddImageShapeCompatibility(ctx, a.cfg.ImageID, a.cfg.ShapeName)
			if err != nil {
				return err
			}

			a.invalidate(cache.Key("image-shape-compatibility", a.cfg.ImageID))
			a.notice("image %s is compatible with %s", entry.ImageID, entry.Shape)

			return nil
		},
	}
	add.Flags().String("image", "", "image OCID")
	add.Flags().String("shape", "", "shape name, e.g. BM.GPU.H100.8")

	compat.AddCommand(list, add)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Custom image helpers",
	}
	cmd.AddCommand(compat)

	return cmd
}

type instanceReport struct {
	Instance   oci.Instance    `json:"instance"   yaml:"instance"`
	BootVolume *oci.BootVolume `json:"bootVolume" yaml:"bootVolume"`
}

func newInstanceCommand(a *app) *cobra.Command {
	show := &cobra.Command{
		Use:   "show INSTANCE_OCID",
		Short: "Show an instance and its boot volume",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			api, err := a.api()
			if err != nil {
				return err
			}

			instance, err := api.GetInstance(ctx, args[0])
			if err != nil {
				return err
			}

			volume, err := api.GetBootVolume(ctx, instance)
			if err != nil {
				return err
			}

			report := instanceReport{Instance: instance, BootVolume: &volume}

			return a.emit(report, func(w io.Writer, opts render.Options) error {
				return describe(w, opts, [][2]string{
					{"Name", instance.DisplayName},
					{"State", opts.State(instance.LifecycleState, instance.RawState)},
					{"Shape", instance.Shape},
					{"Availability Domain", instance.AvailabilityDomain},
					{"Fault Domain", instance.FaultDomain},
					{"Image", instance.ImageID},
					{"Boot Volume", fmt.Sprintf("%s (%d GB, %d VPUs/GB)", volume.DisplayName, volume.SizeInGBs, volume.VPUsPerGB)},
					{"Boot Volume OCID", volume.ID},
					{"OCID", instance.ID},
				})
			})
		},
	}

	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Compute instance details",
	}
	cmd.AddCommand(show)

	return cmd
}

// describe prints a two column key/value table.
func describe(w io.Writer, opts render.Options, pairs [][2]string) error {
	rows := lo.Map(pairs, func(pair [2]string, _ int) []string { return []string{pair[0], pair[1]} })
	render.Table(w, []string{"Field", "Value"}, rows, opts)

	return nil
}

func (a *app) invalidate(key string) {
	err := a.cache.Invalidate(key)
	if err != nil {
		a.logger.Warn("failed to invalidate cache entry", zap.String("key", key), zap.Error(err))
	}
}

func formatTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}

	return value.UTC().Format(time.RFC3339)
}
