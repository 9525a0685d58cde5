package main

import (
	"context"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/render"
	"oci-gpu-toolkit/pkg/topology"
)

func newNetworkCommand(a *app) *cobra.Command {
	var vcnID string

	cmd := &cobra.Command{
		Use:   "network",
		Short: "VCNs, subnets and network security groups",
	}
	cmd.PersistentFlags().StringVar(&vcnID, "vcn", "", "restrict subnets and NSGs to one VCN")

	var withRules bool

	nsgs := &cobra.Command{
		Use:   "nsgs",
		Short: "List network security groups, optionally with their rules",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listNSGs(commandContext(cmd), vcnID, withRules)
		},
	}
	nsgs.Flags().BoolVar(&withRules, "rules", false, "fetch and print the rules of every group")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "vcns",
			Short: "List virtual cloud networks",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listVCNs(commandContext(cmd))
			},
		},
		&cobra.Command{
			Use:   "subnets",
			Short: "List subnets",
			Args:  noArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.listSubnets(commandContext(cmd), vcnID)
			},
		},
		nsgs,
	)

	return cmd
}

func (a *app) listVCNs(ctx context.Context) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	compartmentID := a.cfg.CompartmentID

	page, err := cache.Fetch(ctx, a.cache, cache.Key("vcns", compartmentID),
		func(ctx context.Context) (oci.Page[oci.VCN], error) {
			return api.ListVCNs(ctx, compartmentID)
		})
	if err != nil {
		return err
	}

	return a.emit(page, func(w io.Writer, opts render.Options) error {
		rows := lo.Map(page.Items(), func(vcn oci.VCN, _ int) []string {
			return []string{vcn.DisplayName, strings.Join(vcn.CIDRBlocks, ", "), opts.State(vcn.LifecycleState, vcn.RawState), vcn.ID}
		})
		render.Table(w, []string{"Name", "CIDR Blocks", "State", "OCID"}, rows, opts)

		return nil
	})
}

func (a *app) listSubnets(ctx context.Context, vcnID string) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	compartmentID := a.cfg.CompartmentID

	page, err := cache.Fetch(ctx, a.cache, cache.Key("subnets", compartmentID, vcnID),
		func(ctx context.Context) (oci.Page[oci.Subnet], error) {
			return api.ListSubnets(ctx, compartmentID, vcnID)
		})
	if err != nil {
		return err
	}

	return a.emit(page, func(w io.Writer, opts render.Options) error {
		rows := lo.Map(page.Items(), func(subnet oci.Subnet, _ int) []string {
			access := "private"
			if subnet.Public {
				access = "public"
			}

			scope := subnet.AvailabilityDomain
			if scope == "" {
				scope = "regional"
			}

			return []string{
				subnet.DisplayName,
				subnet.CIDRBlock,
				access,
				scope,
				opts.State(subnet.LifecycleState, subnet.RawState),
				subnet.ID,
			}
		})
		render.Table(w, []string{"Name", "CIDR", "Access", "Scope", "State", "OCID"}, rows, opts)

		return nil
	})
}

func (a *app) listNSGs(ctx context.Context, vcnID string, withRules bool) error {
	err := a.cfg.Require(keyCompartmentID)
	if err != nil {
		return err
	}

	api, err := a.api()
	if err != nil {
		return err
	}

	compartmentID := a.cfg.CompartmentID

	page, err := cache.Fetch(ctx, a.cache, cache.Key("nsgs", compartmentID, vcnID),
		func(ctx context.Context) (oci.Page[oci.NSG], error) {
			return api.ListNSGs(ctx, compartmentID, vcnID)
		})
	if err != nil {
		return err
	}

	groups := page.Items()

	if !withRules {
		return a.emit(page, func(w io.Writer, opts render.Options) error {
			rows := lo.Map(groups, func(group oci.NSG, _ int) []string {
				return []string{group.DisplayName, group.VCNID, opts.State(group.LifecycleState, group.RawState), group.ID}
			})
			render.Table(w, []string{"Name", "VCN", "State", "OCID"}, rows, opts)

			return nil
		})
	}

	sets, err := fanout.Map(ctx, a.cfg.Concurrency, groups,
		func(ctx context.Context, group oci.NSG) (render.NSGRuleSet, error) {
			rules, fetchErr := cache.Fetch(ctx, a.cache, cache.Key("nsg-rules", group.ID),
				func(ctx context.Context) (oci.Page[oci.SecurityRule], error) {
					return api.ListNSGRules(ctx, group.ID)
				})
			if fetchErr != nil {
				return render.NSGRuleSet{}, fetchErr
			}

			return render.NSGRuleSet{NSG: group, Rules: rules.Items()}, nil
		})
	if err != nil {
		return err
	}

	names := render.NewNSGNames(groups)

	return a.emit(sets, func(w io.Writer, opts render.Options) error {
		render.NSGRules(w, sets, names, opts)

		return nil
	})
}

func newCompartmentsCommand(a *app) *cobra.Command {
	var asTree bool

	cmd := &cobra.Command{
		Use:   "compartments",
		Short: "List the compartments of the tenancy",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyTenancyID)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			tenancyID := a.cfg.TenancyID

			page, err := cache.Fetch(ctx, a.cache, cache.Key("compartments", tenancyID),
				func(ctx context.Context) (oci.Page[oci.Compartment], error) {
					return api.ListCompartments(ctx, tenancyID)
				})
			if err != nil {
				return err
			}

			compartments := page.Items()

			if asTree {
				tree := topology.BuildCompartmentTree(tenancyID, compartments)

				return a.emit(compartments, func(w io.Writer, opts render.Options) error {
					return render.CompartmentTree(w, tree, opts)
				})
			}

			names := lo.SliceToMap(compartments, func(c oci.Compartment) (string, string) { return c.ID, c.Name })
			names[tenancyID] = topology.RootCompartmentName

			return a.emit(page, func(w io.Writer, opts render.Options) error {
				rows := lo.Map(compartments, func(c oci.Compartment, _ int) []string {
					parent, ok := names[c.ParentID]
					if !ok {
						parent = c.ParentID
					}

					return []string{c.Name, opts.State(c.LifecycleState, ""), parent, c.ID}
				})
				render.Table(w, []string{"Name", "State", "Parent", "OCID"}, rows, opts)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asTree, "tree", false, "render the compartment hierarchy")

	return cmd
}
