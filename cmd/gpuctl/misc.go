package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/policy"
	"oci-gpu-toolkit/pkg/render"
)

func newOKECommand(a *app) *cobra.Command {
	clusters := &cobra.Command{
		Use:   "clusters",
		Short: "List Kubernetes clusters of the compartment",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyCompartmentID)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			compartmentID := a.cfg.CompartmentID

			page, err := cache.Fetch(ctx, a.cache, cache.Key("oke-clusters", compartmentID),
				func(ctx context.Context) (oci.Page[oci.OKECluster], error) {
					return api.ListOKEClusters(ctx, compartmentID)
				})
			if err != nil {
				return err
			}

			return a.emit(page, func(w io.Writer, opts render.Options) error {
				rows := lo.Map(page.Items(), func(cluster oci.OKECluster, _ int) []string {
					return []string{
						cluster.Name,
						cluster.KubernetesVersion,
						opts.State(cluster.LifecycleState, cluster.RawState),
						cluster.ID,
					}
				})
				render.Table(w, []string{"Name", "Version", "State", "OCID"}, rows, opts)

				return nil
			})
		},
	}

	cmd := &cobra.Command{
		Use:   "oke",
		Short: "Container Engine for Kubernetes",
	}
	cmd.AddCommand(clusters)

	return cmd
}

func newAnnouncementsCommand(a *app) *cobra.Command {
	var details bool

	cmd := &cobra.Command{
		Use:   "announcements",
		Short: "List console announcements, optionally with their full text",
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

			page, err := cache.Fetch(ctx, a.cache, cache.Key("announcements", tenancyID),
				func(ctx context.Context) (oci.Page[oci.Announcement], error) {
					return api.ListAnnouncements(ctx, tenancyID)
				})
			if err != nil {
				return err
			}

			if details {
				return a.announcementDetails(ctx, api, page.Items())
			}

			return a.emit(page, func(w io.Writer, opts render.Options) error {
				rows := lo.Map(page.Items(), func(item oci.Announcement, _ int) []string {
					return []string{
						item.ReferenceTicket,
						item.AnnouncementType,
						item.LifecycleState,
						formatTime(item.TimeOneValue),
						item.Summary,
					}
				})
				render.Table(w, []string{"Ticket", "Type", "State", "Time", "Summary"}, rows, opts)

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&details, "details", false, "fetch each announcement's description and affected resources")

	return cmd
}

func (a *app) announcementDetails(ctx context.Context, api cloudAPI, items []oci.Announcement) error {
	detailed, err := fanout.Map(ctx, a.cfg.Concurrency, items,
		func(ctx context.Context, item oci.Announcement) (oci.AnnouncementDetail, error) {
			return cache.Fetch(ctx, a.cache, cache.Key("announcement", item.ID),
				func(ctx context.Context) (oci.AnnouncementDetail, error) {
					return api.GetAnnouncement(ctx, item.ID)
				})
		})
	if err != nil {
		return err
	}

	return a.emit(detailed, func(w io.Writer, opts render.Options) error {
		for _, detail := range detailed {
			_, _ = fmt.Fprintf(w, "%s  %s\n", detail.ReferenceTicket, detail.Summary)
			_, _ = fmt.Fprintf(w, "  type: %s, state: %s, time: %s\n",
				detail.AnnouncementType, detail.LifecycleState, formatTime(detail.TimeOneValue))

			if len(detail.Services) > 0 {
				_, _ = fmt.Fprintf(w, "  services: %s\n", strings.Join(detail.Services, ", "))
			}

			if detail.Description != "" {
				_, _ = fmt.Fprintf(w, "  %s\n", detail.Description)
			}

			if len(detail.AffectedResources) > 0 {
				rows := lo.Map(detail.AffectedResources, func(resource oci.AffectedResource, _ int) []string {
					return []string{resource.ResourceName, resource.Region, resource.ResourceID}
				})
				render.Table(w, []string{"Resource", "Region", "OCID"}, rows, opts)
			}

			_, _ = fmt.Fprintln(w)
		}

		return nil
	})
}

func newPoliciesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policies USER_ID",
		Short: "Show the policy statements that apply to a user (OCID or identity domain ID) through group membership",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			err := a.cfg.Require(keyTenancyID)
			if err != nil {
				return err
			}

			api, err := a.api()
			if err != nil {
				return err
			}

			report, err := policy.Analyze(ctx, api, a.cfg.TenancyID, strings.TrimSpace(args[0]), policy.Options{
				Concurrency: a.cfg.Concurrency,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			return a.emit(report, func(w io.Writer, opts render.Options) error {
				groups := lo.Map(report.Groups, func(group oci.Group, _ int) string { return group.Name })
				_, _ = fmt.Fprintf(w, "User: %s (%s)\nGroups: %s\nCompartments scanned: %d\n\n",
					report.User.Name, report.User.Email, strings.Join(groups, ", "), report.Compartments)

				if len(report.Matches) == 0 {
					_, _ = fmt.Fprintln(w, "No policy statements apply to this user's groups.")

					return nil
				}

				for _, match := range report.Matches {
					rows := lo.Map(match.Statements, func(statement string, _ int) []string {
						return []string{statement}
					})
					render.Table(w, []string{fmt.Sprintf("%s (%s)", match.Policy, match.Compartment)}, rows, opts)
				}

				return nil
			})
		},
	}
}

func newCacheCommand(a *app) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached listing",
		Args:  noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			removed, err := a.cache.Clear()
			if err != nil {
				return err
			}

			a.notice("removed %d cache entries from %s", removed, a.cache.Dir())

			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local listing cache",
	}
	cmd.AddCommand(clearCmd)

	return cmd
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			info := a.deps.currentBuildInfo()

			return a.emit(info, func(w io.Writer, _ render.Options) error {
				_, err := fmt.Fprintln(w, info.String())

				return err
			})
		},
	}
}
