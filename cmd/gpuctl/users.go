package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"oci-gpu-toolkit/pkg/cache"
	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/render"
)

const legacyDirectoryName = "Root tenancy (default identity store)"

type usersOptions struct {
	filter      string
	summaryOnly bool
	export      string
}

func newUsersCommand(a *app) *cobra.Command {
	var opts usersOptions

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users of the root identity store and every identity domain",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.collectUsers(commandContext(cmd), opts.filter)
			if err != nil {
				return err
			}

			if opts.export != "" {
				return a.exportUsers(report, opts.export)
			}

			return a.emit(report, func(w io.Writer, renderOpts render.Options) error {
				render.Directories(w, report, opts.summaryOnly, renderOpts)

				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.filter, "filter", "", "only users whose name or e-mail contains this text")
	flags.BoolVar(&opts.summaryOnly, "summary-only", false, "print per-directory counts without user tables")
	flags.StringVar(&opts.export, "export", "", "write the users as CSV to this file (- for stdout)")

	return cmd
}

// collectUsers lists the root store and every identity domain. A domain the caller may not
// read is reported with an error instead of failing the listing.
func (a *app) collectUsers(ctx context.Context, filter string) (render.DirectoryReport, error) {
	err := a.cfg.Require(keyTenancyID)
	if err != nil {
		return render.DirectoryReport{}, err
	}

	api, err := a.api()
	if err != nil {
		return render.DirectoryReport{}, err
	}

	tenancyID := a.cfg.TenancyID

	legacy, err := cache.Fetch(ctx, a.cache, cache.Key("legacy-users", tenancyID),
		func(ctx context.Context) (oci.Page[oci.DirectoryUser], error) {
			return api.ListLegacyUsers(ctx, tenancyID)
		})
	if err != nil {
		return render.DirectoryReport{}, err
	}

	domains, err := cache.Fetch(ctx, a.cache, cache.Key("identity-domains", tenancyID),
		func(ctx context.Context) (oci.Page[oci.IdentityDomain], error) {
			return api.ListDomains(ctx, tenancyID)
		})
	if err != nil {
		return render.DirectoryReport{}, err
	}

	listed, err := fanout.Map(ctx, a.cfg.Concurrency, domains.Items(),
		func(ctx context.Context, domain oci.IdentityDomain) (render.Directory, error) {
			return a.domainDirectory(ctx, api, domain, filter)
		})
	if err != nil {
		return render.DirectoryReport{}, err
	}

	root := render.Directory{
		Name:     legacyDirectoryName,
		Type:     render.DirectoryTypeLegacy,
		ID:       tenancyID,
		State:    oci.StateActive,
		RawState: string(oci.StateActive),
		Users:    matchingUsers(legacy.Items(), filter),
	}

	return render.DirectoryReport{
		Filter:      filter,
		Directories: append([]render.Directory{root}, listed...),
	}, nil
}

func (a *app) domainDirectory(
	ctx context.Context,
	api cloudAPI,
	domain oci.IdentityDomain,
	filter string,
) (render.Directory, error) {
	directory := render.Directory{
		Name:     domain.DisplayName,
		Type:     domain.Type,
		ID:       domain.ID,
		URL:      domain.URL,
		State:    domain.LifecycleState,
		RawState: domain.RawState,
		Users:    []oci.DirectoryUser{},
	}

	page, err := cache.Fetch(ctx, a.cache, cache.Key("domain-users", domain.ID, filter),
		func(ctx context.Context) (oci.Page[oci.DirectoryUser], error) {
			return api.ListDomainUsers(ctx, domain.URL, filter)
		})

	switch {
	case err == nil:
		directory.Users = matchingUsers(page.Items(), filter)
	case oci.IsAuth(err) || oci.IsNotFound(err):
		a.logger.Warn("skipping identity domain",
			zap.String("domain", domain.DisplayName),
			zap.Error(err),
		)

		directory.Error = "not accessible"
	default:
		return render.Directory{}, err
	}

	return directory, nil
}

// matchingUsers applies the filter locally too: the root store has no server-side filter.
func matchingUsers(users []oci.DirectoryUser, filter string) []oci.DirectoryUser {
	return lo.Filter(users, func(user oci.DirectoryUser, _ int) bool {
		return user.Matches(filter)
	})
}

func (a *app) exportUsers(report render.DirectoryReport, destination string) error {
	if destination == "-" {
		return render.DirectoriesCSV(a.stdout, report)
	}

	file, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	err = render.DirectoriesCSV(file, report)

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close export file: %w", closeErr)
	}

	if err != nil {
		return err
	}

	a.notice("exported %d users to %s", report.TotalUsers(), destination)

	return nil
}
