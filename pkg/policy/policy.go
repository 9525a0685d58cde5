// Package policy finds the IAM policy statements that apply to a user through the groups the
// user belongs to.
package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"oci-gpu-toolkit/pkg/fanout"
	"oci-gpu-toolkit/pkg/oci"
)

const (
	legacyUserPrefix  = "ocid1.user."
	defaultDomainName = "Default"
)

var compartmentReference = regexp.MustCompile(`(?i)compartment\s+(?:id\s+)?(ocid1\.compartment\.[a-zA-Z0-9._-]+)`)

// API is the subset of the cloud client the analysis needs.
type API interface {
	GetUser(ctx context.Context, userID string) (oci.User, error)
	ListUserGroups(ctx context.Context, tenancyID, userID string) (oci.Page[oci.Group], error)
	ListCompartments(ctx context.Context, parentID string) (oci.Page[oci.Compartment], error)
	GetCompartment(ctx context.Context, compartmentID string) (oci.Compartment, error)
	ListPolicies(ctx context.Context, compartmentID string) (oci.Page[oci.Policy], error)
	ResolveDomainUser(ctx context.Context, tenancyID, userID string) (oci.User, []oci.Group, error)
}

// Options tunes an analysis run.
type Options struct {
	Concurrency int
	Logger      *zap.Logger
}

// Match collects the statements of one policy that reference the user's groups.
type Match struct {
	Policy      string   `json:"policy"      yaml:"policy"`
	Compartment string   `json:"compartment" yaml:"compartment"`
	Statements  []string `json:"statements"  yaml:"statements"`
}

// Report is the outcome of Analyze.
type Report struct {
	User         oci.User    `json:"user"         yaml:"user"`
	Groups       []oci.Group `json:"groups"       yaml:"groups"`
	Compartments int         `json:"compartments" yaml:"compartments"`
	Matches      []Match     `json:"matches"      yaml:"matches"`
}

// Analyze resolves the user's groups, scans the policies of the tenancy root and every
// ACTIVE compartment, and keeps the statements naming one of those groups. Compartment OCIDs
// inside kept statements are replaced by compartment names. User IDs that are not
// ocid1.user OCIDs are looked up in the identity domains of the tenancy.
func Analyze(ctx context.Context, api API, tenancyID, userID string, opts Options) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	user, groups, err := resolveUser(ctx, api, tenancyID, userID)
	if err != nil {
		return Report{}, err
	}

	report := Report{User: user, Groups: groups, Matches: []Match{}}
	if len(report.Groups) == 0 {
		logger.Info("user belongs to no groups", zap.String("user", userID))

		return report, nil
	}

	compartments, err := api.ListCompartments(ctx, tenancyID)
	if err != nil {
		return Report{}, fmt.Errorf("list compartments: %w", err)
	}

	active := lo.Filter(compartments.Items(), func(c oci.Compartment, _ int) bool {
		return c.LifecycleState == oci.StateActive
	})

	names := newNameResolver(api, tenancyID, logger)
	for _, compartment := range active {
		names.remember(compartment.ID, compartment.Name)
	}

	scope := append([]string{tenancyID}, lo.Map(active, func(c oci.Compartment, _ int) string {
		return c.ID
	})...)
	report.Compartments = len(scope)

	logger.Debug("scanning policies", zap.Int("compartments", len(scope)))

	perCompartment, err := fanout.Map(ctx, opts.Concurrency, scope,
		func(ctx context.Context, compartmentID string) ([]oci.Policy, error) {
			page, listErr := api.ListPolicies(ctx, compartmentID)
			if listErr != nil {
				return nil, fmt.Errorf("list policies in %s: %w", compartmentID, listErr)
			}

			return page.Items(), nil
		})
	if err != nil {
		return Report{}, err
	}

	groupNames := lo.FlatMap(report.Groups, func(g oci.Group, _ int) []string { return GroupReferences(g) })
	index := map[[2]string]int{}

	for _, policies := range perCompartment {
		for _, policy := range policies {
			compartmentName := names.resolve(ctx, policy.CompartmentID)

			for _, statement := range policy.Statements {
				if !MentionsAnyGroup(statement, groupNames) {
					continue
				}

				key := [2]string{policy.Name, compartmentName}

				position, seen := index[key]
				if !seen {
					position = len(report.Matches)
					index[key] = position
					report.Matches = append(report.Matches, Match{Policy: policy.Name, Compartment: compartmentName})
				}

				report.Matches[position].Statements = append(
					report.Matches[position].Statements,
					names.translate(ctx, statement),
				)
			}
		}
	}

	return report, nil
}

func resolveUser(ctx context.Context, api API, tenancyID, userID string) (oci.User, []oci.Group, error) {
	if !strings.HasPrefix(userID, legacyUserPrefix) {
		user, groups, err := api.ResolveDomainUser(ctx, tenancyID, userID)
		if err != nil {
			return oci.User{}, nil, fmt.Errorf("resolve identity domain user: %w", err)
		}

		return user, groups, nil
	}

	user, err := api.GetUser(ctx, userID)
	if err != nil {
		return oci.User{}, nil, fmt.Errorf("resolve user: %w", err)
	}

	groups, err := api.ListUserGroups(ctx, tenancyID, userID)
	if err != nil {
		return oci.User{}, nil, fmt.Errorf("resolve groups: %w", err)
	}

	return user, groups.Items(), nil
}

// GroupReferences lists the names a statement may use for the group. Groups of an identity
// domain are also written domain-qualified; only Default domain groups match unqualified.
func GroupReferences(group oci.Group) []string {
	if group.Domain == "" {
		return []string{group.Name}
	}

	refs := []string{
		group.Domain + "/" + group.Name,
		"'" + group.Domain + "'/'" + group.Name + "'",
		`"` + group.Domain + `"/"` + group.Name + `"`,
	}

	if strings.EqualFold(group.Domain, defaultDomainName) {
		refs = append(refs, group.Name)
	}

	return refs
}

// MentionsAnyGroup reports whether a statement names one of the groups, bare or quoted.
// Matching ignores case.
func MentionsAnyGroup(statement string, groups []string) bool {
	lower := strings.ToLower(statement)

	return lo.SomeBy(groups, func(group string) bool {
		name := strings.ToLower(group)

		return strings.Contains(lower, "group "+name) ||
			strings.Contains(lower, "group '"+name+"'") ||
			strings.Contains(lower, `group "`+name+`"`)
	})
}

type nameResolver struct {
	api       API
	tenancyID string
	logger    *zap.Logger
	names     map[string]string
}

func newNameResolver(api API, tenancyID string, logger *zap.Logger) *nameResolver {
	return &nameResolver{
		api:       api,
		tenancyID: tenancyID,
		logger:    logger,
		names:     map[string]string{tenancyID: "root"},
	}
}

func (r *nameResolver) remember(id, name string) {
	r.names[id] = name
}

// resolve falls back to the OCID when the compartment cannot be read.
func (r *nameResolver) resolve(ctx context.Context, id string) string {
	if name, ok := r.names[id]; ok {
		return name
	}

	name := id

	compartment, err := r.api.GetCompartment(ctx, id)
	if err != nil {
		r.logger.Warn("could not resolve compartment name", zap.String("compartment", id), zap.Error(err))
	} else if compartment.Name != "" {
		name = compartment.Name
	}

	r.names[id] = name

	return name
}

func (r *nameResolver) translate(ctx context.Context, statement string) string {
	return compartmentReference.ReplaceAllStringFunc(statement, func(match string) string {
		id := compartmentReference.FindStringSubmatch(match)[1]

		return "compartment " + r.resolve(ctx, id)
	})
}
