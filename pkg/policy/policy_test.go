package policy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-gpu-toolkit/pkg/oci"
	"oci-gpu-toolkit/pkg/policy"
)

const (
	tenancy = "ocid1.tenancy.oc1..root"
	userID  = "ocid1.user.oc1..alice"
)

type fakeAPI struct {
	mu           sync.Mutex
	groups       []oci.Group
	compartments []oci.Compartment
	policies     map[string][]oci.Policy
	named        map[string]string
	lookups      []string
	policyErr    error

	domainUsers map[string][]oci.Group
}

func (f *fakeAPI) GetUser(_ context.Context, id string) (oci.User, error) {
	return oci.User{ID: id, Name: "alice"}, nil
}

func (f *fakeAPI) ListUserGroups(context.Context, string, string) (oci.Page[oci.Group], error) {
	return oci.Page[oci.Group]{Data: f.groups}, nil
}

func (f *fakeAPI) ResolveDomainUser(_ context.Context, _, id string) (oci.User, []oci.Group, error) {
	groups, ok := f.domainUsers[id]
	if !ok {
		return oci.User{}, nil, oci.ErrNotFound
	}

	return oci.User{ID: id, Name: "carol"}, groups, nil
}

func (f *fakeAPI) ListCompartments(context.Context, string) (oci.Page[oci.Compartment], error) {
	return oci.Page[oci.Compartment]{Data: f.compartments}, nil
}

func (f *fakeAPI) GetCompartment(_ context.Context, id string) (oci.Compartment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups = append(f.lookups, id)

	name, ok := f.named[id]
	if !ok {
		return oci.Compartment{}, errors.New("not authorized")
	}

	return oci.Compartment{ID: id, Name: name}, nil
}

func (f *fakeAPI) ListPolicies(_ context.Context, compartmentID string) (oci.Page[oci.Policy], error) {
	if f.policyErr != nil {
		return oci.Page[oci.Policy]{}, f.policyErr
	}

	return oci.Page[oci.Policy]{Data: f.policies[compartmentID]}, nil
}

func TestAnalyzeGroupsMatchesByPolicyAndCompartment(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		groups: []oci.Group{{ID: "g1", Name: "GPU-Admins"}, {ID: "g2", Name: "viewers"}},
		compartments: []oci.Compartment{
			{ID: "ocid1.compartment.oc1..ml", Name: "ml", LifecycleState: oci.StateActive, ParentID: tenancy},
			{ID: "ocid1.compartment.oc1..old", Name: "old", LifecycleState: oci.StateDeleted, ParentID: tenancy},
		},
		policies: map[string][]oci.Policy{
			tenancy: {{
				Name:          "tenancy-admins",
				CompartmentID: tenancy,
				Statements: []string{
					"Allow group gpu-admins to manage all-resources in compartment ocid1.compartment.oc1..ml",
					"Allow group Other to read all-resources in tenancy",
					"Allow group 'Viewers' to inspect instances in tenancy",
				},
			}},
			"ocid1.compartment.oc1..ml": {{
				Name:          "ml-policy",
				CompartmentID: "ocid1.compartment.oc1..ml",
				Statements:    []string{`Allow group "GPU-Admins" to use instance-family in compartment ml`},
			}},
			"ocid1.compartment.oc1..old": {{
				Name:          "stale",
				CompartmentID: "ocid1.compartment.oc1..old",
				Statements:    []string{"Allow group gpu-admins to manage all-resources in tenancy"},
			}},
		},
	}

	report, err := policy.Analyze(context.Background(), api, tenancy, userID, policy.Options{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Compartments)
	require.Len(t, report.Matches, 2)

	assert.Equal(t, policy.Match{
		Policy:      "tenancy-admins",
		Compartment: "root",
		Statements: []string{
			"Allow group gpu-admins to manage all-resources in compartment ml",
			"Allow group 'Viewers' to inspect instances in tenancy",
		},
	}, report.Matches[0])
	assert.Equal(t, "ml-policy", report.Matches[1].Policy)
	assert.Equal(t, "ml", report.Matches[1].Compartment)
	assert.Empty(t, api.lookups, "listed compartments must not be looked up again")
}

func TestAnalyzeTranslatesUnknownCompartmentOnce(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		groups: []oci.Group{{ID: "g1", Name: "ops"}},
		named:  map[string]string{"ocid1.compartment.oc1..net": "network"},
		policies: map[string][]oci.Policy{
			tenancy: {{
				Name:          "ops",
				CompartmentID: tenancy,
				Statements: []string{
					"allow group ops to manage vcns in COMPARTMENT ocid1.compartment.oc1..net",
					"allow group ops to read subnets in compartment id ocid1.compartment.oc1..net",
					"allow group ops to read logs in compartment ocid1.compartment.oc1..hidden",
				},
			}},
		},
	}

	report, err := policy.Analyze(context.Background(), api, tenancy, userID, policy.Options{})
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)

	assert.Equal(t, []string{
		"allow group ops to manage vcns in compartment network",
		"allow group ops to read subnets in compartment network",
		"allow group ops to read logs in compartment ocid1.compartment.oc1..hidden",
	}, report.Matches[0].Statements)
	assert.Equal(t, []string{"ocid1.compartment.oc1..net", "ocid1.compartment.oc1..hidden"}, api.lookups)
}

func TestAnalyzeIdentityDomainUserMatchesQualifiedGroups(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		domainUsers: map[string][]oci.Group{
			"d6a1f0c9e2": {{ID: "g-1", Name: "GPU-Users", Domain: "Research"}},
		},
		policies: map[string][]oci.Policy{
			tenancy: {{
				Name:          "research-gpu",
				CompartmentID: tenancy,
				Statements: []string{
					"Allow group 'Research'/'GPU-Users' to use instances in tenancy",
					"Allow group Research/GPU-Users to read metrics in tenancy",
					"Allow group GPU-Users to manage all-resources in tenancy",
				},
			}},
		},
	}

	report, err := policy.Analyze(context.Background(), api, tenancy, "d6a1f0c9e2", policy.Options{})
	require.NoError(t, err)

	assert.Equal(t, "carol", report.User.Name)
	require.Len(t, report.Matches, 1)
	assert.Equal(t, []string{
		"Allow group 'Research'/'GPU-Users' to use instances in tenancy",
		"Allow group Research/GPU-Users to read metrics in tenancy",
	}, report.Matches[0].Statements)
}

func TestAnalyzeUnknownDomainUser(t *testing.T) {
	t.Parallel()

	_, err := policy.Analyze(context.Background(), &fakeAPI{}, tenancy, "d6a1f0c9e2", policy.Options{})
	require.ErrorIs(t, err, oci.ErrNotFound)
}

func TestGroupReferences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"ops"}, policy.GroupReferences(oci.Group{Name: "ops"}))
	assert.Equal(t, []string{
		"Default/ops",
		"'Default'/'ops'",
		`"Default"/"ops"`,
		"ops",
	}, policy.GroupReferences(oci.Group{Name: "ops", Domain: "Default"}))
}

func TestAnalyzeWithoutGroupsReturnsEmptyReport(t *testing.T) {
	t.Parallel()

	report, err := policy.Analyze(context.Background(), &fakeAPI{}, tenancy, userID, policy.Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Matches)
	assert.Zero(t, report.Compartments)
}

func TestAnalyzePropagatesListFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		groups:    []oci.Group{{ID: "g1", Name: "ops"}},
		policyErr: oci.ErrRequestFailed,
	}

	_, err := policy.Analyze(context.Background(), api, tenancy, userID, policy.Options{})
	require.ErrorIs(t, err, oci.ErrRequestFailed)
}

func TestMentionsAnyGroup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		statement string
		want      bool
	}{
		{"Allow group Admins to manage all-resources in tenancy", true},
		{"Allow group 'admins' to manage all-resources in tenancy", true},
		{`Allow group "ADMINS" to manage all-resources in tenancy`, true},
		{"Allow group operators to read instances in tenancy", false},
		{"Allow any-user to read buckets in tenancy", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, policy.MentionsAnyGroup(tc.statement, []string{"Admins"}), tc.statement)
	}
}
