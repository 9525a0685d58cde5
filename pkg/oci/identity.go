package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/identity"
)

// ListCompartments lists every compartment below parentID, recursively, regardless of state.
func (c *Client) ListCompartments(ctx context.Context, parentID string) (Page[Compartment], error) {
	if parentID == "" {
		return Page[Compartment]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListCompartments",
		func(ctx context.Context, page *string) ([]Compartment, *string, error) {
			var request identity.ListCompartmentsRequest

			request.CompartmentId = &parentID
			request.CompartmentIdInSubtree = common.Bool(true)
			request.AccessLevel = identity.ListCompartmentsAccessLevelAny
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.identity.ListCompartments(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compartments: %w", err)
			}

			items := make([]Compartment, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, convertCompartment(item))
			}

			return items, response.OpcNextPage, nil
		})
}

// GetCompartment fetches one compartment.
func (c *Client) GetCompartment(ctx context.Context, compartmentID string) (Compartment, error) {
	if compartmentID == "" {
		return Compartment{}, errMissingCompartmentID
	}

	var compartment Compartment

	err := c.do(ctx, "GetCompartment", func(ctx context.Context) error {
		var request identity.GetCompartmentRequest

		request.CompartmentId = &compartmentID
		request.RequestMetadata = noRetry()

		response, err := c.identity.GetCompartment(ctx, request)
		if err != nil {
			return fmt.Errorf("get compartment: %w", err)
		}

		compartment = convertCompartment(response.Compartment)

		return nil
	})
	if err != nil {
		return Compartment{}, err
	}

	return compartment, nil
}

// ListPolicies lists the policies attached directly to one compartment.
func (c *Client) ListPolicies(ctx context.Context, compartmentID string) (Page[Policy], error) {
	if compartmentID == "" {
		return Page[Policy]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListPolicies", func(ctx context.Context, page *string) ([]Policy, *string, error) {
		var request identity.ListPoliciesRequest

		request.CompartmentId = &compartmentID
		request.Page = page
		request.Limit = pageLimit()
		request.RequestMetadata = noRetry()

		response, err := c.identity.ListPolicies(ctx, request)
		if err != nil {
			return nil, nil, fmt.Errorf("list policies: %w", err)
		}

		items := make([]Policy, 0, len(response.Items))
		for _, item := range response.Items {
			items = append(items, Policy{
				ID:            deref(item.Id),
				Name:          deref(item.Name),
				CompartmentID: deref(item.CompartmentId),
				Statements:    append([]string{}, item.Statements...),
			})
		}

		return items, response.OpcNextPage, nil
	})
}

// GetUser fetches a user of the default identity store.
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, errMissingUserID
	}

	var user User

	err := c.do(ctx, "GetUser", func(ctx context.Context) error {
		var request identity.GetUserRequest

		request.UserId = &userID
		request.RequestMetadata = noRetry()

		response, err := c.identity.GetUser(ctx, request)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		user = User{
			ID:    deref(response.Id),
			Name:  deref(response.Name),
			Email: deref(response.Email),
		}

		return nil
	})
	if err != nil {
		return User{}, err
	}

	return user, nil
}

// ListUserGroups resolves the groups a user belongs to. Memberships are listed in the tenancy
// and each group is then fetched for its name.
func (c *Client) ListUserGroups(ctx context.Context, tenancyID, userID string) (Page[Group], error) {
	if tenancyID == "" {
		return Page[Group]{}, errMissingCompartmentID
	}

	if userID == "" {
		return Page[Group]{}, errMissingUserID
	}

	memberships, err := listAll(ctx, c, "ListUserGroupMemberships",
		func(ctx context.Context, page *string) ([]string, *string, error) {
			var request identity.ListUserGroupMembershipsRequest

			request.CompartmentId = &tenancyID
			request.UserId = &userID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.identity.ListUserGroupMemberships(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list user group memberships: %w", err)
			}

			ids := make([]string, 0, len(response.Items))
			for _, item := range response.Items {
				if item.GroupId != nil {
					ids = append(ids, *item.GroupId)
				}
			}

			return ids, response.OpcNextPage, nil
		})
	if err != nil {
		return Page[Group]{}, err
	}

	groups := make([]Group, 0, len(memberships.Data))

	for _, groupID := range memberships.Items() {
		err = c.do(ctx, "GetGroup", func(ctx context.Context) error {
			var request identity.GetGroupRequest

			request.GroupId = &groupID
			request.RequestMetadata = noRetry()

			response, err := c.identity.GetGroup(ctx, request)
			if err != nil {
				return fmt.Errorf("get group: %w", err)
			}

			groups = append(groups, Group{ID: deref(response.Id), Name: deref(response.Name)})

			return nil
		})
		if err != nil {
			return Page[Group]{}, err
		}
	}

	return Page[Group]{Data: groups}, nil
}

func convertCompartment(item identity.Compartment) Compartment {
	return Compartment{
		ID:             deref(item.Id),
		Name:           deref(item.Name),
		Description:    deref(item.Description),
		LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
		ParentID:       deref(item.CompartmentId),
	}
}
