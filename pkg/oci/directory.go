package oci

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/oracle/oci-go-sdk/v65/identitydomains"
	"go.uber.org/zap"
)

const (
	domainUserAttributes  = "userName,displayName,emails,active,meta,name"
	domainGroupAttributes = "userName,emails,groups"
	domainUserPageSize    = 100
)

var (
	errMissingDomainURL = errors.New("oci: identity domain URL is required")
	errNoDomainClient   = errors.New("oci: identity domains client is not configured")
)

// ListDomains lists the identity domains of the tenancy, regardless of state.
func (c *Client) ListDomains(ctx context.Context, tenancyID string) (Page[IdentityDomain], error) {
	if tenancyID == "" {
		return Page[IdentityDomain]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListDomains",
		func(ctx context.Context, page *string) ([]IdentityDomain, *string, error) {
			var request identity.ListDomainsRequest

			request.CompartmentId = &tenancyID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.identity.ListDomains(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list domains: %w", err)
			}

			items := make([]IdentityDomain, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, IdentityDomain{
					ID:             deref(item.Id),
					DisplayName:    deref(item.DisplayName),
					URL:            deref(item.Url),
					Type:           string(item.Type),
					LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:       string(item.LifecycleState),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListLegacyUsers lists the users of the default identity store at the tenancy root.
func (c *Client) ListLegacyUsers(ctx context.Context, tenancyID string) (Page[DirectoryUser], error) {
	if tenancyID == "" {
		return Page[DirectoryUser]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListUsers",
		func(ctx context.Context, page *string) ([]DirectoryUser, *string, error) {
			var request identity.ListUsersRequest

			request.CompartmentId = &tenancyID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.identity.ListUsers(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list users: %w", err)
			}

			items := make([]DirectoryUser, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, DirectoryUser{
					ID:          deref(item.Id),
					UserName:    deref(item.Name),
					DisplayName: deref(item.Description),
					Email:       deref(item.Email),
					Active:      item.LifecycleState == identity.UserLifecycleStateActive,
					TimeCreated: sdkTime(item.TimeCreated),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListDomainUsers lists the users of one identity domain. A non-empty filter is sent as a
// SCIM "contains" filter on the user name and e-mail addresses.
func (c *Client) ListDomainUsers(
	ctx context.Context,
	domainURL, filter string,
) (Page[DirectoryUser], error) {
	api, err := c.domainAPI(domainURL)
	if err != nil {
		return Page[DirectoryUser]{}, err
	}

	return listAll(ctx, c, "ListDomainUsers",
		func(ctx context.Context, page *string) ([]DirectoryUser, *string, error) {
			start, err := scimStartIndex(page)
			if err != nil {
				return nil, nil, err
			}

			var request identitydomains.ListUsersRequest

			request.StartIndex = &start
			request.Count = common.Int(domainUserPageSize)
			request.Attributes = common.String(domainUserAttributes)
			request.Filter = scimUserFilter(filter)
			request.RequestMetadata = noRetry()

			response, err := api.ListUsers(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list domain users: %w", err)
			}

			items := make([]DirectoryUser, 0, len(response.Resources))
			for _, item := range response.Resources {
				items = append(items, convertDomainUser(item))
			}

			total := 0
			if response.TotalResults != nil {
				total = *response.TotalResults
			}

			return items, scimNextPage(start, len(response.Resources), total), nil
		})
}

// ResolveDomainUser searches the ACTIVE identity domains for userID and returns the user with
// the groups it belongs to. Domains that deny access or do not know the user are skipped.
func (c *Client) ResolveDomainUser(ctx context.Context, tenancyID, userID string) (User, []Group, error) {
	if userID == "" {
		return User{}, nil, errMissingUserID
	}

	domains, err := c.ListDomains(ctx, tenancyID)
	if err != nil {
		return User{}, nil, err
	}

	for _, domain := range domains.Items() {
		if domain.LifecycleState != StateActive {
			continue
		}

		user, groups, lookupErr := c.getDomainUser(ctx, domain, userID)

		switch {
		case lookupErr == nil:
			return user, groups, nil
		case IsNotFound(lookupErr) || IsAuth(lookupErr):
			c.logger.Debug("user not readable in identity domain",
				zap.String("domain", domain.DisplayName),
				zap.Error(lookupErr),
			)
		default:
			return User{}, nil, lookupErr
		}
	}

	return User{}, nil, fmt.Errorf("%w: user %s is in no identity domain", ErrNotFound, userID)
}

func (c *Client) getDomainUser(ctx context.Context, domain IdentityDomain, userID string) (User, []Group, error) {
	api, err := c.domainAPI(domain.URL)
	if err != nil {
		return User{}, nil, err
	}

	var (
		user   User
		groups []Group
	)

	err = c.do(ctx, "GetDomainUser", func(ctx context.Context) error {
		var request identitydomains.GetUserRequest

		request.UserId = &userID
		request.Attributes = common.String(domainGroupAttributes)
		request.RequestMetadata = noRetry()

		response, err := api.GetUser(ctx, request)
		if err != nil {
			return fmt.Errorf("get domain user: %w", err)
		}

		user = User{
			ID:    deref(response.Id),
			Name:  deref(response.UserName),
			Email: primaryEmail(response.Emails),
		}

		groups = make([]Group, 0, len(response.Groups))
		for _, ref := range response.Groups {
			name := deref(ref.Display)
			if name == "" {
				name = deref(ref.Value)
			}

			groups = append(groups, Group{ID: deref(ref.Value), Name: name, Domain: domain.DisplayName})
		}

		return nil
	})
	if err != nil {
		return User{}, nil, err
	}

	return user, groups, nil
}

func (c *Client) domainAPI(domainURL string) (identityDomainsAPI, error) { //nolint:ireturn // fakes
	if strings.TrimSpace(domainURL) == "" {
		return nil, errMissingDomainURL
	}

	if c == nil {
		return nil, errNilClient
	}

	if c.domains == nil {
		return nil, errNoDomainClient
	}

	return c.domains(domainURL)
}

func convertDomainUser(item identitydomains.User) DirectoryUser {
	user := DirectoryUser{
		ID:          deref(item.Id),
		UserName:    deref(item.UserName),
		DisplayName: deref(item.DisplayName),
		Email:       primaryEmail(item.Emails),
		Active:      derefBool(item.Active),
	}

	if user.DisplayName == "" && item.Name != nil {
		user.DisplayName = deref(item.Name.Formatted)
	}

	if item.Meta != nil && item.Meta.Created != nil {
		created, err := time.Parse(time.RFC3339, *item.Meta.Created)
		if err == nil {
			user.TimeCreated = &created
		}
	}

	return user
}

func primaryEmail(emails []identitydomains.UserEmails) string {
	for _, email := range emails {
		if derefBool(email.Primary) {
			return deref(email.Value)
		}
	}

	if len(emails) > 0 {
		return deref(emails[0].Value)
	}

	return ""
}

func scimUserFilter(filter string) *string {
	trimmed := strings.TrimSpace(filter)
	if trimmed == "" {
		return nil
	}

	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(trimmed)

	return common.String(fmt.Sprintf(`userName co "%s" or emails.value co "%s"`, escaped, escaped))
}

// SCIM listings page by 1-based start index; the index travels as the page token.
func scimStartIndex(page *string) (int, error) {
	if page == nil {
		return 1, nil
	}

	start, err := strconv.Atoi(*page)
	if err != nil || start < 1 {
		return 0, fmt.Errorf("invalid SCIM start index %q", *page)
	}

	return start, nil
}

func scimNextPage(start, returned, total int) *string {
	if returned < domainUserPageSize {
		return nil
	}

	next := start + returned
	if total > 0 && next > total {
		return nil
	}

	return common.String(strconv.Itoa(next))
}

// Matches reports whether filter appears in the user name or e-mail, ignoring case. An empty
// filter matches every user.
func (u DirectoryUser) Matches(filter string) bool {
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return true
	}

	return strings.Contains(strings.ToLower(u.UserName), needle) ||
		strings.Contains(strings.ToLower(u.Email), needle)
}
