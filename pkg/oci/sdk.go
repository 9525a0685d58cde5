package oci

import (
	"context"

	"github.com/oracle/oci-go-sdk/v65/announcementsservice"
	"github.com/oracle/oci-go-sdk/v65/containerengine"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/oracle/oci-go-sdk/v65/identitydomains"
)

// The interfaces below narrow each SDK service client to the calls this package makes, so
// tests can substitute fakes.

type computeAPI interface {
	ListComputeCapacityTopologies(
		ctx context.Context,
		request core.ListComputeCapacityTopologiesRequest,
	) (core.ListComputeCapacityTopologiesResponse, error)
	ListComputeCapacityTopologyComputeHpcIslands(
		ctx context.Context,
		request core.ListComputeCapacityTopologyComputeHpcIslandsRequest,
	) (core.ListComputeCapacityTopologyComputeHpcIslandsResponse, error)
	ListComputeCapacityTopologyComputeNetworkBlocks(
		ctx context.Context,
		request core.ListComputeCapacityTopologyComputeNetworkBlocksRequest,
	) (core.ListComputeCapacityTopologyComputeNetworkBlocksResponse, error)
	ListComputeCapacityTopologyComputeBareMetalHosts(
		ctx context.Context,
		request core.ListComputeCapacityTopologyComputeBareMetalHostsRequest,
	) (core.ListComputeCapacityTopologyComputeBareMetalHostsResponse, error)
	ListComputeClusters(
		ctx context.Context,
		request core.ListComputeClustersRequest,
	) (core.ListComputeClustersResponse, error)
	CreateComputeCluster(
		ctx context.Context,
		request core.CreateComputeClusterRequest,
	) (core.CreateComputeClusterResponse, error)
	ListComputeGpuMemoryFabrics(
		ctx context.Context,
		request core.ListComputeGpuMemoryFabricsRequest,
	) (core.ListComputeGpuMemoryFabricsResponse, error)
	ListComputeGpuMemoryClusters(
		ctx context.Context,
		request core.ListComputeGpuMemoryClustersRequest,
	) (core.ListComputeGpuMemoryClustersResponse, error)
	CreateComputeGpuMemoryCluster(
		ctx context.Context,
		request core.CreateComputeGpuMemoryClusterRequest,
	) (core.CreateComputeGpuMemoryClusterResponse, error)
	GetInstance(ctx context.Context, request core.GetInstanceRequest) (core.GetInstanceResponse, error)
	ListBootVolumeAttachments(
		ctx context.Context,
		request core.ListBootVolumeAttachmentsRequest,
	) (core.ListBootVolumeAttachmentsResponse, error)
	ListImageShapeCompatibilityEntries(
		ctx context.Context,
		request core.ListImageShapeCompatibilityEntriesRequest,
	) (core.ListImageShapeCompatibilityEntriesResponse, error)
	AddImageShapeCompatibilityEntry(
		ctx context.Context,
		request core.AddImageShapeCompatibilityEntryRequest,
	) (core.AddImageShapeCompatibilityEntryResponse, error)
}

type networkAPI interface {
	ListVcns(ctx context.Context, request core.ListVcnsRequest) (core.ListVcnsResponse, error)
	ListSubnets(ctx context.Context, request core.ListSubnetsRequest) (core.ListSubnetsResponse, error)
	ListNetworkSecurityGroups(
		ctx context.Context,
		request core.ListNetworkSecurityGroupsRequest,
	) (core.ListNetworkSecurityGroupsResponse, error)
	ListNetworkSecurityGroupSecurityRules(
		ctx context.Context,
		request core.ListNetworkSecurityGroupSecurityRulesRequest,
	) (core.ListNetworkSecurityGroupSecurityRulesResponse, error)
}

type blockstorageAPI interface {
	GetBootVolume(ctx context.Context, request core.GetBootVolumeRequest) (core.GetBootVolumeResponse, error)
}

type identityAPI interface {
	ListCompartments(
		ctx context.Context,
		request identity.ListCompartmentsRequest,
	) (identity.ListCompartmentsResponse, error)
	ListPolicies(ctx context.Context, request identity.ListPoliciesRequest) (identity.ListPoliciesResponse, error)
	ListUserGroupMemberships(
		ctx context.Context,
		request identity.ListUserGroupMembershipsRequest,
	) (identity.ListUserGroupMembershipsResponse, error)
	GetGroup(ctx context.Context, request identity.GetGroupRequest) (identity.GetGroupResponse, error)
	GetUser(ctx context.Context, request identity.GetUserRequest) (identity.GetUserResponse, error)
	ListUsers(ctx context.Context, request identity.ListUsersRequest) (identity.ListUsersResponse, error)
	ListDomains(ctx context.Context, request identity.ListDomainsRequest) (identity.ListDomainsResponse, error)
	GetCompartment(
		ctx context.Context,
		request identity.GetCompartmentRequest,
	) (identity.GetCompartmentResponse, error)
}

// identityDomainsAPI is served per domain: the SDK client is bound to the domain URL.
type identityDomainsAPI interface {
	ListUsers(
		ctx context.Context,
		request identitydomains.ListUsersRequest,
	) (identitydomains.ListUsersResponse, error)
	GetUser(
		ctx context.Context,
		request identitydomains.GetUserRequest,
	) (identitydomains.GetUserResponse, error)
}

type containerEngineAPI interface {
	ListClusters(
		ctx context.Context,
		request containerengine.ListClustersRequest,
	) (containerengine.ListClustersResponse, error)
}

type announcementsAPI interface {
	ListAnnouncements(
		ctx context.Context,
		request announcementsservice.ListAnnouncementsRequest,
	) (announcementsservice.ListAnnouncementsResponse, error)
	GetAnnouncement(
		ctx context.Context,
		request announcementsservice.GetAnnouncementRequest,
	) (announcementsservice.GetAnnouncementResponse, error)
}

var (
	_ computeAPI         = (*core.ComputeClient)(nil)
	_ networkAPI         = (*core.VirtualNetworkClient)(nil)
	_ blockstorageAPI    = (*core.BlockstorageClient)(nil)
	_ identityAPI        = (*identity.IdentityClient)(nil)
	_ identityDomainsAPI = (*identitydomains.IdentityDomainsClient)(nil)
	_ containerEngineAPI = (*containerengine.ContainerEngineClient)(nil)
	_ announcementsAPI   = (*announcementsservice.AnnouncementClient)(nil)
)
