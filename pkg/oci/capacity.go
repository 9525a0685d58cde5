package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/core"
)

// TopologyScope identifies the capacity topology listings to fetch.
type TopologyScope struct {
	CompartmentID      string
	AvailabilityDomain string
	TopologyID         string
}

// ListCapacityTopologies lists the capacity topologies of a compartment.
func (c *Client) ListCapacityTopologies(
	ctx context.Context,
	compartmentID string,
) (Page[CapacityTopology], error) {
	if compartmentID == "" {
		return Page[CapacityTopology]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListComputeCapacityTopologies",
		func(ctx context.Context, page *string) ([]CapacityTopology, *string, error) {
			var request core.ListComputeCapacityTopologiesRequest

			request.CompartmentId = &compartmentID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeCapacityTopologies(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute capacity topologies: %w", err)
			}

			items := make([]CapacityTopology, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, CapacityTopology{
					ID:                 deref(item.Id),
					DisplayName:        deref(item.DisplayName),
					AvailabilityDomain: deref(item.AvailabilityDomain),
					LifecycleState:     NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:           string(item.LifecycleState),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// FirstCapacityTopology returns the first topology of the compartment. Tenancies carry one
// topology per availability domain in practice; ErrNotFound is returned when there is none.
func (c *Client) FirstCapacityTopology(
	ctx context.Context,
	compartmentID string,
) (CapacityTopology, error) {
	page, err := c.ListCapacityTopologies(ctx, compartmentID)
	if err != nil {
		return CapacityTopology{}, err
	}

	items := page.Items()
	if len(items) == 0 {
		return CapacityTopology{}, fmt.Errorf("%w: no capacity topology in compartment %s", ErrNotFound, compartmentID)
	}

	return items[0], nil
}

// ListHPCIslands lists the HPC islands of a capacity topology.
func (c *Client) ListHPCIslands(ctx context.Context, scope TopologyScope) (Page[HPCIsland], error) {
	err := scope.validate()
	if err != nil {
		return Page[HPCIsland]{}, err
	}

	return listAll(ctx, c, "ListComputeCapacityTopologyComputeHpcIslands",
		func(ctx context.Context, page *string) ([]HPCIsland, *string, error) {
			var request core.ListComputeCapacityTopologyComputeHpcIslandsRequest

			request.CompartmentId = &scope.CompartmentID
			request.ComputeCapacityTopologyId = &scope.TopologyID
			request.AvailabilityDomain = optionalString(scope.AvailabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeCapacityTopologyComputeHpcIslands(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute hpc islands: %w", err)
			}

			items := make([]HPCIsland, 0, len(response.Items))
			for _, item := range response.Items {
				topologyID := deref(item.ComputeCapacityTopologyId)
				if topologyID == "" {
					topologyID = scope.TopologyID
				}

				items = append(items, HPCIsland{
					ID:             deref(item.Id),
					TopologyID:     topologyID,
					LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:       string(item.LifecycleState),
					TotalHostCount: derefInt64(item.TotalComputeBareMetalHostCount),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListNetworkBlocks lists every network block of a capacity topology.
func (c *Client) ListNetworkBlocks(
	ctx context.Context,
	scope TopologyScope,
) (Page[NetworkBlock], error) {
	err := scope.validate()
	if err != nil {
		return Page[NetworkBlock]{}, err
	}

	return listAll(ctx, c, "ListComputeCapacityTopologyComputeNetworkBlocks",
		func(ctx context.Context, page *string) ([]NetworkBlock, *string, error) {
			var request core.ListComputeCapacityTopologyComputeNetworkBlocksRequest

			request.CompartmentId = &scope.CompartmentID
			request.ComputeCapacityTopologyId = &scope.TopologyID
			request.AvailabilityDomain = optionalString(scope.AvailabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeCapacityTopologyComputeNetworkBlocks(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute network blocks: %w", err)
			}

			items := make([]NetworkBlock, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, NetworkBlock{
					ID:             deref(item.Id),
					IslandID:       deref(item.ComputeHpcIslandId),
					LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:       string(item.LifecycleState),
					TotalHostCount: derefInt64(item.TotalComputeBareMetalHostCount),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListBareMetalHosts lists every bare metal host of a capacity topology, assigned or not.
func (c *Client) ListBareMetalHosts(
	ctx context.Context,
	scope TopologyScope,
) (Page[BareMetalHost], error) {
	err := scope.validate()
	if err != nil {
		return Page[BareMetalHost]{}, err
	}

	return listAll(ctx, c, "ListComputeCapacityTopologyComputeBareMetalHosts",
		func(ctx context.Context, page *string) ([]BareMetalHost, *string, error) {
			var request core.ListComputeCapacityTopologyComputeBareMetalHostsRequest

			request.CompartmentId = &scope.CompartmentID
			request.ComputeCapacityTopologyId = &scope.TopologyID
			request.AvailabilityDomain = optionalString(scope.AvailabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeCapacityTopologyComputeBareMetalHosts(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute bare metal hosts: %w", err)
			}

			items := make([]BareMetalHost, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, BareMetalHost{
					ID:               deref(item.Id),
					NetworkBlockID:   optionalString(deref(item.ComputeNetworkBlockId)),
					IslandID:         deref(item.ComputeHpcIslandId),
					InstanceID:       optionalString(deref(item.InstanceId)),
					InstanceShape:    deref(item.InstanceShape),
					LifecycleState:   NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:         string(item.LifecycleState),
					LifecycleDetails: optionalString(string(item.LifecycleDetails)),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

func (s TopologyScope) validate() error {
	if s.CompartmentID == "" {
		return errMissingCompartmentID
	}

	if s.TopologyID == "" {
		return errMissingTopologyID
	}

	return nil
}
