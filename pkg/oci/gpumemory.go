package oci

import (
	"context"
	"errors"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/core"
)

var (
	errMissingComputeClusterID = errors.New("oci: compute cluster OCID is required")
	errMissingInstanceConfigID = errors.New("oci: instance configuration OCID is required")
	errInvalidClusterSize      = errors.New("oci: GPU memory cluster size must be positive")
)

// CreateGPUMemoryClusterInput describes a GPU memory cluster to provision.
type CreateGPUMemoryClusterInput struct {
	CompartmentID           string
	AvailabilityDomain      string
	DisplayName             string
	ComputeClusterID        string
	InstanceConfigurationID string
	GPUMemoryFabricID       string
	Size                    int64
}

// ListGPUMemoryFabrics lists the GPU memory fabrics visible in a compartment. Fabric
// summaries carry no availability domain, so the requested one is recorded on each item.
func (c *Client) ListGPUMemoryFabrics(
	ctx context.Context,
	compartmentID, availabilityDomain string,
) (Page[GPUMemoryFabric], error) {
	if compartmentID == "" {
		return Page[GPUMemoryFabric]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListComputeGpuMemoryFabrics",
		func(ctx context.Context, page *string) ([]GPUMemoryFabric, *string, error) {
			var request core.ListComputeGpuMemoryFabricsRequest

			request.CompartmentId = &compartmentID
			request.AvailabilityDomain = optionalString(availabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeGpuMemoryFabrics(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute gpu memory fabrics: %w", err)
			}

			items := make([]GPUMemoryFabric, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, GPUMemoryFabric{
					ID:                 deref(item.Id),
					DisplayName:        deref(item.DisplayName),
					LifecycleState:     NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:           string(item.LifecycleState),
					FabricHealth:       string(item.FabricHealth),
					HPCIslandID:        deref(item.ComputeHpcIslandId),
					NetworkBlockID:     deref(item.ComputeNetworkBlockId),
					LocalBlockID:       deref(item.ComputeLocalBlockId),
					HealthyHostCount:   derefInt64(item.HealthyHostCount),
					TotalHostCount:     derefInt64(item.TotalHostCount),
					AvailableHostCount: derefInt64(item.AvailableHostCount),
					AvailabilityDomain: availabilityDomain,
					TimeCreated:        sdkTime(item.TimeCreated),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListGPUMemoryClusters lists the GPU memory clusters of a compartment.
func (c *Client) ListGPUMemoryClusters(
	ctx context.Context,
	compartmentID, availabilityDomain string,
) (Page[GPUMemoryCluster], error) {
	if compartmentID == "" {
		return Page[GPUMemoryCluster]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListComputeGpuMemoryClusters",
		func(ctx context.Context, page *string) ([]GPUMemoryCluster, *string, error) {
			var request core.ListComputeGpuMemoryClustersRequest

			request.CompartmentId = &compartmentID
			request.AvailabilityDomain = optionalString(availabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeGpuMemoryClusters(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute gpu memory clusters: %w", err)
			}

			items := make([]GPUMemoryCluster, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, GPUMemoryCluster{
					ID:                 deref(item.Id),
					DisplayName:        deref(item.DisplayName),
					LifecycleState:     NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:           string(item.LifecycleState),
					AvailabilityDomain: deref(item.AvailabilityDomain),
					TimeCreated:        sdkTime(item.TimeCreated),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// CreateGPUMemoryCluster provisions a GPU memory cluster. Like CreateComputeCluster it sends
// a fresh opc-retry-token and is never retried.
func (c *Client) CreateGPUMemoryCluster(
	ctx context.Context,
	input CreateGPUMemoryClusterInput,
) (GPUMemoryCluster, error) {
	err := input.validate()
	if err != nil {
		return GPUMemoryCluster{}, err
	}

	var details core.CreateComputeGpuMemoryClusterDetails

	details.CompartmentId = &input.CompartmentID
	details.AvailabilityDomain = &input.AvailabilityDomain
	details.ComputeClusterId = &input.ComputeClusterID
	details.InstanceConfigurationId = &input.InstanceConfigurationID
	details.GpuMemoryFabricId = optionalString(input.GPUMemoryFabricID)
	details.DisplayName = optionalString(input.DisplayName)
	details.Size = &input.Size

	var request core.CreateComputeGpuMemoryClusterRequest

	request.CreateComputeGpuMemoryClusterDetails = details
	request.OpcRetryToken = retryToken()
	request.RequestMetadata = noRetry()

	var created GPUMemoryCluster

	err = c.do(ctx, "CreateComputeGpuMemoryCluster", func(ctx context.Context) error {
		response, err := c.compute.CreateComputeGpuMemoryCluster(ctx, request)
		if err != nil {
			return fmt.Errorf("create compute gpu memory cluster: %w", err)
		}

		created = GPUMemoryCluster{
			ID:                      deref(response.Id),
			DisplayName:             deref(response.DisplayName),
			LifecycleState:          NormalizeLifecycleState(string(response.LifecycleState)),
			RawState:                string(response.LifecycleState),
			ComputeClusterID:        deref(response.ComputeClusterId),
			GPUMemoryFabricID:       deref(response.GpuMemoryFabricId),
			InstanceConfigurationID: deref(response.InstanceConfigurationId),
			Size:                    derefInt64(response.Size),
			AvailabilityDomain:      deref(response.AvailabilityDomain),
			TimeCreated:             sdkTime(response.TimeCreated),
		}

		return nil
	})
	if err != nil {
		return GPUMemoryCluster{}, err
	}

	return created, nil
}

func (in CreateGPUMemoryClusterInput) validate() error {
	switch {
	case in.CompartmentID == "":
		return errMissingCompartmentID
	case in.AvailabilityDomain == "":
		return errMissingAD
	case in.ComputeClusterID == "":
		return errMissingComputeClusterID
	case in.InstanceConfigurationID == "":
		return errMissingInstanceConfigID
	case in.Size <= 0:
		return errInvalidClusterSize
	default:
		return nil
	}
}
