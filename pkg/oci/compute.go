package oci

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oracle/oci-go-sdk/v65/core"
)

// CreateComputeClusterInput describes a compute cluster to provision.
type CreateComputeClusterInput struct {
	CompartmentID      string
	AvailabilityDomain string
	DisplayName        string
}

// ListComputeClusters lists the compute clusters of a compartment.
func (c *Client) ListComputeClusters(
	ctx context.Context,
	compartmentID, availabilityDomain string,
) (Page[ComputeCluster], error) {
	if compartmentID == "" {
		return Page[ComputeCluster]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListComputeClusters",
		func(ctx context.Context, page *string) ([]ComputeCluster, *string, error) {
			var request core.ListComputeClustersRequest

			request.CompartmentId = &compartmentID
			request.AvailabilityDomain = optionalString(availabilityDomain)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListComputeClusters(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list compute clusters: %w", err)
			}

			items := make([]ComputeCluster, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, ComputeCluster{
					ID:                 deref(item.Id),
					DisplayName:        deref(item.DisplayName),
					AvailabilityDomain: deref(item.AvailabilityDomain),
					LifecycleState:     NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:           string(item.LifecycleState),
					TimeCreated:        sdkTime(item.TimeCreated),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// CreateComputeCluster provisions a compute cluster. The call carries a fresh opc-retry-token
// and is never retried: callers must list existing clusters before re-issuing a create after
// an ambiguous failure, or they risk provisioning a duplicate.
func (c *Client) CreateComputeCluster(
	ctx context.Context,
	input CreateComputeClusterInput,
) (ComputeCluster, error) {
	if input.CompartmentID == "" {
		return ComputeCluster{}, errMissingCompartmentID
	}

	if input.AvailabilityDomain == "" {
		return ComputeCluster{}, errMissingAD
	}

	var details core.CreateComputeClusterDetails

	details.CompartmentId = &input.CompartmentID
	details.AvailabilityDomain = &input.AvailabilityDomain
	details.DisplayName = optionalString(input.DisplayName)

	var request core.CreateComputeClusterRequest

	request.CreateComputeClusterDetails = details
	request.OpcRetryToken = retryToken()
	request.RequestMetadata = noRetry()

	var created ComputeCluster

	err := c.do(ctx, "CreateComputeCluster", func(ctx context.Context) error {
		response, err := c.compute.CreateComputeCluster(ctx, request)
		if err != nil {
			return fmt.Errorf("create compute cluster: %w", err)
		}

		created = ComputeCluster{
			ID:                 deref(response.Id),
			DisplayName:        deref(response.DisplayName),
			AvailabilityDomain: deref(response.AvailabilityDomain),
			LifecycleState:     NormalizeLifecycleState(string(response.LifecycleState)),
			RawState:           string(response.LifecycleState),
			TimeCreated:        sdkTime(response.TimeCreated),
		}

		return nil
	})
	if err != nil {
		return ComputeCluster{}, err
	}

	return created, nil
}

// GetInstance fetches one compute instance.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (Instance, error) {
	if instanceID == "" {
		return Instance{}, errMissingInstanceID
	}

	var instance Instance

	err := c.do(ctx, "GetInstance", func(ctx context.Context) error {
		var request core.GetInstanceRequest

		request.InstanceId = &instanceID
		request.RequestMetadata = noRetry()

		response, err := c.compute.GetInstance(ctx, request)
		if err != nil {
			return fmt.Errorf("get instance: %w", err)
		}

		instance = Instance{
			ID:                 deref(response.Id),
			DisplayName:        deref(response.DisplayName),
			Shape:              deref(response.Shape),
			AvailabilityDomain: deref(response.AvailabilityDomain),
			FaultDomain:        deref(response.FaultDomain),
			CompartmentID:      deref(response.CompartmentId),
			ImageID:            deref(response.ImageId),
			LifecycleState:     NormalizeLifecycleState(string(response.LifecycleState)),
			RawState:           string(response.LifecycleState),
		}

		return nil
	})
	if err != nil {
		return Instance{}, err
	}

	return instance, nil
}

// GetBootVolume resolves the boot volume attached to an instance. ErrNotFound is returned
// when the instance has no boot volume attachment.
func (c *Client) GetBootVolume(ctx context.Context, instance Instance) (BootVolume, error) {
	if instance.ID == "" {
		return BootVolume{}, errMissingInstanceID
	}

	attachments, err := listAll(ctx, c, "ListBootVolumeAttachments",
		func(ctx context.Context, page *string) ([]string, *string, error) {
			var request core.ListBootVolumeAttachmentsRequest

			request.AvailabilityDomain = &instance.AvailabilityDomain
			request.CompartmentId = &instance.CompartmentID
			request.InstanceId = &instance.ID
			request.Page = page
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListBootVolumeAttachments(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list boot volume attachments: %w", err)
			}

			ids := make([]string, 0, len(response.Items))
			for _, item := range response.Items {
				if item.BootVolumeId != nil {
					ids = append(ids, *item.BootVolumeId)
				}
			}

			return ids, response.OpcNextPage, nil
		})
	if err != nil {
		return BootVolume{}, err
	}

	ids := attachments.Items()
	if len(ids) == 0 {
		return BootVolume{}, fmt.Errorf("%w: no boot volume attachment for instance %s", ErrNotFound, instance.ID)
	}

	var volume BootVolume

	err = c.do(ctx, "GetBootVolume", func(ctx context.Context) error {
		var request core.GetBootVolumeRequest

		request.BootVolumeId = &ids[0]
		request.RequestMetadata = noRetry()

		response, err := c.blockstorage.GetBootVolume(ctx, request)
		if err != nil {
			return fmt.Errorf("get boot volume: %w", err)
		}

		volume = BootVolume{
			ID:             deref(response.Id),
			DisplayName:    deref(response.DisplayName),
			SizeInGBs:      derefInt64(response.SizeInGBs),
			VPUsPerGB:      derefInt64(response.VpusPerGB),
			ImageID:        deref(response.ImageId),
			LifecycleState: NormalizeLifecycleState(string(response.LifecycleState)),
		}

		return nil
	})
	if err != nil {
		return BootVolume{}, err
	}

	return volume, nil
}

// ListImageShapeCompatibility lists the shapes an image is compatible with.
func (c *Client) ListImageShapeCompatibility(
	ctx context.Context,
	imageID string,
) (Page[ImageShapeCompatibility], error) {
	if imageID == "" {
		return Page[ImageShapeCompatibility]{}, errMissingImageID
	}

	return listAll(ctx, c, "ListImageShapeCompatibilityEntries",
		func(ctx context.Context, page *string) ([]ImageShapeCompatibility, *string, error) {
			var request core.ListImageShapeCompatibilityEntriesRequest

			request.ImageId = &imageID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.compute.ListImageShapeCompatibilityEntries(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list image shape compatibility entries: %w", err)
			}

			items := make([]ImageShapeCompatibility, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, ImageShapeCompatibility{
					ImageID: deref(item.ImageId),
					Shape:   deref(item.Shape),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// AddImageShapeCompatibility marks an image as compatible with a shape. The API treats the
// call as a PUT, so repeating it for an existing entry is harmless.
func (c *Client) AddImageShapeCompatibility(
	ctx context.Context,
	imageID, shape string,
) (ImageShapeCompatibility, error) {
	if imageID == "" {
		return ImageShapeCompatibility{}, errMissingImageID
	}

	if shape == "" {
		return ImageShapeCompatibility{}, errMissingShape
	}

	var entry ImageShapeCompatibility

	err := c.do(ctx, "AddImageShapeCompatibilityEntry", func(ctx context.Context) error {
		var request core.AddImageShapeCompatibilityEntryRequest

		request.ImageId = &imageID
		request.ShapeName = &shape
		request.RequestMetadata = noRetry()

		response, err := c.compute.AddImageShapeCompatibilityEntry(ctx, request)
		if err != nil {
			return fmt.Errorf("add image shape compatibility entry: %w", err)
		}

		entry = ImageShapeCompatibility{
			ImageID: deref(response.ImageId),
			Shape:   deref(response.Shape),
		}

		return nil
	})
	if err != nil {
		return ImageShapeCompatibility{}, err
	}

	return entry, nil
}

func retryToken() *string {
	token := uuid.NewString()

	return &token
}
