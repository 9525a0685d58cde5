package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/containerengine"
)

// ListOKEClusters lists the Kubernetes clusters of a compartment.
func (c *Client) ListOKEClusters(ctx context.Context, compartmentID string) (Page[OKECluster], error) {
	if compartmentID == "" {
		return Page[OKECluster]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListClusters", func(ctx context.Context, page *string) ([]OKECluster, *string, error) {
		var request containerengine.ListClustersRequest

		request.CompartmentId = &compartmentID
		request.Page = page
		request.Limit = pageLimit()
		request.RequestMetadata = noRetry()

		response, err := c.containers.ListClusters(ctx, request)
		if err != nil {
			return nil, nil, fmt.Errorf("list clusters: %w", err)
		}

		items := make([]OKECluster, 0, len(response.Items))
		for _, item := range response.Items {
			items = append(items, OKECluster{
				ID:                deref(item.Id),
				Name:              deref(item.Name),
				KubernetesVersion: deref(item.KubernetesVersion),
				VCNID:             deref(item.VcnId),
				LifecycleState:    NormalizeLifecycleState(string(item.LifecycleState)),
				RawState:          string(item.LifecycleState),
			})
		}

		return items, response.OpcNextPage, nil
	})
}
