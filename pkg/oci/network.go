package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/core"
)

// ListVCNs lists the virtual cloud networks of a compartment.
func (c *Client) ListVCNs(ctx context.Context, compartmentID string) (Page[VCN], error) {
	if compartmentID == "" {
		return Page[VCN]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListVcns", func(ctx context.Context, page *string) ([]VCN, *string, error) {
		var request core.ListVcnsRequest

		request.CompartmentId = &compartmentID
		request.Page = page
		request.Limit = pageLimit()
		request.RequestMetadata = noRetry()

		response, err := c.network.ListVcns(ctx, request)
		if err != nil {
			return nil, nil, fmt.Errorf("list vcns: %w", err)
		}

		items := make([]VCN, 0, len(response.Items))
		for _, item := range response.Items {
			blocks := append([]string(nil), item.CidrBlocks...)
			if len(blocks) == 0 && item.CidrBlock != nil {
				blocks = []string{*item.CidrBlock}
			}

			items = append(items, VCN{
				ID:             deref(item.Id),
				DisplayName:    deref(item.DisplayName),
				CIDRBlocks:     blocks,
				LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
				RawState:       string(item.LifecycleState),
			})
		}

		return items, response.OpcNextPage, nil
	})
}

// ListSubnets lists the subnets of a compartment, optionally restricted to one VCN.
func (c *Client) ListSubnets(ctx context.Context, compartmentID, vcnID string) (Page[Subnet], error) {
	if compartmentID == "" {
		return Page[Subnet]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListSubnets", func(ctx context.Context, page *string) ([]Subnet, *string, error) {
		var request core.ListSubnetsRequest

		request.CompartmentId = &compartmentID
		request.VcnId = optionalString(vcnID)
		request.Page = page
		request.Limit = pageLimit()
		request.RequestMetadata = noRetry()

		response, err := c.network.ListSubnets(ctx, request)
		if err != nil {
			return nil, nil, fmt.Errorf("list subnets: %w", err)
		}

		items := make([]Subnet, 0, len(response.Items))
		for _, item := range response.Items {
			items = append(items, Subnet{
				ID:                 deref(item.Id),
				DisplayName:        deref(item.DisplayName),
				VCNID:              deref(item.VcnId),
				CIDRBlock:          deref(item.CidrBlock),
				Public:             !derefBool(item.ProhibitPublicIpOnVnic),
				AvailabilityDomain: deref(item.AvailabilityDomain),
				LifecycleState:     NormalizeLifecycleState(string(item.LifecycleState)),
				RawState:           string(item.LifecycleState),
			})
		}

		return items, response.OpcNextPage, nil
	})
}

// ListNSGs lists the network security groups of a compartment, optionally for one VCN.
func (c *Client) ListNSGs(ctx context.Context, compartmentID, vcnID string) (Page[NSG], error) {
	if compartmentID == "" {
		return Page[NSG]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListNetworkSecurityGroups",
		func(ctx context.Context, page *string) ([]NSG, *string, error) {
			var request core.ListNetworkSecurityGroupsRequest

			request.CompartmentId = &compartmentID
			request.VcnId = optionalString(vcnID)
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.network.ListNetworkSecurityGroups(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list network security groups: %w", err)
			}

			items := make([]NSG, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, NSG{
					ID:             deref(item.Id),
					DisplayName:    deref(item.DisplayName),
					VCNID:          deref(item.VcnId),
					LifecycleState: NormalizeLifecycleState(string(item.LifecycleState)),
					RawState:       string(item.LifecycleState),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// ListNSGRules lists the security rules of one network security group.
func (c *Client) ListNSGRules(ctx context.Context, nsgID string) (Page[SecurityRule], error) {
	if nsgID == "" {
		return Page[SecurityRule]{}, errMissingNSGID
	}

	return listAll(ctx, c, "ListNetworkSecurityGroupSecurityRules",
		func(ctx context.Context, page *string) ([]SecurityRule, *string, error) {
			var request core.ListNetworkSecurityGroupSecurityRulesRequest

			request.NetworkSecurityGroupId = &nsgID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.network.ListNetworkSecurityGroupSecurityRules(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list network security group rules: %w", err)
			}

			items := make([]SecurityRule, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, convertSecurityRule(item))
			}

			return items, response.OpcNextPage, nil
		})
}

func convertSecurityRule(item core.SecurityRule) SecurityRule {
	rule := SecurityRule{
		ID:              deref(item.Id),
		Direction:       string(item.Direction),
		Protocol:        protocolName(deref(item.Protocol)),
		Source:          deref(item.Source),
		SourceType:      string(item.SourceType),
		Destination:     deref(item.Destination),
		DestinationType: string(item.DestinationType),
		Stateless:       derefBool(item.IsStateless),
		Description:     deref(item.Description),
	}

	var ports *core.PortRange

	switch {
	case item.TcpOptions != nil:
		ports = item.TcpOptions.DestinationPortRange
	case item.UdpOptions != nil:
		ports = item.UdpOptions.DestinationPortRange
	}

	if ports != nil && ports.Min != nil && ports.Max != nil {
		rule.PortMin = *ports.Min
		rule.PortMax = *ports.Max
	}

	return rule
}

// protocolName maps the IANA protocol numbers the API returns onto readable names.
func protocolName(number string) string {
	switch number {
	case "all":
		return "ALL"
	case "1":
		return "ICMP"
	case "6":
		return "TCP"
	case "17":
		return "UDP"
	case "58":
		return "ICMPv6"
	default:
		return number
	}
}
