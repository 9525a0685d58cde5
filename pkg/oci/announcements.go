package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/announcementsservice"
)

// ListAnnouncements lists the console announcements of a tenancy.
func (c *Client) ListAnnouncements(ctx context.Context, tenancyID string) (Page[Announcement], error) {
	if tenancyID == "" {
		return Page[Announcement]{}, errMissingCompartmentID
	}

	return listAll(ctx, c, "ListAnnouncements",
		func(ctx context.Context, page *string) ([]Announcement, *string, error) {
			var request announcementsservice.ListAnnouncementsRequest

			request.CompartmentId = &tenancyID
			request.Page = page
			request.Limit = pageLimit()
			request.RequestMetadata = noRetry()

			response, err := c.announcements.ListAnnouncements(ctx, request)
			if err != nil {
				return nil, nil, fmt.Errorf("list announcements: %w", err)
			}

			items := make([]Announcement, 0, len(response.Items))
			for _, item := range response.Items {
				items = append(items, Announcement{
					ID:               deref(item.Id),
					ReferenceTicket:  deref(item.ReferenceTicketNumber),
					Summary:          deref(item.Summary),
					AnnouncementType: string(item.AnnouncementType),
					LifecycleState:   string(item.LifecycleState),
					Services:         append([]string{}, item.Services...),
					AffectedRegions:  append([]string{}, item.AffectedRegions...),
					TimeOneValue:     sdkTime(item.TimeOneValue),
					TimeCreated:      sdkTime(item.TimeCreated),
				})
			}

			return items, response.OpcNextPage, nil
		})
}

// GetAnnouncement fetches the full text of one announcement.
func (c *Client) GetAnnouncement(ctx context.Context, announcementID string) (AnnouncementDetail, error) {
	if announcementID == "" {
		return AnnouncementDetail{}, errMissingAnnouncement
	}

	var detail AnnouncementDetail

	err := c.do(ctx, "GetAnnouncement", func(ctx context.Context) error {
		var request announcementsservice.GetAnnouncementRequest

		request.AnnouncementId = &announcementID
		request.RequestMetadata = noRetry()

		response, err := c.announcements.GetAnnouncement(ctx, request)
		if err != nil {
			return fmt.Errorf("get announcement: %w", err)
		}

		item := response.Announcement
		detail = AnnouncementDetail{
			Announcement: Announcement{
				ID:               deref(item.Id),
				ReferenceTicket:  deref(item.ReferenceTicketNumber),
				Summary:          deref(item.Summary),
				AnnouncementType: string(item.AnnouncementType),
				LifecycleState:   string(item.LifecycleState),
				Services:         append([]string{}, item.Services...),
				AffectedRegions:  append([]string{}, item.AffectedRegions...),
				TimeOneValue:     sdkTime(item.TimeOneValue),
				TimeCreated:      sdkTime(item.TimeCreated),
			},
			Description:           deref(item.Description),
			AdditionalInformation: deref(item.AdditionalInformation),
			AffectedResources:     make([]AffectedResource, 0, len(item.AffectedResources)),
		}

		for _, resource := range item.AffectedResources {
			detail.AffectedResources = append(detail.AffectedResources, AffectedResource{
				ResourceID:   deref(resource.ResourceId),
				ResourceName: deref(resource.ResourceName),
				Region:       deref(resource.Region),
			})
		}

		return nil
	})
	if err != nil {
		return AnnouncementDetail{}, err
	}

	return detail, nil
}
