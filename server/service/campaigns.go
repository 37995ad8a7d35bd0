package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/serr"
)

// CampaignInput is the metadata of a campaign being created or updated, with
// dates as they were received.
type CampaignInput struct {
	Name      string
	StartDate string
	EndDate   string
}

// Status gives the lifecycle status of c as of now.
func (svc Service) Status(c dao.Campaign) campaign.Status {
	return campaign.ComputeStatus(campaign.DateOf(c.StartDate), campaign.DateOf(c.EndDate), svc.now())
}

// GetCampaigns returns every campaign owned by the given user.
func (svc Service) GetCampaigns(ctx context.Context, owner dao.User) ([]dao.Campaign, error) {
	camps, err := svc.DB.Campaigns().GetAllByOwner(ctx, owner.ID)
	if err != nil {
		return nil, serr.WrapDB("", err)
	}
	return camps, nil
}

// GetCampaign returns the campaign with the given ID if user owns it.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If no campaign with that ID
// exists, it will match serr.ErrNotFound. If it belongs to someone else, it
// will match serr.ErrPermissions. If the error occured due to an unexpected
// problem with the DB, it will match serr.ErrDB.
func (svc Service) GetCampaign(ctx context.Context, user dao.User, id int) (dao.Campaign, error) {
	c, err := svc.DB.Campaigns().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Campaign{}, serr.New("Campaign not found", serr.ErrNotFound)
		}
		return dao.Campaign{}, serr.WrapDB("could not get campaign", err)
	}

	if c.OwnerID != user.ID {
		return dao.Campaign{}, serr.New("Forbidden", serr.ErrPermissions)
	}

	return c, nil
}

// CreateCampaign creates a new campaign owned by user.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If the input is invalid, it
// will match serr.ErrBadArgument. If the dates overlap an active campaign, it
// will match serr.ErrConflict. If the error occured due to an unexpected
// problem with the DB, it will match serr.ErrDB.
func (svc Service) CreateCampaign(ctx context.Context, user dao.User, in CampaignInput) (dao.Campaign, error) {
	c, err := svc.checkCampaign(ctx, in, 0)
	if err != nil {
		return dao.Campaign{}, err
	}
	c.OwnerID = user.ID

	created, err := svc.DB.Campaigns().Create(ctx, c)
	if err != nil {
		return dao.Campaign{}, serr.WrapDB("could not create campaign", err)
	}

	return created, nil
}

// UpdateCampaign replaces the metadata of the campaign with the given ID. Only
// the campaign's owner may update it. Returns the updated campaign.
//
// The returned error, if non-nil, matches the same errors as CreateCampaign,
// and additionally serr.ErrNotFound and serr.ErrPermissions as GetCampaign
// does.
func (svc Service) UpdateCampaign(ctx context.Context, user dao.User, id int, in CampaignInput) (dao.Campaign, error) {
	existing, err := svc.GetCampaign(ctx, user, id)
	if err != nil {
		return dao.Campaign{}, err
	}

	c, err := svc.checkCampaign(ctx, in, id)
	if err != nil {
		return dao.Campaign{}, err
	}

	existing.Name = c.Name
	existing.StartDate = c.StartDate
	existing.EndDate = c.EndDate

	updated, err := svc.DB.Campaigns().Update(ctx, id, existing)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Campaign{}, serr.New("Campaign not found", serr.ErrNotFound)
		}
		return dao.Campaign{}, serr.WrapDB("could not update campaign", err)
	}

	return updated, nil
}

// DeleteCampaign removes the campaign with the given ID along with all of its
// images. Only the owner may delete it. Returns the campaign as it was just
// before deletion.
func (svc Service) DeleteCampaign(ctx context.Context, user dao.User, id int) (dao.Campaign, error) {
	if _, err := svc.GetCampaign(ctx, user, id); err != nil {
		return dao.Campaign{}, err
	}

	if err := svc.DB.Images().DeleteAllByCampaign(ctx, id); err != nil {
		return dao.Campaign{}, serr.WrapDB("could not delete campaign images", err)
	}

	deleted, err := svc.DB.Campaigns().Delete(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Campaign{}, serr.New("Campaign not found", serr.ErrNotFound)
		}
		return dao.Campaign{}, serr.WrapDB("could not delete campaign", err)
	}

	return deleted, nil
}

// checkCampaign validates in and returns a Campaign holding its values. The
// dates must not overlap any active campaign other than the one with ID
// selfID, regardless of who owns it.
func (svc Service) checkCampaign(ctx context.Context, in CampaignInput, selfID int) (dao.Campaign, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.StartDate) == "" || strings.TrimSpace(in.EndDate) == "" {
		return dao.Campaign{}, serr.New("Missing fields", serr.ErrBadArgument)
	}

	start, err := campaign.ParseDate(in.StartDate)
	if err != nil {
		return dao.Campaign{}, serr.New("Invalid date format, use YYYY-MM-DD", serr.ErrBadArgument)
	}
	end, err := campaign.ParseDate(in.EndDate)
	if err != nil {
		return dao.Campaign{}, serr.New("Invalid date format, use YYYY-MM-DD", serr.ErrBadArgument)
	}
	if !start.Before(end) {
		return dao.Campaign{}, serr.New("End date must be after start date", serr.ErrBadArgument)
	}

	all, err := svc.DB.Campaigns().GetAll(ctx)
	if err != nil {
		return dao.Campaign{}, serr.WrapDB("could not check for conflicts", err)
	}

	existing := make([]campaign.Campaign, len(all))
	for i := range all {
		existing[i] = campaign.Campaign{
			ID:        all[i].ID,
			Name:      all[i].Name,
			StartDate: campaign.DateOf(all[i].StartDate),
			EndDate:   campaign.DateOf(all[i].EndDate),
			Status:    svc.Status(all[i]),
		}
	}

	if other, found := campaign.FindConflict(start, end, existing, selfID); found {
		msg := fmt.Sprintf("Campaign dates overlap with active campaign %q (%s to %s)", other.Name, other.StartDate, other.EndDate)
		return dao.Campaign{}, serr.New(msg, serr.ErrConflict)
	}

	return dao.Campaign{
		Name:      name,
		StartDate: start.Time(),
		EndDate:   end.Time(),
	}, nil
}
