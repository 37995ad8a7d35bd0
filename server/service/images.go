package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/serr"
)

// allowedImageExts are the file extensions accepted for upload.
var allowedImageExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// slotSuffix is appended to a campaign's start date to name the stored file
// for each slot.
var slotSuffix = map[campaign.Slot]string{
	campaign.SlotBackground:  "bkg",
	campaign.SlotLogo:        "logo",
	campaign.SlotScreensaver: "screensaver_bkg",
}

// Upload is one file received for a slot of a campaign.
type Upload struct {
	Slot     string
	Filename string
	Data     []byte
}

// AllowedImage returns whether filename has one of the accepted image
// extensions.
func AllowedImage(filename string) bool {
	_, ok := allowedImageExts[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// StoredFilename gives the name an image in slot is stored under for
// campaign c. The original extension is kept.
func StoredFilename(c dao.Campaign, slot campaign.Slot, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = ".png"
	}
	return campaign.DateOf(c.StartDate).String() + slotSuffix[slot] + ext
}

// SaveImages stores the given uploads into the campaign with the given ID,
// replacing whatever was in each slot before. Uploads with an unknown slot or
// a disallowed extension are skipped. Returns the images that were stored.
//
// The returned error, if non-nil, will return true for various calls to
// errors.Is depending on what caused the error. If nothing could be stored, it
// will match serr.ErrBadArgument. It also matches the errors GetCampaign does.
func (svc Service) SaveImages(ctx context.Context, user dao.User, campaignID int, uploads []Upload) ([]dao.Image, error) {
	c, err := svc.GetCampaign(ctx, user, campaignID)
	if err != nil {
		return nil, err
	}

	var toStore []dao.Image
	for _, up := range uploads {
		slot, ok := campaign.ParseSlot(up.Slot)
		if !ok || len(up.Data) == 0 || !AllowedImage(up.Filename) {
			continue
		}

		toStore = append(toStore, dao.Image{
			CampaignID:  campaignID,
			Slot:        string(slot),
			Filename:    StoredFilename(c, slot, up.Filename),
			ContentType: allowedImageExts[strings.ToLower(filepath.Ext(up.Filename))],
			Data:        up.Data,
			Uploaded:    svc.now(),
		})
	}

	if len(toStore) == 0 {
		return nil, serr.New("No valid image files provided", serr.ErrBadArgument)
	}

	stored := make([]dao.Image, 0, len(toStore))
	for _, img := range toStore {
		saved, err := svc.DB.Images().Put(ctx, img)
		if err != nil {
			return stored, serr.WrapDB("could not store image", err)
		}
		stored = append(stored, saved)
	}

	return stored, nil
}

// GetImages returns the images stored for the campaign with the given ID.
func (svc Service) GetImages(ctx context.Context, user dao.User, campaignID int) ([]dao.Image, error) {
	if _, err := svc.GetCampaign(ctx, user, campaignID); err != nil {
		return nil, err
	}

	imgs, err := svc.DB.Images().GetAllByCampaign(ctx, campaignID)
	if err != nil {
		return nil, serr.WrapDB("could not get images", err)
	}
	return imgs, nil
}

// GetImageFile returns the image in one slot of a campaign, including its
// data. Image files are public.
func (svc Service) GetImageFile(ctx context.Context, campaignID int, slot string) (dao.Image, error) {
	sl, ok := campaign.ParseSlot(slot)
	if !ok {
		return dao.Image{}, serr.New("Unknown image slot", serr.ErrNotFound)
	}

	img, err := svc.DB.Images().Get(ctx, campaignID, string(sl))
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.Image{}, serr.New("Image not found", serr.ErrNotFound)
		}
		return dao.Image{}, serr.WrapDB("could not get image", err)
	}
	return img, nil
}
