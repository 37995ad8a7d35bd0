package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/service"
)

const maxUploadMemory = 32 << 20

func (api API) campaignModel(c dao.Campaign) CampaignModel {
	return CampaignModel{
		ID:        c.ID,
		Name:      c.Name,
		StartDate: campaign.DateOf(c.StartDate).String(),
		EndDate:   campaign.DateOf(c.EndDate).String(),
		Status:    api.Backend.Status(c),
		CreatedAt: c.Created.UTC().Format(time.RFC3339),
	}
}

func imageModels(imgs []dao.Image) map[string]ImageModel {
	models := make(map[string]ImageModel, len(imgs))
	for _, img := range imgs {
		models[img.Slot] = ImageModel{
			URL:         imageURL(img),
			Filename:    img.Filename,
			ContentType: img.ContentType,
			Size:        int64(len(img.Data)),
			UploadedAt:  img.Uploaded.UTC().Format(time.RFC3339),
		}
	}
	return models
}

func imageURL(img dao.Image) string {
	return fmt.Sprintf("%s/files/%d/%s", PathPrefix, img.CampaignID, img.Slot)
}

// readUploads gets the image file in each slot field of a parsed multipart
// form. Slots with no file are skipped.
func readUploads(req *http.Request) ([]service.Upload, error) {
	var uploads []service.Upload
	for _, slot := range campaign.Slots {
		f, hdr, err := req.FormFile(string(slot))
		if err == http.ErrMissingFile {
			continue
		} else if err != nil {
			return nil, err
		}

		data, err := io.ReadAll(io.LimitReader(f, campaign.MaxImageSize+1))
		f.Close()
		if err != nil {
			return nil, err
		}
		if len(data) > campaign.MaxImageSize {
			return nil, fmt.Errorf("%s: file is larger than %d bytes", hdr.Filename, campaign.MaxImageSize)
		}

		uploads = append(uploads, service.Upload{
			Slot:     string(slot),
			Filename: hdr.Filename,
			Data:     data,
		})
	}
	return uploads, nil
}

// HTTPGetCampaigns returns a HandlerFunc that lists the campaigns of the
// logged-in user.
func (api API) HTTPGetCampaigns() http.HandlerFunc {
	return api.Endpoint(api.epGetCampaigns)
}

func (api API) epGetCampaigns(req *http.Request) result.Result {
	user := middle.User(req)

	camps, err := api.Backend.GetCampaigns(req.Context(), user)
	if err != nil {
		return errResult(err, "get campaigns")
	}

	resp := make([]CampaignModel, len(camps))
	for i := range camps {
		resp[i] = api.campaignModel(camps[i])
	}

	return result.OK(resp, "user '%s' got all campaigns", user.Email)
}

// HTTPCreateCampaign returns a HandlerFunc that creates a campaign owned by the
// logged-in user. The request is either JSON metadata, or a multipart form with
// the metadata as fields and optional image files in the slot fields.
func (api API) HTTPCreateCampaign() http.HandlerFunc {
	return api.Endpoint(api.epCreateCampaign)
}

func (api API) epCreateCampaign(req *http.Request) result.Result {
	user := middle.User(req)
	act := api.startActivity(req, service.ActionCreateCampaign, service.ResourceCampaign)

	var in service.CampaignInput
	var uploads []service.Upload

	if isMultipart(req) {
		if err := req.ParseMultipartForm(maxUploadMemory); err != nil {
			return act.finish(result.BadRequest("Malformed form data", "parse multipart: %s", err.Error()))
		}
		in = service.CampaignInput{
			Name:      req.FormValue("name"),
			StartDate: req.FormValue("start_date"),
			EndDate:   req.FormValue("end_date"),
		}
		var err error
		uploads, err = readUploads(req)
		if err != nil {
			return act.finish(result.BadRequest(err.Error(), "read uploads: %s", err.Error()))
		}
	} else {
		var data CampaignRequest
		if err := parseJSON(req, &data); err != nil {
			return act.finish(result.BadRequest(err.Error(), err.Error()))
		}
		in = service.CampaignInput(data)
	}
	act.detail("name", in.Name).detail("start_date", in.StartDate).detail("end_date", in.EndDate)

	created, err := api.Backend.CreateCampaign(req.Context(), user, in)
	if err != nil {
		return act.finish(errResult(err, "create campaign"))
	}
	act.resource(created.ID)

	resp := CampaignWithImagesResponse{CampaignModel: api.campaignModel(created)}
	if len(uploads) > 0 {
		stored, err := api.Backend.SaveImages(req.Context(), user, created.ID, uploads)
		if err != nil {
			// the campaign is kept even if its images are rejected
			act.detail("image_error", err.Error())
		} else {
			resp.Images = imageModels(stored)
			act.detail("images", len(stored))
		}
	}

	return act.finish(result.Created(resp, "user '%s' created campaign %d", user.Email, created.ID))
}

// HTTPUpdateCampaign returns a HandlerFunc that replaces the metadata of one
// of the logged-in user's campaigns.
func (api API) HTTPUpdateCampaign() http.HandlerFunc {
	return api.Endpoint(api.epUpdateCampaign)
}

func (api API) epUpdateCampaign(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := middle.User(req)
	act := api.startActivity(req, service.ActionUpdateCampaign, service.ResourceCampaign).resource(id)

	var data CampaignRequest
	if err := parseJSON(req, &data); err != nil {
		return act.finish(result.BadRequest(err.Error(), err.Error()))
	}
	act.detail("name", data.Name).detail("start_date", data.StartDate).detail("end_date", data.EndDate)

	updated, err := api.Backend.UpdateCampaign(req.Context(), user, id, service.CampaignInput(data))
	if err != nil {
		return act.finish(errResult(err, "update campaign"))
	}

	return act.finish(result.OK(api.campaignModel(updated), "user '%s' updated campaign %d", user.Email, id))
}

// HTTPDeleteCampaign returns a HandlerFunc that deletes one of the logged-in
// user's campaigns along with its images.
func (api API) HTTPDeleteCampaign() http.HandlerFunc {
	return api.Endpoint(api.epDeleteCampaign)
}

func (api API) epDeleteCampaign(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := middle.User(req)
	act := api.startActivity(req, service.ActionDeleteCampaign, service.ResourceCampaign).resource(id)

	deleted, err := api.Backend.DeleteCampaign(req.Context(), user, id)
	if err != nil {
		return act.finish(errResult(err, "delete campaign"))
	}
	act.detail("name", deleted.Name)

	return act.finish(result.OK(MessageResponse{Message: "Campaign deleted"}, "user '%s' deleted campaign %d", user.Email, id))
}

// HTTPGetCampaignImages returns a HandlerFunc that lists the images stored for
// one of the logged-in user's campaigns, keyed by slot.
func (api API) HTTPGetCampaignImages() http.HandlerFunc {
	return api.Endpoint(api.epGetCampaignImages)
}

func (api API) epGetCampaignImages(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := middle.User(req)

	imgs, err := api.Backend.GetImages(req.Context(), user, id)
	if err != nil {
		return errResult(err, "get images")
	}

	return result.OK(ImagesResponse{Images: imageModels(imgs)}, "user '%s' got images of campaign %d", user.Email, id)
}

// HTTPCreateUpload returns a HandlerFunc that stores the image files of a
// multipart form into the slots of one of the logged-in user's campaigns.
func (api API) HTTPCreateUpload() http.HandlerFunc {
	return api.Endpoint(api.epCreateUpload)
}

func (api API) epCreateUpload(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := middle.User(req)
	act := api.startActivity(req, service.ActionUploadImages, service.ResourceCampaign).resource(id)

	if !isMultipart(req) {
		return act.finish(result.BadRequest("No valid image files provided", "request is not multipart"))
	}
	if err := req.ParseMultipartForm(maxUploadMemory); err != nil {
		return act.finish(result.BadRequest("Malformed form data", "parse multipart: %s", err.Error()))
	}

	uploads, err := readUploads(req)
	if err != nil {
		return act.finish(result.BadRequest(err.Error(), "read uploads: %s", err.Error()))
	}

	stored, err := api.Backend.SaveImages(req.Context(), user, id, uploads)
	if err != nil {
		return act.finish(errResult(err, "save images"))
	}

	resp := UploadResponse{
		Message: "Images uploaded successfully",
		Images:  imageModels(stored),
	}
	var slots []string
	for _, img := range stored {
		resp.UploadedFiles = append(resp.UploadedFiles, UploadedFileModel{
			Type:     img.Slot,
			Path:     imageURL(img),
			Filename: img.Filename,
		})
		slots = append(slots, img.Slot)
	}
	act.detail("slots", slots)

	return act.finish(result.OK(resp, "user '%s' uploaded %d image(s) to campaign %d", user.Email, len(stored), id))
}

// HTTPGetImageFile returns a HandlerFunc that serves the raw data of the image
// in one slot of a campaign. Image files are public.
func (api API) HTTPGetImageFile() http.HandlerFunc {
	return api.Endpoint(api.epGetImageFile)
}

func (api API) epGetImageFile(req *http.Request) result.Result {
	id := requireIDParam(req)
	slot, err := getURLParam(req, "slot", func(s string) (string, error) { return s, nil })
	if err != nil {
		return result.NotFound("no slot given")
	}

	img, err := api.Backend.GetImageFile(req.Context(), id, slot)
	if err != nil {
		return errResult(err, "get image file")
	}

	return result.File(img.ContentType, img.Data, "served %s of campaign %d", img.Slot, id)
}
