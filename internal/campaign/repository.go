package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/logging"
)

// ErrNoFiles is returned by the upload functions when there is nothing to
// upload. No request is made in that case.
var ErrNoFiles = errors.New("no image files to upload")

// UploadedFile is one stored file reported back by an upload.
type UploadedFile struct {
	Type     Slot   `json:"type"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// UploadResult is the backend's response to an image upload.
type UploadResult struct {
	Message       string         `json:"message"`
	UploadedFiles []UploadedFile `json:"uploaded_files"`
	Images        ImageSet       `json:"images,omitempty"`
}

// Repository performs campaign operations against the backend.
type Repository struct {
	api apiclient.Requester
	log *slog.Logger

	// Now gives the current time for status computation. Defaults to
	// time.Now.
	Now func() time.Time
}

func NewRepository(api apiclient.Requester, lg *slog.Logger) *Repository {
	return &Repository{
		api: api,
		log: logging.OrDiscard(lg),
		Now: time.Now,
	}
}

// List returns every campaign visible to the current user. The status of each
// is computed locally; whatever the backend reported is discarded.
func (r *Repository) List(ctx context.Context) ([]Campaign, error) {
	var campaigns []Campaign
	if err := r.api.Get(ctx, "campaigns", &campaigns); err != nil {
		return nil, translate(err, "Failed to load campaigns")
	}

	now := r.Now()
	for i := range campaigns {
		campaigns[i].Status = ComputeStatus(campaigns[i].StartDate, campaigns[i].EndDate, now)
	}
	return campaigns, nil
}

// Create creates a campaign from metadata only.
func (r *Repository) Create(ctx context.Context, p Payload) (Campaign, error) {
	var created Campaign
	if err := r.api.Post(ctx, "campaigns", p, &created); err != nil {
		return Campaign{}, translate(err, "Failed to create campaign")
	}
	return r.withStatus(created), nil
}

// CreateWithImages creates a campaign and its initial images in a single
// multipart request. If files is empty it behaves like Create.
func (r *Repository) CreateWithImages(ctx context.Context, p Payload, files Files) (Campaign, error) {
	if len(files) == 0 {
		return r.Create(ctx, p)
	}

	form := apiclient.NewFormData().
		AddField("name", p.Name).
		AddField("start_date", p.StartDate.String()).
		AddField("end_date", p.EndDate.String())
	addFiles(form, files)

	var created Campaign
	if err := r.api.PostMultipart(ctx, "campaigns", form, &created); err != nil {
		return Campaign{}, translate(err, "Failed to create campaign")
	}
	return r.withStatus(created), nil
}

func (r *Repository) Update(ctx context.Context, id int, p Payload) (Campaign, error) {
	var updated Campaign
	if err := r.api.Put(ctx, fmt.Sprintf("campaigns/%d", id), p, &updated); err != nil {
		return Campaign{}, translate(err, "Failed to update campaign")
	}
	return r.withStatus(updated), nil
}

func (r *Repository) Delete(ctx context.Context, id int) error {
	if err := r.api.Delete(ctx, fmt.Sprintf("campaigns/%d", id), nil); err != nil {
		return translate(err, "Failed to delete campaign")
	}
	return nil
}

// GetImages returns the stored images of a campaign.
func (r *Repository) GetImages(ctx context.Context, id int) (ImageSet, error) {
	var resp struct {
		Images ImageSet `json:"images"`
	}
	if err := r.api.Get(ctx, fmt.Sprintf("campaigns/%d/images", id), &resp); err != nil {
		return nil, translate(err, "Failed to load campaign images")
	}
	if resp.Images == nil {
		resp.Images = ImageSet{}
	}
	return resp.Images, nil
}

// UploadFromFiles uploads each file to its slot of campaign id. Slots not in
// files are left as they are. If files is empty, ErrNoFiles is returned and no
// request is made.
func (r *Repository) UploadFromFiles(ctx context.Context, id int, files Files) (UploadResult, error) {
	if len(files) == 0 {
		return UploadResult{}, ErrNoFiles
	}
	form := apiclient.NewFormData()
	addFiles(form, files)
	return r.UploadFromFormData(ctx, id, form)
}

// UploadFromFormData sends an already-built multipart form to the upload
// resource of campaign id. If form has no parts, ErrNoFiles is returned and no
// request is made.
func (r *Repository) UploadFromFormData(ctx context.Context, id int, form *apiclient.FormData) (UploadResult, error) {
	if form == nil || form.Len() == 0 {
		return UploadResult{}, ErrNoFiles
	}

	var result UploadResult
	if err := r.api.PostMultipart(ctx, fmt.Sprintf("uploads/%d", id), form, &result); err != nil {
		return UploadResult{}, translate(err, "Failed to upload images")
	}
	return result, nil
}

// LoadAllImages fetches the images of every campaign at once and waits for all
// of them. A campaign whose images cannot be fetched gets an empty ImageSet;
// the failure is logged and does not fail the whole load.
func (r *Repository) LoadAllImages(ctx context.Context, campaigns []Campaign) map[int]ImageSet {
	sets := make([]ImageSet, len(campaigns))

	var wg sync.WaitGroup
	for i := range campaigns {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			id := campaigns[idx].ID

			imgs, err := r.GetImages(ctx, id)
			if err != nil {
				r.log.Warn("could not load campaign images", "campaign", id, "error", err)
				imgs = ImageSet{}
			}
			sets[idx] = imgs
		}(i)
	}
	wg.Wait()

	all := make(map[int]ImageSet, len(campaigns))
	for i, c := range campaigns {
		all[c.ID] = sets[i]
	}
	return all
}

func (r *Repository) withStatus(c Campaign) Campaign {
	c.Status = ComputeStatus(c.StartDate, c.EndDate, r.Now())
	return c
}

func addFiles(form *apiclient.FormData, files Files) {
	// slot order keeps request bodies deterministic
	for _, slot := range Slots {
		f, ok := files[slot]
		if !ok {
			continue
		}
		form.AddFile(string(slot), apiclient.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}
}

// translate turns a request error into one fit for the console. A 409 keeps
// the backend's message verbatim.
func translate(err error, fallback string) error {
	status := apiclient.Status(err)
	msg := apiclient.Message(err)

	switch {
	case status == http.StatusConflict:
		if msg == "" {
			msg = "Campaign conflicts with an existing campaign"
		}
		return cmerr.Conflict(msg, err)
	case status != 0 && msg != "":
		return cmerr.WithConsole(fallback+": "+msg, "", err)
	default:
		return cmerr.WithConsole(fallback, "", err)
	}
}
