package campaign

import (
	"fmt"
	"strings"

	"github.com/dekarrin/campman/internal/cmerr"
)

// MaxImageSize is the largest image file, in bytes, that may be attached to a
// campaign.
const MaxImageSize = 16 << 20

// ConflictPolicy selects when ValidateForm checks for overlap with other
// active campaigns.
type ConflictPolicy int

const (
	// CheckEdits checks both new campaigns and edits. An edited campaign never
	// conflicts with itself.
	CheckEdits ConflictPolicy = iota

	// CheckCreatesOnly checks new campaigns only.
	CheckCreatesOnly
)

func (p ConflictPolicy) String() string {
	switch p {
	case CheckEdits:
		return "check-edits"
	case CheckCreatesOnly:
		return "check-creates-only"
	default:
		return fmt.Sprintf("ConflictPolicy(%d)", int(p))
	}
}

// FindConflict returns the first campaign in existing that conflicts with a
// candidate running from start to end. A campaign conflicts if its ID is not
// excludeID, its status is active, and its dates overlap the candidate's with
// both ends inclusive. An excludeID of 0 excludes nothing.
func FindConflict(start, end Date, existing []Campaign, excludeID int) (Campaign, bool) {
	for _, c := range existing {
		if excludeID != 0 && c.ID == excludeID {
			continue
		}
		if c.Status != StatusActive {
			continue
		}
		if !start.After(c.EndDate) && !end.Before(c.StartDate) {
			return c, true
		}
	}
	return Campaign{}, false
}

// HasConflict returns whether FindConflict finds any conflicting campaign.
func HasConflict(start, end Date, existing []Campaign, excludeID int) bool {
	_, found := FindConflict(start, end, existing, excludeID)
	return found
}

// File is an image file chosen for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Files maps each slot to the file to upload into it.
type Files map[Slot]File

// AdmitImage checks whether a file may be attached to a campaign. It must be no
// larger than MaxImageSize and its content type must be an image type.
func AdmitImage(name, contentType string, size int64) error {
	if size > MaxImageSize {
		return cmerr.Validation("%s is larger than the %d MiB image limit", displayName(name), MaxImageSize>>20)
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return cmerr.Validation("%s is not an image file", displayName(name))
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "file"
	}
	return fmt.Sprintf("%q", name)
}

// Form is a campaign being created or edited. Dates are kept as entered until
// the form is validated.
type Form struct {
	// ID is the campaign being edited, or 0 for a new campaign.
	ID int

	Name      string
	StartDate string
	EndDate   string

	pending Files
}

// EditForm returns a Form pre-filled from an existing campaign.
func EditForm(c Campaign) Form {
	return Form{
		ID:        c.ID,
		Name:      c.Name,
		StartDate: c.StartDate.String(),
		EndDate:   c.EndDate.String(),
	}
}

func (f Form) IsEdit() bool {
	return f.ID != 0
}

// SetImage attaches f to slot if AdmitImage allows it. On rejection the
// pending images are left exactly as they were.
func (f *Form) SetImage(slot Slot, file File) error {
	if err := AdmitImage(file.Name, file.ContentType, file.Size()); err != nil {
		return err
	}
	if f.pending == nil {
		f.pending = Files{}
	}
	f.pending[slot] = file
	return nil
}

// ClearImage removes any pending image for slot.
func (f *Form) ClearImage(slot Slot) {
	delete(f.pending, slot)
}

// PendingImages returns a copy of the images attached to the form.
func (f Form) PendingImages() Files {
	if len(f.pending) == 0 {
		return nil
	}
	cp := make(Files, len(f.pending))
	for k, v := range f.pending {
		cp[k] = v
	}
	return cp
}

// Payload is the campaign metadata sent to the backend.
type Payload struct {
	Name      string `json:"name"`
	StartDate Date   `json:"start_date"`
	EndDate   Date   `json:"end_date"`
}

// ValidateForm checks f before it is submitted and returns the payload to
// send. Every returned error matches cmerr.ErrValidation and means that no
// request should be made. Conflicts are checked against existing according to
// policy.
func ValidateForm(f Form, existing []Campaign, policy ConflictPolicy) (Payload, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return Payload{}, cmerr.Validation("Campaign name is required")
	}
	if strings.TrimSpace(f.StartDate) == "" {
		return Payload{}, cmerr.Validation("Start date is required")
	}
	if strings.TrimSpace(f.EndDate) == "" {
		return Payload{}, cmerr.Validation("End date is required")
	}

	start, err := ParseDate(f.StartDate)
	if err != nil {
		return Payload{}, cmerr.Validation("Start date must be in YYYY-MM-DD format")
	}
	end, err := ParseDate(f.EndDate)
	if err != nil {
		return Payload{}, cmerr.Validation("End date must be in YYYY-MM-DD format")
	}

	if !start.Before(end) {
		return Payload{}, cmerr.Validation("End date must be after start date")
	}

	if !f.IsEdit() || policy == CheckEdits {
		if other, found := FindConflict(start, end, existing, f.ID); found {
			return Payload{}, cmerr.Validation(
				"Campaign dates conflict with active campaign %q (%s to %s)",
				other.Name, other.StartDate, other.EndDate,
			)
		}
	}

	return Payload{Name: name, StartDate: start, EndDate: end}, nil
}
