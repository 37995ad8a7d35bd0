// Package campaign manages promotional campaigns: their derived lifecycle
// status, the local validation rules a submission must pass, and the calls to
// the backend's campaign and upload resources.
package campaign

import (
	"strings"
	"time"
)

// Status is the lifecycle phase of a campaign, derived from its dates and the
// current day.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
)

// ComputeStatus gives the status of a campaign running from start to end
// (inclusive) as of the calendar day of now. A campaign starting after today
// is scheduled, one that ended before today is expired, and anything else is
// active.
func ComputeStatus(start, end Date, now time.Time) Status {
	today := DateOf(now)

	if start.After(today) {
		return StatusScheduled
	} else if end.Before(today) {
		return StatusExpired
	}
	return StatusActive
}

// Slot is one of the named image positions of a campaign.
type Slot string

const (
	SlotBackground  Slot = "background"
	SlotLogo        Slot = "logo"
	SlotScreensaver Slot = "screensaver"
)

// Slots lists every image slot in display order.
var Slots = []Slot{SlotBackground, SlotLogo, SlotScreensaver}

// ParseSlot returns the Slot named by s, ignoring case.
func ParseSlot(s string) (Slot, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sl := range Slots {
		if string(sl) == s {
			return sl, true
		}
	}
	return "", false
}

// Image describes an image stored by the backend.
type Image struct {
	URL         string `json:"url"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	UploadedAt  string `json:"uploaded_at,omitempty"`
}

// ImageSet maps each slot to its stored image. A slot with no image is either
// missing or nil.
type ImageSet map[Slot]*Image

// Count returns the number of slots that have an image.
func (is ImageSet) Count() int {
	var n int
	for _, img := range is {
		if img != nil {
			n++
		}
	}
	return n
}

// Campaign is a named promotional period. Status is recomputed by the client
// whenever campaigns are read and is never sent back.
type Campaign struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	StartDate Date     `json:"start_date"`
	EndDate   Date     `json:"end_date"`
	Status    Status   `json:"status"`
	Images    ImageSet `json:"images,omitempty"`
}

// Counts is the tally of campaigns shown at the top of the campaign view.
type Counts struct {
	Total     int
	Active    int
	Scheduled int
	Expired   int
}

// Tally counts campaigns by their status.
func Tally(campaigns []Campaign) Counts {
	c := Counts{Total: len(campaigns)}
	for _, camp := range campaigns {
		switch camp.Status {
		case StatusActive:
			c.Active++
		case StatusScheduled:
			c.Scheduled++
		case StatusExpired:
			c.Expired++
		}
	}
	return c
}
