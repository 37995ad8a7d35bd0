package api

import (
	"time"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/dao"
)

// note that these are *not* the DAO models; those are distinct and closer to
// the DB format they are in. Rather these are the models that are received from
// and sent to the client.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token                 string     `json:"token,omitempty"`
	User                  *UserModel `json:"user,omitempty"`
	RequiresPasswordSetup bool       `json:"requires_password_setup,omitempty"`
	SetupToken            string     `json:"setup_token,omitempty"`
	Message               string     `json:"message,omitempty"`
}

type SetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type MeResponse struct {
	User UserModel `json:"user"`
}

type UserModel struct {
	ID          int    `json:"id"`
	Email       string `json:"email"`
	IsAdmin     bool   `json:"is_admin"`
	HasPassword bool   `json:"has_password"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func userModel(u dao.User) UserModel {
	m := UserModel{
		ID:          u.ID,
		Email:       u.Email,
		IsAdmin:     u.IsAdmin,
		HasPassword: u.HasPassword(),
	}
	if !u.Created.IsZero() {
		m.CreatedAt = u.Created.UTC().Format(time.RFC3339)
	}
	return m
}

type UserCreateRequest struct {
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	Password string `json:"password,omitempty"`
}

type CampaignRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type CampaignModel struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Status    campaign.Status `json:"status"`
	CreatedAt string          `json:"created_at,omitempty"`
}

type ImageModel struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	UploadedAt  string `json:"uploaded_at"`
}

type ImagesResponse struct {
	Images map[string]ImageModel `json:"images"`
}

type UploadedFileModel struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

type UploadResponse struct {
	Message       string                `json:"message"`
	UploadedFiles []UploadedFileModel   `json:"uploaded_files"`
	Images        map[string]ImageModel `json:"images,omitempty"`
}

type CampaignWithImagesResponse struct {
	CampaignModel
	Images map[string]ImageModel `json:"images,omitempty"`
}

type LogEntryModel struct {
	ID           int      `json:"id"`
	CreatedAt    string   `json:"created_at"`
	UserID       *int     `json:"user_id"`
	UserEmail    string   `json:"user_email"`
	Action       string   `json:"action"`
	Status       string   `json:"status"`
	ResourceType string   `json:"resource_type"`
	ResourceID   string   `json:"resource_id"`
	IPAddress    string   `json:"ip_address"`
	DurationMS   *float64 `json:"duration_ms"`
	Details      string   `json:"details"`
}

func logEntryModel(e dao.LogEntry) LogEntryModel {
	m := LogEntryModel{
		ID:           e.ID,
		CreatedAt:    e.Created.UTC().Format(time.RFC3339Nano),
		UserEmail:    e.UserEmail,
		Action:       e.Action,
		Status:       e.Status,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
		DurationMS:   e.DurationMS,
		Details:      e.Details,
	}
	if e.UserID != 0 {
		id := e.UserID
		m.UserID = &id
	}
	return m
}

type PaginationModel struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

type LogUserModel struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
}

type LogFiltersModel struct {
	Users         []LogUserModel `json:"users"`
	Actions       []string       `json:"actions"`
	Statuses      []string       `json:"statuses"`
	ResourceTypes []string       `json:"resource_types"`
}

type LogsResponse struct {
	Logs       []LogEntryModel `json:"logs"`
	Pagination PaginationModel `json:"pagination"`
	Filters    LogFiltersModel `json:"filters"`
}

type ExportResponse struct {
	CSVData  string `json:"csv_data"`
	Filename string `json:"filename"`
}

type StatsSummaryModel struct {
	TotalActions int     `json:"total_actions"`
	ErrorActions int     `json:"error_actions"`
	ErrorRate    float64 `json:"error_rate"`
}

type DailyCountModel struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type UserCountModel struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

type ActionCountModel struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

type StatsResponse struct {
	Summary       StatsSummaryModel  `json:"summary"`
	DailyActivity []DailyCountModel  `json:"daily_activity"`
	TopUsers      []UserCountModel   `json:"top_users"`
	TopActions    []ActionCountModel `json:"top_actions"`
}

type InfoModel struct {
	Version struct {
		Server  string `json:"server"`
		Console string `json:"console"`
	} `json:"version"`
}
