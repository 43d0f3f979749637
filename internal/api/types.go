package api

import (
	"time"

	"github.com/healthboard/healthboard/internal/database"
)

// ========== Alert Types ==========

// CreateAlertRequest is the request body for POST /api/alerts and
// POST /api/alerts/create-and-categorize.
type CreateAlertRequest struct {
	Title        string `json:"title" validate:"required,min=1,max=255"`
	Description  string `json:"description" validate:"required,min=1"`
	Category     string `json:"category" validate:"required,min=1,max=50"`
	SourceSystem string `json:"source_system" validate:"required,min=1,max=100"`
	RawData      string `json:"raw_data"`
}

// UpdateAlertRequest is the request body for PUT /api/alerts/:id.
// Nil fields are left untouched.
type UpdateAlertRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,min=1"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=50"`
	IsResolved  *bool   `json:"is_resolved"`
}

// AlertResponse is the wire representation of a health alert.
type AlertResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	SourceSystem     string     `json:"source_system"`
	RawData          string     `json:"raw_data,omitempty"`
	AICategory       *string    `json:"ai_category"`
	AIPriority       *string    `json:"ai_priority"`
	AISummary        *string    `json:"ai_summary"`
	AIRecommendation *string    `json:"ai_recommendation"`
	IsResolved       bool       `json:"is_resolved"`
	JiraTicketID     *string    `json:"jira_ticket_id"`
	SlackAlertSent   bool       `json:"slack_alert_sent"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// CategorizeAllResponse is the response body for POST /api/alerts/categorize-all.
type CategorizeAllResponse struct {
	Categorized int    `json:"categorized"`
	Message     string `json:"message"`
}

// TicketResponse is the response body for POST /api/alerts/:id/jira.
type TicketResponse struct {
	JiraTicketID string `json:"jira_ticket_id"`
	TicketURL    string `json:"ticket_url,omitempty"`
	Created      bool   `json:"created"`
}

// NotifyResponse is the response body for POST /api/alerts/:id/notify.
type NotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mappers ==========

// AlertToResponse converts a database HealthAlert to its wire representation.
func AlertToResponse(a database.HealthAlert) AlertResponse {
	return AlertResponse{
		ID:               a.ID,
		Title:            a.Title,
		Description:      a.Description,
		Category:         a.Category,
		SourceSystem:     a.SourceSystem,
		RawData:          a.RawData,
		AICategory:       a.AICategory,
		AIPriority:       a.AIPriority,
		AISummary:        a.AISummary,
		AIRecommendation: a.AIRecommendation,
		IsResolved:       a.IsResolved,
		JiraTicketID:     a.JiraTicketID,
		SlackAlertSent:   a.SlackAlertSent,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// AlertsToResponses converts a slice of alerts for list endpoints.
func AlertsToResponses(alerts []database.HealthAlert) []AlertResponse {
	items := make([]AlertResponse, len(alerts))
	for i, a := range alerts {
		items[i] = AlertToResponse(a)
	}
	return items
}
