package database

import (
	"time"
)

// PriorityLevel represents the AI-assigned priority of a health alert
type PriorityLevel string

const (
	PriorityLow      PriorityLevel = "low"
	PriorityMedium   PriorityLevel = "medium"
	PriorityHigh     PriorityLevel = "high"
	PriorityCritical PriorityLevel = "critical"
)

// ValidPriorityLevels returns all recognized priority levels
func ValidPriorityLevels() []PriorityLevel {
	return []PriorityLevel{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// IsValidPriority returns true if the value is one of the four priority levels
func IsValidPriority(value string) bool {
	for _, p := range ValidPriorityLevels() {
		if string(p) == value {
			return true
		}
	}
	return false
}

// HealthCategory represents the raw category an alert arrives with
type HealthCategory string

const (
	HealthCategoryOptimizer  HealthCategory = "optimizer"
	HealthCategorySecurity   HealthCategory = "security"
	HealthCategoryLimits     HealthCategory = "limits"
	HealthCategoryEvent      HealthCategory = "event"
	HealthCategoryStability  HealthCategory = "stability"
	HealthCategoryPortal     HealthCategory = "portal"
	HealthCategoryExceptions HealthCategory = "exceptions"
)

// ValidHealthCategories returns the seven raw alert categories
func ValidHealthCategories() []HealthCategory {
	return []HealthCategory{
		HealthCategoryOptimizer,
		HealthCategorySecurity,
		HealthCategoryLimits,
		HealthCategoryEvent,
		HealthCategoryStability,
		HealthCategoryPortal,
		HealthCategoryExceptions,
	}
}

// IsValidHealthCategory returns true if the value is one of the seven raw categories.
// The category column is an open string in practice; this is used for loose
// validation and warning logs only.
func IsValidHealthCategory(value string) bool {
	for _, c := range ValidHealthCategories() {
		if string(c) == value {
			return true
		}
	}
	return false
}

// HealthAlert is the central entity: one row per alert ingested from a
// monitoring source, carrying the AI-derived analysis and workflow flags.
type HealthAlert struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Title        string `gorm:"type:varchar(255);not null" json:"title"`
	Description  string `gorm:"type:text;not null" json:"description"`
	Category     string `gorm:"type:varchar(50);not null;index" json:"category"`
	SourceSystem string `gorm:"type:varchar(100);not null" json:"source_system"`
	RawData      string `gorm:"type:text" json:"raw_data,omitempty"`

	// AI-generated fields, nil until the alert has been categorized.
	// A non-nil AICategory is the signal that defines "categorized".
	// Column names are pinned: GORM's initialism handling would otherwise
	// render AIPriority as a_ipriority, breaking every raw ai_* reference.
	AICategory       *string `gorm:"column:ai_category;type:varchar(100)" json:"ai_category"`
	AIPriority       *string `gorm:"column:ai_priority;type:varchar(50)" json:"ai_priority"`
	AISummary        *string `gorm:"column:ai_summary;type:text" json:"ai_summary"`
	AIRecommendation *string `gorm:"column:ai_recommendation;type:text" json:"ai_recommendation"`

	// Action tracking
	IsResolved     bool    `gorm:"default:false" json:"is_resolved"`
	JiraTicketID   *string `gorm:"type:varchar(50)" json:"jira_ticket_id"`
	SlackAlertSent bool    `gorm:"default:false" json:"slack_alert_sent"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"` // nil until first mutation
}

func (HealthAlert) TableName() string {
	return "health_alerts"
}

// IsCategorized returns true once the AI categorization has been persisted
func (a *HealthAlert) IsCategorized() bool {
	return a.AICategory != nil
}

// Priority returns the AI priority, defaulting to medium when not set
func (a *HealthAlert) Priority() PriorityLevel {
	if a.AIPriority == nil {
		return PriorityMedium
	}
	return PriorityLevel(*a.AIPriority)
}

// NeedsNotification returns true if the alert meets the Slack notification
// threshold (high or critical) and has not been notified yet
func (a *HealthAlert) NeedsNotification() bool {
	if a.SlackAlertSent || a.AIPriority == nil {
		return false
	}
	p := PriorityLevel(*a.AIPriority)
	return p == PriorityHigh || p == PriorityCritical
}
