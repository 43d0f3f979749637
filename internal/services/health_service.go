package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/healthboard/healthboard/internal/database"
)

// ErrAlertNotFound is returned by operations targeting an alert ID that does
// not exist
var ErrAlertNotFound = errors.New("alert not found")

// standardAICategories is the bounded vocabulary AI categories are coerced
// into before persistence
var standardAICategories = []string{
	"performance",
	"security",
	"data",
	"integration",
	"compliance",
	"configuration",
	"code",
	"user experience",
}

// AlertCategorizer produces an AI categorization for an alert
type AlertCategorizer interface {
	Categorize(ctx context.Context, alert *database.HealthAlert) Categorization
}

// TicketCreator files a tracking ticket for an alert and returns its key
type TicketCreator interface {
	IsConfigured() bool
	CreateTicket(ctx context.Context, alert *database.HealthAlert, appHost string) (string, error)
}

// AlertNotifier pushes an alert to the chat channel. The bool reports whether
// a message was actually sent.
type AlertNotifier interface {
	SendAlertNotification(alert *database.HealthAlert, appHost string) (bool, error)
}

// HealthService orchestrates the alert store, the categorizer, and the
// outbound notifiers
type HealthService struct {
	store       *database.AlertStore
	categorizer AlertCategorizer
	jira        TicketCreator
	notifier    AlertNotifier
	appHost     string
}

func NewHealthService(store *database.AlertStore, categorizer AlertCategorizer, jira TicketCreator, notifier AlertNotifier, appHost string) *HealthService {
	return &HealthService{
		store:       store,
		categorizer: categorizer,
		jira:        jira,
		notifier:    notifier,
		appHost:     appHost,
	}
}

// NewAlertInput carries the caller-supplied fields for a new alert
type NewAlertInput struct {
	Title        string
	Description  string
	Category     string
	SourceSystem string
	RawData      string
}

func (in *NewAlertInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if strings.TrimSpace(in.SourceSystem) == "" {
		return fmt.Errorf("source_system is required")
	}
	return nil
}

// CreateAlert validates and persists a new alert. Unknown source categories
// are accepted with a warning so upstream systems can evolve independently.
func (s *HealthService) CreateAlert(in NewAlertInput) (*database.HealthAlert, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if !database.IsValidHealthCategory(in.Category) {
		log.Printf("Creating alert with unknown category %q", in.Category)
	}

	alert := &database.HealthAlert{
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		SourceSystem: in.SourceSystem,
		RawData:      in.RawData,
	}
	if err := s.store.Create(alert); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return alert, nil
}

// CreateAndCategorize persists a new alert, then categorizes it in the same
// request. The alert survives even when categorization degrades to fallback
// values.
func (s *HealthService) CreateAndCategorize(ctx context.Context, in NewAlertInput) (*database.HealthAlert, error) {
	alert, err := s.CreateAlert(in)
	if err != nil {
		return nil, err
	}
	return s.CategorizeAlert(ctx, alert.ID)
}

func (s *HealthService) GetAlert(id uint) (*database.HealthAlert, error) {
	alert, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %d: %w", id, err)
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (s *HealthService) ListAlerts(offset, limit int) ([]database.HealthAlert, error) {
	return s.store.List(offset, limit)
}

func (s *HealthService) CountAlerts() (int64, error) {
	return s.store.CountAll()
}

func (s *HealthService) ListAlertsByCategory(category string) ([]database.HealthAlert, error) {
	return s.store.ListByCategory(category)
}

func (s *HealthService) ListUnresolved() ([]database.HealthAlert, error) {
	return s.store.ListUnresolved()
}

func (s *HealthService) ListUncategorized() ([]database.HealthAlert, error) {
	return s.store.ListUncategorized()
}

// UpdateAlert applies a partial update and returns the refreshed alert
func (s *HealthService) UpdateAlert(id uint, updates map[string]interface{}) (*database.HealthAlert, error) {
	alert, err := s.store.Update(id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert %d: %w", id, err)
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (s *HealthService) ResolveAlert(id uint) (*database.HealthAlert, error) {
	alert, err := s.store.SetResolved(id, true)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alert %d: %w", id, err)
	}
	if alert == nil {
		return nil, ErrAlertNotFound
	}
	return alert, nil
}

func (s *HealthService) DeleteAlert(id uint) error {
	deleted, err := s.store.Delete(id)
	if err != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, err)
	}
	if !deleted {
		return ErrAlertNotFound
	}
	return nil
}

// NormalizeAICategory coerces a model-produced category into the standard
// vocabulary: exact match first, then substring containment either way,
// then "configuration".
func NormalizeAICategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return "configuration"
	}
	for _, std := range standardAICategories {
		if normalized == std {
			return std
		}
	}
	for _, std := range standardAICategories {
		if strings.Contains(normalized, std) || strings.Contains(std, normalized) {
			return std
		}
	}
	return "configuration"
}

// CategorizeAlert runs AI categorization for one alert and persists the
// result. The categorizer itself never fails, so the only error paths are
// the store's.
func (s *HealthService) CategorizeAlert(ctx context.Context, id uint) (*database.HealthAlert, error) {
	alert, err := s.GetAlert(id)
	if err != nil {
		return nil, err
	}

	result := s.categorizer.Categorize(ctx, alert)
	category := NormalizeAICategory(result.Category)

	updated, err := s.store.Update(id, map[string]interface{}{
		"ai_category":       category,
		"ai_priority":       result.Priority,
		"ai_summary":        result.Summary,
		"ai_recommendation": result.Recommendation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist categorization for alert %d: %w", id, err)
	}
	if updated == nil {
		return nil, ErrAlertNotFound
	}
	return updated, nil
}

// CategorizeAllUncategorized sweeps every uncategorized alert, committing
// each result individually so one failure does not lose the rest. Returns
// the number of alerts categorized.
func (s *HealthService) CategorizeAllUncategorized(ctx context.Context) (int, error) {
	alerts, err := s.store.ListUncategorized()
	if err != nil {
		return 0, fmt.Errorf("failed to list uncategorized alerts: %w", err)
	}

	categorized := 0
	for i := range alerts {
		if _, err := s.CategorizeAlert(ctx, alerts[i].ID); err != nil {
			log.Printf("Failed to categorize alert %d: %v", alerts[i].ID, err)
			continue
		}
		categorized++
	}
	return categorized, nil
}

// EnsureJiraTicket files a Jira ticket for the alert unless one already
// exists. Existing ticket IDs are returned without any remote call.
func (s *HealthService) EnsureJiraTicket(ctx context.Context, id uint) (string, bool, error) {
	alert, err := s.GetAlert(id)
	if err != nil {
		return "", false, err
	}

	if alert.JiraTicketID != nil && *alert.JiraTicketID != "" {
		return *alert.JiraTicketID, false, nil
	}

	if !s.jira.IsConfigured() {
		return "", false, fmt.Errorf("jira integration is not configured")
	}

	key, err := s.jira.CreateTicket(ctx, alert, s.appHost)
	if err != nil {
		return "", false, fmt.Errorf("failed to create jira ticket for alert %d: %w", id, err)
	}

	if _, err := s.store.Update(id, map[string]interface{}{"jira_ticket_id": key}); err != nil {
		// The ticket exists remotely but the link was lost; surface loudly
		// so an operator can reconcile.
		log.Printf("Created jira ticket %s for alert %d but failed to persist the link: %v", key, id, err)
		return key, true, fmt.Errorf("ticket %s created but not recorded: %w", key, err)
	}
	return key, true, nil
}

// SendSlackNotification pushes the alert to the chat channel when it
// qualifies. The sent flag is persisted so repeated calls stay quiet.
func (s *HealthService) SendSlackNotification(id uint) (bool, error) {
	alert, err := s.GetAlert(id)
	if err != nil {
		return false, err
	}

	sent, err := s.notifier.SendAlertNotification(alert, s.appHost)
	if err != nil {
		return false, fmt.Errorf("failed to send slack notification for alert %d: %w", id, err)
	}
	if !sent {
		return false, nil
	}

	if _, err := s.store.Update(id, map[string]interface{}{"slack_alert_sent": true}); err != nil {
		log.Printf("Sent slack notification for alert %d but failed to persist the flag: %v", id, err)
		return true, fmt.Errorf("notification sent but not recorded: %w", err)
	}
	return true, nil
}

// DashboardStats is the aggregate view the dashboard renders
type DashboardStats struct {
	TotalAlerts      int64            `json:"total_alerts"`
	UnresolvedAlerts int64            `json:"unresolved_alerts"`
	ByPriority       map[string]int64 `json:"by_priority"`
	ByCategory       map[string]int64 `json:"by_category"`
	ByAICategory     map[string]int64 `json:"by_ai_category"`
}

// GetDashboardStats computes the counts the dashboard needs in one pass over
// the store
func (s *HealthService) GetDashboardStats() (*DashboardStats, error) {
	total, err := s.store.CountAll()
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	unresolved, err := s.store.CountUnresolved()
	if err != nil {
		return nil, fmt.Errorf("failed to count unresolved alerts: %w", err)
	}

	byPriority := make(map[string]int64)
	for _, p := range database.ValidPriorityLevels() {
		n, err := s.store.CountByAIPriority(string(p))
		if err != nil {
			return nil, fmt.Errorf("failed to count alerts by priority: %w", err)
		}
		byPriority[string(p)] = n
	}
	uncategorized, err := s.store.CountUncategorized()
	if err != nil {
		return nil, fmt.Errorf("failed to count uncategorized alerts: %w", err)
	}
	byPriority["uncategorized"] = uncategorized

	byCategory := make(map[string]int64)
	for _, c := range database.ValidHealthCategories() {
		n, err := s.store.CountByCategory(string(c))
		if err != nil {
			return nil, fmt.Errorf("failed to count alerts by category: %w", err)
		}
		byCategory[string(c)] = n
	}

	byAICategory := make(map[string]int64)
	grouped, err := s.store.CountGroupedByAICategory()
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by AI category: %w", err)
	}
	for _, row := range grouped {
		byAICategory[row.AICategory] = row.Count
	}

	return &DashboardStats{
		TotalAlerts:      total,
		UnresolvedAlerts: unresolved,
		ByPriority:       byPriority,
		ByCategory:       byCategory,
		ByAICategory:     byAICategory,
	}, nil
}
