// Package handlers wires the HTTP surface of the health alert dashboard.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/healthboard/healthboard/internal/services"
)

// InsightsProvider generates the AI insights payload for a time range
type InsightsProvider interface {
	GetInsights(ctx context.Context, timeRange string) *services.Insights
}

// APIHandler handles the JSON API consumed by the dashboard UI
type APIHandler struct {
	health   *services.HealthService
	insights InsightsProvider
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(health *services.HealthService, insights InsightsProvider) *APIHandler {
	return &APIHandler{
		health:   health,
		insights: insights,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)

	// Alert CRUD
	mux.HandleFunc("/api/alerts", h.handleAlerts)
	mux.HandleFunc("GET /api/alerts/unresolved", h.handleUnresolvedAlerts)
	mux.HandleFunc("GET /api/alerts/uncategorized", h.handleUncategorizedAlerts)
	mux.HandleFunc("POST /api/alerts/categorize-all", h.handleCategorizeAll)
	mux.HandleFunc("POST /api/alerts/create-and-categorize", h.handleCreateAndCategorize)
	mux.HandleFunc("/api/alerts/{id}", h.handleAlertByID)

	// Alert actions
	mux.HandleFunc("POST /api/alerts/{id}/categorize", h.handleCategorizeAlert)
	mux.HandleFunc("POST /api/alerts/{id}/recategorize", h.handleCategorizeAlert)
	mux.HandleFunc("POST /api/alerts/{id}/resolve", h.handleResolveAlert)
	mux.HandleFunc("POST /api/alerts/{id}/jira", h.handleCreateJiraTicket)
	mux.HandleFunc("POST /api/alerts/{id}/notify", h.handleSendNotification)

	// Dashboard
	mux.HandleFunc("GET /api/dashboard/stats", h.handleDashboardStats)
	mux.HandleFunc("GET /api/insights", h.handleInsights)
}

// handleHealth returns a simple health check response
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"status": "ok",
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
