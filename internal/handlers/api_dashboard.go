package handlers

import (
	"net/http"

	"github.com/healthboard/healthboard/internal/api"
)

// validTimeRanges are the windows the insights endpoint accepts
var validTimeRanges = map[string]bool{
	"day":     true,
	"week":    true,
	"month":   true,
	"quarter": true,
}

// handleDashboardStats handles GET /api/dashboard/stats
func (h *APIHandler) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.health.GetDashboardStats()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get dashboard stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleInsights handles GET /api/insights?time_range=week
func (h *APIHandler) handleInsights(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "week"
	}
	if !validTimeRanges[timeRange] {
		api.RespondError(w, http.StatusBadRequest, "time_range must be one of: day, week, month, quarter")
		return
	}

	api.RespondJSON(w, http.StatusOK, h.insights.GetInsights(r.Context(), timeRange))
}
