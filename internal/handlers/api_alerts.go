package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/healthboard/healthboard/internal/api"
	"github.com/healthboard/healthboard/internal/database"
	"github.com/healthboard/healthboard/internal/services"
)

// alertIDFromPath parses the {id} path segment
func alertIDFromPath(r *http.Request) (uint, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid alert ID %q", raw)
	}
	return uint(id), nil
}

// handleAlerts handles GET /api/alerts and POST /api/alerts
func (h *APIHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if category := r.URL.Query().Get("category"); category != "" {
			alerts, err := h.health.ListAlertsByCategory(category)
			if err != nil {
				api.RespondError(w, http.StatusInternalServerError, "Failed to get alerts")
				return
			}
			api.RespondJSON(w, http.StatusOK, api.AlertsToResponses(alerts))
			return
		}

		params := api.ParsePagination(r)

		alerts, err := h.health.ListAlerts(params.Offset(), params.PerPage)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to get alerts")
			return
		}
		total, err := h.health.CountAlerts()
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to get alerts")
			return
		}

		api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
			Data: api.AlertsToResponses(alerts),
			Pagination: api.PaginationMeta{
				Page:       params.Page,
				PerPage:    params.PerPage,
				Total:      total,
				TotalPages: params.TotalPages(total),
			},
		})

	case http.MethodPost:
		alert, ok := h.createAlertFromRequest(w, r)
		if !ok {
			return
		}
		api.RespondJSON(w, http.StatusCreated, api.AlertToResponse(*alert))

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// createAlertFromRequest decodes, validates, and persists a new alert.
// On failure it writes the error response and returns ok=false.
func (h *APIHandler) createAlertFromRequest(w http.ResponseWriter, r *http.Request) (*database.HealthAlert, bool) {
	var req api.CreateAlertRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return nil, false
	}

	created, err := h.health.CreateAlert(services.NewAlertInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		SourceSystem: req.SourceSystem,
		RawData:      req.RawData,
	})
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to create alert")
		return nil, false
	}
	return created, true
}

// handleCreateAndCategorize handles POST /api/alerts/create-and-categorize
func (h *APIHandler) handleCreateAndCategorize(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.createAlertFromRequest(w, r)
	if !ok {
		return
	}

	categorized, err := h.health.CategorizeAlert(r.Context(), alert.ID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Alert created but categorization failed")
		return
	}
	api.RespondJSON(w, http.StatusCreated, api.AlertToResponse(*categorized))
}

// handleAlertByID handles GET, PUT, and DELETE /api/alerts/{id}
func (h *APIHandler) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	id, err := alertIDFromPath(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		alert, err := h.health.GetAlert(id)
		if err != nil {
			h.respondAlertError(w, err, "Failed to get alert")
			return
		}
		api.RespondJSON(w, http.StatusOK, api.AlertToResponse(*alert))

	case http.MethodPut:
		var req api.UpdateAlertRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errs := api.Validate(req); errs != nil {
			api.RespondValidationError(w, errs)
			return
		}

		updates := make(map[string]interface{})
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.IsResolved != nil {
			updates["is_resolved"] = *req.IsResolved
		}
		if len(updates) == 0 {
			api.RespondError(w, http.StatusBadRequest, "No fields to update")
			return
		}

		alert, err := h.health.UpdateAlert(id, updates)
		if err != nil {
			h.respondAlertError(w, err, "Failed to update alert")
			return
		}
		api.RespondJSON(w, http.StatusOK, api.AlertToResponse(*alert))

	case http.MethodDelete:
		if err := h.health.DeleteAlert(id); err != nil {
			h.respondAlertError(w, err, "Failed to delete alert")
			return
		}
		api.RespondNoContent(w)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleUnresolvedAlerts handles GET /api/alerts/unresolved
func (h *APIHandler) handleUnresolvedAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.health.ListUnresolved()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get unresolved alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.AlertsToResponses(alerts))
}

// handleUncategorizedAlerts handles GET /api/alerts/uncategorized
func (h *APIHandler) handleUncategorizedAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.health.ListUncategorized()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get uncategorized alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.AlertsToResponses(alerts))
}

// handleCategorizeAlert handles POST /api/alerts/{id}/categorize and
// POST /api/alerts/{id}/recategorize
func (h *APIHandler) handleCategorizeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := alertIDFromPath(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.health.CategorizeAlert(r.Context(), id)
	if err != nil {
		h.respondAlertError(w, err, "Failed to categorize alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.AlertToResponse(*alert))
}

// handleCategorizeAll handles POST /api/alerts/categorize-all
func (h *APIHandler) handleCategorizeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.health.CategorizeAllUncategorized(r.Context())
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to categorize alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.CategorizeAllResponse{
		Categorized: n,
		Message:     fmt.Sprintf("Categorized %d alerts", n),
	})
}

// handleResolveAlert handles POST /api/alerts/{id}/resolve
func (h *APIHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, err := alertIDFromPath(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.health.ResolveAlert(id)
	if err != nil {
		h.respondAlertError(w, err, "Failed to resolve alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.AlertToResponse(*alert))
}

// handleCreateJiraTicket handles POST /api/alerts/{id}/jira
func (h *APIHandler) handleCreateJiraTicket(w http.ResponseWriter, r *http.Request) {
	id, err := alertIDFromPath(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, created, err := h.health.EnsureJiraTicket(r.Context(), id)
	if err != nil {
		h.respondAlertError(w, err, "Failed to create jira ticket")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.TicketResponse{
		JiraTicketID: key,
		Created:      created,
	})
}

// handleSendNotification handles POST /api/alerts/{id}/notify
func (h *APIHandler) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	id, err := alertIDFromPath(r)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sent, err := h.health.SendSlackNotification(id)
	if err != nil {
		h.respondAlertError(w, err, "Failed to send notification")
		return
	}
	message := "Notification sent"
	if !sent {
		message = "Alert does not qualify for notification"
	}
	api.RespondJSON(w, http.StatusOK, api.NotifyResponse{Sent: sent, Message: message})
}

// respondAlertError maps service errors to HTTP responses
func (h *APIHandler) respondAlertError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, services.ErrAlertNotFound) {
		api.RespondErrorWithCode(w, http.StatusNotFound, "not_found", "Alert not found")
		return
	}
	api.RespondError(w, http.StatusInternalServerError, fallback)
}
