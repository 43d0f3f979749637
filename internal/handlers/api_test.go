package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/healthboard/healthboard/internal/api"
	"github.com/healthboard/healthboard/internal/database"
	"github.com/healthboard/healthboard/internal/services"
)

type stubCategorizer struct {
	calls  int
	result services.Categorization
}

func (s *stubCategorizer) Categorize(ctx context.Context, alert *database.HealthAlert) services.Categorization {
	s.calls++
	return s.result
}

type stubTicketCreator struct {
	calls int
	key   string
}

func (s *stubTicketCreator) IsConfigured() bool { return true }

func (s *stubTicketCreator) CreateTicket(ctx context.Context, alert *database.HealthAlert, appHost string) (string, error) {
	s.calls++
	return s.key, nil
}

type stubNotifier struct {
	calls int
	sent  bool
}

func (s *stubNotifier) SendAlertNotification(alert *database.HealthAlert, appHost string) (bool, error) {
	s.calls++
	return s.sent, nil
}

type stubInsights struct {
	calls     int
	timeRange string
}

func (s *stubInsights) GetInsights(ctx context.Context, timeRange string) *services.Insights {
	s.calls++
	s.timeRange = timeRange
	return &services.Insights{
		SystemHealthSummary: "All clear",
		TimeRange:           timeRange,
		GeneratedAt:         time.Now(),
	}
}

type testEnv struct {
	mux         *http.ServeMux
	svc         *services.HealthService
	categorizer *stubCategorizer
	jira        *stubTicketCreator
	notifier    *stubNotifier
	insights    *stubInsights
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&database.HealthAlert{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	categorizer := &stubCategorizer{result: services.Categorization{
		Category:       "security",
		Priority:       "high",
		Summary:        "Needs review",
		Recommendation: "Review access logs",
	}}
	jira := &stubTicketCreator{key: "SF-55"}
	notifier := &stubNotifier{sent: true}
	insights := &stubInsights{}

	svc := services.NewHealthService(database.NewAlertStore(db), categorizer, jira, notifier, "localhost:8000")

	mux := http.NewServeMux()
	NewAPIHandler(svc, insights).SetupRoutes(mux)

	return &testEnv{mux: mux, svc: svc, categorizer: categorizer, jira: jira, notifier: notifier, insights: insights}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createAlert(t *testing.T) api.AlertResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/alerts", map[string]string{
		"title":         "Apex exception spike",
		"description":   "NullPointerException rate tripled in the last hour",
		"category":      "exceptions",
		"source_system": "Salesforce Event Monitoring",
		"raw_data":      `{"exceptions": 321}`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create alert status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.AlertResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("status field = %q", resp["status"])
	}
}

func TestCreateAlert(t *testing.T) {
	env := setupTestEnv(t)

	alert := env.createAlert(t)
	if alert.ID == 0 {
		t.Error("expected assigned ID")
	}
	if alert.AICategory != nil {
		t.Error("plain create must not categorize")
	}
}

func TestCreateAlert_ValidationErrors(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/alerts", map[string]string{
		"title": "missing everything else",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp api.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Details["description"] == "" || resp.Details["category"] == "" {
		t.Errorf("expected field errors, got %v", resp.Details)
	}
}

func TestCreateAlert_MalformedBody(t *testing.T) {
	env := setupTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetAlert(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/alerts/%d", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Title != "Apex exception spike" {
		t.Errorf("title = %q", resp.Title)
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/alerts/9999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp api.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "not_found" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestGetAlert_InvalidID(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/alerts/not-a-number", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListAlerts_Paginated(t *testing.T) {
	env := setupTestEnv(t)
	for i := 0; i < 3; i++ {
		env.createAlert(t)
	}

	w := env.do(t, http.MethodGet, "/api/alerts?page=1&per_page=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Data       []api.AlertResponse `json:"data"`
		Pagination api.PaginationMeta  `json:"pagination"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Data) != 2 {
		t.Errorf("page size = %d, want 2", len(resp.Data))
	}
	if resp.Pagination.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Pagination.Total)
	}
	if resp.Pagination.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", resp.Pagination.TotalPages)
	}
}

func TestListAlerts_CategoryFilter(t *testing.T) {
	env := setupTestEnv(t)
	env.createAlert(t)
	env.createAlert(t)

	w := env.do(t, http.MethodGet, "/api/alerts?category=exceptions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var filtered []api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &filtered)
	if len(filtered) != 2 {
		t.Errorf("filtered = %d, want 2", len(filtered))
	}

	w = env.do(t, http.MethodGet, "/api/alerts?category=portal", nil)
	json.Unmarshal(w.Body.Bytes(), &filtered)
	if len(filtered) != 0 {
		t.Errorf("filtered = %d, want 0", len(filtered))
	}
}

func TestUpdateAlert(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodPut, fmt.Sprintf("/api/alerts/%d", created.ID), map[string]interface{}{
		"title":       "Renamed alert",
		"is_resolved": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Title != "Renamed alert" || !resp.IsResolved {
		t.Errorf("unexpected update result: %+v", resp)
	}
	if resp.Description == "" {
		t.Error("unmentioned fields must be preserved")
	}
}

func TestUpdateAlert_NoFields(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodPut, fmt.Sprintf("/api/alerts/%d", created.ID), map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDeleteAlert(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/alerts/%d", created.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/alerts/%d", created.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCategorizeAlert(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/categorize", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.AICategory == nil || *resp.AICategory != "security" {
		t.Errorf("AICategory = %v", resp.AICategory)
	}
	if env.categorizer.calls != 1 {
		t.Errorf("categorizer calls = %d", env.categorizer.calls)
	}
}

func TestCreateAndCategorize(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/alerts/create-and-categorize", map[string]string{
		"title":         "Sharing rule misconfiguration",
		"description":   "External users can see internal records",
		"category":      "security",
		"source_system": "Salesforce Security Center",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.AICategory == nil {
		t.Error("expected categorized alert")
	}
	if env.categorizer.calls != 1 {
		t.Errorf("categorizer calls = %d", env.categorizer.calls)
	}
}

func TestCategorizeAll(t *testing.T) {
	env := setupTestEnv(t)
	env.createAlert(t)
	env.createAlert(t)

	w := env.do(t, http.MethodPost, "/api/alerts/categorize-all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp api.CategorizeAllResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Categorized != 2 {
		t.Errorf("categorized = %d, want 2", resp.Categorized)
	}
}

func TestUnresolvedAndUncategorizedLists(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)
	env.createAlert(t)

	if w := env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/resolve", created.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/alerts/unresolved", nil)
	var unresolved []api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &unresolved)
	if len(unresolved) != 1 {
		t.Errorf("unresolved = %d, want 1", len(unresolved))
	}

	w = env.do(t, http.MethodGet, "/api/alerts/uncategorized", nil)
	var uncategorized []api.AlertResponse
	json.Unmarshal(w.Body.Bytes(), &uncategorized)
	if len(uncategorized) != 2 {
		t.Errorf("uncategorized = %d, want 2", len(uncategorized))
	}
}

func TestCreateJiraTicket_Idempotent(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/jira", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.TicketResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.JiraTicketID != "SF-55" || !resp.Created {
		t.Errorf("unexpected ticket response: %+v", resp)
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/jira", created.ID), nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Created {
		t.Error("second call must reuse the existing ticket")
	}
	if env.jira.calls != 1 {
		t.Errorf("remote calls = %d, want 1", env.jira.calls)
	}
}

func TestSendNotification(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/notify", created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp api.NotifyResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Sent {
		t.Errorf("sent = false, want true")
	}
}

func TestDashboardStats(t *testing.T) {
	env := setupTestEnv(t)
	created := env.createAlert(t)
	env.do(t, http.MethodPost, fmt.Sprintf("/api/alerts/%d/categorize", created.ID), nil)

	w := env.do(t, http.MethodGet, "/api/dashboard/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats services.DashboardStats
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalAlerts != 1 {
		t.Errorf("total = %d, want 1", stats.TotalAlerts)
	}
	if stats.ByPriority["high"] != 1 {
		t.Errorf("by_priority[high] = %d, want 1", stats.ByPriority["high"])
	}
	if stats.ByCategory["exceptions"] != 1 {
		t.Errorf("by_category[exceptions] = %d, want 1", stats.ByCategory["exceptions"])
	}
}

func TestInsightsEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/insights?time_range=month", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env.insights.timeRange != "month" {
		t.Errorf("time range passed = %q", env.insights.timeRange)
	}

	// Defaults to week.
	env.do(t, http.MethodGet, "/api/insights", nil)
	if env.insights.timeRange != "week" {
		t.Errorf("default time range = %q", env.insights.timeRange)
	}
}

func TestInsightsEndpoint_InvalidRange(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/insights?time_range=decade", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if env.insights.calls != 0 {
		t.Errorf("insights calls = %d, want 0", env.insights.calls)
	}
}
