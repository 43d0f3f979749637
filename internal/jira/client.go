// Package jira files tracking tickets for health alerts via the Jira Cloud
// REST API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/healthboard/healthboard/internal/config"
	"github.com/healthboard/healthboard/internal/database"
	"github.com/healthboard/healthboard/internal/utils"
)

const (
	requestTimeout = 10 * time.Second

	// maxRawDataLen keeps issue descriptions under Jira's size ceiling
	maxRawDataLen = 10000
)

// priorityNames maps alert priorities to Jira priority names
var priorityNames = map[string]string{
	"critical": "Highest",
	"high":     "High",
	"medium":   "Medium",
	"low":      "Low",
}

// Client talks to one Jira Cloud site using basic auth (email + API token)
type Client struct {
	domain     string
	email      string
	apiToken   string
	projectKey string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		domain:     strings.TrimRight(cfg.JiraDomain, "/"),
		email:      cfg.JiraEmail,
		apiToken:   cfg.JiraAPIToken,
		projectKey: cfg.JiraProjectKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// IsConfigured reports whether all credentials needed for ticket creation
// are present
func (c *Client) IsConfigured() bool {
	return c.domain != "" && c.email != "" && c.apiToken != "" && c.projectKey != ""
}

type createIssueResponse struct {
	Key string `json:"key"`
}

// CreateTicket files a Bug in the configured project and returns the issue
// key (e.g. SF-42). appHost is used to link the issue back to the alert in
// the dashboard.
func (c *Client) CreateTicket(ctx context.Context, alert *database.HealthAlert, appHost string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("jira client is not configured")
	}

	priority := string(alert.Priority())
	jiraPriority, ok := priorityNames[priority]
	if !ok {
		jiraPriority = "Medium"
	}

	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			"project":     map[string]string{"key": c.projectKey},
			"summary":     alert.Title,
			"description": c.buildDescription(alert, appHost),
			"issuetype":   map[string]string{"name": "Bug"},
			"priority":    map[string]string{"name": jiraPriority},
			"labels":      c.buildLabels(alert),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode issue payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.domain+"/rest/api/2/issue", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create issue request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("jira request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read jira response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jira returned %d: %s", resp.StatusCode, string(respBody))
	}

	var created createIssueResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("failed to decode jira response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("jira response contained no issue key")
	}
	return created.Key, nil
}

// TicketURL returns the browse URL for an issue key
func (c *Client) TicketURL(key string) string {
	return c.domain + "/browse/" + key
}

// buildDescription renders the issue body in Jira wiki markup
func (c *Client) buildDescription(alert *database.HealthAlert, appHost string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "h2. Health Alert Details\n\n")
	fmt.Fprintf(&b, "*Category:* %s\n", alert.Category)
	fmt.Fprintf(&b, "*Source System:* %s\n", alert.SourceSystem)
	fmt.Fprintf(&b, "*Created:* %s\n\n", alert.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "h3. Description\n%s\n\n", alert.Description)

	if alert.RawData != "" {
		fmt.Fprintf(&b, "h3. Raw Data\n{code}\n%s\n{code}\n\n", utils.TruncateBlock(alert.RawData, maxRawDataLen))
	}

	if alert.IsCategorized() {
		fmt.Fprintf(&b, "h2. AI Analysis\n\n")
		if alert.AICategory != nil {
			fmt.Fprintf(&b, "*AI Category:* %s\n", *alert.AICategory)
		}
		if alert.AIPriority != nil {
			fmt.Fprintf(&b, "*AI Priority:* %s\n", *alert.AIPriority)
		}
		if alert.AISummary != nil {
			fmt.Fprintf(&b, "*Summary:* %s\n", *alert.AISummary)
		}
		if alert.AIRecommendation != nil {
			fmt.Fprintf(&b, "*Recommendation:* %s\n", *alert.AIRecommendation)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "View in dashboard: http://%s/alert/%d", appHost, alert.ID)
	return b.String()
}

// buildLabels derives sanitized labels from the alert's categories and
// priority. Jira labels cannot contain spaces.
func (c *Client) buildLabels(alert *database.HealthAlert) []string {
	labels := []string{
		"health-alert",
		"category_" + labelSafe(alert.Category),
		"source_" + labelSafe(alert.SourceSystem),
	}
	if alert.AICategory != nil && *alert.AICategory != "" {
		labels = append(labels, "ai_category_"+labelSafe(*alert.AICategory))
	}
	labels = append(labels, "priority_"+labelSafe(string(alert.Priority())))
	return labels
}

func labelSafe(v string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "_")
}
