package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/healthboard/healthboard/internal/config"
	"github.com/healthboard/healthboard/internal/database"
)

// categorizeTimeout is the hard budget for one categorization call.
// A timeout degrades to the static fallback, never to an error.
const categorizeTimeout = 30 * time.Second

// Categorization is the AI-derived analysis attached to an alert.
// All four fields are always populated.
type Categorization struct {
	Category       string `json:"category"`
	Priority       string `json:"priority"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

// Placeholder values for fields the model response did not supply
const (
	defaultCategory       = "Configuration"
	defaultPriority       = "medium"
	defaultSummary        = "Analysis completed."
	defaultRecommendation = "Review alert details."
)

// fallbackCategorizations maps raw alert categories to static results used
// when the inference service is unavailable. Categories not listed here get
// the generic Configuration/medium fallback.
var fallbackCategorizations = map[string]Categorization{
	"security": {
		Category:       "Security",
		Priority:       "high",
		Summary:        "Security alert received from the monitoring source.",
		Recommendation: "Review security settings and audit recent permission changes.",
	},
	"limits": {
		Category:       "Data",
		Priority:       "medium",
		Summary:        "A platform limit is being approached or exceeded.",
		Recommendation: "Review resource consumption and consider raising the limit.",
	},
	"exceptions": {
		Category:       "Code",
		Priority:       "medium",
		Summary:        "An unhandled exception was reported.",
		Recommendation: "Inspect the failing code path and recent deployments.",
	},
}

const categorizerSystemPrompt = `You are a Salesforce Health Analyzer specialized in categorizing health alerts.

Analyze the health alert and provide:
1. A category - choose the most appropriate one based on the alert details
2. A priority level (low, medium, high, or critical) based on the potential impact
3. A concise summary of the issue
4. A recommended action to resolve the issue

Categories to choose from:
- Performance: Issues related to system performance, response times, etc.
- Security: Security vulnerabilities, permission issues, access control problems
- Data: Issues with data integrity, storage, limits, etc.
- Integration: Problems with external systems, APIs, data flows
- Compliance: Regulatory or policy violations
- Configuration: System setup issues, organization settings
- Code: Problems in custom code, Apex triggers, etc.
- User Experience: Interface issues affecting users

Respond with a JSON object: {"category": ..., "priority": ..., "summary": ..., "recommendation": ...}.
Ensure your recommendations are specific, actionable, and appropriate for the severity.`

// Categorizer wraps the inference service's chat completions endpoint and
// normalizes its unpredictable output into a fixed four-field result
type Categorizer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewCategorizer creates a categorizer from the inference configuration
func NewCategorizer(cfg *config.Config) *Categorizer {
	return &Categorizer{
		apiKey:  cfg.InferenceAPIKey,
		model:   cfg.InferenceModelID,
		baseURL: strings.TrimRight(cfg.InferenceURL, "/"),
		httpClient: &http.Client{
			Timeout: categorizeTimeout,
		},
	}
}

// Inference API request/response structures (OpenAI-compatible)
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Categorize analyzes an alert's content and returns a fully populated
// Categorization. It never fails: unavailability, timeouts, rejected
// requests, and unparseable responses all degrade to the static fallback.
func (c *Categorizer) Categorize(ctx context.Context, alert *database.HealthAlert) Categorization {
	if c.apiKey == "" {
		return c.fallbackFor(alert, "inference credentials are not configured")
	}

	rawData := alert.RawData
	if rawData == "" {
		rawData = "None provided"
	}
	userPrompt := fmt.Sprintf(
		"Health Alert Details:\n\nTitle: %s\nDescription: %s\nSource System: %s\nCategory: %s\nRaw Data: %s",
		alert.Title, alert.Description, alert.SourceSystem, alert.Category, rawData,
	)

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: categorizerSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return c.fallbackFor(alert, fmt.Sprintf("failed to build request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, categorizeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return c.fallbackFor(alert, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Categorization request failed for alert %d, using fallback: %v", alert.ID, err)
		return c.fallbackFor(alert, fmt.Sprintf("inference request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read categorization response for alert %d: %v", alert.ID, err)
		return c.fallbackFor(alert, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Inference API returned %d for alert %d: %s", resp.StatusCode, alert.ID, string(body))
		return c.fallbackFor(alert, fmt.Sprintf("inference API returned status %d", resp.StatusCode))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		log.Printf("Failed to parse categorization response for alert %d: %v", alert.ID, err)
		return c.fallbackFor(alert, fmt.Sprintf("failed to parse response: %v", err))
	}
	if chatResp.Error != nil {
		log.Printf("Inference API error for alert %d: %s", alert.ID, chatResp.Error.Message)
		return c.fallbackFor(alert, fmt.Sprintf("inference API error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		log.Printf("No choices in categorization response for alert %d", alert.ID)
		return c.fallbackFor(alert, "inference response contained no choices")
	}

	result, err := normalizeCategorization(chatResp.Choices[0].Message.Content)
	if err != nil {
		log.Printf("Could not normalize categorization for alert %d: %v", alert.ID, err)
		return c.fallbackFor(alert, fmt.Sprintf("unrecognized response format: %v", err))
	}
	return result
}

// fallbackFor returns the static categorization for an alert's raw category,
// embedding the reason in the summary for diagnosability
func (c *Categorizer) fallbackFor(alert *database.HealthAlert, reason string) Categorization {
	if fb, ok := fallbackCategorizations[alert.Category]; ok {
		fb.Summary = fmt.Sprintf("%s (AI analysis unavailable: %s)", fb.Summary, reason)
		return fb
	}
	return Categorization{
		Category:       defaultCategory,
		Priority:       defaultPriority,
		Summary:        fmt.Sprintf("AI analysis unavailable: %s", reason),
		Recommendation: defaultRecommendation,
	}
}

// The model's answer arrives in one of three shapes: a bare JSON object, a
// text block with a JSON object embedded in it, or labeled markdown fields.
// Each shape has its own normalizer; normalizeCategorization classifies and
// dispatches.
var labeledFieldPattern = regexp.MustCompile(`(?i)\*\*\s*(category|priority|summary|recommendation)\s*:?\s*\*\*:?\s*([^*\n]+)`)

func normalizeCategorization(content string) (Categorization, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Categorization{}, fmt.Errorf("empty response")
	}

	// Whole body is a JSON object
	if strings.HasPrefix(content, "{") {
		if result, ok := normalizeJSON(content); ok {
			return result, nil
		}
	}

	// A JSON object embedded in surrounding prose
	if sub, ok := extractJSONObject(content); ok {
		if result, ok := normalizeJSON(sub); ok {
			return result, nil
		}
	}

	// Labeled free text: "**Category:** Data **Priority:** high ..."
	if result, ok := normalizeLabeled(content); ok {
		return result, nil
	}

	return Categorization{}, fmt.Errorf("no categorization found in %d-char response", len(content))
}

// normalizeJSON parses a JSON object string into a Categorization
func normalizeJSON(s string) (Categorization, bool) {
	var raw struct {
		Category       string `json:"category"`
		Priority       string `json:"priority"`
		Summary        string `json:"summary"`
		Recommendation string `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Categorization{}, false
	}
	if raw.Category == "" && raw.Priority == "" && raw.Summary == "" && raw.Recommendation == "" {
		return Categorization{}, false
	}
	return fillDefaults(Categorization{
		Category:       raw.Category,
		Priority:       raw.Priority,
		Summary:        raw.Summary,
		Recommendation: raw.Recommendation,
	}), true
}

// normalizeLabeled extracts "**Field:** value" pairs from free text
func normalizeLabeled(text string) (Categorization, bool) {
	matches := labeledFieldPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Categorization{}, false
	}

	var result Categorization
	for _, m := range matches {
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "category":
			result.Category = value
		case "priority":
			result.Priority = value
		case "summary":
			result.Summary = value
		case "recommendation":
			result.Recommendation = value
		}
	}
	return fillDefaults(result), true
}

// fillDefaults substitutes placeholders for missing fields and clamps the
// priority to the four known levels
func fillDefaults(c Categorization) Categorization {
	if c.Category == "" {
		c.Category = defaultCategory
	}
	c.Priority = strings.ToLower(strings.TrimSpace(c.Priority))
	if !database.IsValidPriority(c.Priority) {
		c.Priority = defaultPriority
	}
	if c.Summary == "" {
		c.Summary = defaultSummary
	}
	if c.Recommendation == "" {
		c.Recommendation = defaultRecommendation
	}
	return c
}

// extractJSONObject returns the substring between the first '{' and the last
// '}' of text, if both are present
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
