package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/healthboard/healthboard/internal/cache"
	"github.com/healthboard/healthboard/internal/config"
)

const (
	// insightsCacheTTL is how long a generated insights payload stays valid.
	// The agent call is expensive (tens of seconds), so staleness is traded
	// for cost; entries are regenerated lazily on the first request past expiry.
	insightsCacheTTL = 900 * time.Second

	// insightsTimeout is the hard budget for one agent call
	insightsTimeout = 120 * time.Second
)

// InsightSection is one titled finding in an insights payload
type InsightSection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Insights is the AI-generated summary over the alert population for a time
// window. IsFallback marks statically constructed substitutes returned when
// the agent cannot be used.
type Insights struct {
	AlertPattern        InsightSection `json:"alert_pattern"`
	PotentialIssue      InsightSection `json:"potential_issue"`
	SuggestedAction     InsightSection `json:"suggested_action"`
	SystemHealthSummary string         `json:"system_health_summary"`
	GeneratedAt         time.Time      `json:"generated_at"`
	TimeRange           string         `json:"time_range"`
	IsFallback          bool           `json:"is_fallback"`
}

// InsightsService generates insights via the Heroku Agents API, which runs
// SQL against a follower database on the agent's behalf. Results are cached
// per time range.
type InsightsService struct {
	apiKey       string
	modelID      string
	agentsURL    string
	appName      string
	dbAttachment string
	httpClient   *http.Client
	cache        *cache.Cache
}

// NewInsightsService creates an insights service backed by the given cache
func NewInsightsService(cfg *config.Config, c *cache.Cache) *InsightsService {
	return &InsightsService{
		apiKey:       cfg.InferenceAPIKey,
		modelID:      cfg.InferenceModelID,
		agentsURL:    strings.TrimRight(cfg.InferenceURL, "/") + "/v1/agents/heroku",
		appName:      cfg.AppName,
		dbAttachment: cfg.DBAttachment,
		httpClient: &http.Client{
			Timeout: insightsTimeout,
		},
		cache: c,
	}
}

// timeWindow translates a time range into the analysis window named in the
// prompt. Unrecognized ranges (including "quarter") get the 7-day default.
func timeWindow(timeRange string) string {
	switch timeRange {
	case "day":
		return "24 hours"
	case "month":
		return "30 days"
	default:
		return "7 days"
	}
}

// GetInsights returns the insights payload for a time range (day, week,
// month, quarter). Cached payloads younger than the TTL are returned without
// a remote call. All failure modes degrade to a fallback payload; this
// method never returns an error to the caller.
func (s *InsightsService) GetInsights(ctx context.Context, timeRange string) *Insights {
	cacheKey := "insights:" + timeRange
	if cached, ok := s.cache.Get(cacheKey); ok {
		if insights, ok := cached.(*Insights); ok {
			return insights
		}
	}

	insights := s.generate(ctx, timeRange)
	s.cache.SetWithTTL(cacheKey, insights, insightsCacheTTL)
	return insights
}

func (s *InsightsService) generate(ctx context.Context, timeRange string) *Insights {
	if s.apiKey == "" {
		log.Println("No inference API key configured, returning fallback insights")
		return s.fallback(timeRange, "The inference API key is not configured.")
	}
	if s.appName == "" {
		log.Println("No app name configured, returning fallback insights")
		return s.fallback(timeRange, "The application identity required by the agent's query tool is not configured.")
	}

	prompt := fmt.Sprintf(`You are a Salesforce Health Analyzer specialized in analyzing health alert data.

Please analyze the health alerts from the last %s and provide 3 key insights:

1. Alert Pattern Detected: Identify any patterns or clusters in the alerts, such as
   increases/decreases in specific categories or notable frequency changes.

2. Potential Issue: Based on the alerts, identify a potential underlying issue
   that may need attention. Look for correlations or common root causes.

3. Suggested Action: Recommend a specific, actionable step that would help
   address the most critical issues identified.

Format your response as a JSON object with the following structure:
{
    "alert_pattern": {"title": "Brief pattern title", "description": "Detailed description with numbers and percentages"},
    "potential_issue": {"title": "Brief issue title", "description": "Detailed description of the potential issue"},
    "suggested_action": {"title": "Brief action title", "description": "Detailed description of the recommended action"},
    "system_health_summary": "One sentence overall system health assessment"
}`, timeWindow(timeRange))

	payload := map[string]interface{}{
		"model": s.modelID,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"tools": []map[string]interface{}{
			{
				"type": "heroku_tool",
				"name": "postgres_run_query",
				"runtime_params": map[string]interface{}{
					"target_app_name": s.appName,
					"dyno_size":       "standard-1x",
					"tool_params": map[string]string{
						"db_attachment": s.dbAttachment,
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return s.fallback(timeRange, fmt.Sprintf("Failed to build agent request: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, insightsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.agentsURL, bytes.NewReader(body))
	if err != nil {
		return s.fallback(timeRange, fmt.Sprintf("Failed to create agent request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("Agent request failed: %v", err)
		return s.fallback(timeRange, "The AI insights service is temporarily unavailable.")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read agent response: %v", err)
		return s.fallback(timeRange, "The AI insights service is temporarily unavailable.")
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Agent API returned %d: %s", resp.StatusCode, string(respBody))
		if strings.Contains(string(respBody), "Target database is not a replica") {
			return s.fallback(timeRange, "The database is not configured as a follower/replica, which is required by the agent's query tool.")
		}
		return s.fallback(timeRange, fmt.Sprintf("The agent API rejected the request with status %d.", resp.StatusCode))
	}

	var answer string
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		answer = extractStreamCompletion(respBody)
		if answer == "" {
			log.Println("Processed agent event stream but found no final completion message")
			return s.fallback(timeRange, "The AI insights service is temporarily unavailable.")
		}
	} else {
		answer = extractJSONCompletion(respBody)
		if answer == "" {
			log.Println("Agent response contained no completion text")
			return s.fallback(timeRange, "The AI insights service is temporarily unavailable.")
		}
	}

	insights, err := parseInsights(answer)
	if err != nil {
		log.Printf("Failed to parse insights from agent answer: %v", err)
		return s.fallback(timeRange, "The AI insights service is temporarily unavailable.")
	}

	insights.GeneratedAt = time.Now()
	insights.TimeRange = timeRange
	insights.IsFallback = false
	return insights
}

// agentCompletion is the chat.completion shape carried in both the event
// stream and the plain JSON response
type agentCompletion struct {
	Object  string `json:"object"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractStreamCompletion scans an SSE body for "message" events and returns
// the content of the terminal completion (finish_reason = stop)
func extractStreamCompletion(body []byte) string {
	var final string

	for _, block := range strings.Split(strings.TrimSpace(string(body)), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}

		var eventType, eventData string
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			if strings.HasPrefix(line, "event:") {
				eventType = strings.TrimSpace(line[len("event:"):])
			} else if strings.HasPrefix(line, "data:") {
				eventData = strings.TrimSpace(line[len("data:"):])
			}
		}

		if eventType == "done" {
			break
		}
		if eventType != "message" || eventData == "" {
			continue
		}

		var completion agentCompletion
		if err := json.Unmarshal([]byte(eventData), &completion); err != nil {
			continue
		}
		if completion.Object != "chat.completion" {
			continue
		}
		for _, choice := range completion.Choices {
			if choice.FinishReason == "stop" && choice.Message.Content != "" {
				final = choice.Message.Content
			}
		}
	}

	return final
}

// extractJSONCompletion pulls the first completion content out of a plain
// JSON agent response
func extractJSONCompletion(body []byte) string {
	var completion agentCompletion
	if err := json.Unmarshal(body, &completion); err != nil {
		return ""
	}
	for _, choice := range completion.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content
		}
	}
	return ""
}

// parseInsights finds and decodes the JSON insights object in the agent's
// answer text: whole-string parse first, then the first-{ to last-} substring
func parseInsights(answer string) (*Insights, error) {
	var insights Insights
	if err := json.Unmarshal([]byte(answer), &insights); err == nil {
		return &insights, nil
	}

	sub, ok := extractJSONObject(answer)
	if !ok {
		return nil, fmt.Errorf("no JSON object in answer")
	}
	if err := json.Unmarshal([]byte(sub), &insights); err != nil {
		return nil, fmt.Errorf("failed to parse embedded JSON: %w", err)
	}
	return &insights, nil
}

// fallback builds the static substitute payload returned for every failure mode
func (s *InsightsService) fallback(timeRange, description string) *Insights {
	return &Insights{
		AlertPattern: InsightSection{
			Title:       "AI insights unavailable",
			Description: "The AI insights service is temporarily unavailable.",
		},
		PotentialIssue: InsightSection{
			Title:       "Insights generation failed",
			Description: description,
		},
		SuggestedAction: InsightSection{
			Title:       "Verify the insights configuration",
			Description: "Check the inference credentials, app identity, and follower database attachment.",
		},
		SystemHealthSummary: "AI insights unavailable - showing fallback data",
		GeneratedAt:         time.Now(),
		TimeRange:           timeRange,
		IsFallback:          true,
	}
}
