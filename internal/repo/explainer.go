package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ExplainRequest carries the computed figures the explanation service turns
// into natural language.
type ExplainRequest struct {
	EntityType          string  `json:"entity_type"`
	EntityID            string  `json:"entity_id"`
	TotalIncidents      int     `json:"total_incidents"`
	MeanIncidentsPerDay float64 `json:"mean_incidents_per_day"`
	AvgSeverity         float64 `json:"avg_severity"`
	IncidentCountZ      float64 `json:"incident_count_z"`
	SeverityZ           float64 `json:"severity_z"`
	EmailZ              float64 `json:"email_z"`
	WebZ                float64 `json:"web_z"`
	EndpointZ           float64 `json:"endpoint_z"`
	MaxZ                float64 `json:"max_z"`
}

// ExplainerClient talks to the optional AI explanation service. Any failure
// is surfaced to the caller, which falls back to the static generator.
type ExplainerClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewExplainerClient constructs an explanation service client.
func NewExplainerClient(endpoint, apiKey string, timeout time.Duration) *ExplainerClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &ExplainerClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Explain requests a natural-language explanation and recommendation.
func (c *ExplainerClient) Explain(ctx context.Context, req ExplainRequest) (string, string, error) {
	if c == nil || c.endpoint == "" {
		return "", "", fmt.Errorf("explainer not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshal explain request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/explain", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("explainer returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var response struct {
		Explanation    string `json:"explanation"`
		Recommendation string `json:"recommendation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", "", fmt.Errorf("decode explain response: %w", err)
	}
	if response.Explanation == "" || response.Recommendation == "" {
		return "", "", fmt.Errorf("explainer returned empty fields")
	}
	return response.Explanation, response.Recommendation, nil
}
