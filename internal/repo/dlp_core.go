// Package repo contains HTTP clients for the external collaborators of the
// behaviour engine: the DLP core incident store, the analysis result store,
// and the optional AI explanation service.
package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/vantasec/dlp-behavior/internal/cache"
	"github.com/vantasec/dlp-behavior/internal/models"
)

// DLPCoreClient wraps the DLP core incident query and result APIs.
type DLPCoreClient struct {
	baseURL       string
	incidentsPath string
	resultsPath   string
	httpClient    *http.Client
	cache         cache.Provider
	incidentsTTL  time.Duration
}

// NewDLPCoreClient constructs a client targeting the configured DLP core.
func NewDLPCoreClient(baseURL, incidentsPath, resultsPath string, timeout time.Duration, cacheProvider cache.Provider, incidentsTTL time.Duration) *DLPCoreClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DLPCoreClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		incidentsPath: incidentsPath,
		resultsPath:   resultsPath,
		httpClient:    &http.Client{Timeout: timeout},
		cache:         cacheProvider,
		incidentsTTL:  incidentsTTL,
	}
}

// FetchIncidents queries incidents for one entity over a half-open time
// range [start, end). Empty entityType and entityID return every incident
// in the window. An empty result is valid, not an error.
func (c *DLPCoreClient) FetchIncidents(ctx context.Context, entityType models.EntityType, entityID string, start, end time.Time) ([]models.Incident, error) {
	if c == nil {
		return nil, fmt.Errorf("dlp-core client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("dlp-core base URL not configured")
	}

	cacheKey := ""
	if c.incidentsTTL > 0 {
		cacheKey = fmt.Sprintf("incidents:%s:%s:%d:%d", entityType, entityID, start.Unix(), end.Unix())
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []models.Incident
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	payload := map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
		"start":       start.UTC().Format(time.RFC3339),
		"end":         end.UTC().Format(time.RFC3339),
	}

	var response struct {
		Incidents []models.Incident `json:"incidents"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.incidentsPath), payload, &response); err != nil {
		return nil, fmt.Errorf("dlp-core incidents request failed: %w", err)
	}

	if cacheKey != "" {
		if data, err := json.Marshal(response.Incidents); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.incidentsTTL)
		}
	}
	return response.Incidents, nil
}

// StoreAnalysis persists a completed analysis result. Callers treat failures
// as best-effort; the result itself is already computed.
func (c *DLPCoreClient) StoreAnalysis(ctx context.Context, result models.AnalysisResult) error {
	if c == nil {
		return fmt.Errorf("dlp-core client not initialised")
	}
	if c.baseURL == "" {
		return nil
	}
	return c.postJSON(ctx, c.resolvePath(c.resultsPath), result, nil)
}

// StorePatterns uploads mined risk patterns. Like StoreAnalysis this is
// best-effort and a no-op without a configured base URL.
func (c *DLPCoreClient) StorePatterns(ctx context.Context, patterns []models.RiskPattern) error {
	if c == nil {
		return fmt.Errorf("dlp-core client not initialised")
	}
	if c.baseURL == "" || len(patterns) == 0 {
		return nil
	}
	payload := map[string]any{"patterns": patterns}
	return c.postJSON(ctx, c.resolvePath(c.resultsPath)+"/patterns", payload, nil)
}

// ListAnalyses returns stored analysis results for a category since the
// given time, feeding the risk pattern miner.
func (c *DLPCoreClient) ListAnalyses(ctx context.Context, category models.EntityType, since time.Time) ([]models.AnalysisResult, error) {
	if c == nil {
		return nil, fmt.Errorf("dlp-core client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("dlp-core base URL not configured")
	}

	payload := map[string]any{
		"entity_type": category,
		"since":       since.UTC().Format(time.RFC3339),
	}

	var response struct {
		Results []models.AnalysisResult `json:"results"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.resultsPath)+"/query", payload, &response); err != nil {
		return nil, fmt.Errorf("dlp-core results request failed: %w", err)
	}
	return response.Results, nil
}

func (c *DLPCoreClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *DLPCoreClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dlp-core returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
