package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coding-agreement/internal/models"
)

// config is the resolved client configuration
type config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client fetches comparison rows and Kappa results from the coding service
type Client struct {
	config config
	client *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3333/api"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config{
			BaseURL: strings.TrimRight(baseURL, "/"),
			Token:   token,
			Timeout: timeout,
		},
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// StatusError is returned when the coding service answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coding service returned status %d: %s", e.StatusCode, e.Body)
}

// getJSON performs a GET request and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func workspacePath(workspaceID int) string {
	return fmt.Sprintf("/admin/workspace/%d/coding/trainings", workspaceID)
}

// FetchCrossTrainingComparisons asks the coding service to compare trainings
func (c *Client) FetchCrossTrainingComparisons(ctx context.Context, workspaceID int, trainingIDs []int) ([]models.CrossSourceComparison, error) {
	if len(trainingIDs) < 2 {
		return nil, fmt.Errorf("at least two trainings are required, got %d", len(trainingIDs))
	}
	ids := make([]string, len(trainingIDs))
	for i, id := range trainingIDs {
		ids[i] = strconv.Itoa(id)
	}

	var rows []models.CrossSourceComparison
	query := url.Values{"trainingIds": {strings.Join(ids, ",")}}
	if err := c.getJSON(ctx, workspacePath(workspaceID)+"/compare", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchWithinTrainingComparisons asks for the coder-by-coder comparison of one training
func (c *Client) FetchWithinTrainingComparisons(ctx context.Context, workspaceID, trainingID int) ([]models.WithinTrainingComparison, error) {
	var rows []models.WithinTrainingComparison
	path := fmt.Sprintf("%s/%d/coder-comparison", workspacePath(workspaceID), trainingID)
	if err := c.getJSON(ctx, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchKappaStatistics asks for the full pairwise Kappa result of a training
func (c *Client) FetchKappaStatistics(ctx context.Context, workspaceID, trainingID int, weighted bool, level models.Level) (*models.KappaStatistics, error) {
	var stats models.KappaStatistics
	path := fmt.Sprintf("%s/%d/kappa", workspacePath(workspaceID), trainingID)
	query := url.Values{
		"weightedMean": {strconv.FormatBool(weighted)},
		"level":        {string(level)},
	}
	if err := c.getJSON(ctx, path, query, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
