package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrMissingAPIKey = errors.New("search API key not configured")
	ErrEmptyQuery    = errors.New("search query is empty")
)

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

// Client looks up song tempos on GetSongBPM.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client from cfg. A nil httpClient uses http.DefaultClient.
func NewClient(cfg config.SearchConfig, httpClient *http.Client) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.NewMetronomeConfig().Search.BaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type searchResponse struct {
	Search json.RawMessage `json:"search"`
}

type searchError struct {
	Error string `json:"error"`
}

// Search returns the songs matching query. A lookup without hits returns an empty slice.
func (c *Client) Search(ctx context.Context, query string) ([]Song, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerrors.WithStackTrace(err)
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("type", "song")
	params.Set("lookup", query)
	fullURL := c.baseURL + "/search/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, goerrors.WithStackTrace(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	log := logger.GetProjectLogger().WithFields(logrus.Fields{"query": query})
	log.Debug("Searching songs")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.WithStackTrace(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.WithStackTrace(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, goerrors.WithStackTrace(&APIError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	songs, err := decodeSongs(body)
	if err != nil {
		return nil, goerrors.WithStackTrace(err)
	}

	log.WithFields(logrus.Fields{"results": len(songs)}).Debug("Search finished")
	return songs, nil
}

func decodeSongs(body []byte) ([]Song, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raw := bytes.TrimSpace(resp.Search)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Song{}, nil
	}

	switch raw[0] {
	case '[':
		songs := []Song{}
		if err := json.Unmarshal(raw, &songs); err != nil {
			return nil, fmt.Errorf("failed to decode songs: %w", err)
		}
		return songs, nil
	case '{':
		// the service reports "no result" as an object in place of the list
		var serr searchError
		if err := json.Unmarshal(raw, &serr); err != nil {
			return nil, fmt.Errorf("failed to decode search error: %w", err)
		}
		logger.GetProjectLogger().WithFields(logrus.Fields{"reason": serr.Error}).Debug("Search returned no songs")
		return []Song{}, nil
	}

	return nil, fmt.Errorf("unexpected search payload: %s", raw)
}
