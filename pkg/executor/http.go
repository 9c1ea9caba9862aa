package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// HTTPSearcher queries a remote carefinder search API.
type HTTPSearcher struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSearcher creates a searcher for endpoint, the full URL of the search
// route (e.g. https://example.org/api/search). A non empty token is sent as a
// bearer token.
func NewHTTPSearcher(endpoint, token string) (*HTTPSearcher, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid search endpoint %q", endpoint)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		client = oauth2.NewClient(context.Background(), ts)
		client.Timeout = 30 * time.Second
	}

	return &HTTPSearcher{endpoint: u.String(), client: client}, nil
}

func (s *HTTPSearcher) Search(ctx context.Context, params url.Values) (*Response, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, err
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Printf("Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("search failed: %s", env.Error)
	}
	return env.Response(), nil
}
