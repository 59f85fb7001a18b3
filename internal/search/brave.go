package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search web API with a subscription token.
type Brave struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewBrave(endpoint, apiKey string, qps float64, timeout time.Duration) *Brave {
	if endpoint == "" {
		endpoint = braveSearchURL
	}
	return &Brave{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(qps), 1),
	}
}

func (b *Brave) Search(ctx context.Context, query string, maxResults int) (*Results, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search: empty query")
	}
	maxResults = clampMax(maxResults)
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: brave: %v", ErrSearchUnavailable, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: brave: %v", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: brave returned %d: %s", ErrSearchUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: brave: decoding response: %v", ErrSearchUnavailable, err)
	}

	items := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		items = append(items, Result{Title: r.Title, Link: r.URL, Snippet: stripTags(r.Description)})
	}
	return FromSlice(items, maxResults), nil
}

// stripTags removes the <strong> highlighting Brave puts in descriptions.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
