package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const duckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes the DuckDuckGo lite HTML endpoint. It needs no key.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewDuckDuckGo(endpoint string, qps float64, timeout time.Duration) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoLiteURL
	}
	return &DuckDuckGo{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(qps), 1),
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) (*Results, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search: empty query")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %v", ErrSearchUnavailable, err)
	}

	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %v", ErrSearchUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: duckduckgo returned %d", ErrSearchUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: parsing page: %v", ErrSearchUnavailable, err)
	}
	return FromSlice(parseLitePage(doc), clampMax(maxResults)), nil
}

// parseLitePage pairs each result link with the snippet cell that follows
// it in the lite page table.
func parseLitePage(doc *goquery.Document) []Result {
	var results []Result
	var pending *Result
	doc.Find("a.result-link, td.result-snippet").Each(func(_ int, s *goquery.Selection) {
		if s.Is("a") {
			if pending != nil {
				results = append(results, *pending)
			}
			href, _ := s.Attr("href")
			title := strings.TrimSpace(s.Text())
			if href == "" || title == "" {
				pending = nil
				return
			}
			pending = &Result{Title: title, Link: resolveRedirect(href)}
			return
		}
		if pending != nil {
			pending.Snippet = strings.Join(strings.Fields(s.Text()), " ")
			results = append(results, *pending)
			pending = nil
		}
	})
	if pending != nil {
		results = append(results, *pending)
	}
	return results
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target>
// click-tracking links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}
