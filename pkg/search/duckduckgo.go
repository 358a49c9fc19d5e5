package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML results page
type DuckDuckGo struct {
	endpoint   string
	region     string
	httpClient *http.Client
}

// NewDuckDuckGo creates a searcher. region is a DuckDuckGo kl code such as
// "bd-en"; empty means no region.
func NewDuckDuckGo(region string) *DuckDuckGo {
	return &DuckDuckGo{
		endpoint:   duckDuckGoURL,
		region:     region,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithEndpoint points the searcher at another results page (tests)
func (d *DuckDuckGo) WithEndpoint(endpoint string) *DuckDuckGo {
	d.endpoint = endpoint
	return d
}

func (d *DuckDuckGo) Name() string {
	return "duckduckgo"
}

// Search fetches the results page for query and parses up to limit hits
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	if d.region != "" {
		params.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rx-reader/1.0)")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	return parseDuckDuckGo(resp.Body, limit)
}

func parseDuckDuckGo(r io.Reader, limit int) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var results []Result
	doc.Find("div.result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := cleanText(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: cleanText(s.Find(".result__snippet").First().Text()),
		})
		return true
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

var _ Searcher = (*DuckDuckGo)(nil)
