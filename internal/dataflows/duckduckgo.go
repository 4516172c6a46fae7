package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	duckDuckGoURL     = "https://duckduckgo.com"
	duckDuckGoHTMLURL = "https://html.duckduckgo.com"

	defaultNewsResults = 10
)

var vqdPattern = regexp.MustCompile(`vqd=["']?([0-9-]+)`)

// DuckDuckGoClient searches the DuckDuckGo "news" backend.
type DuckDuckGoClient struct {
	client     *resty.Client
	baseURL    string
	htmlURL    string
	region     string
	maxResults int
}

type DuckDuckGoOption func(*DuckDuckGoClient)

func WithRegion(region string) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		if region != "" {
			c.region = region
		}
	}
}

// WithMaxResults caps the result count; values above 10 are clamped.
func WithMaxResults(n int) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		if n > 0 && n <= defaultNewsResults {
			c.maxResults = n
		}
	}
}

// WithBaseURLs points the client at other hosts, used by tests.
func WithBaseURLs(baseURL, htmlURL string) DuckDuckGoOption {
	return func(c *DuckDuckGoClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
		c.htmlURL = strings.TrimRight(htmlURL, "/")
	}
}

func NewDuckDuckGoClient(opts ...DuckDuckGoOption) *DuckDuckGoClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; StockAnalyzerAI/1.0)")

	c := &DuckDuckGoClient{
		client:     client,
		baseURL:    duckDuckGoURL,
		htmlURL:    duckDuckGoHTMLURL,
		region:     "us-en",
		maxResults: defaultNewsResults,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ddgNewsResponse struct {
	Results []struct {
		Date    int64  `json:"date"`
		Title   string `json:"title"`
		Excerpt string `json:"excerpt"`
		URL     string `json:"url"`
		Source  string `json:"source"`
	} `json:"results"`
}

// Search returns at most maxResults news items for query. Errors from the
// backend are returned as-is, nothing is retried.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string) ([]*NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}

	vqd, err := c.token(ctx, query)
	if err != nil {
		return nil, err
	}
	if vqd == "" {
		return c.searchHTML(ctx, query)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"l":     c.region,
			"o":     "json",
			"noamp": "1",
			"q":     query,
			"vqd":   vqd,
			"p":     "-1",
		}).
		Get(c.baseURL + "/news.js")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("news search error %d: %s", resp.StatusCode(), resp.String())
	}

	var payload ddgNewsResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse news response: %w", err)
	}

	items := make([]*NewsItem, 0, min(len(payload.Results), c.maxResults))
	for _, r := range payload.Results {
		if len(items) == c.maxResults {
			break
		}
		item := &NewsItem{
			Title:   stripHTML(r.Title),
			Snippet: stripHTML(r.Excerpt),
			URL:     r.URL,
			Source:  r.Source,
		}
		if r.Date > 0 {
			item.PublishedAt = time.Unix(r.Date, 0).UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// token reads the vqd token DuckDuckGo embeds in its landing page. An empty
// token without error means the page did not carry one.
func (c *DuckDuckGoClient) token(ctx context.Context, query string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		Get(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("failed to reach duckduckgo: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("duckduckgo error %d", resp.StatusCode())
	}
	m := vqdPattern.FindStringSubmatch(resp.String())
	if len(m) < 2 {
		return "", nil
	}
	return m[1], nil
}

// searchHTML parses the JavaScript-free results page filtered to news.
func (c *DuckDuckGoClient) searchHTML(ctx context.Context, query string) ([]*NewsItem, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":   query,
			"kl":  c.region,
			"iar": "news",
		}).
		Get(c.htmlURL + "/html/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news for %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("news search error %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var items []*NewsItem
	doc.Find(".result").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, ok := link.Attr("href")
		if title == "" || !ok {
			return true
		}
		items = append(items, &NewsItem{
			Title:   title,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
			URL:     cleanRedirectURL(href),
			Source:  strings.TrimSpace(s.Find(".result__url").Text()),
		})
		return len(items) < c.maxResults
	})
	return items, nil
}

// cleanRedirectURL unwraps DuckDuckGo's /l/?uddg= redirect links.
func cleanRedirectURL(href string) string {
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

func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
