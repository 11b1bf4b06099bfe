package jdfetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxChars = 20000
)

// Fetcher renders an external job posting in a headless browser and
// extracts its readable text, exposed as the fetch_job_posting tool.
type Fetcher struct {
	Timeout  time.Duration
	MaxChars int
}

func (Fetcher) Name() string { return "fetch_job_posting" }

// Result is the extracted posting.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	RenderMS int    `json:"render_ms"`
}

func (f Fetcher) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	raw, _ := params["url"].(string)
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("fetch_job_posting requires a url parameter")
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxChars := f.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	t0 := time.Now()

	html, err := fetchHTML(ctx, raw)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(raw))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	b, err := json.Marshal(Result{
		URL:      raw,
		Title:    strings.TrimSpace(article.Title),
		Text:     text,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	})
	return string(b), err
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("TalentMatchBot/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
