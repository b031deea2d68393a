// Package registry fetches the public register of recognised sponsors
// from the IND website and turns its table into rows. The register is a
// plain HTML table; no session or pagination is involved, but the site
// occasionally answers 5xx under load, so fetches retry with a fixed
// delay and are rate limited across calls.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/kakiii/kmatch/internal/ports"
)

// DefaultURL is the public register of regular labour and highly
// skilled migrant sponsors.
const DefaultURL = "https://ind.nl/en/public-register-recognised-sponsors/public-register-regular-labour-and-highly-skilled-migrants"

const (
	defaultTimeout     = 30 * time.Second
	defaultRetries     = 3
	defaultRetryDelay  = 5 * time.Second
	defaultMinInterval = 10 * time.Second

	// The IND site serves an interstitial to clients without a browser
	// user agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// maxBodySize caps the response read; the register page is well
	// under 2MB.
	maxBodySize = 16 << 20
)

// Config tunes a Client. Zero values fall back to the defaults above.
type Config struct {
	URL         string
	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	MinInterval time.Duration
	Logger      *slog.Logger
}

// Client fetches and parses the register. It implements ports.RowSource.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewClient builds a register client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		log:        cfg.Logger,
	}
}

// Name identifies the client in snapshots and run entries.
func (c *Client) Name() string {
	return "register"
}

// Rows fetches the register page and returns its sponsor rows along
// with the raw page bytes for change hashing.
func (c *Client) Rows(ctx context.Context) ([]ports.Row, []byte, error) {
	raw, err := c.fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows, err := ParseTable(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("register page has no sponsor rows")
	}

	c.log.Info("register fetched", "rows", len(rows), "bytes", len(raw))
	return rows, raw, nil
}

// fetch retries transient failures with a fixed delay. Client errors
// (4xx) are terminal: retrying a rejected request never helps.
func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Warn("register fetch retrying",
				"attempt", attempt, "of", c.retries, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, retryable, err := c.get(ctx)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("register fetch failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) get(ctx context.Context) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("register returned %s", resp.Status)
	default:
		return nil, false, fmt.Errorf("register returned %s", resp.Status)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("read register body: %w", err)
	}
	return body, false, nil
}

// ParseTable extracts sponsor rows from the register page. The first
// table is the register; its first column holds the organisation name
// and any further columns become row fields keyed by header.
func ParseTable(raw []byte) ([]ports.Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse register page: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("register page has no table")
	}

	headers := headerCells(table)
	orgCol := 0
	for i, h := range headers {
		if strings.EqualFold(h, "Organisation") || strings.EqualFold(h, "Organization") {
			orgCol = i
			break
		}
	}

	var rows []ports.Row
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		// Header and spacer rows carry no td cells.
		if cells.Length() <= orgCol {
			return
		}
		org := cellText(cells.Eq(orgCol))
		if org == "" {
			return
		}

		row := ports.Row{Organisation: org}
		cells.Each(func(i int, td *goquery.Selection) {
			if i == orgCol || i >= len(headers) {
				return
			}
			v := cellText(td)
			if v == "" {
				return
			}
			if row.Fields == nil {
				row.Fields = make(map[string]string)
			}
			row.Fields[headers[i]] = v
		})
		rows = append(rows, row)
	})

	return rows, nil
}

func headerCells(table *goquery.Selection) []string {
	var headers []string
	collect := func(_ int, s *goquery.Selection) {
		headers = append(headers, cellText(s))
	}
	table.Find("thead th").Each(collect)
	if len(headers) == 0 {
		// Some renderings keep the header cells in the first body row.
		table.Find("tr").First().Find("th, td").Each(collect)
	}
	return headers
}

// cellText collapses the whitespace runs nested markup leaves behind.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
