package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// Quote is one priced entry from the feed, normalized to domain types.
type Quote struct {
	Category  domain.Category
	Code      string
	Title     string
	TitleEn   string
	Price     decimal.Decimal
	Change    decimal.Decimal
	MarketCap *decimal.Decimal
	Volume24h *decimal.Decimal
	Change7d  decimal.Decimal
	UpdatedAt time.Time
}

type rawItem struct {
	Category      string `json:"category"`
	Title         string `json:"title"`
	TitleEn       string `json:"title_en"`
	Symbol        string `json:"symbol"`
	Price         any    `json:"price"`
	ChangePercent any    `json:"change_percent"`
	Change7d      any    `json:"change_percent_7d"`
	MarketCap     any    `json:"market_cap"`
	Volume24h     any    `json:"volume_24h"`
	UpdatedAt     string `json:"updated_at"`
}

type pageResponse struct {
	Data []rawItem `json:"data"`
	Meta struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

// categoryNames maps the feed's localized category labels to domain categories.
var categoryNames = map[string]domain.Category{
	"ارز":            domain.CategoryCurrency,
	"currency":       domain.CategoryCurrency,
	"طلا":            domain.CategoryGold,
	"gold":           domain.CategoryGold,
	"سکه":            domain.CategoryCoin,
	"coin":           domain.CategoryCoin,
	"ارز دیجیتال":    domain.CategoryCrypto,
	"رمزارز":         domain.CategoryCrypto,
	"crypto":         domain.CategoryCrypto,
	"cryptocurrency": domain.CategoryCrypto,
}

// ParseCategory resolves a localized category label.
func ParseCategory(label string) (domain.Category, bool) {
	c, ok := categoryNames[strings.ToLower(strings.TrimSpace(label))]
	return c, ok
}

// Client is an HTTP client for the paginated pricing feed with retry on 429.
// The API token is sent in the Authorization header and never placed in URLs.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxPages   int
}

// NewClient creates a new feed client.
func NewClient(baseURL, token string, maxRetries int, baseDelay time.Duration, maxPages int) *Client {
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxPages:   maxPages,
	}
}

// FetchAll walks every page of the feed and returns the quotes it could normalize.
// Entries with an unknown category or a non-finite price are skipped.
func (c *Client) FetchAll(ctx context.Context) ([]Quote, error) {
	var quotes []Quote
	skipped := 0

	for page := 1; page <= c.maxPages; page++ {
		resp, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Data {
			q, err := normalize(item)
			if err != nil {
				skipped++
				slog.Debug("feed: skipping entry", "symbol", item.Symbol, "error", err)
				continue
			}
			quotes = append(quotes, q)
		}

		if resp.Meta.TotalPages <= page || len(resp.Data) == 0 {
			break
		}
		if page == c.maxPages {
			slog.Warn("feed: page limit reached", "maxPages", c.maxPages, "totalPages", resp.Meta.TotalPages)
		}
	}

	if skipped > 0 {
		slog.Warn("feed: skipped entries", "count", skipped)
	}
	return quotes, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (pageResponse, error) {
	var resp pageResponse
	body, err := c.get(ctx, fmt.Sprintf("/prices?page=%d", page))
	if err != nil {
		return resp, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return resp, fmt.Errorf("parsing feed page %d: %w", page, err)
	}
	return resp, nil
}

// get performs a GET request with retry on 429.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", path, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, path, string(body))
	}

	return nil, lastErr
}

func normalize(item rawItem) (Quote, error) {
	category, ok := ParseCategory(item.Category)
	if !ok {
		return Quote{}, fmt.Errorf("unknown category %q", item.Category)
	}
	code := strings.ToLower(strings.TrimSpace(item.Symbol))
	if code == "" {
		return Quote{}, fmt.Errorf("missing symbol")
	}
	price, err := domain.ToDecimal(item.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("price: %w", err)
	}

	q := Quote{
		Category:  category,
		Code:      code,
		Title:     item.Title,
		TitleEn:   item.TitleEn,
		Price:     price,
		Change:    optionalDecimal(item.ChangePercent),
		Change7d:  optionalDecimal(item.Change7d),
		UpdatedAt: time.Now().UTC(),
	}
	if item.MarketCap != nil {
		if d, err := domain.ToDecimal(item.MarketCap); err == nil {
			q.MarketCap = &d
		}
	}
	if item.Volume24h != nil {
		if d, err := domain.ToDecimal(item.Volume24h); err == nil {
			q.Volume24h = &d
		}
	}
	if item.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
			q.UpdatedAt = ts.UTC()
		}
	}
	return q, nil
}

func optionalDecimal(v any) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	d, err := domain.ToDecimal(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
