// Package wikipedia is a small MediaWiki Action API client covering the calls
// place resolution needs: page fetch, full-text search and page categories.
package wikipedia

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/cache"
	"github.com/ZanzyTHEbar/placescout-genkit/internal/httpx"
)

const (
	// DefaultEndpoint is the English Wikipedia Action API.
	DefaultEndpoint = "https://en.wikipedia.org/w/api.php"

	defaultCacheTTL   = 15 * time.Minute
	categoryPrefix    = "Category:"
	maxLinkOptions    = 500
	defaultSearchSize = 10
)

// Client talks to a MediaWiki Action API endpoint.
type Client struct {
	http     *httpx.Client
	endpoint string
	pages    *cache.InMemoryCache[placescout.Article]
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint points the client at another MediaWiki installation or language edition.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithCacheTTL sets how long fetched pages are reused. Zero disables the page cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.pages = nil
			return
		}
		c.pages = cache.NewInMemoryCache[placescout.Article](ttl, cache.WithLogger[placescout.Article](c.logger))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "wikipedia") }
}

// New creates a Client.
func New(client *httpx.Client, options ...Option) *Client {
	c := &Client{
		http:     client,
		endpoint: DefaultEndpoint,
		logger:   slog.Default().With("component", "wikipedia"),
	}
	c.pages = cache.NewInMemoryCache[placescout.Article](defaultCacheTTL)
	for _, option := range options {
		option(c)
	}
	return c
}

// Page fetches an article by title. With autoSuggest the title is first replaced
// by the search engine's suggestion or its top hit.
// Missing pages fail with an error matching placescout.ErrArticleNotFound and
// disambiguation pages with a *placescout.DisambiguationError.
func (c *Client) Page(ctx context.Context, title string, autoSuggest bool) (placescout.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return placescout.Article{}, placescout.NewNotFoundError("wikipedia.page", title)
	}

	key := cacheKey(title, autoSuggest)
	if c.pages != nil {
		if article, err := c.pages.Get(ctx, key); err == nil {
			c.logger.Debug("page served from cache", "title", title)
			return article, nil
		}
	}

	if autoSuggest {
		suggested, err := c.suggest(ctx, title)
		if err != nil {
			return placescout.Article{}, err
		}
		title = suggested
	}

	article, err := c.fetchPage(ctx, title)
	if err != nil {
		return placescout.Article{}, err
	}
	if c.pages != nil {
		_ = c.pages.Set(ctx, key, article)
	}
	return article, nil
}

// Search runs a full-text search and returns up to limit page titles in rank order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultSearchSize
	}
	params := baseParams()
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "")

	body, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var titles []string
	gjson.GetBytes(body, "query.search.#.title").ForEach(func(_, value gjson.Result) bool {
		titles = append(titles, value.String())
		return true
	})
	c.logger.Debug("search results", "query", query, "results", titles)
	return titles, nil
}

// Categories lists the categories of a page, without the "Category:" prefix.
func (c *Client) Categories(ctx context.Context, title string) ([]string, error) {
	params := baseParams()
	params.Set("prop", "categories")
	params.Set("cllimit", "max")
	params.Set("redirects", "1")
	params.Set("titles", title)

	body, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	page := gjson.GetBytes(body, "query.pages.0")
	if page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return nil, placescout.NewNotFoundError("wikipedia.categories", title)
	}

	var categories []string
	page.Get("categories.#.title").ForEach(func(_, value gjson.Result) bool {
		categories = append(categories, strings.TrimPrefix(value.String(), categoryPrefix))
		return true
	})
	return categories, nil
}

func (c *Client) suggest(ctx context.Context, title string) (string, error) {
	params := baseParams()
	params.Set("list", "search")
	params.Set("srsearch", title)
	params.Set("srlimit", "1")
	params.Set("srinfo", "suggestion")
	params.Set("srprop", "")

	body, err := c.query(ctx, params)
	if err != nil {
		return "", err
	}
	if suggestion := gjson.GetBytes(body, "query.searchinfo.suggestion").String(); suggestion != "" {
		return suggestion, nil
	}
	if top := gjson.GetBytes(body, "query.search.0.title").String(); top != "" {
		return top, nil
	}
	return "", placescout.NewNotFoundError("wikipedia.suggest", title)
}

func (c *Client) fetchPage(ctx context.Context, title string) (placescout.Article, error) {
	params := baseParams()
	params.Set("prop", "info|pageprops|extracts")
	params.Set("inprop", "url")
	params.Set("ppprop", "disambiguation")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)

	body, err := c.query(ctx, params)
	if err != nil {
		return placescout.Article{}, err
	}

	page := gjson.GetBytes(body, "query.pages.0")
	if !page.Exists() || page.Get("missing").Bool() || page.Get("invalid").Bool() {
		return placescout.Article{}, placescout.NewNotFoundError("wikipedia.page", title)
	}

	resolved := page.Get("title").String()
	if page.Get("pageprops.disambiguation").Exists() {
		options, err := c.links(ctx, resolved)
		if err != nil {
			return placescout.Article{}, err
		}
		return placescout.Article{}, &placescout.DisambiguationError{Title: resolved, Options: options}
	}

	return placescout.Article{
		Title:   resolved,
		URL:     page.Get("fullurl").String(),
		Content: page.Get("extract").String(),
	}, nil
}

func (c *Client) links(ctx context.Context, title string) ([]string, error) {
	params := baseParams()
	params.Set("prop", "links")
	params.Set("plnamespace", "0")
	params.Set("pllimit", "max")
	params.Set("titles", title)

	body, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}

	var options []string
	gjson.GetBytes(body, "query.pages.0.links.#.title").ForEach(func(_, value gjson.Result) bool {
		options = append(options, value.String())
		return len(options) < maxLinkOptions
	})
	return options, nil
}

func (c *Client) query(ctx context.Context, params url.Values) ([]byte, error) {
	body, err := c.http.Get(ctx, c.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("wikipedia %s: %w", describe(params), err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("wikipedia %s: response is not JSON", describe(params))
	}
	if apiErr := gjson.GetBytes(body, "error"); apiErr.Exists() {
		return nil, fmt.Errorf("wikipedia %s: %s: %s", describe(params), apiErr.Get("code").String(), apiErr.Get("info").String())
	}
	return body, nil
}

func baseParams() url.Values {
	return url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
	}
}

func describe(params url.Values) string {
	if list := params.Get("list"); list != "" {
		return list
	}
	return params.Get("prop")
}

func cacheKey(title string, autoSuggest bool) string {
	if autoSuggest {
		return "suggest:" + title
	}
	return "exact:" + title
}
