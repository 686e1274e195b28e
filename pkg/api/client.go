// Package api is the HTTP client for the school browsing endpoints of the
// philosophy site.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/philoview/pkg/model"
)

// Endpoint paths.
const (
	PathChildren     = "/api/schools/children"
	PathDetail       = "/api/schools/detail"
	PathContentsHTML = "/partials/schools/contents"
	PathContentsMore = "/api/schools/contents/more"
	PathSchoolsPage  = "/schools"
)

// DefaultPageSize matches the page size the site renders for page 0.
const DefaultPageSize = 10

// DefaultMaxBodyBytes caps how much of a response we are willing to buffer.
const DefaultMaxBodyBytes = 8 << 20

// Client talks to one site.
type Client struct {
	base          *url.URL
	http          *http.Client
	language      string
	sessionCookie string
	userAgent     string
	maxBody       int64
	log           *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLanguage sends the language as cookie and Accept-Language.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithSessionCookie sends a JSESSIONID so privacy filtering and like state
// apply to the signed-in viewer.
func WithSessionCookie(v string) Option {
	return func(c *Client) { c.sessionCookie = v }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes. Larger responses fail
// instead of being truncated.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for the site rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: 15 * time.Second},
		language:  model.LangChinese,
		userAgent: "pv/1",
		maxBody:   DefaultMaxBodyBytes,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Language returns the language requests are made in.
func (c *Client) Language() string {
	return c.language
}

// URL resolves a site path to an absolute URL.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

// Children lists the direct children of a school in server order.
func (c *Client) Children(ctx context.Context, parentID string) ([]model.NodeRef, error) {
	q := url.Values{"parentId": {parentID}}
	body, err := c.get(ctx, "children", parentID, PathChildren, q)
	if err != nil {
		return nil, err
	}
	var refs []model.NodeRef
	if err := json.Unmarshal(body, &refs); err != nil {
		return nil, &ParseError{Endpoint: "children", Cause: err}
	}
	return refs, nil
}

// Detail fetches a school's title and description. An unknown id yields an
// empty SchoolDetail and no error.
func (c *Client) Detail(ctx context.Context, id string) (model.SchoolDetail, error) {
	var d model.SchoolDetail
	body, err := c.get(ctx, "detail", id, PathDetail, url.Values{"id": {id}})
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(body, &d); err != nil {
		return d, &ParseError{Endpoint: "detail", Cause: err}
	}
	return d, nil
}

// FirstPage fetches the pre-rendered page 0 fragment and extracts its cards.
func (c *Client) FirstPage(ctx context.Context, id string) ([]model.ContentItem, error) {
	body, err := c.get(ctx, "contents", id, PathContentsHTML, url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	items, err := ParseContentCards(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Endpoint: "contents", Cause: err}
	}
	return items, nil
}

// MoreContents fetches page n (n ≥ 1 in practice) of a school's feed.
func (c *Client) MoreContents(ctx context.Context, id string, page, size int) (model.FeedPage, error) {
	var fp model.FeedPage
	if size <= 0 {
		size = DefaultPageSize
	}
	q := url.Values{
		"id":   {id},
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	body, err := c.get(ctx, "contents/more", id, PathContentsMore, q)
	if err != nil {
		return fp, err
	}
	if err := json.Unmarshal(body, &fp); err != nil {
		return fp, &ParseError{Endpoint: "contents/more", Cause: err}
	}
	if !fp.Success {
		return fp, &FetchError{Endpoint: "contents/more", ID: id, Cause: fmt.Errorf("%w: %s", ErrUnsuccessful, fp.Message)}
	}
	return fp, nil
}

// TopLevel scrapes the root schools from the schools page.
func (c *Client) TopLevel(ctx context.Context) ([]model.NodeRef, error) {
	body, err := c.get(ctx, "schools", "", PathSchoolsPage, nil)
	if err != nil {
		return nil, err
	}
	refs, err := ParseTopLevel(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Endpoint: "schools", Cause: err}
	}
	return refs, nil
}

func (c *Client) get(ctx context.Context, endpoint, id, path string, q url.Values) ([]byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, ID: id, Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
		req.AddCookie(&http.Cookie{Name: "language", Value: c.language})
	}
	if c.sessionCookie != "" {
		req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: c.sessionCookie})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, ID: id, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	c.log.Debugw("request", "endpoint", endpoint, "id", id, "status", resp.StatusCode,
		"bytes", len(body), "elapsed", time.Since(start))
	if err != nil {
		return nil, &FetchError{Endpoint: endpoint, ID: id, Status: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Endpoint: endpoint, ID: id, Status: resp.StatusCode,
			Cause: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if int64(len(body)) > c.maxBody {
		return nil, &FetchError{Endpoint: endpoint, ID: id, Status: resp.StatusCode,
			Cause: fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBody)}
	}
	return body, nil
}
