// Package remote talks to the expense-tracker web service over its JSON
// API. Endpoints are resolved against a base URL:
//
//	POST api/AddExpense     create, body is the record without id
//	GET  api/getExpense     list, response {"expenses": [...]}
//	POST api/UpdateExpense  update, body is the full record
//	POST api/DeleteExpense  delete, body is the JSON-encoded id
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/store"
)

const (
	opAdd    = "AddExpense"
	opList   = "getExpense"
	opUpdate = "UpdateExpense"
	opDelete = "DeleteExpense"

	maxBodySize = 4 << 20
)

var (
	// ErrMissingID is returned when the service answers a create without an id.
	ErrMissingID = errors.New("remote: response record has no id")
	// ErrUnresolvedCreate is returned when the service acknowledged a create
	// without returning the record and the listing does not single out the
	// new one. The record may exist in the service.
	ErrUnresolvedCreate = errors.New("remote: created record could not be identified")
)

// StatusError reports a non-2xx answer from the service.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote %s: unexpected status %d", e.Op, e.StatusCode)
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

var _ store.Store = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		base:   u,
		http:   newHTTPClientWithPooling(),
		logger: log.Default(log.ComponentRemote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Create posts e and returns the record the service stored, id included.
// When the service only acknowledges the create, the id is looked up with
// a follow-up listing.
func (c *Client) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID != "" {
		return core.Expense{}, store.ErrIDAssigned
	}
	body, err := c.do(ctx, http.MethodPost, opAdd, nil, fromCore(e))
	if err != nil {
		return core.Expense{}, err
	}
	w, err := decodeRecord(body)
	if err != nil {
		return core.Expense{}, fmt.Errorf("remote %s: %w", opAdd, err)
	}
	if w == nil {
		return c.resolveCreated(ctx, e)
	}
	if w.ID == "" {
		return core.Expense{}, ErrMissingID
	}
	created, err := w.toCore()
	if err != nil {
		return core.Expense{}, fmt.Errorf("remote %s: %w", opAdd, err)
	}
	return created, nil
}

// resolveCreated finds the record an acknowledged create stored by
// listing the service and matching on content.
func (c *Client) resolveCreated(ctx context.Context, e core.Expense) (core.Expense, error) {
	all, err := c.List(ctx)
	if err != nil {
		return core.Expense{}, fmt.Errorf("remote %s: resolve id: %w", opAdd, err)
	}
	var candidates []core.Expense
	for _, r := range all {
		if sameContent(r, e) {
			candidates = append(candidates, r)
		}
	}
	created, ok := newestOf(candidates)
	if !ok {
		c.logger.WarnContext(ctx, "Cannot identify acknowledged create",
			log.FieldCount, len(candidates),
			log.FieldCategory, e.Category,
			log.FieldDate, e.Date.String())
		return core.Expense{}, fmt.Errorf("%w: %d matching records", ErrUnresolvedCreate, len(candidates))
	}
	return created, nil
}

// List fetches every record. Records that fail validation are skipped and
// logged so one bad row cannot hide the rest.
func (c *Client) List(ctx context.Context) ([]core.Expense, error) {
	body, err := c.do(ctx, http.MethodGet, opList, url.Values{"id": {"0"}}, nil)
	if err != nil {
		return nil, err
	}
	wires, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", opList, err)
	}
	out := make([]core.Expense, 0, len(wires))
	for i, w := range wires {
		e, err := w.toCore()
		if err == nil && e.ID == "" {
			err = ErrMissingID
		}
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping invalid remote record",
				"index", i, log.FieldExpenseID, string(w.ID), log.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Update posts the full record. An empty or acknowledgement-only response
// means the service kept the record as sent.
func (c *Client) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		return core.Expense{}, store.ErrNotFound
	}
	body, err := c.do(ctx, http.MethodPost, opUpdate, nil, fromCore(e))
	if err != nil {
		return core.Expense{}, err
	}
	w, err := decodeRecord(body)
	if err != nil {
		return core.Expense{}, fmt.Errorf("remote %s: %w", opUpdate, err)
	}
	if w == nil {
		return e, nil
	}
	if w.ID == "" {
		w.ID = wireID(e.ID)
	}
	updated, err := w.toCore()
	if err != nil {
		return core.Expense{}, fmt.Errorf("remote %s: %w", opUpdate, err)
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return store.ErrNotFound
	}
	_, err := c.do(ctx, http.MethodPost, opDelete, nil, wireID(id))
	return err
}

// do sends one request and returns the response body of a 2xx answer.
// A 404 maps to store.ErrNotFound.
func (c *Client) do(ctx context.Context, method, op string, query url.Values, payload any) ([]byte, error) {
	u := c.base.JoinPath("api", op)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote %s: encode: %w", op, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("remote %s: read body: %w", op, err)
	}

	c.logger.DebugContext(ctx, "Remote call completed",
		log.FieldOperation, op,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		if resp.StatusCode == http.StatusNotFound && op != opList {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, serr)
		}
		return nil, serr
	}
	return body, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
