package planapi

import (
	"bytes"
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

	"plansync/internal/clock"
	"plansync/internal/domain"
	"plansync/internal/ports"
	"plansync/internal/remote"
)

// maxBody caps how much of a response body is read
const maxBody = 8 << 20

// Config holds what is needed to reach the planning service
type Config struct {
	// BaseURL is the service root; routes live under BaseURL + "/v1"
	BaseURL string
	Token   string

	// HTTPClient defaults to http.DefaultClient. Timeouts are applied
	// per call through the context, not here.
	HTTPClient *http.Client

	// Clock resolves HTTP-date Retry-After values. Defaults to clock.Real().
	Clock clock.Clock
}

// Client implements ports.PlanService over the planning service's
// HTTP/JSON API. It does not retry: every failure is returned as a
// classified *remote.Error for the caller's retry policy.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	clock   clock.Clock
}

var _ ports.PlanService = (*Client)(nil)

// New validates cfg and creates a Client
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("planapi: invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{baseURL: base + "/v1", token: cfg.Token, http: cfg.HTTPClient, clock: cfg.Clock}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	return c, nil
}

type itemJSON struct {
	ID        string    `json:"id,omitempty"`
	Kind      string    `json:"kind"`
	Team      string    `json:"team"`
	Release   string    `json:"release"`
	Name      string    `json:"name"`
	Status    string    `json:"status,omitempty"`
	Effort    *int      `json:"effort"`
	Owner     string    `json:"owner,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func toJSON(r domain.ItemRecord) itemJSON {
	return itemJSON{
		ID:        r.ID,
		Kind:      r.Kind.String(),
		Team:      r.Team,
		Release:   r.Release,
		Name:      r.Name,
		Status:    r.Status,
		Effort:    r.Effort,
		Owner:     r.Owner,
		ParentID:  r.ParentID,
		UpdatedAt: r.UpdatedAt,
	}
}

func (j itemJSON) record() domain.ItemRecord {
	return domain.ItemRecord{
		ID:        j.ID,
		Kind:      domain.ParseItemKind(j.Kind),
		Team:      j.Team,
		Release:   j.Release,
		Name:      j.Name,
		Status:    j.Status,
		Effort:    j.Effort,
		Owner:     j.Owner,
		ParentID:  j.ParentID,
		UpdatedAt: j.UpdatedAt,
	}
}

type releaseJSON struct {
	Team string `json:"team"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type patchJSON struct {
	Set map[string]string `json:"set"`
}

type errorJSON struct {
	Message string `json:"message"`
}

// GetRelease implements ports.PlanService
func (c *Client) GetRelease(ctx context.Context, target domain.Target) (ports.Release, error) {
	var out releaseJSON
	path := "/teams/" + url.PathEscape(target.Team) + "/releases/" + url.PathEscape(target.Release)
	if err := c.do(ctx, "get release", http.MethodGet, path, nil, &out); err != nil {
		return ports.Release{}, err
	}
	return ports.Release{Team: out.Team, Slug: out.Slug, Name: out.Name}, nil
}

// ListItems implements ports.PlanService
func (c *Client) ListItems(ctx context.Context, q domain.Query) ([]domain.ItemRecord, error) {
	params := url.Values{}
	params.Set("kind", q.Kind.String())
	for k, v := range q.Filters {
		params.Set(k, v)
	}

	var out struct {
		Items []itemJSON `json:"items"`
	}
	if err := c.do(ctx, "list", http.MethodGet, "/items?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	records := make([]domain.ItemRecord, 0, len(out.Items))
	for _, item := range out.Items {
		records = append(records, item.record())
	}
	return records, nil
}

// CreateItem implements ports.PlanService
func (c *Client) CreateItem(ctx context.Context, item domain.ItemRecord) (domain.ItemRecord, error) {
	body := toJSON(item)
	body.ID = ""
	body.UpdatedAt = time.Time{}

	var out itemJSON
	if err := c.do(ctx, "create", http.MethodPost, "/items", body, &out); err != nil {
		return domain.ItemRecord{}, err
	}
	return out.record(), nil
}

// UpdateItem implements ports.PlanService
func (c *Client) UpdateItem(ctx context.Context, id string, patch domain.ItemPatch) (domain.ItemRecord, error) {
	body := patchJSON{Set: make(map[string]string, len(patch.Set))}
	for f, v := range patch.Set {
		body.Set[string(f)] = v
	}

	var out itemJSON
	if err := c.do(ctx, "update", http.MethodPatch, "/items/"+url.PathEscape(id), body, &out); err != nil {
		return domain.ItemRecord{}, err
	}
	return out.record(), nil
}

// DeleteItem implements ports.PlanService
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("planapi: encode %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("planapi: build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(op, resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &remote.Error{Op: op, Reason: remote.ReasonServer, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// transportError classifies failures that produced no HTTP response.
// Cancellation is returned as is so it is never retried.
func transportError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &remote.Error{Op: op, Reason: remote.ReasonTimeout, Err: err}
	}
	if reason, ok := remote.ReasonOf(err); ok {
		return &remote.Error{Op: op, Reason: reason, Err: err}
	}
	return &remote.Error{Op: op, Reason: remote.ReasonServer, Message: "transport failure", Err: err}
}

func (c *Client) statusError(op string, resp *http.Response, body []byte) error {
	e := &remote.Error{Op: op, Reason: ReasonForStatus(resp.StatusCode), StatusCode: resp.StatusCode}

	var parsed errorJSON
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		e.Message = parsed.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
		if len(e.Message) > 200 {
			e.Message = e.Message[:200]
		}
	}

	if e.Reason == remote.ReasonRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())
	}
	return e
}

// ReasonForStatus classifies an HTTP status code
func ReasonForStatus(status int) remote.Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return remote.ReasonRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return remote.ReasonTimeout
	case status >= 500:
		return remote.ReasonServer
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return remote.ReasonAuth
	case status == http.StatusNotFound || status == http.StatusGone:
		return remote.ReasonNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return remote.ReasonConflict
	default:
		return remote.ReasonValidation
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Unparseable
// and past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(value)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}
