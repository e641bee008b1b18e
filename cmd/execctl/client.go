package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	diaghandler "execledger/internal/diagnostic/handler"
	"execledger/internal/events"
	"execledger/internal/events/feed"
	exphandler "execledger/internal/expenditure/handler"
	policyhandler "execledger/internal/policy/handler"
	"execledger/pkg/platform/httputil"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Description)
}

// Client calls the execledger HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreatePolicy(ctx context.Context, req policyhandler.CreatePolicyRequest) (policyhandler.CreatePolicyResponse, error) {
	var out policyhandler.CreatePolicyResponse
	err := c.do(ctx, http.MethodPost, "/v1/policies", nil, req, &out)
	return out, err
}

func (c *Client) GetPolicy(ctx context.Context, policyID string) (policyhandler.PolicyResponse, error) {
	var out policyhandler.PolicyResponse
	err := c.do(ctx, http.MethodGet, "/v1/policies/"+url.PathEscape(policyID), nil, nil, &out)
	return out, err
}

func (c *Client) CountPolicies(ctx context.Context) (policyhandler.CountResponse, error) {
	var out policyhandler.CountResponse
	err := c.do(ctx, http.MethodGet, "/v1/policies/count", nil, nil, &out)
	return out, err
}

func (c *Client) ListPolicies(ctx context.Context, offset, limit uint64) (policyhandler.ListPoliciesResponse, error) {
	var out policyhandler.ListPoliciesResponse
	q := url.Values{}
	q.Set("offset", strconv.FormatUint(offset, 10))
	q.Set("limit", strconv.FormatUint(limit, 10))
	err := c.do(ctx, http.MethodGet, "/v1/policies", q, nil, &out)
	return out, err
}

func (c *Client) AppendLog(ctx context.Context, policyID, message string) (diaghandler.AppendLogResponse, error) {
	var out diaghandler.AppendLogResponse
	err := c.do(ctx, http.MethodPost, "/v1/policies/"+url.PathEscape(policyID)+"/logs", nil,
		diaghandler.AppendLogRequest{Message: &message}, &out)
	return out, err
}

func (c *Client) GetLog(ctx context.Context, policyID, logIndex string) (diaghandler.LogEntryResponse, error) {
	var out diaghandler.LogEntryResponse
	err := c.do(ctx, http.MethodGet, "/v1/policies/"+url.PathEscape(policyID)+"/logs/"+url.PathEscape(logIndex), nil, nil, &out)
	return out, err
}

func (c *Client) CountLogs(ctx context.Context, policyID string) (diaghandler.LogCountResponse, error) {
	var out diaghandler.LogCountResponse
	err := c.do(ctx, http.MethodGet, "/v1/policies/"+url.PathEscape(policyID)+"/logs", nil, nil, &out)
	return out, err
}

func (c *Client) RecordExpenditure(ctx context.Context, policyID string, req exphandler.RecordExpenditureRequest) (exphandler.RecordExpenditureResponse, error) {
	var out exphandler.RecordExpenditureResponse
	err := c.do(ctx, http.MethodPost, "/v1/policies/"+url.PathEscape(policyID)+"/expenditures", nil, req, &out)
	return out, err
}

func (c *Client) ReplayEvents(ctx context.Context, after, limit uint64) (feed.ReplayResponse, error) {
	var out feed.ReplayResponse
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}
	err := c.do(ctx, http.MethodGet, "/v1/events", q, nil, &out)
	return out, err
}

// WatchEvents streams events after the given sequence to fn until ctx is
// cancelled, the server closes the stream, or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, after uint64, fn func(events.Event) error) error {
	u, err := url.Parse(c.baseURL + "/v1/events/ws")
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if after > 0 {
		u.RawQuery = "after=" + strconv.FormatUint(after, 10)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect event feed: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var e httputil.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Code = e.Error
			apiErr.Description = e.ErrorDescription
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
