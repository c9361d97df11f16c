// Package feishu is a minimal client for the Feishu open API, covering the
// Bitable surface the importer needs: tenant token exchange, default-sheet
// resolution, paginated record search, and single/batch record creation.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/zhanglc/feishu-bill-importer/internal/logger"
)

const (
	// DefaultBaseURL is the public Feishu open API endpoint.
	DefaultBaseURL = "https://open.feishu.cn/open-apis"

	// DefaultPageSize is the page size used by SearchRecords when the caller
	// does not specify one.
	DefaultPageSize = 100

	// successCode is the application-level success sentinel inside the
	// response body, independent of the HTTP transport status.
	successCode = 0
)

// RecordFields is the wire shape of one record to create: {"fields": {...}}.
type RecordFields struct {
	Fields map[string]any `json:"fields"`
}

// Record is one raw record as returned by the records/search endpoint.
type Record map[string]any

// Client talks to the Feishu open API on behalf of one application. It caches
// the tenant access token for its own lifetime; the token is never refreshed,
// so a client should not outlive the token validity window. The token cache
// is the only mutable state and is guarded by a mutex; requests themselves
// are issued sequentially by the importer.
type Client struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given Feishu application credentials.
func NewClient(appID, appSecret string, opts ...Option) *Client {
	c := &Client{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
}

type describeResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Spreadsheet struct {
			Sheets []struct {
				SheetID string `json:"sheet_id"`
			} `json:"sheets"`
		} `json:"spreadsheet"`
	} `json:"data"`
}

type searchResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []Record `json:"items"`
		PageToken string   `json:"page_token"`
	} `json:"data"`
}

type writeResponse struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data map[string]any `json:"data"`
}

// AccessToken returns the cached tenant access token, performing the
// credential exchange on first use. Subsequent calls never hit the network.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}

	payload := map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	}

	var resp tokenResponse
	if _, _, err := c.do(ctx, http.MethodPost, "/auth/v3/tenant_access_token/internal/", "", payload, &resp); err != nil {
		return "", fmt.Errorf("AccessToken: %w", err)
	}
	if resp.Code != successCode {
		return "", &AuthError{Code: resp.Code, Msg: resp.Msg}
	}

	c.accessToken = resp.TenantAccessToken
	return c.accessToken, nil
}

// ResolveDefaultTable returns the id of the first sheet in the Bitable
// document identified by appToken. Sheet ordering is whatever the API
// returns; it is not guaranteed stable across calls.
func (c *Client) ResolveDefaultTable(ctx context.Context, appToken string) (string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("ResolveDefaultTable: %w", err)
	}

	var resp describeResponse
	if _, _, err := c.do(ctx, http.MethodGet, "/bitable/v1/spreadsheets/"+appToken, token, nil, &resp); err != nil {
		return "", &SheetResolutionError{AppToken: appToken, Code: -1, Msg: err.Error()}
	}
	if resp.Code != successCode {
		return "", &SheetResolutionError{AppToken: appToken, Code: resp.Code, Msg: resp.Msg}
	}
	if len(resp.Data.Spreadsheet.Sheets) == 0 {
		return "", &SheetResolutionError{AppToken: appToken}
	}

	return resp.Data.Spreadsheet.Sheets[0].SheetID, nil
}

// SearchRecords fetches all records from a table, following pagination until
// the API stops returning a page token. The result is fully materialized;
// pages are concatenated in return order. If tableID is empty the document's
// default table is resolved first. A failure on any page aborts the whole
// search and discards pages already fetched.
func (c *Client) SearchRecords(ctx context.Context, appToken, tableID string, filter map[string]any, pageSize int) ([]Record, error) {
	log := logger.FromContext(ctx)

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("SearchRecords: %w", err)
	}

	if tableID == "" {
		tableID, err = c.ResolveDefaultTable(ctx, appToken)
		if err != nil {
			return nil, fmt.Errorf("SearchRecords: %w", err)
		}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	params := map[string]any{
		"page_size":  pageSize,
		"page_token": "",
	}
	if filter != nil {
		params["filter"] = filter
	}

	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/search", appToken, tableID)

	var all []Record
	pages := 0
	for {
		var resp searchResponse
		if _, _, err := c.do(ctx, http.MethodPost, path, token, params, &resp); err != nil {
			return nil, &RecordFetchError{AppToken: appToken, TableID: tableID, Code: -1, Msg: err.Error()}
		}
		if resp.Code != successCode {
			return nil, &RecordFetchError{AppToken: appToken, TableID: tableID, Code: resp.Code, Msg: resp.Msg}
		}

		all = append(all, resp.Data.Items...)
		pages++

		if resp.Data.PageToken == "" {
			break
		}
		params["page_token"] = resp.Data.PageToken
	}

	log.Debug().
		Str("app_token", appToken).
		Str("table_id", tableID).
		Int("pages", pages).
		Int("records", len(all)).
		Msg("Record search completed")

	return all, nil
}

// CreateRecord inserts a single record. Success requires both HTTP 200 and a
// zero body code; anything else is an *InsertError carrying the raw response.
func (c *Client) CreateRecord(ctx context.Context, appToken, tableID string, fields map[string]any) (map[string]any, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("CreateRecord: %w", err)
	}

	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", appToken, tableID)
	payload := RecordFields{Fields: fields}

	var resp writeResponse
	status, body, err := c.do(ctx, http.MethodPost, path, token, payload, &resp)
	if err != nil {
		return nil, &InsertError{AppToken: appToken, TableID: tableID, Code: -1, Msg: err.Error(), StatusCode: status, Body: string(body)}
	}
	if status != http.StatusOK || resp.Code != successCode {
		return nil, &InsertError{AppToken: appToken, TableID: tableID, Code: resp.Code, Msg: resp.Msg, StatusCode: status, Body: string(body)}
	}

	return resp.Data, nil
}

// BatchCreateRecords inserts records in one batch_create call. The records
// are sent as-is; keeping the batch within the API's own size ceiling is the
// caller's responsibility, and exceeding it surfaces through the returned
// *BatchInsertError. Success requires both HTTP 200 and a zero body code.
func (c *Client) BatchCreateRecords(ctx context.Context, appToken, tableID string, records []RecordFields) (map[string]any, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("BatchCreateRecords: %w", err)
	}

	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records/batch_create", appToken, tableID)
	payload := map[string]any{"records": records}

	var resp writeResponse
	status, body, err := c.do(ctx, http.MethodPost, path, token, payload, &resp)
	if err != nil {
		return nil, &BatchInsertError{AppToken: appToken, TableID: tableID, Code: -1, Msg: err.Error(), StatusCode: status, Body: string(body)}
	}
	if status != http.StatusOK || resp.Code != successCode {
		return nil, &BatchInsertError{AppToken: appToken, TableID: tableID, Code: resp.Code, Msg: resp.Msg, StatusCode: status, Body: string(body)}
	}

	return resp.Data, nil
}

// do issues one request and decodes the JSON response into out. It returns
// the HTTP status and the raw body so write paths can attach them to their
// errors. A decode failure on a non-JSON body is returned as an error with
// the status and body still populated.
func (c *Client) do(ctx context.Context, method, path, token string, payload, out any) (int, []byte, error) {
	log := logger.FromContext(ctx)
	reqID := uuid.NewString()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log.Debug().
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Msg("Calling Feishu API")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	log.Debug().
		Str("request_id", reqID).
		Int("status", httpResp.StatusCode).
		Msg("Feishu API responded")

	if err := json.Unmarshal(body, out); err != nil {
		return httpResp.StatusCode, body, fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}

	return httpResp.StatusCode, body, nil
}
