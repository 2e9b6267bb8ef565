package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/navarrastar/contactsheet/pkg/sheet"
)

// RowField is the numeric field that carries a record's row number. Airtable
// has no notion of row position, so the sheet's 1-based row lives here.
const RowField = "Row"

const defaultBaseURL = "https://api.airtable.com"

// Client defines the interface for using an Airtable base as a sheet.Book
type Client interface {
	sheet.Book
}

type clientImpl struct {
	apiKey  string
	baseID  string
	baseURL string
	http    *http.Client
}

// Option configures the client.
type Option func(*clientImpl)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *clientImpl) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *clientImpl) { c.http = h }
}

// NewClient creates a new Airtable client
func NewClient(apiKey, baseID string, opts ...Option) Client {
	c := &clientImpl{
		apiKey:  apiKey,
		baseID:  baseID,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *clientImpl) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonPayload, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error creating payload: %w", err)
		}
		body = bytes.NewReader(jsonPayload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	// Add authentication and content type headers
	req.Header.Add("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling Airtable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error from Airtable API (%d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func (c *clientImpl) metaURL() string {
	return fmt.Sprintf("%s/v0/meta/bases/%s/tables", c.baseURL, c.baseID)
}

func (c *clientImpl) recordsURL(table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

func (c *clientImpl) Table(ctx context.Context, name string) (sheet.Table, bool, error) {
	var response struct {
		Tables []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, c.metaURL(), nil, &response); err != nil {
		return nil, false, err
	}

	for _, t := range response.Tables {
		if t.Name == name {
			return &table{client: c, name: name}, true, nil
		}
	}
	return nil, false, nil
}

type fieldSpec struct {
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

func (c *clientImpl) CreateTable(ctx context.Context, name string) (sheet.Table, error) {
	fields := []fieldSpec{{Name: RowField, Type: "number", Options: map[string]any{"precision": 0}}}
	for _, h := range sheet.Header {
		fields = append(fields, fieldSpec{Name: h, Type: "singleLineText"})
	}
	payload := map[string]any{
		"name":   name,
		"fields": fields,
	}

	if err := c.do(ctx, http.MethodPost, c.metaURL(), payload, nil); err != nil {
		return nil, err
	}

	slog.Info("Created Airtable table", "table", name)
	return &table{client: c, name: name}, nil
}

type record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

type table struct {
	client *clientImpl
	name   string
}

func (t *table) Name() string { return t.name }

func (t *table) list(ctx context.Context, params url.Values) ([]record, error) {
	var response struct {
		Records []record `json:"records"`
	}
	endpoint := t.client.recordsURL(t.name) + "?" + params.Encode()
	if err := t.client.do(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

func (t *table) LastRow(ctx context.Context) (int, error) {
	params := url.Values{}
	params.Set("maxRecords", "1")
	params.Set("sort[0][field]", RowField)
	params.Set("sort[0][direction]", "desc")

	records, err := t.list(ctx, params)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return rowNumber(records[0].Fields)
}

// WriteRow creates the record for row. Airtable has no unique constraint, so
// the row is checked before and after the create; if another writer claimed
// it in between, our record is removed again and ErrRowExists returned.
func (t *table) WriteRow(ctx context.Context, row int, values []string) error {
	existing, err := t.find(ctx, row)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("error writing row %d: %w", row, sheet.ErrRowExists)
	}

	fields := map[string]any{RowField: row}
	for i, h := range sheet.Header {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		fields[h] = v
	}

	var created struct {
		Records []record `json:"records"`
	}
	payload := map[string]any{
		"records":  []record{{Fields: fields}},
		"typecast": true,
	}
	if err := t.client.do(ctx, http.MethodPost, t.client.recordsURL(t.name), payload, &created); err != nil {
		return err
	}
	if len(created.Records) != 1 {
		return fmt.Errorf("error writing row %d: expected 1 created record, got %d", row, len(created.Records))
	}

	claimed, err := t.find(ctx, row)
	if err != nil {
		return err
	}
	if len(claimed) > 1 {
		id := created.Records[0].ID
		if err := t.delete(ctx, id); err != nil {
			slog.Error("Failed to remove duplicate Airtable record", "table", t.name, "row", row, "id", id, "error", err)
		}
		return fmt.Errorf("error writing row %d: %w", row, sheet.ErrRowExists)
	}

	slog.Debug("Wrote Airtable record", "table", t.name, "row", row)
	return nil
}

func (t *table) find(ctx context.Context, row int) ([]record, error) {
	params := url.Values{}
	params.Set("filterByFormula", fmt.Sprintf("{%s}=%d", RowField, row))
	return t.list(ctx, params)
}

func (t *table) delete(ctx context.Context, id string) error {
	params := url.Values{}
	params.Add("records[]", id)
	return t.client.do(ctx, http.MethodDelete, t.client.recordsURL(t.name)+"?"+params.Encode(), nil, nil)
}

func (t *table) ReadRow(ctx context.Context, row int) ([]string, error) {
	records, err := t.find(ctx, row)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sheet.ErrRowNotFound
	}

	values := make([]string, len(sheet.Header))
	for i, h := range sheet.Header {
		if v, ok := records[0].Fields[h].(string); ok {
			values[i] = v
		}
	}
	return values, nil
}

// Apply is a no-op: Airtable records carry no per-row styling.
func (t *table) Apply(_ context.Context, p sheet.Presentation) error {
	slog.Debug("Skipping presentation for Airtable table", "table", t.name, "row", p.Row)
	return nil
}

func rowNumber(fields map[string]any) (int, error) {
	switch v := fields[RowField].(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("error parsing row number %q: %w", v, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("record has no %s field", RowField)
	default:
		return 0, fmt.Errorf("unexpected %s value %v", RowField, v)
	}
}
