package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	// BaseURL is the service root, e.g. "https://api.example.com/2.0".
	BaseURL string

	// Token is the bearer token sent on every request.
	Token string

	// Timeout bounds a single request. Zero means 30s.
	Timeout time.Duration

	// RequestsPerSecond caps the outgoing request rate. Zero means 5.
	RequestsPerSecond float64
}

// HTTPClient talks to the sheet service over its REST surface. It satisfies
// Client.
type HTTPClient struct {
	cfg     HTTPConfig
	hc      *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns an HTTPClient.
func NewHTTPClient(cfg HTTPConfig, log *zap.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPClient{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		log:     log,
	}
}

// GetSheet fetches the full sheet.
func (c *HTTPClient) GetSheet(ctx context.Context, sheetID string) (*Sheet, error) {
	var s Sheet
	err := c.do(ctx, http.MethodGet, c.sheetURL(sheetID), nil, &s)
	if err != nil {
		return nil, &Error{Op: "GetSheet", SheetID: sheetID, Err: err}
	}
	return &s, nil
}

// DeleteRows removes the identified rows.
func (c *HTTPClient) DeleteRows(ctx context.Context, sheetID string, rowIDs []int64) error {
	if len(rowIDs) == 0 {
		return nil
	}
	body := struct {
		RowIDs []int64 `json:"rowIds"`
	}{RowIDs: rowIDs}
	err := c.do(ctx, http.MethodPost, c.sheetURL(sheetID)+"/rows/delete", body, nil)
	if err != nil {
		return &Error{Op: "DeleteRows", SheetID: sheetID, Err: err}
	}
	return nil
}

// InsertRows appends rows and returns the assigned row IDs.
func (c *HTTPClient) InsertRows(ctx context.Context, sheetID string, rows []Row) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	var resp struct {
		Rows []Row `json:"rows"`
	}
	err := c.do(ctx, http.MethodPost, c.sheetURL(sheetID)+"/rows", rows, &resp)
	if err != nil {
		return nil, &Error{Op: "InsertRows", SheetID: sheetID, Err: err}
	}
	ids := make([]int64, len(resp.Rows))
	for i, r := range resp.Rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (c *HTTPClient) sheetURL(sheetID string) string {
	return c.cfg.BaseURL + "/sheets/" + url.PathEscape(sheetID)
}

// do runs one rate-limited request and decodes the response into out when
// out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, u string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("Sheet request",
		zap.String("method", method),
		zap.String("url", u),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := classifyStatus(resp.StatusCode); err != nil {
		// Body text helps diagnose rejects; cap it.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(msg) > 0 {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus maps an HTTP status to a sentinel error, nil for success.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrInvalidCredentials
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrThrottled
	case code >= 400 && code < 500:
		return ErrRejected
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
}
