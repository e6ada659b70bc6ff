// Package topapi is the HTTP client for the sales backend: installment
// recalculation, market dashboard aggregates and company inventories.
package topapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/top-planner/pkg/constants"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// ErrMissingBaseURL is returned when the client is built without a backend URL.
var ErrMissingBaseURL = errors.New("backend base URL is required")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	SubmitPath    string
	CSRFToken     string
	SessionCookie string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client talks to the sales backend. It is safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	submitPath    string
	csrfToken     string
	sessionCookie string
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", raw, err)
	}

	submitPath := strings.TrimSpace(opts.SubmitPath)
	if submitPath == "" {
		submitPath = constants.DefaultSubmitPath
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:       base,
		submitPath:    submitPath,
		csrfToken:     opts.CSRFToken,
		sessionCookie: opts.SessionCookie,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// SubmitInstallments posts the schedule fields as multipart form data to the
// recalculation endpoint. Fields are written in insertion order.
func (c *Client) SubmitInstallments(ctx context.Context, fields *orderedmap.OrderedMap[string, string]) (*CalculationResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if fields != nil {
		for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
			if err := writer.WriteField(pair.Key, pair.Value); err != nil {
				return nil, fmt.Errorf("failed to encode field %s: %w", pair.Key, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.submitPath, nil, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp CalculationResponse
	if err := c.do(req, &resp, "topapi.SubmitInstallments"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchKPIs loads the market dashboard aggregate for the given filter query.
func (c *Client) FetchKPIs(ctx context.Context, query url.Values) (*KPIs, error) {
	req, err := c.newRequest(ctx, http.MethodGet, constants.KPIsPath, query, nil)
	if err != nil {
		return nil, err
	}

	var kpis KPIs
	if err := c.do(req, &kpis, "topapi.FetchKPIs"); err != nil {
		return nil, err
	}
	return &kpis, nil
}

// FetchCharts loads the market dashboard chart series for the given filter query.
func (c *Client) FetchCharts(ctx context.Context, query url.Values) (*Charts, error) {
	req, err := c.newRequest(ctx, http.MethodGet, constants.ChartsPath, query, nil)
	if err != nil {
		return nil, err
	}

	var charts Charts
	if err := c.do(req, &charts, "topapi.FetchCharts"); err != nil {
		return nil, err
	}
	return &charts, nil
}

// FetchExport loads the raw market records matching the filter query.
func (c *Client) FetchExport(ctx context.Context, query url.Values) ([]ExportRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, constants.ExportPath, query, nil)
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := c.do(req, &resp, "topapi.FetchExport"); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchCompanyUnits loads the full unit list of one company.
func (c *Client) FetchCompanyUnits(ctx context.Context, companyID string) ([]InventoryUnit, error) {
	query := url.Values{}
	query.Set("company_id", companyID)

	req, err := c.newRequest(ctx, http.MethodGet, constants.CompanyUnitsPath, query, nil)
	if err != nil {
		return nil, err
	}

	var resp companyUnitsResponse
	if err := c.do(req, &resp, "topapi.FetchCompanyUnits"); err != nil {
		return nil, err
	}
	if resp.Units == nil {
		resp.Units = []InventoryUnit{}
	}
	return resp.Units, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := *c.baseURL
	target.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
		req.Header.Set("Referer", c.baseURL.String()+"/")
	}
	if c.sessionCookie != "" {
		req.Header.Set("Cookie", c.sessionCookie)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}, op string) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed",
			zap.String("op", op),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	c.logger.Debug("backend request completed",
		zap.String("op", op),
		zap.String("path", req.URL.Path),
		zap.String("requestID", req.Header.Get("X-Request-ID")),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
