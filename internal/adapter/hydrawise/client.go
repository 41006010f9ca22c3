package hydrawise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
)

// ErrFetch marks failures to authenticate or retrieve a report. Without a
// report there is nothing to normalize, so callers treat it as fatal.
var ErrFetch = errors.New("hydrawise fetch failed")

const (
	tokenPath   = "/oauth/access-token"
	reportsPath = "/reports"

	// reportOption and reportType select flow meter measurements in the
	// reports endpoint.
	reportOption = "3"
	reportType   = "FLOW_METER_MEASUREMENT_TYPE"
)

// Client fetches flow meter reports from the Hydrawise v2 API.
// It implements pipeline.ReportSource.
type Client struct {
	http    *resty.Client
	payload map[string]string
	logger  *slog.Logger
}

// NewClient creates a Hydrawise client from the hydrawise config section.
func NewClient(cfg config.HydrawiseConfig, logger *slog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryable).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    rc,
		payload: cfg.APIPayload,
		logger:  logger,
	}
}

// retryable retries transport errors, rate limiting and server errors.
// Other 4xx responses are final.
func retryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

// tokenResponse is the subset of the access-token response that is used.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Fetch exchanges the API payload for an access token and retrieves the raw
// flow meter report for [start, end) of one controller.
func (c *Client) Fetch(ctx context.Context, start, end time.Time, controllerID string) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	params := map[string]string{
		"format":        "json",
		"option":        reportOption,
		"start":         strconv.FormatInt(start.UnixMilli(), 10),
		"end":           strconv.FormatInt(end.UnixMilli(), 10),
		"type":          reportType,
		"controller_id": controllerID,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		SetQueryParams(params).
		Get(reportsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reports request: %w", ErrFetch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: reports: status %d: %s", ErrFetch, resp.StatusCode(), resp.String())
	}

	c.logger.Debug("report fetched",
		"controller_id", controllerID,
		"start", start.UTC().Format(time.RFC3339),
		"end", end.UTC().Format(time.RFC3339),
		"bytes", len(resp.Body()),
	)
	return resp.Body(), nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(c.payload).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token: status %d: %s", resp.StatusCode(), resp.String())
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body(), &tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}

	c.logger.Debug("access token acquired", "token_type", tok.TokenType, "expires_in", tok.ExpiresIn)
	return tok.AccessToken, nil
}
