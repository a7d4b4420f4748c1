// Package client talks to a running atelier web admin over its JSON endpoints.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"atelier/internal/duplicate"
	"atelier/internal/model"

	"github.com/moogar0880/problems"
	"go.uber.org/zap"
)

// Problem is an RFC 7807 body as returned by the admin API. Validation
// problems also carry per-field errors.
type Problem struct {
	*problems.Problem
	Errors model.FieldErrors `json:"errors,omitempty"`
}

func (p *Problem) Error() string {
	msg := strings.TrimSpace(p.Detail)
	if msg == "" {
		msg = strings.TrimSpace(p.Title)
	}
	if msg == "" {
		msg = http.StatusText(p.Status)
	}
	return fmt.Sprintf("%d %s", p.Status, msg)
}

// Client implements duplicate.Backend against a remote web admin.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

var _ duplicate.Backend = (*Client)(nil)

func New(baseURL string, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http(s): %q", baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(u.String(), "/"),
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Logger:  logger,
	}, nil
}

func (c *Client) Duplicate(ctx context.Context, ep duplicate.Endpoint) (int64, error) {
	var out struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, ep, &out); err != nil {
		return 0, err
	}
	return out.Data.ID, nil
}

func (c *Client) Delete(ctx context.Context, ep duplicate.Endpoint) error {
	return c.do(ctx, ep, nil)
}

func (c *Client) do(ctx context.Context, ep duplicate.Endpoint, out any) error {
	method := ep.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+ep.Path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	c.Logger.Debug("remote call", zap.String("route", ep.Name), zap.String("method", method), zap.String("path", ep.Path))
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return decodeProblem(resp.StatusCode, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", ep.Name, err)
	}
	return nil
}

// decodeProblem returns model.FieldErrors for validation problems so the
// workflow can hand them to its error callback unchanged.
func decodeProblem(status int, body []byte) error {
	p := &Problem{Problem: problems.NewStatusProblem(status)}
	if err := json.Unmarshal(body, p); err != nil {
		p.Detail = strings.TrimSpace(string(body))
	}
	if p.Status == 0 {
		p.Status = status
	}
	if len(p.Errors) > 0 {
		return p.Errors
	}
	return p
}

// IsStatus reports whether err is a Problem with the given status.
func IsStatus(err error, status int) bool {
	var p *Problem
	return errors.As(err, &p) && p.Status == status
}
