package storyapi

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
	"strings"
	"time"

	"github.com/google/uuid"

	"storyteller/internal/config"
	"storyteller/internal/jobs"
	"storyteller/internal/logging"
	"storyteller/internal/services"
)

// HTTPDoer is the subset of *http.Client used by Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient HTTPDoer
	Logger     *slog.Logger
}

// Client talks to the story generation service.
type Client struct {
	base   *url.URL
	token  string
	http   HTTPDoer
	logger *slog.Logger
}

// New constructs a Client. BaseURL must be absolute.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("story api: base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("story api: parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("story api: base url %q is not absolute", raw)
	}
	base.RawQuery = ""
	base.Fragment = ""

	doer := opts.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		base:   base,
		token:  strings.TrimSpace(opts.Token),
		http:   doer,
		logger: logging.NewComponentLogger(opts.Logger, "story-api"),
	}, nil
}

// NewFromConfig constructs a Client from application configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrUnavailable
	}
	return New(Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.APITimeout(),
		Logger:  logger,
	})
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// CreateJob submits a generation request.
func (c *Client) CreateJob(ctx context.Context, req jobs.Request) (jobs.Created, error) {
	if c == nil {
		return jobs.Created{}, ErrUnavailable
	}
	body := createRequest{
		Theme:         req.Theme,
		CharacterName: req.CharacterName,
		AgeGroup:      req.AgeGroup,
	}
	var resp createResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint(nil, "jobs"), body, &resp); err != nil {
		return jobs.Created{}, err
	}
	stage, err := jobs.ParseStage(resp.Stage)
	if err != nil {
		stage = jobs.StagePending
	}
	return jobs.Created{ID: resp.JobID, Stage: stage}, nil
}

// JobStatus fetches the current status of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (jobs.Status, error) {
	if c == nil {
		return jobs.Status{}, ErrUnavailable
	}
	var resp statusResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(nil, "jobs", jobID, "status"), nil, &resp); err != nil {
		return jobs.Status{}, err
	}
	stage, err := jobs.ParseStage(resp.Stage)
	if err != nil {
		return jobs.Status{}, fmt.Errorf("decode job status: %w", err)
	}
	status := jobs.Status{Stage: stage, Progress: resp.ProgressPercentage}
	if resp.Result != nil {
		status.Result = &jobs.Result{
			AudioURL:        resp.Result.AudioURL,
			Title:           resp.Result.Title,
			DurationSeconds: resp.Result.DurationSeconds,
			WordCount:       resp.Result.WordCount,
		}
	}
	if resp.Error != nil {
		status.Error = *resp.Error
	}
	return status, nil
}

// ListJobs returns one page of the remote history, newest first.
func (c *Client) ListJobs(ctx context.Context, skip, limit int) (ListResponse, error) {
	if c == nil {
		return ListResponse{}, ErrUnavailable
	}
	query := url.Values{}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp ListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint(query, "jobs"), nil, &resp); err != nil {
		return ListResponse{}, err
	}
	return resp, nil
}

// DeleteJob removes a job and its audio from the service.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	if c == nil {
		return ErrUnavailable
	}
	return c.doJSON(ctx, http.MethodDelete, c.endpoint(nil, "jobs", jobID), nil, nil)
}

// DownloadURL returns the dedicated download endpoint for a job.
func (c *Client) DownloadURL(jobID string) string {
	return c.endpoint(nil, "jobs", jobID, "download")
}

func (c *Client) endpoint(query url.Values, elems ...string) string {
	u := c.base.JoinPath(elems...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := c.decorate(ctx, req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("story api request",
		logging.String("method", method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldCorrelationID, requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decorate sets auth and correlation headers and returns the request id.
func (c *Client) decorate(ctx context.Context, req *http.Request) string {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	return requestID
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Detail = body.detailText()
	}
	if apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}

var _ jobs.API = (*Client)(nil)
