package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// Client talks to the field-service REST backend. It implements
// engine.Backend and maps failures onto the engine's error taxonomy:
// connection failures and timeouts become retryable offline transport
// errors, 5xx retryable, 4xx permanent.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ engine.Backend = (*Client)(nil)

// NewClient creates a Client for the given base URL. A zero timeout keeps
// the transport default.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping verifies the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// GetJob fetches the full job aggregate.
func (c *Client) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	var dto jobDTO
	if err := c.call(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &dto); err != nil {
		return nil, err
	}
	return dto.toJob(time.Now()), nil
}

func (c *Client) StartJob(ctx context.Context, jobID string, signer job.Signer) error {
	return c.jobAction(ctx, jobID, "start", signer)
}

func (c *Client) PauseJob(ctx context.Context, jobID string, signer job.Signer) error {
	return c.jobAction(ctx, jobID, "pause", signer)
}

func (c *Client) ResumeJob(ctx context.Context, jobID string, signer job.Signer) error {
	return c.jobAction(ctx, jobID, "resume", signer)
}

func (c *Client) CompleteJob(ctx context.Context, jobID string, signer job.Signer) error {
	return c.jobAction(ctx, jobID, "complete", signer)
}

func (c *Client) jobAction(ctx context.Context, jobID, action string, signer job.Signer) error {
	path := "/jobs/" + url.PathEscape(jobID) + "/" + action
	return c.call(ctx, http.MethodPost, path, signerBody(signer), nil)
}

// ToggleLineItem sets a line item's completion to the requested value.
func (c *Client) ToggleLineItem(ctx context.Context, jobID, itemID string, completed bool) error {
	path := "/jobs/" + url.PathEscape(jobID) + "/line-items/" + url.PathEscape(itemID) + "/toggle"
	return c.call(ctx, http.MethodPost, path, map[string]any{"completed": completed}, nil)
}

// CompleteDoor signs off a door.
func (c *Client) CompleteDoor(ctx context.Context, jobID, doorID string, signer job.Signer) error {
	path := "/jobs/" + url.PathEscape(jobID) + "/doors/" + url.PathEscape(doorID) + "/complete"
	return c.call(ctx, http.MethodPost, path, signerBody(signer), nil)
}

// TimeSummary fetches the authoritative time-tracking record.
func (c *Client) TimeSummary(ctx context.Context, jobID string) (*engine.TimeSummary, error) {
	var summary engine.TimeSummary
	path := "/jobs/" + url.PathEscape(jobID) + "/time-summary"
	if err := c.call(ctx, http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func signerBody(signer job.Signer) map[string]any {
	body := map[string]any{"signer_kind": string(signer.Kind)}
	if signer.Kind == job.SignerOnSite {
		body["signer_name"] = signer.Name
		body["signer_title"] = signer.Title
		body["signature"] = signer.Signature // base64 via encoding/json
	}
	return body
}

// call performs one JSON round trip. op in errors is "<METHOD> <path>".
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &engine.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return &engine.TransportError{Op: op, StatusCode: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
