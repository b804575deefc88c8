// Package apify talks to the Apify v2 REST API: actor runs, datasets,
// key-value store records, status messages and pay-per-event charges.
package apify

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

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
)

const (
	StatusReady     = "READY"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED-OUT"
)

// Run is the subset of an actor run object scout reads.
type Run struct {
	ID                     string `json:"id"`
	ActID                  string `json:"actId"`
	Status                 string `json:"status"`
	StatusMessage          string `json:"statusMessage,omitempty"`
	DefaultDatasetID       string `json:"defaultDatasetId"`
	DefaultKeyValueStoreID string `json:"defaultKeyValueStoreId"`
}

// Terminal reports whether the run has stopped.
func (r *Run) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	waitForFinish time.Duration
	pollInterval  time.Duration

	runID     string
	kvStoreID string
	datasetID string
}

func NewClient(cfg config.ApifyConfig) (*Client, error) {
	timeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultApifyRequestTimeout)
	if err != nil {
		return nil, scoutErrors.Configuration(fmt.Sprintf("apify.request_timeout: %v", err))
	}
	wait, err := config.DurationOrDefault(cfg.WaitForFinish, config.DefaultApifyWaitForFinish)
	if err != nil {
		return nil, scoutErrors.Configuration(fmt.Sprintf("apify.wait_for_finish: %v", err))
	}
	poll, err := config.DurationOrDefault(cfg.PollInterval, config.DefaultApifyPollInterval)
	if err != nil {
		return nil, scoutErrors.Configuration(fmt.Sprintf("apify.poll_interval: %v", err))
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultApifyBaseURL
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout + wait},
		baseURL:       baseURL,
		token:         strings.TrimSpace(cfg.Token),
		waitForFinish: wait,
		pollInterval:  poll,
		runID:         cfg.RunID,
		kvStoreID:     cfg.DefaultKeyValueStoreID,
		datasetID:     cfg.DefaultDatasetID,
	}, nil
}

// Collect runs an actor to completion and returns its dataset items. It is
// the data-collection seam used by scenario tools.
func (c *Client) Collect(ctx context.Context, actorID string, input map[string]interface{}) ([]map[string]interface{}, error) {
	run, err := c.CallActor(ctx, actorID, input)
	if err != nil {
		return nil, err
	}
	return c.DatasetItems(ctx, run.DefaultDatasetID)
}

// CallActor starts an actor run and waits until it reaches a terminal status.
// A run that cannot be started is ErrToolUnavailable; a run that ends without
// succeeding is a transient failure the caller may react to.
func (c *Client) CallActor(ctx context.Context, actorID string, input map[string]interface{}) (*Run, error) {
	runID := logger.GetRunID(ctx)
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, scoutErrors.Configuration("actor id is empty")
	}

	query := url.Values{}
	query.Set("waitForFinish", strconv.Itoa(int(c.waitForFinish.Seconds())))

	var run Run
	path := "/acts/" + actorPath(actorID) + "/runs"
	if err := c.do(ctx, http.MethodPost, path, query, input, &run); err != nil {
		return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("start actor %s", actorID), scoutErrors.ErrToolUnavailable)
	}
	slog.Info("Actor run started", "run_id", runID, "actor", actorID, "actor_run", run.ID, "status", run.Status)

	for !run.Terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		var next Run
		if err := c.do(ctx, http.MethodGet, "/actor-runs/"+url.PathEscape(run.ID), query, nil, &next); err != nil {
			return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("poll actor run %s", run.ID), scoutErrors.ErrToolUnavailable)
		}
		run = next
		slog.Debug("Actor run polled", "run_id", runID, "actor_run", run.ID, "status", run.Status)
	}

	if run.Status != StatusSucceeded {
		return &run, scoutErrors.WrapWithCategory(
			fmt.Errorf("actor %s run %s finished with status %s", actorID, run.ID, run.Status),
			"actor run did not succeed",
			scoutErrors.ErrTransient,
		)
	}
	return &run, nil
}

// DatasetItems lists the clean items of a dataset. An empty dataset is not an error.
func (c *Client) DatasetItems(ctx context.Context, datasetID string) ([]map[string]interface{}, error) {
	if strings.TrimSpace(datasetID) == "" {
		return nil, scoutErrors.ToolUnavailable("actor run has no dataset")
	}

	query := url.Values{}
	query.Set("clean", "true")
	query.Set("format", "json")

	body, err := c.raw(ctx, http.MethodGet, "/datasets/"+url.PathEscape(datasetID)+"/items", query, nil, "")
	if err != nil {
		return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("read dataset %s", datasetID), scoutErrors.ErrToolUnavailable)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("decode dataset %s", datasetID), scoutErrors.ErrToolUnavailable)
	}
	return items, nil
}

// GetRecord reads a record from the run's default key-value store. A missing
// record returns ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, key string) ([]byte, error) {
	body, err := c.raw(ctx, http.MethodGet, c.recordPath(key), nil, nil, "")
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) SetRecord(ctx context.Context, key string, value []byte, contentType string) error {
	_, err := c.raw(ctx, http.MethodPut, c.recordPath(key), nil, value, contentType)
	return err
}

// RecordURL is the public URL of a record in the default key-value store.
func (c *Client) RecordURL(key string) string {
	return c.baseURL + c.recordPath(key)
}

func (c *Client) PushItems(ctx context.Context, items []map[string]interface{}) error {
	if len(items) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/datasets/"+url.PathEscape(c.datasetID)+"/items", nil, items, nil)
}

// SetStatusMessage updates the status message of the current actor run.
func (c *Client) SetStatusMessage(ctx context.Context, message string, terminal bool) error {
	if c.runID == "" {
		return scoutErrors.Configuration("status message requires an actor run id")
	}
	body := map[string]interface{}{
		"statusMessage":           message,
		"isStatusMessageTerminal": terminal,
	}
	return c.do(ctx, http.MethodPut, "/actor-runs/"+url.PathEscape(c.runID), nil, body, nil)
}

// Charge reports a pay-per-event charge for the current actor run.
func (c *Client) Charge(ctx context.Context, eventName string, count int) error {
	if c.runID == "" {
		return scoutErrors.Configuration("charging requires an actor run id")
	}
	body := map[string]interface{}{
		"eventName": eventName,
		"count":     count,
	}
	return c.do(ctx, http.MethodPost, "/actor-runs/"+url.PathEscape(c.runID)+"/charge", nil, body, nil)
}

func (c *Client) recordPath(key string) string {
	return "/key-value-stores/" + url.PathEscape(c.kvStoreID) + "/records/" + url.PathEscape(key)
}

// do sends a JSON body and decodes the "data" field of the response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in interface{}, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return scoutErrors.Wrap(err, "encode request body")
		}
	}

	body, err := c.raw(ctx, method, path, query, payload, "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return scoutErrors.Wrap(err, "decode response")
	}
	if len(env.Data) == 0 {
		return scoutErrors.Internal(fmt.Sprintf("%s %s: response has no data", method, path))
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return scoutErrors.Wrap(err, "decode response data")
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, scoutErrors.WrapWithCategory(err, fmt.Sprintf("%s %s", method, path), scoutErrors.ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scoutErrors.WrapWithCategory(err, "read response body", scoutErrors.ErrTransient)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(method, path, resp.StatusCode, body)
	}
	return body, nil
}

func statusError(method, path string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		msg = env.Error.Message
	}

	err := fmt.Errorf("%s %s: status %d: %s", method, path, status, msg)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", scoutErrors.ErrNotFound, err)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", scoutErrors.ErrTransient, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", scoutErrors.ErrConfiguration, err)
	default:
		return fmt.Errorf("%w: %v", scoutErrors.ErrInvalidArgument, err)
	}
}

// actorPath turns "user/actor" into the "user~actor" form the API expects.
func actorPath(actorID string) string {
	return url.PathEscape(strings.ReplaceAll(actorID, "/", "~"))
}
