// Package delivery hands the result of a finished run to storage and
// notification channels. Delivery is all-or-nothing: a failed run pushes no
// records.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/schema"
)

const (
	ResponseKey   = "response.md"
	ResponseField = "response"
)

type KeyValueStore interface {
	SetRecord(ctx context.Context, key string, value []byte, contentType string) error
	RecordURL(key string) string
}

type Dataset interface {
	PushItems(ctx context.Context, items []map[string]interface{}) error
}

type StatusReporter interface {
	SetStatusMessage(ctx context.Context, message string, terminal bool) error
}

// Notifier announces the outcome of a run. Failures are logged, never fatal.
type Notifier interface {
	Name() string
	Send(ctx context.Context, content string) error
}

// Deliverer is what the run driver hands results to.
type Deliverer interface {
	Deliver(ctx context.Context, payload Payload) (string, error)
	Fail(ctx context.Context, reason error) error
}

type Payload struct {
	RunID    string
	Markdown string
	Records  []map[string]interface{}
}

// BuildRecords turns every answer item into a record holding the declared
// record fields plus the full markdown answer. Absent fields are kept as null.
func BuildRecords(output *schema.Output, answer *schema.Answer, markdown string) []map[string]interface{} {
	if answer == nil {
		return []map[string]interface{}{{ResponseField: markdown}}
	}

	records := make([]map[string]interface{}, 0, len(answer.Items))
	for _, item := range answer.Items {
		record := make(map[string]interface{}, len(output.RecordFields)+1)
		if len(output.RecordFields) == 0 {
			for k, v := range item {
				record[k] = v
			}
		}
		for _, field := range output.RecordFields {
			record[field] = item[field]
		}
		record[ResponseField] = markdown
		records = append(records, record)
	}
	return records
}

// Sink delivers to a key-value store, a dataset and a status reporter, which
// may all be the same backend.
type Sink struct {
	KV        KeyValueStore
	Dataset   Dataset
	Status    StatusReporter
	Notifiers []Notifier
}

// Deliver stores the markdown answer, pushes the records and marks the run
// successful. It returns the URL of the stored answer.
func (s *Sink) Deliver(ctx context.Context, payload Payload) (string, error) {
	runID := logger.GetRunID(ctx)

	if err := s.KV.SetRecord(ctx, ResponseKey, []byte(payload.Markdown), "text/markdown"); err != nil {
		return "", scoutErrors.Wrap(err, "store markdown answer")
	}
	slog.Info("Saved the answer into the key-value store", "run_id", runID, "key", ResponseKey)

	if err := s.Dataset.PushItems(ctx, payload.Records); err != nil {
		return "", scoutErrors.Wrap(err, "push records")
	}
	slog.Info("Pushed records into the dataset", "run_id", runID, "records", len(payload.Records))

	answerURL := s.KV.RecordURL(ResponseKey)
	status := fmt.Sprintf("Success! Please open %s to read the recommendation!", answerURL)
	if err := s.Status.SetStatusMessage(ctx, status, true); err != nil {
		return answerURL, scoutErrors.Wrap(err, "set status message")
	}

	s.notify(ctx, fmt.Sprintf("%s\n\n%s", status, payload.Markdown))
	return answerURL, nil
}

// Fail marks the run as failed with a message naming the reason.
func (s *Sink) Fail(ctx context.Context, reason error) error {
	message := FailureMessage(reason)
	slog.Error(message, "run_id", logger.GetRunID(ctx), "error", reason)

	err := s.Status.SetStatusMessage(ctx, message, true)
	s.notify(ctx, message)
	if err != nil {
		return scoutErrors.Wrap(err, "set failure status")
	}
	return nil
}

func (s *Sink) notify(ctx context.Context, content string) {
	for _, n := range s.Notifiers {
		if err := n.Send(ctx, content); err != nil {
			slog.Warn("Notification failed", "run_id", logger.GetRunID(ctx), "notifier", n.Name(), "error", err)
		}
	}
}

// FailureMessage is the user-visible status for a failed run.
func FailureMessage(reason error) string {
	switch {
	case reason == nil:
		return "Run failed!"
	case errors.Is(reason, scoutErrors.ErrMissingStructuredAnswer):
		return "Failed to get a structured response from the agent!"
	case errors.Is(reason, scoutErrors.ErrMissingFinalMessage):
		return "Failed to get a response from the agent!"
	case errors.Is(reason, scoutErrors.ErrMissingMessages):
		return "Failed to get messages from the agent!"
	case errors.Is(reason, scoutErrors.ErrMissingUsage):
		return "Failed to calculate the total number of tokens used!"
	}

	category := scoutErrors.NewDefaultErrorMapper().Category(reason)
	return fmt.Sprintf("Run failed (%s): %v", category, reason)
}
