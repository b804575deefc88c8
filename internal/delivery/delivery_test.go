package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/schema"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	records  map[string][]byte
	items    []map[string]interface{}
	statuses []string
	terminal bool
	pushErr  error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{records: map[string][]byte{}}
}

func (m *memoryBackend) SetRecord(ctx context.Context, key string, value []byte, contentType string) error {
	m.records[key] = value
	return nil
}

func (m *memoryBackend) RecordURL(key string) string {
	return "mem://" + key
}

func (m *memoryBackend) PushItems(ctx context.Context, items []map[string]interface{}) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.items = append(m.items, items...)
	return nil
}

func (m *memoryBackend) SetStatusMessage(ctx context.Context, message string, terminal bool) error {
	m.statuses = append(m.statuses, message)
	m.terminal = terminal
	return nil
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(ctx context.Context, content string) error {
	n.sent = append(n.sent, content)
	return n.err
}

func newSink(backend *memoryBackend, notifiers ...Notifier) *Sink {
	return &Sink{KV: backend, Dataset: backend, Status: backend, Notifiers: notifiers}
}

func TestBuildRecords(t *testing.T) {
	output := &schema.Output{RecordFields: []string{"title", "brand", "reviewSummary"}}
	answer := &schema.Answer{Items: []schema.Item{
		{"title": "Trail 2", "brand": "REI", "reviewSummary": "Roomy.", "features": []interface{}{"light"}},
		{"title": "Dome", "reviewSummary": "Cheap."},
	}}

	records := BuildRecords(output, answer, "# Tents")
	require.Len(t, records, 2)

	assert.Equal(t, map[string]interface{}{"title": "Trail 2", "brand": "REI", "reviewSummary": "Roomy.", "response": "# Tents"}, records[0])
	assert.Contains(t, records[1], "brand")
	assert.Nil(t, records[1]["brand"])
	for _, r := range records {
		assert.Equal(t, "# Tents", r[ResponseField])
	}
}

func TestBuildRecords_WithoutAnswer(t *testing.T) {
	records := BuildRecords(&schema.Output{}, nil, "plain answer")
	assert.Equal(t, []map[string]interface{}{{"response": "plain answer"}}, records)
}

func TestSinkDeliver(t *testing.T) {
	backend := newMemoryBackend()
	notifier := &recordingNotifier{err: errors.New("offline")}
	sink := newSink(backend, notifier)

	url, err := sink.Deliver(context.Background(), Payload{
		Markdown: "# Tents",
		Records:  []map[string]interface{}{{"title": "Trail 2", "response": "# Tents"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "mem://response.md", url)
	assert.Equal(t, "# Tents", string(backend.records[ResponseKey]))
	assert.Len(t, backend.items, 1)
	require.Len(t, backend.statuses, 1)
	assert.Contains(t, backend.statuses[0], "mem://response.md")
	assert.True(t, backend.terminal)

	// notifier failures are not delivery failures
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "# Tents")
}

func TestSinkDeliver_PushFailureSkipsSuccessStatus(t *testing.T) {
	backend := newMemoryBackend()
	backend.pushErr = errors.New("disk full")

	_, err := newSink(backend).Deliver(context.Background(), Payload{Markdown: "x", Records: []map[string]interface{}{{}}})
	require.Error(t, err)
	assert.Empty(t, backend.statuses)
}

func TestSinkFail(t *testing.T) {
	backend := newMemoryBackend()
	notifier := &recordingNotifier{}

	err := newSink(backend, notifier).Fail(context.Background(), fmt.Errorf("run: %w", scoutErrors.ErrMissingUsage))
	require.NoError(t, err)

	assert.Equal(t, []string{"Failed to calculate the total number of tokens used!"}, backend.statuses)
	assert.Empty(t, backend.items)
	assert.Empty(t, backend.records)
	assert.Len(t, notifier.sent, 1)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Failed to get a structured response from the agent!", FailureMessage(scoutErrors.ErrMissingStructuredAnswer))
	assert.Equal(t, "Failed to get messages from the agent!", FailureMessage(scoutErrors.ErrMissingMessages))
	assert.Equal(t, "Failed to get a response from the agent!", FailureMessage(scoutErrors.ErrMissingFinalMessage))

	msg := FailureMessage(scoutErrors.ToolUnavailable("actor could not start"))
	assert.True(t, strings.HasPrefix(msg, "Run failed (ToolUnavailable)"))
}

func TestSlackNotifier(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "C123", r.FormValue("channel"))
		got = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	notifier := NewSlackNotifier("xoxb-test", "C123", slack.OptionAPIURL(srv.URL+"/"))
	require.NoError(t, notifier.Send(context.Background(), "Success!"))
	assert.Equal(t, "Success!", got)
}

func TestTelegramNotifier(t *testing.T) {
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"scout","username":"scout_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			sent = r.FormValue("text")
			assert.Equal(t, "42", r.FormValue("chat_id"))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("123:abc", 42).WithEndpoint(srv.URL + "/bot%s/%s")
	require.NoError(t, notifier.Send(context.Background(), "Done"))
	assert.Equal(t, "Done", sent)
}

func TestNewNotifiers(t *testing.T) {
	assert.Empty(t, NewNotifiers(config.DeliveryConfig{}))

	notifiers := NewNotifiers(config.DeliveryConfig{
		Slack:    config.SlackConfig{Enabled: true, BotToken: "x", Channel: "C1"},
		Telegram: config.TelegramConfig{Enabled: true, BotToken: "y", ChatID: 1},
	})
	require.Len(t, notifiers, 2)
	assert.Equal(t, "slack", notifiers[0].Name())
	assert.Equal(t, "telegram", notifiers[1].Name())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab…", truncate("abc", 2))
}
