// Package orchestrator drives one recommendation run from input to delivery.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/scout/internal/billing"
	"github.com/harunnryd/scout/internal/cognitive"
	"github.com/harunnryd/scout/internal/config"
	"github.com/harunnryd/scout/internal/delivery"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
	"github.com/harunnryd/scout/internal/logger"
	"github.com/harunnryd/scout/internal/model"
	"github.com/harunnryd/scout/internal/model/contract"
	"github.com/harunnryd/scout/internal/scenario"
	"github.com/harunnryd/scout/internal/schema"
	"github.com/harunnryd/scout/internal/store"
	"github.com/harunnryd/scout/internal/tool"

	"github.com/oklog/ulid/v2"
)

// RunRecord is the outcome of a successful run. It is built once, after the
// loop terminates, and handed to delivery.
type RunRecord struct {
	RunID       string
	Scenario    string
	Model       string
	Answer      *schema.Answer
	Summary     string
	Messages    []contract.Message
	TotalTokens int
	Records     []map[string]interface{}
	Turns       int
	AnswerURL   string
}

// TranscriptWriter persists the conversation of a run. store.Local implements it.
type TranscriptWriter interface {
	WriteTranscript(ctx context.Context, entries []store.TranscriptEntry) error
}

type Driver struct {
	cfg        *config.Config
	router     model.ModelRouter
	collector  scenario.Collector
	charger    billing.Charger
	deliverer  delivery.Deliverer
	transcript TranscriptWriter
}

type Option func(*Driver)

func WithTranscript(w TranscriptWriter) Option {
	return func(d *Driver) {
		d.transcript = w
	}
}

func NewDriver(
	cfg *config.Config,
	router model.ModelRouter,
	collector scenario.Collector,
	charger billing.Charger,
	deliverer delivery.Deliverer,
	opts ...Option,
) *Driver {
	d := &Driver{
		cfg:       cfg,
		router:    router,
		collector: collector,
		charger:   charger,
		deliverer: deliverer,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewRunID returns a sortable unique run id.
func NewRunID() string {
	return ulid.Make().String()
}

// Run validates the input, charges the start event, runs the reasoning loop,
// checks its result, charges the tokens and delivers the records. Any failure
// marks the run failed and delivers nothing.
func (d *Driver) Run(ctx context.Context, in Input) (*RunRecord, error) {
	runID := logger.GetRunID(ctx)
	if runID == "" {
		runID = NewRunID()
		ctx = logger.WithRunID(ctx, runID)
	}

	in = in.WithDefaults(d.cfg)
	if in.Debug {
		logger.SetLevel("debug")
	}

	sc, err := d.validate(in)
	if err != nil {
		return nil, d.fail(ctx, err)
	}

	slog.Info("Run started", "run_id", runID, "scenario", sc.Name, "model", in.ModelName)

	if err := d.charger.ChargeStart(ctx); err != nil {
		return nil, d.fail(ctx, err)
	}

	registry := sc.Registry(scenario.Deps{Collector: d.collector, Apify: d.cfg.Apify})
	engine := d.newEngine(in.ModelName, registry)

	systemPrompt := sc.SystemPrompt
	if custom := strings.TrimSpace(d.cfg.Prompts.Thinker.System); custom != "" {
		systemPrompt = custom
	}

	result, runErr := engine.Run(ctx, in.Query,
		cognitive.WithSystemPrompt(systemPrompt),
		cognitive.WithTools(registry.Definitions()),
		cognitive.WithOutput(sc.Output),
	)
	if result != nil {
		logMessages(ctx, result.Messages)
		d.writeTranscript(ctx, result.Messages)
	}
	if runErr != nil {
		return nil, d.fail(ctx, runErr)
	}

	record, err := buildRecord(result, sc.Output)
	if err != nil {
		return nil, d.fail(ctx, err)
	}
	record.RunID = runID
	record.Scenario = sc.Name
	record.Model = in.ModelName

	if err := d.charger.ChargeTokens(ctx, in.ModelName, record.TotalTokens); err != nil {
		return nil, d.fail(ctx, err)
	}

	record.Records = delivery.BuildRecords(sc.Output, record.Answer, record.Summary)
	answerURL, err := d.deliverer.Deliver(ctx, delivery.Payload{
		RunID:    runID,
		Markdown: record.Summary,
		Records:  record.Records,
	})
	if err != nil {
		return nil, d.fail(ctx, err)
	}
	record.AnswerURL = answerURL

	slog.Info("Run finished", "run_id", runID, "records", len(record.Records), "tokens", record.TotalTokens, "turns", record.Turns)
	return record, nil
}

func (d *Driver) validate(in Input) (*scenario.Scenario, error) {
	if in.Query == "" {
		return nil, scoutErrors.Configuration(`missing "query" attribute in input`)
	}

	sc, ok := scenario.Get(in.Scenario)
	if !ok {
		return nil, scoutErrors.Configuration(fmt.Sprintf("unknown scenario %q (available: %s)", in.Scenario, strings.Join(scenario.Names(), ", ")))
	}

	if !d.router.Supports(in.ModelName) {
		return nil, scoutErrors.Configuration(fmt.Sprintf("model %q is not configured", in.ModelName))
	}
	return sc, nil
}

func (d *Driver) newEngine(modelName string, registry *tool.Registry) *cognitive.DefaultCognitiveEngine {
	llm := NewLLMAdapter(d.router, modelName)
	thinker := cognitive.NewThinker(llm, cognitive.ThinkerPromptConfig{
		Instruction: d.cfg.Prompts.Thinker.Instruction,
		Correction:  d.cfg.Prompts.Thinker.Correction,
	})
	actor := cognitive.NewActor(tool.NewRunner(registry), d.cfg.Agent.MaxParallelTools)
	return cognitive.NewEngine(thinker, actor, d.cfg.Agent.MaxTurns, d.cfg.Agent.TokenBudget)
}

func (d *Driver) fail(ctx context.Context, reason error) error {
	if err := d.deliverer.Fail(ctx, reason); err != nil {
		slog.Warn("Failed to report run failure", "run_id", logger.GetRunID(ctx), "error", err)
	}
	return reason
}

func (d *Driver) writeTranscript(ctx context.Context, messages []contract.Message) {
	if d.transcript == nil {
		return
	}
	if err := d.transcript.WriteTranscript(ctx, transcriptEntries(messages)); err != nil {
		slog.Warn("Failed to write transcript", "run_id", logger.GetRunID(ctx), "error", err)
	}
}

// buildRecord checks a DONE result. Each missing piece is its own failure.
func buildRecord(result *cognitive.Result, output *schema.Output) (*RunRecord, error) {
	if result == nil || result.Answer == nil {
		return nil, scoutErrors.ErrMissingStructuredAnswer
	}
	if err := output.Validate(result.Answer); err != nil {
		return nil, fmt.Errorf("%w: %v", scoutErrors.ErrMissingStructuredAnswer, err)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, scoutErrors.ErrMissingFinalMessage
	}
	if len(result.Messages) == 0 {
		return nil, scoutErrors.ErrMissingMessages
	}

	total, err := TotalTokens(result.Messages)
	if err != nil {
		return nil, err
	}

	return &RunRecord{
		Answer:      result.Answer,
		Summary:     result.Summary,
		Messages:    result.Messages,
		TotalTokens: total,
		Turns:       result.Turns,
	}, nil
}

// TotalTokens sums the usage of every assistant message. A message without
// usage, or a zero total, makes the figure uncomputable.
func TotalTokens(messages []contract.Message) (int, error) {
	total := 0
	for i, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		if msg.Usage == nil {
			return 0, fmt.Errorf("%w: assistant message %d has no usage", scoutErrors.ErrMissingUsage, i)
		}
		total += msg.Usage.Total()
	}
	if total <= 0 {
		return 0, scoutErrors.ErrMissingUsage
	}
	return total, nil
}

func logMessages(ctx context.Context, messages []contract.Message) {
	runID := logger.GetRunID(ctx)
	for _, msg := range messages {
		switch {
		case len(msg.ToolCalls) > 0:
			for _, tc := range msg.ToolCalls {
				slog.Debug("Tool call", "run_id", runID, "tool", tc.Name, "args", tc.Input)
			}
		case msg.Role == "tool":
			slog.Debug("Tool result", "run_id", runID, "tool", msg.Name, "content", msg.Content)
		case msg.Role == "assistant":
			slog.Debug("Assistant message", "run_id", runID, "structured", msg.Structured, "content", msg.Content)
		}
	}
}

func transcriptEntries(messages []contract.Message) []store.TranscriptEntry {
	now := time.Now().UTC()
	entries := make([]store.TranscriptEntry, 0, len(messages))
	for _, msg := range messages {
		entry := store.TranscriptEntry{
			ID:         ulid.Make().String(),
			Timestamp:  now,
			Role:       store.Role(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		meta := map[string]any{}
		if msg.Usage != nil {
			meta["tokens"] = msg.Usage.Total()
		}
		if len(msg.ToolCalls) > 0 {
			meta["tool_calls"] = msg.ToolCalls
		}
		if msg.Structured {
			meta["structured"] = true
		}
		if len(meta) > 0 {
			entry.Metadata = meta
		}
		entries = append(entries, entry)
	}
	return entries
}
