package cognitive

import (
	"strings"
	"sync"

	"github.com/harunnryd/scout/internal/model/contract"
	"github.com/harunnryd/scout/internal/schema"
)

// CognitiveContext holds the state of one run.
type CognitiveContext struct {
	// Static Configuration (Injected at start)
	SystemPrompt   string
	AvailableTools []contract.ToolDef
	Output         *schema.Output

	// Dynamic State (Updated during loop)
	History *History

	// Token Management
	TokenUsage int
}

func NewCognitiveContext(opts ...ExecutionOption) *CognitiveContext {
	c := &CognitiveContext{History: &History{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// History is the append-only conversation state of a run.
type History struct {
	mu       sync.RWMutex
	messages []contract.Message
}

func (h *History) Append(msgs ...contract.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Messages returns a copy of the conversation.
func (h *History) Messages() []contract.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]contract.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// LastAssistantText returns the most recent free-text assistant message,
// skipping structured emissions and tool-call turns.
func (h *History) LastAssistantText() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.messages) - 1; i >= 0; i-- {
		msg := h.messages[i]
		if msg.Role != "assistant" || msg.Structured || len(msg.ToolCalls) > 0 {
			continue
		}
		if strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}
	return ""
}
