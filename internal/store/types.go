package store

import "time"

// --- Status (key_value_store/STATUS) ---

type Status struct {
	Message   string    `json:"message"`
	Terminal  bool      `json:"terminal"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Transcript (transcript.jsonl) ---

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type TranscriptEntry struct {
	ID         string         `json:"id"` // ULID
	Timestamp  time.Time      `json:"ts"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Name       string         `json:"name,omitempty"`         // For tools
	ToolCallID string         `json:"tool_call_id,omitempty"` // Link tool result to call
	Metadata   map[string]any `json:"meta,omitempty"`         // Tokens, tool calls
}
