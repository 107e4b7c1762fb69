package stackspot

import "time"

// Message is one entry in a chat-style message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat-style request the host CLI hands to the client.
// It is built fresh per completion call and never mutated.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`

	// ConversationID threads this request into an existing vendor
	// conversation. Optional.
	ConversationID string `json:"-"`
}

// ExecutionHandle identifies one submitted execution. It is created by the
// submitter, consumed by the poller, and discarded once a terminal status is
// observed.
type ExecutionHandle struct {
	ID          string
	SubmittedAt time.Time
}

// Execution status values reported by the vendor's status endpoint.
// Transitions only move forward: pending -> running -> succeeded | failed.
const (
	statusPending   = "pending"
	statusRunning   = "running"
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// executionRequest is the wire shape of a submission body.
type executionRequest struct {
	InputData      string  `json:"input_data"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
}

// executionCreated is the wire shape of a submission response.
type executionCreated struct {
	ExecutionID string `json:"execution_id"`
}

// executionStatus is the wire shape of a status response.
type executionStatus struct {
	Status string           `json:"status"`
	Result *ExecutionResult `json:"result,omitempty"`
	Error  *ExecutionError  `json:"error,omitempty"`
}

// ExecutionResult is the terminal payload of a succeeded execution.
type ExecutionResult struct {
	ID       string          `json:"id,omitempty"`
	Content  string          `json:"content"`
	Model    string          `json:"model,omitempty"`
	Metadata *ExecutionUsage `json:"metadata,omitempty"`
}

// ExecutionUsage carries token-usage counters when the vendor reports them.
type ExecutionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ExecutionError is the vendor-supplied detail of a failed execution.
type ExecutionError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ChatCompletion is the chat-completion-shaped output contract to the host.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one generated alternative in a ChatCompletion.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage holds token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PollProgress describes one poll attempt. The client reports it through the
// WithProgress call option so callers can diagnose slow executions.
type PollProgress struct {
	ExecutionID string        `json:"execution_id"`
	Attempt     int           `json:"attempt"`
	Retries     int           `json:"retries"`
	Elapsed     time.Duration `json:"elapsed"`
	LastStatus  string        `json:"last_status"`
}
