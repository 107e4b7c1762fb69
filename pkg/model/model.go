// Package model defines the shared data types for ssbridge completions.
package model

import "time"

// Status represents the current state of a completion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Completion is one chat-completion request handled by the bridge, from the
// moment it is accepted until the vendor execution reaches a terminal state.
type Completion struct {
	ID               string    `json:"id"`
	Model            string    `json:"model"`
	Prompt           string    `json:"prompt"`
	Status           Status    `json:"status"`
	ExecutionID      string    `json:"execution_id,omitempty"`
	Content          string    `json:"content,omitempty"`
	Error            string    `json:"error,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	DurationMS       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Event represents a single event in a completion's lifecycle.
type Event struct {
	ID           int64     `json:"id"`
	CompletionID string    `json:"completion_id"`
	Type         string    `json:"type"` // "status", "poll", "error", "done"
	Data         string    `json:"data"`
	CreatedAt    time.Time `json:"created_at"`
}
