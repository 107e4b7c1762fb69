// Package store defines the CompletionStore interface for ssbridge persistence.
package store

import "github.com/ssbridge/ssbridge/pkg/model"

// CompletionStore provides persistence for completions and their events.
type CompletionStore interface {
	CreateCompletion(c *model.Completion) error
	GetCompletion(id string) (*model.Completion, error)
	ListCompletions() ([]*model.Completion, error)
	UpdateCompletion(c *model.Completion) error
	AddEvent(event *model.Event) error
	GetEvents(completionID string, afterID int64) ([]*model.Event, error)
	Close() error
}
