// Package server provides the ssbridge HTTP API: an OpenAI-compatible
// chat-completion surface backed by the StackSpot provider client, plus
// completion history and progress event endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ssbridge/ssbridge/pkg/eventbus"
	"github.com/ssbridge/ssbridge/pkg/model"
	"github.com/ssbridge/ssbridge/pkg/stackspot"
	"github.com/ssbridge/ssbridge/pkg/store"
)

// Provider is the completion backend. *stackspot.Client implements it.
type Provider interface {
	Complete(ctx context.Context, req stackspot.ChatRequest, opts ...stackspot.CallOption) (*stackspot.ChatCompletion, error)
}

// Models advertised on /v1/models. Whether "stackspot-ai" aliases
// "stackspot-ai-code" is the vendor's business; names pass through verbatim.
var modelIDs = []string{"stackspot-ai", "stackspot-ai-chat", "stackspot-ai-code"}

// Server is the ssbridge HTTP API server.
type Server struct {
	provider Provider
	store    store.CompletionStore
	bus      eventbus.Bus
	router   chi.Router
}

// New creates a Server around a provider, store, and event bus.
func New(provider Provider, st store.CompletionStore, bus eventbus.Bus) *Server {
	s := &Server{
		provider: provider,
		store:    st,
		bus:      bus,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat/completions", s.handleChatCompletions)
		r.Get("/models", s.handleModels)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleHistoryItem)
		r.Get("/history/{id}/events", s.handleHistoryEvents)
		r.Get("/history/{id}/events/stream", s.handleHistoryEventStream)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	entries := make([]modelEntry, 0, len(modelIDs))
	for _, id := range modelIDs {
		entries = append(entries, modelEntry{ID: id, Object: "model", OwnedBy: "stackspot"})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data":   entries,
	})
}

// handleChatCompletions accepts an OpenAI-shaped chat request, runs it
// through the provider (token, submit, poll, adapt), and answers either with
// a chat-completion object or, for stream=true, with the finished message
// replayed as SSE chunks. The vendor surface is polled, never streamed.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req stackspot.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("decoding request: %v", err))
		return
	}

	now := time.Now().UTC()
	rec := &model.Completion{
		ID:        uuid.NewString()[:8],
		Model:     req.Model,
		Prompt:    previewPrompt(req.Messages),
		Status:    model.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Model == "" {
		rec.Model = stackspot.DefaultModel
	}
	if err := s.store.CreateCompletion(rec); err != nil {
		log.Printf("recording completion %s failed: %v", rec.ID, err)
	}
	s.recordEvent(rec.ID, "status", string(model.StatusRunning))

	started := time.Now()
	completion, err := s.provider.Complete(r.Context(), req,
		stackspot.WithProgress(func(p stackspot.PollProgress) {
			rec.ExecutionID = p.ExecutionID
			data, _ := json.Marshal(p)
			s.recordEvent(rec.ID, "poll", string(data))
		}),
	)
	rec.DurationMS = time.Since(started).Milliseconds()

	if err != nil {
		rec.Status = model.StatusError
		rec.Error = err.Error()
		s.finishRecord(rec, "error", rec.Error)
		writeProviderError(w, err)
		return
	}

	rec.Status = model.StatusComplete
	rec.Content = completion.Choices[0].Message.Content
	rec.PromptTokens = completion.Usage.PromptTokens
	rec.CompletionTokens = completion.Usage.CompletionTokens
	s.finishRecord(rec, "done", completion.ID)

	if req.Stream {
		s.streamCompletion(w, completion)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	completions, err := s.store.ListCompletions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if completions == nil {
		completions = []*model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

func (s *Server) handleHistoryItem(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCompletion(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "completion not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleHistoryEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.GetEvents(chi.URLParam(r, "id"), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// handleHistoryEventStream streams a completion's lifecycle events over SSE:
// stored events are replayed first, then the stream follows the event bus live
// until the completion finishes or the client disconnects. While a completion
// is polling, each poll report shows up here as it happens.
func (s *Server) handleHistoryEventStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetCompletion(id); err != nil {
		writeError(w, http.StatusNotFound, "not_found", "completion not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Replay what already happened before following the live feed.
	events, _ := s.store.GetEvents(id, 0)
	var lastID int64
	for _, e := range events {
		writeSSE(w, e)
		lastID = e.ID
	}
	flusher.Flush()

	ch := s.bus.Subscribe(id)
	defer s.bus.Unsubscribe(id, ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			// Skip events already sent during replay.
			if event.ID != 0 && event.ID <= lastID {
				continue
			}
			writeSSE(w, event)
			flusher.Flush()
		}
	}
}

// streamCompletion replays a finished completion as OpenAI-style SSE chunks:
// a role delta, the content, a finish chunk, then [DONE].
func (s *Server) streamCompletion(w http.ResponseWriter, completion *stackspot.ChatCompletion) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusOK, completion)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	type delta struct {
		Role    string `json:"role,omitempty"`
		Content string `json:"content,omitempty"`
	}
	type chunkChoice struct {
		Index        int     `json:"index"`
		Delta        delta   `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	}
	type chunk struct {
		ID      string        `json:"id"`
		Object  string        `json:"object"`
		Created int64         `json:"created"`
		Model   string        `json:"model"`
		Choices []chunkChoice `json:"choices"`
	}

	emit := func(ch chunk) {
		data, err := json.Marshal(ch)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	base := chunk{
		ID:      completion.ID,
		Object:  "chat.completion.chunk",
		Created: completion.Created,
		Model:   completion.Model,
	}

	role := base
	role.Choices = []chunkChoice{{Delta: delta{Role: "assistant"}}}
	emit(role)

	content := base
	content.Choices = []chunkChoice{{Delta: delta{Content: completion.Choices[0].Message.Content}}}
	emit(content)

	stop := "stop"
	finish := base
	finish.Choices = []chunkChoice{{FinishReason: &stop}}
	emit(finish)

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- Record helpers ---

func (s *Server) finishRecord(rec *model.Completion, eventType, data string) {
	if err := s.store.UpdateCompletion(rec); err != nil {
		log.Printf("updating completion %s failed: %v", rec.ID, err)
	}
	s.recordEvent(rec.ID, eventType, data)
}

func (s *Server) recordEvent(completionID, eventType, data string) {
	event := &model.Event{
		CompletionID: completionID,
		Type:         eventType,
		Data:         data,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.AddEvent(event); err != nil {
		log.Printf("recording %s event for %s failed: %v", eventType, completionID, err)
	}
	s.bus.Publish(completionID, event)
}

// --- Response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeSSE(w http.ResponseWriter, event *model.Event) {
	data, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, string(data))
}

// writeProviderError maps a typed provider error onto the OpenAI error
// envelope, preserving the classified kind as the error type.
func writeProviderError(w http.ResponseWriter, err error) {
	errType := "api_error"
	var se *stackspot.Error
	if errors.As(err, &se) {
		errType = string(se.Kind)
	}
	writeError(w, stackspot.HTTPStatus(err), errType, err.Error())
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    errType,
		},
	})
}

// previewPrompt flattens the message contents into a short preview for the
// history listing.
func previewPrompt(messages []stackspot.Message) string {
	var preview string
	for i, m := range messages {
		if i > 0 {
			preview += "\n"
		}
		preview += m.Content
	}
	return truncate(preview, 200)
}

// truncate shortens s to maxLen runes, appending "..." when cut.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
