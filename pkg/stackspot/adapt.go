package stackspot

import (
	"fmt"

	"github.com/google/uuid"
)

// toCompletion maps a terminal execution status into the chat-completion
// shape the host expects. A failed execution becomes a KindExecution error
// carrying the vendor's own detail; a succeeded execution with no content is
// a malformed response, never an empty success.
func (c *Client) toCompletion(model string, status *executionStatus) (*ChatCompletion, error) {
	if status.Status == statusFailed {
		msg := "execution failed"
		var code string
		if status.Error != nil {
			if status.Error.Message != "" {
				msg = status.Error.Message
			}
			code = status.Error.Code
		}
		return nil, &Error{
			Kind:    KindExecution,
			Message: msg,
			Body:    code,
		}
	}

	if status.Result == nil || status.Result.Content == "" {
		return nil, &Error{
			Kind:    KindMalformed,
			Message: "succeeded execution carried no content",
		}
	}
	result := status.Result

	id := result.ID
	if id == "" {
		id = fmt.Sprintf("ssp-%s", uuid.NewString())
	}
	if result.Model != "" {
		model = result.Model
	}

	// Usage counters default to zero when the vendor omits them.
	var usage Usage
	if m := result.Metadata; m != nil {
		usage.PromptTokens = m.PromptTokens
		usage.CompletionTokens = m.CompletionTokens
		usage.TotalTokens = m.TotalTokens
		if usage.TotalTokens == 0 {
			usage.TotalTokens = m.PromptTokens + m.CompletionTokens
		}
	}

	return &ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: c.now().Unix(),
		Model:   model,
		Choices: []Choice{{
			Index:        0,
			Message:      Message{Role: "assistant", Content: result.Content},
			FinishReason: "stop",
		}},
		Usage: usage,
	}, nil
}
