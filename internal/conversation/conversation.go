// Package conversation keeps the shared chat history used by the
// conversation endpoints.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/llm"
)

// Responder produces the assistant reply for a full history.
// *llm.Client implements it.
type Responder interface {
	Converse(ctx context.Context, history []llm.Message) (string, error)
}

// History is an append-only, mutex-guarded conversation log.
type History struct {
	mu       sync.Mutex
	messages []llm.Message
}

func NewHistory() *History {
	return &History{}
}

// Messages returns a copy of the log.
func (h *History) Messages() []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Reset clears the log.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Send appends the user message, asks r for a reply with the whole history
// and appends the reply. Turns are serialised so replies see a consistent
// history. On failure the user message is removed again.
func (h *History) Send(ctx context.Context, r Responder, message string) ([]llm.Message, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message is required: %w", apperr.ErrInvalidInput)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, llm.Message{Role: llm.RoleUser, Content: message})

	snapshot := make([]llm.Message, len(h.messages))
	copy(snapshot, h.messages)

	reply, err := r.Converse(ctx, snapshot)
	if err != nil {
		h.messages = h.messages[:len(h.messages)-1]
		if !errors.Is(err, apperr.ErrRemoteService) {
			err = fmt.Errorf("%v: %w", err, apperr.ErrRemoteService)
		}
		return nil, err
	}

	h.messages = append(h.messages, llm.Message{Role: llm.RoleAssistant, Content: reply})

	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out, nil
}
