package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/llm"
)

type fakeResponder struct {
	err  error
	seen [][]llm.Message
}

func (f *fakeResponder) Converse(_ context.Context, history []llm.Message) (string, error) {
	f.seen = append(f.seen, history)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("reply %d", len(history)), nil
}

func TestSendAppendsBothTurns(t *testing.T) {
	h := NewHistory()
	r := &fakeResponder{}

	got, err := h.Send(context.Background(), r, "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "reply 1"},
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v want %+v", got, want)
	}

	got, err = h.Send(context.Background(), r, "more")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got) != 4 || got[3].Content != "reply 3" {
		t.Fatalf("unexpected history %+v", got)
	}
	if len(r.seen[1]) != 3 {
		t.Fatalf("responder should see full history, saw %d", len(r.seen[1]))
	}
}

func TestSendRollsBackOnFailure(t *testing.T) {
	h := NewHistory()
	h.Send(context.Background(), &fakeResponder{}, "first")

	_, err := h.Send(context.Background(), &fakeResponder{err: errors.New("upstream down")}, "second")
	if !errors.Is(err, apperr.ErrRemoteService) {
		t.Fatalf("expected ErrRemoteService, got %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("failed turn should leave history untouched, got %d messages", h.Len())
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	h := NewHistory()
	r := &fakeResponder{}

	if _, err := h.Send(context.Background(), r, "   "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(r.seen) != 0 || h.Len() != 0 {
		t.Fatal("empty message must not reach the responder")
	}
}

func TestMessagesIsACopy(t *testing.T) {
	h := NewHistory()
	h.Send(context.Background(), &fakeResponder{}, "hi")

	msgs := h.Messages()
	msgs[0].Content = "changed"
	if h.Messages()[0].Content != "hi" {
		t.Fatal("Messages must return a copy")
	}

	h.Reset()
	if h.Len() != 0 {
		t.Fatal("Reset should clear the history")
	}
}

type countingResponder struct {
	mu    sync.Mutex
	calls int
}

func (c *countingResponder) Converse(_ context.Context, history []llm.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "ok", nil
}

func TestConcurrentSends(t *testing.T) {
	h := NewHistory()
	r := &countingResponder{}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Send(context.Background(), r, fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	msgs := h.Messages()
	if len(msgs) != 40 {
		t.Fatalf("expected 40 messages, got %d", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != llm.RoleUser || msgs[i+1].Role != llm.RoleAssistant {
			t.Fatalf("turns interleaved at %d: %+v", i, msgs[i:i+2])
		}
	}
}
