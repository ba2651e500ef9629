package chat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	modelchat "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	chat "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
)

type answererFunc func(ctx context.Context, botID string, messages []modelchat.Message) (string, error)

func (f answererFunc) Answer(ctx context.Context, botID string, messages []modelchat.Message) (string, error) {
	return f(ctx, botID, messages)
}

var question = []modelchat.Message{{Role: modelchat.RoleUser, Content: "where are rates going?"}}

func TestAskIsolatesFailures(t *testing.T) {
	svc := chat.NewService(logger.NewNop(), answererFunc(func(_ context.Context, botID string, _ []modelchat.Message) (string, error) {
		switch botID {
		case "broken":
			return "", &ai.CompletionError{Detail: "model overloaded"}
		case "panicky":
			panic("boom")
		}
		return "answer from " + botID, nil
	}))

	answers, err := svc.Ask(context.Background(), []string{"empire", "broken", "panicky", "lyn_alden"}, question)
	if err != nil {
		t.Fatalf("Ask err: %v", err)
	}
	if len(answers) != 4 {
		t.Fatalf("expected 4 answers, got %d", len(answers))
	}

	want := []modelchat.ExpertAnswer{
		{BotID: "empire", Text: "answer from empire"},
		{BotID: "broken", Text: "Error: model overloaded", Error: true},
		{BotID: "panicky", Text: "Error: internal error", Error: true},
		{BotID: "lyn_alden", Text: "answer from lyn_alden"},
	}
	for i := range want {
		if answers[i] != want[i] {
			t.Fatalf("answer %d: got %+v want %+v", i, answers[i], want[i])
		}
	}
}

func TestAskRunsConcurrently(t *testing.T) {
	var inFlight, peak int32
	svc := chat.NewService(logger.NewNop(), answererFunc(func(context.Context, string, []modelchat.Message) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	}))

	if _, err := svc.Ask(context.Background(), []string{"a", "b", "c"}, question); err != nil {
		t.Fatalf("Ask err: %v", err)
	}
	if atomic.LoadInt32(&peak) < 2 {
		t.Fatalf("expected experts to be asked concurrently, peak=%d", peak)
	}
}

func TestAskValidation(t *testing.T) {
	svc := chat.NewService(logger.NewNop(), answererFunc(func(context.Context, string, []modelchat.Message) (string, error) {
		t.Fatal("answerer must not be called")
		return "", nil
	}))

	if _, err := svc.Ask(context.Background(), []string{"a"}, nil); !errors.Is(err, rag.ErrNoUserMessage) {
		t.Fatalf("expected ErrNoUserMessage, got %v", err)
	}
	tooMany := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}
	if _, err := svc.Ask(context.Background(), tooMany, question); !errors.Is(err, chat.ErrTooManyExperts) {
		t.Fatalf("expected ErrTooManyExperts, got %v", err)
	}
}

func TestTargets(t *testing.T) {
	got, err := chat.Targets([]string{" ", "a", "a", "b"})
	if err != nil || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected targets %v, %v", got, err)
	}
	got, err = chat.Targets(nil)
	if err != nil || len(got) != 1 || got[0] != "empire" {
		t.Fatalf("expected default expert, got %v, %v", got, err)
	}
}

func TestAskEachDeliversEveryAnswer(t *testing.T) {
	svc := chat.NewService(logger.NewNop(), answererFunc(func(_ context.Context, botID string, _ []modelchat.Message) (string, error) {
		return botID, nil
	}))

	seen := map[string]bool{}
	err := svc.AskEach(context.Background(), []string{"a", "b"}, question, func(a modelchat.ExpertAnswer) {
		seen[a.BotID] = true
	})
	if err != nil {
		t.Fatalf("AskEach err: %v", err)
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("missing answers: %v", seen)
	}
}
