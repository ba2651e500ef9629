package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
)

// MaxExperts bounds a single fan-out.
const MaxExperts = 8

var ErrTooManyExperts = fmt.Errorf("at most %d experts can be asked at once", MaxExperts)

// Answerer answers a conversation as one expert.
type Answerer interface {
	Answer(ctx context.Context, botID string, messages []chat.Message) (string, error)
}

// Service fans one conversation out to several experts.
type Service struct {
	log      *logger.Logger
	answerer Answerer
}

func NewService(log *logger.Logger, answerer Answerer) *Service {
	return &Service{log: log.With("service", "FanOut"), answerer: answerer}
}

// Targets normalizes the requested expert ids: blanks and duplicates are dropped
// and an empty list means the default expert.
func Targets(botIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(botIDs))
	out := make([]string, 0, len(botIDs))
	for _, id := range botIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		out = append(out, expert.DefaultID)
	}
	if len(out) > MaxExperts {
		return nil, ErrTooManyExperts
	}
	return out, nil
}

// Ask answers the conversation with every expert and returns the results in
// the order of botIDs. Only request-level validation errors are returned.
func (s *Service) Ask(ctx context.Context, botIDs []string, messages []chat.Message) ([]chat.ExpertAnswer, error) {
	targets, err := s.validate(botIDs, messages)
	if err != nil {
		return nil, err
	}

	answers := make([]chat.ExpertAnswer, len(targets))
	s.run(ctx, targets, messages, func(i int, answer chat.ExpertAnswer) {
		answers[i] = answer
	})
	return answers, nil
}

// AskEach is Ask that hands each answer to onAnswer as soon as it is ready.
// onAnswer is never called concurrently.
func (s *Service) AskEach(ctx context.Context, botIDs []string, messages []chat.Message, onAnswer func(chat.ExpertAnswer)) error {
	targets, err := s.validate(botIDs, messages)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	s.run(ctx, targets, messages, func(_ int, answer chat.ExpertAnswer) {
		mu.Lock()
		defer mu.Unlock()
		onAnswer(answer)
	})
	return nil
}

func (s *Service) validate(botIDs []string, messages []chat.Message) ([]string, error) {
	targets, err := Targets(botIDs)
	if err != nil {
		return nil, err
	}
	if _, err := rag.LastUserMessage(messages); err != nil {
		return nil, err
	}
	return targets, nil
}

func (s *Service) run(ctx context.Context, targets []string, messages []chat.Message, deliver func(int, chat.ExpertAnswer)) {
	// Workers never return an error, so one expert failing leaves the others running.
	var g errgroup.Group
	g.SetLimit(MaxExperts)

	for i, botID := range targets {
		g.Go(func() error {
			deliver(i, s.askOne(ctx, botID, messages))
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) askOne(ctx context.Context, botID string, messages []chat.Message) (answer chat.ExpertAnswer) {
	answer.BotID = botID
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("expert answer panicked", "bot_id", botID, "panic", r)
			answer = chat.ExpertAnswer{BotID: botID, Text: "Error: internal error", Error: true}
		}
	}()

	text, err := s.answerer.Answer(ctx, botID, messages)
	if err != nil {
		s.log.Warn("expert answer failed", "bot_id", botID, "error", err)
		answer.Text = "Error: " + ErrorDetail(err)
		answer.Error = true
		return answer
	}
	answer.Text = text
	return answer
}

// ErrorDetail renders err for display next to an expert's answer.
func ErrorDetail(err error) string {
	var cerr *ai.CompletionError
	if errors.As(err, &cerr) {
		return cerr.Detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
