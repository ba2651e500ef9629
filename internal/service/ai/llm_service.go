package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/config"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
)

var tracer = otel.Tracer("github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai")

// CompletionError reports a failed completion. Detail is safe to show to users.
type CompletionError struct {
	Detail string
	Err    error
}

func (e *CompletionError) Error() string {
	return "completion failed: " + e.Detail
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Options tune the completion client.
type Options struct {
	Model      string
	MaxRetries int
	// Secrets are scrubbed from error details.
	Secrets []string
}

// Service wraps the hosted chat completion model.
type Service struct {
	log        *logger.Logger
	chatModel  model.BaseChatModel
	model      string
	maxRetries int
	secrets    []string
	newBackOff func() backoff.BackOff
}

// NewService creates the completion client from configuration.
func NewService(ctx context.Context, log *logger.Logger, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewServiceWithModel(log, chatModel, Options{
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
		Secrets:    []string{cfg.APIKey, cfg.AccessKey, cfg.SecretKey},
	}), nil
}

// NewServiceWithModel wraps an existing chat model.
func NewServiceWithModel(log *logger.Logger, chatModel model.BaseChatModel, opts Options) *Service {
	secrets := make([]string, 0, len(opts.Secrets))
	for _, s := range opts.Secrets {
		if strings.TrimSpace(s) != "" {
			secrets = append(secrets, s)
		}
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Service{
		log:        log.With("service", "Completion"),
		chatModel:  chatModel,
		model:      opts.Model,
		maxRetries: opts.MaxRetries,
		secrets:    secrets,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 4 * time.Second
			return b
		},
	}
}

// ModelName returns the configured model identifier.
func (s *Service) ModelName() string {
	return s.model
}

// Complete requests a single non-streaming completion and returns its text.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.complete")
	span.SetAttributes(attribute.String("model", s.model), attribute.Int("messages", len(messages)))
	defer span.End()

	attempts := 0
	operation := func() (*schema.Message, error) {
		attempts++
		resp, err := s.chatModel.Generate(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp == nil {
			return nil, backoff.Permanent(errors.New("empty response from model"))
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.maxRetries+1)),
	)
	if err != nil {
		cerr := s.wrap(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, "completion failed")
		s.log.Debug("completion attempts exhausted", "model", s.model, "attempts", attempts, "error", cerr.Detail)
		return "", cerr
	}

	s.log.Debug("completion generated", "model", s.model, "attempts", attempts, "length", len(resp.Content))
	return resp.Content, nil
}

// Stream requests a streaming completion. Chunks carry incremental content and
// a failing stream yields a *CompletionError.
func (s *Service) Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	upstream, err := s.chatModel.Stream(ctx, messages)
	if err != nil {
		cerr := s.wrap(err)
		s.log.Debug("completion stream failed", "model", s.model, "error", cerr.Detail)
		return nil, cerr
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go func() {
		defer upstream.Close()
		defer sw.Close()
		for {
			chunk, err := upstream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				cerr := s.wrap(err)
				s.log.Debug("completion stream broke", "model", s.model, "error", cerr.Detail)
				sw.Send(nil, cerr)
				return
			}
			if closed := sw.Send(chunk, nil); closed {
				return
			}
		}
	}()
	return sr, nil
}

// WrapError converts an upstream error into a CompletionError with a sanitized detail.
func (s *Service) WrapError(err error) *CompletionError {
	return s.wrap(err)
}

func (s *Service) wrap(err error) *CompletionError {
	var cerr *CompletionError
	if errors.As(err, &cerr) {
		return cerr
	}
	return &CompletionError{Detail: s.sanitize(err.Error()), Err: err}
}

var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

func (s *Service) sanitize(msg string) string {
	for _, secret := range s.secrets {
		msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
	}
	msg = urlPattern.ReplaceAllString(msg, "[url]")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "Unknown error"
	}
	return msg
}
