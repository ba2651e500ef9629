package rag

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/retrieval"
)

var tracer = otel.Tracer("github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag")

// ContextRetriever fetches passages for a query. Implementations must not fail.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query, namespace string) []retrieval.Chunk
}

// Completer produces model output for a prepared message list.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
	Stream(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// Prepared is a request that passed validation and has its prompt built.
type Prepared struct {
	Expert   expert.Expert
	Query    string
	Chunks   []retrieval.Chunk
	Messages []*schema.Message
}

// Pipeline answers a conversation on behalf of one expert.
type Pipeline struct {
	log       *logger.Logger
	experts   expert.Store
	retriever ContextRetriever
	completer Completer
	prompts   *PromptBuilder
}

// NewPipeline wires the pipeline stages. A nil completer makes every answer fail
// with a CompletionError.
func NewPipeline(log *logger.Logger, experts expert.Store, retriever ContextRetriever, completer Completer) *Pipeline {
	return &Pipeline{
		log:       log.With("service", "RAG"),
		experts:   experts,
		retriever: retriever,
		completer: completer,
		prompts:   NewPromptBuilder(),
	}
}

// Prepare runs query extraction, expert resolution, retrieval and prompt building.
// Only validation errors and prompt rendering errors are returned.
func (p *Pipeline) Prepare(ctx context.Context, botID string, messages []chat.Message) (*Prepared, error) {
	query, err := LastUserMessage(messages)
	if err != nil {
		return nil, err
	}

	e, err := ResolveExpert(p.experts, botID)
	if err != nil {
		return nil, err
	}

	var chunks []retrieval.Chunk
	if p.retriever != nil {
		chunks = p.retriever.Retrieve(ctx, query, e.Namespace)
	}

	msgs, err := p.prompts.Build(ctx, e, AssembleContext(chunks), messages)
	if err != nil {
		return nil, err
	}

	return &Prepared{Expert: e, Query: query, Chunks: chunks, Messages: msgs}, nil
}

// Answer returns the expert's completion for the conversation.
func (p *Pipeline) Answer(ctx context.Context, botID string, messages []chat.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.answer",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("bot_id", botID)),
	)
	defer span.End()

	prepared, err := p.Prepare(ctx, botID, messages)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(
		attribute.String("expert", prepared.Expert.ID),
		attribute.Int("chunks", len(prepared.Chunks)),
	)

	if p.completer == nil {
		return "", errNotConfigured()
	}

	text, err := p.completer.Complete(ctx, prepared.Messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		p.log.Error("completion failed", "expert", prepared.Expert.ID, "trace_id", traceID(span), "error", err)
		return "", asCompletionError(err)
	}

	p.log.Debug("answered", "expert", prepared.Expert.ID, "chunks", len(prepared.Chunks), "length", len(text))
	return text, nil
}

// Stream validates and prepares the request, then opens a completion stream.
// Validation errors are returned before any output is produced.
func (p *Pipeline) Stream(ctx context.Context, botID string, messages []chat.Message) (*schema.StreamReader[*schema.Message], error) {
	prepared, err := p.Prepare(ctx, botID, messages)
	if err != nil {
		return nil, err
	}
	if p.completer == nil {
		return nil, errNotConfigured()
	}

	stream, err := p.completer.Stream(ctx, prepared.Messages)
	if err != nil {
		return nil, asCompletionError(err)
	}
	return stream, nil
}

func traceID(span trace.Span) string {
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func errNotConfigured() *ai.CompletionError {
	return &ai.CompletionError{Detail: "completion model is not configured"}
}

func asCompletionError(err error) error {
	var cerr *ai.CompletionError
	if errors.As(err, &cerr) {
		return err
	}
	return &ai.CompletionError{Detail: err.Error(), Err: err}
}
