package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
)

type streamerFunc func(ctx context.Context, botID string, messages []chat.Message) (*schema.StreamReader[*schema.Message], error)

func (f streamerFunc) Stream(ctx context.Context, botID string, messages []chat.Message) (*schema.StreamReader[*schema.Message], error) {
	return f(ctx, botID, messages)
}

func serve(t *testing.T, s Streamer, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	New(logger.NewNop(), s).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"botId":"empire","messages":[{"role":"user","content":"q"}]}`

func TestStreamRelaysChunksAndTerminates(t *testing.T) {
	rec := serve(t, streamerFunc(func(context.Context, string, []chat.Message) (*schema.StreamReader[*schema.Message], error) {
		return schema.StreamReaderFromArray([]*schema.Message{
			schema.AssistantMessage("Hel", nil),
			schema.AssistantMessage("", nil),
			schema.AssistantMessage("lo", nil),
		}), nil
	}), validBody)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	want := "data: {\"text\":\"Hel\"}\n\ndata: {\"text\":\"lo\"}\n\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected stream %q", rec.Body.String())
	}
}

func TestStreamValidationUsesJSONEnvelope(t *testing.T) {
	rec := serve(t, streamerFunc(func(context.Context, string, []chat.Message) (*schema.StreamReader[*schema.Message], error) {
		return nil, rag.ErrUnknownExpert
	}), validBody)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Invalid bot"}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestStreamReportsMidStreamFailure(t *testing.T) {
	rec := serve(t, streamerFunc(func(context.Context, string, []chat.Message) (*schema.StreamReader[*schema.Message], error) {
		sr, sw := schema.Pipe[*schema.Message](2)
		go func() {
			defer sw.Close()
			sw.Send(schema.AssistantMessage("par", nil), nil)
			sw.Send(nil, &ai.CompletionError{Detail: "upstream reset"})
		}()
		return sr, nil
	}), validBody)

	body := rec.Body.String()
	if !strings.Contains(body, `data: {"error":"Error generating response","text":"Error: upstream reset"}`) {
		t.Fatalf("missing error frame: %q", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("stream must end with the sentinel: %q", body)
	}
}

func TestStreamCompletionFailureBeforeStart(t *testing.T) {
	rec := serve(t, streamerFunc(func(context.Context, string, []chat.Message) (*schema.StreamReader[*schema.Message], error) {
		return nil, errors.Join(&ai.CompletionError{Detail: "model offline"})
	}), validBody)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"text":"Error: model offline"`) {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
