package stream

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"

	chatHandler "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	chatService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

// Streamer opens a completion stream for one expert.
type Streamer interface {
	Stream(ctx context.Context, botID string, messages []chat.Message) (*schema.StreamReader[*schema.Message], error)
}

// Handler manages streaming answers via Server-Sent Events
type Handler struct {
	log      *logger.Logger
	streamer Streamer
}

// New creates a new stream handler
func New(log *logger.Logger, streamer Streamer) *Handler {
	return &Handler{log: log.With("handler", "Stream"), streamer: streamer}
}

// Delta is one streamed text fragment.
type Delta struct {
	Text string `json:"text"`
}

// Failure is sent when the completion breaks after streaming started.
type Failure struct {
	Error string `json:"error"`
	Text  string `json:"text"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

// handleStream validates the request, then relays completion chunks until the
// model finishes, the stream fails or the client goes away.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondServerError(w, "Error processing your request", "streaming unsupported")
		return
	}

	var req chat.Request
	if !chatHandler.DecodeRequest(w, r, &req) {
		return
	}

	ctx := r.Context()
	stream, err := h.streamer.Stream(ctx, req.BotID, req.Messages)
	if err != nil {
		chatHandler.RespondPipelineError(w, h.log, err)
		return
	}
	defer stream.Close()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	chunks, err := h.relay(ctx, w, flusher, stream)
	if err != nil {
		if ctx.Err() != nil {
			h.log.Info("client went away mid-stream", "bot_id", req.BotID, "chunks", chunks)
			return
		}
		h.log.Error("stream failed", "bot_id", req.BotID, "chunks", chunks, "error", err)
		_ = utils.SendSSEChunk(w, flusher, Failure{
			Error: "Error generating response",
			Text:  "Error: " + chatService.ErrorDetail(err),
		})
	}
	_ = utils.SendSSEDone(w, flusher)
	h.log.Debug("stream completed", "bot_id", req.BotID, "chunks", chunks)
}

func (h *Handler) relay(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, stream *schema.StreamReader[*schema.Message]) (int, error) {
	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if err := utils.SendSSEChunk(w, flusher, Delta{Text: chunk.Content}); err != nil {
			return sent, err
		}
		sent++
	}
}
