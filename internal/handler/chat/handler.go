package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/model/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ai"
	chatService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

const (
	maxBodyBytes = 1 << 20

	msgProcessing = "Error processing your request"
	msgGenerating = "Error generating response"
)

// Answerer 回答单个专家的对话
type Answerer interface {
	Answer(ctx context.Context, botID string, messages []chat.Message) (string, error)
}

// FanOut 将对话分发给多个专家
type FanOut interface {
	Ask(ctx context.Context, botIDs []string, messages []chat.Message) ([]chat.ExpertAnswer, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	log      *logger.Logger
	answerer Answerer
	fanout   FanOut
}

// New 创建聊天处理器
func New(log *logger.Logger, answerer Answerer, fanout FanOut) *Handler {
	return &Handler{
		log:      log.With("handler", "Chat"),
		answerer: answerer,
		fanout:   fanout,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/multi", h.handleMulti)
}

// handleChat answers one expert.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	defer h.recoverPanic(w)

	var req chat.Request
	if !DecodeRequest(w, r, &req) {
		return
	}

	text, err := h.answerer.Answer(r.Context(), req.BotID, req.Messages)
	if err != nil {
		RespondPipelineError(w, h.log, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chat.Response{Text: text})
}

// handleMulti answers several experts concurrently.
func (h *Handler) handleMulti(w http.ResponseWriter, r *http.Request) {
	defer h.recoverPanic(w)

	var req chat.MultiRequest
	if !DecodeRequest(w, r, &req) {
		return
	}

	answers, err := h.fanout.Ask(r.Context(), req.BotIDs, req.Messages)
	if err != nil {
		RespondPipelineError(w, h.log, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"responses": answers})
}

func (h *Handler) recoverPanic(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		h.log.Error("chat handler panicked", "panic", rec)
		utils.RespondServerError(w, msgProcessing, "internal error")
	}
}

// DecodeRequest reads a JSON body into dst. On failure it writes the generic
// server error and returns false.
func DecodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondServerError(w, msgProcessing, "invalid request body")
		return false
	}
	return true
}

// RespondPipelineError maps a pipeline error onto the chat response envelopes.
// Completion failures are already logged by the pipeline.
func RespondPipelineError(w http.ResponseWriter, log *logger.Logger, err error) {
	var cerr *ai.CompletionError
	switch {
	case rag.IsValidation(err), errors.Is(err, chatService.ErrTooManyExperts):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &cerr):
		utils.RespondServerError(w, msgGenerating, cerr.Detail)
	default:
		log.Error("chat request failed", "error", err)
		utils.RespondServerError(w, msgProcessing, chatService.ErrorDetail(err))
	}
}
