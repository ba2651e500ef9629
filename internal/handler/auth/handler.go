package auth

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/middleware"
	authService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/auth"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

// Handler 登录与会话的HTTP处理器
type Handler struct {
	log  *logger.Logger
	auth *authService.Service
}

func New(log *logger.Logger, auth *authService.Service) *Handler {
	return &Handler{log: log.With("handler", "Auth"), auth: auth}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.With(middleware.RequireAuth(h.log, h.auth)).Get("/auth/me", h.handleMe)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.RespondFailure(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		var locked *authService.LockedOutError
		switch {
		case errors.As(err, &locked):
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(locked.RetryAfter.Seconds()))))
			utils.RespondFailure(w, http.StatusTooManyRequests, locked.Error())
		case errors.Is(err, authService.ErrInvalidCredentials):
			utils.RespondFailure(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, authService.ErrDisabled):
			utils.RespondFailure(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.log.Error("login failed", "error", err)
			utils.RespondFailure(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	utils.RespondData(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		utils.RespondFailure(w, http.StatusUnauthorized, "missing or invalid token")
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		if errors.Is(err, authService.ErrUnauthorized) || errors.Is(err, authService.ErrDisabled) {
			utils.RespondFailure(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		h.log.Error("logout failed", "error", err)
		utils.RespondFailure(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondData(w, http.StatusOK, nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.RespondFailure(w, http.StatusUnauthorized, "missing or invalid token")
		return
	}
	utils.RespondData(w, http.StatusOK, user)
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
