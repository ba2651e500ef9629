package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	authHandler "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/auth"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/chat"
	expertHandler "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/expert"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/stream"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/handler/ws"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	middlewarePkg "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/middleware"
	authService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/auth"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/catalog"
	chatService "github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/chat"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/rag"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Pipeline       *rag.Pipeline
	FanOut         *chatService.Service
	Catalog        *catalog.Service
	Auth           *authService.Service
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(log *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.StripSlashes)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chat.New(log, deps.Pipeline, deps.FanOut)
	streamHandler := stream.New(log, deps.Pipeline)
	wsHandler := ws.New(log, deps.FanOut)
	expertsHandler := expertHandler.New(log, deps.Catalog)
	loginHandler := authHandler.New(log, deps.Auth)
	requireAuth := middlewarePkg.RequireAuth(log, deps.Auth)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		loginHandler.RegisterRoutes(api)
		expertsHandler.RegisterRoutes(api, requireAuth)
	})

	return r
}
