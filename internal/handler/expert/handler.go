package expert

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/catalog"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/ingest"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

const maxBodyBytes = 10 << 20

// Handler 专家与剧集管理的HTTP处理器
type Handler struct {
	log     *logger.Logger
	catalog *catalog.Service
}

// New 创建专家处理器
func New(log *logger.Logger, catalogSvc *catalog.Service) *Handler {
	return &Handler{log: log.With("handler", "Expert"), catalog: catalogSvc}
}

// RegisterRoutes mounts the public lookups and, behind requireAuth, the management routes.
func (h *Handler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/experts", h.handleList)
	r.Get("/experts/{expertID}", h.handleGet)

	r.Group(func(pr chi.Router) {
		pr.Use(requireAuth)
		pr.Post("/experts", h.handleCreate)
		pr.Delete("/experts/{expertID}", h.handleDelete)
		pr.Get("/experts/{expertID}/episodes", h.handleListEpisodes)
		pr.Post("/experts/{expertID}/episodes", h.handleAddEpisode)
		pr.Put("/experts/{expertID}/episodes/{episodeID}", h.handleUpdateEpisode)
		pr.Delete("/experts/{expertID}/episodes/{episodeID}", h.handleDeleteEpisode)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondData(w, http.StatusOK, h.catalog.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.catalog.Get(chi.URLParam(r, "expertID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, e)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewExpert
	if !decode(w, r, &in) {
		return
	}

	created, episodes, err := h.catalog.CreateExpert(r.Context(), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, map[string]any{
		"expert":   created,
		"episodes": episodes,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "expertID")
	if err := h.catalog.DeleteExpert(r.Context(), id); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	episodes, err := h.catalog.ListEpisodes(r.Context(), chi.URLParam(r, "expertID"))
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, episodes)
}

func (h *Handler) handleAddEpisode(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewEpisode
	if !decode(w, r, &in) {
		return
	}
	ep, err := h.catalog.AddEpisode(r.Context(), chi.URLParam(r, "expertID"), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusCreated, ep)
}

func (h *Handler) handleUpdateEpisode(w http.ResponseWriter, r *http.Request) {
	var in catalog.NewEpisode
	if !decode(w, r, &in) {
		return
	}
	ep, err := h.catalog.UpdateEpisode(r.Context(), chi.URLParam(r, "expertID"), chi.URLParam(r, "episodeID"), in)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, ep)
}

func (h *Handler) handleDeleteEpisode(w http.ResponseWriter, r *http.Request) {
	episodeID := chi.URLParam(r, "episodeID")
	if err := h.catalog.DeleteEpisode(r.Context(), chi.URLParam(r, "expertID"), episodeID); err != nil {
		h.respondErr(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]string{"id": episodeID})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondFailure(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondFailure(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, catalog.ErrBuiltIn):
		utils.RespondFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrExpertNotFound), errors.Is(err, catalog.ErrEpisodeNotFound):
		utils.RespondFailure(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrUnavailable):
		utils.RespondFailure(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("expert request failed", "error", err)
		utils.RespondFailure(w, http.StatusInternalServerError, "internal error")
	}
}
