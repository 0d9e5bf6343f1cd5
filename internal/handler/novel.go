package handler

import (
	"context"
	"net/http"

	"github.com/momoso/api/internal/model"
)

// NovelService drives the novel creation workflow
type NovelService interface {
	CreateDraft(ctx context.Context, ownerID string, req model.CreateNovelRequest) (*model.Novel, error)
	Get(ctx context.Context, novelID string) (*model.Novel, error)
	ListEpisodes(ctx context.Context, novelID string) ([]*model.Episode, error)
	RecommendWorldview(ctx context.Context, userID, novelID string) (*model.Novel, error)
	RecommendSynopsis(ctx context.Context, userID, novelID string) (*model.Novel, error)
	RecommendCharacters(ctx context.Context, userID, novelID string) (*model.Novel, error)
	WriteEpisode(ctx context.Context, userID, novelID string, req model.WriteEpisodeRequest) (*model.Episode, error)
}

// PassageIndexer rebuilds the retrieval index for a novel
type PassageIndexer interface {
	IndexNovel(ctx context.Context, novelID string) (int, error)
}

// NovelHandler handles novel endpoints
type NovelHandler struct {
	novels  NovelService
	indexer PassageIndexer
}

// NewNovelHandler creates a new novel handler
func NewNovelHandler(novels NovelService, indexer PassageIndexer) *NovelHandler {
	return &NovelHandler{novels: novels, indexer: indexer}
}

func novelLinks(n *model.Novel) map[string]string {
	base := "/v1/novels/" + n.ID
	links := map[string]string{
		"self":     base,
		"episodes": base + "/episodes",
	}
	switch {
	case n.Worldview == "":
		links["next"] = base + "/worldview"
	case n.Synopsis == "":
		links["next"] = base + "/synopsis"
	case len(n.Characters) == 0:
		links["next"] = base + "/characters"
	default:
		links["next"] = base + "/episodes"
	}
	return links
}

// Create handles POST /v1/novels
func (h *NovelHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateNovelRequest
	if !decodeValid(w, r, &req) {
		return
	}

	novel, err := h.novels.CreateDraft(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err, "create novel")
		return
	}

	WriteData(w, http.StatusCreated, novel, novelLinks(novel))
}

// Get handles GET /v1/novels/{novelId}
func (h *NovelHandler) Get(w http.ResponseWriter, r *http.Request) {
	novel, err := h.novels.Get(r.Context(), recordID("novel", r.PathValue("novelId")))
	if err != nil {
		writeServiceError(w, r, err, "get novel")
		return
	}
	WriteData(w, http.StatusOK, novel, novelLinks(novel))
}

// ListEpisodes handles GET /v1/novels/{novelId}/episodes
func (h *NovelHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	novelID := recordID("novel", r.PathValue("novelId"))

	episodes, err := h.novels.ListEpisodes(r.Context(), novelID)
	if err != nil {
		writeServiceError(w, r, err, "list episodes")
		return
	}
	if episodes == nil {
		episodes = []*model.Episode{}
	}

	WriteData(w, http.StatusOK, episodes, map[string]string{
		"novel": "/v1/novels/" + novelID,
	})
}

// recommendFunc is one of the AI generation steps on NovelService
type recommendFunc func(ctx context.Context, userID, novelID string) (*model.Novel, error)

func (h *NovelHandler) recommend(op string, step recommendFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		novel, err := step(r.Context(), userID, recordID("novel", r.PathValue("novelId")))
		if err != nil {
			writeServiceError(w, r, err, op)
			return
		}

		WriteData(w, http.StatusOK, novel, novelLinks(novel))
	}
}

// Worldview handles POST /v1/novels/{novelId}/worldview
func (h *NovelHandler) Worldview(w http.ResponseWriter, r *http.Request) {
	h.recommend("recommend worldview", h.novels.RecommendWorldview)(w, r)
}

// Synopsis handles POST /v1/novels/{novelId}/synopsis
func (h *NovelHandler) Synopsis(w http.ResponseWriter, r *http.Request) {
	h.recommend("recommend synopsis", h.novels.RecommendSynopsis)(w, r)
}

// Characters handles POST /v1/novels/{novelId}/characters
func (h *NovelHandler) Characters(w http.ResponseWriter, r *http.Request) {
	h.recommend("recommend characters", h.novels.RecommendCharacters)(w, r)
}

// WriteEpisode handles POST /v1/novels/{novelId}/episodes. The body is
// optional and may carry a direction for the next chapter.
func (h *NovelHandler) WriteEpisode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.WriteEpisodeRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	novelID := recordID("novel", r.PathValue("novelId"))
	episode, err := h.novels.WriteEpisode(r.Context(), userID, novelID, req)
	if err != nil {
		writeServiceError(w, r, err, "write episode")
		return
	}

	WriteData(w, http.StatusCreated, episode, map[string]string{
		"novel":    "/v1/novels/" + novelID,
		"episodes": "/v1/novels/" + novelID + "/episodes",
	})
}

// Index handles POST /v1/novels/{novelId}/index
func (h *NovelHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	novelID := recordID("novel", r.PathValue("novelId"))
	if _, err := h.novels.Get(r.Context(), novelID); err != nil {
		writeServiceError(w, r, err, "index novel")
		return
	}

	count, err := h.indexer.IndexNovel(r.Context(), novelID)
	if err != nil {
		writeServiceError(w, r, err, "index novel")
		return
	}

	WriteData(w, http.StatusOK, map[string]any{
		"novel_id": novelID,
		"passages": count,
	}, map[string]string{"novel": "/v1/novels/" + novelID})
}
