package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/momoso/api/internal/model"
)

// DiscussionService schedules discussions and produces their notes
type DiscussionService interface {
	Create(ctx context.Context, creatorID string, req model.CreateDiscussionRequest) (*model.Discussion, error)
	Get(ctx context.Context, id string) (*model.Discussion, error)
	ListByNovel(ctx context.Context, novelID string) ([]*model.Discussion, error)
	Join(ctx context.Context, userID, id string) (*model.Discussion, error)
	Leave(ctx context.Context, userID, id string) error
	Notes(ctx context.Context, id string) ([]*model.Note, error)
	Summarize(ctx context.Context, userID, id string) (*model.Note, error)
}

// AssistantService answers questions against a novel's passages
type AssistantService interface {
	RecommendTopics(ctx context.Context, novelID, query string) (*model.AssistantAnswer, error)
	FactCheck(ctx context.Context, novelID, claim string) (*model.AssistantAnswer, error)
}

// DiscussionHandler handles discussion endpoints
type DiscussionHandler struct {
	discussions DiscussionService
	assistant   AssistantService
}

// NewDiscussionHandler creates a new discussion handler
func NewDiscussionHandler(discussions DiscussionService, assistant AssistantService) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions, assistant: assistant}
}

func discussionLinks(d *model.Discussion) map[string]string {
	base := "/v1/discussions/" + d.ID
	return map[string]string{
		"self":  base,
		"novel": "/v1/novels/" + d.NovelID,
		"join":  base + "/join",
		"notes": base + "/notes",
		"relay": "/v1/relay/ws/" + d.Room(),
	}
}

// Create handles POST /v1/discussions
func (h *DiscussionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateDiscussionRequest
	if !decodeValid(w, r, &req) {
		return
	}
	req.NovelID = recordID("novel", req.NovelID)

	d, err := h.discussions.Create(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err, "create discussion")
		return
	}

	WriteData(w, http.StatusCreated, d, discussionLinks(d))
}

// List handles GET /v1/discussions?novel_id=...
func (h *DiscussionHandler) List(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("novel_id"))
	if raw == "" {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "novel_id", Message: "novel_id is required"},
		}))
		return
	}
	novelID := recordID("novel", raw)

	list, err := h.discussions.ListByNovel(r.Context(), novelID)
	if err != nil {
		writeServiceError(w, r, err, "list discussions")
		return
	}
	if list == nil {
		list = []*model.Discussion{}
	}

	WriteData(w, http.StatusOK, list, map[string]string{
		"novel": "/v1/novels/" + novelID,
	})
}

// Get handles GET /v1/discussions/{discussionId}
func (h *DiscussionHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.discussions.Get(r.Context(), discussionID(r))
	if err != nil {
		writeServiceError(w, r, err, "get discussion")
		return
	}
	WriteData(w, http.StatusOK, d, discussionLinks(d))
}

// Join handles POST /v1/discussions/{discussionId}/join
func (h *DiscussionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	d, err := h.discussions.Join(r.Context(), userID, discussionID(r))
	if err != nil {
		writeServiceError(w, r, err, "join discussion")
		return
	}

	WriteData(w, http.StatusOK, d, discussionLinks(d))
}

// Leave handles POST /v1/discussions/{discussionId}/leave
func (h *DiscussionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.discussions.Leave(r.Context(), userID, discussionID(r)); err != nil {
		writeServiceError(w, r, err, "leave discussion")
		return
	}

	WriteNoContent(w)
}

// Notes handles GET /v1/discussions/{discussionId}/notes
func (h *DiscussionHandler) Notes(w http.ResponseWriter, r *http.Request) {
	id := discussionID(r)

	notes, err := h.discussions.Notes(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "list notes")
		return
	}
	if notes == nil {
		notes = []*model.Note{}
	}

	WriteData(w, http.StatusOK, notes, map[string]string{
		"discussion": "/v1/discussions/" + id,
	})
}

// Summarize handles POST /v1/discussions/{discussionId}/notes
func (h *DiscussionHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := discussionID(r)
	note, err := h.discussions.Summarize(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err, "summarize discussion")
		return
	}

	WriteData(w, http.StatusCreated, note, map[string]string{
		"discussion": "/v1/discussions/" + id,
		"notes":      "/v1/discussions/" + id + "/notes",
	})
}

// assistantFunc is RecommendTopics or FactCheck
type assistantFunc func(ctx context.Context, novelID, query string) (*model.AssistantAnswer, error)

func (h *DiscussionHandler) ask(op string, fn assistantFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req model.AssistantRequest
		if !decodeValid(w, r, &req) {
			return
		}

		d, err := h.discussions.Get(r.Context(), discussionID(r))
		if err != nil {
			writeServiceError(w, r, err, op)
			return
		}
		if !d.HasParticipant(userID) {
			WriteError(w, model.NewForbiddenError("only participants may use the assistant").
				WithCode(model.ErrCodeNotParticipant))
			return
		}

		answer, err := fn(r.Context(), d.NovelID, strings.TrimSpace(req.Query))
		if err != nil {
			writeServiceError(w, r, err, op)
			return
		}

		WriteData(w, http.StatusOK, answer, map[string]string{
			"discussion": "/v1/discussions/" + d.ID,
		})
	}
}

// Topics handles POST /v1/discussions/{discussionId}/assistant/topics
func (h *DiscussionHandler) Topics(w http.ResponseWriter, r *http.Request) {
	h.ask("recommend topics", h.assistant.RecommendTopics)(w, r)
}

// FactCheck handles POST /v1/discussions/{discussionId}/assistant/fact-check
func (h *DiscussionHandler) FactCheck(w http.ResponseWriter, r *http.Request) {
	h.ask("fact check", h.assistant.FactCheck)(w, r)
}

func discussionID(r *http.Request) string {
	return recordID("discussion", r.PathValue("discussionId"))
}
