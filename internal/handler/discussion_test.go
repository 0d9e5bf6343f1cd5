package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/service"
)

// ============================================================================
// Mock Services
// ============================================================================

type mockDiscussionService struct {
	discussions map[string]*model.Discussion
	notes       map[string][]*model.Note
	created     model.CreateDiscussionRequest
}

func newMockDiscussionService() *mockDiscussionService {
	return &mockDiscussionService{
		discussions: map[string]*model.Discussion{
			"discussion:d1": {
				ID:              "discussion:d1",
				NovelID:         "novel:n1",
				CreatorID:       "user:host",
				Topic:           "Is the narrator lying?",
				MaxParticipants: 2,
				Participants:    []string{"user:host"},
				Status:          model.DiscussionStatusScheduled,
			},
		},
		notes: make(map[string][]*model.Note),
	}
}

func (m *mockDiscussionService) Create(_ context.Context, creatorID string, req model.CreateDiscussionRequest) (*model.Discussion, error) {
	m.created = req
	d := &model.Discussion{
		ID:           "discussion:d2",
		NovelID:      req.NovelID,
		CreatorID:    creatorID,
		Topic:        req.Topic,
		Participants: []string{creatorID},
		Status:       model.DiscussionStatusScheduled,
	}
	m.discussions[d.ID] = d
	return d, nil
}

func (m *mockDiscussionService) Get(_ context.Context, id string) (*model.Discussion, error) {
	d, ok := m.discussions[id]
	if !ok {
		return nil, service.ErrDiscussionNotFound
	}
	return d, nil
}

func (m *mockDiscussionService) ListByNovel(_ context.Context, novelID string) ([]*model.Discussion, error) {
	var out []*model.Discussion
	for _, d := range m.discussions {
		if d.NovelID == novelID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDiscussionService) Join(ctx context.Context, userID, id string) (*model.Discussion, error) {
	d, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.HasParticipant(userID) {
		return nil, service.ErrAlreadyParticipating
	}
	if d.IsFull() {
		return nil, service.ErrDiscussionFull
	}
	d.Participants = append(d.Participants, userID)
	return d, nil
}

func (m *mockDiscussionService) Leave(ctx context.Context, userID, id string) error {
	d, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if !d.HasParticipant(userID) {
		return service.ErrNotParticipating
	}
	return nil
}

func (m *mockDiscussionService) Notes(_ context.Context, id string) ([]*model.Note, error) {
	return m.notes[id], nil
}

func (m *mockDiscussionService) Summarize(ctx context.Context, userID, id string) (*model.Note, error) {
	d, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.HasParticipant(userID) {
		return nil, service.ErrNotParticipating
	}
	if _, ok := m.notes[id]; !ok {
		return nil, service.ErrNothingToSummarize
	}
	note := &model.Note{ID: "note:x", DiscussionID: id, Content: "main points", CreatedOn: time.Now()}
	m.notes[id] = append(m.notes[id], note)
	return note, nil
}

type mockAssistantService struct {
	novelID string
	query   string
	label   string
}

func (m *mockAssistantService) RecommendTopics(_ context.Context, novelID, query string) (*model.AssistantAnswer, error) {
	m.novelID, m.query, m.label = novelID, query, "topics"
	return &model.AssistantAnswer{Answer: "talk about the door", Passages: []*model.Passage{}}, nil
}

func (m *mockAssistantService) FactCheck(_ context.Context, novelID, claim string) (*model.AssistantAnswer, error) {
	m.novelID, m.query, m.label = novelID, claim, "fact-check"
	return &model.AssistantAnswer{Answer: "true, see chapter 2", Passages: []*model.Passage{}}, nil
}

func discussionRequest(method, path, id string, body interface{}) *http.Request {
	req := makeJSONRequest(method, path, body)
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	}
	req.SetPathValue("discussionId", id)
	return req
}

// ============================================================================
// Create / List / Get Tests
// ============================================================================

func TestDiscussionCreate_NormalizesNovelID(t *testing.T) {
	t.Parallel()

	discussions := newMockDiscussionService()
	h := NewDiscussionHandler(discussions, &mockAssistantService{})

	start := time.Now().Add(time.Hour)
	req := withUserContext(makeJSONRequest(http.MethodPost, "/v1/discussions", model.CreateDiscussionRequest{
		NovelID:         "n1",
		Topic:           "Endings",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		MaxParticipants: 4,
	}), "user:host")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if discussions.created.NovelID != "novel:n1" {
		t.Errorf("expected novel:n1, got %q", discussions.created.NovelID)
	}
	links := decodeData(t, rec.Body.Bytes(), nil)
	if links["relay"] != "/v1/relay/ws/d2" {
		t.Errorf("unexpected relay link %q", links["relay"])
	}
}

func TestDiscussionCreate_InvalidParticipants(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	start := time.Now().Add(time.Hour)
	rec := httptest.NewRecorder()
	h.Create(rec, withUserContext(makeJSONRequest(http.MethodPost, "/v1/discussions", model.CreateDiscussionRequest{
		NovelID:         "n1",
		Topic:           "Endings",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		MaxParticipants: 51,
	}), "user:host"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestDiscussionList_RequiresNovelID(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/discussions", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/v1/discussions?novel_id=n1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []model.Discussion
	decodeData(t, rec.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("expected 1 discussion, got %d", len(list))
	}
}

func TestDiscussionGet_NotFound(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Get(rec, discussionRequest(http.MethodGet, "/v1/discussions/nope", "nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// ============================================================================
// Participation Tests
// ============================================================================

func TestDiscussionJoin_ThenFull(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Join(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/join", "d1", nil), "user:guest"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Join(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/join", "d1", nil), "user:late"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 when full, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Join(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/join", "d1", nil), "user:guest"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 when already in, got %d", rec.Code)
	}
}

func TestDiscussionLeave(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Leave(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/leave", "d1", nil), "user:host"))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Leave(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/leave", "d1", nil), "user:stranger"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if problem := parseErrorResponse(t, rec.Body.Bytes()); problem.Code != model.ErrCodeNotParticipant {
		t.Errorf("expected not participant code, got %d", problem.Code)
	}
}

// ============================================================================
// Notes Tests
// ============================================================================

func TestDiscussionSummarize_NoTranscript(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Summarize(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/notes", "d1", nil), "user:host"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestDiscussionSummarize_ThenListNotes(t *testing.T) {
	t.Parallel()

	discussions := newMockDiscussionService()
	discussions.notes["discussion:d1"] = []*model.Note{}
	h := NewDiscussionHandler(discussions, &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Summarize(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/notes", "d1", nil), "user:host"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Notes(rec, discussionRequest(http.MethodGet, "/v1/discussions/d1/notes", "d1", nil))
	var notes []model.Note
	decodeData(t, rec.Body.Bytes(), &notes)
	if len(notes) != 1 || notes[0].Content != "main points" {
		t.Errorf("unexpected notes %+v", notes)
	}
}

// ============================================================================
// Assistant Tests
// ============================================================================

func TestDiscussionAssistant_UsesDiscussionNovel(t *testing.T) {
	t.Parallel()

	assistant := &mockAssistantService{}
	h := NewDiscussionHandler(newMockDiscussionService(), assistant)

	rec := httptest.NewRecorder()
	h.FactCheck(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/assistant/fact-check", "d1",
		model.AssistantRequest{Query: "  the diver drowns  "}), "user:host"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if assistant.novelID != "novel:n1" || assistant.query != "the diver drowns" || assistant.label != "fact-check" {
		t.Errorf("unexpected call %+v", assistant)
	}
}

func TestDiscussionAssistant_NonParticipantForbidden(t *testing.T) {
	t.Parallel()

	assistant := &mockAssistantService{}
	h := NewDiscussionHandler(newMockDiscussionService(), assistant)

	rec := httptest.NewRecorder()
	h.Topics(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/assistant/topics", "d1",
		model.AssistantRequest{Query: "themes"}), "user:stranger"))

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if assistant.label != "" {
		t.Error("assistant must not be called for non-participants")
	}
}

func TestDiscussionAssistant_EmptyQuery(t *testing.T) {
	t.Parallel()

	h := NewDiscussionHandler(newMockDiscussionService(), &mockAssistantService{})

	rec := httptest.NewRecorder()
	h.Topics(rec, withUserContext(discussionRequest(http.MethodPost, "/v1/discussions/d1/assistant/topics", "d1",
		model.AssistantRequest{Query: "   "}), "user:host"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
