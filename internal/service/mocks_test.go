package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/provider"
	"github.com/momoso/api/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

// ============================================================================
// Shared fixtures
// ============================================================================

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testPrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

func createTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()
	return jwt.NewTestService(testPrivateKey(t), "test-issuer", 30*time.Minute, 7*24*time.Hour)
}

func newTestStore(t *testing.T) (cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewRedisStoreFromClient(client), mr
}

// ============================================================================
// User / identity repositories
// ============================================================================

type mockUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	createErr error
	getErr    error
	touched   []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email == user.Email || u.Nickname == user.Nickname {
			return database.ErrDuplicate
		}
	}
	user.ID = "user:" + user.Nickname
	user.CreatedOn = time.Now()
	user.UpdatedOn = user.CreatedOn
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id })
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByNickname(ctx context.Context, nickname string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Nickname == nickname })
}

func (m *mockUserRepo) GetByNameAndPhone(ctx context.Context, name, phone string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Name == name && u.Phone == phone })
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Hash = &hash
	}
	return nil
}

func (m *mockUserRepo) TouchLogin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, userID)
	return nil
}

type mockIdentityRepo struct {
	identities []*model.Identity
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	identity.ID = fmt.Sprintf("identity:%d", len(m.identities)+1)
	m.identities = append(m.identities, identity)
	return nil
}

func (m *mockIdentityRepo) GetByProviderID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	for _, i := range m.identities {
		if i.Provider == provider && i.ProviderUserID == providerUserID {
			return i, nil
		}
	}
	return nil, nil
}

// ============================================================================
// Providers
// ============================================================================

type mockSMS struct {
	sent      []string
	approve   bool
	sendErr   error
	checkErr  error
	checkedTo string
}

func (m *mockSMS) SendCode(ctx context.Context, to string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *mockSMS) CheckCode(ctx context.Context, to, code string) (bool, error) {
	m.checkedTo = to
	if m.checkErr != nil {
		return false, m.checkErr
	}
	return m.approve, nil
}

type sentMail struct {
	to, subject, body string
}

type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type mockGoogle struct {
	info     *provider.GoogleUserInfo
	err      error
	lastCode string
}

func (m *mockGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (m *mockGoogle) Exchange(ctx context.Context, code string) (*provider.GoogleUserInfo, error) {
	m.lastCode = code
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

// mockGenerator answers with a fixed reply, or a func of the prompt
type mockGenerator struct {
	mu      sync.Mutex
	reply   string
	replyFn func(system, prompt string) string
	err     error
	prompts []string
	systems []string
}

func (m *mockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems = append(m.systems, system)
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.replyFn != nil {
		return m.replyFn(system, prompt), nil
	}
	return m.reply, nil
}

// mockEmbedder maps text to a 2-d vector so similarity is predictable
type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	queries []string
	err     error
	delay   time.Duration
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(len([]rune(text))), 1}, nil
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len([]rune(t))), 1}
	}
	return out, nil
}

// ============================================================================
// Novel / episode repositories
// ============================================================================

type mockNovelRepo struct {
	mu     sync.Mutex
	novels map[string]*model.Novel
	seq    int
}

func newMockNovelRepo() *mockNovelRepo {
	return &mockNovelRepo{novels: make(map[string]*model.Novel)}
}

func (m *mockNovelRepo) Create(ctx context.Context, novel *model.Novel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	novel.ID = fmt.Sprintf("novel:n%d", m.seq)
	novel.CreatedOn = time.Now()
	cp := *novel
	m.novels[novel.ID] = &cp
	return nil
}

func (m *mockNovelRepo) GetByID(ctx context.Context, id string) (*model.Novel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.novels[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	cp.Characters = append([]model.Character(nil), n.Characters...)
	return &cp, nil
}

func (m *mockNovelRepo) update(id string, fn func(*model.Novel)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.novels[id]
	if !ok {
		return database.ErrNotFound
	}
	fn(n)
	return nil
}

func (m *mockNovelRepo) UpdateWorldview(ctx context.Context, id, worldview string) error {
	return m.update(id, func(n *model.Novel) { n.Worldview = worldview })
}

func (m *mockNovelRepo) UpdateSynopsis(ctx context.Context, id, synopsis string) error {
	return m.update(id, func(n *model.Novel) { n.Synopsis = synopsis })
}

func (m *mockNovelRepo) SetCharacters(ctx context.Context, id string, characters []model.Character) error {
	return m.update(id, func(n *model.Novel) { n.Characters = characters })
}

type mockEpisodeRepo struct {
	mu       sync.Mutex
	episodes map[string][]*model.Episode
}

func newMockEpisodeRepo() *mockEpisodeRepo {
	return &mockEpisodeRepo{episodes: make(map[string][]*model.Episode)}
}

func (m *mockEpisodeRepo) Append(ctx context.Context, episode *model.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.episodes[episode.NovelID] {
		if e.Number == episode.Number {
			return database.ErrDuplicate
		}
	}
	episode.ID = fmt.Sprintf("episode:%s_%d", model.RoomFromID(episode.NovelID), episode.Number)
	m.episodes[episode.NovelID] = append(m.episodes[episode.NovelID], episode)
	return nil
}

func (m *mockEpisodeRepo) GetLast(ctx context.Context, novelID string) (*model.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	eps := m.episodes[novelID]
	if len(eps) == 0 {
		return nil, nil
	}
	return eps[len(eps)-1], nil
}

func (m *mockEpisodeRepo) ListByNovel(ctx context.Context, novelID string) ([]*model.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Episode(nil), m.episodes[novelID]...), nil
}

// ============================================================================
// Discussion / note / transcript / passage repositories
// ============================================================================

type mockDiscussionRepo struct {
	mu          sync.Mutex
	discussions map[string]*model.Discussion
	seq         int
}

func newMockDiscussionRepo() *mockDiscussionRepo {
	return &mockDiscussionRepo{discussions: make(map[string]*model.Discussion)}
}

func (m *mockDiscussionRepo) Create(ctx context.Context, d *model.Discussion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	d.ID = fmt.Sprintf("discussion:d%d", m.seq)
	cp := *d
	cp.Participants = append([]string(nil), d.Participants...)
	m.discussions[d.ID] = &cp
	return nil
}

func (m *mockDiscussionRepo) GetByID(ctx context.Context, id string) (*model.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discussions[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	cp.Participants = append([]string(nil), d.Participants...)
	return &cp, nil
}

func (m *mockDiscussionRepo) ListByNovel(ctx context.Context, novelID string) ([]*model.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Discussion
	for _, d := range m.discussions {
		if d.NovelID == novelID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDiscussionRepo) AddParticipant(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discussions[id]
	if !ok || d.HasParticipant(userID) || d.IsFull() || d.Status != model.DiscussionStatusScheduled {
		return false, nil
	}
	d.Participants = append(d.Participants, userID)
	return true, nil
}

func (m *mockDiscussionRepo) RemoveParticipant(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.discussions[id]
	if !ok {
		return false, nil
	}
	for i, p := range d.Participants {
		if p == userID {
			d.Participants = append(d.Participants[:i], d.Participants[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDiscussionRepo) ListExpired(ctx context.Context, now time.Time) ([]*model.Discussion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Discussion
	for _, d := range m.discussions {
		if d.Status == model.DiscussionStatusScheduled && !d.EndTime.After(now) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDiscussionRepo) SetStatus(ctx context.Context, id string, status model.DiscussionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discussions[id]; ok {
		d.Status = status
	}
	return nil
}

type mockNoteRepo struct {
	notes []*model.Note
}

func (m *mockNoteRepo) Create(ctx context.Context, note *model.Note) error {
	note.ID = fmt.Sprintf("note:%d", len(m.notes)+1)
	m.notes = append(m.notes, note)
	return nil
}

func (m *mockNoteRepo) ListByDiscussion(ctx context.Context, discussionID string) ([]*model.Note, error) {
	var out []*model.Note
	for _, n := range m.notes {
		if n.DiscussionID == discussionID {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockTranscriptRepo struct {
	transcripts []*model.Transcript
}

func (m *mockTranscriptRepo) Create(ctx context.Context, t *model.Transcript) error {
	t.ID = fmt.Sprintf("transcript:%d", len(m.transcripts)+1)
	m.transcripts = append(m.transcripts, t)
	return nil
}

func (m *mockTranscriptRepo) ListByRoom(ctx context.Context, room string) ([]*model.Transcript, error) {
	var out []*model.Transcript
	for _, t := range m.transcripts {
		if t.Room == room {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out, nil
}

func (m *mockTranscriptRepo) CountByRoom(ctx context.Context, room string) (int, error) {
	list, _ := m.ListByRoom(ctx, room)
	return len(list), nil
}

type mockPassageRepo struct {
	mu       sync.Mutex
	passages map[string][]*model.Passage
	replaced int
}

func newMockPassageRepo() *mockPassageRepo {
	return &mockPassageRepo{passages: make(map[string][]*model.Passage)}
}

func (m *mockPassageRepo) ReplaceForNovel(ctx context.Context, novelID string, passages []*model.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced++
	m.passages[novelID] = passages
	return nil
}

func (m *mockPassageRepo) CountByNovel(ctx context.Context, novelID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.passages[novelID]), nil
}

// Search ranks by closeness of the first vector component
func (m *mockPassageRepo) Search(ctx context.Context, novelID string, vector []float32, k int) ([]*model.Passage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append([]*model.Passage(nil), m.passages[novelID]...)
	dist := func(p *model.Passage) float32 {
		d := p.Embedding[0] - vector[0]
		if d < 0 {
			return -d
		}
		return d
	}
	sort.SliceStable(all, func(i, j int) bool { return dist(all[i]) < dist(all[j]) })
	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}
