package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// Factory creates test entities in the database
type Factory struct {
	users       *repository.UserRepository
	novels      *repository.NovelRepository
	episodes    *repository.EpisodeRepository
	discussions *repository.DiscussionRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		users:       repository.NewUserRepository(db),
		novels:      repository.NewNovelRepository(db),
		episodes:    repository.NewEpisodeRepository(db),
		discussions: repository.NewDiscussionRepository(db),
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	Email    string
	Name     string
	Nickname string
	Phone    string
	Password string
}

// WithPhone sets the user's phone number
func WithPhone(phone string) func(*UserOpts) {
	return func(o *UserOpts) { o.Phone = phone }
}

// WithoutPassword creates an OAuth-only account
func WithoutPassword() func(*UserOpts) {
	return func(o *UserOpts) { o.Password = "" }
}

// CreateUser creates a user with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	id := randomID()
	o := &UserOpts{
		Email:    fmt.Sprintf("user_%s@test.local", id),
		Name:     "Test Writer",
		Nickname: "w" + id,
		Password: "testpass123!",
	}
	for _, fn := range opts {
		fn(o)
	}

	user := &model.User{
		Email:    o.Email,
		Name:     o.Name,
		Nickname: o.Nickname,
		Phone:    o.Phone,
	}
	if o.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("fixtures: hash password: %v", err)
		}
		h := string(hash)
		user.Hash = &h
	}

	if err := f.users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: create user: %v", err)
	}
	return user
}

// ============================================================================
// Novel Fixtures
// ============================================================================

// CreateNovel creates a novel draft owned by owner
func (f *Factory) CreateNovel(t *testing.T, owner *model.User, genres ...string) *model.Novel {
	t.Helper()

	if len(genres) == 0 {
		genres = []string{"fantasy"}
	}
	novel := &model.Novel{
		OwnerID: owner.ID,
		Title:   "Novel " + randomID(),
		Genres:  genres,
	}
	if err := f.novels.Create(ctx(t), novel); err != nil {
		t.Fatalf("fixtures: create novel: %v", err)
	}
	return novel
}

// AppendEpisode adds the next episode to a novel
func (f *Factory) AppendEpisode(t *testing.T, novel *model.Novel, content string) *model.Episode {
	t.Helper()

	novel.EpisodeCount++
	episode := &model.Episode{
		NovelID: novel.ID,
		Number:  novel.EpisodeCount,
		Title:   fmt.Sprintf("Episode %d", novel.EpisodeCount),
		Content: content,
	}
	if err := f.episodes.Append(ctx(t), episode); err != nil {
		t.Fatalf("fixtures: append episode: %v", err)
	}
	return episode
}

// ============================================================================
// Discussion Fixtures
// ============================================================================

// DiscussionOpts customizes discussion creation
type DiscussionOpts struct {
	Topic           string
	Start           time.Time
	End             time.Time
	MaxParticipants int
}

// EndingAt sets the discussion window to close at end
func EndingAt(end time.Time) func(*DiscussionOpts) {
	return func(o *DiscussionOpts) {
		o.End = end
		o.Start = end.Add(-time.Hour)
	}
}

// WithCapacity sets the participant cap
func WithCapacity(n int) func(*DiscussionOpts) {
	return func(o *DiscussionOpts) { o.MaxParticipants = n }
}

// CreateDiscussion schedules a discussion about novel with creator joined
func (f *Factory) CreateDiscussion(t *testing.T, novel *model.Novel, creator *model.User, opts ...func(*DiscussionOpts)) *model.Discussion {
	t.Helper()

	start := time.Now().Add(time.Hour).Truncate(time.Second)
	o := &DiscussionOpts{
		Topic:           "Chapter review",
		Start:           start,
		End:             start.Add(time.Hour),
		MaxParticipants: 5,
	}
	for _, fn := range opts {
		fn(o)
	}

	d := &model.Discussion{
		NovelID:         novel.ID,
		CreatorID:       creator.ID,
		Topic:           o.Topic,
		StartTime:       o.Start,
		EndTime:         o.End,
		MaxParticipants: o.MaxParticipants,
		Status:          model.DiscussionStatusScheduled,
	}
	if err := f.discussions.Create(ctx(t), d); err != nil {
		t.Fatalf("fixtures: create discussion: %v", err)
	}
	return d
}
