package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user:owner"

type novelFixture struct {
	svc      *NovelService
	novels   *mockNovelRepo
	episodes *mockEpisodeRepo
	gen      *mockGenerator
}

func setupNovelService(t *testing.T) *novelFixture {
	t.Helper()
	f := &novelFixture{
		novels:   newMockNovelRepo(),
		episodes: newMockEpisodeRepo(),
		gen:      &mockGenerator{},
	}
	f.svc = NewNovelService(NovelServiceConfig{
		NovelRepo:   f.novels,
		EpisodeRepo: f.episodes,
		Generator:   f.gen,
	})
	return f
}

func (f *novelFixture) draft(t *testing.T) *model.Novel {
	t.Helper()
	n, err := f.svc.CreateDraft(context.Background(), owner, model.CreateNovelRequest{
		Title:  " Moonlit Harbor ",
		Genres: []string{"fantasy", " mystery"},
	})
	require.NoError(t, err)
	return n
}

// readyDraft returns a draft whose worldview, synopsis and cast exist
func (f *novelFixture) readyDraft(t *testing.T) *model.Novel {
	t.Helper()
	n := f.draft(t)
	ctx := context.Background()
	require.NoError(t, f.novels.UpdateWorldview(ctx, n.ID, "A port city under two moons."))
	require.NoError(t, f.novels.UpdateSynopsis(ctx, n.ID, "A smuggler uncovers a tidal curse."))
	require.NoError(t, f.novels.SetCharacters(ctx, n.ID, []model.Character{{Name: "Ara", Role: "lead"}}))
	return n
}

// ============================================================================
// Draft Tests
// ============================================================================

func TestNovelService_CreateDraft_Trims(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)

	n := f.draft(t)

	assert.Equal(t, "Moonlit Harbor", n.Title)
	assert.Equal(t, []string{"fantasy", "mystery"}, n.Genres)
	assert.Equal(t, owner, n.OwnerID)
	assert.NotEmpty(t, n.ID)
}

func TestNovelService_Get_NotFound(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)

	_, err := f.svc.Get(context.Background(), "novel:missing")
	assert.ErrorIs(t, err, ErrNovelNotFound)
}

// ============================================================================
// Generation Step Tests
// ============================================================================

func TestNovelService_RecommendWorldview(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.draft(t)
	f.gen.reply = "  Two moons pull the tides.  "

	updated, err := f.svc.RecommendWorldview(context.Background(), owner, n.ID)
	require.NoError(t, err)

	assert.Equal(t, "Two moons pull the tides.", updated.Worldview)
	stored, _ := f.novels.GetByID(context.Background(), n.ID)
	assert.Equal(t, "Two moons pull the tides.", stored.Worldview)

	require.Len(t, f.gen.prompts, 1)
	assert.Contains(t, f.gen.prompts[0], "## Genre: fantasy, mystery")
	assert.Contains(t, f.gen.prompts[0], "## Title: Moonlit Harbor")
	assert.Equal(t, worldviewInstruction, f.gen.systems[0])
}

func TestNovelService_Steps_RequireOwner(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.readyDraft(t)
	ctx := context.Background()

	_, err := f.svc.RecommendWorldview(ctx, "user:stranger", n.ID)
	assert.ErrorIs(t, err, ErrNotNovelOwner)
	_, err = f.svc.WriteEpisode(ctx, "user:stranger", n.ID, model.WriteEpisodeRequest{})
	assert.ErrorIs(t, err, ErrNotNovelOwner)
	assert.Empty(t, f.gen.prompts, "generator must not run for non-owners")
}

func TestNovelService_Steps_Preconditions(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.draft(t)
	ctx := context.Background()

	_, err := f.svc.RecommendSynopsis(ctx, owner, n.ID)
	assert.ErrorIs(t, err, ErrGenerationPrecondition)

	_, err = f.svc.RecommendCharacters(ctx, owner, n.ID)
	assert.ErrorIs(t, err, ErrGenerationPrecondition)

	_, err = f.svc.WriteEpisode(ctx, owner, n.ID, model.WriteEpisodeRequest{})
	assert.ErrorIs(t, err, ErrGenerationPrecondition)
}

func TestNovelService_RecommendCharacters_AppendsParsedCast(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.readyDraft(t)
	f.gen.reply = "```json\n[{\"name\":\"Bo\",\"role\":\"rival\",\"age\":31,\"sex\":\"m\",\"job\":\"captain\",\"profile\":\"scarred\"}]\n```"

	updated, err := f.svc.RecommendCharacters(context.Background(), owner, n.ID)
	require.NoError(t, err)

	want := []model.Character{
		{Name: "Ara", Role: "lead"},
		{Name: "Bo", Role: "rival", Age: "31", Sex: "m", Job: "captain", Profile: "scarred"},
	}
	if diff := cmp.Diff(want, updated.Characters); diff != "" {
		t.Errorf("characters mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, f.gen.prompts[0], "- Ara (lead")
}

func TestNovelService_RecommendCharacters_Malformed(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.readyDraft(t)
	f.gen.reply = "Sorry, I cannot help with that."

	_, err := f.svc.RecommendCharacters(context.Background(), owner, n.ID)
	assert.ErrorIs(t, err, ErrMalformedGeneration)

	stored, _ := f.novels.GetByID(context.Background(), n.ID)
	assert.Len(t, stored.Characters, 1, "cast must be unchanged")
}

func TestNovelService_GeneratorFailure_Wrapped(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.draft(t)
	f.gen.err = ai.ErrProviderUnavailable

	_, err := f.svc.RecommendWorldview(context.Background(), owner, n.ID)
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)

	f.gen.err = nil
	f.gen.reply = "   "
	_, err = f.svc.RecommendWorldview(context.Background(), owner, n.ID)
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

// ============================================================================
// Episode Tests
// ============================================================================

func TestNovelService_WriteEpisode_FirstThenNext(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.readyDraft(t)
	ctx := context.Background()

	f.gen.reply = "## The Low Tide\nAra woke to the sound of bells."
	first, err := f.svc.WriteEpisode(ctx, owner, n.ID, model.WriteEpisodeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "The Low Tide", first.Title)
	assert.Equal(t, "Ara woke to the sound of bells.", first.Content)
	assert.Equal(t, firstEpisodeInstruction, f.gen.systems[0])

	f.gen.reply = "**Second Moon**\nThe curse stirred."
	next, err := f.svc.WriteEpisode(ctx, owner, n.ID, model.WriteEpisodeRequest{Direction: " raise the stakes "})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)
	assert.Equal(t, "Second Moon", next.Title)

	prompt := f.gen.prompts[1]
	assert.Equal(t, nextEpisodeInstruction, f.gen.systems[1])
	assert.Contains(t, prompt, "## Previous chapter: The Low Tide\nAra woke to the sound of bells.")
	assert.Contains(t, prompt, "## Author's direction: raise the stakes")
	assert.Contains(t, prompt, "**Chapter 2**")

	list, err := f.svc.ListEpisodes(ctx, n.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestNovelService_WriteEpisode_ConcurrentNumberConflict(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)
	n := f.readyDraft(t)
	f.gen.reply = "Title\nBody"

	// Another writer already stored chapter 1 after we read the last episode
	f.gen.replyFn = func(_, _ string) string {
		_ = f.episodes.Append(context.Background(), &model.Episode{NovelID: n.ID, Number: 1, Title: "x", Content: "y"})
		return "Title\nBody"
	}

	_, err := f.svc.WriteEpisode(context.Background(), owner, n.ID, model.WriteEpisodeRequest{})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestNovelService_ListEpisodes_UnknownNovel(t *testing.T) {
	t.Parallel()
	f := setupNovelService(t)

	_, err := f.svc.ListEpisodes(context.Background(), "novel:none")
	assert.ErrorIs(t, err, ErrNovelNotFound)
}

// ============================================================================
// Parsing Helpers
// ============================================================================

func TestSplitEpisode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, title, content string
	}{
		{"# Dawn\nText here.", "Dawn", "Text here."},
		{"Only one line", "Episode 3", "Only one line"},
		{"***\nBody", "Episode 3", "***\nBody"},
		{"\n\n Title \n\n Body \n", "Title", "Body"},
	}

	for _, tt := range tests {
		title, content := splitEpisode(tt.in, 3)
		assert.Equal(t, tt.title, title, tt.in)
		assert.Equal(t, tt.content, content, tt.in)
	}
}

func TestParseCharacters_ProseAroundArray(t *testing.T) {
	t.Parallel()

	chars, err := parseCharacters("Here you go:\n[{\"name\":\"Ara\"},{\"role\":\"nameless\"}]\nEnjoy!")
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "Ara", chars[0].Name)

	_, err = parseCharacters("[]")
	assert.True(t, errors.Is(err, ErrMalformedGeneration))
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[1]", stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, "[1]", stripCodeFence("```\n[1]```"))
	assert.Equal(t, "plain", stripCodeFence("  plain "))
	assert.True(t, strings.HasPrefix(stripCodeFence("```[1]```"), "[1]"))
}
