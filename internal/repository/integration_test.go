package repository_test

/*
FEATURE: Persistence
DOMAIN: Accounts, novel drafts, discussions and retrieval passages

ACCEPTANCE CRITERIA:
===================

AC-REPO-001: Unique Accounts
  GIVEN a user with nickname N exists
  WHEN another user is created with nickname N
  THEN creation fails with database.ErrDuplicate

AC-REPO-002: Lookup Misses
  GIVEN no user with email E
  WHEN the user is looked up by E
  THEN (nil, nil) is returned

AC-REPO-003: Episodes Advance The Novel
  GIVEN a novel with no episodes
  WHEN two episodes are appended
  THEN the novel's episode_count is 2 and GetLast returns episode 2

AC-REPO-004: Participant Cap
  GIVEN a discussion with capacity 2 and its creator joined
  WHEN two more users join
  THEN only the first join succeeds

AC-REPO-005: Expiry Sweep
  GIVEN one discussion that ended and one still scheduled
  WHEN ListExpired runs
  THEN only the ended one is returned

AC-REPO-006: Passage Search
  GIVEN passages with distinct embeddings
  WHEN searching with a vector close to one of them
  THEN that passage ranks first
*/

import (
	"testing"
	"time"

	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/repository"
	"github.com/momoso/api/internal/testing/fixtures"
	"github.com/momoso/api/internal/testing/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_DuplicateNickname(t *testing.T) {
	// AC-REPO-001: Unique Accounts
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	existing := f.CreateUser(t)

	repo := repository.NewUserRepository(tdb.DB)
	err := repo.Create(tdb.Ctx(), &model.User{
		Email:    "other@test.local",
		Name:     "Other",
		Nickname: existing.Nickname,
	})

	require.ErrorIs(t, err, database.ErrDuplicate)
}

func TestUser_LookupRoundTrip(t *testing.T) {
	// AC-REPO-002: Lookup Misses
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	user := f.CreateUser(t, fixtures.WithPhone("01012345678"))
	repo := repository.NewUserRepository(tdb.DB)

	missing, err := repo.GetByEmail(tdb.Ctx(), "nobody@test.local")
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := repo.GetByNameAndPhone(tdb.Ctx(), user.Name, "01012345678")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.True(t, found.HasPassword(), "hash should be read back")
}

func TestEpisode_AppendUpdatesNovel(t *testing.T) {
	// AC-REPO-003: Episodes Advance The Novel
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	novel := f.CreateNovel(t, f.CreateUser(t))
	f.AppendEpisode(t, novel, "First light.")
	second := f.AppendEpisode(t, novel, "Second wind.")

	novels := repository.NewNovelRepository(tdb.DB)
	stored, err := novels.GetByID(tdb.Ctx(), novel.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.EpisodeCount)

	episodes := repository.NewEpisodeRepository(tdb.DB)
	last, err := episodes.GetLast(tdb.Ctx(), novel.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)
	assert.Equal(t, "Second wind.", last.Content)

	// Same number again violates the (novel_id, number) index
	err = episodes.Append(tdb.Ctx(), &model.Episode{NovelID: novel.ID, Number: 2, Content: "dup"})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestDiscussion_ParticipantCap(t *testing.T) {
	// AC-REPO-004: Participant Cap
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	creator := f.CreateUser(t)
	d := f.CreateDiscussion(t, f.CreateNovel(t, creator), creator, fixtures.WithCapacity(2))

	repo := repository.NewDiscussionRepository(tdb.DB)

	joined, err := repo.AddParticipant(tdb.Ctx(), d.ID, f.CreateUser(t).ID)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = repo.AddParticipant(tdb.Ctx(), d.ID, f.CreateUser(t).ID)
	require.NoError(t, err)
	assert.False(t, joined, "discussion is full")

	left, err := repo.RemoveParticipant(tdb.Ctx(), d.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, left)

	stored, err := repo.GetByID(tdb.Ctx(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Participants, 1)
	assert.False(t, stored.HasParticipant(creator.ID))
}

func TestDiscussion_ListExpired(t *testing.T) {
	// AC-REPO-005: Expiry Sweep
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	creator := f.CreateUser(t)
	novel := f.CreateNovel(t, creator)
	ended := f.CreateDiscussion(t, novel, creator, fixtures.EndingAt(time.Now().Add(-time.Minute)))
	f.CreateDiscussion(t, novel, creator)

	repo := repository.NewDiscussionRepository(tdb.DB)
	expired, err := repo.ListExpired(tdb.Ctx(), time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, ended.ID, expired[0].ID)

	require.NoError(t, repo.SetStatus(tdb.Ctx(), ended.ID, model.DiscussionStatusEnded))
	expired, err = repo.ListExpired(tdb.Ctx(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestPassage_SearchRanksByCosine(t *testing.T) {
	// AC-REPO-006: Passage Search
	tdb := testdb.New(t)
	defer tdb.Close()

	f := fixtures.New(tdb.DB)
	novel := f.CreateNovel(t, f.CreateUser(t))
	episode := f.AppendEpisode(t, novel, "A storm. A lighthouse.")

	repo := repository.NewPassageRepository(tdb.DB)
	require.NoError(t, repo.ReplaceForNovel(tdb.Ctx(), novel.ID, []*model.Passage{
		{EpisodeID: episode.ID, Seq: 0, Text: "A storm.", Embedding: []float32{1, 0, 0}},
		{EpisodeID: episode.ID, Seq: 1, Text: "A lighthouse.", Embedding: []float32{0, 1, 0}},
	}))

	count, err := repo.CountByNovel(tdb.Ctx(), novel.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := repo.Search(tdb.Ctx(), novel.ID, []float32{0.1, 0.9, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A lighthouse.", hits[0].Text)
}
