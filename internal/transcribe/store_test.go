package transcribe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRoom(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"room-1":                true,
		"A_b-9":                 true,
		"":                      false,
		"../etc":                false,
		"room 1":                false,
		"room!":                 false,
		strings.Repeat("a", 64): true,
		strings.Repeat("a", 65): false,
	}
	for room, want := range tests {
		assert.Equal(t, want, ValidRoom(room), "room %q", room)
	}
}

func TestChunkStore_Save_WritesChunkUnderRoom(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewChunkStore(dir)
	store.now = func() time.Time { return time.UnixMilli(1700000000123) }

	path, err := store.Save("d1", strings.NewReader("RIFFdata"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "d1", "chunk_1700000000123.wav"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestChunkStore_Save_SameMillisecond_PicksNextName(t *testing.T) {
	t.Parallel()

	store := NewChunkStore(t.TempDir())
	store.now = func() time.Time { return time.UnixMilli(1000) }

	first, err := store.Save("room", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := store.Save("room", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "chunk_1001.wav", filepath.Base(second))
}

func TestChunkStore_Save_InvalidRoom(t *testing.T) {
	t.Parallel()

	store := NewChunkStore(t.TempDir())

	_, err := store.Save("../escape", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestChunkStore_Save_ReadError_RemovesPartialFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewChunkStore(dir)

	_, err := store.Save("room", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "room"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordedAt(t *testing.T) {
	t.Parallel()

	at, ok := recordedAt("/x/room/chunk_1700000000123.wav")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000123), at.UnixMilli())

	_, ok = recordedAt("/x/room/meeting.wav")
	assert.False(t, ok)
}

func TestTranscriptPath(t *testing.T) {
	t.Parallel()

	got := transcriptPath(filepath.Join("audio", "room", "chunk_5.wav"))
	assert.Equal(t, filepath.Join("audio", "room", "transcriptions", "chunk_5.wav.txt"), got)

	// The full file name is kept, so chunks differing only by extension
	// never share a transcript.
	other := transcriptPath(filepath.Join("audio", "room", "chunk_5.WAV"))
	assert.NotEqual(t, got, other)
}
