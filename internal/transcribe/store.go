// Package transcribe stores recorded audio chunks and turns them into text
// off the request path.
//
// ChunkStore writes each uploaded chunk to {audioDir}/{room}/chunk_{ms}.wav.
// Pipeline queues those files and runs at most Workers recognitions at a
// time. Each result is written next to the audio as
// transcriptions/{chunk}.wav.txt and handed to a Sink.
package transcribe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	chunkPrefix = "chunk_"
	chunkExt    = ".wav"

	// maxNameAttempts bounds the search for a free file name when several
	// chunks for one room land in the same millisecond
	maxNameAttempts = 100
)

var (
	// ErrInvalidRoom indicates a room name outside [A-Za-z0-9_-]{1,64}
	ErrInvalidRoom = errors.New("invalid room name")

	roomPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ValidRoom reports whether room is usable as a directory name
func ValidRoom(room string) bool {
	return roomPattern.MatchString(room)
}

// ChunkStore saves audio chunks under a root directory, one directory per room
type ChunkStore struct {
	dir string
	now func() time.Time
}

// NewChunkStore creates a chunk store rooted at dir
func NewChunkStore(dir string) *ChunkStore {
	return &ChunkStore{dir: dir, now: time.Now}
}

// Dir returns the root directory
func (s *ChunkStore) Dir() string {
	return s.dir
}

// Save writes r to a new chunk file for room and returns its path
func (s *ChunkStore) Save(room string, r io.Reader) (string, error) {
	if !ValidRoom(room) {
		return "", ErrInvalidRoom
	}

	roomDir := filepath.Join(s.dir, room)
	if err := os.MkdirAll(roomDir, 0o755); err != nil {
		return "", fmt.Errorf("create room dir: %w", err)
	}

	f, path, err := s.create(roomDir)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write chunk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close chunk: %w", err)
	}
	return path, nil
}

func (s *ChunkStore) create(roomDir string) (*os.File, string, error) {
	ms := s.now().UnixMilli()
	for i := 0; i < maxNameAttempts; i++ {
		path := filepath.Join(roomDir, chunkPrefix+strconv.FormatInt(ms+int64(i), 10)+chunkExt)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create chunk: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create chunk: no free name after %d attempts", maxNameAttempts)
}

// recordedAt recovers the capture time encoded in a chunk file name
func recordedAt(path string) (time.Time, bool) {
	name := strings.TrimSuffix(filepath.Base(path), chunkExt)
	if !strings.HasPrefix(name, chunkPrefix) {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimPrefix(name, chunkPrefix), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// transcriptPath returns {dir}/transcriptions/{file}.txt for an audio file,
// keeping the audio extension so chunk_5.wav becomes chunk_5.wav.txt
func transcriptPath(audioPath string) string {
	return filepath.Join(filepath.Dir(audioPath), "transcriptions", filepath.Base(audioPath)+".txt")
}
