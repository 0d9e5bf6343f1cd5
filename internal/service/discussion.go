package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/model"
)

// DiscussionRepository defines the interface for discussion storage
type DiscussionRepository interface {
	Create(ctx context.Context, d *model.Discussion) error
	GetByID(ctx context.Context, id string) (*model.Discussion, error)
	ListByNovel(ctx context.Context, novelID string) ([]*model.Discussion, error)
	AddParticipant(ctx context.Context, id, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, id, userID string) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]*model.Discussion, error)
	SetStatus(ctx context.Context, id string, status model.DiscussionStatus) error
}

// NoteRepository defines the interface for meeting note storage
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	ListByDiscussion(ctx context.Context, discussionID string) ([]*model.Note, error)
}

// TranscriptRepository defines the interface for transcript storage
type TranscriptRepository interface {
	Create(ctx context.Context, t *model.Transcript) error
	ListByRoom(ctx context.Context, room string) ([]*model.Transcript, error)
	CountByRoom(ctx context.Context, room string) (int, error)
}

// DiscussionService schedules discussions about novels, tracks who takes
// part and turns room transcripts into meeting notes
type DiscussionService struct {
	discussionRepo DiscussionRepository
	noteRepo       NoteRepository
	transcriptRepo TranscriptRepository
	novelRepo      NovelRepository
	generator      ai.Generator
	logger         *slog.Logger
	now            func() time.Time
}

// DiscussionServiceConfig holds configuration for the discussion service
type DiscussionServiceConfig struct {
	DiscussionRepo DiscussionRepository
	NoteRepo       NoteRepository
	TranscriptRepo TranscriptRepository
	NovelRepo      NovelRepository
	Generator      ai.Generator
	Logger         *slog.Logger
	Now            func() time.Time // Default: time.Now
}

// NewDiscussionService creates a new discussion service
func NewDiscussionService(cfg DiscussionServiceConfig) *DiscussionService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &DiscussionService{
		discussionRepo: cfg.DiscussionRepo,
		noteRepo:       cfg.NoteRepo,
		transcriptRepo: cfg.TranscriptRepo,
		novelRepo:      cfg.NovelRepo,
		generator:      cfg.Generator,
		logger:         cfg.Logger,
		now:            cfg.Now,
	}
}

// Create schedules a discussion; the creator joins automatically. The
// request must already be validated.
func (s *DiscussionService) Create(ctx context.Context, creatorID string, req model.CreateDiscussionRequest) (*model.Discussion, error) {
	novel, err := s.novelRepo.GetByID(ctx, req.NovelID)
	if err != nil {
		return nil, err
	}
	if novel == nil {
		return nil, ErrNovelNotFound
	}

	d := &model.Discussion{
		NovelID:         novel.ID,
		CreatorID:       creatorID,
		Topic:           strings.TrimSpace(req.Topic),
		Category:        strings.TrimSpace(req.Category),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
		Participants:    []string{creatorID},
		Status:          model.DiscussionStatusScheduled,
	}
	if err := s.discussionRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get retrieves a discussion by ID
func (s *DiscussionService) Get(ctx context.Context, id string) (*model.Discussion, error) {
	d, err := s.discussionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDiscussionNotFound
	}
	return d, nil
}

// ListByNovel returns the discussions scheduled for a novel
func (s *DiscussionService) ListByNovel(ctx context.Context, novelID string) ([]*model.Discussion, error) {
	return s.discussionRepo.ListByNovel(ctx, novelID)
}

// Join adds userID to the discussion
func (s *DiscussionService) Join(ctx context.Context, userID, id string) (*model.Discussion, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.joinBlocker(d, userID); err != nil {
		return nil, err
	}

	added, err := s.discussionRepo.AddParticipant(ctx, d.ID, userID)
	if err != nil {
		return nil, err
	}
	if !added {
		// Lost a race; re-read to report why
		d, err = s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.joinBlocker(d, userID); err != nil {
			return nil, err
		}
		return nil, ErrDiscussionFull
	}

	return s.Get(ctx, id)
}

func (s *DiscussionService) joinBlocker(d *model.Discussion, userID string) error {
	switch {
	case d.HasParticipant(userID):
		return ErrAlreadyParticipating
	case d.IsEnded(s.now()):
		return ErrDiscussionEnded
	case d.IsFull():
		return ErrDiscussionFull
	}
	return nil
}

// Leave removes userID from the discussion
func (s *DiscussionService) Leave(ctx context.Context, userID, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.discussionRepo.RemoveParticipant(ctx, d.ID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotParticipating
	}
	return nil
}

// Notes lists the meeting notes of a discussion
func (s *DiscussionService) Notes(ctx context.Context, id string) ([]*model.Note, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.noteRepo.ListByDiscussion(ctx, d.ID)
}

// Summarize turns the room transcript into a meeting note. Only
// participants may ask for it.
func (s *DiscussionService) Summarize(ctx context.Context, userID, id string) (*model.Note, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.HasParticipant(userID) {
		return nil, ErrNotParticipating
	}
	return s.summarize(ctx, d)
}

func (s *DiscussionService) summarize(ctx context.Context, d *model.Discussion) (*model.Note, error) {
	transcripts, err := s.transcriptRepo.ListByRoom(ctx, d.Room())
	if err != nil {
		return nil, err
	}

	minutes := formatMinutes(transcripts)
	if minutes == "" {
		return nil, ErrNothingToSummarize
	}

	prompt := fmt.Sprintf("## Discussion topic: %s\n## Transcript\n%s\n", d.Topic, minutes)
	content, err := s.generator.Generate(ctx, meetingNotesInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate meeting notes: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("generate meeting notes: %w", ai.ErrEmptyResponse)
	}

	note := &model.Note{DiscussionID: d.ID, Content: content}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// SaveTranscript stores a recognized chunk for its room
func (s *DiscussionService) SaveTranscript(ctx context.Context, t *model.Transcript) error {
	return s.transcriptRepo.Create(ctx, t)
}

// CloseExpired marks every discussion past its end time as ended and
// writes notes for those that have a transcript. It returns how many
// discussions were closed.
func (s *DiscussionService) CloseExpired(ctx context.Context) (int, error) {
	expired, err := s.discussionRepo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	var errs []error
	closed := 0
	for _, d := range expired {
		if err := s.discussionRepo.SetStatus(ctx, d.ID, model.DiscussionStatusEnded); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.ID, err))
			continue
		}
		closed++

		count, err := s.transcriptRepo.CountByRoom(ctx, d.Room())
		if err != nil {
			errs = append(errs, fmt.Errorf("count transcripts %s: %w", d.ID, err))
			continue
		}
		if count == 0 {
			continue
		}

		if _, err := s.summarize(ctx, d); err != nil && !errors.Is(err, ErrNothingToSummarize) {
			s.logger.Warn("failed to summarize ended discussion",
				"discussion_id", d.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("summarize %s: %w", d.ID, err))
		}
	}

	return closed, errors.Join(errs...)
}

// formatMinutes renders transcripts as "speaker: text" lines, skipping
// empty chunks
func formatMinutes(transcripts []*model.Transcript) string {
	var b strings.Builder
	for _, t := range transcripts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		speaker := t.Speaker
		if speaker == "" {
			speaker = "unknown"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, text)
	}
	return strings.TrimSpace(b.String())
}
