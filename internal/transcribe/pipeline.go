package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/model"
	"golang.org/x/sync/errgroup"
)

const wavMimeType = "audio/wav"

var (
	// ErrQueueFull indicates Submit found no room in the queue
	ErrQueueFull = errors.New("transcription queue full")

	// ErrStopped indicates the pipeline no longer accepts jobs
	ErrStopped = errors.New("transcription pipeline stopped")
)

// Job is one saved audio chunk waiting for recognition
type Job struct {
	Room    string
	Speaker string
	Path    string
}

// Sink receives every non-empty transcript
type Sink interface {
	SaveTranscript(ctx context.Context, t *model.Transcript) error
}

// SinkFunc adapts a plain function, such as a repository's Create, to Sink
type SinkFunc func(ctx context.Context, t *model.Transcript) error

// SaveTranscript calls f(ctx, t)
func (f SinkFunc) SaveTranscript(ctx context.Context, t *model.Transcript) error {
	return f(ctx, t)
}

// Config holds pipeline settings
type Config struct {
	Recognizer ai.Recognizer
	Sink       Sink // optional
	Workers    int  // Default: 4
	QueueSize  int  // Default: 64
	Language   string
	Logger     *slog.Logger
}

// Pipeline runs speech recognition on queued chunks with bounded
// concurrency. Submit never blocks the caller.
type Pipeline struct {
	recognizer ai.Recognizer
	sink       Sink
	workers    int
	language   string
	logger     *slog.Logger

	queue chan Job
	done  chan struct{}

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New creates a pipeline. Call Start before submitting jobs.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		recognizer: cfg.Recognizer,
		sink:       cfg.Sink,
		workers:    cfg.Workers,
		language:   cfg.Language,
		logger:     cfg.Logger.With("component", "transcribe"),
		queue:      make(chan Job, cfg.QueueSize),
		done:       make(chan struct{}),
	}
}

// Start launches the dispatcher. Jobs run with ctx.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	go p.dispatch(ctx)
	p.logger.Info("transcription pipeline started", "workers", p.workers, "queue_size", cap(p.queue))
}

// Submit enqueues a job without blocking
func (p *Pipeline) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued jobs not yet dispatched
func (p *Pipeline) Pending() int {
	return len(p.queue)
}

// Stop rejects new jobs, lets queued and running ones finish and waits
// for them
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	close(p.queue)
	p.mu.Unlock()

	if started {
		<-p.done
	}
	p.logger.Info("transcription pipeline stopped")
}

func (p *Pipeline) dispatch(ctx context.Context) {
	defer close(p.done)

	// A failed job is logged, it does not cancel its siblings
	var g errgroup.Group
	g.SetLimit(p.workers)

	for job := range p.queue {
		g.Go(func() error {
			if _, err := p.Process(ctx, job); err != nil {
				p.logger.Error("transcription failed",
					"room", job.Room,
					"file", filepath.Base(job.Path),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Process recognizes one chunk synchronously, writes the text file and
// forwards the transcript to the sink. It returns nil, nil when the chunk
// holds no speech.
func (p *Pipeline) Process(ctx context.Context, job Job) (*model.Transcript, error) {
	audio, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, fmt.Errorf("read chunk: %w", err)
	}

	text, err := p.recognizer.Transcribe(ctx, audio, wavMimeType, p.language)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		p.logger.Info("no speech recognized", "room", job.Room, "file", filepath.Base(job.Path))
		return nil, nil
	}

	out := transcriptPath(job.Path)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("create transcription dir: %w", err)
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write transcription: %w", err)
	}

	created, ok := recordedAt(job.Path)
	if !ok {
		created = time.Now()
	}
	t := &model.Transcript{
		Room:      job.Room,
		Speaker:   job.Speaker,
		File:      filepath.Base(job.Path),
		Text:      text,
		CreatedOn: created,
	}

	if p.sink != nil {
		if err := p.sink.SaveTranscript(ctx, t); err != nil {
			return nil, fmt.Errorf("store transcript: %w", err)
		}
	}

	p.logger.Debug("chunk transcribed", "room", job.Room, "file", t.File, "chars", len([]rune(text)))
	return t, nil
}

// RunDirectory transcribes every .wav file in dir, treating the directory
// name as the room. It returns how many files produced text; per-file
// failures are joined into the error.
func (p *Pipeline) RunDirectory(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), chunkExt) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	room := filepath.Base(filepath.Clean(dir))

	var (
		mu    sync.Mutex
		count int
		errs  []error
	)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, path := range files {
		g.Go(func() error {
			t, err := p.Process(ctx, Job{Room: room, Path: path})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			case t != nil:
				count++
			}
			return nil
		})
	}
	_ = g.Wait()

	return count, errors.Join(errs...)
}
