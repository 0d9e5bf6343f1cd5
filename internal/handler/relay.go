package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/momoso/api/internal/middleware"
	"github.com/momoso/api/internal/model"
	"github.com/momoso/api/internal/relay"
	"github.com/momoso/api/internal/transcribe"
)

// maxAudioUpload caps a single recorded chunk
const maxAudioUpload = 10 << 20

// RelayHub is the signaling hub behind /v1/relay/ws
type RelayHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, room, userID string)
	Stats() relay.Stats
}

// ChunkSaver stores uploaded audio chunks
type ChunkSaver interface {
	Save(room string, r io.Reader) (string, error)
}

// TranscriptionQueue accepts saved chunks for speech-to-text
type TranscriptionQueue interface {
	Submit(job transcribe.Job) error
	Pending() int
}

// RelayHandler handles the signaling relay and audio upload endpoints
type RelayHandler struct {
	hub    RelayHub
	chunks ChunkSaver
	queue  TranscriptionQueue
	logger *slog.Logger
}

// RelayHandlerConfig holds the relay handler dependencies
type RelayHandlerConfig struct {
	Hub    RelayHub
	Chunks ChunkSaver
	Queue  TranscriptionQueue
	Logger *slog.Logger
}

// NewRelayHandler creates a new relay handler
func NewRelayHandler(cfg RelayHandlerConfig) *RelayHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RelayHandler{
		hub:    cfg.Hub,
		chunks: cfg.Chunks,
		queue:  cfg.Queue,
		logger: cfg.Logger,
	}
}

// RelayStatus is the body of GET /v1/relay/status
type RelayStatus struct {
	relay.Stats
	PendingTranscriptions int `json:"pending_transcriptions"`
}

// UploadResult is the body of POST /v1/relay/audio/{room}
type UploadResult struct {
	Status string `json:"status"`
	File   string `json:"file"`
	Queued bool   `json:"queued"`
}

func invalidRoom(w http.ResponseWriter) {
	WriteError(w, model.NewValidationError([]model.FieldError{
		{Field: "room", Message: transcribe.ErrInvalidRoom.Error()},
	}))
}

// Connect handles GET /v1/relay/ws/{room}. Authentication is optional;
// signed-in users are tagged on the connection.
func (h *RelayHandler) Connect(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if !transcribe.ValidRoom(room) {
		invalidRoom(w)
		return
	}
	h.hub.ServeWS(w, r, room, middleware.GetUserID(r.Context()))
}

// Status handles GET /v1/relay/status
func (h *RelayHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := RelayStatus{Stats: h.hub.Stats()}
	if h.queue != nil {
		status.PendingTranscriptions = h.queue.Pending()
	}
	WriteData(w, http.StatusOK, status, map[string]string{"self": "/v1/relay/status"})
}

// UploadAudio handles POST /v1/relay/audio/{room}. The chunk is written to
// disk first; a full transcription queue leaves it there for a later
// batch run instead of failing the upload.
func (h *RelayHandler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if !transcribe.ValidRoom(room) {
		invalidRoom(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUpload)
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, model.NewPayloadTooLargeError(maxAudioUpload))
			return
		}
		WriteError(w, model.NewBadRequestError("expected multipart form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, model.NewValidationError([]model.FieldError{
			{Field: "audio", Message: "audio file is required"},
		}))
		return
	}
	defer file.Close()

	path, err := h.chunks.Save(room, file)
	if err != nil {
		writeServiceError(w, r, err, "save audio chunk")
		return
	}

	result := UploadResult{Status: "success", File: filepath.Base(path)}
	if h.queue != nil {
		err := h.queue.Submit(transcribe.Job{
			Room:    room,
			Speaker: middleware.GetUserID(r.Context()),
			Path:    path,
		})
		if err != nil {
			h.logger.Warn("transcription not queued", "room", room, "file", result.File, "error", err)
		} else {
			result.Queued = true
		}
	}

	WriteJSON(w, http.StatusOK, result)
}
