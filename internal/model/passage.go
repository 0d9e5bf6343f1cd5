package model

// Passage is an embedded slice of a novel's episodes used for retrieval
type Passage struct {
	ID        string    `json:"id"`
	NovelID   string    `json:"novel_id"`
	EpisodeID string    `json:"episode_id"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Score     float64   `json:"score,omitempty"`
}
