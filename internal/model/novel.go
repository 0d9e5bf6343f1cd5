package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Novel is a draft that the generation steps fill in one at a time
type Novel struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"owner_id"`
	Title        string      `json:"title"`
	Genres       []string    `json:"genres"`
	Worldview    string      `json:"worldview,omitempty"`
	Synopsis     string      `json:"synopsis,omitempty"`
	Characters   []Character `json:"characters"`
	EpisodeCount int         `json:"episode_count"`
	Completed    bool        `json:"completed"`
	CreatedOn    time.Time   `json:"created_on"`
	UpdatedOn    time.Time   `json:"updated_on"`
}

// Genre returns the genres as one comma-separated string for prompts
func (n *Novel) Genre() string {
	return strings.Join(n.Genres, ", ")
}

// Character is one entry of a novel's cast
type Character struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Age     string `json:"age"`
	Sex     string `json:"sex"`
	Job     string `json:"job"`
	Profile string `json:"profile"`
}

// Episode is one generated chapter
type Episode struct {
	ID        string    `json:"id"`
	NovelID   string    `json:"novel_id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
}

// Business constraints
const (
	MaxNovelTitleLength = 100
	MaxGenresPerNovel   = 5
	MaxDirectionLength  = 1000
)

// CreateNovelRequest represents a request to start a novel draft
type CreateNovelRequest struct {
	Title  string   `json:"title"`
	Genres []string `json:"genres"`
}

// Validate validates the create novel request
func (r *CreateNovelRequest) Validate() []FieldError {
	var errors []FieldError

	title := strings.TrimSpace(r.Title)
	if title == "" {
		errors = append(errors, FieldError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(title) > MaxNovelTitleLength {
		errors = append(errors, FieldError{Field: "title", Message: "title must be 100 characters or less"})
	}
	if len(r.Genres) == 0 {
		errors = append(errors, FieldError{Field: "genres", Message: "at least one genre is required"})
	} else if len(r.Genres) > MaxGenresPerNovel {
		errors = append(errors, FieldError{Field: "genres", Message: "at most 5 genres are allowed"})
	}
	for _, g := range r.Genres {
		if strings.TrimSpace(g) == "" {
			errors = append(errors, FieldError{Field: "genres", Message: "genres must not be blank"})
			break
		}
	}

	return errors
}

// WriteEpisodeRequest steers the next chapter
type WriteEpisodeRequest struct {
	Direction string `json:"direction,omitempty"`
}

// Validate validates the write episode request
func (r *WriteEpisodeRequest) Validate() []FieldError {
	if utf8.RuneCountInString(r.Direction) > MaxDirectionLength {
		return []FieldError{{Field: "direction", Message: "direction must be 1000 characters or less"}}
	}
	return nil
}
