package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DiscussionStatus represents the lifecycle state of a discussion
type DiscussionStatus string

const (
	DiscussionStatusScheduled DiscussionStatus = "scheduled"
	DiscussionStatusEnded     DiscussionStatus = "ended"
)

// Discussion is a scheduled voice discussion about a novel
type Discussion struct {
	ID              string           `json:"id"`
	NovelID         string           `json:"novel_id"`
	CreatorID       string           `json:"creator_id"`
	Topic           string           `json:"topic"`
	Category        string           `json:"category,omitempty"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time"`
	MaxParticipants int              `json:"max_participants"`
	Participants    []string         `json:"participants"`
	Status          DiscussionStatus `json:"status"`
	CreatedOn       time.Time        `json:"created_on"`
	UpdatedOn       time.Time        `json:"updated_on"`
}

// HasParticipant reports whether userID has joined
func (d *Discussion) HasParticipant(userID string) bool {
	for _, p := range d.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the participant cap is reached
func (d *Discussion) IsFull() bool {
	return len(d.Participants) >= d.MaxParticipants
}

// IsEnded reports whether the discussion is over at now
func (d *Discussion) IsEnded(now time.Time) bool {
	return d.Status == DiscussionStatusEnded || !now.Before(d.EndTime)
}

// Room returns the relay room name, which is the record ID without its
// table prefix
func (d *Discussion) Room() string {
	return RoomFromID(d.ID)
}

// RoomFromID strips the "table:" prefix from a record ID
func RoomFromID(id string) string {
	if i := strings.IndexByte(id, ':'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Note is a generated meeting summary
type Note struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	Content      string    `json:"content"`
	CreatedOn    time.Time `json:"created_on"`
}

// Transcript is one recognized audio chunk in a relay room
type Transcript struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Speaker   string    `json:"speaker,omitempty"`
	File      string    `json:"file"`
	Text      string    `json:"text"`
	CreatedOn time.Time `json:"created_on"`
}

// Business constraints
const (
	MinDiscussionParticipants = 2
	MaxDiscussionParticipants = 50
	MaxTopicLength            = 200
	MaxCategoryLength         = 50
	MaxAssistantQueryLength   = 2000
)

// CreateDiscussionRequest represents a request to schedule a discussion
type CreateDiscussionRequest struct {
	NovelID         string    `json:"novel_id"`
	Topic           string    `json:"topic"`
	Category        string    `json:"category,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	MaxParticipants int       `json:"max_participants"`
}

// Validate validates the create discussion request
func (r *CreateDiscussionRequest) Validate() []FieldError {
	var errors []FieldError

	if r.NovelID == "" {
		errors = append(errors, FieldError{Field: "novel_id", Message: "novel_id is required"})
	}
	topic := strings.TrimSpace(r.Topic)
	if topic == "" {
		errors = append(errors, FieldError{Field: "topic", Message: "topic is required"})
	} else if utf8.RuneCountInString(topic) > MaxTopicLength {
		errors = append(errors, FieldError{Field: "topic", Message: "topic must be 200 characters or less"})
	}
	if utf8.RuneCountInString(r.Category) > MaxCategoryLength {
		errors = append(errors, FieldError{Field: "category", Message: "category must be 50 characters or less"})
	}
	if r.StartTime.IsZero() {
		errors = append(errors, FieldError{Field: "start_time", Message: "start_time is required"})
	}
	if r.EndTime.IsZero() {
		errors = append(errors, FieldError{Field: "end_time", Message: "end_time is required"})
	} else if !r.StartTime.IsZero() && !r.EndTime.After(r.StartTime) {
		errors = append(errors, FieldError{Field: "end_time", Message: "end_time must be after start_time"})
	}
	if r.MaxParticipants < MinDiscussionParticipants || r.MaxParticipants > MaxDiscussionParticipants {
		errors = append(errors, FieldError{Field: "max_participants", Message: "max_participants must be between 2 and 50"})
	}

	return errors
}

// AssistantRequest carries a topic query or a claim to check
type AssistantRequest struct {
	Query string `json:"query"`
}

// Validate validates the assistant request
func (r *AssistantRequest) Validate() []FieldError {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return []FieldError{{Field: "query", Message: "query is required"}}
	}
	if utf8.RuneCountInString(q) > MaxAssistantQueryLength {
		return []FieldError{{Field: "query", Message: "query must be 2000 characters or less"}}
	}
	return nil
}

// AssistantAnswer is the generated reply with the passages it drew on
type AssistantAnswer struct {
	Answer   string     `json:"answer"`
	Passages []*Passage `json:"passages"`
}
