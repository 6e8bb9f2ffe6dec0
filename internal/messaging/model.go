package messaging

import (
	"slices"
	"time"
)

type Conversation struct {
	ID                   string     `json:"id"`
	OrderID              *string    `json:"order_id,omitempty"`
	Participants         []string   `json:"participants"`
	DeletedBy            []string   `json:"deleted_by,omitempty"`
	PermanentlyDeleted   bool       `json:"permanently_deleted"`
	PermanentlyDeletedAt *time.Time `json:"permanently_deleted_at,omitempty"`
	PermanentlyDeletedBy *string    `json:"permanently_deleted_by,omitempty"`
	LastMessageAt        *time.Time `json:"last_message_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`

	// Filled for the participant listing only.
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// Others returns every participant except userID.
func (c *Conversation) Others(userID string) []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			out = append(out, p)
		}
	}
	return out
}

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	FileURL        string     `json:"file_url,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	FileType       string     `json:"file_type,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type StartRequest struct {
	ParticipantID string  `json:"participant_id" validate:"required,uuid"`
	OrderID       *string `json:"order_id" validate:"omitempty,uuid"`
}

type SendRequest struct {
	Content  string `json:"content" validate:"max=4000"`
	FileURL  string `json:"file_url" validate:"omitempty,url"`
	FileName string `json:"file_name" validate:"max=255"`
	FileType string `json:"file_type" validate:"max=100"`
	FileSize int64  `json:"file_size" validate:"gte=0"`
}

// Event is pushed to connected websocket clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventMessageNew  = "message_new"
	EventMessageRead = "message_read"
	EventPresence    = "presence"
)
