package model

import "time"

// ChatRequest represents one incoming user message
type ChatRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// ChatMessage is one persisted side of a conversation turn
type ChatMessage struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"` // "user" | "assistant"
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TurnResult is the final outcome of one conversation turn: the full
// assistant text, the merged preference set, and the grounding set used
// (possibly empty).
type TurnResult struct {
	Answer      string        `json:"answer"`
	Preferences Preferences   `json:"preferences"`
	Context     []ContextItem `json:"context,omitempty"`
	Grounded    bool          `json:"grounded"` // false = no catalog search was performed
	Took        int64         `json:"took_ms"`
}
