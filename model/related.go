package model

import "time"

// Collections holding documents owned by a user. Removing a user cascades to all of them.
const (
	CollectionUsers          = "users"
	CollectionChatHistories  = "chat_histories"
	CollectionGptAssignments = "user_gpt_assignments"
	CollectionFavorites      = "user_favorites"
)

// ChatHistory is a stored conversation belonging to a user
type ChatHistory struct {
	Key       string    `json:"_key,omitempty"`
	UserID    string    `json:"user_id"`
	GptID     string    `json:"gpt_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GptAssignment links a user to a GPT they may use
type GptAssignment struct {
	Key        string    `json:"_key,omitempty"`
	UserID     string    `json:"user_id"`
	GptID      string    `json:"gpt_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Favorite marks a GPT as a user's favorite
type Favorite struct {
	Key       string    `json:"_key,omitempty"`
	UserID    string    `json:"user_id"`
	GptID     string    `json:"gpt_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DeletionResult reports what a cascading user removal deleted
type DeletionResult struct {
	ChatHistory    int  `json:"chatHistory"`
	GptAssignments int  `json:"gptAssignments"`
	Favorites      int  `json:"favorites"`
	User           bool `json:"user"`
}
