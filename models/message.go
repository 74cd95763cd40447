package models

// Message is an input unit for filtering: a whisper, a comment or a chat line.
type Message struct {
	ID       int64  `json:"id"`
	AuthorID string `json:"author_id,omitempty"`
	Content  string `json:"content"`
}
