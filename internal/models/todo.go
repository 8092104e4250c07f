package models

// Todo is a one-off task, independent of habits
type Todo struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Done        bool    `json:"done"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt"`
}
