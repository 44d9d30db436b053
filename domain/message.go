package domain

import "time"

// Message is a persisted chat entry. The store assigns ID and Timestamp at
// append time; once appended a message never changes.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
