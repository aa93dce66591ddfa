package models

import (
	"strings"
	"time"
)

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// HasText reports whether query occurs in the note's title or content.
func (n *Note) HasText(query string) bool {
	return strings.Contains(n.Title, query) || strings.Contains(n.Content, query)
}
