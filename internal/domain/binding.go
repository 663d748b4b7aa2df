// Package domain contains core domain types for threadrelay.
package domain

import (
	"strconv"
	"time"
)

// ChatID identifies one chat conversation. It is used verbatim as the
// session-store key.
type ChatID string

// ChatIDFromInt formats a numeric platform chat id.
func ChatIDFromInt(id int64) ChatID {
	return ChatID(strconv.FormatInt(id, 10))
}

// Int64 parses the chat id back into the platform's numeric form.
func (c ChatID) Int64() (int64, error) {
	return strconv.ParseInt(string(c), 10, 64)
}

func (c ChatID) String() string {
	return string(c)
}

// ThreadBinding maps a chat to the remote assistant thread currently in use.
// A binding is never edited in place: a reset removes it and the next turn
// creates a fresh one.
type ThreadBinding struct {
	ChatID    ChatID    `json:"chat_id"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
