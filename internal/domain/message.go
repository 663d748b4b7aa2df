package domain

import "time"

// InboundMessage is one chat event delivered by the messaging platform.
// A message without a text body carries an empty Text.
type InboundMessage struct {
	UpdateID   int
	MessageID  int
	ChatID     ChatID
	SenderID   string
	Username   string
	Text       string
	ReceivedAt time.Time
}

// Chat commands recognised before any session state is touched.
const (
	CommandStart   = "/start"
	CommandRestart = "/restart"
)
