package domain

import (
	"strconv"
	"time"
)

// Retraction is a pending deletion of a delivered message.
type Retraction struct {
	ChatID    int64
	MessageID int64
	Due       time.Time
}

// Key identifies the retraction by chat and message.
func (r Retraction) Key() string {
	return RetractionKey(r.ChatID, r.MessageID)
}

// RetractionKey formats the (chat, message) pair as "<chat>/<message>".
func RetractionKey(chatID, messageID int64) string {
	return strconv.FormatInt(chatID, 10) + "/" + strconv.FormatInt(messageID, 10)
}
