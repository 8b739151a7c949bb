package telegram

import (
	"encoding/json"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

// response is the envelope every Bot API call returns.
type response struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result"`
	ErrorCode   int                 `json:"error_code"`
	Description string              `json:"description"`
	Parameters  *responseParameters `json:"parameters"`
}

type responseParameters struct {
	RetryAfter      int   `json:"retry_after"`
	MigrateToChatID int64 `json:"migrate_to_chat_id"`
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
}

// Update is one entry from getUpdates. Only message updates are requested.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming or sent message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`

	Document  *FileMeta   `json:"document,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Video     *FileMeta   `json:"video,omitempty"`
	Animation *FileMeta   `json:"animation,omitempty"`
	Audio     *FileMeta   `json:"audio,omitempty"`
}

// FileMeta describes a document, video, animation or audio attachment.
type FileMeta struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// PhotoSize is one resolution of a photo.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// File is the result of getFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// Attachment is the single file carried by a message, normalized across
// media kinds.
type Attachment struct {
	FileID   string
	UniqueID string
	Name     string
	Kind     domain.FileKind
	Size     int64
}

// Attachment returns the file the message carries, if any. Animations
// are checked before documents because Telegram fills both for GIFs.
// For photos the largest size is chosen.
func (m *Message) Attachment() (*Attachment, bool) {
	meta := func(f *FileMeta, kind domain.FileKind) (*Attachment, bool) {
		return &Attachment{
			FileID:   f.FileID,
			UniqueID: f.FileUniqueID,
			Name:     f.FileName,
			Kind:     kind,
			Size:     f.FileSize,
		}, true
	}

	switch {
	case m.Animation != nil:
		return meta(m.Animation, domain.FileKindAnimation)
	case m.Document != nil:
		return meta(m.Document, domain.FileKindDocument)
	case m.Video != nil:
		return meta(m.Video, domain.FileKindVideo)
	case m.Audio != nil:
		return meta(m.Audio, domain.FileKindAudio)
	case len(m.Photo) > 0:
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return &Attachment{
			FileID:   best.FileID,
			UniqueID: best.FileUniqueID,
			Kind:     domain.FileKindPhoto,
			Size:     best.FileSize,
		}, true
	}
	return nil, false
}
