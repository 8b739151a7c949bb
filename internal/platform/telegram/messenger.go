package telegram

import (
	"context"
	"io"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

// Messenger exposes a Client through the core messaging port.
type Messenger struct {
	client *Client
}

// NewMessenger wraps client.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

// SendText posts plain text.
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	msg, err := m.client.SendMessage(ctx, chatID, text, "")
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendFile uploads r with the send method matching kind.
func (m *Messenger) SendFile(ctx context.Context, chatID int64, kind domain.FileKind, name string, r io.Reader) (int64, error) {
	send := m.client.SendDocument
	switch kind {
	case domain.FileKindPhoto:
		send = m.client.SendPhoto
	case domain.FileKindVideo:
		send = m.client.SendVideo
	case domain.FileKindAnimation:
		send = m.client.SendAnimation
	case domain.FileKindAudio:
		send = m.client.SendAudio
	}

	msg, err := send(ctx, chatID, name, r)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// DeleteMessage deletes a message.
func (m *Messenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return m.client.DeleteMessage(ctx, chatID, messageID)
}
