package service

import (
	"context"
	"io"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

// BatchRepository persists token records and open-batch markers.
type BatchRepository interface {
	// StartBatch creates rec and marks it open for conversation atomically.
	StartBatch(ctx context.Context, conversation string, rec *domain.TokenRecord) error

	// OpenBatch returns the open token id for conversation, if any.
	OpenBatch(ctx context.Context, conversation string) (string, bool, error)

	// AppendToOpenBatch appends ref to the open record in one transaction.
	// Returns domain.ErrNoOpenBatch if nothing is open.
	AppendToOpenBatch(ctx context.Context, conversation, ref string) (string, error)

	// TakeOpenBatch clears the marker and returns the id it held.
	// Returns domain.ErrNoOpenBatch if nothing is open.
	TakeOpenBatch(ctx context.Context, conversation string) (string, error)
}

// GateRepository is the read side the access gate consults.
type GateRepository interface {
	// GetToken returns domain.ErrTokenNotFound for unknown ids.
	GetToken(ctx context.Context, id string) (*domain.TokenRecord, error)

	IsPremium(ctx context.Context, user string) (bool, error)
}

// RetractionRepository persists pending retractions across restarts.
type RetractionRepository interface {
	SaveRetraction(ctx context.Context, r domain.Retraction) error
	DeleteRetraction(ctx context.Context, chatID, messageID int64) error
	ListRetractions(ctx context.Context) ([]domain.Retraction, error)
}

// FileOpener reads stored file contents by reference.
type FileOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FileStore stores file contents and hands back a reference.
type FileStore interface {
	FileOpener
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// Messenger is the messaging platform as seen by the core.
type Messenger interface {
	// SendText posts a text message and returns its message id.
	SendText(ctx context.Context, chatID int64, text string) (int64, error)

	// SendFile posts a file using the send operation matching kind.
	SendFile(ctx context.Context, chatID int64, kind domain.FileKind, name string, r io.Reader) (int64, error)

	// DeleteMessage removes a previously sent message.
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Shortener turns a long URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}
