package domain

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// Token constants.
const (
	// TokenIDPrefix is the fixed prefix of every token id.
	TokenIDPrefix = "Z"

	// TransportNamespace is prepended to the id before transport encoding so
	// decoding can tell a minted link from arbitrary input.
	TransportNamespace = "get-"

	// DefaultTTL is the delivery window measured from record creation.
	DefaultTTL = 6 * time.Hour

	// DefaultRetractionDelay is the delay between sending a file and deleting it.
	DefaultRetractionDelay = 15 * time.Minute

	// ulidEntropyOffset skips the 10-character timestamp part of a ULID.
	ulidEntropyOffset = 10
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateTokenID returns a new token id.
// Format: Z{unix_seconds}-{16 lowercase ULID entropy chars}.
//
// The entropy source is monotonic, so two ids minted within the same
// millisecond by this process still differ.
func GenerateTokenID() (string, error) {
	return generateTokenID(time.Now())
}

func generateTokenID(now time.Time) (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", ErrInternalServer.WithCause(err)
	}

	suffix := strings.ToLower(id.String()[ulidEntropyOffset:])
	return TokenIDPrefix + strconv.FormatInt(now.Unix(), 10) + "-" + suffix, nil
}

// EncodeToken wraps a token id into its transport string: unpadded
// base64url, which fits Telegram's start parameter alphabet [A-Za-z0-9_-].
func EncodeToken(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(TransportNamespace + id))
}

// DecodeToken reverses EncodeToken. Padded input, as minted by the earlier
// bot, is also accepted.
// It reports false for anything that is not canonical base64url, not
// UTF-8, lacks the namespace prefix or carries an empty id. It never panics.
func DecodeToken(s string) (string, bool) {
	if s == "" || strings.IndexFunc(s, notTransportRune) >= 0 {
		return "", false
	}

	enc := base64.RawURLEncoding
	if strings.HasSuffix(s, "=") {
		enc = base64.URLEncoding
	}
	raw, err := enc.Strict().DecodeString(s)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}

	id, ok := strings.CutPrefix(string(raw), TransportNamespace)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func notTransportRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return false
	case r == '-', r == '_', r == '=':
		return false
	default:
		return true
	}
}

// TokenRecord is a batch of files published under one token.
type TokenRecord struct {
	// ID is the token id.
	ID string

	// Created is when the batch was opened.
	Created time.Time

	// Files holds file references in upload order.
	Files []string
}

// NewTokenRecord creates an empty record.
func NewTokenRecord(id string, created time.Time) *TokenRecord {
	return &TokenRecord{
		ID:      id,
		Created: created,
		Files:   []string{},
	}
}

// Age returns how long ago the record was created.
func (r *TokenRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Created)
}

// IsExpired reports whether the record is past the delivery window.
// A record exactly ttl old is still valid.
func (r *TokenRecord) IsExpired(now time.Time, ttl time.Duration) bool {
	return r.Age(now) > ttl
}

// ExpiresAt returns the last instant at which the record is deliverable.
func (r *TokenRecord) ExpiresAt(ttl time.Duration) time.Time {
	return r.Created.Add(ttl)
}

// Clone returns a deep copy.
func (r *TokenRecord) Clone() *TokenRecord {
	files := make([]string, len(r.Files))
	copy(files, r.Files)
	return &TokenRecord{
		ID:      r.ID,
		Created: r.Created,
		Files:   files,
	}
}
