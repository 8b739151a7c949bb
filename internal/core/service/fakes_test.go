package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

// memRepo is an in-memory BatchRepository, GateRepository and
// RetractionRepository.
type memRepo struct {
	mu          sync.Mutex
	tokens      map[string]*domain.TokenRecord
	open        map[string]string
	premium     map[string]bool
	retractions map[string]domain.Retraction

	// failWith, when set, is returned by every call.
	failWith error
}

func newMemRepo() *memRepo {
	return &memRepo{
		tokens:      map[string]*domain.TokenRecord{},
		open:        map[string]string{},
		premium:     map[string]bool{},
		retractions: map[string]domain.Retraction{},
	}
}

func (m *memRepo) put(rec *domain.TokenRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[rec.ID] = rec.Clone()
}

func (m *memRepo) StartBatch(ctx context.Context, conversation string, rec *domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.open[conversation]; ok {
		return domain.ErrTokenConflict
	}
	if _, ok := m.tokens[rec.ID]; ok {
		return domain.ErrTokenConflict
	}
	m.tokens[rec.ID] = rec.Clone()
	m.open[conversation] = rec.ID
	return nil
}

func (m *memRepo) OpenBatch(ctx context.Context, conversation string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", false, m.failWith
	}
	id, ok := m.open[conversation]
	return id, ok, nil
}

func (m *memRepo) AppendToOpenBatch(ctx context.Context, conversation, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	id, ok := m.open[conversation]
	if !ok {
		return "", domain.ErrNoOpenBatch
	}
	m.tokens[id].Files = append(m.tokens[id].Files, ref)
	return id, nil
}

func (m *memRepo) TakeOpenBatch(ctx context.Context, conversation string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	id, ok := m.open[conversation]
	if !ok {
		return "", domain.ErrNoOpenBatch
	}
	delete(m.open, conversation)
	return id, nil
}

func (m *memRepo) GetToken(ctx context.Context, id string) (*domain.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	rec, ok := m.tokens[id]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return rec.Clone(), nil
}

func (m *memRepo) IsPremium(ctx context.Context, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	return m.premium[user], nil
}

func (m *memRepo) SaveRetraction(ctx context.Context, r domain.Retraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retractions[r.Key()] = r
	return nil
}

func (m *memRepo) DeleteRetraction(ctx context.Context, chatID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.retractions, domain.RetractionKey(chatID, messageID))
	return nil
}

func (m *memRepo) ListRetractions(ctx context.Context) ([]domain.Retraction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Retraction, 0, len(m.retractions))
	for _, r := range m.retractions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (m *memRepo) retractionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.retractions)
}

// memFiles is an in-memory FileStore.
type memFiles struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemFiles(refs ...string) *memFiles {
	f := &memFiles{blobs: map[string][]byte{}}
	for _, ref := range refs {
		f.blobs[ref] = []byte("content of " + ref)
	}
	return f
}

func (f *memFiles) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := "files/" + name
	f.blobs[ref] = data
	return ref, nil
}

func (f *memFiles) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", ref, errors.New("no such file"))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type sentFile struct {
	ChatID int64
	Kind   domain.FileKind
	Name   string
	Body   string
}

// fakeMessenger records every call.
type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int64
	texts   []string
	files   []sentFile
	deleted []string

	failSendFor map[string]bool // file names whose send fails
	deleteErr   error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100, failSendFor: map[string]bool{}}
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.texts = append(m.texts, text)
	return m.nextID, nil
}

func (m *fakeMessenger) SendFile(ctx context.Context, chatID int64, kind domain.FileKind, name string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSendFor[name] {
		return 0, errors.New("telegram: Bad Request: file is too big")
	}
	m.nextID++
	m.files = append(m.files, sentFile{ChatID: chatID, Kind: kind, Name: name, Body: string(data)})
	return m.nextID, nil
}

func (m *fakeMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, domain.RetractionKey(chatID, messageID))
	return m.deleteErr
}

func (m *fakeMessenger) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// fakeShortener returns short or err.
type fakeShortener struct {
	short string
	err   error
	calls []string
}

func (s *fakeShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	s.calls = append(s.calls, longURL)
	return s.short, s.err
}
