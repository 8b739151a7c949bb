package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
)

// Key prefixes.
const (
	prefixToken   = "token/"
	prefixOpen    = "open/"
	prefixPremium = "premium/"
	prefixRetract = "retract/"
)

// tokenValue is the persisted form of a token record.
// Created is fractional epoch seconds, matching the legacy tokens.json. A
// float64 loses sub-microsecond precision at current epochs, so CreatedNanos
// carries the exact instant; records without it fall back to Created.
type tokenValue struct {
	Created      float64  `json:"created"`
	CreatedNanos int64    `json:"created_ns,omitempty"`
	Files        []string `json:"files"`
}

type retractionValue struct {
	Chat    int64 `json:"chat"`
	Message int64 `json:"message"`
	Due     int64 `json:"due"`
}

// RecordStore persists token records, open-batch markers, the premium set
// and pending retractions on a KVEngine.
type RecordStore struct {
	kv KVEngine
}

// RecordStats summarizes the store contents.
type RecordStats struct {
	Tokens             int
	OpenBatches        int
	Premium            int
	PendingRetractions int
}

// NewRecordStore creates a RecordStore over kv.
func NewRecordStore(kv KVEngine) *RecordStore {
	return &RecordStore{kv: kv}
}

func tokenKey(id string) []byte { return []byte(prefixToken + id) }

func openKey(conversation string) []byte { return []byte(prefixOpen + conversation) }

func premiumKey(user string) []byte { return []byte(prefixPremium + user) }

func retractKey(chatID, messageID int64) []byte {
	return []byte(prefixRetract + domain.RetractionKey(chatID, messageID))
}

func encodeTime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// decodeTime reads fractional epoch seconds at microsecond resolution,
// the precision the legacy files were written with.
func decodeTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	micros := int64(math.Round(frac * 1e6))
	return time.Unix(int64(whole), micros*int64(time.Microsecond))
}

func encodeToken(rec *domain.TokenRecord) ([]byte, error) {
	files := rec.Files
	if files == nil {
		files = []string{}
	}
	return json.Marshal(tokenValue{
		Created:      encodeTime(rec.Created),
		CreatedNanos: rec.Created.UnixNano(),
		Files:        files,
	})
}

func decodeToken(id string, raw []byte) (*domain.TokenRecord, error) {
	var v tokenValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode token %q: %w", id, err)
	}
	if v.Files == nil {
		v.Files = []string{}
	}
	created := decodeTime(v.Created)
	if v.CreatedNanos != 0 {
		created = time.Unix(0, v.CreatedNanos)
	}
	return &domain.TokenRecord{ID: id, Created: created, Files: v.Files}, nil
}

// storageErr classifies err. Domain errors pass through untouched.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.ErrStorageError.WithCause(err)
}

// GetToken loads a token record.
// Returns domain.ErrTokenNotFound if no record has that id.
func (s *RecordStore) GetToken(ctx context.Context, id string) (*domain.TokenRecord, error) {
	raw, err := s.kv.Get(ctx, tokenKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrTokenNotFound.WithDetails(id)
		}
		return nil, storageErr(err)
	}
	rec, err := decodeToken(id, raw)
	if err != nil {
		return nil, storageErr(err)
	}
	return rec, nil
}

// PutToken inserts a new record. It never overwrites: an existing id
// yields domain.ErrTokenConflict.
func (s *RecordStore) PutToken(ctx context.Context, rec *domain.TokenRecord) error {
	return storageErr(s.kv.Update(ctx, func(txn KVTxn) error {
		return putTokenTxn(txn, rec)
	}))
}

func putTokenTxn(txn KVTxn, rec *domain.TokenRecord) error {
	if _, err := txn.Get(tokenKey(rec.ID)); err == nil {
		return domain.ErrTokenConflict.WithDetails(rec.ID)
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	raw, err := encodeToken(rec)
	if err != nil {
		return err
	}
	return txn.Set(tokenKey(rec.ID), raw)
}

// UpdateToken applies fn to the stored record and writes the result back
// in the same transaction.
func (s *RecordStore) UpdateToken(ctx context.Context, id string, fn func(*domain.TokenRecord) error) (*domain.TokenRecord, error) {
	var updated *domain.TokenRecord
	err := s.kv.Update(ctx, func(txn KVTxn) error {
		rec, err := getTokenTxn(txn, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
		raw, err := encodeToken(rec)
		if err != nil {
			return err
		}
		updated = rec
		return txn.Set(tokenKey(id), raw)
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return updated, nil
}

func getTokenTxn(txn KVTxn, id string) (*domain.TokenRecord, error) {
	raw, err := txn.Get(tokenKey(id))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, domain.ErrTokenNotFound.WithDetails(id)
		}
		return nil, err
	}
	return decodeToken(id, raw)
}

// ListTokens returns every record ordered by id.
func (s *RecordStore) ListTokens(ctx context.Context) ([]*domain.TokenRecord, error) {
	var (
		records []*domain.TokenRecord
		decErr  error
	)
	err := s.kv.Scan(ctx, []byte(prefixToken), func(key, value []byte) bool {
		id := strings.TrimPrefix(string(key), prefixToken)
		rec, err := decodeToken(id, value)
		if err != nil {
			decErr = err
			return false
		}
		records = append(records, rec)
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return records, nil
}

// OpenBatch returns the open token id for conversation, if any.
func (s *RecordStore) OpenBatch(ctx context.Context, conversation string) (string, bool, error) {
	raw, err := s.kv.Get(ctx, openKey(conversation))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, storageErr(err)
	}
	return string(raw), true, nil
}

// SetOpenBatch points conversation's marker at id.
func (s *RecordStore) SetOpenBatch(ctx context.Context, conversation, id string) error {
	return storageErr(s.kv.Set(ctx, openKey(conversation), []byte(id)))
}

// ClearOpenBatch removes conversation's marker.
func (s *RecordStore) ClearOpenBatch(ctx context.Context, conversation string) error {
	return storageErr(s.kv.Delete(ctx, openKey(conversation)))
}

// StartBatch creates rec and marks it open for conversation atomically.
// Fails with domain.ErrTokenConflict if the id is taken or a batch is
// already open for the conversation.
func (s *RecordStore) StartBatch(ctx context.Context, conversation string, rec *domain.TokenRecord) error {
	return storageErr(s.kv.Update(ctx, func(txn KVTxn) error {
		if open, err := txn.Get(openKey(conversation)); err == nil {
			return domain.ErrTokenConflict.WithDetails("batch " + string(open) + " already open")
		} else if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		if err := putTokenTxn(txn, rec); err != nil {
			return err
		}
		return txn.Set(openKey(conversation), []byte(rec.ID))
	}))
}

// AppendToOpenBatch appends ref to conversation's open record in one
// read-modify-write transaction. Returns domain.ErrNoOpenBatch if none
// is open.
func (s *RecordStore) AppendToOpenBatch(ctx context.Context, conversation, ref string) (string, error) {
	var id string
	err := s.kv.Update(ctx, func(txn KVTxn) error {
		raw, err := txn.Get(openKey(conversation))
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return domain.ErrNoOpenBatch
			}
			return err
		}
		id = string(raw)

		rec, err := getTokenTxn(txn, id)
		if err != nil {
			return err
		}
		rec.Files = append(rec.Files, ref)

		value, err := encodeToken(rec)
		if err != nil {
			return err
		}
		return txn.Set(tokenKey(id), value)
	})
	if err != nil {
		return "", storageErr(err)
	}
	return id, nil
}

// TakeOpenBatch clears conversation's marker and returns the id it held.
// Returns domain.ErrNoOpenBatch if none is open.
func (s *RecordStore) TakeOpenBatch(ctx context.Context, conversation string) (string, error) {
	var id string
	err := s.kv.Update(ctx, func(txn KVTxn) error {
		raw, err := txn.Get(openKey(conversation))
		if err != nil {
			if errors.Is(err, ErrKeyNotFound) {
				return domain.ErrNoOpenBatch
			}
			return err
		}
		id = string(raw)
		return txn.Delete(openKey(conversation))
	})
	if err != nil {
		return "", storageErr(err)
	}
	return id, nil
}

// AddPremium adds user to the premium set.
// Reports whether the user was newly added.
func (s *RecordStore) AddPremium(ctx context.Context, user string) (bool, error) {
	added := false
	err := s.kv.Update(ctx, func(txn KVTxn) error {
		if _, err := txn.Get(premiumKey(user)); err == nil {
			return nil
		} else if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		added = true
		return txn.Set(premiumKey(user), []byte("true"))
	})
	if err != nil {
		return false, storageErr(err)
	}
	return added, nil
}

// IsPremium reports whether user is in the premium set.
func (s *RecordStore) IsPremium(ctx context.Context, user string) (bool, error) {
	_, err := s.kv.Get(ctx, premiumKey(user))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, storageErr(err)
	}
	return true, nil
}

// ListPremium returns the premium user ids in key order.
func (s *RecordStore) ListPremium(ctx context.Context) ([]string, error) {
	var users []string
	err := s.kv.Scan(ctx, []byte(prefixPremium), func(key, _ []byte) bool {
		users = append(users, strings.TrimPrefix(string(key), prefixPremium))
		return true
	})
	if err != nil {
		return nil, storageErr(err)
	}
	return users, nil
}

// SaveRetraction persists a pending retraction.
func (s *RecordStore) SaveRetraction(ctx context.Context, r domain.Retraction) error {
	raw, err := json.Marshal(retractionValue{Chat: r.ChatID, Message: r.MessageID, Due: r.Due.Unix()})
	if err != nil {
		return storageErr(err)
	}
	return storageErr(s.kv.Set(ctx, retractKey(r.ChatID, r.MessageID), raw))
}

// DeleteRetraction removes a pending retraction.
func (s *RecordStore) DeleteRetraction(ctx context.Context, chatID, messageID int64) error {
	return storageErr(s.kv.Delete(ctx, retractKey(chatID, messageID)))
}

// ListRetractions returns every pending retraction.
func (s *RecordStore) ListRetractions(ctx context.Context) ([]domain.Retraction, error) {
	var (
		out    []domain.Retraction
		decErr error
	)
	err := s.kv.Scan(ctx, []byte(prefixRetract), func(key, value []byte) bool {
		var v retractionValue
		if err := json.Unmarshal(value, &v); err != nil {
			decErr = fmt.Errorf("decode retraction %q: %w", key, err)
			return false
		}
		out = append(out, domain.Retraction{ChatID: v.Chat, MessageID: v.Message, Due: time.Unix(v.Due, 0)})
		return true
	})
	if err == nil {
		err = decErr
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Stats counts entries per prefix.
func (s *RecordStore) Stats(ctx context.Context) (*RecordStats, error) {
	stats := &RecordStats{}
	counters := []struct {
		prefix string
		dst    *int
	}{
		{prefixToken, &stats.Tokens},
		{prefixOpen, &stats.OpenBatches},
		{prefixPremium, &stats.Premium},
		{prefixRetract, &stats.PendingRetractions},
	}
	for _, c := range counters {
		dst := c.dst
		if err := s.kv.Scan(ctx, []byte(c.prefix), func(_, _ []byte) bool {
			*dst++
			return true
		}); err != nil {
			return nil, storageErr(err)
		}
	}
	return stats, nil
}

// Snapshot writes a full backup of the store to w.
func (s *RecordStore) Snapshot(ctx context.Context, w io.Writer) (uint64, error) {
	version, err := s.kv.Backup(ctx, w)
	if err != nil {
		return 0, storageErr(err)
	}
	return version, nil
}

// Restore merges a backup produced by Snapshot into the store.
func (s *RecordStore) Restore(ctx context.Context, r io.Reader) error {
	return storageErr(s.kv.Load(ctx, r))
}

// ImportReport summarizes an ImportLegacy run.
type ImportReport struct {
	Tokens         int
	SkippedTokens  int
	Premium        int
	SkippedPremium int
}

// ImportLegacy loads tokens.json ({id: {created, files}}) and premium.json
// ({user: true}) files written by the earlier bot. Existing records are
// kept; duplicates are counted as skipped. Either reader may be nil.
func (s *RecordStore) ImportLegacy(ctx context.Context, tokens, premium io.Reader) (*ImportReport, error) {
	report := &ImportReport{}

	if tokens != nil {
		var legacy map[string]tokenValue
		if err := json.NewDecoder(tokens).Decode(&legacy); err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails("tokens file").WithCause(err)
		}
		for id, v := range legacy {
			files := v.Files
			if files == nil {
				files = []string{}
			}
			rec := &domain.TokenRecord{ID: id, Created: decodeTime(v.Created), Files: files}
			err := s.PutToken(ctx, rec)
			switch {
			case err == nil:
				report.Tokens++
			case errors.Is(err, domain.ErrTokenConflict):
				report.SkippedTokens++
			default:
				return report, err
			}
		}
	}

	if premium != nil {
		var legacy map[string]json.RawMessage
		if err := json.NewDecoder(premium).Decode(&legacy); err != nil {
			return nil, domain.ErrInvalidArgument.WithDetails("premium file").WithCause(err)
		}
		for user := range legacy {
			added, err := s.AddPremium(ctx, user)
			if err != nil {
				return report, err
			}
			if added {
				report.Premium++
			} else {
				report.SkippedPremium++
			}
		}
	}

	return report, nil
}
