package verification

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-eid-verify/internal/domain"
)

// memVault is an in-memory SessionVault that counts deletes per key.
type memVault struct {
	values  map[VaultKey]string
	deletes map[VaultKey]int
	failOn  VaultKey
}

func newMemVault() *memVault {
	return &memVault{values: map[VaultKey]string{}, deletes: map[VaultKey]int{}}
}

func (v *memVault) Get(k VaultKey) (string, bool) {
	s, ok := v.values[k]
	return s, ok
}

func (v *memVault) Set(k VaultKey, value string, _ time.Duration) error {
	if k == v.failOn {
		return errors.New("cookie rejected")
	}
	v.values[k] = value
	return nil
}

func (v *memVault) Delete(k VaultKey) {
	delete(v.values, k)
	v.deletes[k]++
}

// clearedOnce reports whether every attempt key was deleted exactly once and
// nothing remains.
func (v *memVault) clearedOnce() bool {
	if len(v.values) != 0 {
		return false
	}
	for _, k := range AttemptKeys {
		if v.deletes[k] != 1 {
			return false
		}
	}
	return true
}

type exchangeFunc func(ctx context.Context, code, verifier, nonce string) ExchangeResult

func (f exchangeFunc) Exchange(ctx context.Context, code, verifier, nonce string) ExchangeResult {
	return f(ctx, code, verifier, nonce)
}

// memRecordStore mimics the DynamoDB upsert: created_at survives, everything
// else is overwritten.
type memRecordStore struct {
	mu      sync.Mutex
	records map[string]domain.VerificationRecord
	upserts int
	getErr  error
	putErr  error
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: map[string]domain.VerificationRecord{}}
}

func (s *memRecordStore) Get(_ context.Context, accountID string) (*domain.VerificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *memRecordStore) Upsert(_ context.Context, rec *domain.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.upserts++
	next := *rec
	if prev, ok := s.records[rec.AccountID]; ok {
		next.CreatedAt = prev.CreatedAt
	}
	s.records[rec.AccountID] = next
	return nil
}

type memProfileStore struct {
	mu      sync.Mutex
	updates map[string]domain.ProfileUpdate
	err     error
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{updates: map[string]domain.ProfileUpdate{}}
}

func (s *memProfileStore) UpdateIdentity(_ context.Context, userID string, p domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.updates[userID] = p
	return nil
}

type memAuditSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (s *memAuditSink) Record(_ context.Context, e *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *memAuditSink) recorded() []domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditEvent(nil), s.events...)
}

// fixedHasher avoids argon2 cost in tests that do not look at the digest.
type fixedHasher struct{}

func (fixedHasher) Hash(raw string) string {
	if raw == "" {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}
