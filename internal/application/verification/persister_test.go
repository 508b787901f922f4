package verification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-eid-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestPersister(records *memRecordStore, profiles ProfileStore, audit AuditSink, logBuf *bytes.Buffer) *VerificationPersister {
	opts := []PersisterOption{WithClock(func() time.Time { return fixedNow })}
	if logBuf != nil {
		opts = append(opts, WithPersisterLogger(slog.New(slog.NewJSONHandler(logBuf, nil))))
	}
	return NewPersister(records, profiles, audit, fixedHasher{}, opts...)
}

func fullClaims() *domain.VerificationClaims {
	return &domain.VerificationClaims{
		Subject:          "abc123",
		GivenName:        "Jane",
		FamilyName:       "Peeters",
		DisplayName:      "Jane Peeters",
		Birthdate:        "1990-01-01",
		Nationality:      "BE",
		Gender:           "female",
		NationalIDNumber: "90.01.01-123.45",
		Email:            "jane@provider.example",
		Phone:            "+32470000000",
	}
}

func TestPersist_WritesVerifiedRecord(t *testing.T) {
	records := newMemRecordStore()
	p := newTestPersister(records, nil, nil, nil)

	require.NoError(t, p.Persist(context.Background(), testAccount, fullClaims(), testMeta))

	rec := records.records[testAccount]
	assert.True(t, rec.Verified)
	require.NotNil(t, rec.VerifiedAt)
	assert.Equal(t, fixedNow, *rec.VerifiedAt)
	assert.Equal(t, "abc123", rec.ProviderSubject)
	assert.Equal(t, domain.VerificationLevelIdentification, rec.VerificationLevel)
	assert.Equal(t, domain.KYCStatusProviderVerified, rec.KYCStatus)
	assert.True(t, rec.IDDocumentVerified)
	assert.Equal(t, fixedNow, rec.UpdatedAt)
	assert.Equal(t, &domain.ClaimsSnapshot{
		GivenName:   "Jane",
		FamilyName:  "Peeters",
		DisplayName: "Jane Peeters",
		Birthdate:   "1990-01-01",
		Nationality: "BE",
		Gender:      "female",
		VerifiedAt:  fixedNow,
	}, rec.ClaimsSnapshot)
	require.NotNil(t, rec.NationalIDHash)
	assert.NotEqual(t, "90.01.01-123.45", *rec.NationalIDHash)
	assert.Equal(t, fixedHasher{}.Hash("90.01.01-123.45"), *rec.NationalIDHash)
}

func TestPersist_NoNationalIDLeavesHashAbsent(t *testing.T) {
	records := newMemRecordStore()
	p := newTestPersister(records, nil, nil, nil)

	require.NoError(t, p.Persist(context.Background(), testAccount, janeClaims(), testMeta))

	assert.Nil(t, records.records[testAccount].NationalIDHash)
}

func TestPersist_RepeatedCallsConverge(t *testing.T) {
	records := newMemRecordStore()
	p := newTestPersister(records, nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Persist(context.Background(), testAccount, fullClaims(), testMeta))
		}()
	}
	wg.Wait()

	require.Len(t, records.records, 1)
	rec := records.records[testAccount]
	assert.True(t, rec.Verified)
	assert.Equal(t, "abc123", rec.ProviderSubject)
}

func TestPersist_UpsertFailureIsPersistenceError(t *testing.T) {
	records := newMemRecordStore()
	records.putErr = errors.New("throughput exceeded")
	profiles := newMemProfileStore()
	audit := &memAuditSink{}
	p := newTestPersister(records, profiles, audit, nil)

	err := p.Persist(context.Background(), testAccount, janeClaims(), testMeta)
	p.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Empty(t, profiles.updates)
	assert.Empty(t, audit.recorded())
}

func TestPersist_ProfileUpdateIsBestEffort(t *testing.T) {
	records := newMemRecordStore()
	profiles := newMemProfileStore()
	profiles.err = errors.New("conditional check failed")
	var logs bytes.Buffer
	p := newTestPersister(records, profiles, nil, &logs)

	require.NoError(t, p.Persist(context.Background(), testAccount, janeClaims(), testMeta))

	assert.True(t, records.records[testAccount].Verified)
	assert.Contains(t, logs.String(), "copy verified identity to profile")
}

func TestPersist_ProfileNeverReceivesContactData(t *testing.T) {
	profiles := newMemProfileStore()
	p := newTestPersister(newMemRecordStore(), profiles, nil, nil)

	require.NoError(t, p.Persist(context.Background(), testAccount, fullClaims(), testMeta))

	assert.Equal(t, domain.ProfileUpdate{
		FirstName:   "Jane",
		LastName:    "Peeters",
		Birthdate:   "1990-01-01",
		Nationality: "BE",
	}, profiles.updates[testAccount])
}

func TestPersist_AuditEventDescribesTransition(t *testing.T) {
	records := newMemRecordStore()
	audit := &memAuditSink{}
	p := newTestPersister(records, nil, audit, nil)

	require.NoError(t, p.Persist(context.Background(), testAccount, fullClaims(), testMeta))
	require.NoError(t, p.Persist(context.Background(), testAccount, janeClaims(), testMeta))
	p.Wait()

	events := audit.recorded()
	require.Len(t, events, 2)
	first, second := events[0], events[1]
	if first.PreviousStatus != "unverified" {
		first, second = second, first
	}

	assert.NotEmpty(t, first.EventID)
	assert.Equal(t, testAccount, first.AccountID)
	assert.Equal(t, "itsme", first.VerificationType)
	assert.Equal(t, "identity_verified", first.Action)
	assert.Equal(t, "unverified", first.PreviousStatus)
	assert.Equal(t, "verified", first.NewStatus)
	assert.Equal(t, "203.0.113.7", first.ClientIP)
	assert.Equal(t, "test-agent", first.UserAgent)
	assert.Equal(t, fixedNow, first.Timestamp)
	assert.Equal(t, true, first.Metadata["has_national_id_hash"])
	for _, v := range first.Metadata {
		assert.NotEqual(t, "90.01.01-123.45", v)
		assert.NotEqual(t, fixedHasher{}.Hash("90.01.01-123.45"), v)
	}

	assert.Equal(t, "verified", second.PreviousStatus)
	assert.Equal(t, false, second.Metadata["has_national_id_hash"])
}

func TestPersist_AuditFailureIsLoggedNotReturned(t *testing.T) {
	audit := &memAuditSink{err: errors.New("table missing")}
	var logs bytes.Buffer
	p := newTestPersister(newMemRecordStore(), nil, audit, &logs)

	err := p.Persist(context.Background(), testAccount, janeClaims(), testMeta)
	p.Wait()

	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.Contains(t, logs.String(), "audit write failed")
}

func TestPersist_AuditSurvivesRequestCancellation(t *testing.T) {
	audit := &memAuditSink{}
	p := newTestPersister(newMemRecordStore(), nil, audit, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Persist(ctx, testAccount, janeClaims(), testMeta))
	cancel()
	p.Wait()

	assert.Len(t, audit.recorded(), 1)
}

func TestPersist_UnreadablePreviousRecordIsNotFatal(t *testing.T) {
	records := newMemRecordStore()
	records.getErr = errors.New("read timeout")
	audit := &memAuditSink{}
	p := newTestPersister(records, nil, audit, nil)

	require.NoError(t, p.Persist(context.Background(), testAccount, janeClaims(), testMeta))
	p.Wait()

	require.Len(t, audit.recorded(), 1)
	assert.Equal(t, "unknown", audit.recorded()[0].PreviousStatus)
}

func TestCurrent(t *testing.T) {
	records := newMemRecordStore()
	p := newTestPersister(records, nil, nil, nil)

	rec, err := p.Current(context.Background(), testAccount)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, domain.KYCStatusNotStarted, rec.KYCStatus)
	assert.Equal(t, "unverified", rec.Status())

	require.NoError(t, p.Persist(context.Background(), testAccount, janeClaims(), testMeta))
	rec, err = p.Current(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, rec.Verified)

	records.getErr = errors.New("unavailable")
	_, err = p.Current(context.Background(), testAccount)
	assert.Error(t, err)
}

func TestMultiAuditSink_JoinsErrors(t *testing.T) {
	ok := &memAuditSink{}
	bad := &memAuditSink{err: errors.New("archive down")}
	sink := MultiAuditSink{ok, nil, bad}

	err := sink.Record(context.Background(), &domain.AuditEvent{EventID: "e1"})

	assert.EqualError(t, err, "archive down")
	assert.Len(t, ok.recorded(), 1)
}
