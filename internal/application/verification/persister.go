package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-eid-verify/internal/domain"
	"github.com/go-eid-verify/internal/pkg/id"
)

const (
	auditVerificationType = "itsme"
	auditActionVerified   = "identity_verified"
	statusUnknown         = "unknown"
)

// VerificationStore persists verification records keyed by account id.
// Upsert must be idempotent: repeating it converges to the same record.
type VerificationStore interface {
	Get(ctx context.Context, accountID string) (*domain.VerificationRecord, error)
	Upsert(ctx context.Context, rec *domain.VerificationRecord) error
}

// ProfileStore copies verified identity fields onto the account profile.
type ProfileStore interface {
	UpdateIdentity(ctx context.Context, userID string, p domain.ProfileUpdate) error
}

// AuditSink records audit events.
type AuditSink interface {
	Record(ctx context.Context, e *domain.AuditEvent) error
}

// MultiAuditSink writes to every sink and joins their errors.
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Record(ctx context.Context, e *domain.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VerificationPersister maps verified claims onto the account's verification
// record and profile and emits the audit event.
type VerificationPersister struct {
	records      VerificationStore
	profiles     ProfileStore
	audit        AuditSink
	hasher       NationalIDHasher
	auditTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	inflight     sync.WaitGroup
}

// PersisterOption customises a VerificationPersister.
type PersisterOption func(*VerificationPersister)

func WithPersisterLogger(l *slog.Logger) PersisterOption {
	return func(p *VerificationPersister) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAuditTimeout bounds each asynchronous audit write.
func WithAuditTimeout(d time.Duration) PersisterOption {
	return func(p *VerificationPersister) {
		if d > 0 {
			p.auditTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PersisterOption {
	return func(p *VerificationPersister) { p.now = now }
}

// NewPersister builds a persister. profiles and audit may be nil.
func NewPersister(records VerificationStore, profiles ProfileStore, audit AuditSink, hasher NationalIDHasher, opts ...PersisterOption) *VerificationPersister {
	p := &VerificationPersister{
		records:      records,
		profiles:     profiles,
		audit:        audit,
		hasher:       hasher,
		auditTimeout: 5 * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Persist upserts the verification record for accountID. Only a failed record
// write is returned (wrapping domain.ErrPersistence); profile and audit
// failures are logged.
func (p *VerificationPersister) Persist(ctx context.Context, accountID string, claims *domain.VerificationClaims, meta RequestMetadata) error {
	if accountID == "" || claims == nil {
		return fmt.Errorf("account id and claims required: %w", domain.ErrPersistence)
	}
	now := p.now()

	previousStatus := statusUnknown
	prev, err := p.records.Get(ctx, accountID)
	switch {
	case err == nil:
		previousStatus = prev.Status()
	case errors.Is(err, domain.ErrNotFound):
		previousStatus = (*domain.VerificationRecord)(nil).Status()
	default:
		p.logger.Warn("read previous verification record", "account_id", accountID, "err", err)
	}

	rec := p.buildRecord(accountID, claims, now)
	if err := p.records.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert verification record: %w: %w", domain.ErrPersistence, err)
	}

	p.updateProfile(ctx, accountID, claims)

	p.emitAudit(ctx, &domain.AuditEvent{
		EventID:          id.At(now),
		AccountID:        accountID,
		VerificationType: auditVerificationType,
		Action:           auditActionVerified,
		PreviousStatus:   previousStatus,
		NewStatus:        rec.Status(),
		Metadata: map[string]any{
			"provider_subject":     claims.Subject,
			"verification_level":   string(rec.VerificationLevel),
			"has_national_id_hash": rec.NationalIDHash != nil,
			"request_id":           meta.RequestID,
		},
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Timestamp: now,
	})
	return nil
}

// Current returns the account's verification record, or an unverified record
// when none has been written yet.
func (p *VerificationPersister) Current(ctx context.Context, accountID string) (*domain.VerificationRecord, error) {
	rec, err := p.records.Get(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.VerificationRecord{
			AccountID:         accountID,
			VerificationLevel: domain.VerificationLevelNone,
			KYCStatus:         domain.KYCStatusNotStarted,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Wait blocks until every in-flight audit write has finished.
func (p *VerificationPersister) Wait() {
	p.inflight.Wait()
}

func (p *VerificationPersister) buildRecord(accountID string, c *domain.VerificationClaims, now time.Time) *domain.VerificationRecord {
	rec := &domain.VerificationRecord{
		AccountID:       accountID,
		Verified:        true,
		VerifiedAt:      &now,
		ProviderSubject: c.Subject,
		ClaimsSnapshot: &domain.ClaimsSnapshot{
			GivenName:   c.GivenName,
			FamilyName:  c.FamilyName,
			DisplayName: c.DisplayName,
			Birthdate:   c.Birthdate,
			Nationality: c.Nationality,
			Gender:      c.Gender,
			VerifiedAt:  now,
		},
		VerificationLevel:  domain.VerificationLevelIdentification,
		IDDocumentVerified: true,
		KYCStatus:          domain.KYCStatusProviderVerified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if c.NationalIDNumber != "" && p.hasher != nil {
		if h := p.hasher.Hash(c.NationalIDNumber); h != "" {
			rec.NationalIDHash = &h
		}
	}
	return rec
}

func (p *VerificationPersister) updateProfile(ctx context.Context, accountID string, c *domain.VerificationClaims) {
	if p.profiles == nil {
		return
	}
	upd := domain.ProfileUpdate{
		FirstName:   c.GivenName,
		LastName:    c.FamilyName,
		Birthdate:   c.Birthdate,
		Nationality: c.Nationality,
	}
	if upd.IsEmpty() {
		return
	}
	if err := p.profiles.UpdateIdentity(ctx, accountID, upd); err != nil {
		p.logger.Warn("copy verified identity to profile", "account_id", accountID, "err", err)
	}
}

// emitAudit writes the event in the background on a context detached from the
// request, so a closed connection does not drop it.
func (p *VerificationPersister) emitAudit(ctx context.Context, e *domain.AuditEvent) {
	if p.audit == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.auditTimeout)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("audit write panicked", "account_id", e.AccountID, "event_id", e.EventID, "panic", r)
			}
		}()
		if err := p.audit.Record(actx, e); err != nil {
			p.logger.Error("audit write failed", "account_id", e.AccountID, "event_id", e.EventID, "err", err)
		}
	}()
}
