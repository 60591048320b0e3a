package usecases_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/volatiletech/null/v8"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, f func(context.Context) error) error {
	m.Called(ctx, f)
	return f(ctx)
}

func newUnitOfWork() *MockUnitOfWork {
	uow := new(MockUnitOfWork)
	uow.On("Do", mock.Anything, mock.Anything).Return(nil)
	return uow
}

// Mock VerificationTokenRepository
type MockVerificationTokenRepository struct {
	mock.Mock
}

func (m *MockVerificationTokenRepository) Create(ctx context.Context, token *entities.VerificationToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockVerificationTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.VerificationToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerificationToken), args.Error(1)
}

func (m *MockVerificationTokenRepository) GetActiveByEmail(ctx context.Context, email string) (*entities.VerificationToken, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerificationToken), args.Error(1)
}

func (m *MockVerificationTokenRepository) GetActiveByHash(ctx context.Context, hash string) (*entities.VerificationToken, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.VerificationToken), args.Error(1)
}

func (m *MockVerificationTokenRepository) Rotate(ctx context.Context, id uuid.UUID, newHash string, now time.Time) error {
	return m.Called(ctx, id, newHash, now).Error(0)
}

func (m *MockVerificationTokenRepository) RecordUsage(ctx context.Context, id uuid.UUID, hash, action string, now time.Time) error {
	return m.Called(ctx, id, hash, action, now).Error(0)
}

func (m *MockVerificationTokenRepository) Revoke(ctx context.Context, id uuid.UUID, actor string, now time.Time) error {
	return m.Called(ctx, id, actor, now).Error(0)
}

func (m *MockVerificationTokenRepository) RevokeActiveByEmail(ctx context.Context, email, actor string, now time.Time) (int64, error) {
	args := m.Called(ctx, email, actor, now)
	return args.Get(0).(int64), args.Error(1)
}

// memoryTokenRepo keeps one active row per address and unique hashes, like the table constraints.
type memoryTokenRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entities.VerificationToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{rows: map[uuid.UUID]*entities.VerificationToken{}}
}

func (r *memoryTokenRepo) Create(_ context.Context, token *entities.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.TokenHash == token.TokenHash || (row.IsActive && token.IsActive && row.Email == token.Email) {
			return domainerrors.ErrAlreadyExists
		}
	}
	cp := *token
	r.rows[token.ID] = &cp
	return nil
}

func (r *memoryTokenRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *memoryTokenRepo) find(match func(*entities.VerificationToken) bool) (*entities.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memoryTokenRepo) GetActiveByEmail(_ context.Context, email string) (*entities.VerificationToken, error) {
	return r.find(func(t *entities.VerificationToken) bool { return t.IsActive && t.Email == email })
}

func (r *memoryTokenRepo) GetActiveByHash(_ context.Context, hash string) (*entities.VerificationToken, error) {
	return r.find(func(t *entities.VerificationToken) bool { return t.IsActive && t.TokenHash == hash })
}

func (r *memoryTokenRepo) Rotate(_ context.Context, id uuid.UUID, newHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !row.IsActive {
		return domainerrors.ErrNotFound
	}
	row.TokenHash = newHash
	row.UpdatedAt = now
	row.LastUsedAt = null.TimeFrom(now)
	return nil
}

func (r *memoryTokenRepo) RecordUsage(_ context.Context, id uuid.UUID, hash, action string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !row.IsActive || row.TokenHash != hash {
		return domainerrors.ErrNotFound
	}
	row.UsageCount++
	row.LastUsedAt = null.TimeFrom(now)
	row.LastAction = null.StringFrom(action)
	return nil
}

func (r *memoryTokenRepo) Revoke(_ context.Context, id uuid.UUID, actor string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	row.IsActive = false
	row.RevokedAt = null.TimeFrom(now)
	row.RevokedBy = null.StringFrom(actor)
	return nil
}

func (r *memoryTokenRepo) RevokeActiveByEmail(_ context.Context, email, actor string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.IsActive && row.Email == email {
			row.IsActive = false
			row.RevokedAt = null.TimeFrom(now)
			row.RevokedBy = null.StringFrom(actor)
			n++
		}
	}
	return n, nil
}

// memoryNotificationRepo applies the same conditional transitions as the SQL repository.
type memoryNotificationRepo struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*entities.Notification
	failMarkOn map[uuid.UUID]error
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{
		rows:       map[uuid.UUID]*entities.Notification{},
		failMarkOn: map[uuid.UUID]error{},
	}
}

func (r *memoryNotificationRepo) Create(_ context.Context, n *entities.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[n.ID]; ok {
		return domainerrors.ErrAlreadyExists
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *memoryNotificationRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *memoryNotificationRepo) sorted(match func(*entities.Notification) bool) []*entities.Notification {
	var out []*entities.Notification
	for _, row := range r.rows {
		if match(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out
}

func (r *memoryNotificationRepo) List(_ context.Context, status entities.NotificationStatus, limit, offset int) ([]*entities.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(n *entities.Notification) bool { return status == "" || n.Status == status })
	total := int64(len(all))
	if offset >= len(all) {
		return []*entities.Notification{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (r *memoryNotificationRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*entities.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := r.sorted(func(n *entities.Notification) bool {
		return n.Status == entities.NotificationStatusQueued && !n.ScheduledFor.After(now) && !n.SuppressedAt.Valid
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryNotificationRepo) Claim(_ context.Context, id uuid.UUID, provider string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Status != entities.NotificationStatusQueued || row.SuppressedAt.Valid {
		return false, nil
	}
	row.Status = entities.NotificationStatusSending
	row.Attempts++
	row.Provider = provider
	row.UpdatedAt = now
	return true, nil
}

func (r *memoryNotificationRepo) transition(id uuid.UUID, from entities.NotificationStatus, apply func(*entities.Notification)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failMarkOn[id]; err != nil {
		return err
	}
	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return domainerrors.ErrNotFound
	}
	apply(row)
	return nil
}

func (r *memoryNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, providerMessageID string, now time.Time) error {
	return r.transition(id, entities.NotificationStatusSending, func(n *entities.Notification) {
		n.Status = entities.NotificationStatusSent
		n.ProviderMessageID = null.StringFrom(providerMessageID)
		n.SentAt = null.TimeFrom(now)
		n.UpdatedAt = now
	})
}

func (r *memoryNotificationRepo) MarkSuppressed(_ context.Context, id uuid.UUID, diagnostic string, now time.Time) error {
	return r.transition(id, entities.NotificationStatusSending, func(n *entities.Notification) {
		n.Status = entities.NotificationStatusQueued
		n.SuppressedAt = null.TimeFrom(now)
		n.LastDiagnostic = null.StringFrom(diagnostic)
		n.LastDiagnosticAt = null.TimeFrom(now)
		n.UpdatedAt = now
	})
}

func (r *memoryNotificationRepo) Reschedule(_ context.Context, id uuid.UUID, diagnostic string, next, now time.Time) error {
	return r.transition(id, entities.NotificationStatusSending, func(n *entities.Notification) {
		n.Status = entities.NotificationStatusQueued
		n.ScheduledFor = next
		n.LastDiagnostic = null.StringFrom(diagnostic)
		n.LastDiagnosticAt = null.TimeFrom(now)
		n.UpdatedAt = now
	})
}

func (r *memoryNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, diagnostic string, now time.Time) error {
	return r.transition(id, entities.NotificationStatusSending, func(n *entities.Notification) {
		n.Status = entities.NotificationStatusFailed
		n.LastDiagnostic = null.StringFrom(diagnostic)
		n.LastDiagnosticAt = null.TimeFrom(now)
		n.UpdatedAt = now
	})
}

func (r *memoryNotificationRepo) ReleaseStale(_ context.Context, cutoff, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.Status == entities.NotificationStatusSending && row.UpdatedAt.Before(cutoff) {
			row.Status = entities.NotificationStatusQueued
			row.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memoryNotificationRepo) Requeue(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if row.Status != entities.NotificationStatusFailed {
		return domainerrors.ErrInvalidTransition
	}
	row.Status = entities.NotificationStatusQueued
	row.Attempts = 0
	row.ScheduledFor = now
	row.SuppressedAt = null.Time{}
	row.UpdatedAt = now
	return nil
}

func (r *memoryNotificationRepo) get(id uuid.UUID) *entities.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.rows[id]
	return &cp
}

// Mock TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EmailTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Upsert(ctx context.Context, t *entities.EmailTemplate) error {
	return m.Called(ctx, t).Error(0)
}

// Mock SuppressionRepository
type MockSuppressionRepository struct {
	mock.Mock
}

func (m *MockSuppressionRepository) IsSuppressed(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockSuppressionRepository) Add(ctx context.Context, s *entities.Suppression) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSuppressionRepository) Remove(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// suppressionSet is a fixed suppression list.
type suppressionSet map[string]bool

func (s suppressionSet) IsSuppressed(_ context.Context, email string) (bool, error) {
	return s[email], nil
}
