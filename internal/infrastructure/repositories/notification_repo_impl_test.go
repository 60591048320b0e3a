package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
)

func newQueued(recipient string, scheduledFor time.Time) *entities.Notification {
	return &entities.Notification{
		ID:            uuid.New(),
		Recipient:     recipient,
		Subject:       "Hi",
		HTMLBody:      "<p>Hi</p>",
		TextBody:      "Hi",
		TemplateName:  "welcome",
		EventKind:     "comment.submitted",
		RenderContext: map[string]any{"name": "Ana"},
		Status:        entities.NotificationStatusQueued,
		ScheduledFor:  scheduledFor,
		RelatedType:   null.StringFrom("comment"),
		RelatedID:     null.StringFrom("c-1"),
		CreatedAt:     scheduledFor,
		UpdatedAt:     scheduledFor,
	}
}

func TestNotificationRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n := newQueued("ana@example.com", now)
	require.NoError(t, repo.Create(ctx, n))
	require.ErrorIs(t, repo.Create(ctx, n), domainerrors.ErrAlreadyExists)

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Recipient)
	assert.Equal(t, entities.NotificationStatusQueued, got.Status)
	assert.Equal(t, "Ana", got.RenderContext["name"])
	assert.Equal(t, "c-1", got.RelatedID.String)
	assert.False(t, got.ProviderMessageID.Valid)
	assert.False(t, got.SentAt.Valid)

	_, err = repo.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestNotificationRepository_ListDueSkipsFutureAndSuppressed(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	due := newQueued("due@example.com", now.Add(-time.Minute))
	future := newQueued("future@example.com", now.Add(time.Hour))
	suppressed := newQueued("blocked@example.com", now.Add(-time.Minute))
	suppressed.SuppressedAt = null.TimeFrom(now)
	for _, n := range []*entities.Notification{due, future, suppressed} {
		require.NoError(t, repo.Create(ctx, n))
	}

	items, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, due.ID, items[0].ID)
}

func TestNotificationRepository_ClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n := newQueued("ana@example.com", now)
	require.NoError(t, repo.Create(ctx, n))

	ok, err := repo.Claim(ctx, n.ID, "console", now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Claim(ctx, n.ID, "console", now)
	require.NoError(t, err)
	assert.False(t, ok, "a claimed row cannot be claimed twice")

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusSending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "console", got.Provider)
}

func TestNotificationRepository_Transitions(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sent := newQueued("sent@example.com", now)
	retry := newQueued("retry@example.com", now)
	failed := newQueued("failed@example.com", now)
	suppressed := newQueued("suppressed@example.com", now)
	for _, n := range []*entities.Notification{sent, retry, failed, suppressed} {
		require.NoError(t, repo.Create(ctx, n))
		ok, err := repo.Claim(ctx, n.ID, "smtp", now)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, repo.MarkSent(ctx, sent.ID, "msg-1", now))
	require.ErrorIs(t, repo.MarkSent(ctx, sent.ID, "msg-2", now), domainerrors.ErrNotFound)
	got, err := repo.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusSent, got.Status)
	assert.Equal(t, "msg-1", got.ProviderMessageID.String)
	assert.True(t, got.SentAt.Valid)

	next := now.Add(2 * time.Minute)
	require.NoError(t, repo.Reschedule(ctx, retry.ID, "PROVIDER_TRANSIENT: 421", next, now))
	got, err = repo.GetByID(ctx, retry.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusQueued, got.Status)
	assert.True(t, got.ScheduledFor.Equal(next))
	assert.Equal(t, "PROVIDER_TRANSIENT: 421", got.LastDiagnostic.String)
	assert.False(t, got.SentAt.Valid)

	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "PROVIDER_REJECTED: 550", now))
	got, err = repo.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusFailed, got.Status)
	assert.False(t, got.ProviderMessageID.Valid)

	require.NoError(t, repo.MarkSuppressed(ctx, suppressed.ID, "SUPPRESSED", now))
	got, err = repo.GetByID(ctx, suppressed.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusQueued, got.Status)
	assert.True(t, got.SuppressedAt.Valid)

	due, err := repo.ListDue(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, retry.ID, due[0].ID)
}

func TestNotificationRepository_Requeue(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	n := newQueued("ana@example.com", now)
	require.NoError(t, repo.Create(ctx, n))

	require.ErrorIs(t, repo.Requeue(ctx, n.ID, now), domainerrors.ErrInvalidTransition)
	require.ErrorIs(t, repo.Requeue(ctx, uuid.New(), now), domainerrors.ErrNotFound)

	_, err := repo.Claim(ctx, n.ID, "smtp", now)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, n.ID, "boom", now))

	later := now.Add(time.Hour)
	require.NoError(t, repo.Requeue(ctx, n.ID, later))
	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusQueued, got.Status)
	assert.Equal(t, 0, got.Attempts)
	assert.True(t, got.ScheduledFor.Equal(later))
}

func TestNotificationRepository_ReleaseStale(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	stale := newQueued("stale@example.com", now.Add(-2*time.Hour))
	fresh := newQueued("fresh@example.com", now)
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))
	_, err := repo.Claim(ctx, stale.ID, "smtp", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = repo.Claim(ctx, fresh.ID, "smtp", now)
	require.NoError(t, err)

	released, err := repo.ReleaseStale(ctx, now.Add(-15*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.NotificationStatusQueued, got.Status)
	assert.Equal(t, staleReleaseDiagnostic, got.LastDiagnostic.String)
}

func TestNotificationRepository_List(t *testing.T) {
	db := newTestDB(t)
	createNotificationTable(t, db)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newQueued("a@example.com", now.Add(time.Duration(i)*time.Second))))
	}
	claimed := newQueued("b@example.com", now)
	require.NoError(t, repo.Create(ctx, claimed))
	_, err := repo.Claim(ctx, claimed.ID, "console", now)
	require.NoError(t, err)

	items, total, err := repo.List(ctx, entities.NotificationStatusQueued, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	items, total, err = repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 4)
}

func TestNotificationRepository_DBErrorBranches(t *testing.T) {
	db := newTestDB(t)
	// intentionally skip table creation
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.Error(t, repo.Create(ctx, newQueued("a@example.com", now)))
	_, err := repo.GetByID(ctx, uuid.New())
	require.Error(t, err)
	_, _, err = repo.List(ctx, "", 10, 0)
	require.Error(t, err)
	_, err = repo.Claim(ctx, uuid.New(), "console", now)
	require.Error(t, err)
	_, err = repo.ReleaseStale(ctx, now, now)
	require.Error(t, err)
	require.Error(t, repo.MarkFailed(ctx, uuid.New(), "x", now))
}

func TestNotificationRepository_ListDuePostgresDriverError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "notifications" WHERE status = \$1 AND scheduled_for <= \$2 AND suppressed_at IS NULL`).
		WillReturnError(errors.New("connection reset by peer"))

	repo := NewNotificationRepository(gdb)
	_, err = repo.ListDue(context.Background(), time.Now(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list due notifications")
	assert.Contains(t, err.Error(), "connection reset by peer")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository_ClaimPostgresConditionalUpdate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE "notifications" SET .* WHERE id = \$\d+ AND status = \$\d+ AND suppressed_at IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewNotificationRepository(gdb)
	ok, err := repo.Claim(context.Background(), uuid.New(), "ses", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
