package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createNotificationTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		html_body TEXT,
		text_body TEXT,
		template_id TEXT,
		template_name TEXT,
		event_kind TEXT NOT NULL,
		render_context TEXT,
		provider TEXT,
		provider_message_id TEXT,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		scheduled_for DATETIME NOT NULL,
		sent_at DATETIME,
		last_diagnostic TEXT,
		last_diagnostic_at DATETIME,
		bounce_type TEXT,
		bounce_sub_type TEXT,
		suppressed_at DATETIME,
		related_type TEXT,
		related_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createVerificationTokenTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE verification_tokens (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		usage_count INTEGER NOT NULL DEFAULT 0,
		last_used_at DATETIME,
		last_action TEXT,
		revoked_at DATETIME,
		revoked_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE UNIQUE INDEX ux_verification_tokens_active_email ON verification_tokens(email) WHERE is_active;`)
}

func createTemplateTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE email_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		subject TEXT NOT NULL,
		html_content TEXT,
		text_content TEXT,
		variables TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createSuppressionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE email_suppressions (
		email TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		created_at DATETIME
	);`)
}
