package repos

import (
	"context"
	"database/sql"
	"time"

	"tfsrentals/internal/domain"

	"github.com/jmoiron/sqlx"
)

type EmailQueueRepo struct{ db *sqlx.DB }

func NewEmailQueueRepo(db *sqlx.DB) *EmailQueueRepo { return &EmailQueueRepo{db: db} }

const emailColumns = `
    id, to_addr, subject, html, reply_to, status, attempts, max_attempts, next_attempt_at,
    error_message, sent_at, payload_type, payload_data, created_at, updated_at`

func (r *EmailQueueRepo) Insert(ctx context.Context, e domain.EmailQueueRecord) error {
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO email_queue(`+emailColumns+`)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.To, e.Subject, e.HTML, e.ReplyTo, e.Status, e.Attempts, e.MaxAttempts,
		e.NextAttemptAt, e.ErrorMessage, e.SentAt, e.PayloadType, e.PayloadData,
		e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *EmailQueueRepo) Get(ctx context.Context, id string) (domain.EmailQueueRecord, error) {
	var e domain.EmailQueueRecord
	err := r.db.GetContext(ctx, &e, `SELECT `+emailColumns+` FROM email_queue WHERE id = ?`, id)
	return e, err
}

// Due returns pending messages whose next attempt is not in the future,
// oldest first.
func (r *EmailQueueRepo) Due(ctx context.Context, at time.Time, limit int) ([]domain.EmailQueueRecord, error) {
	out := []domain.EmailQueueRecord{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT `+emailColumns+`
	  FROM email_queue
	  WHERE status = 'pending' AND next_attempt_at <= ?
	  ORDER BY created_at, rowid
	  LIMIT ?
	`, stamp(at), limit)
	return out, err
}

func (r *EmailQueueRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	  UPDATE email_queue SET status = 'sent', sent_at = ?, error_message = '', updated_at = ?
	  WHERE id = ? AND status = 'pending'
	`, stamp(at), stamp(at), id)
	return err
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *EmailQueueRepo) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, msg string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	  UPDATE email_queue
	  SET attempts = MAX(attempts, ?), next_attempt_at = ?, error_message = ?, updated_at = ?
	  WHERE id = ? AND status = 'pending'
	`, attempts, stamp(next), msg, stamp(at), id)
	return err
}

func (r *EmailQueueRepo) MarkFailed(ctx context.Context, id string, attempts int, msg string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	  UPDATE email_queue
	  SET status = 'failed', attempts = MAX(attempts, ?), error_message = ?, updated_at = ?
	  WHERE id = ? AND status = 'pending'
	`, attempts, msg, stamp(at), id)
	return err
}

func (r *EmailQueueRepo) Stats(ctx context.Context) (domain.QueueStats, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM email_queue GROUP BY status`); err != nil {
		return domain.QueueStats{}, err
	}
	var s domain.QueueStats
	for _, row := range rows {
		switch row.Status {
		case domain.EmailPending:
			s.Pending = row.N
		case domain.EmailSent:
			s.Sent = row.N
		case domain.EmailFailed:
			s.Failed = row.N
		}
	}
	return s, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
