package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/redisx"
	"tfsrentals/internal/repos"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	baseBackoff   = 5 * time.Minute
	maxErrMessage = 500
	// SendTimeout bounds a single delivery attempt.
	SendTimeout = 30 * time.Second
)

type EnqueueParams struct {
	To          string
	Subject     string
	HTML        string
	ReplyTo     string
	PayloadType string
	PayloadData any
	MaxAttempts int
}

type ProcessResult struct {
	Processed int  `json:"processed"`
	Sent      int  `json:"sent"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped,omitempty"`
}

// EmailQueue delivers transactional email at least once. Enqueue only
// writes a record; ProcessBatch does the sending.
type EmailQueue struct {
	Repo   *repos.EmailQueueRepo
	Sender mailer.Sender
	Lease  *redisx.Lease
	Log    *zap.Logger
	Now    func() time.Time
	// SendTimeout overrides the per-message deadline when set.
	SendTimeout time.Duration
}

func NewEmailQueue(repo *repos.EmailQueueRepo, sender mailer.Sender, lease *redisx.Lease, log *zap.Logger) *EmailQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailQueue{Repo: repo, Sender: sender, Lease: lease, Log: log, Now: time.Now}
}

func (q *EmailQueue) now() time.Time {
	if q.Now == nil {
		return time.Now().UTC()
	}
	return q.Now().UTC()
}

func (q *EmailQueue) Enqueue(ctx context.Context, p EnqueueParams) (string, error) {
	if p.To == "" || p.Subject == "" || p.HTML == "" {
		return "", fmt.Errorf("%w: email needs recipient, subject and body", ErrValidation)
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	data := []byte("{}")
	if p.PayloadData != nil {
		b, err := json.Marshal(p.PayloadData)
		if err != nil {
			return "", fmt.Errorf("encode payload: %w", err)
		}
		data = b
	}
	ts := domain.FormatTime(q.now())
	rec := domain.EmailQueueRecord{
		ID:            uuid.NewString(),
		To:            p.To,
		Subject:       p.Subject,
		HTML:          p.HTML,
		ReplyTo:       p.ReplyTo,
		Status:        domain.EmailPending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: ts,
		PayloadType:   p.PayloadType,
		PayloadData:   string(data),
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := q.Repo.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("enqueue email: %w", err)
	}
	q.Log.Info("email queued",
		zap.String("queue_id", rec.ID),
		zap.String("to", rec.To),
		zap.String("type", rec.PayloadType))
	return rec.ID, nil
}

// ProcessBatch sends up to limit due messages. When another processor holds
// the lease the batch is skipped.
func (q *EmailQueue) ProcessBatch(ctx context.Context, limit int) (ProcessResult, error) {
	var res ProcessResult
	if limit <= 0 {
		limit = 20
	}
	release, ok, err := q.Lease.Acquire(ctx)
	if err != nil {
		// Redis trouble must not stall delivery
		q.Log.Warn("email lease unavailable, processing anyway", zap.Error(err))
		ok = true
	}
	defer release()
	if !ok {
		res.Skipped = true
		return res, nil
	}

	due, err := q.Repo.Due(ctx, q.now(), limit)
	if err != nil {
		return res, fmt.Errorf("load due emails: %w", err)
	}
	for _, rec := range due {
		if ctx.Err() != nil {
			break
		}
		res.Processed++
		if q.deliver(ctx, rec) {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	if res.Processed > 0 {
		q.Log.Info("email batch processed",
			zap.Int("processed", res.Processed),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (q *EmailQueue) send(ctx context.Context, rec domain.EmailQueueRecord) error {
	timeout := q.SendTimeout
	if timeout <= 0 {
		timeout = SendTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return q.Sender.Send(sctx, mailer.Message{To: rec.To, Subject: rec.Subject, HTML: rec.HTML, ReplyTo: rec.ReplyTo})
}

func (q *EmailQueue) deliver(ctx context.Context, rec domain.EmailQueueRecord) bool {
	sendErr := q.send(ctx, rec)
	now := q.now()
	if sendErr == nil {
		if err := q.Repo.MarkSent(ctx, rec.ID, now); err != nil {
			// a resend on the next run is acceptable
			q.Log.Error("mark email sent", zap.String("queue_id", rec.ID), zap.Error(err))
		}
		return true
	}

	attempts := rec.Attempts + 1
	msg := truncate(sendErr.Error(), maxErrMessage)
	if attempts >= rec.MaxAttempts {
		if err := q.Repo.MarkFailed(ctx, rec.ID, attempts, msg, now); err != nil {
			q.Log.Error("mark email failed", zap.String("queue_id", rec.ID), zap.Error(err))
		}
		q.Log.Error("email permanently failed",
			zap.String("queue_id", rec.ID),
			zap.String("to", rec.To),
			zap.Int("attempt", attempts),
			zap.Error(sendErr))
		return false
	}

	backoff := Backoff(attempts)
	if err := q.Repo.MarkRetry(ctx, rec.ID, attempts, now.Add(backoff), msg, now); err != nil {
		q.Log.Error("schedule email retry", zap.String("queue_id", rec.ID), zap.Error(err))
	}
	q.Log.Warn("email send failed, will retry",
		zap.String("queue_id", rec.ID),
		zap.String("to", rec.To),
		zap.Int("attempt", attempts),
		zap.Duration("backoff", backoff),
		zap.Error(sendErr))
	return false
}

// Backoff is the wait before the next attempt after the given number of
// failed attempts: 5 minutes times 2^attempts.
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		attempts = 16
	}
	return baseBackoff * time.Duration(1<<attempts)
}

func (q *EmailQueue) Stats(ctx context.Context) (domain.QueueStats, error) {
	return q.Repo.Stats(ctx)
}

// Run processes a batch immediately and then on every tick until ctx ends.
func (q *EmailQueue) Run(ctx context.Context, interval time.Duration, limit int) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := q.ProcessBatch(ctx, limit); err != nil && ctx.Err() == nil {
			q.Log.Error("email queue run", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
