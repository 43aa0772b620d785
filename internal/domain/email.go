package domain

const (
	EmailPending = "pending"
	EmailSent    = "sent"
	EmailFailed  = "failed"
)

const (
	PayloadQuoteConfirmation = "quote_confirmation"
	PayloadAdminNotification = "admin_notification"
	PayloadQuoteReady        = "quote_ready"
)

const DefaultMaxAttempts = 3

type EmailQueueRecord struct {
	ID            string `db:"id" json:"id"`
	To            string `db:"to_addr" json:"to"`
	Subject       string `db:"subject" json:"subject"`
	HTML          string `db:"html" json:"-"`
	ReplyTo       string `db:"reply_to" json:"replyTo,omitempty"`
	Status        string `db:"status" json:"status"`
	Attempts      int    `db:"attempts" json:"attempts"`
	MaxAttempts   int    `db:"max_attempts" json:"maxAttempts"`
	NextAttemptAt string `db:"next_attempt_at" json:"nextAttemptAt"`
	ErrorMessage  string `db:"error_message" json:"errorMessage,omitempty"`
	SentAt        string `db:"sent_at" json:"sentAt,omitempty"`
	PayloadType   string `db:"payload_type" json:"payloadType"`
	PayloadData   string `db:"payload_data" json:"-"`
	CreatedAt     string `db:"created_at" json:"created"`
	UpdatedAt     string `db:"updated_at" json:"updated"`
}

type QueueStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}
