package domain

import (
	"encoding/json"
	"time"
)

type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteReviewing QuoteStatus = "reviewing"
	QuoteQuoted    QuoteStatus = "quoted"
	QuoteConfirmed QuoteStatus = "confirmed"
	QuoteRejected  QuoteStatus = "rejected"
)

// QuoteGracePeriod is how long an admin may still amend a quote after sending it.
const QuoteGracePeriod = 15 * time.Minute

func (s QuoteStatus) Valid() bool {
	switch s {
	case QuotePending, QuoteReviewing, QuoteQuoted, QuoteConfirmed, QuoteRejected:
		return true
	}
	return false
}

// QuoteItem is the snapshot of a requested item. No pricing.
type QuoteItem struct {
	ProductID        string              `json:"productId"`
	Name             string              `json:"name"`
	Slug             string              `json:"slug"`
	Quantity         int                 `json:"quantity"`
	ImageURL         string              `json:"imageUrl,omitempty"`
	GroupID          string              `json:"groupId,omitempty"`
	KitSelections    map[string][]string `json:"kitSelections,omitempty"`
	SelectedVariants map[string]string   `json:"selectedVariants,omitempty"`
}

type Quote struct {
	ID                 string      `db:"id" json:"id"`
	UserID             string      `db:"user_id" json:"userId,omitempty"`
	ClientName         string      `db:"client_name" json:"clientName"`
	ClientEmail        string      `db:"client_email" json:"clientEmail"`
	ClientPhone        string      `db:"client_phone" json:"clientPhone"`
	ClientCompany      string      `db:"client_company" json:"clientCompany,omitempty"`
	ItemsJSON          string      `db:"items_json" json:"-"`
	RentalStartDate    string      `db:"rental_start_date" json:"rentalStartDate"`
	RentalEndDate      string      `db:"rental_end_date" json:"rentalEndDate"`
	ProjectDescription string      `db:"project_description" json:"projectDescription,omitempty"`
	SpecialRequests    string      `db:"special_requests" json:"specialRequests,omitempty"`
	Location           string      `db:"location" json:"location,omitempty"`
	Language           string      `db:"language" json:"language"`
	Status             QuoteStatus `db:"status" json:"status"`
	ConfirmationNumber string      `db:"confirmation_number" json:"confirmationNumber"`
	AccessToken        string      `db:"access_token" json:"-"`
	InternalNotes      string      `db:"internal_notes" json:"internalNotes,omitempty"`
	EstimatedPrice     *float64    `db:"estimated_price" json:"estimatedPrice,omitempty"`
	QuotePDF           string      `db:"quote_pdf" json:"pdfFileName,omitempty"`
	PDFGenerated       bool        `db:"pdf_generated" json:"pdfGenerated"`
	Locked             bool        `db:"locked" json:"isLocked"`
	QuotedAt           string      `db:"quoted_at" json:"quotedAt,omitempty"`
	Signature          string      `db:"signature" json:"-"`
	SignedAt           string      `db:"signed_at" json:"signedAt,omitempty"`
	CreatedAt          string      `db:"created_at" json:"created"`
	UpdatedAt          string      `db:"updated_at" json:"updated"`

	Items  []QuoteItem `db:"-" json:"items"`
	PDFURL string      `db:"-" json:"pdfFileUrl,omitempty"`
}

// DecodeItems fills Items from the stored snapshot.
func (q *Quote) DecodeItems() {
	q.Items = []QuoteItem{}
	if q.ItemsJSON != "" {
		_ = json.Unmarshal([]byte(q.ItemsJSON), &q.Items)
	}
}

func (q *Quote) Dates() DateRange {
	s, _ := ParseDay(q.RentalStartDate)
	e, _ := ParseDay(q.RentalEndDate)
	return DateRange{Start: s, End: e}
}

// Editable reports whether admin pricing changes are still allowed at now.
func (q *Quote) Editable(now time.Time) bool {
	if q.Locked {
		return false
	}
	switch q.Status {
	case QuoteQuoted:
		quoted := ParseTime(q.QuotedAt)
		return !quoted.IsZero() && now.Before(quoted.Add(QuoteGracePeriod))
	case QuoteConfirmed:
		return false
	}
	return true
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, page, perPage, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return Page[T]{Items: items, Page: page, PerPage: perPage, TotalItems: total, TotalPages: pages}
}
