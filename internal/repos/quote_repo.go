package repos

import (
	"context"
	"errors"
	"time"

	"tfsrentals/internal/domain"

	"github.com/jmoiron/sqlx"
)

type QuoteRepo struct{ db *sqlx.DB }

func NewQuoteRepo(db *sqlx.DB) *QuoteRepo { return &QuoteRepo{db: db} }

const quoteColumns = `
    id, COALESCE(user_id,'') AS user_id, client_name, client_email, client_phone, client_company,
    items_json, rental_start_date, rental_end_date, project_description, special_requests,
    location, language, status, confirmation_number, access_token, internal_notes,
    estimated_price, quote_pdf, pdf_generated, locked, quoted_at, signature, signed_at,
    created_at, updated_at`

// ErrCartClosed means the cart was completed or abandoned before the quote
// taken from it could be stored.
var ErrCartClosed = errors.New("cart is no longer active")

func (r *QuoteRepo) Insert(ctx context.Context, q *domain.Quote) error {
	return insertQuote(ctx, r.db, q)
}

// InsertFromCart stores the quote and completes the cart it was built from
// in one transaction. Nothing is written when the cart is not active.
func (r *QuoteRepo) InsertFromCart(ctx context.Context, q *domain.Quote, cartID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	  UPDATE carts SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, domain.CartCompleted, now(), cartID, domain.CartActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartClosed
	}
	if err := insertQuote(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit()
}

func insertQuote(ctx context.Context, db sqlx.ExecerContext, q *domain.Quote) error {
	var user any
	if q.UserID != "" {
		user = q.UserID
	}
	_, err := db.ExecContext(ctx, `
	  INSERT INTO quotes(id, user_id, client_name, client_email, client_phone, client_company,
	                     items_json, rental_start_date, rental_end_date, project_description,
	                     special_requests, location, language, status, confirmation_number,
	                     access_token, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, q.ID, user, q.ClientName, q.ClientEmail, q.ClientPhone, q.ClientCompany,
		q.ItemsJSON, q.RentalStartDate, q.RentalEndDate, q.ProjectDescription,
		q.SpecialRequests, q.Location, q.Language, q.Status, q.ConfirmationNumber,
		q.AccessToken, q.CreatedAt, q.UpdatedAt)
	return err
}

func (r *QuoteRepo) Get(ctx context.Context, id string) (domain.Quote, error) {
	var q domain.Quote
	if err := r.db.GetContext(ctx, &q, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id); err != nil {
		return q, err
	}
	q.DecodeItems()
	return q, nil
}

func (r *QuoteRepo) ListByEmail(ctx context.Context, email string) ([]domain.Quote, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quotes
	  WHERE LOWER(client_email) = LOWER(?) ORDER BY created_at DESC`, email)
}

func (r *QuoteRepo) ListByUser(ctx context.Context, userID string) ([]domain.Quote, error) {
	return r.list(ctx, `SELECT `+quoteColumns+` FROM quotes
	  WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// Page returns one page of quotes, newest first, plus the total row count.
// An empty status matches every quote.
func (r *QuoteRepo) Page(ctx context.Context, status string, limit, offset int) ([]domain.Quote, int, error) {
	where := `1 = 1`
	args := []any{}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM quotes WHERE `+where, args...); err != nil {
		return nil, 0, err
	}
	out, err := r.list(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE `+where+`
	  ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	return out, total, err
}

func (r *QuoteRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM quotes`)
	return n, err
}

func (r *QuoteRepo) list(ctx context.Context, query string, args ...any) ([]domain.Quote, error) {
	out := []domain.Quote{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].DecodeItems()
	}
	return out, nil
}

func (r *QuoteRepo) UpdateStatus(ctx context.Context, id string, status domain.QuoteStatus, notes *string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE quotes
	  SET status = ?, internal_notes = COALESCE(?, internal_notes), updated_at = ?
	  WHERE id = ?
	`, status, notes, stamp(at), id)
	return affected(res, err)
}

func (r *QuoteRepo) SetPrice(ctx context.Context, id string, price float64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE quotes SET estimated_price = ?, updated_at = ? WHERE id = ?
	`, price, stamp(at), id)
	return affected(res, err)
}

// MarkQuoted records an uploaded quote document and opens the grace window.
func (r *QuoteRepo) MarkQuoted(ctx context.Context, id, pdfKey string, price *float64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE quotes
	  SET quote_pdf = ?, pdf_generated = 1, status = 'quoted', locked = 0,
	      quoted_at = ?, estimated_price = COALESCE(?, estimated_price), updated_at = ?
	  WHERE id = ?
	`, pdfKey, stamp(at), price, stamp(at), id)
	return affected(res, err)
}

// MarkSigned confirms a quoted request. Only a quote still in 'quoted' is touched.
func (r *QuoteRepo) MarkSigned(ctx context.Context, id, sigKey string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	  UPDATE quotes
	  SET signature = ?, signed_at = ?, status = 'confirmed', locked = 1, updated_at = ?
	  WHERE id = ? AND status = 'quoted'
	`, sigKey, stamp(at), stamp(at), id)
	return affected(res, err)
}
