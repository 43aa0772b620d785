package repos

import (
	"context"
	"database/sql"
	"errors"

	"tfsrentals/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

type CartRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Status    string `db:"status"`
	CreatedAt string `db:"created_at"`
}

type CartItemRow struct {
	ID            string `db:"id"`
	CartID        string `db:"cart_id"`
	ProductID     string `db:"product_id"`
	Quantity      int    `db:"quantity"`
	GroupID       string `db:"group_id"`
	KitTemplateID string `db:"kit_template_id"`
	StartDate     string `db:"start_date"`
	EndDate       string `db:"end_date"`
	CreatedAt     string `db:"created_at"`
}

// Active returns the user's active cart or sql.ErrNoRows.
func (r *CartRepo) Active(ctx context.Context, userID string) (CartRow, error) {
	var c CartRow
	err := r.db.GetContext(ctx, &c, `
	  SELECT id, user_id, status, created_at
	  FROM carts
	  WHERE user_id = ? AND status = 'active'
	`, userID)
	return c, err
}

// EnsureActive returns the user's active cart, creating it if needed. Two
// concurrent callers converge on the same row through the partial unique index.
func (r *CartRepo) EnsureActive(ctx context.Context, userID string) (CartRow, error) {
	c, err := r.Active(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return CartRow{}, err
	}
	ts := now()
	if _, err := r.db.ExecContext(ctx, `
	  INSERT INTO carts(id, user_id, status, created_at, updated_at)
	  VALUES (?, ?, 'active', ?, ?)
	  ON CONFLICT DO NOTHING
	`, uuid.NewString(), userID, ts, ts); err != nil {
		return CartRow{}, err
	}
	return r.Active(ctx, userID)
}

// AddGroup inserts all rows in one transaction; either every row lands or none.
func (r *CartRepo) AddGroup(ctx context.Context, cartID string, rows []CartItemRow) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := now()
	for _, it := range rows {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		var tmpl any
		if it.KitTemplateID != "" {
			tmpl = it.KitTemplateID
		}
		if _, err := tx.ExecContext(ctx, `
		  INSERT INTO cart_items(id, cart_id, product_id, quantity, group_id, kit_template_id,
		                         start_date, end_date, created_at)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, it.ID, cartID, it.ProductID, it.Quantity, it.GroupID, tmpl,
			it.StartDate, it.EndDate, ts); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = ? WHERE id = ?`, ts, cartID); err != nil {
		return err
	}
	return tx.Commit()
}

// Items lists the cart's items grouped together, oldest first within a group.
func (r *CartRepo) Items(ctx context.Context, cartID string) ([]CartItemRow, error) {
	out := []CartItemRow{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, cart_id, product_id, quantity, group_id,
	         COALESCE(kit_template_id,'') AS kit_template_id,
	         start_date, end_date, created_at
	  FROM cart_items
	  WHERE cart_id = ?
	  ORDER BY group_id, created_at, rowid
	`, cartID)
	return out, err
}

func (r *CartRepo) DeleteGroup(ctx context.Context, cartID, groupID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ? AND group_id = ?`, cartID, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *CartRepo) DeleteItem(ctx context.Context, cartID, itemID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ? AND id = ?`, cartID, itemID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetStatus moves a cart out of (or back into) the active state.
func (r *CartRepo) SetStatus(ctx context.Context, cartID, status string) error {
	switch status {
	case domain.CartActive, domain.CartCompleted, domain.CartAbandoned:
	default:
		return errors.New("invalid cart status")
	}
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET status = ?, updated_at = ? WHERE id = ?`, status, now(), cartID)
	return err
}
