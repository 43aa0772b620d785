package repos

import (
	"context"

	"tfsrentals/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type KitRepo struct{ db *sqlx.DB }

func NewKitRepo(db *sqlx.DB) *KitRepo { return &KitRepo{db: db} }

// TemplateByMainProduct returns sql.ErrNoRows when the product anchors no kit.
func (r *KitRepo) TemplateByMainProduct(ctx context.Context, productID string) (domain.KitTemplate, error) {
	var t domain.KitTemplate
	err := r.db.GetContext(ctx, &t, `
	  SELECT id, name, description, main_product_id, base_price_modifier
	  FROM kit_templates
	  WHERE main_product_id = ?
	`, productID)
	return t, err
}

// Items lists a template's items in display order, ties broken by insertion.
func (r *KitRepo) Items(ctx context.Context, templateID string) ([]domain.KitItem, error) {
	out := []domain.KitItem{}
	err := r.db.SelectContext(ctx, &out, `
	  SELECT id, template_id, product_id, slot_name, is_mandatory, default_quantity,
	         COALESCE(swappable_category_id,'') AS swappable_category_id, display_order
	  FROM kit_items
	  WHERE template_id = ?
	  ORDER BY display_order, rowid
	`, templateID)
	return out, err
}

// SaveTemplate upserts the template for its main product and replaces its
// items in one transaction. It returns the template id.
func (r *KitRepo) SaveTemplate(ctx context.Context, t domain.KitTemplate, items []domain.KitItem) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var id string
	if err := tx.GetContext(ctx, &id, `
	  INSERT INTO kit_templates(id, name, description, main_product_id, base_price_modifier)
	  VALUES (?, ?, ?, ?, ?)
	  ON CONFLICT(main_product_id) DO UPDATE SET
	    name = excluded.name, description = excluded.description,
	    base_price_modifier = excluded.base_price_modifier
	  RETURNING id
	`, t.ID, t.Name, t.Description, t.MainProductID, t.BasePriceModifier); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kit_items WHERE template_id = ?`, id); err != nil {
		return "", err
	}
	for _, it := range items {
		if it.DefaultQuantity < 1 {
			it.DefaultQuantity = 1
		}
		var swap any
		if it.SwappableCategoryID != "" {
			swap = it.SwappableCategoryID
		}
		if _, err := tx.ExecContext(ctx, `
		  INSERT INTO kit_items(id, template_id, product_id, slot_name, is_mandatory,
		                        default_quantity, swappable_category_id, display_order)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), id, it.ProductID, it.SlotName, it.IsMandatory,
			it.DefaultQuantity, swap, it.DisplayOrder); err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

