package domain

type KitTemplate struct {
	ID                string  `db:"id" json:"id"`
	Name              string  `db:"name" json:"name"`
	Description       string  `db:"description" json:"description,omitempty"`
	MainProductID     string  `db:"main_product_id" json:"mainProductId"`
	BasePriceModifier float64 `db:"base_price_modifier" json:"-"`
}

type KitItem struct {
	ID                  string         `db:"id" json:"id"`
	TemplateID          string         `db:"template_id" json:"templateId"`
	ProductID           string         `db:"product_id" json:"productId"`
	SlotName            string         `db:"slot_name" json:"slotName"`
	IsMandatory         bool           `db:"is_mandatory" json:"isMandatory"`
	DefaultQuantity     int            `db:"default_quantity" json:"defaultQuantity"`
	SwappableCategoryID string         `db:"swappable_category_id" json:"swappableCategoryId,omitempty"`
	DisplayOrder        int            `db:"display_order" json:"displayOrder"`
	Product             *PublicProduct `db:"-" json:"product,omitempty"`
}

type ResolvedKitSlot struct {
	SlotName         string          `json:"slotName"`
	CategoryID       string          `json:"categoryId,omitempty"`
	Required         bool            `json:"required"`
	AllowMultiple    bool            `json:"allowMultiple"`
	DefaultItems     []KitItem       `json:"defaultItems"`
	SelectedItems    []KitItem       `json:"selectedItems"`
	AvailableOptions []PublicProduct `json:"availableOptions"`
}

type ResolvedKit struct {
	Template    KitTemplate       `json:"template"`
	MainProduct PublicProduct     `json:"mainProduct"`
	Slots       []ResolvedKitSlot `json:"slots"`
}
