package domain

const (
	CartActive    = "active"
	CartCompleted = "completed"
	CartAbandoned = "abandoned"
)

type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Status    string     `json:"status"`
	Items     []CartItem `json:"items"`
	CreatedAt string     `json:"created"`
}

type CartItem struct {
	ID            string         `json:"id"`
	CartID        string         `json:"cartId"`
	ProductID     string         `json:"productId"`
	Product       *PublicProduct `json:"product,omitempty"`
	Quantity      int            `json:"quantity"`
	GroupID       string         `json:"groupId"`
	KitTemplateID string         `json:"kitTemplateId,omitempty"`
	Dates         DateRange      `json:"dates"`
	CreatedAt     string         `json:"created"`
}

// Selection is one product chosen for a cart group.
type Selection struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}
