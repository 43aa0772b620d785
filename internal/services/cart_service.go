package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CartService struct {
	Carts   *repos.CartRepo
	Prods   *repos.ProductRepo
	FileURL domain.FileURLFunc
	Log     *zap.Logger
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo, fileURL domain.FileURLFunc, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{Carts: carts, Prods: prods, FileURL: fileURL, Log: log}
}

type AddResult struct {
	Success bool   `json:"success"`
	GroupID string `json:"groupId"`
}

// AddBundle stores the selections as one group sharing a fresh group id and
// the given dates. The group is written atomically.
func (s *CartService) AddBundle(ctx context.Context, userID string, sels []domain.Selection, dates domain.DateRange) (AddResult, error) {
	return s.addGroup(ctx, userID, "", sels, dates)
}

// AddKit is AddBundle for a configured kit; items remember their template.
func (s *CartService) AddKit(ctx context.Context, userID, templateID string, sels []domain.Selection, dates domain.DateRange) (AddResult, error) {
	return s.addGroup(ctx, userID, templateID, sels, dates)
}

// AddItem adds a single product as a group of one.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int, dates domain.DateRange) (AddResult, error) {
	return s.addGroup(ctx, userID, "", []domain.Selection{{ProductID: productID, Quantity: qty}}, dates)
}

func (s *CartService) addGroup(ctx context.Context, userID, templateID string, sels []domain.Selection, dates domain.DateRange) (AddResult, error) {
	if userID == "" {
		return AddResult{}, fmt.Errorf("%w: user required", ErrValidation)
	}
	if len(sels) == 0 {
		return AddResult{}, fmt.Errorf("%w: no items selected", ErrValidation)
	}
	if !dates.Valid() {
		return AddResult{}, fmt.Errorf("%w: rental dates", ErrValidation)
	}

	ids := make([]string, 0, len(sels))
	for _, sel := range sels {
		ids = append(ids, sel.ProductID)
	}
	known, err := s.Prods.ByIDs(ctx, ids)
	if err != nil {
		return AddResult{}, fmt.Errorf("load products: %w", err)
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return AddResult{}, fmt.Errorf("%w: unknown product %q", ErrValidation, id)
		}
	}

	cart, err := s.Carts.EnsureActive(ctx, userID)
	if err != nil {
		return AddResult{}, fmt.Errorf("ensure cart: %w", err)
	}

	groupID := uuid.NewString()
	start := domain.Day(dates.Start).Format(domain.DayLayout)
	end := domain.Day(dates.End).Format(domain.DayLayout)
	rows := make([]repos.CartItemRow, 0, len(sels))
	for _, sel := range sels {
		rows = append(rows, repos.CartItemRow{
			ProductID:     sel.ProductID,
			Quantity:      validate.ClampQty(sel.Quantity),
			GroupID:       groupID,
			KitTemplateID: templateID,
			StartDate:     start,
			EndDate:       end,
		})
	}
	if err := s.Carts.AddGroup(ctx, cart.ID, rows); err != nil {
		return AddResult{}, fmt.Errorf("add cart group: %w", err)
	}
	s.Log.Info("cart group added",
		zap.String("cart_id", cart.ID),
		zap.String("group_id", groupID),
		zap.Int("items", len(rows)))
	return AddResult{Success: true, GroupID: groupID}, nil
}

// Get returns the user's active cart with products expanded.
func (s *CartService) Get(ctx context.Context, userID, lang string) (domain.Cart, error) {
	row, err := s.Carts.Active(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, ErrNoCart
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	items, err := s.Carts.Items(ctx, row.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart items: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	prods, err := s.Prods.ByIDs(ctx, ids)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("load cart products: %w", err)
	}

	cart := domain.Cart{ID: row.ID, UserID: row.UserID, Status: row.Status, CreatedAt: row.CreatedAt, Items: []domain.CartItem{}}
	for _, it := range items {
		ci := domain.CartItem{
			ID:            it.ID,
			CartID:        it.CartID,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			GroupID:       it.GroupID,
			KitTemplateID: it.KitTemplateID,
			CreatedAt:     it.CreatedAt,
		}
		ci.Dates.Start, _ = domain.ParseDay(it.StartDate)
		ci.Dates.End, _ = domain.ParseDay(it.EndDate)
		if p, ok := prods[it.ProductID]; ok {
			pub := p.Public(lang, s.FileURL)
			ci.Product = &pub
		}
		cart.Items = append(cart.Items, ci)
	}
	return cart, nil
}

func (s *CartService) RemoveGroup(ctx context.Context, userID, groupID string) error {
	return s.remove(ctx, userID, func(cartID string) (int64, error) {
		return s.Carts.DeleteGroup(ctx, cartID, groupID)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	return s.remove(ctx, userID, func(cartID string) (int64, error) {
		return s.Carts.DeleteItem(ctx, cartID, itemID)
	})
}

func (s *CartService) remove(ctx context.Context, userID string, del func(cartID string) (int64, error)) error {
	row, err := s.Carts.Active(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoCart
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	n, err := del(row.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Complete closes the cart once its contents were submitted.
func (s *CartService) Complete(ctx context.Context, cartID string) error {
	return s.Carts.SetStatus(ctx, cartID, domain.CartCompleted)
}
