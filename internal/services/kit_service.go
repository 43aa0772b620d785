package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/redisx"
	"tfsrentals/internal/repos"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// slot option lookups run at most this many at a time
const optionFetchLimit = 4

type KitService struct {
	Kits    *repos.KitRepo
	Prods   *repos.ProductRepo
	Cache   *redisx.KitCache
	FileURL domain.FileURLFunc
	Log     *zap.Logger
}

func NewKitService(kits *repos.KitRepo, prods *repos.ProductRepo, cache *redisx.KitCache, fileURL domain.FileURLFunc, log *zap.Logger) *KitService {
	if log == nil {
		log = zap.NewNop()
	}
	return &KitService{Kits: kits, Prods: prods, Cache: cache, FileURL: fileURL, Log: log}
}

// Resolve builds the configurable kit anchored on productID. ErrNoBundle
// is returned when the product anchors no kit; any other error is a store
// failure and should be treated as transient.
func (s *KitService) Resolve(ctx context.Context, productID, lang string) (domain.ResolvedKit, error) {
	if kit, hit, err := s.Cache.Get(ctx, productID, lang); err != nil {
		s.Log.Warn("kit cache read failed", zap.String("product_id", productID), zap.Error(err))
	} else if hit {
		return kit, nil
	}

	tmpl, err := s.Kits.TemplateByMainProduct(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResolvedKit{}, ErrNoBundle
	}
	if err != nil {
		return domain.ResolvedKit{}, fmt.Errorf("load kit template: %w", err)
	}

	items, err := s.Kits.Items(ctx, tmpl.ID)
	if err != nil {
		return domain.ResolvedKit{}, fmt.Errorf("load kit items: %w", err)
	}

	anchor, err := s.Prods.Get(ctx, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResolvedKit{}, ErrNoBundle
	}
	if err != nil {
		return domain.ResolvedKit{}, fmt.Errorf("load anchor product: %w", err)
	}

	if err := s.attachProducts(ctx, items, lang); err != nil {
		return domain.ResolvedKit{}, err
	}

	kit := domain.ResolvedKit{
		Template:    tmpl,
		MainProduct: anchor.Public(lang, s.FileURL),
		Slots:       groupSlots(items),
	}
	s.fillOptions(ctx, kit.Slots, lang)

	if err := s.Cache.Put(ctx, productID, lang, kit); err != nil {
		s.Log.Warn("kit cache write failed", zap.String("product_id", productID), zap.Error(err))
	}
	return kit, nil
}

// HasBundle reports whether productID anchors a kit template.
func (s *KitService) HasBundle(ctx context.Context, productID string) (bool, error) {
	_, err := s.Kits.TemplateByMainProduct(ctx, productID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	}
	return false, fmt.Errorf("load kit template: %w", err)
}

// SaveTemplate writes a kit and drops any cached resolution of it.
func (s *KitService) SaveTemplate(ctx context.Context, t domain.KitTemplate, items []domain.KitItem) (string, error) {
	id, err := s.Kits.SaveTemplate(ctx, t, items)
	if err != nil {
		return "", err
	}
	if err := s.Cache.Invalidate(ctx, t.MainProductID); err != nil {
		s.Log.Warn("kit cache invalidate failed", zap.String("product_id", t.MainProductID), zap.Error(err))
	}
	return id, nil
}

func (s *KitService) attachProducts(ctx context.Context, items []domain.KitItem, lang string) error {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	prods, err := s.Prods.ByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load kit products: %w", err)
	}
	for i := range items {
		if p, ok := prods[items[i].ProductID]; ok {
			pub := p.Public(lang, s.FileURL)
			items[i].Product = &pub
		}
	}
	return nil
}

// groupSlots groups items by slot label. Slots keep the order in which their
// first item appears.
func groupSlots(items []domain.KitItem) []domain.ResolvedKitSlot {
	index := map[string]int{}
	slots := []domain.ResolvedKitSlot{}
	for _, it := range items {
		i, ok := index[it.SlotName]
		if !ok {
			i = len(slots)
			index[it.SlotName] = i
			slots = append(slots, domain.ResolvedKitSlot{
				SlotName:         it.SlotName,
				DefaultItems:     []domain.KitItem{},
				AvailableOptions: []domain.PublicProduct{},
			})
		}
		slot := &slots[i]
		if slot.CategoryID == "" {
			slot.CategoryID = it.SwappableCategoryID
		}
		if it.IsMandatory {
			slot.Required = true
			slot.DefaultItems = append(slot.DefaultItems, it)
		} else {
			slot.AllowMultiple = true
		}
	}
	for i := range slots {
		slots[i].SelectedItems = append([]domain.KitItem{}, slots[i].DefaultItems...)
	}
	return slots
}

// fillOptions loads swappable options for every slot concurrently. A failed
// lookup leaves that slot without options.
func (s *KitService) fillOptions(ctx context.Context, slots []domain.ResolvedKitSlot, lang string) {
	var g errgroup.Group
	g.SetLimit(optionFetchLimit)
	for i := range slots {
		if slots[i].CategoryID == "" {
			continue
		}
		slot := &slots[i]
		g.Go(func() error {
			prods, err := s.Prods.VisibleByCategory(ctx, slot.CategoryID)
			if err != nil {
				s.Log.Warn("kit slot options unavailable",
					zap.String("slot", slot.SlotName),
					zap.String("category_id", slot.CategoryID),
					zap.Error(err))
				return nil
			}
			for _, p := range prods {
				slot.AvailableOptions = append(slot.AvailableOptions, p.Public(lang, s.FileURL))
			}
			return nil
		})
	}
	_ = g.Wait()
}
