package kiosk

import (
	"context"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/patrickmn/go-cache"
)

const (
	menuCacheKey        = "menu"
	DefaultMenuCacheTTL = 5 * time.Minute
)

type MenuItem struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Tags  []string `json:"tags"`
	Image string   `json:"image,omitempty"`
}

func (i MenuItem) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MenuSource loads the sellable items from the ordering backend.
type MenuSource interface {
	Menu(ctx context.Context) ([]MenuItem, error)
}

// MenuCatalog serves the menu, caching the last good load and falling back to
// the static catalog when the backend cannot be reached.
type MenuCatalog struct {
	source   MenuSource
	cache    *cache.Cache
	fallback []MenuItem
	logger   apt.Logger
}

func NewMenuCatalog(source MenuSource, ttl time.Duration, logger apt.Logger) *MenuCatalog {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if ttl <= 0 {
		ttl = DefaultMenuCacheTTL
	}
	return &MenuCatalog{
		source:   source,
		cache:    cache.New(ttl, 2*ttl),
		fallback: StaticCatalog(),
		logger:   logger,
	}
}

// Load returns the menu. It never fails: a backend error yields the static catalog.
func (c *MenuCatalog) Load(ctx context.Context) []MenuItem {
	if x, found := c.cache.Get(menuCacheKey); found {
		return cloneMenu(x.([]MenuItem))
	}

	if c.source == nil {
		return cloneMenu(c.fallback)
	}

	items, err := c.source.Menu(ctx)
	if err != nil {
		c.logger.Error("menu load failed, serving static catalog", "error", err)
		return cloneMenu(c.fallback)
	}

	items = sanitizeMenu(items)
	c.cache.Set(menuCacheKey, items, cache.DefaultExpiration)
	c.logger.Debug("menu loaded", "count", len(items))
	return cloneMenu(items)
}

// Find looks up an item by id in the current menu.
func (c *MenuCatalog) Find(ctx context.Context, id string) (MenuItem, bool) {
	for _, item := range c.Load(ctx) {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}

func (c *MenuCatalog) Invalidate() {
	c.cache.Delete(menuCacheKey)
}

// sanitizeMenu drops items without an id or with a negative price and keeps the
// first occurrence of duplicated ids.
func sanitizeMenu(items []MenuItem) []MenuItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]MenuItem, 0, len(items))
	for _, item := range items {
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" || item.Price < 0 {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func cloneMenu(items []MenuItem) []MenuItem {
	out := make([]MenuItem, len(items))
	for i, item := range items {
		item.Tags = append([]string(nil), item.Tags...)
		out[i] = item
	}
	return out
}

// StaticCatalog is the built-in menu used when the backend is unavailable.
func StaticCatalog() []MenuItem {
	return []MenuItem{
		{ID: "classic_burger", Name: "Classic Burger", Price: 6.99, Tags: []string{"burger", "beef"}},
		{ID: "cheese_burger", Name: "Cheese Burger", Price: 7.49, Tags: []string{"burger", "beef"}},
		{ID: "double_burger", Name: "Double Burger", Price: 8.99, Tags: []string{"burger", "beef"}},
		{ID: "veggie_burger", Name: "Veggie Burger", Price: 6.49, Tags: []string{"burger", "veg"}},
		{ID: "spicy_chicken_burger", Name: "Spicy Chicken Burger", Price: 7.99, Tags: []string{"burger", "chicken", "spicy"}},

		{ID: "fries_small", Name: "Small Fries", Price: 2.49, Tags: []string{"side"}},
		{ID: "fries_large", Name: "Large Fries", Price: 3.49, Tags: []string{"side"}},
		{ID: "curly_fries", Name: "Curly Fries", Price: 3.99, Tags: []string{"side"}},
		{ID: "onion_rings", Name: "Onion Rings", Price: 3.99, Tags: []string{"side"}},
		{ID: "side_salad", Name: "Side Salad", Price: 3.49, Tags: []string{"veg", "healthy", "side"}},

		{ID: "cola_small", Name: "Cola (Small)", Price: 1.49, Tags: []string{"drink"}},
		{ID: "cola_large", Name: "Cola (Large)", Price: 2.49, Tags: []string{"drink"}},
		{ID: "orange_soda", Name: "Orange Soda", Price: 2.49, Tags: []string{"drink"}},
		{ID: "lemonade", Name: "Fresh Lemonade", Price: 2.99, Tags: []string{"drink"}},
		{ID: "iced_tea", Name: "Iced Tea", Price: 2.49, Tags: []string{"drink", "healthy"}},
		{ID: "coffee", Name: "Coffee", Price: 1.99, Tags: []string{"drink", "hot"}},
		{ID: "milkshake_chocolate", Name: "Chocolate Milkshake", Price: 3.99, Tags: []string{"drink", "dessert"}},
		{ID: "milkshake_strawberry", Name: "Strawberry Milkshake", Price: 3.99, Tags: []string{"drink", "dessert"}},

		{ID: "chicken_nuggets_6", Name: "Chicken Nuggets (6 pc)", Price: 4.99, Tags: []string{"chicken"}},
		{ID: "chicken_nuggets_12", Name: "Chicken Nuggets (12 pc)", Price: 7.99, Tags: []string{"chicken"}},
		{ID: "crispy_chicken_strips", Name: "Crispy Chicken Strips", Price: 6.99, Tags: []string{"chicken"}},

		{ID: "greek_salad", Name: "Greek Salad", Price: 6.49, Tags: []string{"veg", "healthy"}},
		{ID: "chicken_salad", Name: "Chicken Salad", Price: 7.49, Tags: []string{"healthy", "chicken"}},
		{ID: "veggie_wrap", Name: "Veggie Wrap", Price: 5.99, Tags: []string{"veg", "healthy"}},
		{ID: "chicken_wrap", Name: "Chicken Wrap", Price: 6.99, Tags: []string{"healthy", "chicken"}},

		{ID: "kids_burger", Name: "Kids Burger Meal", Price: 4.99, Tags: []string{"kids"}},
		{ID: "kids_nuggets", Name: "Kids Nuggets Meal", Price: 4.99, Tags: []string{"kids"}},
		{ID: "apple_slices", Name: "Apple Slices", Price: 1.29, Tags: []string{"kids", "healthy"}},
		{ID: "juice_box", Name: "Juice Box", Price: 1.29, Tags: []string{"kids", "drink"}},

		{ID: "ice_cream", Name: "Soft Serve Ice Cream", Price: 1.99, Tags: []string{"dessert"}},
		{ID: "brownie", Name: "Chocolate Brownie", Price: 2.99, Tags: []string{"dessert"}},
	}
}
