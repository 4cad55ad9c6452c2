package kiosk

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMenuCatalogLoad(t *testing.T) {
	tests := []struct {
		name      string
		source    func() *MockMenuSource
		nilSource bool
		wantIDs   []string
		wantFirst string
	}{
		{
			name: "backendMenu",
			source: func() *MockMenuSource {
				return NewMockMenuSource(MenuItem{ID: "burger", Price: 5}, MenuItem{ID: "fries", Price: 2})
			},
			wantIDs: []string{"burger", "fries"},
		},
		{
			name: "sanitizesInvalidAndDuplicates",
			source: func() *MockMenuSource {
				return NewMockMenuSource(
					MenuItem{ID: "burger", Price: 5},
					MenuItem{ID: " ", Price: 1},
					MenuItem{ID: "refund", Price: -1},
					MenuItem{ID: "burger", Price: 9},
				)
			},
			wantIDs: []string{"burger"},
		},
		{
			name: "backendErrorServesStaticCatalog",
			source: func() *MockMenuSource {
				m := NewMockMenuSource()
				m.MenuFunc = func(ctx context.Context) ([]MenuItem, error) {
					return nil, errors.New("connection refused")
				}
				return m
			},
			wantFirst: StaticCatalog()[0].ID,
		},
		{
			name:      "noSourceServesStaticCatalog",
			nilSource: true,
			wantFirst: StaticCatalog()[0].ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c *MenuCatalog
			if tt.nilSource {
				c = NewMenuCatalog(nil, 0, nil)
			} else {
				c = NewMenuCatalog(tt.source(), time.Minute, nil)
			}

			items := c.Load(context.Background())

			if tt.wantIDs != nil {
				if len(items) != len(tt.wantIDs) {
					t.Fatalf("Load() = %d items, want %v", len(items), tt.wantIDs)
				}
				for i, id := range tt.wantIDs {
					if items[i].ID != id {
						t.Errorf("items[%d] = %s, want %s", i, items[i].ID, id)
					}
				}
			}
			if tt.wantFirst != "" {
				if len(items) != len(StaticCatalog()) || items[0].ID != tt.wantFirst {
					t.Errorf("Load() did not serve the static catalog")
				}
			}
		})
	}
}

func TestMenuCatalogCachesBackendMenu(t *testing.T) {
	source := NewMockMenuSource(MenuItem{ID: "burger", Price: 5, Tags: []string{"beef"}})
	c := NewMenuCatalog(source, time.Minute, nil)

	first := c.Load(context.Background())
	first[0].Tags[0] = "changed"
	c.Load(context.Background())

	if source.Calls() != 1 {
		t.Errorf("backend calls = %d, want 1", source.Calls())
	}
	if got := c.Load(context.Background())[0].Tags[0]; got != "beef" {
		t.Errorf("cached item changed through returned slice: %s", got)
	}

	c.Invalidate()
	c.Load(context.Background())
	if source.Calls() != 2 {
		t.Errorf("backend calls after Invalidate = %d, want 2", source.Calls())
	}
}

func TestMenuCatalogDoesNotCacheFallback(t *testing.T) {
	source := NewMockMenuSource()
	fail := true
	source.MenuFunc = func(ctx context.Context) ([]MenuItem, error) {
		if fail {
			return nil, errors.New("down")
		}
		return []MenuItem{{ID: "burger"}}, nil
	}
	c := NewMenuCatalog(source, time.Minute, nil)

	c.Load(context.Background())
	fail = false
	items := c.Load(context.Background())

	if len(items) != 1 || items[0].ID != "burger" {
		t.Errorf("Load() after recovery = %v, want backend menu", items)
	}
}

func TestMenuCatalogFind(t *testing.T) {
	c := NewMenuCatalog(NewMockMenuSource(MenuItem{ID: "burger", Price: 5}), time.Minute, nil)

	if item, ok := c.Find(context.Background(), "burger"); !ok || item.Price != 5 {
		t.Errorf("Find(burger) = %+v, %v", item, ok)
	}
	if _, ok := c.Find(context.Background(), "pizza"); ok {
		t.Error("Find(pizza) found an item")
	}
}

func TestStaticCatalogIsValid(t *testing.T) {
	items := StaticCatalog()
	if len(sanitizeMenu(items)) != len(items) {
		t.Error("static catalog has invalid or duplicated items")
	}
}
