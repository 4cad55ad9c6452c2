package kiosk

import "sync"

// Cart is an immutable snapshot of the items selected so far, in add order.
type Cart []MenuItem

func (c Cart) Len() int {
	return len(c)
}

func (c Cart) IDs() []string {
	ids := make([]string, len(c))
	for i, item := range c {
		ids[i] = item.ID
	}
	return ids
}

func (c Cart) Total() float64 {
	var total float64
	for _, item := range c {
		total += item.Price
	}
	return total
}

// CartListener receives every new snapshot right after the mutation that produced it.
// It runs while the cart is locked and must not call back into the CartManager.
type CartListener func(Cart)

// CartManager is the single owner of the in-progress cart.
type CartManager struct {
	mu     sync.Mutex
	items  []MenuItem
	notify CartListener
}

func NewCartManager(notify CartListener) *CartManager {
	return &CartManager{notify: notify}
}

// Add appends item, duplicates included.
func (m *CartManager) Add(item MenuItem) Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, item)
	return m.publishLocked()
}

// Remove drops the entry at index. An invalid index leaves the cart unchanged.
func (m *CartManager) Remove(index int) (Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.items) {
		return m.snapshotLocked(), &IndexOutOfRangeError{Index: index, Len: len(m.items)}
	}

	items := make([]MenuItem, 0, len(m.items)-1)
	items = append(items, m.items[:index]...)
	items = append(items, m.items[index+1:]...)
	m.items = items
	return m.publishLocked(), nil
}

func (m *CartManager) Clear() Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	return m.publishLocked()
}

func (m *CartManager) Snapshot() Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *CartManager) publishLocked() Cart {
	snapshot := m.snapshotLocked()
	if m.notify != nil {
		m.notify(snapshot)
	}
	return snapshot
}

func (m *CartManager) snapshotLocked() Cart {
	snapshot := make(Cart, len(m.items))
	copy(snapshot, m.items)
	return snapshot
}
