package cart

import (
	"encoding/json"
	"sync"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 999

// Line is one cart row. Quantity is always between 1 and MaxQuantity.
type Line struct {
	ID       product.Key
	Item     product.Item
	Quantity int
	Subtotal pricing.Money
}

// UnitPrice returns the authoritative price of the line item.
func (l Line) UnitPrice() pricing.Money {
	return product.UnitPrice(l.Item)
}

type lineJSON struct {
	ID        product.Key      `json:"id"`
	Item      product.Envelope `json:"item"`
	Quantity  int              `json:"quantity"`
	UnitPrice pricing.Money    `json:"unitPrice"`
	Subtotal  pricing.Money    `json:"subtotal"`
}

// MarshalJSON implements json.Marshaler.
func (l Line) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineJSON{
		ID:        l.ID,
		Item:      product.Envelope{Item: l.Item},
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice(),
		Subtotal:  l.Subtotal,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The id and subtotal are derived from the item.
func (l *Line) UnmarshalJSON(b []byte) error {
	var raw lineJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = newLine(raw.Item.Item, raw.Quantity)
	return nil
}

func capQuantity(quantity int) int {
	return min(quantity, MaxQuantity)
}

func newLine(item product.Item, quantity int) Line {
	quantity = capQuantity(quantity)
	l := Line{ID: item.Key(), Item: item, Quantity: quantity}
	l.Subtotal = pricing.Money(quantity) * l.UnitPrice()
	return l
}

// Snapshot is an immutable view of the cart with derived totals.
type Snapshot struct {
	Lines       []Line        `json:"lines"`
	TotalItems  int           `json:"totalItems"`
	TotalAmount pricing.Money `json:"totalAmount"`
	Version     uint64        `json:"version"`
}

// Empty reports whether the snapshot has no lines.
func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

// PricingItems maps the lines onto pricing inputs.
func (s Snapshot) PricingItems() []pricing.Item {
	items := make([]pricing.Item, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, pricing.Item{Qty: l.Quantity, UnitPrice: l.UnitPrice()})
	}
	return items
}

// Store holds the cart of one session. Totals are derived from lines on every read.
type Store struct {
	mu       sync.RWMutex
	lines    []Line
	version  uint64
	onChange func(Snapshot)
}

// New returns an empty cart.
func New() *Store {
	return &Store{}
}

// OnChange registers fn to be called after every mutation that changed the cart.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// AddToCart merges quantity into the line for item, appending a new line when
// absent. Quantities below 1 are treated as 1 and the merged quantity
// saturates at MaxQuantity.
func (s *Store) AddToCart(item product.Item, quantity int) {
	if item == nil {
		return
	}
	quantity = capQuantity(max(quantity, 1))
	s.mutate(func() bool {
		key := item.Key()
		if i := s.indexOf(key); i >= 0 {
			s.lines[i] = newLine(item, s.lines[i].Quantity+quantity)
			return true
		}
		s.lines = append(s.lines, newLine(item, quantity))
		return true
	})
}

// UpdateQuantity sets the quantity of a line. Values are clamped to zero and a
// zero quantity removes the line. Values above MaxQuantity are capped.
func (s *Store) UpdateQuantity(id product.Key, quantity int) {
	quantity = capQuantity(max(quantity, 0))
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		if quantity == 0 {
			s.removeAt(i)
			return true
		}
		if s.lines[i].Quantity == quantity {
			return false
		}
		s.lines[i] = newLine(s.lines[i].Item, quantity)
		return true
	})
}

// RemoveFromCart deletes the line if present.
func (s *Store) RemoveFromCart(id product.Key) {
	s.mutate(func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}
		s.removeAt(i)
		return true
	})
}

// ClearCart removes every line.
func (s *Store) ClearCart() {
	s.mutate(func() bool {
		if len(s.lines) == 0 {
			return false
		}
		s.lines = nil
		return true
	})
}

// Restore replaces the cart contents, merging duplicate ids, dropping
// non-positive quantities and capping at MaxQuantity.
func (s *Store) Restore(lines []Line) {
	s.mutate(func() bool {
		s.lines = nil
		for _, l := range lines {
			if l.Item == nil || l.Quantity < 1 {
				continue
			}
			qty := capQuantity(l.Quantity)
			if i := s.indexOf(l.Item.Key()); i >= 0 {
				s.lines[i] = newLine(l.Item, s.lines[i].Quantity+qty)
				continue
			}
			s.lines = append(s.lines, newLine(l.Item, qty))
		}
		return true
	})
}

// IsInCart reports whether a line exists for id.
func (s *Store) IsInCart(id product.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// GetItemQuantity returns the quantity for id or 0 when absent.
func (s *Store) GetItemQuantity(id product.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.lines[i].Quantity
	}
	return 0
}

// TotalItems sums line quantities.
func (s *Store) TotalItems() int {
	return s.Snapshot().TotalItems
}

// TotalAmount sums quantity times unit price over all lines.
func (s *Store) TotalAmount() pricing.Money {
	return s.Snapshot().TotalAmount
}

// Version increments on every effective mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot copies the lines and derives the totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Lines: make([]Line, len(s.lines)), Version: s.version}
	copy(snap.Lines, s.lines)
	for _, l := range snap.Lines {
		snap.TotalItems += l.Quantity
		snap.TotalAmount += pricing.Money(l.Quantity) * l.UnitPrice()
	}
	return snap
}

func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
}

func (s *Store) indexOf(id product.Key) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAt(i int) {
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
}
