package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// StandardVariant is the display label for a line without a variant.
const StandardVariant = "Standard"

// Item is what the shopper adds to the bag.
type Item struct {
	ProductID    string
	VariantLabel *string
	Name         string
	UnitPrice    decimal.Decimal
	ImageRef     string
}

// Line is one purchasable unit in the basket. A cart holds at most one line per
// (ProductID, VariantLabel).
type Line struct {
	ProductID    string          `json:"productId"`
	VariantLabel *string         `json:"variantLabel"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ImageRef     string          `json:"imageRef"`
	Quantity     int             `json:"quantity"`
}

// Variant returns the display label, "Standard" when unset.
func (l Line) Variant() string {
	if l.VariantLabel == nil {
		return StandardVariant
	}
	return *l.VariantLabel
}

// LineTotal returns unit price times quantity.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Target names the variant a line is moved to, with an optional image override.
type Target struct {
	VariantLabel *string
	ImageRef     string
}

// Snapshot is the derived view of a cart. It is rebuilt on every read.
type Snapshot struct {
	Items          []Line          `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalItemCount int             `json:"totalItemCount"`
	// Opened asks the UI to reveal the cart drawer after an add.
	Opened bool `json:"opened,omitempty"`
}

// Store owns the lines of one cart. It is not safe for concurrent use; each
// request builds its own Store from the repository.
type Store struct {
	lines []Line
}

// NewStore rebuilds a store from persisted lines. Duplicate keys are merged and
// quantities below one are raised to one so stored data cannot break the
// store's invariants.
func NewStore(lines []Line) *Store {
	s := &Store{lines: make([]Line, 0, len(lines))}
	for _, line := range lines {
		line.VariantLabel = NormalizeVariant(line.VariantLabel)
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		if idx := s.index(line.ProductID, line.VariantLabel); idx >= 0 {
			s.lines[idx].Quantity += line.Quantity
			continue
		}
		s.lines = append(s.lines, line)
	}
	return s
}

// AddItem increments the matching line or appends a new line with quantity 1.
func (s *Store) AddItem(item Item) {
	variant := NormalizeVariant(item.VariantLabel)
	if idx := s.index(item.ProductID, variant); idx >= 0 {
		s.lines[idx].Quantity++
		return
	}
	s.lines = append(s.lines, Line{
		ProductID:    item.ProductID,
		VariantLabel: variant,
		Name:         item.Name,
		UnitPrice:    item.UnitPrice,
		ImageRef:     item.ImageRef,
		Quantity:     1,
	})
}

// RemoveItem deletes the matching line. Absent lines are ignored.
func (s *Store) RemoveItem(productID string, variant *string) {
	idx := s.index(productID, NormalizeVariant(variant))
	if idx < 0 {
		return
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
}

// UpdateQuantity adds delta to the matching line, never going below 1.
// Removal only happens through RemoveItem. Reports whether a line matched.
func (s *Store) UpdateQuantity(productID string, variant *string, delta int) bool {
	idx := s.index(productID, NormalizeVariant(variant))
	if idx < 0 {
		return false
	}
	next := s.lines[idx].Quantity + delta
	if next < 1 {
		next = 1
	}
	s.lines[idx].Quantity = next
	return true
}

// UpdateVariant re-keys a line to another variant keeping its quantity. When
// the destination line already exists the two are merged into it.
func (s *Store) UpdateVariant(productID string, oldVariant *string, target Target) bool {
	from := NormalizeVariant(oldVariant)
	to := NormalizeVariant(target.VariantLabel)
	idx := s.index(productID, from)
	if idx < 0 {
		return false
	}
	if sameVariant(from, to) {
		if target.ImageRef != "" {
			s.lines[idx].ImageRef = target.ImageRef
		}
		return true
	}

	if dst := s.index(productID, to); dst >= 0 {
		s.lines[dst].Quantity += s.lines[idx].Quantity
		if target.ImageRef != "" {
			s.lines[dst].ImageRef = target.ImageRef
		}
		s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
		return true
	}

	s.lines[idx].VariantLabel = to
	if target.ImageRef != "" {
		s.lines[idx].ImageRef = target.ImageRef
	}
	return true
}

// Clear drops every line.
func (s *Store) Clear() {
	s.lines = s.lines[:0]
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return len(s.lines) == 0
}

// Subtotal sums unit price times quantity over all lines.
func (s *Store) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// TotalItemCount sums quantities over all lines.
func (s *Store) TotalItemCount() int {
	count := 0
	for _, line := range s.lines {
		count += line.Quantity
	}
	return count
}

// Snapshot derives the current totals.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Items:          s.Lines(),
		Subtotal:       s.Subtotal(),
		TotalItemCount: s.TotalItemCount(),
	}
}

func (s *Store) index(productID string, variant *string) int {
	for i, line := range s.lines {
		if line.ProductID == productID && sameVariant(line.VariantLabel, variant) {
			return i
		}
	}
	return -1
}

// NormalizeVariant maps blank and "Standard" labels to nil.
func NormalizeVariant(variant *string) *string {
	if variant == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*variant)
	if trimmed == "" || strings.EqualFold(trimmed, StandardVariant) {
		return nil
	}
	return &trimmed
}

func sameVariant(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
