package statekit

import (
	"context"

	"go.uber.org/zap"
)

// CartBaseName prefixes every identity-scoped cart storage key.
const CartBaseName = "cart"

// CartLine is a single product entry in the cart. Quantity is always a
// positive integer; a line whose quantity reaches zero is removed, never
// persisted as zero.
type CartLine struct {
	ProductID string `json:"product_id"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
	StockCap  int64  `json:"stock_cap"`
}

// CartState is the persisted cart payload: ordered lines unique by product id
// plus a version counter that strictly increases on every committed mutation.
type CartState struct {
	Lines   []CartLine `json:"lines"`
	Version int64      `json:"version"`
}

// CartAggregate owns cart mutations on top of an identity-keyed collection.
// Every mutation persists synchronously and bumps the version counter.
type CartAggregate struct {
	collection *IdentityKeyedCollection[CartState]
}

// NewCartAggregate constructs a cart bound to the given store.
func NewCartAggregate(store KeyValueStore, logger *zap.Logger) *CartAggregate {
	return &CartAggregate{
		collection: NewIdentityKeyedCollection(CartBaseName, store, func() CartState { return CartState{} }, logger),
	}
}

// SwitchIdentity reloads the cart under the new identity's storage key.
func (cart *CartAggregate) SwitchIdentity(ctx context.Context, identity Identity) {
	cart.collection.SwitchIdentity(ctx, identity)
}

// Load reads the persisted cart for the given identity.
func (cart *CartAggregate) Load(ctx context.Context, identity Identity) error {
	return cart.collection.Load(ctx, identity)
}

// Identity returns the identity whose cart is currently loaded.
func (cart *CartAggregate) Identity() Identity {
	return cart.collection.Identity()
}

// AddItem merges quantity into an existing line for the product, or appends a
// new line. Quantities below one are treated as one. The stock cap is
// recorded on the line but deliberately not enforced here; callers that need
// the cap apply it at presentation time.
func (cart *CartAggregate) AddItem(ctx context.Context, productID string, unitPrice int64, stockCap int64, quantity int64) error {
	if quantity < 1 {
		quantity = 1
	}
	return cart.collection.Update(ctx, func(state *CartState) {
		for index := range state.Lines {
			if state.Lines[index].ProductID == productID {
				state.Lines[index].Quantity += quantity
				state.Version++
				return
			}
		}
		state.Lines = append(state.Lines, CartLine{
			ProductID: productID,
			UnitPrice: unitPrice,
			Quantity:  quantity,
			StockCap:  stockCap,
		})
		state.Version++
	})
}

// RemoveItem drops the line for the product. The version is bumped even when
// no line matches, so observers always see a committed mutation.
func (cart *CartAggregate) RemoveItem(ctx context.Context, productID string) error {
	return cart.collection.Update(ctx, func(state *CartState) {
		filtered := state.Lines[:0]
		for _, line := range state.Lines {
			if line.ProductID != productID {
				filtered = append(filtered, line)
			}
		}
		state.Lines = filtered
		state.Version++
	})
}

// UpdateQuantity replaces the quantity for the product. A quantity of zero or
// less removes the line.
func (cart *CartAggregate) UpdateQuantity(ctx context.Context, productID string, newQuantity int64) error {
	if newQuantity <= 0 {
		return cart.RemoveItem(ctx, productID)
	}
	return cart.collection.Update(ctx, func(state *CartState) {
		for index := range state.Lines {
			if state.Lines[index].ProductID == productID {
				state.Lines[index].Quantity = newQuantity
				break
			}
		}
		state.Version++
	})
}

// Clear empties the cart.
func (cart *CartAggregate) Clear(ctx context.Context) error {
	return cart.collection.Update(ctx, func(state *CartState) {
		state.Lines = nil
		state.Version++
	})
}

// Lines returns a copy of the current cart lines.
func (cart *CartAggregate) Lines() []CartLine {
	state := cart.collection.Snapshot()
	lines := make([]CartLine, len(state.Lines))
	copy(lines, state.Lines)
	return lines
}

// Version returns the current version counter.
func (cart *CartAggregate) Version() int64 {
	return cart.collection.Snapshot().Version
}

// TotalPrice folds unit price times quantity over the current lines.
func (cart *CartAggregate) TotalPrice() int64 {
	var total int64
	for _, line := range cart.collection.Snapshot().Lines {
		total += line.UnitPrice * line.Quantity
	}
	return total
}

// TotalItems folds quantities over the current lines.
func (cart *CartAggregate) TotalItems() int64 {
	var total int64
	for _, line := range cart.collection.Snapshot().Lines {
		total += line.Quantity
	}
	return total
}
