package statekit

import (
	"context"

	"go.uber.org/zap"
)

// WishlistBaseName prefixes every identity-scoped wishlist storage key.
const WishlistBaseName = "wishlist"

// WishlistState is the persisted wishlist payload: product references unique
// by id plus a version counter for change detection.
type WishlistState struct {
	ProductIDs []string `json:"product_ids"`
	Version    int64    `json:"version"`
}

// WishlistSet owns the wishlist on top of an identity-keyed collection. It
// follows the same partitioning and persistence rules as the cart, without
// quantities.
type WishlistSet struct {
	collection *IdentityKeyedCollection[WishlistState]
}

// NewWishlistSet constructs a wishlist bound to the given store.
func NewWishlistSet(store KeyValueStore, logger *zap.Logger) *WishlistSet {
	return &WishlistSet{
		collection: NewIdentityKeyedCollection(WishlistBaseName, store, func() WishlistState { return WishlistState{} }, logger),
	}
}

// SwitchIdentity reloads the wishlist under the new identity's storage key.
func (wishlist *WishlistSet) SwitchIdentity(ctx context.Context, identity Identity) {
	wishlist.collection.SwitchIdentity(ctx, identity)
}

// Load reads the persisted wishlist for the given identity.
func (wishlist *WishlistSet) Load(ctx context.Context, identity Identity) error {
	return wishlist.collection.Load(ctx, identity)
}

// Identity returns the identity whose wishlist is currently loaded.
func (wishlist *WishlistSet) Identity() Identity {
	return wishlist.collection.Identity()
}

// Add records a product reference. Adding a product twice keeps one entry;
// the version is bumped either way.
func (wishlist *WishlistSet) Add(ctx context.Context, productID string) error {
	return wishlist.collection.Update(ctx, func(state *WishlistState) {
		for _, existing := range state.ProductIDs {
			if existing == productID {
				state.Version++
				return
			}
		}
		state.ProductIDs = append(state.ProductIDs, productID)
		state.Version++
	})
}

// Remove drops a product reference. The version is bumped even when the
// product is absent.
func (wishlist *WishlistSet) Remove(ctx context.Context, productID string) error {
	return wishlist.collection.Update(ctx, func(state *WishlistState) {
		filtered := state.ProductIDs[:0]
		for _, existing := range state.ProductIDs {
			if existing != productID {
				filtered = append(filtered, existing)
			}
		}
		state.ProductIDs = filtered
		state.Version++
	})
}

// Contains reports whether the product is on the wishlist.
func (wishlist *WishlistSet) Contains(productID string) bool {
	for _, existing := range wishlist.collection.Snapshot().ProductIDs {
		if existing == productID {
			return true
		}
	}
	return false
}

// Products returns a copy of the current product references.
func (wishlist *WishlistSet) Products() []string {
	state := wishlist.collection.Snapshot()
	products := make([]string, len(state.ProductIDs))
	copy(products, state.ProductIDs)
	return products
}

// Version returns the current version counter.
func (wishlist *WishlistSet) Version() int64 {
	return wishlist.collection.Snapshot().Version
}
