package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// withRestoredApp runs a collection command against the restored session, so
// cart and wishlist mutations land under whichever identity is active.
func withRestoredApp(command *cobra.Command, run func(ctx context.Context, app *clientApp) error) error {
	app, _, logger, bootErr := bootstrapApp(command)
	if bootErr != nil {
		return bootErr
	}
	defer func() { _ = logger.Sync() }()

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if restoreErr := app.restore(ctx); restoreErr != nil {
		return restoreErr
	}
	return run(ctx, app)
}

func parseQuantityArg(raw string) (int64, error) {
	quantity, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", raw, parseErr)
	}
	return quantity, nil
}

func newCartCommand() *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the cart for the active identity",
	}

	var unitPrice int64
	var stockCap int64
	var quantity int64

	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart, merging with an existing line",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if addErr := app.cart.AddItem(ctx, arguments[0], unitPrice, stockCap, quantity); addErr != nil {
					return addErr
				}
				fmt.Fprintf(command.OutOrStdout(), "cart v%d: %d items\n", app.cart.Version(), app.cart.TotalItems())
				return nil
			})
		},
	}
	addCmd.Flags().Int64Var(&unitPrice, "price", 0, "Unit price in minor currency units")
	addCmd.Flags().Int64Var(&stockCap, "stock-cap", 0, "Known stock limit for the product; zero when unknown")
	addCmd.Flags().Int64Var(&quantity, "qty", 1, "Quantity to add")

	removeCmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if removeErr := app.cart.RemoveItem(ctx, arguments[0]); removeErr != nil {
					return removeErr
				}
				fmt.Fprintf(command.OutOrStdout(), "cart v%d: %d items\n", app.cart.Version(), app.cart.TotalItems())
				return nil
			})
		},
	}

	setQtyCmd := &cobra.Command{
		Use:   "set-qty <product-id> <quantity>",
		Short: "Set a line's quantity; zero or less removes the line",
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, arguments []string) error {
			newQuantity, parseErr := parseQuantityArg(arguments[1])
			if parseErr != nil {
				return parseErr
			}
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if updateErr := app.cart.UpdateQuantity(ctx, arguments[0], newQuantity); updateErr != nil {
					return updateErr
				}
				fmt.Fprintf(command.OutOrStdout(), "cart v%d: %d items\n", app.cart.Version(), app.cart.TotalItems())
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if clearErr := app.cart.Clear(ctx); clearErr != nil {
					return clearErr
				}
				fmt.Fprintf(command.OutOrStdout(), "cart cleared (v%d)\n", app.cart.Version())
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cart lines for the active identity",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				printCart(command, app)
				return nil
			})
		},
	}

	cartCmd.AddCommand(addCmd, removeCmd, setQtyCmd, clearCmd, showCmd)
	return cartCmd
}

func printCart(command *cobra.Command, app *clientApp) {
	out := command.OutOrStdout()
	lines := app.cart.Lines()
	fmt.Fprintf(out, "cart for %s (v%d)\n", app.cart.Identity(), app.cart.Version())
	if len(lines) == 0 {
		fmt.Fprintln(out, "  empty")
		return
	}
	for _, line := range lines {
		fmt.Fprintf(out, "  %s x%d @ %d\n", line.ProductID, line.Quantity, line.UnitPrice)
	}
	fmt.Fprintf(out, "  total: %d items, %d\n", app.cart.TotalItems(), app.cart.TotalPrice())
}

func newWishlistCommand() *cobra.Command {
	wishlistCmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Manage the wishlist for the active identity",
	}

	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if addErr := app.wishlist.Add(ctx, arguments[0]); addErr != nil {
					return addErr
				}
				fmt.Fprintf(command.OutOrStdout(), "wishlist v%d: %d products\n", app.wishlist.Version(), len(app.wishlist.Products()))
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the wishlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				if removeErr := app.wishlist.Remove(ctx, arguments[0]); removeErr != nil {
					return removeErr
				}
				fmt.Fprintf(command.OutOrStdout(), "wishlist v%d: %d products\n", app.wishlist.Version(), len(app.wishlist.Products()))
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the wishlist for the active identity",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return withRestoredApp(command, func(ctx context.Context, app *clientApp) error {
				printWishlist(command, app)
				return nil
			})
		},
	}

	wishlistCmd.AddCommand(addCmd, removeCmd, showCmd)
	return wishlistCmd
}

func printWishlist(command *cobra.Command, app *clientApp) {
	out := command.OutOrStdout()
	products := app.wishlist.Products()
	fmt.Fprintf(out, "wishlist for %s (v%d)\n", app.wishlist.Identity(), app.wishlist.Version())
	if len(products) == 0 {
		fmt.Fprintln(out, "  empty")
		return
	}
	for _, productID := range products {
		fmt.Fprintf(out, "  %s\n", productID)
	}
}
