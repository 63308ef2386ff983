// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/jcodagnone/pharmalocator/cart"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/spf13/cobra"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Manages the cart",
}

var cartAddCmd = &cobra.Command{
	Use:   "add <medicine> <offer-id>",
	Short: "Adds a medicine offer to the cart",
	Long: `
Searches for the medicine and adds the offer with the given id to the cart.
When the cart holds items from another pharmacy you are asked before it is
cleared.
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := pharmacy.ParseID(args[1])
		if err != nil {
			return fmt.Errorf("invalid offer id %q: %w", args[1], err)
		}

		ctx := commandContext(cmd)

		fetcher, err := rootOptions.fetcher()
		if err != nil {
			return err
		}

		result, err := fetcher.Fetch(ctx, args[0])
		if err != nil {
			return err
		}

		var offer *pharmacy.MedicineOffer

		for i := range result.MedicineOffers {
			if result.MedicineOffers[i].ID == id {
				offer = &result.MedicineOffers[i]

				break
			}
		}

		if offer == nil {
			return fmt.Errorf("no offer %d for %q", id, args[0])
		}

		client, err := cart.NewClient(rootOptions.APIURL, rootOptions.httpClient())
		if err != nil {
			return err
		}

		c, err := client.AddWithConfirmation(ctx, offer, cart.NewTerminalConfirmer())
		if errors.Is(err, cart.ErrCancelled) {
			fmt.Println("Cart left unchanged.")

			return nil
		} else if err != nil {
			return err
		}

		for _, item := range c.Items {
			fmt.Printf("%3d x %-30s %10s\n", item.Quantity, truncate(item.Name, 30), item.Subtotal().StringFixed(2))
		}

		fmt.Printf("%-36s %10s\n", "Total", c.Amount().StringFixed(2))

		return nil
	},
}

func init() {
	cartCmd.AddCommand(cartAddCmd)
	rootCmd.AddCommand(cartCmd)
}
