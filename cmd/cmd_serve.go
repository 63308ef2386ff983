// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"log"

	"github.com/jcodagnone/pharmalocator/cart"
	"github.com/jcodagnone/pharmalocator/server"
	"github.com/spf13/cobra"
)

var serveOptions struct {
	Addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the locator API and page",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := rootOptions.newSession(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		if err := env.session.Start(commandContext(cmd)); err != nil {
			// The page shows the error and offers a retry.
			log.Printf("Initial search failed: %v", err)
		}

		var cartClient server.CartClient

		c, err := cart.NewClient(rootOptions.APIURL, rootOptions.httpClient())
		if err != nil {
			log.Printf("Cart disabled: %v", err)
		} else {
			cartClient = c
		}

		return server.NewServer(env.session, cartClient, env.history).Run(serveOptions.Addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOptions.Addr, "addr", "localhost:8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}
