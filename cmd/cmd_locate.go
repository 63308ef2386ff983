// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolves the search origin",
	Long: `
Resolves the point distances are measured from. Without a device fix the
default location is used and the reason is reported.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		loc := rootOptions.resolver(cmd).Resolve(commandContext(cmd))

		fmt.Printf("%s (%s)\n", loc.Point, loc.Source)

		if msg := loc.Reason.Message(); msg != "" {
			fmt.Println(msg)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
