// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jcodagnone/pharmalocator/utils/textutils"
	"github.com/spf13/cobra"
)

var historyOptions struct {
	Limit int
	Top   bool
}

var historyCmd = &cobra.Command{
	Use:   "history [term]",
	Short: "Lists past searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeHistory, err := rootOptions.openHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		if repo == nil {
			return errors.New("history is disabled, set --db-path")
		}

		ctx := commandContext(cmd)

		if historyOptions.Top {
			terms, err := repo.TopTerms(ctx, historyOptions.Limit)
			if err != nil {
				return err
			}

			for _, t := range terms {
				fmt.Printf("%6s  %-30s %s\n", textutils.FormatInt(int64(t.Searches)), t.Term, t.LastSeen.Format("2006-01-02 15:04"))
			}

			return nil
		}

		entries, err := repo.List(ctx, strings.Join(args, " "), historyOptions.Limit)
		if err != nil {
			return err
		}

		for _, e := range entries {
			term := e.Term
			if term == "" {
				term = "(nearby)"
			}

			nearest := "-"
			if e.NearestKm != nil {
				nearest = textutils.FormatDistance(*e.NearestKm)
			}

			status := fmt.Sprintf("%d results", e.Results)
			if e.Error != "" {
				status = e.Error
			}

			fmt.Printf("%s  %-24s %-8s %9s  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), term, e.Source, nearest, status)
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyOptions.Limit, "limit", 20, "Maximum number of rows")
	historyCmd.Flags().BoolVar(&historyOptions.Top, "top", false, "List the most searched terms instead")
	rootCmd.AddCommand(historyCmd)
}
