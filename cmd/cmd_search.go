// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcodagnone/pharmalocator/locator"
	"github.com/jcodagnone/pharmalocator/utils/textutils"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Lists the pharmacies nearest to you",
	Long: `
Lists the pharmacies nearest to the search origin. With a term, only the
pharmacies stocking a matching medicine are listed, followed by their offers.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := rootOptions.newSession(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("Searching"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
		}

		err = env.session.StartWith(commandContext(cmd), strings.Join(args, " "))

		if bar != nil {
			_ = bar.Finish()
		}

		snapshot := env.session.Snapshot()
		if snapshot.Banner != "" {
			fmt.Fprintln(os.Stderr, snapshot.Banner)
		}

		if err != nil {
			return fmt.Errorf("%s: %w", snapshot.Error, err)
		}

		printSnapshot(os.Stdout, &snapshot)

		return nil
	},
}

func printSnapshot(w io.Writer, s *locator.Snapshot) {
	if len(s.Pharmacies) == 0 {
		fmt.Fprintln(w, "No pharmacies found.")

		return
	}

	a, b, c, d := strings.Repeat("─", 6), strings.Repeat("─", 30), strings.Repeat("─", 9), strings.Repeat("─", 5)
	fmt.Fprintf(w, "╭─%6s─┬─%-30s─┬─%9s─┬─%5s─╮\n", a, b, c, d)
	fmt.Fprintf(w, "│ %6s │ %-30s │ %9s │ %-5s │\n", "Id", "Pharmacy", "Distance", "Stars")
	fmt.Fprintf(w, "├─%6s─┼─%-30s─┼─%9s─┼─%5s─┤\n", a, b, c, d)

	for _, p := range s.Pharmacies {
		fmt.Fprintf(w, "│ %6d │ %-30s │ %9s │ %-5s │\n",
			p.StoreID, truncate(p.Name, 30), textutils.FormatDistance(p.DistanceKm), textutils.Stars(p.Rating))
	}

	fmt.Fprintf(w, "╰─%6s─┴─%-30s─┴─%9s─┴─%5s─╯\n", a, b, c, d)

	if len(s.MedicineOffers) == 0 {
		return
	}

	fmt.Fprintln(w)

	for _, o := range s.MedicineOffers {
		fmt.Fprintf(w, "%6d  %-30s %10s  stock %-4d %s\n",
			o.ID, truncate(o.BrandName, 30), o.Price.StringFixed(2), o.Stock, o.PharmacyName)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-1]) + "…"
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
