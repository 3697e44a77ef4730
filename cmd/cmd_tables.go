// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/corridorhq/corridor/store"
	"github.com/corridorhq/corridor/utils/textutils"
	"github.com/spf13/cobra"
)

func printTables(ctx context.Context, d *store.Dispatcher, out io.Writer) error {
	a, b := strings.Repeat("─", 14), strings.Repeat("─", 10)
	fmt.Fprintf(out, "╭─%-14s─┬─%10s─╮\n", a, b)
	fmt.Fprintf(out, "│ %-14s │ %10s │\n", "Table", "Records")
	fmt.Fprintf(out, "├─%-14s─┼─%10s─┤\n", a, b)

	for _, table := range d.Registry().Tables() {
		n, err := d.Count(ctx, table)
		if err != nil {
			return fmt.Errorf("counting %s: %w", table, err)
		}

		fmt.Fprintf(out, "│ %-14s │ %10s │\n", table, textutils.FormatInt(n))
	}

	fmt.Fprintf(out, "╰─%-14s─┴─%10s─╯\n", a, b)

	return nil
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Lists the tables and their record counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := openStore(cmd.Context(), rootOpts)
		if err != nil {
			return err
		}
		defer h.Close()

		return printTables(cmd.Context(), h.d, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}
