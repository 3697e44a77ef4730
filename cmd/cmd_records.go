// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/corridorhq/corridor/store"
	"github.com/spf13/cobra"
)

type recordsOptions struct {
	Select   string
	Populate string
	Yes      bool
}

var recordsOpts = &recordsOptions{}

func (o *recordsOptions) query() (store.Query, error) {
	proj, err := store.ParseProjection(o.Select)
	if err != nil {
		return store.Query{}, err
	}

	q := store.Query{Projection: proj}

	for _, f := range strings.Split(o.Populate, ",") {
		if f = strings.TrimSpace(f); f != "" {
			q.Expand = append(q.Expand, f)
		}
	}

	return q, nil
}

// recordsRun is a records subcommand body, free of cobra and of the backend
// choice.
type recordsRun func(ctx context.Context, d *store.Dispatcher, in io.Reader, out io.Writer, args []string) error

func withStore(run recordsRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		h, err := openStore(cmd.Context(), rootOpts)
		if err != nil {
			return err
		}
		defer h.Close()

		return run(cmd.Context(), h.d, cmd.InOrStdin(), cmd.OutOrStdout(), args)
	}
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}

// readJSONArg decodes arg, or standard input when arg is "-".
func readJSONArg(arg string, in io.Reader) (any, error) {
	data := []byte(arg)

	if arg == "-" {
		var err error
		if data, err = io.ReadAll(in); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	return v, nil
}

func readObjectArg(arg string, in io.Reader) (map[string]any, error) {
	v, err := readJSONArg(arg, in)
	if err != nil {
		return nil, err
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}

	return m, nil
}

func runList(ctx context.Context, d *store.Dispatcher, _ io.Reader, out io.Writer, args []string) error {
	q, err := recordsOpts.query()
	if err != nil {
		return err
	}

	records, err := d.List(ctx, args[0], q)
	if err != nil {
		return fmt.Errorf("listing %s: %w", args[0], err)
	}

	return writeJSON(out, records)
}

func runGet(ctx context.Context, d *store.Dispatcher, _ io.Reader, out io.Writer, args []string) error {
	q, err := recordsOpts.query()
	if err != nil {
		return err
	}

	record, err := d.GetByID(ctx, args[0], args[1], q)
	if err != nil {
		return fmt.Errorf("getting %s %s: %w", args[0], args[1], err)
	}

	return writeJSON(out, record)
}

func runFind(ctx context.Context, d *store.Dispatcher, in io.Reader, out io.Writer, args []string) error {
	filter, err := readObjectArg(args[1], in)
	if err != nil {
		return err
	}

	proj, err := store.ParseProjection(recordsOpts.Select)
	if err != nil {
		return err
	}

	records, err := d.GetByFilter(ctx, args[0], filter, proj)
	if err != nil {
		return fmt.Errorf("finding %s: %w", args[0], err)
	}

	return writeJSON(out, records)
}

func runExists(ctx context.Context, d *store.Dispatcher, in io.Reader, out io.Writer, args []string) error {
	filter, err := readObjectArg(args[1], in)
	if err != nil {
		return err
	}

	ok, err := d.ExistsByFilter(ctx, args[0], filter)
	if err != nil && !store.IsNotFound(err) {
		return fmt.Errorf("checking %s: %w", args[0], err)
	}

	return writeJSON(out, ok)
}

func runCreate(ctx context.Context, d *store.Dispatcher, in io.Reader, out io.Writer, args []string) error {
	payload, err := readJSONArg(args[1], in)
	if err != nil {
		return err
	}

	created, err := d.Create(ctx, args[0], payload)
	if err != nil {
		return fmt.Errorf("creating %s: %w", args[0], err)
	}

	if _, single := payload.(map[string]any); single && len(created) == 1 {
		return writeJSON(out, created[0])
	}

	return writeJSON(out, created)
}

func runUpdate(ctx context.Context, d *store.Dispatcher, in io.Reader, out io.Writer, args []string) error {
	partial, err := readObjectArg(args[2], in)
	if err != nil {
		return err
	}

	res, err := d.Update(ctx, args[0], args[1], partial)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", args[0], args[1], err)
	}

	return writeJSON(out, res)
}

func runDelete(ctx context.Context, d *store.Dispatcher, _ io.Reader, out io.Writer, args []string) error {
	n, err := d.Delete(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", args[0], args[1], err)
	}

	return writeJSON(out, map[string]int64{"deleted": n})
}

func runDeleteAll(ctx context.Context, d *store.Dispatcher, _ io.Reader, out io.Writer, args []string) error {
	if !recordsOpts.Yes {
		return fmt.Errorf("refusing to delete every %s record without --yes", args[0])
	}

	n, err := d.DeleteAll(ctx, args[0])
	if err != nil {
		return fmt.Errorf("deleting %s: %w", args[0], err)
	}

	return writeJSON(out, map[string]int64{"deleted": n})
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Reads and writes table records",
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	sub := []*cobra.Command{
		{
			Use:   "list <table>",
			Short: "Lists every record of a table",
			Args:  cobra.ExactArgs(1),
			RunE:  withStore(runList),
		},
		{
			Use:   "get <table> <id>",
			Short: "Prints one record, or null",
			Args:  cobra.ExactArgs(2),
			RunE:  withStore(runGet),
		},
		{
			Use:   "find <table> <filter|->",
			Short: "Prints the records matching a JSON equality filter",
			Args:  cobra.ExactArgs(2),
			RunE:  withStore(runFind),
		},
		{
			Use:   "exists <table> <filter|->",
			Short: "Reports whether any record matches a JSON equality filter",
			Args:  cobra.ExactArgs(2),
			RunE:  withStore(runExists),
		},
		{
			Use:   "create <table> <json|->",
			Short: "Creates one record from an object or many from an array",
			Args:  cobra.ExactArgs(2),
			RunE:  withStore(runCreate),
		},
		{
			Use:   "update <table> <id> <json|->",
			Short: "Sets fields on one record",
			Args:  cobra.ExactArgs(3),
			RunE:  withStore(runUpdate),
		},
		{
			Use:   "delete <table> <id>",
			Short: "Deletes one record",
			Args:  cobra.ExactArgs(2),
			RunE:  withStore(runDelete),
		},
		{
			Use:   "delete-all <table>",
			Short: "Deletes every record of a table",
			Args:  cobra.ExactArgs(1),
			RunE:  withStore(runDeleteAll),
		},
	}

	for _, c := range sub {
		recordsCmd.AddCommand(c)
	}

	recordsCmd.PersistentFlags().StringVar(
		&recordsOpts.Select,
		"select",
		"",
		"Fields to include, or to exclude with a leading -, e.g. \"name code\" or \"-password\"",
	)
	recordsCmd.PersistentFlags().StringVar(
		&recordsOpts.Populate,
		"populate",
		"",
		"Comma separated reference fields to expand",
	)
	recordsCmd.PersistentFlags().BoolVar(
		&recordsOpts.Yes,
		"yes",
		false,
		"Confirms delete-all",
	)
}
