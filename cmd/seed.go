// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/corridorhq/corridor/fleet"
	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/corridorhq/corridor/store"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type seedOptions struct {
	File           string
	Geocode        bool
	GeocodeWorkers int
	Tables         []string
}

var seedOpts = &seedOptions{}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// coordOf reads the nested coord.lat / coord.lng of towns and stations.
func coordOf(r store.Record) (spatial.Point, bool) {
	coord, ok := r["coord"].(map[string]any)
	if !ok {
		return spatial.Point{}, false
	}

	return latLngOf(coord)
}

// latLngOf reads the flat lat / lng of checkpoints.
func latLngOf(r map[string]any) (spatial.Point, bool) {
	lat, okLat := asFloat(r["lat"])
	lng, okLng := asFloat(r["lng"])

	if !okLat || !okLng {
		return spatial.Point{}, false
	}

	p := spatial.Point{Lat: lat, Lng: lng}

	return p, p.Validate() == nil
}

func checkpointPoint(r store.Record) (spatial.Point, bool) {
	return latLngOf(r)
}

// addCells sets h3Cell on every record that has a position and no cell yet.
func addCells(records []store.Record, pointOf func(store.Record) (spatial.Point, bool)) int {
	n := 0

	for _, r := range records {
		if _, ok := r["h3Cell"]; ok {
			continue
		}

		p, ok := pointOf(r)
		if !ok {
			continue
		}

		cell, err := spatial.CellOf(p, spatial.DefaultCellResolution)
		if err != nil {
			log.Printf("Skipping h3 cell for %v: %v", r["name"], err)

			continue
		}

		r["h3Cell"] = cell.String()
		n++
	}

	return n
}

// addRouteDistances sets distance, in kilometers, on every route that has
// none from its start and end stations. Stations are looked up among
// known first and then in the store.
func addRouteDistances(ctx context.Context, d *store.Dispatcher, routes []store.Record, known map[string]store.Record) (int, error) {
	station := func(v any) (spatial.Point, bool, error) {
		id, _ := v.(string)
		if id == "" {
			return spatial.Point{}, false, nil
		}

		r, ok := known[id]
		if !ok {
			var err error
			if r, err = d.GetByID(ctx, fleet.Stations, id, store.Query{}); err != nil {
				return spatial.Point{}, false, err
			}
		}

		if r == nil {
			return spatial.Point{}, false, nil
		}

		p, ok := coordOf(r)

		return p, ok, nil
	}

	n := 0

	for _, r := range routes {
		if _, ok := r["distance"]; ok {
			continue
		}

		from, okFrom, err := station(r["startPoint"])
		if err != nil {
			return n, fmt.Errorf("looking up start of %v: %w", r["code"], err)
		}

		to, okTo, err := station(r["endPoint"])
		if err != nil {
			return n, fmt.Errorf("looking up end of %v: %w", r["code"], err)
		}

		if !okFrom || !okTo {
			log.Printf("Skipping distance for route %v: missing station position", r["code"])

			continue
		}

		r["distance"] = spatial.HaversineDistance(from, to)
		n++
	}

	return n, nil
}

// geocodeTowns fills coord for the towns that lack one, using up to workers
// concurrent lookups. Failed lookups are logged and leave the town as is.
func geocodeTowns(ctx context.Context, g geo.Geocoder, towns []store.Record, workers int) int {
	var pending []store.Record

	for _, t := range towns {
		if _, ok := coordOf(t); !ok {
			pending = append(pending, t)
		}
	}

	if len(pending) == 0 {
		return 0
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(pending),
			progressbar.OptionSetDescription("Geocoding towns"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	if workers <= 0 {
		workers = 1
	}

	var done atomic.Int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, t := range pending {
		address := strings.Join(nonEmpty(t["name"], t["country"]), ", ")

		eg.Go(func() error {
			if bar != nil {
				defer func() { _ = bar.Add(1) }()
			}

			res, err := g.Geocode(egCtx, address)
			if err != nil {
				log.Printf("Geocoding %q failed: %v", address, err)

				return nil
			}

			// each goroutine owns its town
			t["coord"] = map[string]any{"lat": res.Point.Lat, "lng": res.Point.Lng}
			done.Add(1)

			if bar == nil {
				log.Printf("Geocoded %q to %s", address, res.Point)
			}

			return nil
		})
	}

	_ = eg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	return int(done.Load())
}

func nonEmpty(values ...any) []string {
	var out []string

	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}

	return out
}

// seedTables applies seed table by table, skipping tables that already hold
// records. Records are enriched before insertion; g may be nil to skip town
// geocoding.
func seedTables(ctx context.Context, d *store.Dispatcher, seed *store.SeedData, g geo.Geocoder, workers int) error {
	stations := map[string]store.Record{}

	for _, t := range seed.Tables {
		if t.Table != fleet.Stations {
			continue
		}

		for _, r := range t.Records {
			if id := r.ID(); id != "" {
				stations[id] = r
			}
		}
	}

	for _, t := range seed.Tables {
		count, err := d.Count(ctx, t.Table)
		if err != nil {
			return fmt.Errorf("counting %s: %w", t.Table, err)
		}

		if count > 0 {
			log.Printf("%s already holds %d records, skipping", t.Table, count)

			continue
		}

		switch t.Table {
		case fleet.Towns:
			if g != nil {
				n := geocodeTowns(ctx, g, t.Records, workers)
				log.Printf("Geocoded %d towns", n)
			}
		case fleet.Stations:
			addCells(t.Records, coordOf)
		case fleet.Checkpoints:
			addCells(t.Records, checkpointPoint)
		case fleet.Routes:
			if _, err := addRouteDistances(ctx, d, t.Records, stations); err != nil {
				return err
			}
		}

		seeded, n, err := store.SeedIfEmpty(ctx, d, t.Table, t.Records)
		if err != nil {
			return err
		}

		if seeded {
			log.Printf("Seeded %s with %d records", t.Table, n)
		}
	}

	return nil
}

func newSeedCmd() *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seeds empty tables with data from cmd/testdata/seed.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			seed, err := store.LoadSeedFile(seedOpts.File)
			if err != nil {
				return fmt.Errorf("loading %s: %w", seedOpts.File, err)
			}

			h, err := openStore(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			var g geo.Geocoder

			if seedOpts.Geocode {
				client, err := newGoogleClient(ctx, rootOpts)
				if err != nil {
					return err
				}

				g = geo.NewCachedGeocoder(client, h.d)
			}

			if err := seedTables(ctx, h.d, seed, g, seedOpts.GeocodeWorkers); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Database seeded successfully.")

			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Writes the records of the seed tables to a seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openStore(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			if err := store.ExportToJSON(cmd.Context(), h.d, seedOpts.Tables, args[0]); err != nil {
				return fmt.Errorf("exporting to %s: %w", args[0], err)
			}

			log.Printf("Exported %s to %s", strings.Join(seedOpts.Tables, ", "), args[0])

			return nil
		},
	}

	seedCmd.Flags().StringVar(
		&seedOpts.File,
		"file",
		"cmd/testdata/seed.json",
		"Seed file to load",
	)
	seedCmd.Flags().BoolVar(
		&seedOpts.Geocode,
		"geocode",
		false,
		"Geocodes towns without coordinates through Google Maps",
	)
	seedCmd.Flags().IntVar(
		&seedOpts.GeocodeWorkers,
		"geocode-workers",
		4,
		"Concurrent geocoding requests",
	)
	exportCmd.Flags().StringSliceVar(
		&seedOpts.Tables,
		"tables",
		[]string{fleet.Towns, fleet.Stations, fleet.Checkpoints, fleet.Routes, fleet.Companies},
		"Tables to export, in load order",
	)
	seedCmd.AddCommand(exportCmd)

	return seedCmd
}

func init() {
	rootCmd.AddCommand(newSeedCmd())
}
