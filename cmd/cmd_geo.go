// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/corridorhq/corridor/geo"
	"github.com/corridorhq/corridor/spatial"
	"github.com/spf13/cobra"
)

type geoOptions struct {
	Strict bool
}

var geoOpts = &geoOptions{}

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Distance, travel time and elevation helpers",
}

var geoDistanceCmd = &cobra.Command{
	Use:     "distance <lat,lng> <lat,lng>",
	Short:   "Great-circle distance in kilometres",
	Example: "  corridor geo distance -1.2921,36.8219 -4.0435,39.6682",
	Args:    cobra.ExactArgs(2),
	// southern latitudes start with '-'
	DisableFlagParsing: true,
	// no backend needed
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := spatial.ParsePoint(args[0])
		if err != nil {
			return err
		}

		to, err := spatial.ParsePoint(args[1])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", spatial.HaversineDistance(from, to))

		return nil
	},
}

var geoETACmd = &cobra.Command{
	Use:     "eta <duration text>",
	Short:   "Converts a travel time such as \"1 hour 30 mins\" to hours",
	Args:    cobra.MinimumNArgs(1),
	Example: "  corridor geo eta 2 hours 15 mins",
	// no backend needed
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		hours := spatial.ParseDurationText(text)

		if geoOpts.Strict {
			var err error
			if hours, err = spatial.ParseDurationTextStrict(text); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%g\n", hours)

		return nil
	},
}

var geoRouteCmd = &cobra.Command{
	Use:   "route <origin> <destination>",
	Short: "Geocodes two addresses and fetches the road distance between them",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := openStore(ctx, rootOpts)
		if err != nil {
			return err
		}
		defer h.Close()

		client, err := newGoogleClient(ctx, rootOpts)
		if err != nil {
			return err
		}

		svc := geo.NewRouteService(geo.NewCachedGeocoder(client, h.d), client)

		res, err := svc.FetchRouteDistance(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("fetching route: %w", err)
		}

		return writeJSON(cmd.OutOrStdout(), res)
	},
}

var geoElevationCmd = &cobra.Command{
	Use:   "elevation <lat,lng>",
	Short: "Elevation in metres above sea level",
	Args:  cobra.ExactArgs(1),
	// southern latitudes start with '-'
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := spatial.ParsePoint(args[0])
		if err != nil {
			return err
		}

		client, err := newGoogleClient(cmd.Context(), rootOpts)
		if err != nil {
			return err
		}

		m, err := client.Elevation(cmd.Context(), p)
		if err != nil {
			return fmt.Errorf("fetching elevation: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", m)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geoCmd)
	geoCmd.AddCommand(geoDistanceCmd)
	geoCmd.AddCommand(geoETACmd)
	geoCmd.AddCommand(geoRouteCmd)
	geoCmd.AddCommand(geoElevationCmd)
	geoETACmd.Flags().BoolVar(
		&geoOpts.Strict,
		"strict",
		false,
		"Rejects unknown units and malformed numbers instead of ignoring them",
	)
}
