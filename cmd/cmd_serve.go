// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/corridorhq/corridor/api"
	"github.com/corridorhq/corridor/geo"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	Addr string
}

var serveOpts = &serveOptions{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the HTTP API",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return applyEnv(cmd, map[string]string{"addr": "CORRIDOR_ADDR"})
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h, err := openStore(ctx, rootOpts)
		if err != nil {
			return err
		}
		defer h.Close()

		opts := api.Options{Ping: h.ping}

		client, err := newGoogleClient(ctx, rootOpts)
		if err != nil {
			log.Printf("Google Maps disabled: %v", err)
		} else {
			opts.Routes = geo.NewRouteService(geo.NewCachedGeocoder(client, h.d), client)
			opts.Elevation = client
		}

		if err := api.NewServer(h.d, opts).Run(ctx, serveOpts.Addr); err != nil {
			return fmt.Errorf("running server: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveOpts.Addr,
		"addr",
		":8080",
		"Address to listen on",
	)
}
