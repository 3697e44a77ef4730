// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

const (
	backendMongo  = "mongo"
	backendDuckDB = "duckdb"
)

type rootOptions struct {
	Backend             string
	MongoURI            string
	MongoDatabase       string
	DuckDBPath          string
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
}

var rootOpts = &rootOptions{}

// flagEnv maps persistent flags to the environment variables that provide
// their defaults.
var flagEnv = map[string]string{
	"backend":     "CORRIDOR_BACKEND",
	"mongo-uri":   "MONGODB_URI",
	"mongo-db":    "MONGODB_DATABASE",
	"duckdb-path": "DUCKDB_PATH",
}

// applyEnv sets every flag the user did not pass from its environment
// variable.
func applyEnv(cmd *cobra.Command, env map[string]string) error {
	for name, key := range env {
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}

		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}

		if err := cmd.Flags().Set(name, v); err != nil {
			return fmt.Errorf("applying %s: %w", key, err)
		}
	}

	return nil
}

// loadDotEnv loads the given files, .env by default, into the environment.
// A missing file is not an error.
func loadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

var rootCmd = &cobra.Command{
	Use:   "corridor",
	Short: "transport corridor records and geospatial helpers",
	Long: `
corridor manages the towns, stations, checkpoints and routes of a freight
corridor together with the companies, drivers, vehicles and trips that use it.
It serves them over HTTP and answers distance, travel time and elevation
questions backed by Google Maps.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadDotEnv(); err != nil {
			log.Printf("ignoring .env: %v", err)
		}

		if err := applyEnv(cmd, flagEnv); err != nil {
			return err
		}

		switch rootOpts.Backend {
		case backendMongo, backendDuckDB:
			return nil
		default:
			return fmt.Errorf("unknown backend %q, want %s or %s", rootOpts.Backend, backendMongo, backendDuckDB)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version",
	Args:  cobra.NoArgs,
	// no .env or backend needed
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(
		&rootOpts.Backend,
		"backend",
		backendDuckDB,
		"Storage backend: mongo or duckdb",
	)
	rootCmd.PersistentFlags().StringVar(
		&rootOpts.MongoURI,
		"mongo-uri",
		"mongodb://localhost:27017",
		"MongoDB connection string",
	)
	rootCmd.PersistentFlags().StringVar(
		&rootOpts.MongoDatabase,
		"mongo-db",
		"corridor",
		"MongoDB database name",
	)
	rootCmd.PersistentFlags().StringVar(
		&rootOpts.DuckDBPath,
		"duckdb-path",
		"db/corridor.duckdb",
		"DuckDB database file",
	)
	rootCmd.PersistentFlags().BoolVar(
		&rootOpts.EnableHTTPTrace,
		"trace-http",
		false,
		"Display Google Maps HTTP requests-responses",
	)
	rootCmd.PersistentFlags().BoolVar(
		&rootOpts.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Display Google Maps HTTP requests-responses bodies",
	)
}
