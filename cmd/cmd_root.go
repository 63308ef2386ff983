// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/pharmalocator/geoloc"
	"github.com/jcodagnone/pharmalocator/history"
	"github.com/jcodagnone/pharmalocator/locator"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/spatial"
	"github.com/jcodagnone/pharmalocator/utils/httputils"
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

const defaultAPIURL = "http://localhost:8000/api"

type globalOptions struct {
	APIURL              string
	Token               string
	DbPath              string
	GCPProject          string
	Lat                 float64
	Lng                 float64
	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool
	Timeout             time.Duration
}

var rootOptions = &globalOptions{}

var rootCmd = &cobra.Command{
	Use:   "pharmalocator",
	Short: "find pharmacies and medicines near you",
	Long: `
pharmalocator finds the pharmacies closest to you, or those stocking a given
medicine, ranks them by distance and lets you add their offers to your cart.
`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()

		// A missing .env is fine, the environment may be set already.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		if !flags.Changed("api-url") {
			if v := os.Getenv("PHARMALOCATOR_API_URL"); v != "" {
				rootOptions.APIURL = v
			}
		}

		if !flags.Changed("token") {
			rootOptions.Token = os.Getenv("PHARMALOCATOR_TOKEN")
		}

		if flags.Changed("lat") != flags.Changed("lng") {
			return fmt.Errorf("--lat and --lng must be used together")
		}

		return nil
	},
	SilenceUsage: true,
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
	flags := rootCmd.PersistentFlags()
	flags.StringVar(
		&rootOptions.APIURL,
		"api-url",
		defaultAPIURL,
		"Base URL of the pharmacy backend (env PHARMALOCATOR_API_URL)",
	)
	flags.StringVar(
		&rootOptions.Token,
		"token",
		"",
		"Bearer token sent to the backend (env PHARMALOCATOR_TOKEN)",
	)
	flags.StringVar(
		&rootOptions.DbPath,
		"db-path",
		"db",
		"Directory of the search history database. Empty disables the history",
	)
	flags.StringVar(
		&rootOptions.GCPProject,
		"gcp-project",
		"",
		"Project holding the geolocation API key when GOOGLE_MAPS_API_KEY is not set",
	)
	flags.Float64Var(&rootOptions.Lat, "lat", 0, "Use this latitude instead of locating the device")
	flags.Float64Var(&rootOptions.Lng, "lng", 0, "Use this longitude instead of locating the device")
	flags.BoolVar(
		&rootOptions.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	flags.BoolVar(
		&rootOptions.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)
	flags.DurationVar(
		&rootOptions.Timeout,
		"timeout",
		0,
		"Timeout of backend requests. Zero relies on the transport defaults",
	)
}

func (o *globalOptions) httpClient() *http.Client {
	return httputils.NewClient(&httputils.ClientOptions{
		UserAgent:           fmt.Sprintf("pharmalocator/%s", Version),
		Token:               o.Token,
		EnableHTTPTrace:     o.EnableHTTPTrace,
		EnableHTTPBodyTrace: o.EnableHTTPBodyTrace,
		Timeout:             o.Timeout,
	})
}

func (o *globalOptions) fetcher() (*pharmacy.Client, error) {
	return pharmacy.NewClient(o.APIURL, o.httpClient())
}

// resolver locates with the --lat/--lng flags, else with the Google
// Geolocation API when a key is available.
func (o *globalOptions) resolver(cmd *cobra.Command) *geoloc.Resolver {
	if cmd.Flags().Changed("lat") {
		return geoloc.NewResolver(&geoloc.FixedProvider{Point: spatial.Point{Lat: o.Lat, Lng: o.Lng}}, nil)
	}

	apiKey, err := geoloc.APIKey(cmd.Context(), o.GCPProject)
	if err != nil {
		log.Printf("Geolocation unavailable: %v", err)

		return geoloc.NewResolver(nil, nil)
	}

	return geoloc.NewResolver(geoloc.NewGoogleGeolocator(apiKey, o.httpClient()), nil)
}

// openHistory returns a nil repository when the history is disabled.
func (o *globalOptions) openHistory() (history.Repository, func(), error) {
	if o.DbPath == "" {
		return nil, func() {}, nil
	}

	if err := os.MkdirAll(o.DbPath, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(o.DbPath, "pharmalocator.duckdb"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := history.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return repo, func() { db.Close() }, nil
}

type sessionEnv struct {
	session *locator.Session
	history history.Repository
	close   func()
}

func (o *globalOptions) newSession(cmd *cobra.Command) (*sessionEnv, error) {
	fetcher, err := o.fetcher()
	if err != nil {
		return nil, err
	}

	repo, closeHistory, err := o.openHistory()
	if err != nil {
		return nil, err
	}

	opts := locator.Options{
		Resolver: o.resolver(cmd),
		Fetcher:  fetcher,
	}
	if repo != nil {
		opts.Log = repo
	}

	session := locator.NewSession(opts)

	return &sessionEnv{
		session: session,
		history: repo,
		close: func() {
			session.Close()
			closeHistory()
		},
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
