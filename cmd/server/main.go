package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"coding-agreement/internal/analysis"
	"coding-agreement/internal/api"
	"coding-agreement/internal/config"
	"coding-agreement/internal/service"
	"coding-agreement/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	port       int
)

var rootCmd = &cobra.Command{
	Use:           "agreement-server",
	Short:         "Inter-rater agreement analysis backend",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config and PORT)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openSource builds the statistics source selected by the config. The
// returned closer releases its resources.
func openSource(ctx context.Context, cfg config.SourceConfig) (analysis.StatisticsSource, func(), error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Type {
	case config.SourceHTTP:
		return upstream.NewClient(cfg.BaseURL, cfg.Token, timeout), func() {}, nil
	case config.SourcePostgres, config.SourceSQLite:
		src, err := service.OpenSQLSource(ctx, service.SQLSourceConfig{Driver: cfg.Type, DSN: cfg.DSN})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Type == config.SourceSQLite {
			if err := src.EnsureSchema(ctx); err != nil {
				src.Close()
				return nil, nil, err
			}
		}
		return src, func() { src.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

func serve(ctx context.Context, cfg *config.Config) error {
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	source, closeSource, err := openSource(startCtx, cfg.Source)
	if err != nil {
		return fmt.Errorf("statistics source: %w", err)
	}
	defer closeSource()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := analysis.NewPrometheusMetrics(reg)

	// Initialize Handler
	handler := api.NewHandler(analysis.NewRegistry(source, metrics), reg)

	// Router Setup
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Coding agreement backend is running"))
	})

	handler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting agreement backend on http://localhost%s", addr)
	log.Printf("Statistics source: %s", cfg.Source.Type)
	log.Printf("CORS enabled for: %s", strings.Join(cfg.Server.AllowedOrigins, ", "))

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
