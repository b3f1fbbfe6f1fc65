// identityctx service main entry point
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/ozlabs/identityctx/internal/buildinfo"
	"github.com/ozlabs/identityctx/pkg/config"
	"github.com/ozlabs/identityctx/pkg/identity"
	"github.com/ozlabs/identityctx/pkg/payload"
)

const (
	defaultConfigPath      = "/etc/identityctx/config.yaml"
	defaultSchemaPath      = "/etc/identityctx/schemas/identity-context.schema.json"
	defaultRefreshInterval = 15 * time.Minute
	defaultMetricsPort     = ":8080"
	defaultHealthPort      = ":8081"
)

func main() {
	once := flag.Bool("once", false, "emit a single envelope to stdout and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("identityctx %s (commit %s, built %s, %s)\n",
			buildinfo.Version, buildinfo.GitCommit, buildinfo.BuildDate, buildinfo.GoVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	validator, err := createValidator(cfg)
	if err != nil {
		log.Fatalf("Failed to create payload validator: %v", err)
	}

	var queryTimeout time.Duration
	if cfg.Executor.Timeout != "" {
		queryTimeout, _ = time.ParseDuration(cfg.Executor.Timeout) // validated at load
	}

	idCtx := identity.New(identity.Settings{
		Executor:          identity.NewShellExecutor(cfg.Executor.Shell, queryTimeout),
		CohortCount:       cfg.Identity.CohortCount,
		InternalDomains:   cfg.Identity.InternalDomains,
		AccountScript:     cfg.Executor.AccountScript,
		ExtensionsScript:  cfg.Executor.ExtensionsScript,
		HostVersionScript: cfg.Executor.HostVersionScript,
	})

	if *once {
		idCtx.Refresh(context.Background())
		if err := emitEnvelope(idCtx, validator); err != nil {
			log.Fatalf("Failed to emit envelope: %v", err)
		}
		return
	}

	log.Println("Starting identityctx agent...")
	log.Printf("Session ID: %s", idCtx.SessionID)

	// Start metrics server
	go startMetricsServer(cfg.Observability.MetricsPort)

	// Start health check server
	if cfg.Observability.HealthCheckEnabled {
		go startHealthServer(cfg.Observability.HealthCheckPort)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start refresh loop
	go runRefreshLoop(ctx, cfg, idCtx, validator)

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutdown signal received, stopping identityctx...")
	cancel()
	log.Println("identityctx stopped")
}

// loadConfig loads service configuration, applying defaults for unset fields
func loadConfig() (*config.Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// A missing default config file is a supported deployment: run on defaults.
		if os.Getenv("CONFIG_PATH") == "" && errors.Is(err, os.ErrNotExist) {
			log.Printf("No configuration file at %s, using defaults", configPath)
			cfg = &config.Config{}
			cfg.Identity.CohortCount = 6
		} else {
			return nil, err
		}
	}

	if cfg.Observability.MetricsPort == "" {
		cfg.Observability.MetricsPort = defaultMetricsPort
	}
	if cfg.Observability.HealthCheckPort == "" {
		cfg.Observability.HealthCheckPort = defaultHealthPort
	}

	return cfg, nil
}

// createValidator creates the envelope schema validator
func createValidator(cfg *config.Config) (*payload.Validator, error) {
	schemaPath := os.Getenv("SCHEMA_PATH")
	if schemaPath == "" {
		schemaPath = cfg.Payload.SchemaPath
	}
	if schemaPath == "" {
		schemaPath = defaultSchemaPath
	}

	return payload.NewValidator(schemaPath, cfg.Payload.EnableValidation)
}

// runRefreshLoop refreshes the context and emits an envelope at the configured interval
func runRefreshLoop(ctx context.Context, cfg *config.Config, idCtx *identity.Context, validator *payload.Validator) {
	interval := defaultRefreshInterval
	if cfg.Identity.RefreshInterval != "" {
		if parsed, err := time.ParseDuration(cfg.Identity.RefreshInterval); err == nil {
			interval = parsed
		}
	}

	// Run initial refresh immediately
	refreshAndEmit(ctx, idCtx, validator)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refreshAndEmit(ctx, idCtx, validator)
		case <-ctx.Done():
			log.Println("Refresh loop stopped")
			return
		}
	}
}

// refreshAndEmit performs a single refresh cycle
func refreshAndEmit(ctx context.Context, idCtx *identity.Context, validator *payload.Validator) {
	refreshStart := time.Now()
	idCtx.Refresh(ctx)

	if err := emitEnvelope(idCtx, validator); err != nil {
		log.Printf("Envelope emit error: %v", err)
		return
	}

	log.Printf("Refresh cycle completed in %v: cohort=%d internal=%t",
		time.Since(refreshStart), idCtx.Cohort(), idCtx.IsInternal())
}

// emitEnvelope builds, validates and writes one envelope to stdout
func emitEnvelope(idCtx *identity.Context, validator *payload.Validator) error {
	platform, platformVersion := collectPlatform()

	envelope := payload.Build(idCtx, platform, platformVersion)
	data, err := envelope.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := validator.Validate(data); err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

// collectPlatform gathers OS facts for envelope enrichment
func collectPlatform() (string, string) {
	info, err := host.Info()
	if err != nil {
		log.Printf("Warning: failed to collect platform info: %v", err)
		return "", ""
	}

	return info.Platform, info.PlatformVersion
}

// startMetricsServer starts the Prometheus metrics endpoint
func startMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Metrics server listening on %s", port)
	if err := http.ListenAndServe(port, mux); err != nil {
		log.Printf("Metrics server error: %v", err)
	}
}

// startHealthServer starts the health check endpoint
func startHealthServer(port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Printf("Health server listening on %s", port)
	if err := http.ListenAndServe(port, mux); err != nil {
		log.Printf("Health server error: %v", err)
	}
}
