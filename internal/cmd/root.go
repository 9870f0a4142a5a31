package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/noot-app/recipebox/internal/auth"
	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/mcpgo"
	"github.com/noot-app/recipebox/internal/server"
	"github.com/noot-app/recipebox/internal/telemetry"
	"github.com/noot-app/recipebox/internal/version"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the final draft flush on exit
const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipebox",
		Short: "Recipe composer MCP server with live nutrition totals",
		Long: `Recipebox lets an MCP client compose, edit and save recipes while it keeps
a running protein/carbs/fat total for the ingredient list.

The server operates in three modes:

1. STDIO Mode (--stdio): For local MCP clients
   - Uses stdio pipes for communication
   - No authentication required

2. HTTP Mode (default): For remote deployment
   - Streamable HTTP MCP endpoint at /mcp
   - Requires Bearer token authentication (except /health)

3. Fetch Database Mode (--fetch-db): Download dataset and exit
   - Downloads/updates the Open Food Facts Parquet dataset used when
     NUTRITION_SOURCE=parquet
   - Exits after download completion (does not start server)

Nutrition sources (NUTRITION_SOURCE):
- api: the recipe backend's ingredient search (default)
- parquet: a local Open Food Facts dataset queried with DuckDB
- mock: in-memory backend and ingredients, for local trials

The in-progress draft is stored in SQLite (DRAFT_DB_PATH) and survives restarts.

Authentication (HTTP Mode Only):
Use the AUTH_TOKEN environment variable to set the bearer token.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}

			if fetchDB, _ := cmd.Flags().GetBool("fetch-db"); fetchDB {
				return runFetchDBMode(cmd)
			}

			if stdio, _ := cmd.Flags().GetBool("stdio"); stdio {
				return runStdioMode(cmd)
			}
			return runHTTPMode(cmd)
		},
	}

	cmd.Flags().Bool("stdio", false, "Run in stdio mode for local MCP clients (default: HTTP mode for remote deployment)")
	cmd.Flags().Bool("fetch-db", false, "Fetch the nutrition dataset and exit")
	cmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	return cmd
}

// runFetchDBMode fetches the dataset and exits
func runFetchDBMode(cmd *cobra.Command) error {
	logger := config.NewTextLogger(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}

	logger.Info("🗄️  Starting database fetch",
		"mode", "fetch-db",
		"target_dir", filepath.Dir(cfg.ParquetPath))

	logger.Info("⚠️  Large dataset warning",
		"message", "The Open Food Facts dataset is several GB in size",
		"note", "Initial download may take several minutes")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.NewInitializer(cfg, logger).RefreshDataset(ctx); err != nil {
		logger.Error("Failed to fetch dataset", "error", err)
		return err
	}

	logger.Info("✅ Database fetch completed successfully",
		"parquet_path", cfg.ParquetPath,
		"metadata_path", cfg.MetadataPath)
	return nil
}

// runStdioMode serves one session over stdio
func runStdioMode(cmd *cobra.Command) error {
	// stdout carries MCP traffic
	logger := config.NewLogger(true)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}

	logger.Info("🔌 Starting Recipebox MCP Server in STDIO mode",
		"mode", "stdio",
		"auth", "not required for stdio mode",
		"transport", "stdio pipes",
		"version", version.Tag())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initTelemetry(ctx, cfg); err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		return err
	}
	defer shutdownTelemetry()

	rt, err := server.NewInitializer(cfg, logger).Initialize(ctx)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return err
	}
	defer closeRuntime(rt, logger)

	mcpSrv := mcpgo.NewServer(rt.Session, rt.Health, auth.NewBearerTokenAuth(cfg.AuthToken), logger,
		mcpgo.WithDetailedErrors(cfg.IsDevelopment()))
	return mcpSrv.ServeStdio()
}

// runHTTPMode serves the session over streamable HTTP until interrupted
func runHTTPMode(cmd *cobra.Command) error {
	logger := config.NewLogger(false)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}

	logger.Info("🌐 Starting Recipebox MCP Server in HTTP mode",
		"mode", "http",
		"auth", "Bearer token required (except /health endpoint)",
		"transport", "streamable HTTP",
		"port", cfg.Port,
		"version", version.Tag())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initTelemetry(ctx, cfg); err != nil {
		logger.Error("Failed to initialize telemetry", "error", err)
		return err
	}
	defer shutdownTelemetry()

	rt, err := server.NewInitializer(cfg, logger).Initialize(ctx)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return err
	}
	defer closeRuntime(rt, logger)

	mcpSrv := mcpgo.NewServer(rt.Session, rt.Health, auth.NewBearerTokenAuth(cfg.AuthToken), logger,
		mcpgo.WithDetailedErrors(cfg.IsDevelopment()))
	return mcpSrv.ServeHTTP(ctx, ":"+cfg.Port)
}

func initTelemetry(ctx context.Context, cfg *config.Config) error {
	return telemetry.Init(ctx, telemetry.Options{
		Enabled:      cfg.TelemetryEnabled,
		OTLPEndpoint: cfg.OTLPEndpoint,
		ServiceName:  "recipebox",
		Version:      version.Tag(),
	})
}

func shutdownTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	telemetry.Shutdown(ctx)
}

func closeRuntime(rt *server.Runtime, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		logger.Error("Failed to close runtime", "error", err)
	}
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
