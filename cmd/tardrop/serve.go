package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tardrop/internal/config"
	"tardrop/internal/engine"
	"tardrop/internal/history"
	"tardrop/internal/server"
	"tardrop/internal/store"
	"tardrop/pkg/fileutil"

	"github.com/spf13/cobra"
)

var (
	serveConfigFile string
	archiveDir      string
	extractDir      string
	symlinkPath     string
	tempDir         string
	keepArchive     int
	keepExtract     int
	host            string
	port            int
	dbPath          string
	logFile         string
	postDeploy      string
	testMode        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deployment receiver",
	Long: `Start the HTTP server that receives tar.gz uploads and deploys them.

The receiver is unauthenticated; bind it to loopback only. Flags override
values from the optional tardrop.yaml config file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", getEnvOrDefault("TARDROP_CONFIG_FILE", ""), "Path to tardrop.yaml configuration file")
	serveCmd.Flags().StringVar(&archiveDir, "archive-dir", getEnvOrDefault("TARDROP_ARCHIVE_DIR", ""), "Directory to save uploaded archives")
	serveCmd.Flags().StringVar(&extractDir, "extract-dir", getEnvOrDefault("TARDROP_EXTRACT_DIR", ""), "Directory to extract releases into")
	serveCmd.Flags().StringVar(&symlinkPath, "symlink-path", getEnvOrDefault("TARDROP_SYMLINK_PATH", ""), "Path of the active-release symlink")
	serveCmd.Flags().StringVar(&tempDir, "temp-dir", getEnvOrDefault("TARDROP_TEMP_DIR", ""), "Directory for in-delivery archives (default system temp)")
	serveCmd.Flags().IntVar(&keepArchive, "keep-archive", getEnvOrDefaultInt("TARDROP_KEEP_ARCHIVE", -1), "Number of archives to keep, 0 means never vacuum")
	serveCmd.Flags().IntVar(&keepExtract, "keep-extract", getEnvOrDefaultInt("TARDROP_KEEP_EXTRACT", -1), "Number of extracted releases to keep, 0 means never vacuum")
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("TARDROP_HOST", ""), "Host to bind to (loopback strongly recommended)")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("TARDROP_PORT", 0), "Port to listen on")
	serveCmd.Flags().StringVar(&dbPath, "db", getEnvOrDefault("TARDROP_DB_PATH", "./uploads.db"), "Path to SQLite upload history (empty disables history)")
	serveCmd.Flags().StringVar(&logFile, "log", getEnvOrDefault("TARDROP_LOG_FILE", "./tardrop.log"), "Path to log file")
	serveCmd.Flags().StringVar(&postDeploy, "post-deploy", getEnvOrDefault("TARDROP_POST_DEPLOY", ""), "Command to run in the new release after each deploy")
	serveCmd.Flags().BoolVar(&testMode, "test-mode", false, "Disable rate limiting and history (for tests)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("starting tardrop",
		"archive_dir", cfg.Paths.ArchiveDir,
		"extract_dir", cfg.Paths.ExtractDir,
		"symlink_path", cfg.Paths.SymlinkPath,
		"temp_dir", cfg.Paths.TempDir,
		"keep_archives", cfg.Retention.KeepArchives,
		"keep_extracts", cfg.Retention.KeepExtracts)

	// Fail fast before the listener starts: wrong-kind paths abort startup.
	if err := config.CheckPaths(cfg.Paths); err != nil {
		logger.Error("path validation failed", "error", err)
		return fmt.Errorf("path validation failed: %w", err)
	}

	// Report what the pointer currently serves, if anything. A broken
	// pointer is not fatal; the next deploy replaces it.
	if fileutil.IsSymlink(cfg.Paths.SymlinkPath) {
		if err := fileutil.ValidateSymlink(cfg.Paths.SymlinkPath); err != nil {
			logger.Warn("release pointer is broken", "path", cfg.Paths.SymlinkPath, "error", err)
		} else if target, err := fileutil.ResolveSymlink(cfg.Paths.SymlinkPath); err == nil {
			logger.Info("active release", "target", target)
		}
	}

	var hist *history.History
	if cfg.History.DBPath != "" && !testMode {
		logger.Info("initializing upload history", "db", cfg.History.DBPath)
		hist, err = history.New(cfg.History.DBPath)
		if err != nil {
			logger.Error("failed to initialize history database", "error", err)
			return fmt.Errorf("failed to initialize history database: %w", err)
		}
		defer hist.Close()
	}

	hook, err := engine.NewHook(cfg.Hook.PostDeploy, time.Duration(cfg.Hook.Timeout)*time.Second, logger)
	if err != nil {
		return err
	}

	st := store.New(cfg.Paths.ArchiveDir, cfg.Paths.TempDir, logger)
	eng := engine.New(st, engine.Options{
		ExtractDir:   cfg.Paths.ExtractDir,
		SymlinkPath:  cfg.Paths.SymlinkPath,
		KeepArchives: cfg.Retention.KeepArchives,
		KeepExtracts: cfg.Retention.KeepExtracts,
		Hook:         hook,
		History:      hist,
	}, logger)

	srv := server.NewServer(eng, logger, testMode)
	if err := srv.Start(cfg.Server.Host, cfg.Server.Port); err != nil {
		logger.Error("server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// resolveConfig loads the optional YAML file and overlays any flags the
// operator supplied, then validates the result.
func resolveConfig() (*config.Config, error) {
	cfg := config.Default()

	path := serveConfigFile
	if path == "" {
		path = fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths("tardrop.yaml"))
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if archiveDir != "" {
		cfg.Paths.ArchiveDir = archiveDir
	}
	if extractDir != "" {
		cfg.Paths.ExtractDir = extractDir
	}
	if symlinkPath != "" {
		cfg.Paths.SymlinkPath = symlinkPath
	}
	if tempDir != "" {
		cfg.Paths.TempDir = tempDir
	}
	if keepArchive >= 0 {
		cfg.Retention.KeepArchives = keepArchive
	}
	if keepExtract >= 0 {
		cfg.Retention.KeepExtracts = keepExtract
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.History.DBPath = dbPath
	}
	if postDeploy != "" {
		cfg.Hook.PostDeploy = postDeploy
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures slog for file logging.
// Returns both the logger and the file handle (caller must close the file).
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
