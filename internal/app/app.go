// Package app wires configuration, storage, clients, and services into
// one application core shared by the server binary and tests.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tradepop/datalake/internal/clients/eodhd"
	"github.com/tradepop/datalake/internal/clients/fmp"
	"github.com/tradepop/datalake/internal/common"
	"github.com/tradepop/datalake/internal/interfaces"
	"github.com/tradepop/datalake/internal/services/chart"
	"github.com/tradepop/datalake/internal/services/ingest"
	"github.com/tradepop/datalake/internal/services/universe"
	"github.com/tradepop/datalake/internal/storage/sqlite"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	BarFetcher  interfaces.BarFetcher
	Screener    interfaces.SymbolScreener
	Ingest      interfaces.IngestService
	Universe    interfaces.UniverseService
	Chart       interfaces.ChartService
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes storage, clients, and
// services. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Config resolution: explicit path, DATALAKE_CONFIG, binary dir,
	// then the development fallback.
	if configPath == "" {
		configPath = os.Getenv("DATALAKE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "datalake.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/datalake.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to the binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	return NewAppWithConfig(config, logger)
}

// NewAppWithConfig builds the application core from an already-loaded
// config. Tests use this to avoid file resolution.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	if logger == nil {
		logger = common.NewDefaultLogger()
	}

	storageManager, err := sqlite.NewManager(config.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Clients.EODHD.APIKey == "" {
		logger.Warn().Msg("EODHD API key not configured - bar ingestion will fail")
	}
	if config.Clients.FMP.APIKey == "" {
		logger.Warn().Msg("FMP API key not configured - universe refresh will be unavailable")
	}

	fetcher := eodhd.NewClient(config.Clients.EODHD.APIKey,
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		eodhd.WithLogger(logger),
	)
	screener := fmp.NewClient(config.Clients.FMP.APIKey,
		fmp.WithBaseURL(config.Clients.FMP.BaseURL),
		fmp.WithRateLimit(config.Clients.FMP.RateLimit),
		fmp.WithTimeout(config.Clients.FMP.GetTimeout()),
		fmp.WithLogger(logger),
	)

	ingestService := ingest.NewService(storageManager, fetcher, logger, ingest.Options{
		MaxAttempts:        config.Ingest.GetMaxAttempts(),
		StaleThreshold:     config.Ingest.GetStaleThreshold(),
		DefaultWindowDays:  config.Ingest.GetDefaultWindowDays(),
		MinArchiveKeepDays: config.Ingest.GetMinArchiveKeepDays(),
		VendorTimeout:      config.Clients.EODHD.GetTimeout(),
	})

	return &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		BarFetcher:  fetcher,
		Screener:    screener,
		Ingest:      ingestService,
		Universe:    universe.NewService(storageManager, screener, logger),
		Chart:       chart.NewService(storageManager, logger),
		StartupTime: time.Now(),
	}, nil
}

// Close stops background workers and releases storage.
func (a *App) Close() error {
	a.Ingest.Stop()
	return a.Storage.Close()
}
