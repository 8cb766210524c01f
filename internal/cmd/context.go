package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/wiggum/internal/agent"
	"github.com/Iron-Ham/wiggum/internal/backend"
	"github.com/Iron-Ham/wiggum/internal/config"
	"github.com/Iron-Ham/wiggum/internal/executor"
	"github.com/Iron-Ham/wiggum/internal/logging"
	"github.com/Iron-Ham/wiggum/internal/phase"
	"github.com/Iron-Ham/wiggum/internal/store"
)

// appContext bundles the wired components a command needs. Built once
// per invocation from the loaded configuration.
type appContext struct {
	cfg        *config.Config
	dataDir    string
	logger     *logging.Logger
	store      store.Store
	controller *agent.Controller
}

// newAppContext loads config, resolves the data directory, and wires the
// logger, store, executor stack, and controller.
func newAppContext() (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	dataDir := cfg.Paths.ResolveDataDir(cwd)

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(dataDir, cfg.Logging.Level, cfg.RotationConfig())
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
	}

	st, err := openStore(cfg, dataDir)
	if err != nil {
		logger.Close()
		return nil, err
	}

	runner := executor.NewProjectExecutor(
		backend.NewGenerator(cfg.Backend.GenerateCommand, logger),
		backend.NewCritic(cfg.Backend.CritiqueCommand, logger),
		backend.NewApplier(cfg.Backend.ApplyCommand, logger),
		phase.NewKeywordClassifier(),
		cfg.ProjectExecutorConfig(),
		logger,
	)

	controller, err := agent.New(runner, st, logger)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("creating controller: %w", err)
	}

	return &appContext{
		cfg:        cfg,
		dataDir:    dataDir,
		logger:     logger,
		store:      st,
		controller: controller,
	}, nil
}

// Close releases resources held by the context.
func (a *appContext) Close() {
	if closer, ok := a.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	_ = a.logger.Close()
}

// openStore builds the configured persistence backend rooted in dataDir.
func openStore(cfg *config.Config, dataDir string) (store.Store, error) {
	switch cfg.Store.Backend {
	case "", "file":
		s, err := store.NewFileStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, nil
	case "sqlite":
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		s, err := store.NewSQLiteStore(sqlitePath(dataDir))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// sqlitePath returns the sqlite database path under dataDir.
func sqlitePath(dataDir string) string {
	return filepath.Join(dataDir, "agent-state.db")
}
