package common

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"astromine-go/internal/api"
	"astromine-go/internal/asteroid"
	"astromine-go/internal/config"
	"astromine-go/internal/database"
	"astromine-go/internal/host"
	"astromine-go/internal/inventory"
	"astromine-go/internal/leaderboard"
	"astromine-go/internal/memstore"
	"astromine-go/internal/mining"
	"astromine-go/internal/models"
	"astromine-go/internal/rediskv"
	"astromine-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Store    store.KVStore
	Rules    *models.Rules
	Registry *asteroid.Registry
	Ledger   *inventory.Ledger
	Board    *leaderboard.Leaderboard
	Miner    *mining.Miner
	Game     *api.GameService
	Host     host.ContentHost
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// OpenStore connects the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg models.StoreConfig) (store.KVStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.NewStore(cfg.Memory), nil
	case "sqlite":
		return database.NewService(ctx, cfg.Database)
	case "redis":
		return rediskv.NewStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Opening store", zap.String("backend", cfg.Store.Backend))
	kv, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	contentHost, err := host.New(cfg.Host, kv)
	if err != nil {
		kv.Close()
		return nil, err
	}

	roller := models.NewRoller()
	registry := asteroid.NewRegistry(kv, cfg.Scheduler.AsteroidTTL, roller)
	ledger := inventory.NewLedger(kv, rules)
	board := leaderboard.New(kv)
	miner := mining.NewMiner(registry, ledger, board, rules, roller)

	return &Services{
		Store:    kv,
		Rules:    rules,
		Registry: registry,
		Ledger:   ledger,
		Board:    board,
		Miner:    miner,
		Game:     api.NewGameService(kv, registry, ledger, board, miner, rules),
		Host:     contentHost,
	}, nil
}

func (cs *Services) Close() error {
	var err error
	if closer, ok := cs.Host.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	if cs.Store != nil {
		err = multierr.Append(err, cs.Store.Close())
	}
	return err
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
