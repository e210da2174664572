package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ButyrinIA/community/internal/community"
	"github.com/ButyrinIA/community/internal/config"
	"github.com/ButyrinIA/community/internal/identity"
	"github.com/ButyrinIA/community/internal/logging"
	"github.com/ButyrinIA/community/internal/seed"
	"github.com/ButyrinIA/community/internal/storage"
	"github.com/ButyrinIA/community/internal/storage/memory"
	"github.com/ButyrinIA/community/internal/storage/postgres"
	"github.com/ButyrinIA/community/internal/storage/redis"
	"github.com/ButyrinIA/community/internal/storage/sqlite"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory, sqlite, postgres или redis")
	search := flag.String("search", "", "поиск сообществ по названию и описанию")
	category := flag.String("category", "", "сообщества указанной категории")
	thread := flag.String("thread", "", "дерево комментариев поста")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("Не удалось загрузить .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Неверный тип хранилища: %v", err)
		}
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}

	err = execute(cfg, logger, query{search: *search, category: *category, thread: *thread})
	if err != nil {
		logger.Error("community failed", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// execute ограничивает работу сигналом прерывания. Отложенные вызовы
// выполняются до выхода из main.
func execute(cfg *config.Config, logger *zap.Logger, q query) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, cfg, logger, q)
}

type query struct {
	search   string
	category string
	thread   string
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, q query) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var hasher identity.Hasher = identity.BcryptHasher{Cost: cfg.Identity.BcryptCost}
	if cfg.Identity.PasswordHashing == config.PasswordPlain {
		hasher = identity.PlainHasher{}
	}
	session, err := identity.New(ctx, store, identity.WithLogger(logger), identity.WithHasher(hasher))
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	opts := []community.Option{community.WithLogger(logger)}
	if cfg.SeedFile != "" {
		ds, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		opts = append(opts, community.WithSeed(ds))
	}
	provider, err := community.New(ctx, store, session, opts...)
	if err != nil {
		return err
	}

	user, _ := session.CurrentUser()
	logger.Info("community data ready",
		zap.String("storage", cfg.Storage.Type),
		zap.Int("communities", len(provider.Communities())),
		zap.Int("posts", len(provider.Posts())),
		zap.Int("comments", len(provider.Comments())),
		zap.Strings("categories", provider.Categories()),
		zap.String("session_user", user.Username))

	switch {
	case q.thread != "":
		return printJSON(provider.ThreadedComments(q.thread))
	case q.search != "":
		return printJSON(provider.SearchCommunities(q.search))
	case q.category != "":
		return printJSON(provider.FilterCommunitiesByCategory(q.category))
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	logger.Info("Инициализация хранилища", zap.String("type", cfg.Storage.Type))

	switch cfg.Storage.Type {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageSQLite:
		return sqlite.New(ctx, cfg.Storage.SQLite.Path)
	case config.StoragePostgres:
		return postgres.New(ctx, cfg.Storage.Postgres.DSN)
	case config.StorageRedis:
		return redis.New(ctx, redis.Options{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			Namespace: cfg.Storage.Redis.Namespace,
		})
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
