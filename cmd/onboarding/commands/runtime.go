package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/emojirades/onboarding/internal/config"
	"github.com/emojirades/onboarding/internal/logger"
	"github.com/emojirades/onboarding/internal/objectstore"
	"github.com/emojirades/onboarding/internal/printer"
	"github.com/emojirades/onboarding/internal/queue"
	"github.com/emojirades/onboarding/internal/secrets"
)

// runtime holds the clients shared by every command.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	rdb     *redis.Client
	objects objectstore.Store
	queue   *queue.RedisQueue
}

// openRuntime connects to Redis and the configured object store.
// Connection failures are printed with p.
func openRuntime(ctx context.Context, cfg *config.Config, p *printer.Printer, logOut io.Writer) (*runtime, error) {
	log, err := logger.New(cfg.Log, logOut)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, p.Error("invalid redis.url", err.Error(), []string{"Use the form redis://host:port/db"})
	}
	rdb := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, p.ErrorWithContext(
			"Redis connection failed",
			err.Error(),
			map[string]string{"URL": redisOpts.Addr, "Namespace": cfg.Redis.Namespace},
			[]string{"Check that Redis is running and reachable from this host"},
		)
	}

	objects, err := newObjectStore(ctx, cfg, rdb)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	q, err := queue.NewRedisQueue(rdb, cfg.Redis.Namespace)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		log:     log,
		rdb:     rdb,
		objects: objects,
		queue:   q,
	}, nil
}

func (r *runtime) Close() {
	r.log.Sync()
	r.rdb.Close()
}

func newObjectStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (objectstore.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		client, err := objectstore.NewS3Client(ctx, objectstore.S3Config{
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			PathStyle: cfg.Storage.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3Store(client, cfg.Storage.Bucket, objectstore.DefaultPageSize)
	default:
		return objectstore.NewRedisStore(rdb, cfg.Redis.Namespace, objectstore.DefaultPageSize)
	}
}

func newSecretSource(cfg *config.Config) (*secrets.Cache, error) {
	var source secrets.Source
	switch cfg.Secrets.Backend {
	case config.SecretsBackendFile:
		source = secrets.NewFileSource(cfg.Secrets.File)
	default:
		vault, err := secrets.NewVaultSource(secrets.VaultConfig{
			Address: cfg.Secrets.Vault.Address,
			Token:   cfg.Secrets.Vault.Token,
			Mount:   cfg.Secrets.Vault.Mount,
		})
		if err != nil {
			return nil, err
		}
		source = vault
	}
	return secrets.NewCache(source, cfg.Secrets.CacheTTL), nil
}
