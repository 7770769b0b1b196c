package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"imagevault/pkg/config"
	"imagevault/pkg/ignore"
	"imagevault/pkg/ingester"
	"imagevault/pkg/locker"
	"imagevault/pkg/logging"
	"imagevault/pkg/meta"
	"imagevault/pkg/storage"
	"imagevault/pkg/storage/disk"
	"imagevault/pkg/storage/s3"
	"imagevault/pkg/vault"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store    storage.Store
	DB       *meta.DB
	Repo     *meta.Repository
	Vault    *vault.Vault
	Ingester *ingester.Ingester
	Ignore   *ignore.Matcher
	Logger   *slog.Logger

	// RootPath 媒体库根目录 (disk 存储时即 storage.path)
	RootPath string

	closers []func() error
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	logger, err := logging.New(config.Logging())
	if err != nil {
		return nil, err
	}

	rootPath := viper.GetString("storage.path")
	if rootPath == "" {
		return nil, fmt.Errorf("storage path not set")
	}

	// 1. 存储层
	store, err := initStore(ctx, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 2. 元数据层
	db, err := meta.NewDB(ctx, config.Database())
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	a := &App{
		Store:    store,
		DB:       db,
		Repo:     meta.NewRepository(db, config.ExcludedCategories()...),
		Logger:   logger,
		RootPath: rootPath,
		closers:  []func() error{db.Close},
	}

	// 3. 同一 Asset 的互斥
	lk, err := a.initLocker()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init locker: %w", err)
	}

	// 4. 路径排除规则
	matcher, err := ignore.NewMatcher(rootPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load %s: %w", ignore.FileName, err)
	}
	a.Ignore = matcher

	// 5. 状态机 + 导入
	a.Vault = vault.New(config.Vault(), store, a.Repo,
		vault.WithLogger(logger),
		vault.WithLocker(lk),
		vault.WithPathFilter(matcher),
	)

	sizes, err := config.IngestSizes()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ingester = ingester.NewIngester(store, a.Repo, a.Vault, sizes, ingester.WithLogger(logger))

	return a, nil
}

// Close 释放数据库连接等资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func initStore(ctx context.Context, rootPath string) (storage.Store, error) {
	switch storeType := viper.GetString("storage.type"); storeType {
	case "", "disk":
		return disk.NewAdapter(rootPath)
	case "s3":
		return s3.NewAdapter(ctx, config.S3())
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storeType)
	}
}

func (a *App) initLocker() (locker.Locker, error) {
	switch lockerType := viper.GetString("locker.type"); lockerType {
	case "", "memory":
		return locker.NewMemoryLocker(), nil
	case "flock":
		dir := viper.GetString("locker.path")
		if dir == "" {
			dir = os.TempDir()
		}
		return locker.NewFileLocker(dir)
	case "redis":
		rl, err := locker.NewRedisLocker(locker.RedisConfig{
			RedisURL: viper.GetString("locker.redis_url"),
			TTL:      viper.GetDuration("locker.ttl"),
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rl.Close)
		return rl, nil
	default:
		return nil, fmt.Errorf("unsupported locker type: %s", lockerType)
	}
}
