package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"imagevault/pkg/asset"
	"imagevault/pkg/locker"
	"imagevault/pkg/meta"
	"imagevault/pkg/pixelate"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"
)

// Config 是状态机的全部可调参数，由宿主 (CLI/配置文件) 构造后注入
type Config struct {
	CopyrightMetaKey string // CopyrightRecord 的键
	ExifCopyrightKey string // image_meta 中内嵌版权的键

	LockedPerm   os.FileMode
	ReleasedPerm os.FileMode

	BlockX int
	BlockY int

	Workers     int           // 并行处理变体的上限
	FileTimeout time.Duration // 单个文件操作的超时
	LockTimeout time.Duration // 等待同一 Asset 上其他操作的超时
}

func DefaultConfig() Config {
	return Config{
		CopyrightMetaKey: "copyright",
		ExifCopyrightKey: "copyright",
		LockedPerm:       0o600,
		ReleasedPerm:     0o644,
		BlockX:           pixelate.DefaultBlockSize,
		BlockY:           pixelate.DefaultBlockSize,
		Workers:          4,
		FileTimeout:      30 * time.Second,
		LockTimeout:      10 * time.Second,
	}
}

// withDefaults 用默认值补齐零值字段
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CopyrightMetaKey == "" {
		c.CopyrightMetaKey = d.CopyrightMetaKey
	}
	if c.ExifCopyrightKey == "" {
		c.ExifCopyrightKey = d.ExifCopyrightKey
	}
	if c.LockedPerm == 0 {
		c.LockedPerm = d.LockedPerm
	}
	if c.ReleasedPerm == 0 {
		c.ReleasedPerm = d.ReleasedPerm
	}
	if c.BlockX <= 0 {
		c.BlockX = d.BlockX
	}
	if c.BlockY <= 0 {
		c.BlockY = d.BlockY
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.FileTimeout <= 0 {
		c.FileTimeout = d.FileTimeout
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = d.LockTimeout
	}
	return c
}

// Catalog 是状态机读写 Asset 元数据的宿主协作者
type Catalog interface {
	GetAssetDescriptor(ctx context.Context, id types.AssetID) (*asset.Asset, error)
	SetAssetDescriptor(ctx context.Context, id types.AssetID, a *asset.Asset) error

	GetCopyrightRecord(ctx context.Context, id types.AssetID, key string) (string, bool, error)
	SetCopyrightRecord(ctx context.Context, id types.AssetID, key, value string) error

	GetReleaseFlag(ctx context.Context, id types.AssetID) (types.ReleaseFlag, error)
	SetReleaseFlag(ctx context.Context, id types.AssetID, flag types.ReleaseFlag) error

	IsExcludedCategory(ctx context.Context, id types.AssetID) (bool, error)
}

var _ Catalog = (*meta.Repository)(nil)

// PathFilter 按路径排除 Asset (例如 .vaultignore)
type PathFilter interface {
	Matches(path string) bool
}

// Vault 驱动单个 Asset 在 LOCKED 与 RELEASED 之间转换
type Vault struct {
	cfg     Config
	store   storage.Store
	catalog Catalog
	locker  locker.Locker
	filter  PathFilter
	log     *slog.Logger
}

type Option func(*Vault)

func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// WithLocker 替换默认的进程内锁 (例如 flock / redis)
func WithLocker(l locker.Locker) Option {
	return func(v *Vault) { v.locker = l }
}

func WithPathFilter(f PathFilter) Option {
	return func(v *Vault) { v.filter = f }
}

func New(cfg Config, store storage.Store, catalog Catalog, opts ...Option) *Vault {
	v := &Vault{
		cfg:     cfg.withDefaults(),
		store:   store,
		catalog: catalog,
		locker:  locker.NewMemoryLocker(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config 返回生效的配置 (已补齐默认值)
func (v *Vault) Config() Config {
	return v.cfg
}

// serialize 在持有 id 的锁时执行 fn。
// 拿到锁之后的操作不再响应取消，只受单文件超时约束，保证转换走到一致的终态。
func (v *Vault) serialize(ctx context.Context, id types.AssetID, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	lockCtx, cancel := context.WithTimeout(ctx, v.cfg.LockTimeout)
	defer cancel()

	unlock, err := v.locker.Lock(lockCtx, string(id))
	if err != nil {
		return &Result{AssetID: id, Outcome: OutcomeFailed}, fmt.Errorf("asset %s busy: %w", id, err)
	}
	defer unlock()

	return fn(context.WithoutCancel(ctx))
}

func (v *Vault) getAsset(ctx context.Context, id types.AssetID) (*asset.Asset, error) {
	a, err := v.catalog.GetAssetDescriptor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", id, err)
	}
	a.ID = id
	return a, nil
}

// warn 记录并返回一个非致命的告警
func (v *Vault) warn(id types.AssetID, path, op string, err error) Warning {
	v.log.Warn("vault file operation failed",
		"asset", id.String(), "path", path, "op", op, "err", err)
	return Warning{Path: path, Op: op, Err: err}
}
