package vault

import (
	"context"
	"fmt"

	"imagevault/pkg/exifmeta"
	"imagevault/pkg/lockpath"
	"imagevault/pkg/types"
)

// Sync 根据版权记录决定方向：为空 -> Lock，非空 -> Release。
// 版权状态变化时由宿主调用。
func (v *Vault) Sync(ctx context.Context, id types.AssetID) (*Result, error) {
	return v.serialize(ctx, id, func(ctx context.Context) (*Result, error) {
		return v.sync(ctx, id)
	})
}

func (v *Vault) sync(ctx context.Context, id types.AssetID) (*Result, error) {
	record, _, err := v.catalog.GetCopyrightRecord(ctx, id, v.cfg.CopyrightMetaKey)
	if err != nil {
		return &Result{AssetID: id, Outcome: OutcomeFailed}, fmt.Errorf("read copyright record: %w", err)
	}
	if record == "" {
		return v.lock(ctx, id)
	}
	return v.release(ctx, id)
}

// SetCopyright 清洗并写入版权记录，然后同步状态。
// 空值会清除记录并重新加锁。
func (v *Vault) SetCopyright(ctx context.Context, id types.AssetID, value string) (*Result, error) {
	value = exifmeta.Sanitize(value)
	return v.serialize(ctx, id, func(ctx context.Context) (*Result, error) {
		if err := v.catalog.SetCopyrightRecord(ctx, id, v.cfg.CopyrightMetaKey, value); err != nil {
			return &Result{AssetID: id, Outcome: OutcomeFailed}, fmt.Errorf("%w: copyright record: %v", ErrPersist, err)
		}
		return v.sync(ctx, id)
	})
}

// OnUpload 是 "新上传处理完成" 事件，与 Lock 走同一条流程
func (v *Vault) OnUpload(ctx context.Context, id types.AssetID) (*Result, error) {
	v.log.Debug("upload processed", "asset", id.String())
	return v.Lock(ctx, id)
}

// IsProtected 只看主文件路径是否带锁定后缀
func (v *Vault) IsProtected(ctx context.Context, id types.AssetID) (bool, error) {
	a, err := v.getAsset(ctx, id)
	if err != nil {
		return false, err
	}
	return lockpath.IsLocked(a.File), nil
}

// CheckReleased 供轮询使用：ReleaseFlag 是否为 released
func (v *Vault) CheckReleased(ctx context.Context, id types.AssetID) (bool, error) {
	flag, err := v.catalog.GetReleaseFlag(ctx, id)
	if err != nil {
		return false, err
	}
	return flag == types.FlagReleased, nil
}

// Status 汇总一个 Asset 的当前状态
type Status struct {
	Asset     types.AssetID
	File      string
	Protected bool
	Flag      types.ReleaseFlag
	Copyright string
}

func (v *Vault) Status(ctx context.Context, id types.AssetID) (*Status, error) {
	a, err := v.getAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	flag, err := v.catalog.GetReleaseFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	record, _, err := v.catalog.GetCopyrightRecord(ctx, id, v.cfg.CopyrightMetaKey)
	if err != nil {
		return nil, err
	}
	return &Status{
		Asset:     id,
		File:      a.File,
		Protected: lockpath.IsLocked(a.File),
		Flag:      flag,
		Copyright: record,
	}, nil
}
