package vault

import (
	"context"
	"fmt"

	"imagevault/pkg/lockpath"
	"imagevault/pkg/types"
)

// Release 把 Asset 转入 RELEASED：删除马赛克副本，路径还原，放宽权限。
// 只有主文件缺失 (无法确定扩展名) 是致命的，其余单文件失败都记为告警。
func (v *Vault) Release(ctx context.Context, id types.AssetID) (*Result, error) {
	return v.serialize(ctx, id, func(ctx context.Context) (*Result, error) {
		return v.release(ctx, id)
	})
}

func (v *Vault) release(ctx context.Context, id types.AssetID) (*Result, error) {
	res := &Result{AssetID: id}

	a, err := v.getAsset(ctx, id)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	// 标记要和文件名互相印证：Lock 写标记失败时可能留下 released + 锁定路径
	flag, err := v.catalog.GetReleaseFlag(ctx, id)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("read release flag: %w", err)
	}
	if flag == types.FlagReleased && !lockpath.IsLocked(a.File) {
		res.Outcome = OutcomeAlreadyReleased
		return res, nil
	}

	if !lockpath.IsLocked(a.File) {
		res.Outcome = OutcomeNotLocked
		return res, fmt.Errorf("%w: %s", ErrNotLocked, a.File)
	}

	// 扩展名只能从实际存在的锁定文件上取；
	// 副本不在但原图还在，说明上一次 Release 的清理已经完成
	exists, err := v.store.Exists(ctx, a.File)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("stat %s: %w", a.File, err)
	}
	if !exists {
		unlocked, ok, err := v.unlockedCounterpart(ctx, a.File)
		if err != nil {
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("stat %s: %w", a.File, err)
		}
		if !ok {
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("%w: %s", ErrExtensionUnknown, a.File)
		}
		v.log.Warn("locked copy already removed, resuming release", "asset", id.String(), "file", unlocked)
	}
	if lockpath.Extension(a.File) == "" {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("%w: %s", ErrExtensionUnknown, a.File)
	}

	next := a.Clone()

	main := v.transform(ctx, id, toReleased, a.File)
	if main.err != nil {
		res.Outcome = OutcomeFailed
		return res, main.err
	}
	res.Changed = true
	res.Warnings = append(res.Warnings, main.warnings...)
	next.File = main.path

	for i, variant := range a.Variants {
		r := v.transform(ctx, id, toReleased, a.VariantPath(variant))
		if r.err != nil {
			res.Warnings = append(res.Warnings, v.warn(id, a.VariantPath(variant), "release", r.err))
			continue
		}
		res.Warnings = append(res.Warnings, r.warnings...)
		if r.changed {
			next.Variants[i].File = rebase(variant.File, r.path)
		}
	}

	if err := v.commit(ctx, id, next, types.FlagReleased); err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	res.Outcome = OutcomeReleased
	v.log.Info("asset released", "asset", id.String(), "file", next.File, "warnings", len(res.Warnings))
	return res, nil
}
