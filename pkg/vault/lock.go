package vault

import (
	"context"
	"fmt"
	"path"

	"imagevault/pkg/asset"
	"imagevault/pkg/lockpath"
	"imagevault/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Lock 把 Asset 转入 LOCKED：主文件和所有变体换成马赛克副本并收紧权限。
// 已保护、被排除、已有版权记录时是 no-op；幂等，可以在任何相关事件上投机调用。
func (v *Vault) Lock(ctx context.Context, id types.AssetID) (*Result, error) {
	return v.serialize(ctx, id, func(ctx context.Context) (*Result, error) {
		return v.lock(ctx, id)
	})
}

func (v *Vault) lock(ctx context.Context, id types.AssetID) (*Result, error) {
	res := &Result{AssetID: id}

	a, err := v.getAsset(ctx, id)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	// 中断的 Release 可能留下指向已删除副本的描述符
	if err := v.rederive(ctx, a); err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	// 1. 已经是锁定形态
	if lockpath.IsLocked(a.File) {
		res.Outcome = OutcomeAlreadyProtected
		return res, nil
	}

	// 2. 排除策略
	excluded, err := v.isExcluded(ctx, a)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}
	if excluded {
		res.Outcome = OutcomeExcluded
		return res, nil
	}

	// 3. 已有版权记录，无需保护
	record, _, err := v.catalog.GetCopyrightRecord(ctx, id, v.cfg.CopyrightMetaKey)
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("read copyright record: %w", err)
	}
	if record != "" {
		res.Outcome = OutcomeCopyrightPresent
		return res, nil
	}

	// 4. 内嵌元数据里有版权：视为已释放，不做马赛克
	if embedded := a.ImageMeta[v.cfg.ExifCopyrightKey]; embedded != "" {
		return v.implicitRelease(ctx, res, embedded)
	}

	// 5. 主保护流程
	return v.protect(ctx, res, a)
}

// rederive 把已经不存在的锁定路径换回仍然存在的原图路径
func (v *Vault) rederive(ctx context.Context, a *asset.Asset) error {
	p, ok, err := v.unlockedCounterpart(ctx, a.File)
	if err != nil {
		return fmt.Errorf("stat %s: %w", a.File, err)
	}
	if ok {
		a.File = p
	}
	for i, variant := range a.Variants {
		p, ok, err := v.unlockedCounterpart(ctx, a.VariantPath(variant))
		if err != nil {
			return fmt.Errorf("stat %s: %w", a.VariantPath(variant), err)
		}
		if ok {
			a.Variants[i].File = rebase(variant.File, p)
		}
	}
	return nil
}

func (v *Vault) isExcluded(ctx context.Context, a *asset.Asset) (bool, error) {
	if v.filter != nil && v.filter.Matches(a.File) {
		return true, nil
	}
	excluded, err := v.catalog.IsExcludedCategory(ctx, a.ID)
	if err != nil {
		return false, fmt.Errorf("check excluded category: %w", err)
	}
	return excluded, nil
}

func (v *Vault) implicitRelease(ctx context.Context, res *Result, embedded string) (*Result, error) {
	id := res.AssetID
	if err := v.catalog.SetCopyrightRecord(ctx, id, v.cfg.CopyrightMetaKey, embedded); err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("%w: copyright record: %v", ErrPersist, err)
	}
	res.Changed = true
	if err := v.catalog.SetReleaseFlag(ctx, id, types.FlagReleased); err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("%w: release flag: %v", ErrPersist, err)
	}

	res.Outcome = OutcomeImplicitRelease
	v.log.Info("copyright taken from embedded metadata", "asset", id.String())
	return res, nil
}

func (v *Vault) protect(ctx context.Context, res *Result, a *asset.Asset) (*Result, error) {
	id := res.AssetID

	// 主文件失败是致命的：什么都没改
	main := v.transform(ctx, id, toLocked, a.File)
	if main.err != nil {
		res.Outcome = OutcomeFailed
		v.log.Error("lock aborted: main file", "asset", id.String(), "path", a.File, "err", main.err)
		return res, fmt.Errorf("lock %s: %w", a.File, main.err)
	}
	res.Changed = true
	res.Warnings = append(res.Warnings, main.warnings...)

	next := a.Clone()
	next.File = main.path

	// 变体互相独立，失败各自收集，不取消兄弟任务
	results := make([]fileResult, len(a.Variants))
	var g errgroup.Group
	g.SetLimit(v.cfg.Workers)
	for i, variant := range a.Variants {
		g.Go(func() error {
			results[i] = v.transform(ctx, id, toLocked, a.VariantPath(variant))
			return nil
		})
	}
	// 每个任务都返回 nil，失败记录在 results 里
	_ = g.Wait()

	for i, r := range results {
		if r.err != nil {
			res.Warnings = append(res.Warnings, v.warn(id, a.VariantPath(a.Variants[i]), "pixelate", r.err))
			continue
		}
		res.Warnings = append(res.Warnings, r.warnings...)
		if r.changed {
			next.Variants[i].File = rebase(a.Variants[i].File, r.path)
		}
	}

	if err := v.commit(ctx, id, next, types.FlagLocked); err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	res.Outcome = OutcomeLocked
	v.log.Info("asset locked", "asset", id.String(), "file", next.File, "warnings", len(res.Warnings))
	return res, nil
}

// commit 先写描述符，再写 ReleaseFlag (标记永远是最后一步)
func (v *Vault) commit(ctx context.Context, id types.AssetID, next *asset.Asset, flag types.ReleaseFlag) error {
	if err := v.catalog.SetAssetDescriptor(ctx, id, next); err != nil {
		return fmt.Errorf("%w: descriptor: %v", ErrPersist, err)
	}
	if err := v.catalog.SetReleaseFlag(ctx, id, flag); err != nil {
		return fmt.Errorf("%w: release flag: %v", ErrPersist, err)
	}
	return nil
}

// rebase 把新文件名放回变体原来的相对目录
func rebase(variantFile, newPath string) string {
	return path.Join(path.Dir(variantFile), path.Base(newPath))
}
