package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"imagevault/pkg/lockpath"
	"imagevault/pkg/pixelate"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"
)

// direction 是转换方向
type direction int

const (
	toLocked direction = iota
	toReleased
)

func (d direction) String() string {
	if d == toLocked {
		return "lock"
	}
	return "release"
}

// fileResult 是单个文件的转换结果
type fileResult struct {
	path     string    // 转换后的路径；失败时保持原值
	changed  bool      // 路径是否改变
	warnings []Warning // 被容忍的失败
	err      error     // 致命失败，path 未改变
}

// transform 对主文件和每个变体统一适用的单文件转换。
//
// toLocked:   p -> p-blur (马赛克化)，原图与副本都收紧为 LockedPerm
// toReleased: 删除 p-blur，路径还原，放宽为 ReleasedPerm
//
// p 是相对存储根的路径。
func (v *Vault) transform(ctx context.Context, id types.AssetID, dir direction, p string) fileResult {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.FileTimeout)
	defer cancel()

	if dir == toLocked {
		return v.lockFile(ctx, id, p)
	}
	return v.releaseFile(ctx, id, p)
}

func (v *Vault) lockFile(ctx context.Context, id types.AssetID, p string) fileResult {
	res := fileResult{path: p}

	if lockpath.IsLocked(p) {
		// 上一次运行已经生成了副本，只保证权限
		res.warnings = v.chmod(ctx, id, v.cfg.LockedPerm, p)
		return res
	}

	locked, err := lockpath.Lock(p, lockpath.Extension(p))
	if err != nil {
		res.err = fmt.Errorf("%w: %v", pixelate.ErrUnsupportedFormat, err)
		return res
	}
	if err := v.pixelate(ctx, p, locked); err != nil {
		res.err = err
		return res
	}

	res.path, res.changed = locked, true
	res.warnings = v.chmod(ctx, id, v.cfg.LockedPerm, locked, p)
	return res
}

func (v *Vault) releaseFile(ctx context.Context, id types.AssetID, p string) fileResult {
	res := fileResult{path: p}

	if !lockpath.IsLocked(p) {
		// 加锁时失败的变体保持原路径，只恢复权限
		res.warnings = v.chmod(ctx, id, v.cfg.ReleasedPerm, p)
		return res
	}

	unlocked, err := lockpath.Unlock(p, lockpath.Extension(p))
	if err != nil {
		res.err = fmt.Errorf("%w: %v", ErrExtensionUnknown, err)
		return res
	}

	if err := v.store.Remove(ctx, p); err != nil && !v.cleanedUp(ctx, err, unlocked) {
		res.warnings = append(res.warnings, v.warn(id, p, "remove", err))
	}

	res.path, res.changed = unlocked, true
	res.warnings = append(res.warnings, v.chmod(ctx, id, v.cfg.ReleasedPerm, unlocked)...)
	return res
}

// cleanedUp 副本已不存在而原图还在：上一次 Release 删除后没能持久化
func (v *Vault) cleanedUp(ctx context.Context, removeErr error, unlocked string) bool {
	if !errors.Is(removeErr, storage.ErrNotFound) {
		return false
	}
	ok, err := v.store.Exists(ctx, unlocked)
	return err == nil && ok
}

// unlockedCounterpart 在锁定路径 p 已不存在、而它的原图存在时返回原图路径。
// 描述符只是缓存，这种状态从文件系统重新推导。
func (v *Vault) unlockedCounterpart(ctx context.Context, p string) (string, bool, error) {
	if !lockpath.IsLocked(p) {
		return "", false, nil
	}
	exists, err := v.store.Exists(ctx, p)
	if err != nil || exists {
		return "", false, err
	}
	unlocked, err := lockpath.Unlock(p, lockpath.Extension(p))
	if err != nil {
		return "", false, nil
	}
	ok, err := v.store.Exists(ctx, unlocked)
	if err != nil || !ok {
		return "", false, err
	}
	return unlocked, true, nil
}

// pixelate 通过存储后端读取 src，写出马赛克化的 dst
func (v *Vault) pixelate(ctx context.Context, src, dst string) error {
	f, err := pixelate.FormatOf(src)
	if err != nil {
		return err
	}

	in, err := v.store.Open(ctx, src)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", pixelate.ErrSourceMissing, src)
	}
	if err != nil {
		return err
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := pixelate.Stream(in, &buf, f, v.cfg.BlockX, v.cfg.BlockY); err != nil {
		return err
	}
	if err := v.store.Write(ctx, dst, &buf); err != nil {
		return fmt.Errorf("%w: %v", pixelate.ErrEncode, err)
	}
	return nil
}

// chmod 对每个路径应用 mode，失败转为告警
func (v *Vault) chmod(ctx context.Context, id types.AssetID, mode os.FileMode, paths ...string) []Warning {
	var warnings []Warning
	for _, p := range paths {
		if err := v.store.Chmod(ctx, p, mode); err != nil {
			warnings = append(warnings, v.warn(id, p, "chmod", fmt.Errorf("%w: %v", ErrPermissionChange, err)))
		}
	}
	return warnings
}
