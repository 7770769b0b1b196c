package vault

import (
	"errors"
	"fmt"

	"imagevault/pkg/meta"
	"imagevault/pkg/types"
)

var (
	ErrPermissionChange = errors.New("failed to change file permissions")
	ErrPersist          = errors.New("failed to persist asset state")
	ErrNotLocked        = errors.New("asset is not locked")
	ErrExtensionUnknown = errors.New("cannot determine extension of locked file")
	ErrAssetNotFound    = meta.ErrAssetNotFound
)

// Outcome 描述一次调用的结局
type Outcome string

const (
	OutcomeLocked           Outcome = "locked"
	OutcomeReleased         Outcome = "released"
	OutcomeAlreadyProtected Outcome = "already_protected"
	OutcomeAlreadyReleased  Outcome = "already_released"
	OutcomeExcluded         Outcome = "excluded"
	OutcomeCopyrightPresent Outcome = "copyright_present"
	OutcomeImplicitRelease  Outcome = "implicit_release" // 内嵌元数据已有版权
	OutcomeNotLocked        Outcome = "not_locked"
	OutcomeFailed           Outcome = "failed"
)

// Warning 是一个被容忍的单文件失败
type Warning struct {
	Path string
	Op   string // pixelate / chmod / remove
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s %s: %v", w.Op, w.Path, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// Result 永远非 nil；Changed 表示文件系统或元数据被改动过
type Result struct {
	AssetID  types.AssetID
	Outcome  Outcome
	Changed  bool
	Warnings []Warning
}

// OK 表示操作到达了预期的终态 (包括各种 no-op)
func (r *Result) OK() bool {
	return r.Outcome != OutcomeFailed && r.Outcome != OutcomeNotLocked
}
