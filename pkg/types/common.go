// pkg/types/common.go
package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AssetID 是宿主存储中资源的不透明句柄
type AssetID string

func (id AssetID) String() string { return string(id) }
func (id AssetID) IsZero() bool   { return id == "" }

// ReleaseFlag 是三态标记: 0 = locked, 1 = released, 缺省 = 从未处理
type ReleaseFlag int8

const (
	FlagUnset    ReleaseFlag = -1
	FlagLocked   ReleaseFlag = 0
	FlagReleased ReleaseFlag = 1
)

func (f ReleaseFlag) String() string {
	switch f {
	case FlagLocked:
		return "locked"
	case FlagReleased:
		return "released"
	default:
		return "unset"
	}
}

// Value 返回持久化时使用的字符串 ("0" / "1")
func (f ReleaseFlag) Value() string {
	return strconv.Itoa(int(f))
}

// ParseReleaseFlag 解析持久化的值。空串视为 unset。
func ParseReleaseFlag(s string) (ReleaseFlag, error) {
	switch strings.TrimSpace(s) {
	case "":
		return FlagUnset, nil
	case "0":
		return FlagLocked, nil
	case "1":
		return FlagReleased, nil
	default:
		return FlagUnset, fmt.Errorf("invalid release flag %q", s)
	}
}

// ParsePermissions 解析八进制权限字符串 (如 "0600")
// 只接受 decoct(octdec(x)) == x 形式的合法八进制
func ParsePermissions(s string) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty permissions")
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal permissions %q: %w", s, err)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("permissions %q out of range", s)
	}
	return os.FileMode(v), nil
}

// FormatPermissions 以四位八进制输出，例如 0644
func FormatPermissions(m os.FileMode) string {
	return fmt.Sprintf("%04o", uint32(m.Perm()))
}
