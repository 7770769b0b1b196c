package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"path"

	"imagevault/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// Variant 是衍生尺寸的图像 (缩略图等)
// File 相对于 Asset 所在目录
type Variant struct {
	Name   string `cbor:"n" json:"name"`
	File   string `cbor:"f" json:"file"`
	Width  int    `cbor:"w,omitempty" json:"width,omitempty"`
	Height int    `cbor:"h,omitempty" json:"height,omitempty"`
}

// Asset 是状态机读取和改写的最小单元：主文件 + 有序的尺寸变体集合
type Asset struct {
	ID types.AssetID `cbor:"-" json:"id"`

	// File 相对于存储根目录，例如 "2026/10/photo.jpg"
	File     string    `cbor:"p" json:"file"`
	Variants []Variant `cbor:"v" json:"variants"`

	// ImageMeta 是从图像内嵌元数据 (EXIF) 读取的键值对
	ImageMeta map[string]string `cbor:"m,omitempty" json:"image_meta,omitempty"`

	// Category 由宿主设置，用于排除策略 (例如 "dlm_download")
	Category string `cbor:"c,omitempty" json:"category,omitempty"`

	// Revision 是读取时的 Digest，用于持久化时的乐观锁
	Revision string `cbor:"-" json:"revision,omitempty"`
}

// 与核心对象一致：Canonical 排序保证同一个描述符得到唯一的 Digest
var encMode, _ = cbor.EncOptions{
	Sort:          cbor.SortCanonical,
	IndefLength:   cbor.IndefLengthForbidden,
	NilContainers: cbor.NilContainerAsEmpty,
}.EncMode()

// Digest 计算描述符内容的 SHA-256 (CBOR canonical 编码)
func (a *Asset) Digest() (string, error) {
	data, err := encMode.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to marshal asset: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Dir 返回主文件所在目录 (相对存储根)
func (a *Asset) Dir() string {
	return path.Dir(a.File)
}

// VariantPath 返回变体相对存储根的路径
func (a *Asset) VariantPath(v Variant) string {
	return path.Join(a.Dir(), v.File)
}

// Variant 按名字查找
func (a *Asset) Variant(name string) (Variant, bool) {
	for _, v := range a.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Validate 检查变体名唯一且路径非空
func (a *Asset) Validate() error {
	if a.File == "" {
		return fmt.Errorf("asset %s: empty main file", a.ID)
	}
	seen := make(map[string]struct{}, len(a.Variants))
	for _, v := range a.Variants {
		if v.Name == "" || v.File == "" {
			return fmt.Errorf("asset %s: variant with empty name or file", a.ID)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("asset %s: duplicate variant %q", a.ID, v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}

// Clone 深拷贝，状态机在副本上计算新的描述符，提交前原值保持不变
func (a *Asset) Clone() *Asset {
	cp := *a
	cp.Variants = append([]Variant(nil), a.Variants...)
	if a.ImageMeta != nil {
		cp.ImageMeta = maps.Clone(a.ImageMeta)
	}
	return &cp
}
