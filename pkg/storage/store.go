package storage

import (
	"context"
	"errors"
	"io"
	"os"
)

var (
	ErrNotFound = errors.New("file not found")
)

// Store 是状态机操作文件的存储后端
// 所有路径都是相对于存储根目录的 "/" 分隔路径
// 实现可以是本地磁盘、对象存储等
type Store interface {
	// Open 读取文件，不存在时返回 ErrNotFound
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Write 原子写入：要么完整出现，要么完全不出现
	Write(ctx context.Context, path string, r io.Reader) error

	// Chmod 修改访问权限
	// 对象存储把 mode 映射为 ACL (others 可读 -> public-read)
	Chmod(ctx context.Context, path string, mode os.FileMode) error

	// Remove 删除文件，不存在时返回 ErrNotFound
	Remove(ctx context.Context, path string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, path string) (bool, error)
}

// IsPublic 判断权限是否对 others 可读
func IsPublic(mode os.FileMode) bool {
	return mode.Perm()&0o004 != 0
}
