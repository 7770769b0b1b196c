package disk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imagevault/pkg/storage"
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /var/www/wp-content/uploads
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

// Root 返回根目录
func (s *Adapter) Root() string {
	return s.rootPath
}

// Abs 返回相对路径对应的物理路径
// 拒绝逃逸出根目录的路径 (例如 "../../etc/passwd")
func (s *Adapter) Abs(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", rel)
	}
	return filepath.Join(s.rootPath, clean), nil
}

func (s *Adapter) Open(ctx context.Context, rel string) (io.ReadCloser, error) {
	p, err := s.Abs(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Write(ctx context.Context, rel string, r io.Reader) error {
	targetPath, err := s.Abs(rel)
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入 (Atomic Write)
	// 先写到一个临时文件，然后 Rename。
	// 这样保证要么文件不存在，要么文件是完整的。
	tempFile, err := os.CreateTemp(dir, ".temp-*")
	if err != nil {
		return err
	}
	// Rename 成功后这个删除会失败，无害
	defer os.Remove(tempFile.Name())

	if _, err := io.Copy(tempFile, r); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil { // 必须先关闭才能 Rename
		return err
	}
	// CreateTemp 默认 0600，新文件按公开权限落盘，由状态机再收紧
	if err := os.Chmod(tempFile.Name(), 0644); err != nil {
		return err
	}

	// 3. 移动到最终位置
	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Chmod(ctx context.Context, rel string, mode os.FileMode) error {
	p, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.Chmod(p, mode.Perm()); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Adapter) Remove(ctx context.Context, rel string) error {
	p, err := s.Abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Adapter) Exists(ctx context.Context, rel string) (bool, error) {
	p, err := s.Abs(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
