package disk

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imagevault/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()
	rel := "2026/10/photo.jpg"

	// 2. 测试 Write (自动创建目录)
	err = store.Write(ctx, rel, strings.NewReader("hello world"))
	require.NoError(t, err)

	// 验证文件是否真的存在于物理磁盘
	info, err := os.Stat(filepath.Join(tmpDir, "2026", "10", "photo.jpg"))
	require.NoError(t, err, "文件应该存在于子目录中")
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// 3. 测试 Exists
	exists, err := store.Exists(ctx, rel)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Exists(ctx, "2026/10/missing.jpg")
	assert.NoError(t, err)
	assert.False(t, exists)

	// 目录不算文件
	exists, err = store.Exists(ctx, "2026/10")
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Open
	reader, err := store.Open(ctx, rel)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	reader.Close()
	assert.NoError(t, err)
	assert.Equal(t, "hello world", string(content))

	// 5. 测试 Chmod
	require.NoError(t, store.Chmod(ctx, rel, 0600))
	info, err = os.Stat(filepath.Join(tmpDir, rel))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// 6. 测试 Remove
	require.NoError(t, store.Remove(ctx, rel))
	exists, err = store.Exists(ctx, rel)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDiskAdapter_NotFound(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Open(ctx, "nope.png")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Remove(ctx, "nope.png"), storage.ErrNotFound)
	assert.ErrorIs(t, store.Chmod(ctx, "nope.png", 0600), storage.ErrNotFound)
}

func TestDiskAdapter_RejectsEscape(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Nested", "a/b/c.jpg", false},
		{"Dot segments inside", "a/../b.jpg", false},
		{"Parent", "../b.jpg", true},
		{"Deep parent", "a/../../b.jpg", true},
		{"Absolute", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Abs(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDiskAdapter_WriteOverwrites(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "x.png", strings.NewReader("v1")))
	require.NoError(t, store.Write(ctx, "x.png", strings.NewReader("v2")))

	r, err := store.Open(ctx, "x.png")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	// 不应残留临时文件
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
