package commands

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"imagevault/pkg/app"
	"imagevault/pkg/ignore"
	"imagevault/pkg/ingester"
	"imagevault/pkg/meta"
	"imagevault/pkg/storage/disk"
	"imagevault/pkg/types"
	"imagevault/pkg/vault"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupIntegrationEnv 搭建一个使用 真实文件系统 + 内存数据库 的集成环境
func setupIntegrationEnv(t *testing.T) (*app.App, string) {
	root := t.TempDir()

	store, err := disk.NewAdapter(root)
	require.NoError(t, err)

	// 使用内存 SQLite 代替 Postgres，保证测试极速运行且无外部依赖
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	metaDB := meta.NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(meta.Models()...))
	repo := meta.NewRepository(metaDB, "dlm_download")

	matcher, err := ignore.NewMatcher(root)
	require.NoError(t, err)

	v := vault.New(vault.DefaultConfig(), store, repo, vault.WithPathFilter(matcher))
	application := &app.App{
		Store:    store,
		DB:       metaDB,
		Repo:     repo,
		Vault:    v,
		Ingester: ingester.NewIngester(store, repo, v, nil),
		Ignore:   matcher,
		RootPath: root,
	}

	// cmd 包依赖全局变量 IV，测试里临时覆盖它
	IV = application
	t.Cleanup(func() { IV = nil })

	return application, root
}

func run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetContext(context.Background())
	return cmd.RunE(cmd, args)
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestIntegration_ImportCopyrightFlow(t *testing.T) {
	a, _ := setupIntegrationEnv(t)
	ctx := context.Background()

	inbox := t.TempDir()
	writeJPEG(t, filepath.Join(inbox, "photo.jpg"), 400, 300)
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("skip me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "old-blur.jpg"), []byte("skip me"), 0644))

	// imagevault import <inbox>
	require.NoError(t, run(t, importCmd, inbox))

	assets, err := a.Repo.ListAssets(ctx, 0)
	require.NoError(t, err)
	require.Len(t, assets, 1, "只有 photo.jpg 会被导入")
	id := assets[0].ID
	assert.True(t, isProtected(t, a, id))

	// imagevault copyright <id> "© Jane Doe"
	require.NoError(t, run(t, copyrightCmd, id.String(), "© Jane Doe"))
	assert.False(t, isProtected(t, a, id))

	released, err := a.Vault.CheckReleased(ctx, id)
	require.NoError(t, err)
	assert.True(t, released)

	// 只读命令
	require.NoError(t, run(t, statusCmd, id.String()))
	require.NoError(t, run(t, listCmd))
	require.NoError(t, run(t, htmlCmd, id.String()))
}

func TestIntegration_LockReleaseCommands(t *testing.T) {
	a, _ := setupIntegrationEnv(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "pic.jpg")
	writeJPEG(t, src, 200, 200)
	report, err := a.Ingester.IngestPath(ctx, src, "")
	require.NoError(t, err)
	id := report.Asset.ID

	require.NoError(t, run(t, lockCmd, id.String()), "已保护时 lock 是 no-op")
	require.NoError(t, run(t, releaseCmd, id.String()))
	assert.False(t, isProtected(t, a, id))

	// 没有版权记录：sync 重新加锁
	require.NoError(t, run(t, syncCmd, id.String()))
	assert.True(t, isProtected(t, a, id))

	assert.Error(t, run(t, releaseCmd, "no-such-asset"))
}

func TestPixelateCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jpg")
	dst := filepath.Join(dir, "out.jpg")
	writeJPEG(t, src, 120, 80)

	require.NoError(t, run(t, pixelateCmd, src, dst))
	assert.FileExists(t, dst)

	assert.Error(t, run(t, pixelateCmd, filepath.Join(dir, "missing.jpg"), dst))
}

func TestImportable(t *testing.T) {
	assert.True(t, importable("/in/photo.jpg"))
	assert.True(t, importable("/in/PHOTO.PNG"))
	assert.False(t, importable("/in/photo-blur.jpg"))
	assert.False(t, importable("/in/.hidden.jpg"))
	assert.False(t, importable("/in/doc.pdf"))
}

func TestInboxWatcher_Debounce(t *testing.T) {
	var calls int32
	w := newInboxWatcher(context.Background(), 30*time.Millisecond, func(string) {
		atomic.AddInt32(&calls, 1)
	})

	for i := 0; i < 5; i++ {
		w.touch("a.jpg")
		time.Sleep(5 * time.Millisecond)
	}
	w.touch("b.jpg")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 10*time.Millisecond)
	w.stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInboxWatcher_StopCancelsPending(t *testing.T) {
	var calls int32
	w := newInboxWatcher(context.Background(), time.Hour, func(string) {
		atomic.AddInt32(&calls, 1)
	})
	w.touch("a.jpg")
	w.stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func isProtected(t *testing.T, a *app.App, id types.AssetID) bool {
	t.Helper()
	protected, err := a.Vault.IsProtected(context.Background(), id)
	require.NoError(t, err)
	return protected
}
