package vault

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"imagevault/pkg/asset"
	"imagevault/pkg/storage/disk"
	"imagevault/pkg/types"

	"github.com/stretchr/testify/require"
)

// fakeCatalog 是内存版 Catalog，可以注入持久化失败
type fakeCatalog struct {
	mu        sync.Mutex
	assets    map[types.AssetID]*asset.Asset
	records   map[types.AssetID]string
	flags     map[types.AssetID]types.ReleaseFlag
	excluded  map[types.AssetID]bool
	descErr   error
	flagErr   error
	descSaves int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		assets:   make(map[types.AssetID]*asset.Asset),
		records:  make(map[types.AssetID]string),
		flags:    make(map[types.AssetID]types.ReleaseFlag),
		excluded: make(map[types.AssetID]bool),
	}
}

func (c *fakeCatalog) put(a *asset.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[a.ID] = a.Clone()
}

func (c *fakeCatalog) asset(id types.AssetID) *asset.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assets[id].Clone()
}

func (c *fakeCatalog) GetAssetDescriptor(_ context.Context, id types.AssetID) (*asset.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.assets[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return a.Clone(), nil
}

func (c *fakeCatalog) SetAssetDescriptor(_ context.Context, id types.AssetID, a *asset.Asset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.descErr != nil {
		return c.descErr
	}
	if _, ok := c.assets[id]; !ok {
		return ErrAssetNotFound
	}
	c.descSaves++
	c.assets[id] = a.Clone()
	return nil
}

func (c *fakeCatalog) GetCopyrightRecord(_ context.Context, id types.AssetID, _ string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.records[id]
	return v, ok, nil
}

func (c *fakeCatalog) SetCopyrightRecord(_ context.Context, id types.AssetID, _ string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[id] = value
	return nil
}

func (c *fakeCatalog) GetReleaseFlag(_ context.Context, id types.AssetID) (types.ReleaseFlag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flags[id]
	if !ok {
		return types.FlagUnset, nil
	}
	return f, nil
}

func (c *fakeCatalog) SetReleaseFlag(_ context.Context, id types.AssetID, flag types.ReleaseFlag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flagErr != nil {
		return c.flagErr
	}
	c.flags[id] = flag
	return nil
}

func (c *fakeCatalog) IsExcludedCategory(_ context.Context, id types.AssetID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.excluded[id], nil
}

func (c *fakeCatalog) flag(id types.AssetID) types.ReleaseFlag {
	f, _ := c.GetReleaseFlag(context.Background(), id)
	return f
}

// fixture 是磁盘上的一个 photo.jpg (800x600) + thumb-150x150.jpg
type fixture struct {
	root    string
	store   *disk.Adapter
	catalog *fakeCatalog
	vault   *Vault
	id      types.AssetID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := disk.NewAdapter(root)
	require.NoError(t, err)

	writeJPEG(t, filepath.Join(root, "photo.jpg"), 800, 600)
	writeJPEG(t, filepath.Join(root, "thumb-150x150.jpg"), 150, 150)

	catalog := newFakeCatalog()
	id := types.AssetID("asset-1")
	catalog.put(&asset.Asset{
		ID:   id,
		File: "photo.jpg",
		Variants: []asset.Variant{
			{Name: "thumbnail", File: "thumb-150x150.jpg", Width: 150, Height: 150},
		},
	})

	return &fixture{
		root:    root,
		store:   store,
		catalog: catalog,
		vault:   New(DefaultConfig(), store, catalog, opts...),
		id:      id,
	}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, rel)
}

func gradient(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xff})
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, gradient(w, h), nil))
}

func mode(t *testing.T, path string) os.FileMode {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Mode().Perm()
}
