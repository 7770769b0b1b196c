package ingester

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"imagevault/pkg/asset"
	"imagevault/pkg/exifmeta"
	"imagevault/pkg/lockpath"
	"imagevault/pkg/pixelate"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"
	"imagevault/pkg/vault"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// ErrReservedName 文件名已经带锁定后缀，导入后会被误认为已保护
var ErrReservedName = errors.New("file name uses the reserved lock suffix")

// Size 是一个要生成的衍生尺寸
type Size struct {
	Name   string `mapstructure:"name"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Crop   bool   `mapstructure:"crop"`
}

func DefaultSizes() []Size {
	return []Size{
		{Name: "thumbnail", Width: 150, Height: 150, Crop: true},
		{Name: "medium", Width: 300, Height: 300},
		{Name: "large", Width: 1024, Height: 1024},
	}
}

// Registrar 注册新 Asset
type Registrar interface {
	CreateAsset(ctx context.Context, a *asset.Asset) error
}

// UploadHook 在 Asset 注册完成后被调用 (通常是 vault.Vault)
type UploadHook interface {
	OnUpload(ctx context.Context, id types.AssetID) (*vault.Result, error)
}

type Ingester struct {
	store    storage.Store
	registry Registrar
	hook     UploadHook
	sizes    []Size
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*Ingester)

func WithClock(now func() time.Time) Option {
	return func(ing *Ingester) { ing.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingester) { ing.log = l }
}

func NewIngester(store storage.Store, registry Registrar, hook UploadHook, sizes []Size, opts ...Option) *Ingester {
	if sizes == nil {
		sizes = DefaultSizes()
	}
	ing := &Ingester{
		store:    store,
		registry: registry,
		hook:     hook,
		sizes:    sizes,
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Report 是一次导入的结果
type Report struct {
	Asset  *asset.Asset
	Result *vault.Result // 上传钩子的结果
}

// IngestPath 导入本地文件
func (ing *Ingester) IngestPath(ctx context.Context, src, category string) (*Report, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()
	return ing.IngestFile(ctx, filepath.Base(src), f, category)
}

// IngestFile 把一张图片放进 YYYY/MM/，生成尺寸变体，读取 EXIF，注册 Asset，最后触发上传钩子。
func (ing *Ingester) IngestFile(ctx context.Context, name string, r io.Reader, category string) (*Report, error) {
	name = normalizeName(name)
	if lockpath.IsLocked(name) {
		return nil, fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	format, err := pixelate.FormatOf(name)
	if err != nil {
		return nil, err
	}

	// 图片整体读入内存：需要解码、读 EXIF、原样写回
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	img, err := pixelate.Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, err
	}

	dir := ing.now().Format("2006/01")
	mainPath, err := ing.uniquePath(ctx, dir, name)
	if err != nil {
		return nil, err
	}

	// 1. 原图
	if err := ing.store.Write(ctx, mainPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", mainPath, err)
	}

	a := &asset.Asset{
		ID:       types.AssetID(uuid.NewString()),
		File:     mainPath,
		Category: category,
	}

	// 2. 尺寸变体
	variants, err := ing.makeVariants(ctx, a, img, format)
	if err != nil {
		return nil, err
	}
	a.Variants = variants

	// 3. 内嵌元数据
	imageMeta, err := exifmeta.Read(bytes.NewReader(data))
	if err != nil {
		ing.log.Warn("failed to read image metadata", "file", mainPath, "err", err)
	}
	if len(imageMeta) > 0 {
		a.ImageMeta = imageMeta
	}

	// 4. 注册
	if err := ing.registry.CreateAsset(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to register asset: %w", err)
	}
	ing.log.Info("asset imported", "asset", a.ID.String(), "file", a.File, "variants", len(a.Variants))

	// 5. 新上传处理完成
	report := &Report{Asset: a}
	if ing.hook == nil {
		return report, nil
	}
	res, err := ing.hook.OnUpload(ctx, a.ID)
	report.Result = res
	if err != nil {
		return report, fmt.Errorf("upload hook for %s: %w", a.ID, err)
	}
	return report, nil
}

func (ing *Ingester) makeVariants(ctx context.Context, a *asset.Asset, img image.Image, format pixelate.Format) ([]asset.Variant, error) {
	b := img.Bounds()
	base := path.Base(a.File)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	var variants []asset.Variant
	seen := make(map[string]bool)
	for _, size := range ing.sizes {
		w, h, ok := Fit(b.Dx(), b.Dy(), size)
		if !ok {
			continue // 原图不比目标大
		}
		file := fmt.Sprintf("%s-%dx%d%s", stem, w, h, ext)
		if seen[file] {
			continue
		}
		seen[file] = true

		var buf bytes.Buffer
		if err := pixelate.Encode(&buf, Resize(img, w, h, size.Crop), format); err != nil {
			return nil, err
		}
		if err := ing.store.Write(ctx, path.Join(a.Dir(), file), &buf); err != nil {
			return nil, fmt.Errorf("failed to store variant %s: %w", file, err)
		}
		variants = append(variants, asset.Variant{Name: size.Name, File: file, Width: w, Height: h})
	}
	return variants, nil
}

// uniquePath 目标已存在时追加 -1, -2 ...
func (ing *Ingester) uniquePath(ctx context.Context, dir, name string) (string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := path.Join(dir, name)
	for i := 1; ; i++ {
		exists, err := ing.store.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = path.Join(dir, fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}

// normalizeName 去掉目录，空格换成 "-"，扩展名小写
func normalizeName(name string) string {
	name = path.Base(filepath.ToSlash(name))
	ext := path.Ext(name)
	stem := strings.Join(strings.Fields(strings.TrimSuffix(name, ext)), "-")
	return stem + strings.ToLower(ext)
}

// Fit 计算 (w, h) 在 size 下的目标尺寸；原图两个方向都不超过目标时 ok=false。
// Crop: 精确裁成 size (受原图限制)；否则等比缩放进 size 的框。
func Fit(w, h int, size Size) (int, int, bool) {
	if w <= 0 || h <= 0 || (w <= size.Width && h <= size.Height) {
		return 0, 0, false
	}
	if size.Crop {
		return min(w, size.Width), min(h, size.Height), true
	}
	scale := min(float64(size.Width)/float64(w), float64(size.Height)/float64(h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	return nw, nh, true
}

// Resize 用 CatmullRom 缩放；crop 时先从中心裁出目标宽高比的区域
func Resize(img image.Image, w, h int, crop bool) image.Image {
	src := img.Bounds()
	if crop {
		src = centerCrop(src, w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}

func centerCrop(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	// 按目标宽高比能放下的最大区域
	cw, ch := sw, sw*h/w
	if ch > sh {
		cw, ch = sh*w/h, sh
	}
	x0 := b.Min.X + (sw-cw)/2
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}
