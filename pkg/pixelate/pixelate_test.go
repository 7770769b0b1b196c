package pixelate

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseImage 生成一个每个像素颜色都不同的图像，便于观察块填充
func noiseImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 13), B: uint8(x ^ y), A: 0xff})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestFormatFromExt(t *testing.T) {
	tests := []struct {
		ext     string
		want    Format
		wantErr bool
	}{
		{"jpg", FormatJPEG, false},
		{".jpeg", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"gif", FormatGIF, false},
		{"JPG", "", true}, // 区分大小写
		{"webp", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := FormatFromExt(tt.ext)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveBlock(t *testing.T) {
	bx, by := EffectiveBlock(800, 600, 15, 15)
	assert.Equal(t, 120, bx)
	assert.Equal(t, 90, by)

	// 250/100 = 2.5 -> 3 (四舍五入远离零)
	bx, by = EffectiveBlock(250, 149, 10, 10)
	assert.Equal(t, 30, bx)
	assert.Equal(t, 10, by)

	// 小于 50 像素的一边块大小退化为 0
	bx, _ = EffectiveBlock(40, 40, 15, 15)
	assert.Equal(t, 0, bx)
}

func TestApply_FillsBlocksFromTopLeftPixel(t *testing.T) {
	src := noiseImage(200, 200) // round(2) * 15 = 30 -> 每块 31x31

	out, err := Apply(src, DefaultBlockSize, DefaultBlockSize)
	require.NoError(t, err)

	// 第一个块 [0,30]x[0,30] 都是 (0,0) 的颜色
	want := color.NRGBAModel.Convert(src.At(0, 0))
	for _, p := range []image.Point{{0, 0}, {30, 0}, {0, 30}, {30, 30}, {15, 7}} {
		assert.Equal(t, want, color.NRGBAModel.Convert(out.At(p.X, p.Y)), "pixel %v", p)
	}

	// 第二个块从 31 开始
	want2 := color.NRGBAModel.Convert(src.At(31, 0))
	assert.Equal(t, want2, color.NRGBAModel.Convert(out.At(31, 0)))
	assert.Equal(t, want2, color.NRGBAModel.Convert(out.At(61, 30)))

	// 最后一个块被图像边界裁剪
	want3 := color.NRGBAModel.Convert(src.At(186, 186))
	assert.Equal(t, want3, color.NRGBAModel.Convert(out.At(199, 199)))

	// 源图像未被修改
	assert.Equal(t, color.NRGBA{R: 7, G: 0, B: 1, A: 0xff}, src.NRGBAAt(1, 0))
}

func TestApply_TinyImageKeepsPixels(t *testing.T) {
	src := noiseImage(20, 20)
	out, err := Apply(src, DefaultBlockSize, DefaultBlockSize)
	require.NoError(t, err)

	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			assert.Equal(t, color.NRGBAModel.Convert(src.At(x, y)), color.NRGBAModel.Convert(out.At(x, y)))
		}
	}
}

func TestApply_PalettedStaysInPalette(t *testing.T) {
	src := image.NewPaletted(image.Rect(0, 0, 120, 120), palette.Plan9)
	for i := range src.Pix {
		src.Pix[i] = uint8(i % len(palette.Plan9))
	}

	out, err := Apply(src, 10, 10)
	require.NoError(t, err)

	p, ok := out.(*image.Paletted)
	require.True(t, ok, "调色板图像应保持调色板类型")
	assert.Equal(t, src.ColorIndexAt(0, 0), p.ColorIndexAt(5, 5))
	assert.Equal(t, src.ColorIndexAt(11, 0), p.ColorIndexAt(20, 10))
}

func TestApply_PaletteMatchIgnoresAlpha(t *testing.T) {
	pal := color.Palette{
		color.NRGBA{R: 10, G: 20, B: 30, A: 0xff},
		color.NRGBA{R: 10, G: 20, B: 30, A: 0x40},
		color.NRGBA{R: 200, G: 0, B: 0, A: 0xff},
	}
	src := image.NewPaletted(image.Rect(0, 0, 200, 200), pal)
	for i := range src.Pix {
		src.Pix[i] = 1
	}

	canvas := newCanvas(src)
	assert.Equal(t, pal[0], closest(canvas, pal[1]), "RGB 相同时取第一项，不看透明度")
	assert.Equal(t, pal[2], closest(canvas, color.NRGBA{R: 190, G: 5, B: 5, A: 0x10}))

	out, err := Apply(src, 1, 1)
	require.NoError(t, err)
	p, ok := out.(*image.Paletted)
	require.True(t, ok)
	assert.Equal(t, uint8(0), p.ColorIndexAt(0, 0))
	assert.Equal(t, uint8(1), src.ColorIndexAt(0, 0), "源图像不被修改")
}

func TestApply_NoDimensions(t *testing.T) {
	_, err := Apply(image.NewNRGBA(image.Rect(0, 0, 0, 10)), 15, 15)
	assert.ErrorIs(t, err, ErrNoDimensions)
}

func TestFile_PNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	dst := filepath.Join(dir, "photo-blur.png")
	img := noiseImage(300, 200)
	writePNG(t, src, img)

	require.NoError(t, File(src, dst, DefaultBlockSize, DefaultBlockSize))

	out := readPNG(t, dst)
	assert.Equal(t, img.Bounds(), out.Bounds())
	// 300/100 * 15 = 45
	assert.Equal(t, color.NRGBAModel.Convert(img.At(0, 0)), color.NRGBAModel.Convert(out.At(45, 30)))

	// 源文件保持原样
	again := readPNG(t, src)
	assert.Equal(t, color.NRGBAModel.Convert(img.At(1, 1)), color.NRGBAModel.Convert(again.At(1, 1)))
}

func TestFile_Deterministic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")

	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, noiseImage(320, 240), nil))
	require.NoError(t, f.Close())

	dst1 := filepath.Join(dir, "one.jpg")
	dst2 := filepath.Join(dir, "two.jpg")
	require.NoError(t, File(src, dst1, DefaultBlockSize, DefaultBlockSize))
	require.NoError(t, File(src, dst2, DefaultBlockSize, DefaultBlockSize))

	b1, err := os.ReadFile(dst1)
	require.NoError(t, err)
	b2, err := os.ReadFile(dst2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b1, b2), "同样的输入和参数应该产生相同的字节")
}

func TestFile_GIF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "anim.gif")
	dst := filepath.Join(dir, "anim-blur.gif")

	pal := image.NewPaletted(image.Rect(0, 0, 150, 100), palette.WebSafe)
	for i := range pal.Pix {
		pal.Pix[i] = uint8(i % len(palette.WebSafe))
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, gif.Encode(f, pal, nil))
	require.NoError(t, f.Close())

	require.NoError(t, File(src, dst, DefaultBlockSize, DefaultBlockSize))

	out, err := os.Open(dst)
	require.NoError(t, err)
	defer out.Close()
	decoded, err := gif.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, pal.Bounds(), decoded.Bounds())
}

func TestFile_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing source", func(t *testing.T) {
		err := File(filepath.Join(dir, "nope.png"), filepath.Join(dir, "nope-blur.png"), 15, 15)
		assert.ErrorIs(t, err, ErrSourceMissing)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		src := filepath.Join(dir, "doc.bmp")
		require.NoError(t, os.WriteFile(src, []byte("BM"), 0o644))
		err := File(src, filepath.Join(dir, "doc-blur.bmp"), 15, 15)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("corrupt data", func(t *testing.T) {
		src := filepath.Join(dir, "broken.jpg")
		dst := filepath.Join(dir, "broken-blur.jpg")
		require.NoError(t, os.WriteFile(src, []byte("definitely not a jpeg"), 0o644))

		err := File(src, dst, 15, 15)
		assert.ErrorIs(t, err, ErrDecode)

		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr), "失败时不应写出目标文件")

		data, err := os.ReadFile(src)
		require.NoError(t, err)
		assert.Equal(t, "definitely not a jpeg", string(data), "源文件不能被破坏")
	})
}
