package pixelate

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
)

// DefaultBlockSize 是每 100 像素对应的马赛克块边长
const DefaultBlockSize = 15

const jpegQuality = 75

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrSourceMissing     = errors.New("source image not found")
	ErrDecode            = errors.New("failed to decode image")
	ErrEncode            = errors.New("failed to encode image")
	ErrNoDimensions      = errors.New("image has no readable dimensions")
)

// Format 是支持的栅格格式
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// FormatFromExt 按扩展名分发格式 (区分大小写: jpg/jpeg/png/gif)
func FormatFromExt(ext string) (Format, error) {
	switch strings.TrimPrefix(ext, ".") {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// FormatOf 根据文件路径判断格式
func FormatOf(path string) (Format, error) {
	return FormatFromExt(filepath.Ext(path))
}

// Decode 按指定格式解码。GIF 只取第一帧。
func Decode(r io.Reader, f Format) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch f {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatGIF:
		img, err = gif.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Encode 以与源相同的格式写出
func Encode(w io.Writer, img image.Image, f Format) error {
	var err error
	switch f {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

// EffectiveBlock 按图像尺寸放大请求的块大小:
// round(width/100) * blockX, round(height/100) * blockY
func EffectiveBlock(width, height, blockX, blockY int) (int, int) {
	bx := int(math.Round(float64(width)/100)) * blockX
	by := int(math.Round(float64(height)/100)) * blockY
	return bx, by
}

// Apply 对 img 做马赛克处理并返回新图像，img 本身不被修改。
// 每个块取左上角像素颜色，映射到调色板中最接近的颜色 (真彩色图像即其本身)，
// 填满 [x, x+bx] x [y, y+by] 的闭区间，下一个块从 x+bx+1 开始。
func Apply(img image.Image, blockX, blockY int) (draw.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrNoDimensions
	}
	if blockX < 0 || blockY < 0 {
		return nil, fmt.Errorf("negative block size %dx%d", blockX, blockY)
	}

	px, py := EffectiveBlock(w, h, blockX, blockY)
	canvas := newCanvas(img)

	for y := b.Min.Y; y < b.Max.Y; y += py + 1 {
		for x := b.Min.X; x < b.Max.X; x += px + 1 {
			c := closest(canvas, canvas.At(x, y))
			block := image.Rect(x, y, x+px+1, y+py+1).Intersect(b)
			draw.Draw(canvas, block, image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	return canvas, nil
}

// newCanvas 复制一份可写的画布。调色板图像保持调色板，其余转为 NRGBA。
func newCanvas(img image.Image) draw.Image {
	if p, ok := img.(*image.Paletted); ok {
		cp := image.NewPaletted(p.Rect, append(color.Palette(nil), p.Palette...))
		copy(cp.Pix, p.Pix)
		return cp
	}
	b := img.Bounds()
	canvas := image.NewNRGBA(b)
	draw.Draw(canvas, b, img, b.Min, draw.Src)
	return canvas
}

// closest 在调色板中找 RGB 最接近的颜色，透明度不参与比较，距离相同取靠前的项
func closest(canvas draw.Image, c color.Color) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	p, ok := canvas.(*image.Paletted)
	if !ok {
		n.A = 0xff
		return n
	}
	if len(p.Palette) == 0 {
		return c
	}

	best, bestDist := 0, -1
	for i, e := range p.Palette {
		pe := color.NRGBAModel.Convert(e).(color.NRGBA)
		d := sqDiff(n.R, pe.R) + sqDiff(n.G, pe.G) + sqDiff(n.B, pe.B)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
		if d == 0 {
			break
		}
	}
	return p.Palette[best]
}

func sqDiff(a, b uint8) int {
	d := int(a) - int(b)
	return d * d
}

// Stream 从 r 读入、处理并以相同格式写到 w
func Stream(r io.Reader, w io.Writer, f Format, blockX, blockY int) error {
	img, err := Decode(r, f)
	if err != nil {
		return err
	}
	out, err := Apply(img, blockX, blockY)
	if err != nil {
		return err
	}
	return Encode(w, out, f)
}

// File 把本地文件 src 马赛克化写入 dst，格式由 src 的扩展名决定。
// dst 通过临时文件 + Rename 原子写入，失败时 dst 不会出现；src 永远不会被修改或删除。
func File(src, dst string, blockX, blockY int) error {
	f, err := FormatOf(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src)
	}
	if err != nil {
		return err
	}
	defer in.Close()

	var buf bytes.Buffer
	if err := Stream(in, &buf, f, blockX, blockY); err != nil {
		return err
	}
	return writeAtomic(dst, buf.Bytes())
}

func writeAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, ".pixelate-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
