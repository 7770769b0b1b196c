package exifmeta

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/rwcarlsen/goexif/exif"
)

// fields 把 image_meta 的键映射到 EXIF 字段，键名沿用媒体库的约定
var fields = map[string]exif.FieldName{
	"copyright":         exif.Copyright,
	"credit":            exif.Artist,
	"camera":            exif.Model,
	"caption":           exif.ImageDescription,
	"created_timestamp": exif.DateTimeOriginal,
}

// Keys 返回 Read 可能产生的全部键
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return keys
}

// Read 从 r 解码 EXIF 并返回非空字段。
// 没有 EXIF 段 (PNG/GIF 或被剥离的 JPEG) 不算错误，返回空 map。
func Read(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)

	data, err := io.ReadAll(r)
	if err != nil {
		return out, fmt.Errorf("failed to read image: %w", err)
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// 解析失败只说明没有可用的 EXIF
		return out, nil
	}

	for key, field := range fields {
		tag, err := x.Get(field)
		if err != nil {
			continue // 字段不存在
		}
		v, err := tag.StringVal()
		if err != nil {
			v = tag.String()
		}
		if v = Sanitize(v); v != "" {
			out[key] = v
		}
	}
	return out, nil
}

// Sanitize 去掉控制字符和首尾空白，EXIF 字符串常以 NUL 填充
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
