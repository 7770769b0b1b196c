package lockpath

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Suffix 插入在扩展名之前的固定标记
const Suffix = "-blur"

// DefaultExtension 当文件不存在或没有扩展名时的兜底扩展名
const DefaultExtension = "png"

var lockedPattern = regexp.MustCompile(`-blur\.[a-z]+$`)

// Lock 把 "{base}.{ext}" 变成 "{base}-blur.{ext}"
// 前置条件：path 以 ".{ext}" 结尾且 ext 非空。
func Lock(path, ext string) (string, error) {
	if ext == "" {
		return "", fmt.Errorf("lock %q: empty extension", path)
	}
	dotExt := "." + ext
	if !strings.HasSuffix(path, dotExt) {
		return "", fmt.Errorf("lock %q: path does not end with %q", path, dotExt)
	}
	return path[:len(path)-len(dotExt)] + Suffix + dotExt, nil
}

// Unlock 是 Lock 的逆操作
// 前置条件：path 以 "-blur.{ext}" 结尾。
func Unlock(path, ext string) (string, error) {
	if ext == "" {
		return "", fmt.Errorf("unlock %q: empty extension", path)
	}
	tail := Suffix + "." + ext
	if !strings.HasSuffix(path, tail) {
		return "", fmt.Errorf("unlock %q: path does not end with %q", path, tail)
	}
	return path[:len(path)-len(tail)] + "." + ext, nil
}

// IsLocked 判断 path 是否匹配 *-blur.<小写字母>$
func IsLocked(path string) bool {
	return lockedPattern.MatchString(path)
}

// Extension 返回 path 的扩展名 (不含点)，没有则返回 ""
func Extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// ExtensionOf 返回已存在文件的扩展名；文件缺失或无扩展名时返回 DefaultExtension
func ExtensionOf(path string, exists bool) string {
	if !exists {
		return DefaultExtension
	}
	if ext := Extension(path); ext != "" {
		return ext
	}
	return DefaultExtension
}

var cacheBustExts = []string{".jpg", ".png", ".gif"}

// CacheBust 给 HTML 片段里的图片引用追加 "?{ts}"，
// 让浏览器在锁定/释放切换后重新拉取同名文件
func CacheBust(html string, ts int64) string {
	stamp := strconv.FormatInt(ts, 10)
	for _, ext := range cacheBustExts {
		html = strings.ReplaceAll(html, ext, ext+"?"+stamp)
	}
	return html
}
