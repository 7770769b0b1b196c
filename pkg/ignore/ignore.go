package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是媒体库根目录下的忽略规则文件
const FileName = ".vaultignore"

// Matcher 判断一个相对路径是否不受保险库管理
// 被匹配的文件既不会被导入，也不会被加锁/释放
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher rootPath: 媒体库根目录（用于查找 .vaultignore）
func NewMatcher(rootPath string) (*Matcher, error) {
	// 系统级默认规则，强制生效
	defaultRules := []string{
		".imagevault", // 元数据目录 (数据库、锁文件)
		".git",

		// 配置中可能有 S3 密钥
		"config.yaml",
		".env",

		".DS_Store",
		"Thumbs.db",
	}

	var ignorer *gitignore.GitIgnore
	var err error

	ignoreFilePath := filepath.Join(rootPath, FileName)
	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}
	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// FromLines 只用给定规则构造 (不读文件，也不带默认规则)
func FromLines(lines ...string) *Matcher {
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// Matches path 为相对于媒体库根目录的路径 (例如 "2026/10/photo.jpg")
// 返回 true 表示应该跳过
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
