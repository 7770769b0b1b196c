package locker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLocker 基于 flock(2) 的跨进程锁，CLI 和 watch 守护进程同时运行时使用
type FileLocker struct {
	dir        string
	retryDelay time.Duration
}

// NewFileLocker dir 不存在时会被创建
func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock dir: %w", err)
	}
	return &FileLocker{dir: dir, retryDelay: 50 * time.Millisecond}, nil
}

// Path 返回 key 对应的锁文件
func (l *FileLocker) Path(key string) string {
	return filepath.Join(l.dir, safeName(key)+".lock")
}

func (l *FileLocker) Lock(ctx context.Context, key string) (func(), error) {
	fl := flock.New(l.Path(key))

	ok, err := fl.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, timeoutErr(ctx, key)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	if !ok {
		return nil, timeoutErr(ctx, key)
	}

	var once sync.Once
	return func() {
		// 锁文件保留，删除会和下一个等待者竞争
		once.Do(func() { _ = fl.Unlock() })
	}, nil
}

func safeName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, key)
}
