package locker

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout 在 ctx 到期前没能拿到锁
var ErrTimeout = errors.New("lock acquisition timed out")

// Locker 为同一个 Asset 上的 Lock/Release 提供互斥
// 返回的 unlock 可以重复调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func timeoutErr(ctx context.Context, key string) error {
	return fmt.Errorf("%w: %s: %v", ErrTimeout, key, context.Cause(ctx))
}
