package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var (
	watchRemove   bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox-dir>",
	Short: "Import images dropped into a directory as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inbox := args[0]
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(inbox); err != nil {
			return fmt.Errorf("failed to watch %s: %w", inbox, err)
		}

		fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", inbox)
		w := newInboxWatcher(ctx, watchDebounce, func(path string) {
			if err := importOne(ctx, path); err != nil {
				fmt.Printf("❌ %s: %v\n", path, err)
				return
			}
			if watchRemove {
				if err := os.Remove(path); err != nil {
					IV.Logger.Warn("failed to remove imported file", "path", path, "err", err)
				}
			}
		})
		defer w.stop()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !importable(event.Name) || IV.Ignore.Matches(filepath.Base(event.Name)) {
					continue
				}
				w.touch(event.Name)

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				IV.Logger.Warn("watcher error", "err", err)

			case <-ctx.Done():
				fmt.Println("\nWatcher stopped")
				return nil
			}
		}
	},
}

// inboxWatcher 对每个路径做去抖：文件最后一次写入后静默 debounce 才导入
type inboxWatcher struct {
	ctx      context.Context
	debounce time.Duration
	handle   func(path string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func newInboxWatcher(ctx context.Context, debounce time.Duration, handle func(string)) *inboxWatcher {
	return &inboxWatcher{
		ctx:      ctx,
		debounce: debounce,
		handle:   handle,
		pending:  make(map[string]*time.Timer),
	}
}

func (w *inboxWatcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			t.Reset(w.debounce)
			return
		}
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == t {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if w.ctx.Err() == nil {
			w.handle(path)
		}
	})
	w.pending[path] = t
}

// stop 取消尚未触发的导入并等待进行中的导入
func (w *inboxWatcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func init() {
	watchCmd.Flags().BoolVar(&watchRemove, "remove", false, "Delete files from the inbox after a successful import")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a new file is imported")
	rootCmd.AddCommand(watchCmd)
}
