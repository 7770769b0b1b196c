package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imagevault/pkg/lockpath"
	"imagevault/pkg/pixelate"

	"github.com/spf13/cobra"
)

var importCategory string

var importCmd = &cobra.Command{
	Use:   "import [file|dir]...",
	Short: "Import images into the vault and lock them until copyright is set",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireApp(); err != nil {
			return err
		}
		ctx := cmd.Context()
		start := time.Now()

		imported, failed := 0, 0
		for _, target := range args {
			err := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				rel, _ := filepath.Rel(target, path)
				if d.IsDir() {
					if path != target && IV.Ignore.Matches(rel) {
						return filepath.SkipDir
					}
					return nil
				}
				if !importable(path) || (path != target && IV.Ignore.Matches(rel)) {
					return nil
				}

				if err := importOne(ctx, path); err != nil {
					fmt.Printf("❌ %s: %v\n", path, err)
					failed++
					return nil
				}
				imported++
				return nil
			})
			if err != nil {
				return fmt.Errorf("walk failed: %w", err)
			}
		}

		if imported == 0 && failed == 0 {
			fmt.Println("⚠️  No images imported.")
			return nil
		}
		fmt.Printf("✅ Imported %d images in %s", imported, time.Since(start).Round(time.Millisecond))
		if failed > 0 {
			fmt.Printf(" (%d failed)", failed)
		}
		fmt.Println()
		return nil
	},
}

// importable 只导入支持的格式，跳过隐藏文件和已经是马赛克副本的文件
func importable(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || lockpath.IsLocked(name) {
		return false
	}
	_, err := pixelate.FormatFromExt(strings.ToLower(lockpath.Extension(name)))
	return err == nil
}

func importOne(ctx context.Context, path string) error {
	report, err := IV.Ingester.IngestPath(ctx, path, importCategory)
	if report == nil {
		return err
	}
	fmt.Printf("📥 %s -> %s (%s, %d variants)\n", path, report.Asset.File, report.Asset.ID, len(report.Asset.Variants))
	if report.Result != nil {
		printResult(os.Stdout, report.Result, err)
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importCategory, "category", "", "Host category of the imported assets (used by the exclusion policy)")
	rootCmd.AddCommand(importCmd)
}
