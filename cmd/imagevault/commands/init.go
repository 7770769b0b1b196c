package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"imagevault/pkg/config"
	"imagevault/pkg/ignore"

	"github.com/spf13/cobra"
)

const defaultConfig = `# imagevault configuration
vault:
  copyright_meta_key: copyright
  exif_copyright_key: copyright
  locked_permissions: "0600"
  released_permissions: "0644"
  block_size_x: 15
  block_size_y: 15
  excluded_categories: [dlm_download]

storage:
  type: disk

database:
  type: sqlite

locker:
  type: flock

log:
  level: info
  format: text
`

const defaultIgnore = `# 匹配的文件不会被导入、加锁或释放
# press/
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an image vault in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}

		metaDir := filepath.Join(wd, config.DirName)
		if _, err := os.Stat(metaDir); err == nil {
			fmt.Printf("⚠️  Image vault already exists in %s\n", metaDir)
			return nil
		}

		if err := os.MkdirAll(filepath.Join(metaDir, "locks"), 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(metaDir, "config.yaml"), []byte(defaultConfig), 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		ignorePath := filepath.Join(wd, ignore.FileName)
		if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
			if err := os.WriteFile(ignorePath, []byte(defaultIgnore), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", ignore.FileName, err)
			}
		}

		fmt.Printf("✅ Initialized empty image vault in %s\n", metaDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
